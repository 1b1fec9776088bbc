package query

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/docq/internal/ir"
)

// Statement is a node of the filter AST: a predicate over one model's
// documents.
//
// This is a sealed interface - only types in this package implement it,
// which keeps type switches in parsers and backends exhaustive:
//
//	switch s := stmt.(type) {
//	case *TableScan:
//	case *Empty:
//	case *Binary:
//	case *And:
//	}
//
// Statements are immutable once built. Conjunction, sampling and
// adaptation always return new nodes, so trees can be shared and compared
// freely.
type Statement interface {
	statementNode() // Marker method - seals interface to this package

	// ModelName returns the model the statement filters, or "" if none
	// is attached.
	ModelName() string

	// Directives returns the sampling directives in declaration order.
	Directives() Sampling

	// Evaluate evaluates the statement against an in-memory document.
	Evaluate(doc ir.IRObject) (bool, error)

	// String renders the statement for plans and logs.
	String() string
}

// TableScan selects every document of a table.
type TableScan struct {
	Table string
	Model string
}

func (*TableScan) statementNode() {}

// ModelName implements Statement.
func (t *TableScan) ModelName() string { return t.Model }

// Directives implements Statement. Table scans never carry directives;
// adding one turns the scan into an And node without children.
func (*TableScan) Directives() Sampling { return nil }

// Empty denotes the unsatisfiable set. It absorbs every conjunction.
type Empty struct {
	Model string
}

func (*Empty) statementNode() {}

// ModelName implements Statement.
func (e *Empty) ModelName() string { return e.Model }

// Directives implements Statement.
func (*Empty) Directives() Sampling { return nil }

// Binary is a two-operand comparison: Left is always a row reference,
// Right is a Literal, an Interval (KindBound) or another Row.
type Binary struct {
	Kind     Kind
	Left     Row
	Right    Operand
	Sampling Sampling

	re  *regexp.Regexp // compiled pattern for KindMatch
	err error          // deferred coercion error, reported on conjunction/parse
}

func (*Binary) statementNode() {}

// ModelName implements Statement.
func (b *Binary) ModelName() string { return b.Left.Model() }

// Directives implements Statement.
func (b *Binary) Directives() Sampling { return b.Sampling }

// Err returns the deferred construction error, if any.
func (b *Binary) Err() error { return b.err }

// Complicated reports whether both operands are row references. Such
// statements are never merged and never serviced by an index.
func (b *Binary) Complicated() bool {
	_, ok := b.Right.(Row)
	return ok
}

// Value returns the literal operand (nil for bound and row operands).
func (b *Binary) Value() ir.IRValue {
	if lit, ok := b.Right.(Literal); ok {
		return lit.Value
	}
	return nil
}

// Interval returns the bound payload; ok is false for other kinds.
func (b *Binary) Interval() (Interval, bool) {
	iv, ok := b.Right.(Interval)
	return iv, ok
}

// Set returns the candidate values of a literal membership statement.
func (b *Binary) Set() ir.IRArray {
	arr, _ := b.Value().(ir.IRArray)
	return arr
}

// RightRow returns the right operand of a complicated statement.
func (b *Binary) RightRow() (Row, bool) {
	r, ok := b.Right.(Row)
	return r, ok
}

// Pattern returns the regular expression of a match statement.
func (b *Binary) Pattern() string {
	s, _ := b.Value().(ir.IRString)
	return string(s)
}

// CanBeMerged reports whether b and other filter the same field, neither
// is complicated and neither is a pattern match.
func (b *Binary) CanBeMerged(other *Binary) bool {
	if b.err != nil || other.err != nil {
		return false
	}
	if b.Complicated() || other.Complicated() {
		return false
	}
	if b.Kind == KindMatch || other.Kind == KindMatch {
		return false
	}
	return b.Left.Equal(other.Left)
}

// withSampling returns a shallow copy carrying s.
func (b *Binary) withSampling(s Sampling) *Binary {
	c := *b
	c.Sampling = s
	return &c
}

// derive creates a new literal statement on b's row.
func (b *Binary) derive(kind Kind, right Operand) *Binary {
	return &Binary{Kind: kind, Left: b.Left, Right: right}
}

// And is a conjunction of binary statements. Children have set semantics:
// their order carries no meaning and equality ignores it. An And without
// children is a table scan of Model with directives attached.
type And struct {
	Children []*Binary
	Sampling Sampling
	Model    string
}

func (*And) statementNode() {}

// ModelName implements Statement.
func (a *And) ModelName() string {
	if a.Model != "" {
		return a.Model
	}
	for _, c := range a.Children {
		if m := c.ModelName(); m != "" {
			return m
		}
	}
	return ""
}

// Directives implements Statement.
func (a *And) Directives() Sampling { return a.Sampling }

func (a *And) clone() *And {
	return &And{
		Children: slices.Clone(a.Children),
		Sampling: slices.Clone(a.Sampling),
		Model:    a.Model,
	}
}

// key renders a canonical, order-independent identity of a binary
// statement without its directives.
func (b *Binary) key() string {
	left := rowKey(b.Left)
	var right string
	switch op := b.Right.(type) {
	case Row:
		right = rowKey(op)
		if b.Kind.Symmetric() && right < left {
			left, right = right, left
		}
		right = "row:" + right
	case Interval:
		right = op.String()
	case Literal:
		if b.Kind == KindIn {
			keys := make([]string, 0, len(b.Set()))
			for _, v := range b.Set() {
				keys = append(keys, ir.ValueKey(v))
			}
			sort.Strings(keys)
			right = "set:{" + strings.Join(keys, ",") + "}"
		} else {
			right = ir.ValueKey(op.Value)
		}
	}
	return b.Kind.String() + "(" + left + "," + right + ")"
}

func rowKey(r Row) string {
	if r.SecondaryIndex() {
		return r.Name() + "#"
	}
	return r.Name()
}

// Equal reports structural equality of two statements. Conjunctions
// compare as multisets of children; symmetric kinds compare
// independently of operand order.
func Equal(a, b Statement) bool {
	switch x := a.(type) {
	case *TableScan:
		y, ok := b.(*TableScan)
		return ok && x.Table == y.Table && x.Model == y.Model
	case *Empty:
		y, ok := b.(*Empty)
		return ok && x.Model == y.Model
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.key() == y.key() && x.Sampling.Equal(y.Sampling)
	case *And:
		y, ok := b.(*And)
		if !ok || len(x.Children) != len(y.Children) || !x.Sampling.Equal(y.Sampling) {
			return false
		}
		if x.ModelName() != y.ModelName() {
			return false
		}
		xs, ys := childKeys(x), childKeys(y)
		return slices.Equal(xs, ys)
	default:
		return false
	}
}

func childKeys(a *And) []string {
	keys := make([]string, len(a.Children))
	for i, c := range a.Children {
		keys[i] = c.key()
	}
	sort.Strings(keys)
	return keys
}
