package query

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/docq/internal/ir"
)

// Operand is the right-hand side of a binary statement: a Literal, an
// Interval (bound statements) or another Row (row-to-row comparison).
type Operand interface {
	operandNode() // Marker method - seals interface to this package
}

// Literal wraps a literal value operand.
type Literal struct {
	Value ir.IRValue
}

func (Literal) operandNode() {}

// Row is a typed handle on a field path of a model's documents.
//
// Rows are the leaves of every comparison. A scalar row has a single path
// segment; Field and Index extend the path into nested objects and arrays.
// Rows are values: every extension returns a new Row.
type Row struct {
	path           []string
	model          string
	secondaryIndex bool
}

func (Row) operandNode() {}

// NewRow creates a row reference on model for the given path.
// Only top-level rows can be secondary indexes; the flag is dropped for
// nested paths. Statements built on a row with an empty path carry a
// TYPE_MISMATCH build error.
func NewRow(model string, secondaryIndex bool, path ...string) Row {
	return Row{
		path:           slices.Clone(path),
		model:          model,
		secondaryIndex: secondaryIndex && len(path) == 1,
	}
}

// Field returns a nested row reference (doc.path.name).
func (r Row) Field(name string) Row {
	return r.extend(name)
}

// Index returns a nested row reference into an array element.
func (r Row) Index(i int) Row {
	return r.extend(strconv.Itoa(i))
}

func (r Row) extend(segment string) Row {
	path := make([]string, len(r.path)+1)
	copy(path, r.path)
	path[len(r.path)] = segment
	return Row{path: path, model: r.model}
}

// Path returns a copy of the path segments.
func (r Row) Path() []string {
	return slices.Clone(r.path)
}

// Name returns the dotted path (profile.city).
func (r Row) Name() string {
	return strings.Join(r.path, ".")
}

// Root returns the top-level field name.
func (r Row) Root() string {
	if len(r.path) == 0 {
		return ""
	}
	return r.path[0]
}

// Model returns the name of the model the row belongs to.
func (r Row) Model() string {
	return r.model
}

// SecondaryIndex reports whether the row is a field marked as secondary index.
func (r Row) SecondaryIndex() bool {
	return r.secondaryIndex
}

// IsNested reports whether the row has more than one path segment.
func (r Row) IsNested() bool {
	return len(r.path) > 1
}

// IsZero reports whether r is the zero Row.
func (r Row) IsZero() bool {
	return len(r.path) == 0
}

// Equal reports structural equality (path and index flag). Rows compare
// independently of any statement they appear in.
func (r Row) Equal(other Row) bool {
	return r.secondaryIndex == other.secondaryIndex && slices.Equal(r.path, other.path)
}

// withPath returns a copy of r with a rewritten path.
func (r Row) withPath(path []string) Row {
	return Row{path: path, model: r.model, secondaryIndex: r.secondaryIndex}
}

// Resolve walks the row path through doc. Object segments are looked up by
// key; array segments must be decimal indexes.
func (r Row) Resolve(doc ir.IRObject) (ir.IRValue, bool) {
	var cur ir.IRValue = doc
	for _, segment := range r.path {
		switch node := cur.(type) {
		case ir.IRObject:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			cur = next
		case ir.IRArray:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String implements fmt.Stringer.
func (r Row) String() string {
	return r.Name()
}

// Eq builds `row == v`. v may be a literal (IRValue or Go value) or a Row.
func (r Row) Eq(v any) *Binary { return newBinary(KindEqual, r, v) }

// Ne builds `row != v`.
func (r Row) Ne(v any) *Binary { return newBinary(KindNotEqual, r, v) }

// Lt builds `row < v`.
func (r Row) Lt(v any) *Binary { return newBinary(KindLess, r, v) }

// Le builds `row <= v`.
func (r Row) Le(v any) *Binary { return newBinary(KindLessEqual, r, v) }

// Gt builds `row > v`.
func (r Row) Gt(v any) *Binary { return newBinary(KindGreater, r, v) }

// Ge builds `row >= v`.
func (r Row) Ge(v any) *Binary { return newBinary(KindGreaterEqual, r, v) }

// In builds a membership statement. A single Row argument compares
// against an array-valued row; a single slice argument is used as the
// candidate set; otherwise every argument is a candidate.
func (r Row) In(values ...any) *Binary {
	if b := checkRows(KindIn, r, values...); b != nil {
		return b
	}
	if len(values) == 1 {
		if other, ok := values[0].(Row); ok {
			return &Binary{Kind: KindIn, Left: r, Right: other}
		}
		v, err := ir.FromGo(values[0])
		if err != nil {
			return invalidBinary(KindIn, r, err)
		}
		if arr, ok := v.(ir.IRArray); ok {
			return &Binary{Kind: KindIn, Left: r, Right: Literal{Value: dedupe(arr)}}
		}
		return &Binary{Kind: KindIn, Left: r, Right: Literal{Value: ir.IRArray{v}}}
	}
	arr := make(ir.IRArray, 0, len(values))
	for _, raw := range values {
		v, err := ir.FromGo(raw)
		if err != nil {
			return invalidBinary(KindIn, r, err)
		}
		arr = append(arr, v)
	}
	return &Binary{Kind: KindIn, Left: r, Right: Literal{Value: dedupe(arr)}}
}

// Between builds a bound statement over [lo, hi] with the given endpoint
// closedness.
func (r Row) Between(lo, hi any, leftClosed, rightClosed bool) *Binary {
	if b := checkRows(KindBound, r); b != nil {
		return b
	}
	left, err := ir.FromGo(lo)
	if err != nil {
		return invalidBinary(KindBound, r, err)
	}
	right, err := ir.FromGo(hi)
	if err != nil {
		return invalidBinary(KindBound, r, err)
	}
	if _, ok := ir.Compare(left, right); !ok {
		return invalidBinary(KindBound, r, NewBuildError(ErrCodeTypeMismatch,
			"bound endpoints are not comparable", "left", ir.Kind(left), "right", ir.Kind(right)))
	}
	return &Binary{Kind: KindBound, Left: r, Right: NewInterval(left, right, leftClosed, rightClosed)}
}

// Match builds a regular-expression match statement (RE2 syntax).
func (r Row) Match(pattern string) *Binary {
	if b := checkRows(KindMatch, r); b != nil {
		return b
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return invalidBinary(KindMatch, r, err)
	}
	return &Binary{Kind: KindMatch, Left: r, Right: Literal{Value: ir.IRString(pattern)}, re: re}
}

func newBinary(kind Kind, r Row, v any) *Binary {
	if b := checkRows(kind, r, v); b != nil {
		return b
	}
	if other, ok := v.(Row); ok {
		return &Binary{Kind: kind, Left: r, Right: other}
	}
	value, err := ir.FromGo(v)
	if err != nil {
		return invalidBinary(kind, r, err)
	}
	return &Binary{Kind: kind, Left: r, Right: Literal{Value: value}}
}

// checkRows rejects a statement whose row or row operand has an empty path.
func checkRows(kind Kind, r Row, operands ...any) *Binary {
	empty := r.IsZero()
	for _, o := range operands {
		if other, ok := o.(Row); ok && other.IsZero() {
			empty = true
		}
	}
	if !empty {
		return nil
	}
	return invalidBinary(kind, r, NewBuildError(ErrCodeTypeMismatch,
		"row reference requires a non-empty path", "model", r.Model(), "kind", kind.String()))
}

func invalidBinary(kind Kind, r Row, cause error) *Binary {
	if !IsBuildError(cause) {
		cause = NewBuildError(ErrCodeTypeMismatch, cause.Error(), "field", r.Name(), "kind", kind.String())
	}
	return &Binary{Kind: kind, Left: r, err: cause}
}

// dedupe removes duplicate candidates, keeping first occurrences.
func dedupe(values ir.IRArray) ir.IRArray {
	seen := make(map[string]struct{}, len(values))
	out := make(ir.IRArray, 0, len(values))
	for _, v := range values {
		key := ir.ValueKey(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
