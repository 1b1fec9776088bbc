package query

import (
	"github.com/roach88/docq/internal/ir"
)

// valueEvaluator decides a binary statement against a resolved field
// value. right is the literal operand, or the resolved right row for
// complicated statements.
type valueEvaluator func(b *Binary, left, right ir.IRValue) bool

var evaluators map[Kind]valueEvaluator

func init() {
	evaluators = map[Kind]valueEvaluator{
		KindEqual:        func(_ *Binary, l, r ir.IRValue) bool { return ir.Equal(l, r) },
		KindNotEqual:     func(_ *Binary, l, r ir.IRValue) bool { return !ir.Equal(l, r) },
		KindLess:         ordered(func(c int) bool { return c < 0 }),
		KindLessEqual:    ordered(func(c int) bool { return c <= 0 }),
		KindGreater:      ordered(func(c int) bool { return c > 0 }),
		KindGreaterEqual: ordered(func(c int) bool { return c >= 0 }),
		KindIn:           evalIn,
		KindBound:        evalBound,
		KindMatch:        evalMatch,
	}
}

// ordered lifts a comparison result test into an evaluator. Values that
// cannot be ordered never satisfy an ordering comparison.
func ordered(test func(int) bool) valueEvaluator {
	return func(_ *Binary, l, r ir.IRValue) bool {
		c, ok := ir.Compare(l, r)
		return ok && test(c)
	}
}

func evalIn(_ *Binary, l, r ir.IRValue) bool {
	set, ok := r.(ir.IRArray)
	if !ok {
		return false
	}
	for _, c := range set {
		if ir.Equal(l, c) {
			return true
		}
	}
	return false
}

func evalBound(b *Binary, l, _ ir.IRValue) bool {
	iv, ok := b.Interval()
	return ok && iv.Contains(l)
}

func evalMatch(b *Binary, l, _ ir.IRValue) bool {
	s, ok := l.(ir.IRString)
	if !ok || b.re == nil {
		return false
	}
	return b.re.MatchString(string(s))
}

// matchesValue reports whether b holds for a document whose field has
// value v. It is only meaningful for non-complicated statements.
func (b *Binary) matchesValue(v ir.IRValue) bool {
	fn, ok := evaluators[b.Kind]
	if !ok {
		return false
	}
	return fn(b, v, b.Value())
}

// Evaluate implements Statement. A document that lacks the field never
// satisfies the statement.
func (b *Binary) Evaluate(doc ir.IRObject) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	fn, ok := evaluators[b.Kind]
	if !ok {
		return false, NewBuildError(ErrCodeEvaluationUnsupported, "no evaluator for statement kind", "kind", b.Kind.String())
	}
	left, ok := b.Left.Resolve(doc)
	if !ok {
		return false, nil
	}
	rightRow, complicated := b.RightRow()
	if !complicated {
		return fn(b, left, b.Value()), nil
	}
	if b.Kind == KindBound || b.Kind == KindMatch {
		return false, NewBuildError(ErrCodeEvaluationUnsupported, "row operand not supported for statement kind",
			"kind", b.Kind.String(), "field", b.Left.Name())
	}
	right, ok := rightRow.Resolve(doc)
	if !ok {
		return false, nil
	}
	return fn(b, left, right), nil
}

// Evaluate implements Statement. A conjunction holds when every child
// holds; an And without children matches every document.
func (a *And) Evaluate(doc ir.IRObject) (bool, error) {
	for _, c := range a.Children {
		ok, err := c.Evaluate(doc)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Evaluate implements Statement.
func (*TableScan) Evaluate(ir.IRObject) (bool, error) { return true, nil }

// Evaluate implements Statement.
func (*Empty) Evaluate(ir.IRObject) (bool, error) { return false, nil }

// Filter returns the documents of docs that satisfy s, in input order.
func Filter(s Statement, docs []ir.IRObject) ([]ir.IRObject, error) {
	out := make([]ir.IRObject, 0, len(docs))
	for _, d := range docs {
		ok, err := s.Evaluate(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}
