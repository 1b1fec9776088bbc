package query

import (
	"github.com/roach88/docq/internal/ir"
)

// mergeFunc folds other into receiver. A nil result means the two
// statements are incomparable and must stay conjoined.
type mergeFunc func(receiver, other *Binary) Statement

var mergeFuncs map[Kind]mergeFunc

func init() {
	mergeFuncs = map[Kind]mergeFunc{
		KindEqual:        mergeEqual,
		KindNotEqual:     mergeNotEqual,
		KindGreater:      mergeSameDirection,
		KindGreaterEqual: mergeSameDirection,
		KindLess:         mergeLess,
		KindLessEqual:    mergeLess,
		KindIn:           mergeIn,
		KindBound:        mergeBound,
	}
}

// Merge folds two statements on the same field into one equivalent
// statement.
//
// The receiver is whichever operand provides a merge for the other's
// kind, trying a first. The result is a *Binary, *Empty when the statements
// contradict each other, or nil when they are incomparable and must stay
// conjoined. An error is returned when neither operand provides a merge.
func Merge(a, b *Binary) (Statement, error) {
	if a.err != nil {
		return nil, a.err
	}
	if b.err != nil {
		return nil, b.err
	}
	if !a.CanBeMerged(b) {
		return nil, NewBuildError(ErrCodeNoMergeProvider, "statements cannot be merged",
			"left", a.String(), "right", b.String())
	}
	if fn, ok := mergeFuncs[a.Kind]; ok && a.Kind.ProvidesMergeFor(b.Kind) {
		return fn(a, b), nil
	}
	if fn, ok := mergeFuncs[b.Kind]; ok && b.Kind.ProvidesMergeFor(a.Kind) {
		return fn(b, a), nil
	}
	return nil, NewBuildError(ErrCodeNoMergeProvider, "no merge provider",
		"left", a.Kind.String(), "right", b.Kind.String(), "field", a.Left.Name())
}

func (b *Binary) empty() *Empty {
	return &Empty{Model: b.ModelName()}
}

// mergeEqual: the receiver pins the field to one value, so the merge is
// decided by evaluating the other statement on that value.
func mergeEqual(r, o *Binary) Statement {
	if o.matchesValue(r.Value()) {
		return r
	}
	return r.empty()
}

// mergeNotEqual removes one value from the other statement's domain.
func mergeNotEqual(r, o *Binary) Statement {
	v := r.Value()
	if !o.matchesValue(v) {
		// o never holds on v: the exclusion is implied.
		return o
	}
	switch o.Kind {
	case KindEqual:
		return r.empty()
	case KindNotEqual:
		// two distinct exclusions have no single-statement form
		return nil
	case KindIn:
		kept := make(ir.IRArray, 0, len(o.Set()))
		for _, c := range o.Set() {
			if !ir.Equal(c, v) {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			return r.empty()
		}
		return o.derive(KindIn, Literal{Value: kept})
	case KindBound:
		iv, _ := o.Interval()
		narrowed := iv.Clone()
		changed := false
		if narrowed.LeftClosed && ir.Equal(v, narrowed.Left) {
			narrowed.LeftClosed = false
			changed = true
		}
		if narrowed.RightClosed && ir.Equal(v, narrowed.Right) {
			narrowed.RightClosed = false
			changed = true
		}
		if !changed {
			return nil
		}
		if !narrowed.Valid() {
			// [v, v] minus v
			return r.empty()
		}
		return o.derive(KindBound, narrowed)
	case KindLessEqual:
		if ir.Equal(v, o.Value()) {
			return o.derive(KindLess, Literal{Value: o.Value()})
		}
	case KindGreaterEqual:
		if ir.Equal(v, o.Value()) {
			return o.derive(KindGreater, Literal{Value: o.Value()})
		}
	}
	return nil
}

// mergeSameDirection keeps the tighter of two bounds pointing the same way.
// On a tie the strict comparison wins.
func mergeSameDirection(r, o *Binary) Statement {
	c, ok := ir.Compare(r.Value(), o.Value())
	if !ok {
		return nil
	}
	lower := r.Kind == KindGreater || r.Kind == KindGreaterEqual
	switch {
	case c == 0:
		if r.Kind == KindGreater || r.Kind == KindLess {
			return r
		}
		return o
	case (c > 0) == lower:
		return r
	default:
		return o
	}
}

// mergeLess keeps the tighter upper bound, or closes an upper bound and a
// lower bound into a bound statement.
func mergeLess(r, o *Binary) Statement {
	if o.Kind == KindLess || o.Kind == KindLessEqual {
		return mergeSameDirection(r, o)
	}
	iv := NewInterval(o.Value(), r.Value(), o.Kind == KindGreaterEqual, r.Kind == KindLessEqual)
	if !iv.Valid() {
		return nil
	}
	return r.derive(KindBound, iv)
}

// mergeIn filters the candidate set through the other statement.
func mergeIn(r, o *Binary) Statement {
	set := r.Set()
	kept := make(ir.IRArray, 0, len(set))
	for _, c := range set {
		if o.matchesValue(c) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return r.empty()
	}
	if len(kept) == len(set) {
		return r
	}
	return r.derive(KindIn, Literal{Value: kept})
}

// mergeBound narrows the interval with a one-sided bound, filters a
// membership set, or keeps the inner of two nested intervals.
func mergeBound(r, o *Binary) Statement {
	iv, _ := r.Interval()
	switch o.Kind {
	case KindIn:
		return mergeIn(o, r)
	case KindBound:
		other, _ := o.Interval()
		switch {
		case iv.ContainsInterval(other):
			return o
		case other.ContainsInterval(iv):
			return r
		default:
			return nil
		}
	case KindGreater, KindGreaterEqual:
		c, ok := ir.Compare(o.Value(), iv.Left)
		if !ok {
			return nil
		}
		closed := o.Kind == KindGreaterEqual
		switch {
		case c < 0 || (c == 0 && (closed || !iv.LeftClosed)):
			return r
		default:
			narrowed := iv.Clone()
			narrowed.Left = o.Value()
			narrowed.LeftClosed = closed
			if !narrowed.Valid() {
				return nil
			}
			return r.derive(KindBound, narrowed)
		}
	case KindLess, KindLessEqual:
		c, ok := ir.Compare(o.Value(), iv.Right)
		if !ok {
			return nil
		}
		closed := o.Kind == KindLessEqual
		switch {
		case c > 0 || (c == 0 && (closed || !iv.RightClosed)):
			return r
		default:
			narrowed := iv.Clone()
			narrowed.Right = o.Value()
			narrowed.RightClosed = closed
			if !narrowed.Valid() {
				return nil
			}
			return r.derive(KindBound, narrowed)
		}
	}
	return nil
}
