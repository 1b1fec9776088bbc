package query

import (
	"fmt"
	"slices"
)

// Conjoin returns the conjunction of a and b.
//
// Statements on the same field are merged where a merge provider exists;
// everything else accumulates as children of an And node. Empty absorbs
// the conjunction. The directives of both sides are concatenated with
// MergeSampling. Neither input is modified.
func Conjoin(a, b Statement) (Statement, error) {
	if a == nil || b == nil {
		return nil, NewBuildError(ErrCodeTypeMismatch, "conjunction with a nil statement")
	}
	if err := deferredErr(a); err != nil {
		return nil, err
	}
	if err := deferredErr(b); err != nil {
		return nil, err
	}

	model := a.ModelName()
	if other := b.ModelName(); other != "" {
		if model != "" && model != other {
			return nil, NewBuildError(ErrCodeTypeMismatch, "conjunction across models",
				"left", model, "right", other)
		}
		model = other
	}

	_, aEmpty := a.(*Empty)
	_, bEmpty := b.(*Empty)
	if aEmpty || bEmpty {
		return &Empty{Model: model}, nil
	}

	sampling, err := MergeSampling(a.Directives(), b.Directives())
	if err != nil {
		return nil, err
	}

	left, leftAnd, err := conjuncts(a)
	if err != nil {
		return nil, err
	}
	right, rightAnd, err := conjuncts(b)
	if err != nil {
		return nil, err
	}

	children := left
	for _, c := range right {
		var empty bool
		children, empty, err = addConjunct(children, c)
		if err != nil {
			return nil, err
		}
		if empty {
			return &Empty{Model: model}, nil
		}
	}

	switch {
	case leftAnd || rightAnd || len(children) > 1:
		return &And{Children: children, Sampling: sampling, Model: model}, nil
	case len(children) == 1:
		return children[0].withSampling(sampling), nil
	case len(sampling) > 0:
		return &And{Sampling: sampling, Model: model}, nil
	}
	if scan, ok := a.(*TableScan); ok {
		return scan, nil
	}
	return b, nil
}

// ConjoinAll folds Conjoin over stmts from left to right.
func ConjoinAll(stmts ...Statement) (Statement, error) {
	if len(stmts) == 0 {
		return nil, NewBuildError(ErrCodeMissingModel, "empty conjunction")
	}
	acc := stmts[0]
	if err := deferredErr(acc); err != nil {
		return nil, err
	}
	for _, s := range stmts[1:] {
		var err error
		if acc, err = Conjoin(acc, s); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func deferredErr(s Statement) error {
	if b, ok := s.(*Binary); ok && b.err != nil {
		return b.err
	}
	return nil
}

// conjuncts lists the binary children of s without their directives.
// isAnd reports whether s is an And node.
func conjuncts(s Statement) (children []*Binary, isAnd bool, err error) {
	switch x := s.(type) {
	case *TableScan:
		return nil, false, nil
	case *Binary:
		return []*Binary{x.withSampling(nil)}, false, nil
	case *And:
		return slices.Clone(x.Children), true, nil
	default:
		return nil, false, NewBuildError(ErrCodeUnknownNode, fmt.Sprintf("cannot conjoin %T", s))
	}
}

// addConjunct conjoins c with children. The first mergeable child is
// replaced in place by the merge result, which is then offered to the
// remaining children. Statements that merge with nothing are appended.
// empty reports a contradiction.
func addConjunct(children []*Binary, c *Binary) (out []*Binary, empty bool, err error) {
	out = slices.Clone(children)
	pos := -1
	for {
		merged := false
		for i, existing := range out {
			if i == pos || !existing.CanBeMerged(c) {
				continue
			}
			m, err := Merge(existing, c)
			if err != nil {
				return nil, false, err
			}
			var next *Binary
			switch r := m.(type) {
			case nil:
				continue
			case *Empty:
				return nil, true, nil
			case *Binary:
				next = r.withSampling(nil)
			default:
				return nil, false, NewBuildError(ErrCodeUnknownNode, fmt.Sprintf("merge produced %T", m))
			}
			out[i] = next
			if pos >= 0 {
				out = slices.Delete(out, pos, pos+1)
				if pos < i {
					i--
				}
			}
			pos, c, merged = i, next, true
			break
		}
		if !merged {
			break
		}
	}
	if pos < 0 {
		out = append(out, c)
	}
	return out, false, nil
}
