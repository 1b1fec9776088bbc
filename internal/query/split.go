package query

import "fmt"

// SplitQuery partitions the binary statements of s into simple ones
// (field against literal) and complicated ones (field against field).
// Table scans and Empty produce no statements. Directives are dropped;
// read them from s.Directives().
func SplitQuery(s Statement) (simple, complicated []*Binary, err error) {
	var children []*Binary
	switch x := s.(type) {
	case *TableScan, *Empty:
		return nil, nil, nil
	case *Binary:
		children = []*Binary{x}
	case *And:
		children = x.Children
	default:
		return nil, nil, NewBuildError(ErrCodeUnknownNode, fmt.Sprintf("cannot split %T", s))
	}
	for _, c := range children {
		if c.err != nil {
			return nil, nil, c.err
		}
		c = c.withSampling(nil)
		if c.Complicated() {
			complicated = append(complicated, c)
		} else {
			simple = append(simple, c)
		}
	}
	return simple, complicated, nil
}

// Recombine conjoins the given statement groups back into one statement
// of model. With no statements it returns an And without children.
func Recombine(model string, groups ...[]*Binary) (Statement, error) {
	var acc Statement = &And{Model: model}
	for _, g := range groups {
		for _, b := range g {
			var err error
			if acc, err = Conjoin(acc, b); err != nil {
				return nil, err
			}
		}
	}
	return acc, nil
}
