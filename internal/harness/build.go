package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/query"
)

// BuildStatement builds the scenario's statement over m.
func (s *Scenario) BuildStatement(m *model.Model) (query.Statement, error) {
	b := query.Where()
	if len(s.Where) == 0 {
		b = query.Where(m.Scan())
	}
	for i, c := range s.Where {
		stmt, err := condition(m, c)
		if err != nil {
			return nil, fmt.Errorf("where[%d]: %w", i, err)
		}
		b = b.And(stmt)
	}

	for i, d := range s.Sampling {
		switch {
		case d.Limit != nil:
			b = b.Limit(*d.Limit)
		case d.Skip != nil:
			b = b.Skip(*d.Skip)
		case d.Sample != nil:
			b = b.Sample(*d.Sample)
		default:
			orders := make([]query.Order, len(d.OrderBy))
			for j, k := range d.OrderBy {
				r, err := row(m, k.Field)
				if err != nil {
					return nil, fmt.Errorf("sampling[%d]: %w", i, err)
				}
				orders[j] = query.Order{Row: r, Desc: k.Desc}
			}
			b = b.OrderBy(orders...)
		}
	}
	return b.Build()
}

// BuildOperation wraps stmt in the scenario's operation. It returns nil
// when the scenario has none.
func (s *Scenario) BuildOperation(m *model.Model, stmt query.Statement) (query.Operation, error) {
	op := s.Operation
	if op == nil {
		return nil, nil
	}
	if op.Update != nil {
		u, err := query.NewUpdate(stmt, op.Update)
		if err != nil {
			return nil, err
		}
		return u, nil
	}

	fn, err := query.ParseAggregateFunc(op.Aggregate)
	if err != nil {
		return nil, err
	}
	var target *query.Row
	if op.Row != "" {
		r, err := row(m, op.Row)
		if err != nil {
			return nil, err
		}
		target = &r
	}
	if len(op.GroupBy) == 0 {
		agg, err := query.NewAggregate(stmt, fn, target)
		if err != nil {
			return nil, err
		}
		return agg, nil
	}
	groupBy := make([]query.Row, len(op.GroupBy))
	for i, name := range op.GroupBy {
		if groupBy[i], err = row(m, name); err != nil {
			return nil, err
		}
	}
	g, err := query.NewGroupAggregate(stmt, groupBy, fn, target)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func condition(m *model.Model, c Condition) (query.Statement, error) {
	kind, err := query.ParseKind(c.Op)
	if err != nil {
		return nil, err
	}
	left, err := row(m, c.Field)
	if err != nil {
		return nil, err
	}

	var operand any = c.Value
	if c.Row != "" {
		if operand, err = row(m, c.Row); err != nil {
			return nil, err
		}
	}

	switch kind {
	case query.KindEqual:
		return left.Eq(operand), nil
	case query.KindNotEqual:
		return left.Ne(operand), nil
	case query.KindLess:
		return left.Lt(operand), nil
	case query.KindLessEqual:
		return left.Le(operand), nil
	case query.KindGreater:
		return left.Gt(operand), nil
	case query.KindGreaterEqual:
		return left.Ge(operand), nil
	case query.KindIn:
		return left.In(operand), nil
	case query.KindBound:
		ends, ok := c.Value.([]any)
		if !ok || len(ends) != 2 {
			return nil, fmt.Errorf("between needs value [lo, hi]")
		}
		closed := []bool{true, true}
		if len(c.Closed) == 2 {
			closed = c.Closed
		}
		return left.Between(ends[0], ends[1], closed[0], closed[1]), nil
	default:
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("match needs a string pattern")
		}
		return left.Match(pattern), nil
	}
}

// row resolves a dotted field path on m. The first segment must be a
// declared field.
func row(m *model.Model, path string) (query.Row, error) {
	segments := strings.Split(path, ".")
	if _, ok := m.Field(segments[0]); !ok {
		return query.Row{}, fmt.Errorf("model %s has no field %q", m.Name, segments[0])
	}
	return m.Row(segments...), nil
}
