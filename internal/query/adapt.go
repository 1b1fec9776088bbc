package query

import (
	"fmt"

	"github.com/roach88/docq/internal/ir"
	"golang.org/x/text/unicode/norm"
)

// BackendAdapter converts literal operands and row names into the form a
// backend stores them in. It is invoked once per literal and once per row
// path segment during adaptation.
type BackendAdapter interface {
	// EnsureCompatibility normalizes a value before serialization.
	EnsureCompatibility(v ir.IRValue) (ir.IRValue, error)

	// SerializeValue converts a normalized value into a backend literal.
	SerializeValue(v ir.IRValue) (ir.IRValue, error)

	// SerializeRowName maps a model field name to a backend field name.
	SerializeRowName(name string) string

	// DeserializeRowName is the inverse of SerializeRowName.
	DeserializeRowName(name string) string
}

// DefaultAdapter normalizes strings to NFC and keeps names unchanged.
type DefaultAdapter struct{}

// EnsureCompatibility implements BackendAdapter.
func (DefaultAdapter) EnsureCompatibility(v ir.IRValue) (ir.IRValue, error) {
	return normalizeStrings(v), nil
}

// SerializeValue implements BackendAdapter.
func (DefaultAdapter) SerializeValue(v ir.IRValue) (ir.IRValue, error) { return v, nil }

// SerializeRowName implements BackendAdapter.
func (DefaultAdapter) SerializeRowName(name string) string { return name }

// DeserializeRowName implements BackendAdapter.
func (DefaultAdapter) DeserializeRowName(name string) string { return name }

func normalizeStrings(v ir.IRValue) ir.IRValue {
	switch x := v.(type) {
	case ir.IRString:
		return ir.IRString(norm.NFC.String(string(x)))
	case ir.IRArray:
		out := make(ir.IRArray, len(x))
		for i, e := range x {
			out[i] = normalizeStrings(e)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(x))
		for k, e := range x {
			out[norm.NFC.String(k)] = normalizeStrings(e)
		}
		return out
	default:
		return v
	}
}

// Adapt returns a copy of s with every literal and row name rewritten by
// adapter. s itself is left untouched and stays comparable with other
// unadapted trees.
func Adapt(s Statement, adapter BackendAdapter) (Statement, error) {
	if adapter == nil {
		adapter = DefaultAdapter{}
	}
	switch x := s.(type) {
	case *TableScan, *Empty:
		return x, nil
	case *Binary:
		return adaptBinary(x, adapter)
	case *And:
		out := &And{Model: x.Model, Children: make([]*Binary, len(x.Children))}
		for i, c := range x.Children {
			ac, err := adaptBinary(c, adapter)
			if err != nil {
				return nil, err
			}
			out.Children[i] = ac
		}
		out.Sampling = adaptSampling(x.Sampling, adapter)
		return out, nil
	default:
		return nil, NewBuildError(ErrCodeUnknownNode, fmt.Sprintf("cannot adapt %T", s))
	}
}

// AdaptOperation adapts the filter of op and every row it references.
func AdaptOperation(op Operation, adapter BackendAdapter) (Operation, error) {
	if adapter == nil {
		adapter = DefaultAdapter{}
	}
	filter, err := Adapt(op.Source(), adapter)
	if err != nil {
		return nil, err
	}
	switch x := op.(type) {
	case *Aggregate:
		return &Aggregate{Filter: filter, Func: x.Func, Row: adaptRowPtr(x.Row, adapter)}, nil
	case *GroupAggregate:
		groupBy := make([]Row, len(x.GroupBy))
		for i, r := range x.GroupBy {
			groupBy[i] = adaptRow(r, adapter)
		}
		return &GroupAggregate{Filter: filter, GroupBy: groupBy, Func: x.Func, Row: adaptRowPtr(x.Row, adapter)}, nil
	case *Changes:
		return &Changes{Filter: filter, IncludeInitial: x.IncludeInitial}, nil
	case *Update:
		set := make(map[string]ir.IRValue, len(x.Set))
		for k, v := range x.Set {
			av, err := adaptValue(v, adapter)
			if err != nil {
				return nil, err
			}
			set[adapter.SerializeRowName(k)] = av
		}
		return &Update{Filter: filter, Set: set}, nil
	default:
		return nil, NewBuildError(ErrCodeUnknownNode, fmt.Sprintf("cannot adapt %T", op))
	}
}

func adaptBinary(b *Binary, adapter BackendAdapter) (*Binary, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := &Binary{
		Kind:     b.Kind,
		Left:     adaptRow(b.Left, adapter),
		Sampling: adaptSampling(b.Sampling, adapter),
		re:       b.re,
	}
	switch op := b.Right.(type) {
	case Row:
		out.Right = adaptRow(op, adapter)
	case Interval:
		left, err := adaptValue(op.Left, adapter)
		if err != nil {
			return nil, err
		}
		right, err := adaptValue(op.Right, adapter)
		if err != nil {
			return nil, err
		}
		out.Right = NewInterval(left, right, op.LeftClosed, op.RightClosed)
	case Literal:
		if b.Kind == KindMatch {
			// patterns are compiled before adaptation
			out.Right = op
			break
		}
		v, err := adaptValue(op.Value, adapter)
		if err != nil {
			return nil, err
		}
		out.Right = Literal{Value: v}
	}
	return out, nil
}

func adaptValue(v ir.IRValue, adapter BackendAdapter) (ir.IRValue, error) {
	nv, err := adapter.EnsureCompatibility(v)
	if err != nil {
		return nil, NewBuildError(ErrCodeTypeMismatch, err.Error(), "kind", ir.Kind(v))
	}
	out, err := adapter.SerializeValue(nv)
	if err != nil {
		return nil, NewBuildError(ErrCodeTypeMismatch, err.Error(), "kind", ir.Kind(v))
	}
	return out, nil
}

func adaptRow(r Row, adapter BackendAdapter) Row {
	if r.IsZero() {
		return r
	}
	path := make([]string, len(r.path))
	for i, seg := range r.path {
		path[i] = adapter.SerializeRowName(seg)
	}
	return r.withPath(path)
}

func adaptRowPtr(r *Row, adapter BackendAdapter) *Row {
	if r == nil {
		return nil
	}
	out := adaptRow(*r, adapter)
	return &out
}

func adaptSampling(s Sampling, adapter BackendAdapter) Sampling {
	if len(s) == 0 {
		return nil
	}
	out := make(Sampling, len(s))
	for i, d := range s {
		out[i] = d
		if d.Kind == DirectiveOrderBy {
			orders := make([]Order, len(d.Orders))
			for j, o := range d.Orders {
				orders[j] = Order{Row: adaptRow(o.Row, adapter), Desc: o.Desc}
			}
			out[i].Orders = orders
		}
	}
	return out
}
