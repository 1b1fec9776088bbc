package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DirectiveKind identifies a sampling directive.
type DirectiveKind int

const (
	DirectiveLimit DirectiveKind = iota + 1
	DirectiveSkip
	DirectiveSample
	DirectiveOrderBy
)

// String implements fmt.Stringer.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveLimit:
		return "limit"
	case DirectiveSkip:
		return "skip"
	case DirectiveSample:
		return "sample"
	case DirectiveOrderBy:
		return "order_by"
	default:
		return fmt.Sprintf("directive(%d)", int(k))
	}
}

// Order is one key of an order_by directive.
type Order struct {
	Row  Row
	Desc bool
}

// Asc orders by row ascending.
func Asc(r Row) Order { return Order{Row: r} }

// Desc orders by row descending.
func Desc(r Row) Order { return Order{Row: r, Desc: true} }

// Directive is one (kind, argument) sampling tuple. Count is the argument
// of limit, skip and sample; Orders is the argument of order_by.
type Directive struct {
	Kind   DirectiveKind
	Count  int
	Orders []Order
}

// Limit creates a limit directive.
func Limit(n int) Directive { return Directive{Kind: DirectiveLimit, Count: n} }

// Skip creates a skip directive.
func Skip(n int) Directive { return Directive{Kind: DirectiveSkip, Count: n} }

// Sample creates a sample directive.
func Sample(n int) Directive { return Directive{Kind: DirectiveSample, Count: n} }

// OrderBy creates an order_by directive.
func OrderBy(orders ...Order) Directive {
	return Directive{Kind: DirectiveOrderBy, Orders: slices.Clone(orders)}
}

// Equal reports structural equality.
func (d Directive) Equal(other Directive) bool {
	if d.Kind != other.Kind || d.Count != other.Count || len(d.Orders) != len(other.Orders) {
		return false
	}
	for i := range d.Orders {
		if d.Orders[i].Desc != other.Orders[i].Desc || !d.Orders[i].Row.Equal(other.Orders[i].Row) {
			return false
		}
	}
	return true
}

// String renders the directive, e.g. limit(10) or order_by(name desc).
func (d Directive) String() string {
	if d.Kind != DirectiveOrderBy {
		return d.Kind.String() + "(" + strconv.Itoa(d.Count) + ")"
	}
	parts := make([]string, len(d.Orders))
	for i, o := range d.Orders {
		parts[i] = o.Row.Name()
		if o.Desc {
			parts[i] += " desc"
		}
	}
	return "order_by(" + strings.Join(parts, ", ") + ")"
}

func (d Directive) validate() error {
	switch d.Kind {
	case DirectiveLimit, DirectiveSkip:
		if d.Count < 0 {
			return NewBuildError(ErrCodeInvalidSampling, "count must not be negative", "directive", d.Kind.String())
		}
	case DirectiveSample:
		if d.Count <= 0 {
			return NewBuildError(ErrCodeInvalidSampling, "sample size must be positive", "directive", d.Kind.String())
		}
	case DirectiveOrderBy:
		if len(d.Orders) == 0 {
			return NewBuildError(ErrCodeInvalidSampling, "order_by requires at least one key")
		}
		for _, o := range d.Orders {
			if o.Row.IsZero() {
				return NewBuildError(ErrCodeInvalidSampling, "order_by key without row reference")
			}
		}
	default:
		return NewBuildError(ErrCodeInvalidSampling, "unknown sampling directive", "directive", d.Kind.String())
	}
	return nil
}

// Sampling is the ordered directive list of a statement.
type Sampling []Directive

// Has reports whether a directive of kind k is present.
func (s Sampling) Has(k DirectiveKind) bool {
	return slices.ContainsFunc(s, func(d Directive) bool { return d.Kind == k })
}

// Find returns the first directive of kind k.
func (s Sampling) Find(k DirectiveKind) (Directive, bool) {
	for _, d := range s {
		if d.Kind == k {
			return d, true
		}
	}
	return Directive{}, false
}

// Append returns a new list with d added at the end.
//
// Every kind may appear once, and limit and sample exclude each other on
// a single statement.
func (s Sampling) Append(d Directive) (Sampling, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if s.Has(d.Kind) {
		return nil, NewBuildError(ErrCodeInvalidSampling, "directive already set on statement", "directive", d.Kind.String())
	}
	if (d.Kind == DirectiveLimit && s.Has(DirectiveSample)) || (d.Kind == DirectiveSample && s.Has(DirectiveLimit)) {
		return nil, NewBuildError(ErrCodeInvalidSampling, "limit and sample are mutually exclusive", "directive", d.Kind.String())
	}
	out := make(Sampling, len(s), len(s)+1)
	copy(out, s)
	return append(out, d), nil
}

// MergeSampling concatenates the directives of two conjoined statements.
//
// The union may combine a limit from one side with a sample from the
// other, but the same kind appearing on both sides is an error.
func MergeSampling(a, b Sampling) (Sampling, error) {
	if len(b) == 0 {
		return slices.Clone(a), nil
	}
	if len(a) == 0 {
		return slices.Clone(b), nil
	}
	for _, d := range b {
		if a.Has(d.Kind) {
			return nil, NewBuildError(ErrCodeInvalidSampling, "both conjoined statements set the same directive", "directive", d.Kind.String())
		}
	}
	out := make(Sampling, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...), nil
}

// Equal reports element-wise equality.
func (s Sampling) Equal(other Sampling) bool {
	return slices.EqualFunc(s, other, Directive.Equal)
}

// String renders the list, e.g. limit(10).sample(3).
func (s Sampling) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return strings.Join(parts, ".")
}

// WithDirective returns a copy of s carrying d after its existing
// directives. Directives on a table scan turn it into an And node without
// children; Empty ignores directives.
func WithDirective(s Statement, d Directive) (Statement, error) {
	switch x := s.(type) {
	case *Empty:
		return x, nil
	case *TableScan:
		sampling, err := Sampling(nil).Append(d)
		if err != nil {
			return nil, err
		}
		return &And{Sampling: sampling, Model: x.Model}, nil
	case *Binary:
		if x.err != nil {
			return nil, x.err
		}
		sampling, err := x.Sampling.Append(d)
		if err != nil {
			return nil, err
		}
		return x.withSampling(sampling), nil
	case *And:
		sampling, err := x.Sampling.Append(d)
		if err != nil {
			return nil, err
		}
		c := x.clone()
		c.Sampling = sampling
		return c, nil
	default:
		return nil, NewBuildError(ErrCodeUnknownNode, fmt.Sprintf("cannot attach directive to %T", s))
	}
}
