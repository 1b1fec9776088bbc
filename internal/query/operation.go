package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/docq/internal/ir"
)

// Operation wraps a filter statement with a post-filter operation. The
// filter keeps its own algebra; operations never merge.
//
// This is a sealed interface - only types in this package implement it.
type Operation interface {
	operationNode() // Marker method - seals interface to this package

	// Source returns the wrapped filter statement.
	Source() Statement

	// String renders the operation for plans and logs.
	String() string
}

// AggregateFunc names an aggregation function.
type AggregateFunc string

const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
)

// ParseAggregateFunc resolves an aggregation function by name.
func ParseAggregateFunc(s string) (AggregateFunc, error) {
	switch f := AggregateFunc(strings.ToLower(s)); f {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
		return f, nil
	default:
		return "", NewBuildError(ErrCodeUnknownNode, "unknown aggregate function", "func", s)
	}
}

// Aggregate reduces the filtered documents to one value. Row is unused by
// count and required by every other function.
type Aggregate struct {
	Filter Statement
	Func   AggregateFunc
	Row    *Row
}

// GroupAggregate reduces the filtered documents per distinct GroupBy
// tuple.
type GroupAggregate struct {
	Filter  Statement
	GroupBy []Row
	Func    AggregateFunc
	Row     *Row
}

// Changes subscribes to changes of the filtered documents.
type Changes struct {
	Filter         Statement
	IncludeInitial bool
}

// Update sets top-level fields on every filtered document.
type Update struct {
	Filter Statement
	Set    map[string]ir.IRValue
}

func (*Aggregate) operationNode()      {}
func (*GroupAggregate) operationNode() {}
func (*Changes) operationNode()        {}
func (*Update) operationNode()         {}

// Source implements Operation.
func (a *Aggregate) Source() Statement { return a.Filter }

// Source implements Operation.
func (g *GroupAggregate) Source() Statement { return g.Filter }

// Source implements Operation.
func (c *Changes) Source() Statement { return c.Filter }

// Source implements Operation.
func (u *Update) Source() Statement { return u.Filter }

// NewAggregate creates an aggregate operation. row may be nil for count.
func NewAggregate(filter Statement, fn AggregateFunc, row *Row) (*Aggregate, error) {
	if err := checkAggregate(filter, fn, row); err != nil {
		return nil, err
	}
	return &Aggregate{Filter: filter, Func: fn, Row: row}, nil
}

// NewGroupAggregate creates a grouped aggregate operation.
func NewGroupAggregate(filter Statement, groupBy []Row, fn AggregateFunc, row *Row) (*GroupAggregate, error) {
	if err := checkAggregate(filter, fn, row); err != nil {
		return nil, err
	}
	if len(groupBy) == 0 {
		return nil, NewBuildError(ErrCodeUnknownNode, "group aggregate requires at least one grouping row")
	}
	return &GroupAggregate{Filter: filter, GroupBy: append([]Row(nil), groupBy...), Func: fn, Row: row}, nil
}

// NewUpdate creates an update operation. Values are coerced with ir.FromGo.
func NewUpdate(filter Statement, set map[string]any) (*Update, error) {
	if filter == nil {
		return nil, NewBuildError(ErrCodeMissingModel, "update without filter")
	}
	if err := deferredErr(filter); err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, NewBuildError(ErrCodeTypeMismatch, "update without assignments")
	}
	values := make(map[string]ir.IRValue, len(set))
	for k, raw := range set {
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, NewBuildError(ErrCodeTypeMismatch, err.Error(), "field", k)
		}
		values[k] = v
	}
	return &Update{Filter: filter, Set: values}, nil
}

func checkAggregate(filter Statement, fn AggregateFunc, row *Row) error {
	if filter == nil {
		return NewBuildError(ErrCodeMissingModel, "aggregate without filter")
	}
	if err := deferredErr(filter); err != nil {
		return err
	}
	if _, err := ParseAggregateFunc(string(fn)); err != nil {
		return err
	}
	if fn != AggCount && (row == nil || row.IsZero()) {
		return NewBuildError(ErrCodeTypeMismatch, "aggregate requires a row", "func", string(fn))
	}
	return nil
}

// String implements Operation.
func (a *Aggregate) String() string {
	return fmt.Sprintf("%s(%s) of %s", a.Func, aggTarget(a.Row), a.Filter)
}

// String implements Operation.
func (g *GroupAggregate) String() string {
	keys := make([]string, len(g.GroupBy))
	for i, r := range g.GroupBy {
		keys[i] = r.Name()
	}
	return fmt.Sprintf("%s(%s) by %s of %s", g.Func, aggTarget(g.Row), strings.Join(keys, ", "), g.Filter)
}

// String implements Operation.
func (c *Changes) String() string {
	if c.IncludeInitial {
		return "changes(initial) of " + c.Filter.String()
	}
	return "changes of " + c.Filter.String()
}

// String implements Operation.
func (u *Update) String() string {
	keys := make([]string, 0, len(u.Set))
	for k := range u.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " = " + ir.ValueKey(u.Set[k])
	}
	return "update(" + strings.Join(parts, ", ") + ") of " + u.Filter.String()
}

func aggTarget(r *Row) string {
	if r == nil {
		return "*"
	}
	return r.Name()
}
