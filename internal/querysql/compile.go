package querysql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
)

// Shape selects what a compiled Stage returns.
type Shape int

const (
	// ShapeDocuments returns (id, doc) rows.
	ShapeDocuments Shape = iota
	// ShapeAggregate returns one row per group with a "value" column.
	ShapeAggregate
	// ShapeUpdate rewrites the selected documents and returns nothing.
	ShapeUpdate
)

// Stage is one SELECT over a model table or over a nested Stage.
//
// A Stage is built incrementally by the Processor. Directives that cannot
// be folded into the current stage (a skip after a limit, an order after
// a limit) wrap it in a new outer stage so declaration order is kept.
//
// CRITICAL: every SELECT carries an ORDER BY ending in "id ASC" so results
// are deterministic. All values are bound as parameters.
type Stage struct {
	Table     string
	Inner     *Stage
	IndexedBy string
	Where     []string
	Params    []any
	OrderBy   []string
	Random    bool
	Limit     int // -1 for no limit
	Offset    int

	Shape     Shape
	aggregate *aggregateClause
	update    *updateClause

	// Pre and Post are run by the executor around the statement.
	Pre  []parser.PreHook
	Post []parser.PostHook
}

type aggregateClause struct {
	fn         query.AggregateFunc
	target     string
	groupBy    []string
	groupNames []string
}

type updateClause struct {
	assignments []string
	params      []any
}

// NewStage returns a stage selecting every document of table.
func NewStage(table string) *Stage {
	return &Stage{Table: table, Limit: -1}
}

func (s *Stage) limited() bool {
	return s.Limit >= 0 || s.Offset > 0
}

// wrap moves s into a sub-select and returns the outer stage. Hooks move
// to the outer stage; the inner order is kept unless it was random.
func (s *Stage) wrap() *Stage {
	outer := &Stage{
		Table: s.Table,
		Inner: s,
		Limit: -1,
		Shape: s.Shape,
		Pre:   s.Pre,
		Post:  s.Post,
	}
	if !s.Random {
		outer.OrderBy = slices.Clone(s.OrderBy)
	}
	s.Pre, s.Post = nil, nil
	return outer
}

// SQL compiles the stage to a parameterized statement.
func (s *Stage) SQL() (string, []any) {
	switch s.Shape {
	case ShapeAggregate:
		return s.aggregateSQL()
	case ShapeUpdate:
		return s.updateSQL()
	default:
		return s.selectSQL()
	}
}

// String renders the SQL followed by its parameters.
func (s *Stage) String() string {
	sql, params := s.SQL()
	if len(params) == 0 {
		return sql
	}
	return fmt.Sprintf("%s %v", sql, params)
}

func (s *Stage) selectSQL() (string, []any) {
	var b strings.Builder
	var params []any

	b.WriteString("SELECT id, doc FROM ")
	if s.Inner != nil {
		inner, innerParams := s.Inner.selectSQL()
		b.WriteString("(" + inner + ")")
		params = append(params, innerParams...)
	} else {
		b.WriteString(quoteIdent(s.Table))
		if s.IndexedBy != "" {
			b.WriteString(" INDEXED BY " + quoteIdent(s.IndexedBy))
		}
	}
	if len(s.Where) > 0 {
		b.WriteString(" WHERE " + strings.Join(s.Where, " AND "))
		params = append(params, s.Params...)
	}

	// MANDATORY: always order
	b.WriteString(" ORDER BY " + s.orderClause())

	if s.limited() {
		b.WriteString(" LIMIT ?")
		params = append(params, s.Limit)
		if s.Offset > 0 {
			b.WriteString(" OFFSET ?")
			params = append(params, s.Offset)
		}
	}
	return b.String(), params
}

// orderClause returns the ORDER BY keys with id as the final tiebreaker.
func (s *Stage) orderClause() string {
	if s.Random {
		return "RANDOM()"
	}
	keys := append(slices.Clone(s.OrderBy), "id ASC")
	return strings.Join(keys, ", ")
}

func (s *Stage) aggregateSQL() (string, []any) {
	inner, params := s.selectSQL()
	a := s.aggregate

	cols := make([]string, 0, len(a.groupBy)+1)
	for i, g := range a.groupBy {
		cols = append(cols, fmt.Sprintf("%s AS %s", g, quoteIdent(a.groupNames[i])))
	}
	cols = append(cols, a.valueExpr()+` AS "value"`)

	sql := "SELECT " + strings.Join(cols, ", ") + " FROM (" + inner + ")"
	if len(a.groupBy) > 0 {
		keys := strings.Join(a.groupBy, ", ")
		sql += " GROUP BY " + keys + " ORDER BY " + keys
	}
	return sql, params
}

func (a *aggregateClause) valueExpr() string {
	if a.fn == query.AggCount {
		if a.target == "" {
			return "COUNT(*)"
		}
		return "COUNT(" + a.target + ")"
	}
	return strings.ToUpper(string(a.fn)) + "(" + a.target + ")"
}

func (s *Stage) updateSQL() (string, []any) {
	inner, innerParams := s.selectSQL()
	u := s.update
	sql := fmt.Sprintf("UPDATE %s SET doc = json_set(doc, %s) WHERE id IN (SELECT id FROM (%s))",
		quoteIdent(s.Table), strings.Join(u.assignments, ", "), inner)
	params := append(slices.Clone(u.params), innerParams...)
	return sql, params
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
