package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
)

// Processor translates statements into SQLite stages over a
// (id INTEGER PRIMARY KEY, doc TEXT) table per model.
//
// Processor is stateless and safe for concurrent use.
type Processor struct {
	caps parser.Capabilities
}

var _ parser.OperationProcessor[*Stage] = (*Processor)(nil)

// Option configures a Processor.
type Option func(*Processor)

// WithEmulatedSampling disables ORDER BY RANDOM() sampling so sample
// directives are emulated by the parser.
func WithEmulatedSampling() Option {
	return func(p *Processor) { p.caps.NativeSampling = false }
}

// NewProcessor creates a SQLite processor.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{caps: parser.Capabilities{
		IndexSelection: true,
		NativeSampling: true,
		PreHooks:       true,
		PostHooks:      true,
	}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capabilities implements parser.FilterProcessor.
func (p *Processor) Capabilities() parser.Capabilities { return p.caps }

// BuildTableQuery implements parser.FilterProcessor.
func (p *Processor) BuildTableQuery(m *model.Model) (*Stage, error) {
	return NewStage(m.Table), nil
}

// BuildEmptyQuery implements parser.FilterProcessor.
func (p *Processor) BuildEmptyQuery(m *model.Model) (*Stage, error) {
	s := NewStage(m.Table)
	s.Where = []string{"0"}
	return s, nil
}

// SecondaryIndexQuery implements parser.FilterProcessor. The statements
// become WHERE terms; the index is forced with INDEXED BY only when the
// leading index column has a statement SQLite can seek on.
func (p *Processor) SecondaryIndexQuery(q *Stage, m *model.Model, idx index.Definition, stmts []*query.Binary) (*Stage, error) {
	leading := false
	for _, s := range stmts {
		if err := p.where(q, s); err != nil {
			return q, err
		}
		if s.Left.Root() == idx.Fields[0] && sargable(s) {
			leading = true
		}
	}
	if leading && q.Inner == nil {
		q.IndexedBy = IndexName(m.Table, idx)
	}
	return q, nil
}

// ProcessSimple implements parser.FilterProcessor.
func (p *Processor) ProcessSimple(q *Stage, _ *model.Model, stmt *query.Binary) (*Stage, error) {
	return q, p.where(q, stmt)
}

// ProcessComplicated implements parser.FilterProcessor.
func (p *Processor) ProcessComplicated(q *Stage, _ *model.Model, stmt *query.Binary) (*Stage, error) {
	return q, p.where(q, stmt)
}

func (p *Processor) where(q *Stage, stmt *query.Binary) error {
	cond, params, err := condition(stmt)
	if err != nil {
		return err
	}
	q.Where = append(q.Where, cond)
	q.Params = append(q.Params, params...)
	return nil
}

// ProcessSampling implements parser.FilterProcessor. A directive that
// cannot follow what the stage already applies wraps the stage in a
// sub-select first.
func (p *Processor) ProcessSampling(q *Stage, m *model.Model, d query.Directive) (*Stage, error) {
	switch d.Kind {
	case query.DirectiveOrderBy:
		if q.limited() || q.Random {
			q = q.wrap()
		}
		keys := make([]string, 0, len(d.Orders))
		for _, o := range d.Orders {
			k, err := orderKey(o)
			if err != nil {
				return q, err
			}
			keys = append(keys, k)
		}
		q.OrderBy = keys
	case query.DirectiveLimit:
		if q.Limit >= 0 {
			q = q.wrap()
		}
		q.Limit = d.Count
	case query.DirectiveSkip:
		if q.limited() {
			q = q.wrap()
		}
		q.Offset = d.Count
	case query.DirectiveSample:
		if !p.caps.NativeSampling {
			return q, query.NewBuildError(query.ErrCodeUnsupportedCapability, "native sampling disabled", "model", m.Name)
		}
		if q.limited() {
			q = q.wrap()
		}
		q.OrderBy = nil
		q.Random = true
		q.Limit = d.Count
	default:
		return q, query.NewBuildError(query.ErrCodeInvalidSampling, "unknown directive", "directive", d.Kind.String())
	}
	return q, nil
}

// AddPreProcessingHook implements parser.FilterProcessor.
func (p *Processor) AddPreProcessingHook(q *Stage, hook parser.PreHook) (*Stage, error) {
	q.Pre = append(q.Pre, hook)
	return q, nil
}

// AddPostProcessingHook implements parser.FilterProcessor.
func (p *Processor) AddPostProcessingHook(q *Stage, hook parser.PostHook) (*Stage, error) {
	q.Post = append(q.Post, hook)
	return q, nil
}

// ProcessAggregate implements parser.OperationProcessor.
func (p *Processor) ProcessAggregate(q *Stage, m *model.Model, op *query.Aggregate) (*Stage, error) {
	clause, err := aggregateOf(q, m, op.Func, op.Row)
	if err != nil {
		return q, err
	}
	q.Shape, q.aggregate = ShapeAggregate, clause
	return q, nil
}

// ProcessGroupAggregate implements parser.OperationProcessor. Each result
// row carries the group values under the group row names plus "value".
func (p *Processor) ProcessGroupAggregate(q *Stage, m *model.Model, op *query.GroupAggregate) (*Stage, error) {
	clause, err := aggregateOf(q, m, op.Func, op.Row)
	if err != nil {
		return q, err
	}
	for _, r := range op.GroupBy {
		f, err := fieldOf(r)
		if err != nil {
			return q, err
		}
		clause.groupBy = append(clause.groupBy, f.value)
		clause.groupNames = append(clause.groupNames, r.Name())
	}
	q.Shape, q.aggregate = ShapeAggregate, clause
	return q, nil
}

func aggregateOf(q *Stage, m *model.Model, fn query.AggregateFunc, row *query.Row) (*aggregateClause, error) {
	if len(q.Post) > 0 {
		return nil, query.NewBuildError(query.ErrCodeUnsupportedCapability,
			"aggregate over post-processed results", "model", m.Name)
	}
	clause := &aggregateClause{fn: fn}
	if row != nil {
		f, err := fieldOf(*row)
		if err != nil {
			return nil, err
		}
		clause.target = f.value
	}
	return clause, nil
}

// ProcessChanges implements parser.OperationProcessor. SQLite has no
// change feed.
func (p *Processor) ProcessChanges(q *Stage, m *model.Model, _ *query.Changes) (*Stage, error) {
	return q, query.NewBuildError(query.ErrCodeUnsupportedCapability, "change feed not supported by backend", "model", m.Name)
}

// ProcessUpdate implements parser.OperationProcessor. Values are written
// with json_set; keys are applied in sorted order.
func (p *Processor) ProcessUpdate(q *Stage, m *model.Model, op *query.Update) (*Stage, error) {
	if len(q.Post) > 0 {
		return q, query.NewBuildError(query.ErrCodeUnsupportedCapability,
			"update over post-processed results", "model", m.Name)
	}
	keys := make([]string, 0, len(op.Set))
	for k := range op.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	u := &updateClause{}
	for _, k := range keys {
		path, err := jsonPath([]string{k})
		if err != nil {
			return q, err
		}
		data, err := ir.MarshalCanonical(op.Set[k])
		if err != nil {
			return q, query.NewBuildError(query.ErrCodeTypeMismatch, err.Error(), "field", k)
		}
		u.assignments = append(u.assignments, path+", json(?)")
		u.params = append(u.params, string(data))
	}
	q.Shape, q.update = ShapeUpdate, u
	return q, nil
}

// IndexName returns the SQLite index name maintained for def on table.
func IndexName(table string, def index.Definition) string {
	return "idx_" + table + "_" + strings.ReplaceAll(def.Name, index.Separator, "_")
}

// TableDDL returns the statement creating the document table of m.
func TableDDL(m *model.Model) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, doc TEXT NOT NULL)", quoteIdent(m.Table))
}

// IndexDDL returns the statement creating the expression index for def.
func IndexDDL(m *model.Model, def index.Definition) (string, error) {
	cols := make([]string, 0, len(def.Fields))
	for _, name := range def.Fields {
		path, err := jsonPath([]string{name})
		if err != nil {
			return "", err
		}
		cols = append(cols, "json_extract(doc, "+path+")")
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdent(IndexName(m.Table, def)), quoteIdent(m.Table), strings.Join(cols, ", ")), nil
}

// InsertSQL returns the statement inserting one canonical JSON document
// into the table of m.
func InsertSQL(m *model.Model) string {
	return fmt.Sprintf("INSERT INTO %s (doc) VALUES (?)", quoteIdent(m.Table))
}
