package memstore

import (
	"context"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
)

// Processor builds Plans for a Store.
type Processor struct {
	parser.Unsupported[*Plan] // change feeds

	store *Store
}

var _ parser.OperationProcessor[*Plan] = (*Processor)(nil)

// Processor returns a processor whose update plans write to s.
func (s *Store) Processor() *Processor {
	return &Processor{store: s}
}

// Capabilities implements parser.FilterProcessor. Sampling is always
// emulated.
func (p *Processor) Capabilities() parser.Capabilities {
	return parser.Capabilities{
		IndexSelection: true,
		NativeSampling: false,
		PreHooks:       true,
		PostHooks:      true,
	}
}

// BuildTableQuery implements parser.FilterProcessor.
func (p *Processor) BuildTableQuery(m *model.Model) (*Plan, error) {
	return &Plan{Model: m.Name}, nil
}

// BuildEmptyQuery implements parser.FilterProcessor.
func (p *Processor) BuildEmptyQuery(m *model.Model) (*Plan, error) {
	return &Plan{Model: m.Name, Empty: true}, nil
}

// SecondaryIndexQuery implements parser.FilterProcessor.
func (p *Processor) SecondaryIndexQuery(q *Plan, _ *model.Model, idx index.Definition, stmts []*query.Binary) (*Plan, error) {
	def := idx
	q.Index = &def
	q.IndexStmts = append(q.IndexStmts, stmts...)
	return q, nil
}

// ProcessSimple implements parser.FilterProcessor.
func (p *Processor) ProcessSimple(q *Plan, _ *model.Model, stmt *query.Binary) (*Plan, error) {
	q.Filters = append(q.Filters, stmt)
	return q, nil
}

// ProcessComplicated implements parser.FilterProcessor.
func (p *Processor) ProcessComplicated(q *Plan, _ *model.Model, stmt *query.Binary) (*Plan, error) {
	q.Filters = append(q.Filters, stmt)
	return q, nil
}

// ProcessSampling implements parser.FilterProcessor. Sample directives
// never reach it: the parser emulates them.
func (p *Processor) ProcessSampling(q *Plan, m *model.Model, d query.Directive) (*Plan, error) {
	if d.Kind == query.DirectiveSample {
		return q, query.NewBuildError(query.ErrCodeUnsupportedCapability, "native sampling not supported by backend", "model", m.Name)
	}
	q.Directives = append(q.Directives, d)
	return q, nil
}

// AddPreProcessingHook implements parser.FilterProcessor.
func (p *Processor) AddPreProcessingHook(q *Plan, hook parser.PreHook) (*Plan, error) {
	q.Pre = append(q.Pre, hook)
	return q, nil
}

// AddPostProcessingHook implements parser.FilterProcessor.
func (p *Processor) AddPostProcessingHook(q *Plan, hook parser.PostHook) (*Plan, error) {
	q.Post = append(q.Post, hook)
	return q, nil
}

// ProcessAggregate implements parser.OperationProcessor.
func (p *Processor) ProcessAggregate(q *Plan, _ *model.Model, op *query.Aggregate) (*Plan, error) {
	q.Post = append(q.Post, func(docs []ir.IRObject) ([]ir.IRObject, error) {
		return []ir.IRObject{{"value": reduce(op.Func, op.Row, docs)}}, nil
	})
	q.steps = append(q.steps, string(op.Func)+"("+target(op.Row)+")")
	return q, nil
}

// ProcessGroupAggregate implements parser.OperationProcessor.
func (p *Processor) ProcessGroupAggregate(q *Plan, _ *model.Model, op *query.GroupAggregate) (*Plan, error) {
	q.Post = append(q.Post, func(docs []ir.IRObject) ([]ir.IRObject, error) {
		return groupReduce(op, docs), nil
	})
	keys := make([]string, len(op.GroupBy))
	for i, r := range op.GroupBy {
		keys[i] = r.Name()
	}
	q.steps = append(q.steps, "group("+joinNames(keys)+") "+string(op.Func)+"("+target(op.Row)+")")
	return q, nil
}

// ProcessUpdate implements parser.OperationProcessor. The write runs as
// a pre-processing hook over the documents the plan selects.
func (p *Processor) ProcessUpdate(q *Plan, m *model.Model, op *query.Update) (*Plan, error) {
	if p.store == nil {
		return q, query.NewBuildError(query.ErrCodeUnsupportedCapability, "update without a store", "model", m.Name)
	}
	if len(q.Post) > 0 {
		return q, query.NewBuildError(query.ErrCodeUnsupportedCapability,
			"update over post-processed results", "model", m.Name)
	}
	selection := q.clone()
	store := p.store
	q.Pre = append(q.Pre, func(ctx context.Context) error {
		ids, err := store.selectIDs(ctx, selection)
		if err != nil {
			return err
		}
		return store.update(selection.Model, ids, op.Set)
	})
	q.steps = append(q.steps, "update")
	return q, nil
}
