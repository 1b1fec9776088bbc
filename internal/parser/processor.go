package parser

import (
	"context"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/query"
)

// Capabilities declares which optional features a backend supports.
type Capabilities struct {
	// IndexSelection enables secondary index selection.
	IndexSelection bool

	// NativeSampling means the backend draws samples itself. Without it,
	// sample directives are emulated with a limit and a post hook.
	NativeSampling bool

	// PreHooks and PostHooks declare support for processing hooks.
	PreHooks  bool
	PostHooks bool
}

// PreHook runs before the query executes.
type PreHook func(ctx context.Context) error

// PostHook rewrites the fetched documents after the query executes.
type PostHook func(docs []ir.IRObject) ([]ir.IRObject, error)

// FilterProcessor translates statements into a backend-native query Q.
// Every method returns the query to continue with; implementations may
// modify q in place and return it.
type FilterProcessor[Q any] interface {
	Capabilities() Capabilities

	// BuildTableQuery returns a query selecting every document of m.
	BuildTableQuery(m *model.Model) (Q, error)

	// BuildEmptyQuery returns a query selecting nothing.
	BuildEmptyQuery(m *model.Model) (Q, error)

	// SecondaryIndexQuery restricts q through idx using the statements on
	// the index fields.
	SecondaryIndexQuery(q Q, m *model.Model, idx index.Definition, stmts []*query.Binary) (Q, error)

	// ProcessSimple filters q with a field-against-literal statement.
	ProcessSimple(q Q, m *model.Model, stmt *query.Binary) (Q, error)

	// ProcessComplicated filters q with a field-against-field statement.
	ProcessComplicated(q Q, m *model.Model, stmt *query.Binary) (Q, error)

	// ProcessSampling applies one sampling directive to q.
	ProcessSampling(q Q, m *model.Model, d query.Directive) (Q, error)

	AddPreProcessingHook(q Q, hook PreHook) (Q, error)
	AddPostProcessingHook(q Q, hook PostHook) (Q, error)
}

// OperationProcessor is a FilterProcessor that also translates
// post-filter operations.
type OperationProcessor[Q any] interface {
	FilterProcessor[Q]

	ProcessAggregate(q Q, m *model.Model, op *query.Aggregate) (Q, error)
	ProcessGroupAggregate(q Q, m *model.Model, op *query.GroupAggregate) (Q, error)
	ProcessChanges(q Q, m *model.Model, op *query.Changes) (Q, error)
	ProcessUpdate(q Q, m *model.Model, op *query.Update) (Q, error)
}

// Executor runs a built query. With withoutFetch set the query is executed
// for its effects only and no documents are returned.
type Executor[Q any] interface {
	Execute(ctx context.Context, q Q, withoutFetch bool) ([]ir.IRObject, error)
}

// Unsupported is embedded by processors lacking optional features. Each
// method fails with UNSUPPORTED_CAPABILITY.
type Unsupported[Q any] struct{}

// SecondaryIndexQuery implements FilterProcessor.
func (Unsupported[Q]) SecondaryIndexQuery(q Q, m *model.Model, idx index.Definition, _ []*query.Binary) (Q, error) {
	return q, unsupported("secondary index query", m, "index", idx.Name)
}

// AddPreProcessingHook implements FilterProcessor.
func (Unsupported[Q]) AddPreProcessingHook(q Q, _ PreHook) (Q, error) {
	return q, unsupported("pre-processing hook", nil)
}

// AddPostProcessingHook implements FilterProcessor.
func (Unsupported[Q]) AddPostProcessingHook(q Q, _ PostHook) (Q, error) {
	return q, unsupported("post-processing hook", nil)
}

// ProcessChanges implements OperationProcessor.
func (Unsupported[Q]) ProcessChanges(q Q, m *model.Model, _ *query.Changes) (Q, error) {
	return q, unsupported("change feed", m)
}

func unsupported(what string, m *model.Model, details ...string) error {
	if m != nil {
		details = append(details, "model", m.Name)
	}
	return query.NewBuildError(query.ErrCodeUnsupportedCapability, what+" not supported by backend", details...)
}
