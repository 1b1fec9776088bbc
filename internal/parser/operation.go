package parser

import (
	"fmt"
	"log/slog"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/query"
)

// ParseOperation builds the backend query for a post-filter operation:
// the filter is parsed like Parse, then the operation is applied by the
// processor. The processor must implement OperationProcessor.
func (p *Parser[Q]) ParseOperation(op query.Operation) (*Result[Q], error) {
	proc, ok := p.proc.(OperationProcessor[Q])
	if !ok {
		return nil, query.NewBuildError(query.ErrCodeUnsupportedCapability, "backend does not process operations")
	}
	if op == nil || op.Source() == nil {
		return nil, query.NewBuildError(query.ErrCodeMissingModel, "operation without filter")
	}
	adapted, err := query.AdaptOperation(op, p.qctx.adapter())
	if err != nil {
		return nil, err
	}

	// The filter is already adapted; parse it with an identity adapter
	// so literals are not serialized twice.
	inner := &Parser[Q]{
		proc:         p.proc,
		qctx:         QueryContext{Adapter: passthrough{p.qctx.adapter()}, Models: p.qctx.Models},
		ids:          p.ids,
		rnd:          p.rnd,
		sampleFactor: p.sampleFactor,
		preHooks:     p.preHooks,
	}
	res, err := inner.parse(adapted.Source())
	if err != nil {
		return nil, err
	}

	switch x := adapted.(type) {
	case *query.Aggregate:
		res.Query, err = proc.ProcessAggregate(res.Query, res.Model, x)
	case *query.GroupAggregate:
		res.Query, err = proc.ProcessGroupAggregate(res.Query, res.Model, x)
	case *query.Changes:
		res.Query, err = proc.ProcessChanges(res.Query, res.Model, x)
	case *query.Update:
		res.Query, err = proc.ProcessUpdate(res.Query, res.Model, x)
	default:
		err = query.NewBuildError(query.ErrCodeUnknownNode, fmt.Sprintf("cannot parse operation %T", adapted))
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("operation built",
		"build_id", res.BuildID,
		"model", res.Model.Name,
		"operation", adapted.String(),
		"index", res.Index,
	)
	return res, nil
}

// passthrough keeps values as they are but still maps row names back
// through the wrapped adapter.
type passthrough struct {
	query.BackendAdapter
}

func (passthrough) EnsureCompatibility(v ir.IRValue) (ir.IRValue, error) { return v, nil }
func (passthrough) SerializeValue(v ir.IRValue) (ir.IRValue, error)      { return v, nil }
func (passthrough) SerializeRowName(name string) string                  { return name }
