package parser

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/query"
)

// DefaultSampleFactor multiplies the sample size into the limit used when
// a backend without native sampling emulates a sample directive.
const DefaultSampleFactor = 5

// QueryContext carries what a parse needs besides the statement: the
// backend adapter and the model lookup table.
type QueryContext struct {
	Adapter query.BackendAdapter
	Models  *model.Registry
}

func (c QueryContext) adapter() query.BackendAdapter {
	if c.Adapter == nil {
		return query.DefaultAdapter{}
	}
	return c.Adapter
}

// Result is a built backend query plus the decisions that shaped it.
type Result[Q any] struct {
	Query     Q
	BuildID   string
	Model     *model.Model
	Statement query.Statement // adapted tree
	Index     string
	Residual  []string
	Emulated  bool // a sample directive was emulated
}

// Parser converts statements into backend-native queries of type Q.
//
// Thread-safety: a Parser holds no per-parse state and is safe for
// concurrent use as long as its processor is.
type Parser[Q any] struct {
	proc         FilterProcessor[Q]
	qctx         QueryContext
	ids          IDGenerator
	rnd          *lockedRand
	sampleFactor int
	preHooks     []PreHook
}

// Option configures a Parser.
type Option func(*options)

type options struct {
	ids          IDGenerator
	seed         *uint64
	sampleFactor int
	preHooks     []PreHook
}

// WithIDGenerator sets the build id generator.
//
// Default: UUIDv7Generator. Use NewFixedGenerator for golden tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithSeed makes emulated sample draws deterministic.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = &seed }
}

// WithSampleFactor sets the emulation limit multiplier.
//
// Default: 5 (DefaultSampleFactor).
func WithSampleFactor(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sampleFactor = n
		}
	}
}

// WithPreHooks attaches hooks to every built query. The backend must
// declare PreHooks support.
func WithPreHooks(hooks ...PreHook) Option {
	return func(o *options) { o.preHooks = append(o.preHooks, hooks...) }
}

// New creates a Parser for proc.
func New[Q any](proc FilterProcessor[Q], qctx QueryContext, opts ...Option) *Parser[Q] {
	o := options{ids: UUIDv7Generator{}, sampleFactor: DefaultSampleFactor}
	for _, opt := range opts {
		opt(&o)
	}
	var src *rand.Rand
	if o.seed != nil {
		src = rand.New(rand.NewPCG(*o.seed, *o.seed))
	} else {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Parser[Q]{
		proc:         proc,
		qctx:         qctx,
		ids:          o.ids,
		rnd:          &lockedRand{r: src},
		sampleFactor: o.sampleFactor,
		preHooks:     slices.Clone(o.preHooks),
	}
}

// Parse builds the backend query for stmt.
//
// The statement is adapted, then translated in a fixed order: table
// query, secondary index, simple statements, complicated statements and
// finally the sampling directives in declaration order.
func (p *Parser[Q]) Parse(stmt query.Statement) (*Result[Q], error) {
	res, err := p.parse(stmt)
	if err != nil {
		slog.Debug("query build failed", "error", err)
		return nil, err
	}
	slog.Debug("query built",
		"build_id", res.BuildID,
		"model", res.Model.Name,
		"index", res.Index,
		"residual", res.Residual,
		"directives", res.Statement.Directives().String(),
		"emulated_sample", res.Emulated,
	)
	return res, nil
}

func (p *Parser[Q]) parse(stmt query.Statement) (*Result[Q], error) {
	if stmt == nil {
		return nil, query.NewBuildError(query.ErrCodeMissingModel, "no statement to parse")
	}
	m, err := p.resolveModel(stmt.ModelName())
	if err != nil {
		return nil, err
	}
	adapted, err := query.Adapt(stmt, p.qctx.adapter())
	if err != nil {
		return nil, err
	}
	res := &Result[Q]{BuildID: p.ids.Generate(), Model: m, Statement: adapted}

	switch adapted.(type) {
	case *query.TableScan:
		res.Query, err = p.proc.BuildTableQuery(m)
		if err != nil {
			return nil, err
		}
		return res, p.attachPreHooks(res)
	case *query.Empty:
		res.Query, err = p.proc.BuildEmptyQuery(m)
		if err != nil {
			return nil, err
		}
		return res, nil
	case *query.Binary, *query.And:
	default:
		return nil, query.NewBuildError(query.ErrCodeUnknownNode, fmt.Sprintf("cannot parse %T", adapted))
	}

	q, err := p.proc.BuildTableQuery(m)
	if err != nil {
		return nil, err
	}
	simple, complicated, err := query.SplitQuery(adapted)
	if err != nil {
		return nil, err
	}
	directives := adapted.Directives()

	caps := p.proc.Capabilities()
	if caps.IndexSelection {
		q, simple, err = p.applyIndex(res, q, m, simple, directives)
		if err != nil {
			return nil, err
		}
	}
	for _, s := range simple {
		if q, err = p.proc.ProcessSimple(q, m, s); err != nil {
			return nil, err
		}
	}
	for _, s := range complicated {
		if q, err = p.proc.ProcessComplicated(q, m, s); err != nil {
			return nil, err
		}
	}
	if q, err = p.applySampling(res, q, m, directives); err != nil {
		return nil, err
	}
	res.Query = q
	return res, p.attachPreHooks(res)
}

func (p *Parser[Q]) resolveModel(name string) (*model.Model, error) {
	if name == "" {
		return nil, query.NewBuildError(query.ErrCodeMissingModel, "statement has no model reference")
	}
	if p.qctx.Models == nil {
		return nil, query.NewBuildError(query.ErrCodeMissingModel, "no model registry in query context", "model", name)
	}
	m, ok := p.qctx.Models.Lookup(name)
	if !ok {
		return nil, query.NewBuildError(query.ErrCodeMissingModel, "unknown model", "model", name)
	}
	return m, nil
}

// fieldName maps an adapted top-level row back to its model field name.
func (p *Parser[Q]) fieldName(r query.Row) (string, bool) {
	if r.IsNested() {
		return "", false
	}
	return p.qctx.adapter().DeserializeRowName(r.Name()), true
}

// applyIndex selects a secondary index for the simple statements on
// indexed fields and hands them to the processor. It returns the
// statements left for regular filtering.
func (p *Parser[Q]) applyIndex(res *Result[Q], q Q, m *model.Model, simple []*query.Binary, directives query.Sampling) (Q, []*query.Binary, error) {
	policy, err := index.ForModel(m)
	if err != nil {
		return q, nil, err
	}

	byField := make(map[string][]*query.Binary)
	var fields []string
	for _, s := range simple {
		name, ok := p.fieldName(s.Left)
		if !ok || !m.IsSecondaryIndex(name) {
			continue
		}
		if _, seen := byField[name]; !seen {
			fields = append(fields, name)
		}
		byField[name] = append(byField[name], s)
	}
	if len(fields) == 0 {
		return q, simple, nil
	}

	ordered := false
	if order, ok := directives.Find(query.DirectiveOrderBy); ok {
		fields, ordered = orderFirst(fields, p.orderFields(order))
	}

	name, residual := policy.SelectSecondaryIndex(m, fields, ordered)
	res.Index, res.Residual = name, residual
	if name == "" {
		return q, simple, nil
	}
	def, ok := index.Find(policy.BuildIndexList(m), name)
	if !ok {
		return q, nil, fmt.Errorf("policy %s selected undeclared index %q", policy.Name(), name)
	}

	var indexed, rest []*query.Binary
	for _, s := range simple {
		field, ok := p.fieldName(s.Left)
		if ok && slices.Contains(def.Fields, field) && byField[field] != nil {
			indexed = append(indexed, s)
		} else {
			rest = append(rest, s)
		}
	}
	q, err = p.proc.SecondaryIndexQuery(q, m, def, indexed)
	if err != nil {
		return q, nil, err
	}
	return q, rest, nil
}

func (p *Parser[Q]) orderFields(d query.Directive) []string {
	out := make([]string, 0, len(d.Orders))
	for _, o := range d.Orders {
		if name, ok := p.fieldName(o.Row); ok {
			out = append(out, name)
		}
	}
	return out
}

// orderFirst moves the fields named by the order_by keys to the front,
// in key order. It reports whether any key was one of fields.
func orderFirst(fields, keys []string) ([]string, bool) {
	out := make([]string, 0, len(fields))
	for _, k := range keys {
		if slices.Contains(fields, k) && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	moved := len(out) > 0
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, moved
}

// applySampling folds the directives onto q in declaration order. On
// backends without native sampling a sample directive becomes a limit of
// sample*factor, unless a limit was already applied, plus a post hook
// drawing the sample from the fetched documents.
func (p *Parser[Q]) applySampling(res *Result[Q], q Q, m *model.Model, directives query.Sampling) (Q, error) {
	caps := p.proc.Capabilities()
	limited := false
	var err error
	for _, d := range directives {
		switch {
		case d.Kind == query.DirectiveSample && !caps.NativeSampling:
			if !caps.PostHooks {
				return q, unsupported("sample emulation (post-processing hook)", m)
			}
			if !limited {
				if q, err = p.proc.ProcessSampling(q, m, query.Limit(d.Count*p.sampleFactor)); err != nil {
					return q, err
				}
				limited = true
			}
			if q, err = p.proc.AddPostProcessingHook(q, p.sampleHook(d.Count)); err != nil {
				return q, err
			}
			res.Emulated = true
		default:
			if q, err = p.proc.ProcessSampling(q, m, d); err != nil {
				return q, err
			}
			if d.Kind == query.DirectiveLimit {
				limited = true
			}
		}
	}
	return q, nil
}

func (p *Parser[Q]) attachPreHooks(res *Result[Q]) error {
	if len(p.preHooks) == 0 {
		return nil
	}
	if !p.proc.Capabilities().PreHooks {
		return unsupported("pre-processing hook", res.Model)
	}
	var err error
	for _, h := range p.preHooks {
		if res.Query, err = p.proc.AddPreProcessingHook(res.Query, h); err != nil {
			return err
		}
	}
	return nil
}

// sampleHook draws n documents at random, keeping their fetched order.
func (p *Parser[Q]) sampleHook(n int) PostHook {
	return func(docs []ir.IRObject) ([]ir.IRObject, error) {
		if len(docs) <= n {
			return docs, nil
		}
		picked := p.rnd.perm(len(docs))[:n]
		sort.Ints(picked)
		out := make([]ir.IRObject, n)
		for i, idx := range picked {
			out[i] = docs[idx]
		}
		return out, nil
	}
}

// lockedRand serializes access to a rand.Rand shared by post hooks.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) perm(n int) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Perm(n)
}
