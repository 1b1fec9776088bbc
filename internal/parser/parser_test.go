package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/query"
	"github.com/roach88/docq/internal/testutil"
)

// recQuery records every processor call made while building it.
type recQuery struct {
	calls []string
	pre   []PreHook
	post  []PostHook
}

func (q *recQuery) add(format ...string) *recQuery {
	q.calls = append(q.calls, strings.Join(format, " "))
	return q
}

// recorder is a FilterProcessor and OperationProcessor over *recQuery.
type recorder struct {
	caps Capabilities
}

func (r *recorder) Capabilities() Capabilities { return r.caps }

func (r *recorder) BuildTableQuery(m *model.Model) (*recQuery, error) {
	return (&recQuery{}).add("table", m.Table), nil
}

func (r *recorder) BuildEmptyQuery(m *model.Model) (*recQuery, error) {
	return (&recQuery{}).add("empty", m.Table), nil
}

func (r *recorder) SecondaryIndexQuery(q *recQuery, _ *model.Model, idx index.Definition, stmts []*query.Binary) (*recQuery, error) {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.String()
	}
	return q.add("index", idx.Name, "["+strings.Join(parts, ", ")+"]"), nil
}

func (r *recorder) ProcessSimple(q *recQuery, _ *model.Model, s *query.Binary) (*recQuery, error) {
	return q.add("simple", s.String()), nil
}

func (r *recorder) ProcessComplicated(q *recQuery, _ *model.Model, s *query.Binary) (*recQuery, error) {
	return q.add("complicated", s.String()), nil
}

func (r *recorder) ProcessSampling(q *recQuery, _ *model.Model, d query.Directive) (*recQuery, error) {
	return q.add("sampling", d.String()), nil
}

func (r *recorder) AddPreProcessingHook(q *recQuery, h PreHook) (*recQuery, error) {
	q.pre = append(q.pre, h)
	return q.add("pre"), nil
}

func (r *recorder) AddPostProcessingHook(q *recQuery, h PostHook) (*recQuery, error) {
	q.post = append(q.post, h)
	return q.add("post"), nil
}

func (r *recorder) ProcessAggregate(q *recQuery, _ *model.Model, op *query.Aggregate) (*recQuery, error) {
	return q.add("aggregate", string(op.Func)), nil
}

func (r *recorder) ProcessGroupAggregate(q *recQuery, _ *model.Model, op *query.GroupAggregate) (*recQuery, error) {
	return q.add("group", string(op.Func)), nil
}

func (r *recorder) ProcessChanges(q *recQuery, _ *model.Model, _ *query.Changes) (*recQuery, error) {
	return q.add("changes"), nil
}

func (r *recorder) ProcessUpdate(q *recQuery, _ *model.Model, op *query.Update) (*recQuery, error) {
	return q.add("update", op.String()), nil
}

// Execute implements Executor: documents pass through the post hooks.
func (r *recorder) Execute(ctx context.Context, q *recQuery, withoutFetch bool) ([]ir.IRObject, error) {
	for _, h := range q.pre {
		if err := h(ctx); err != nil {
			return nil, err
		}
	}
	if withoutFetch {
		return nil, nil
	}
	docs := make([]ir.IRObject, 10)
	for i := range docs {
		docs[i] = ir.IRObject{"n": ir.IRInt(i)}
	}
	var err error
	for _, h := range q.post {
		if docs, err = h(docs); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// bare supports neither hooks, index selection nor operations.
type bare struct {
	Unsupported[*recQuery]
	recorder
}

func (b *bare) Capabilities() Capabilities { return Capabilities{} }

func (b *bare) SecondaryIndexQuery(q *recQuery, m *model.Model, idx index.Definition, s []*query.Binary) (*recQuery, error) {
	return b.Unsupported.SecondaryIndexQuery(q, m, idx, s)
}

func (b *bare) AddPreProcessingHook(q *recQuery, h PreHook) (*recQuery, error) {
	return b.Unsupported.AddPreProcessingHook(q, h)
}

func (b *bare) AddPostProcessingHook(q *recQuery, h PostHook) (*recQuery, error) {
	return b.Unsupported.AddPostProcessingHook(q, h)
}

func testModel(policy string) *model.Model {
	return &model.Model{
		Name:  "User",
		Table: "users",
		Fields: []model.Field{
			{Name: "a", SecondaryIndex: true},
			{Name: "b", SecondaryIndex: true},
			{Name: "c"},
		},
		IndexPolicy: policy,
	}
}

func newTestParser(t *testing.T, proc FilterProcessor[*recQuery], m *model.Model, opts ...Option) *Parser[*recQuery] {
	t.Helper()
	reg, err := model.NewRegistry(m)
	require.NoError(t, err)
	opts = append([]Option{WithIDGenerator(NewFixedGenerator("build-1")), WithSeed(7)}, opts...)
	return New[*recQuery](proc, QueryContext{Models: reg}, opts...)
}

func fullCaps() Capabilities {
	return Capabilities{IndexSelection: true, PreHooks: true, PostHooks: true}
}

func TestParse_SampleEmulationAfterLimit(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	limited, err := query.WithDirective(m.Row("c").Eq(1), query.Limit(10))
	require.NoError(t, err)
	sampled, err := query.WithDirective(m.Row("c").Ne(2), query.Sample(3))
	require.NoError(t, err)
	stmt, err := query.Conjoin(limited, sampled)
	require.NoError(t, err)
	require.Equal(t, "limit(10).sample(3)", stmt.Directives().String())

	res, err := p.Parse(stmt)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"table users",
		"simple c == 1",
		"sampling limit(10)",
		"post",
	}, res.Query.calls)
	assert.True(t, res.Emulated)
	assert.Equal(t, "build-1", res.BuildID)

	docs, err := (&recorder{}).Execute(context.Background(), res.Query, false)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i := 1; i < len(docs); i++ {
		assert.Less(t, int64(docs[i-1]["n"].(ir.IRInt)), int64(docs[i]["n"].(ir.IRInt)), "draw keeps fetched order")
	}
}

func TestParse_SampleEmulationClampsLimit(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	stmt, err := query.From("users", "User").Sample(3).Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"table users", "sampling limit(15)", "post"}, res.Query.calls)

	p = newTestParser(t, &recorder{caps: fullCaps()}, m, WithSampleFactor(2))
	res, err = p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"table users", "sampling limit(6)", "post"}, res.Query.calls)
}

func TestParse_NativeSampling(t *testing.T) {
	m := testModel("single")
	caps := fullCaps()
	caps.NativeSampling = true
	p := newTestParser(t, &recorder{caps: caps}, m)

	stmt, err := query.Where(m.Row("c").Gt(1)).Skip(2).Sample(3).Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"table users", "simple c > 1", "sampling skip(2)", "sampling sample(3)"}, res.Query.calls)
	assert.False(t, res.Emulated)
}

func TestParse_SampleEmulationNeedsPostHooks(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &bare{}, m)

	stmt, err := query.From("users", "User").Sample(3).Build()
	require.NoError(t, err)

	_, err = p.Parse(stmt)
	require.Error(t, err)
	assert.True(t, query.HasCode(err, query.ErrCodeUnsupportedCapability))
}

func TestParse_IndexSelection(t *testing.T) {
	m := testModel("greedy")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	stmt, err := query.Where(m.Row("b").Gt(2), m.Row("c").Eq(3), m.Row("a").Eq(1)).Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"table users",
		"index a:b [b > 2, a == 1]",
		"simple c == 3",
	}, res.Query.calls)
	assert.Equal(t, "a:b", res.Index)
	assert.Empty(t, res.Residual)
}

func TestParse_IndexResidual(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	stmt, err := query.Where(m.Row("a").Eq(1), m.Row("b").Lt(5)).Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Index)
	assert.Equal(t, []string{"b"}, res.Residual)
	assert.Equal(t, []string{"table users", "index a [a == 1]", "simple b < 5"}, res.Query.calls)
}

func TestParse_OrderedIndexSelection(t *testing.T) {
	m := testModel("greedy")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	stmt, err := query.Where(m.Row("a").Eq(1), m.Row("b").Gt(2)).
		OrderBy(query.Asc(m.Row("b"))).
		Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, "b", res.Index)
	assert.Equal(t, []string{"a"}, res.Residual)
	assert.Equal(t, []string{
		"table users",
		"index b [b > 2]",
		"simple a == 1",
		"sampling order_by(b)",
	}, res.Query.calls)
}

func TestParse_OrderByUnindexedFieldIsUnordered(t *testing.T) {
	m := testModel("greedy")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	for _, where := range [][]query.Statement{
		{m.Row("b").Eq(1), m.Row("a").Gt(2)},
		{m.Row("a").Gt(2), m.Row("b").Eq(1)},
	} {
		stmt, err := query.Where(where...).OrderBy(query.Desc(m.Row("c"))).Build()
		require.NoError(t, err)

		res, err := p.Parse(stmt)
		require.NoError(t, err)
		assert.Equal(t, "a:b", res.Index)
		assert.Empty(t, res.Residual)
	}
}

func TestOrderFirst(t *testing.T) {
	fields, moved := orderFirst([]string{"a", "b", "c"}, []string{"c", "x"})
	assert.Equal(t, []string{"c", "a", "b"}, fields)
	assert.True(t, moved)

	fields, moved = orderFirst([]string{"b", "a"}, []string{"x"})
	assert.Equal(t, []string{"b", "a"}, fields)
	assert.False(t, moved)
}

func TestParse_NoIndexSelectionWithoutCapability(t *testing.T) {
	m := testModel("greedy")
	caps := fullCaps()
	caps.IndexSelection = false
	p := newTestParser(t, &recorder{caps: caps}, m)

	stmt, err := query.Where(m.Row("a").Eq(1)).Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"table users", "simple a == 1"}, res.Query.calls)
	assert.Empty(t, res.Index)
}

func TestParse_ComplicatedStatements(t *testing.T) {
	m := testModel("greedy")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	stmt, err := query.Where(m.Row("a").Eq(m.Row("c")), m.Row("c").Match("^x")).Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"table users",
		`simple c =~ "^x"`,
		"complicated a == c",
	}, res.Query.calls)
}

func TestParse_Leaves(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	res, err := p.Parse(m.Scan())
	require.NoError(t, err)
	assert.Equal(t, []string{"table users"}, res.Query.calls)

	stmt, err := query.Where(m.Row("a").Eq(1), m.Row("a").Eq(2)).Build()
	require.NoError(t, err)
	res, err = p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty users"}, res.Query.calls)
}

func TestParse_Errors(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	t.Run("no model reference", func(t *testing.T) {
		_, err := p.Parse(query.NewRow("", false, "a").Eq(1))
		assert.True(t, query.HasCode(err, query.ErrCodeMissingModel))
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := p.Parse(query.NewRow("Order", false, "a").Eq(1))
		assert.True(t, query.HasCode(err, query.ErrCodeMissingModel))
	})

	t.Run("nil statement", func(t *testing.T) {
		_, err := p.Parse(nil)
		assert.True(t, query.HasCode(err, query.ErrCodeMissingModel))
	})

	t.Run("deferred coercion error", func(t *testing.T) {
		_, err := p.Parse(m.Row("a").Match("("))
		assert.True(t, query.HasCode(err, query.ErrCodeTypeMismatch))
	})

	t.Run("index selection without backend support", func(t *testing.T) {
		b := &bare{}
		pb := newTestParser(t, &forcedIndex{bare: b}, m)
		_, err := pb.Parse(m.Row("a").Eq(1))
		assert.True(t, query.HasCode(err, query.ErrCodeUnsupportedCapability))
	})
}

// forcedIndex declares index selection but inherits the unsupported
// secondary index query.
type forcedIndex struct{ *bare }

func (f *forcedIndex) Capabilities() Capabilities { return Capabilities{IndexSelection: true} }

func TestParse_PreHooks(t *testing.T) {
	m := testModel("single")
	ran := 0
	hook := func(context.Context) error { ran++; return nil }

	p := newTestParser(t, &recorder{caps: fullCaps()}, m, WithPreHooks(hook))
	res, err := p.Parse(m.Row("c").Eq(1))
	require.NoError(t, err)
	assert.Equal(t, "pre", res.Query.calls[len(res.Query.calls)-1])

	_, err = (&recorder{}).Execute(context.Background(), res.Query, true)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	pb := newTestParser(t, &bare{}, m, WithPreHooks(hook))
	_, err = pb.Parse(m.Row("c").Eq(1))
	assert.True(t, query.HasCode(err, query.ErrCodeUnsupportedCapability))
}

// prefixAdapter stores fields under an f_ prefix.
type prefixAdapter struct{ query.DefaultAdapter }

func (prefixAdapter) SerializeRowName(name string) string { return "f_" + name }

func (prefixAdapter) DeserializeRowName(name string) string { return strings.TrimPrefix(name, "f_") }

func TestParse_AdapterRowNames(t *testing.T) {
	m := testModel("single")
	reg, err := model.NewRegistry(m)
	require.NoError(t, err)
	p := New[*recQuery](&recorder{caps: fullCaps()}, QueryContext{Adapter: prefixAdapter{}, Models: reg})

	stmt, err := query.Where(m.Row("a").Eq(1), m.Row("c").Eq(2)).Build()
	require.NoError(t, err)

	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Index)
	assert.Equal(t, []string{"table users", "index a [f_a == 1]", "simple f_c == 2"}, res.Query.calls)
	assert.Len(t, res.BuildID, 36)
}

func TestParseOperation(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	agg, err := query.NewAggregate(m.Row("c").Gt(1), query.AggCount, nil)
	require.NoError(t, err)
	res, err := p.ParseOperation(agg)
	require.NoError(t, err)
	assert.Equal(t, []string{"table users", "simple c > 1", "aggregate count"}, res.Query.calls)

	upd, err := query.NewUpdate(m.Row("a").Eq(1), map[string]any{"c": "x"})
	require.NoError(t, err)
	res, err = p.ParseOperation(upd)
	require.NoError(t, err)
	assert.Equal(t, `update update(c = "x") of a == 1`, res.Query.calls[len(res.Query.calls)-1])

	docs, err := Apply[*recQuery](context.Background(), p, &recorder{}, upd)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestParseOperation_Unsupported(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &filterOnly{}, m)

	_, err := p.ParseOperation(&query.Changes{Filter: m.Scan()})
	assert.True(t, query.HasCode(err, query.ErrCodeUnsupportedCapability))
}

// filterOnly implements FilterProcessor and nothing else.
type filterOnly struct {
	Unsupported[*recQuery]
}

func (filterOnly) Capabilities() Capabilities { return Capabilities{} }

func (filterOnly) BuildTableQuery(*model.Model) (*recQuery, error) { return &recQuery{}, nil }

func (filterOnly) BuildEmptyQuery(*model.Model) (*recQuery, error) { return &recQuery{}, nil }

func (filterOnly) ProcessSimple(q *recQuery, _ *model.Model, _ *query.Binary) (*recQuery, error) {
	return q, nil
}

func (filterOnly) ProcessComplicated(q *recQuery, _ *model.Model, _ *query.Binary) (*recQuery, error) {
	return q, nil
}

func (filterOnly) ProcessSampling(q *recQuery, _ *model.Model, _ query.Directive) (*recQuery, error) {
	return q, nil
}

func TestFetch(t *testing.T) {
	m := testModel("single")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m)

	stmt, err := query.From("users", "User").Sample(4).Build()
	require.NoError(t, err)

	docs, err := Fetch[*recQuery](context.Background(), p, &recorder{}, stmt)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Empty(t, NewFixedGenerator().Generate())
}

func TestParse_BuildIDPerCall(t *testing.T) {
	m := testModel("single")
	ids := testutil.NewSequenceGenerator("q")
	p := newTestParser(t, &recorder{caps: fullCaps()}, m, WithIDGenerator(ids))

	for _, want := range []string{"q-1", "q-2"} {
		res, err := p.Parse(m.Scan())
		require.NoError(t, err)
		assert.Equal(t, want, res.BuildID)
	}
	assert.Equal(t, int64(2), ids.Current())
}
