package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
	"github.com/roach88/docq/internal/testutil"
)

func userDocs(t *testing.T) []ir.IRObject {
	return []ir.IRObject{
		testutil.Object(t, map[string]any{"name": "ann", "age": 31, "city": "Oslo", "active": true, "tags": []any{"a", "b"}}),
		testutil.Object(t, map[string]any{"name": "bob", "age": 25, "city": "Bergen", "active": false}),
		testutil.Object(t, map[string]any{"name": "cid", "age": 40, "city": "Oslo", "tags": []any{}}),
		testutil.Object(t, map[string]any{"name": "dee", "city": nil, "active": true}),
		testutil.Object(t, map[string]any{"name": "Eve", "age": 25, "city": "Trondheim", "friends": []any{"ann", "bob"}}),
		testutil.Object(t, map[string]any{"name": "ann", "age": 19, "city": "Oslo"}),
		testutil.Object(t, map[string]any{"name": "fay", "age": 33, "city": "Oslo", "friends": []any{"fay"}}),
	}
}

func seeded(t *testing.T, m *model.Model) (*Store, *parser.Parser[*Plan]) {
	t.Helper()
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Ensure(ctx, m))
	_, err := s.Insert(ctx, m, userDocs(t)...)
	require.NoError(t, err)

	reg, err := model.NewRegistry(m)
	require.NoError(t, err)
	return s, parser.New[*Plan](s.Processor(), parser.QueryContext{Models: reg}, parser.WithSeed(7))
}

func TestEnsure_BuildsPostings(t *testing.T) {
	m := testutil.UsersModel("greedy")
	s, _ := seeded(t, m)

	assert.Equal(t, 7, s.Len("User"))
	assert.Equal(t, 6, s.Postings("User", "name"))
	// dee has no age and gets an entry of its own.
	assert.Equal(t, 6, s.Postings("User", "age"))
	assert.Equal(t, 7, s.Postings("User", "age:name"))
	assert.Zero(t, s.Postings("User", "city"))
}

func TestEnsure_RebuildKeepsDocuments(t *testing.T) {
	m := testutil.UsersModel("single")
	s, _ := seeded(t, m)

	require.NoError(t, s.Ensure(context.Background(), testutil.UsersModel("greedy")))
	assert.Equal(t, 7, s.Len("User"))
	assert.Equal(t, 7, s.Postings("User", "age:name"))
}

func TestEnsure_RejectsUnknownPolicy(t *testing.T) {
	err := New().Ensure(context.Background(), testutil.UsersModel("nope"))
	assert.ErrorContains(t, err, "unknown index policy")
}

func TestInsert_RequiresEnsure(t *testing.T) {
	_, err := New().Insert(context.Background(), testutil.UsersModel(""), ir.IRObject{})
	assert.ErrorContains(t, err, "not ensured")
}

func TestInsert_CopiesDocuments(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)
	ctx := context.Background()

	doc := testutil.Object(t, map[string]any{"name": "gus", "age": 50})
	ids, err := s.Insert(ctx, m, doc)
	require.NoError(t, err)
	assert.Equal(t, []uint32{8}, ids)
	doc["age"] = ir.IRInt(1)

	docs, err := parser.Fetch(ctx, p, s, m.Row("age").Eq(50))
	require.NoError(t, err)
	assert.Equal(t, []string{"gus"}, testutil.Names(docs))
}

// TestExecute_MatchesLocalEvaluation expects the same documents from the
// store as from query.Filter, under every index policy.
func TestExecute_MatchesLocalEvaluation(t *testing.T) {
	for _, policy := range []string{"single", "singlemore", "greedy", "greedyless"} {
		t.Run(policy, func(t *testing.T) {
			m := testutil.UsersModel(policy)
			s, p := seeded(t, m)
			docs := userDocs(t)
			age, name, city := m.Row("age"), m.Row("name"), m.Row("city")

			conj := func(a, b query.Statement) query.Statement {
				out, err := query.Conjoin(a, b)
				require.NoError(t, err)
				return out
			}

			stmts := []query.Statement{
				m.Scan(),
				age.Eq(25),
				age.Ne(25),
				age.Gt(25),
				age.In(19, 40),
				age.Between(25, 40, true, false),
				city.Eq(nil),
				name.Match("^[a-c]"),
				m.Row("tags").Index(1).Eq("b"),
				name.In(m.Row("friends")),
				conj(age.Ge(20), city.Eq("Oslo")),
				conj(age.Ge(20), name.Eq("ann")),
				conj(name.In("ann", "bob"), age.Lt(30)),
				conj(age.Gt(20), age.Lt(20)),
			}

			for _, stmt := range stmts {
				want, err := query.Filter(stmt, docs)
				require.NoError(t, err, stmt.String())

				got, err := parser.Fetch(context.Background(), p, s, stmt)
				require.NoError(t, err, stmt.String())
				assert.Equal(t, testutil.Names(want), testutil.Names(got), stmt.String())
			}
		})
	}
}

func TestParse_UsesIndex(t *testing.T) {
	m := testutil.UsersModel("single")
	_, p := seeded(t, m)
	age := m.Row("age")

	stmt, err := query.Conjoin(age.Ge(30), m.Row("city").Eq("Oslo"))
	require.NoError(t, err)
	res, err := p.Parse(stmt)
	require.NoError(t, err)

	require.NotNil(t, res.Query.Index)
	assert.Equal(t, "age", res.Query.Index.Name)
	assert.Len(t, res.Query.IndexStmts, 1)
	assert.Len(t, res.Query.Filters, 1)
	assert.Contains(t, res.Query.String(), "index(age) [")
	assert.Contains(t, res.Query.String(), "| filter [city ")
}

func TestExecute_SamplingDirectives(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)
	ctx := context.Background()
	city, age := m.Row("city"), m.Row("age")

	tests := []struct {
		name  string
		build *query.Builder
		want  []string
	}{
		{"limit then skip", query.Where(m.Scan()).Limit(3).Skip(1), []string{"bob", "cid"}},
		{"skip then limit", query.Where(m.Scan()).Skip(1).Limit(3), []string{"bob", "cid", "dee"}},
		{"skip past end", query.Where(m.Scan()).Skip(10), []string{}},
		{"order desc", query.Where(city.Eq("Oslo")).OrderBy(query.Desc(age)), []string{"cid", "fay", "ann", "ann"}},
		{"order missing first", query.Where(m.Scan()).OrderBy(query.Asc(age)).Limit(2), []string{"dee", "ann"}},
		{"order then limit", query.Where(city.Eq("Oslo")).OrderBy(query.Asc(age)).Limit(2), []string{"ann", "ann"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := tt.build.Build()
			require.NoError(t, err)
			docs, err := parser.Fetch(ctx, p, s, stmt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, testutil.Names(docs))
		})
	}
}

func TestExecute_EmulatedSample(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)

	stmt, err := query.Where(m.Row("city").Eq("Oslo")).Sample(2).Build()
	require.NoError(t, err)
	res, err := p.Parse(stmt)
	require.NoError(t, err)
	assert.True(t, res.Emulated)
	assert.Contains(t, res.Query.String(), "limit(10)")

	docs, err := s.Execute(context.Background(), res.Query, false)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Subset(t, []string{"ann", "cid", "ann", "fay"}, testutil.Names(docs))
}

func TestProcessSampling_RejectsNativeSample(t *testing.T) {
	m := testutil.UsersModel("single")
	_, err := New().Processor().ProcessSampling(&Plan{Model: m.Name}, m, query.Sample(2))
	assert.True(t, query.HasCode(err, query.ErrCodeUnsupportedCapability))
}

func TestExecute_Aggregates(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)
	ctx := context.Background()
	oslo := m.Row("city").Eq("Oslo")
	age := m.Row("age")

	tests := []struct {
		name string
		fn   query.AggregateFunc
		row  *query.Row
		want ir.IRValue
	}{
		{"count", query.AggCount, nil, ir.IRInt(4)},
		{"count row", query.AggCount, &age, ir.IRInt(4)},
		{"sum", query.AggSum, &age, ir.IRInt(123)},
		{"avg", query.AggAvg, &age, ir.IRFloat(30.75)},
		{"min", query.AggMin, &age, ir.IRInt(19)},
		{"max", query.AggMax, &age, ir.IRInt(40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := query.NewAggregate(oslo, tt.fn, tt.row)
			require.NoError(t, err)
			docs, err := parser.Apply(ctx, p, s, op)
			require.NoError(t, err)
			assert.Equal(t, []ir.IRObject{{"value": tt.want}}, docs)
		})
	}
}

func TestExecute_AggregateOverNothing(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)
	age := m.Row("age")

	op, err := query.NewAggregate(m.Row("city").Eq("Paris"), query.AggAvg, &age)
	require.NoError(t, err)
	docs, err := parser.Apply(context.Background(), p, s, op)
	require.NoError(t, err)
	assert.Equal(t, []ir.IRObject{{"value": ir.IRNull{}}}, docs)
}

func TestExecute_GroupAggregate(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)

	op, err := query.NewGroupAggregate(m.Scan(), []query.Row{m.Row("city")}, query.AggCount, nil)
	require.NoError(t, err)
	docs, err := parser.Apply(context.Background(), p, s, op)
	require.NoError(t, err)
	assert.Equal(t, []ir.IRObject{
		{"city": ir.IRNull{}, "value": ir.IRInt(1)},
		{"city": ir.IRString("Bergen"), "value": ir.IRInt(1)},
		{"city": ir.IRString("Oslo"), "value": ir.IRInt(4)},
		{"city": ir.IRString("Trondheim"), "value": ir.IRInt(1)},
	}, docs)
}

func TestExecute_Update(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)
	ctx := context.Background()

	op, err := query.NewUpdate(m.Row("name").Eq("bob"), map[string]any{"age": 26, "city": "Stavanger"})
	require.NoError(t, err)
	docs, err := parser.Apply(ctx, p, s, op)
	require.NoError(t, err)
	assert.Nil(t, docs)

	docs, err = parser.Fetch(ctx, p, s, m.Row("age").Eq(26))
	require.NoError(t, err, "postings follow the update")
	require.Len(t, docs, 1)
	assert.Equal(t, ir.IRString("Stavanger"), docs[0]["city"])

	docs, err = parser.Fetch(ctx, p, s, m.Row("age").Eq(25))
	require.NoError(t, err)
	assert.Equal(t, []string{"Eve"}, testutil.Names(docs))
}

func TestExecute_UpdateRespectsDirectives(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)
	ctx := context.Background()

	stmt, err := query.Where(m.Row("city").Eq("Oslo")).Limit(1).Build()
	require.NoError(t, err)
	op, err := query.NewUpdate(stmt, map[string]any{"active": false})
	require.NoError(t, err)
	_, err = parser.Apply(ctx, p, s, op)
	require.NoError(t, err)

	docs, err := parser.Fetch(ctx, p, s, m.Row("active").Eq(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob"}, testutil.Names(docs))
}

func TestParseOperation_ChangesUnsupported(t *testing.T) {
	m := testutil.UsersModel("single")
	_, p := seeded(t, m)

	_, err := p.ParseOperation(&query.Changes{Filter: m.Scan()})
	assert.True(t, query.HasCode(err, query.ErrCodeUnsupportedCapability))
}

func TestExecute_Hooks(t *testing.T) {
	m := testutil.UsersModel("single")
	s, _ := seeded(t, m)
	ctx := context.Background()

	plan := &Plan{Model: m.Name}
	plan.Pre = append(plan.Pre, func(context.Context) error { return errors.New("denied") })
	_, err := s.Execute(ctx, plan, false)
	assert.ErrorContains(t, err, "denied")

	plan = &Plan{Model: m.Name}
	plan.Post = append(plan.Post, func(docs []ir.IRObject) ([]ir.IRObject, error) {
		return docs[:1], nil
	})
	docs, err := s.Execute(ctx, plan, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann"}, testutil.Names(docs))

	docs, err = s.Execute(ctx, &Plan{Model: m.Name}, true)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestExecute_EmptyResultIsNotNil(t *testing.T) {
	m := testutil.UsersModel("single")
	s, p := seeded(t, m)

	docs, err := parser.Fetch(context.Background(), p, s, &query.Empty{Model: "User"})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestExecute_CanceledContext(t *testing.T) {
	m := testutil.UsersModel("single")
	s, _ := seeded(t, m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Execute(ctx, &Plan{Model: m.Name}, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlan_String(t *testing.T) {
	plan := &Plan{Model: "User", Directives: query.Sampling{query.Limit(3)}, steps: []string{"count(*)"}}
	assert.Equal(t, "scan(User) | limit(3) | count(*)", plan.String())
	assert.Equal(t, "empty(User)", (&Plan{Model: "User", Empty: true}).String())
}
