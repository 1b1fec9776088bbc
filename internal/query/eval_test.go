package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docq/internal/ir"
)

func userDoc() ir.IRObject {
	return ir.IRObject{
		"name": ir.IRString("alice"),
		"age":  ir.IRInt(34),
		"tags": ir.IRArray{ir.IRString("admin"), ir.IRString("ops")},
		"profile": ir.IRObject{
			"city":  ir.IRString("Lisbon"),
			"score": ir.IRFloat(7.5),
		},
		"min_age": ir.IRInt(18),
		"role":    ir.IRString("admin"),
	}
}

func TestEvaluate_Binary(t *testing.T) {
	user := func(path ...string) Row { return NewRow("User", false, path...) }
	name, age, tags, profile := user("name"), user("age"), user("tags"), user("profile")

	tests := []struct {
		name string
		stmt Statement
		want bool
	}{
		{"eq", name.Eq("alice"), true},
		{"eq float against int", age.Eq(34.0), true},
		{"ne", name.Ne("bob"), true},
		{"lt", age.Lt(40), true},
		{"le boundary", age.Le(34), true},
		{"gt false", age.Gt(34), false},
		{"ge", age.Ge(34), true},
		{"ordering across kinds", age.Lt("z"), false},
		{"in", name.In("bob", "alice"), true},
		{"in slice", age.In([]int{1, 2, 3}), false},
		{"bound", age.Between(30, 40, true, false), true},
		{"bound open edge", age.Between(34, 40, false, true), false},
		{"match", name.Match("^al"), true},
		{"match non string", age.Match("3"), false},
		{"nested field", profile.Field("city").Eq("Lisbon"), true},
		{"nested order", profile.Field("score").Gt(7), true},
		{"array index", tags.Index(1).Eq("ops"), true},
		{"array index out of range", tags.Index(5).Eq("ops"), false},
		{"missing field", user("email").Ne("x"), false},
		{"row to row order", age.Gt(user("min_age")), true},
		{"row to row missing", age.Gt(user("max_age")), false},
		{"row in array row", user("role").In(tags), true},
		{"table scan", &TableScan{Table: "users", Model: "User"}, true},
		{"empty", &Empty{Model: "User"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stmt.Evaluate(userDoc())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_And(t *testing.T) {
	age := NewRow("User", false, "age")
	name := NewRow("User", false, "name")

	stmt, err := ConjoinAll(age.Ge(18), name.Match("^a"))
	require.NoError(t, err)
	ok, err := stmt.Evaluate(userDoc())
	require.NoError(t, err)
	assert.True(t, ok)

	stmt, err = Conjoin(stmt, name.Ne("alice"))
	require.NoError(t, err)
	ok, err = stmt.Evaluate(userDoc())
	require.NoError(t, err)
	assert.False(t, ok)

	all := &And{Model: "User", Sampling: Sampling{Limit(1)}}
	ok, err = all.Evaluate(userDoc())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_Unsupported(t *testing.T) {
	age := NewRow("User", false, "age")

	t.Run("bound against row", func(t *testing.T) {
		b := &Binary{Kind: KindBound, Left: age, Right: NewRow("User", false, "min_age")}
		_, err := b.Evaluate(userDoc())
		assert.True(t, HasCode(err, ErrCodeEvaluationUnsupported))
	})

	t.Run("unknown kind", func(t *testing.T) {
		b := &Binary{Kind: Kind(99), Left: age, Right: Literal{Value: ir.IRInt(1)}}
		_, err := b.Evaluate(userDoc())
		assert.True(t, HasCode(err, ErrCodeEvaluationUnsupported))
	})

	t.Run("deferred error", func(t *testing.T) {
		_, err := age.Match("(").Evaluate(userDoc())
		assert.True(t, HasCode(err, ErrCodeTypeMismatch))
	})
}

func TestFilter(t *testing.T) {
	age := NewRow("User", false, "age")
	docs := []ir.IRObject{
		{"age": ir.IRInt(10)},
		{"age": ir.IRInt(20)},
		{"name": ir.IRString("no age")},
		{"age": ir.IRInt(30)},
	}

	got, err := Filter(age.Ge(20), docs)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ir.IRInt(20), got[0]["age"])
	assert.Equal(t, ir.IRInt(30), got[1]["age"])
}
