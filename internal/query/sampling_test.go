package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampling_Append(t *testing.T) {
	s, err := Sampling(nil).Append(Skip(5))
	require.NoError(t, err)
	s, err = s.Append(Limit(10))
	require.NoError(t, err)
	s, err = s.Append(OrderBy(Desc(xRow())))
	require.NoError(t, err)

	assert.Equal(t, "skip(5).limit(10).order_by(x desc)", s.String())
}

func TestSampling_AppendErrors(t *testing.T) {
	limited := Sampling{Limit(10)}
	sampled := Sampling{Sample(3)}
	ordered := Sampling{OrderBy(Asc(xRow()))}

	tests := []struct {
		name string
		base Sampling
		d    Directive
	}{
		{"sample after limit", limited, Sample(3)},
		{"limit after sample", sampled, Limit(10)},
		{"double limit", limited, Limit(1)},
		{"double order_by", ordered, OrderBy(Asc(xRow()))},
		{"negative limit", nil, Limit(-1)},
		{"zero sample", nil, Sample(0)},
		{"empty order_by", nil, OrderBy()},
		{"order_by zero row", nil, OrderBy(Order{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.base.Append(tt.d)
			require.Error(t, err)
			assert.True(t, HasCode(err, ErrCodeInvalidSampling))
		})
	}
}

func TestSampling_AppendDoesNotAlias(t *testing.T) {
	base := make(Sampling, 1, 4)
	base[0] = Skip(1)

	a, err := base.Append(Limit(1))
	require.NoError(t, err)
	b, err := base.Append(Sample(2))
	require.NoError(t, err)

	assert.Equal(t, "skip(1).limit(1)", a.String())
	assert.Equal(t, "skip(1).sample(2)", b.String())
}

func TestMergeSampling(t *testing.T) {
	got, err := MergeSampling(Sampling{Limit(10)}, Sampling{Sample(3)})
	require.NoError(t, err)
	assert.Equal(t, "limit(10).sample(3)", got.String())

	got, err = MergeSampling(nil, Sampling{Skip(2)})
	require.NoError(t, err)
	assert.Equal(t, "skip(2)", got.String())

	_, err = MergeSampling(Sampling{Sample(1)}, Sampling{Sample(3)})
	assert.True(t, HasCode(err, ErrCodeInvalidSampling))

	_, err = MergeSampling(Sampling{OrderBy(Asc(xRow()))}, Sampling{Skip(1), OrderBy(Desc(xRow()))})
	assert.True(t, HasCode(err, ErrCodeInvalidSampling))
}

func TestWithDirective(t *testing.T) {
	t.Run("table scan becomes childless and", func(t *testing.T) {
		got, err := WithDirective(&TableScan{Table: "users", Model: "User"}, Limit(3))
		require.NoError(t, err)

		and, ok := got.(*And)
		require.True(t, ok)
		assert.Empty(t, and.Children)
		assert.Equal(t, "User", and.ModelName())
		assert.Equal(t, "all(User) | limit(3)", and.String())
	})

	t.Run("empty ignores directives", func(t *testing.T) {
		empty := &Empty{Model: "User"}
		got, err := WithDirective(empty, Limit(3))
		require.NoError(t, err)
		assert.Same(t, empty, got)
	})

	t.Run("binary copy", func(t *testing.T) {
		orig := xRow().Eq(1)
		got, err := WithDirective(orig, Sample(2))
		require.NoError(t, err)

		assert.Empty(t, orig.Sampling)
		assert.Equal(t, "x == 1 | sample(2)", got.String())
	})

	t.Run("and rejects second limit", func(t *testing.T) {
		and := &And{Children: []*Binary{xRow().Eq(1)}, Sampling: Sampling{Limit(1)}, Model: "User"}
		_, err := WithDirective(and, Sample(2))
		assert.True(t, HasCode(err, ErrCodeInvalidSampling))
	})

	t.Run("invalid binary", func(t *testing.T) {
		_, err := WithDirective(xRow().Between(1, "z", true, true), Limit(1))
		assert.True(t, HasCode(err, ErrCodeTypeMismatch))
	})
}
