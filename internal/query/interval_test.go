package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/docq/internal/ir"
)

func iv(l, r int64, lc, rc bool) Interval {
	return NewInterval(ir.IRInt(l), ir.IRInt(r), lc, rc)
}

func TestInterval_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   Interval
		want bool
	}{
		{"closed", iv(1, 5, true, true), true},
		{"open", iv(1, 5, false, false), true},
		{"point closed", iv(5, 5, true, true), true},
		{"point half open", iv(5, 5, true, false), false},
		{"point open", iv(5, 5, false, false), false},
		{"reversed", iv(6, 5, true, true), false},
		{"mixed numbers", NewInterval(ir.IRInt(1), ir.IRFloat(1.5), true, false), true},
		{"incomparable", NewInterval(ir.IRInt(1), ir.IRString("z"), true, true), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Valid())
		})
	}
}

func TestInterval_Contains(t *testing.T) {
	half := iv(1, 5, true, false)

	assert.True(t, half.Contains(ir.IRInt(1)))
	assert.True(t, half.Contains(ir.IRFloat(4.99)))
	assert.False(t, half.Contains(ir.IRInt(5)))
	assert.False(t, half.Contains(ir.IRInt(0)))
	assert.False(t, half.Contains(ir.IRString("3")))
	assert.False(t, half.Contains(ir.IRNull{}))
}

func TestInterval_ContainsInterval_PartialOrder(t *testing.T) {
	intervals := []Interval{
		iv(1, 5, true, true),
		iv(1, 5, false, true),
		iv(1, 5, true, false),
		iv(1, 5, false, false),
		iv(2, 4, true, true),
		iv(0, 10, false, false),
		iv(3, 8, true, false),
		iv(5, 5, true, true),
	}

	for _, a := range intervals {
		assert.True(t, a.ContainsInterval(a), "reflexive: %s", a)
	}

	for _, a := range intervals {
		for _, b := range intervals {
			if a.ContainsInterval(b) && b.ContainsInterval(a) {
				assert.True(t, a.Equal(b), "antisymmetric: %s %s", a, b)
			}
		}
	}

	for _, a := range intervals {
		for _, b := range intervals {
			for _, c := range intervals {
				if a.ContainsInterval(b) && b.ContainsInterval(c) {
					assert.True(t, a.ContainsInterval(c), "transitive: %s %s %s", a, b, c)
				}
			}
		}
	}
}

func TestInterval_ContainsInterval_Endpoints(t *testing.T) {
	assert.True(t, iv(1, 5, true, true).ContainsInterval(iv(1, 5, false, false)))
	assert.False(t, iv(1, 5, false, false).ContainsInterval(iv(1, 5, true, false)))
	assert.True(t, iv(0, 10, false, false).ContainsInterval(iv(1, 5, true, true)))
	assert.False(t, iv(1, 5, true, true).ContainsInterval(iv(3, 8, true, false)))
}

func TestInterval_CloneIsIndependent(t *testing.T) {
	orig := iv(1, 5, true, true)
	c := orig.Clone()
	c.LeftClosed = false
	c.Right = ir.IRInt(4)

	assert.True(t, orig.LeftClosed)
	assert.Equal(t, ir.IRInt(5), orig.Right)
}

func TestInterval_String(t *testing.T) {
	assert.Equal(t, "[1, 5)", iv(1, 5, true, false).String())
	assert.Equal(t, `("a", "m"]`, NewInterval(ir.IRString("a"), ir.IRString("m"), false, true).String())
}
