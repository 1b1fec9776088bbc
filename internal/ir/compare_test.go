package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		a, b   IRValue
		result int
		ok     bool
	}{
		{"ints", IRInt(1), IRInt(2), -1, true},
		{"int float", IRInt(2), IRFloat(1.5), 1, true},
		{"float int equal", IRFloat(3), IRInt(3), 0, true},
		{"strings", IRString("b"), IRString("a"), 1, true},
		{"bools", IRBool(false), IRBool(true), -1, true},
		{"string vs int", IRString("1"), IRInt(1), 0, false},
		{"null", IRNull{}, IRNull{}, 0, false},
		{"arrays", IRArray{}, IRArray{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.result, c)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRInt(1), IRFloat(1)))
	assert.True(t, Equal(IRNull{}, IRNull{}))
	assert.True(t, Equal(IRArray{IRInt(1), IRString("a")}, IRArray{IRFloat(1), IRString("a")}))
	assert.True(t, Equal(IRObject{"a": IRBool(true)}, IRObject{"a": IRBool(true)}))

	assert.False(t, Equal(IRInt(1), IRString("1")))
	assert.False(t, Equal(IRNull{}, IRInt(0)))
	assert.False(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}))
	assert.False(t, Equal(IRObject{"a": IRInt(1)}, IRObject{"b": IRInt(1)}))
}

func TestLess(t *testing.T) {
	assert.True(t, Less(IRInt(1), IRInt(2)))
	assert.False(t, Less(IRInt(2), IRInt(2)))
	assert.False(t, Less(IRString("a"), IRInt(2)))
}
