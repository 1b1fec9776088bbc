package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRFloat(1.5)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected IRValue
	}{
		{"nil", nil, IRNull{}},
		{"string", "x", IRString("x")},
		{"int", 3, IRInt(3)},
		{"uint8", uint8(7), IRInt(7)},
		{"float", 2.5, IRFloat(2.5)},
		{"bool", true, IRBool(true)},
		{"ir passthrough", IRInt(9), IRInt(9)},
		{"any slice", []any{1, "a"}, IRArray{IRInt(1), IRString("a")}},
		{"typed slice", []string{"a", "b"}, IRArray{IRString("a"), IRString("b")}},
		{"typed map", map[string]int{"n": 1}, IRObject{"n": IRInt(1)}},
		{"json number int", json.Number("12"), IRInt(12)},
		{"json number float", json.Number("1.25"), IRFloat(1.25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFromGoRejects(t *testing.T) {
	_, err := FromGo(math.NaN())
	assert.Error(t, err)

	_, err = FromGo(struct{}{})
	assert.Error(t, err)

	_, err = FromGo(map[int]string{1: "a"})
	assert.Error(t, err)

	_, err = FromGo(uint64(math.MaxUint64))
	assert.Error(t, err)
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"a":1,"b":[true,null,"x"],"c":2.5}`))
	require.NoError(t, err)

	assert.Equal(t, IRObject{
		"a": IRInt(1),
		"b": IRArray{IRBool(true), IRNull{}, IRString("x")},
		"c": IRFloat(2.5),
	}, v)
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	var obj IRObject
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":{"k":"v"}}`), &obj))

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"k":"v"},"z":1}`, string(data))
}

func TestIRObjectUnmarshalRejectsNonObject(t *testing.T) {
	var obj IRObject
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &obj))
}

func TestToGo(t *testing.T) {
	v := IRObject{"a": IRArray{IRInt(1), IRFloat(0.5)}, "b": IRNull{}}
	assert.Equal(t, map[string]any{"a": []any{int64(1), 0.5}, "b": nil}, ToGo(v))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "int", Kind(IRInt(1)))
	assert.Equal(t, "float", Kind(IRFloat(1)))
	assert.Equal(t, "null", Kind(nil))
	assert.Equal(t, "object", Kind(IRObject{}))
}
