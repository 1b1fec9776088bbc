package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/docq/internal/ir"
)

func TestUsersModel(t *testing.T) {
	m := UsersModel("greedy")

	assert.Equal(t, "greedy", m.Policy())
	assert.Equal(t, []string{"name", "age"}, m.IndexedFields())
	assert.NoError(t, m.Validate())
	assert.Equal(t, "single", UsersModel("").Policy())
}

func TestObject(t *testing.T) {
	doc := Object(t, map[string]any{"name": "ann", "age": 31, "tags": []any{"a"}})

	assert.Equal(t, ir.IRObject{
		"name": ir.IRString("ann"),
		"age":  ir.IRInt(31),
		"tags": ir.IRArray{ir.IRString("a")},
	}, doc)
}

func TestNames(t *testing.T) {
	docs := []ir.IRObject{
		{"name": ir.IRString("ann")},
		{"age": ir.IRInt(3)},
		{"name": ir.IRInt(7)},
		{"name": ir.IRString("bob")},
	}

	assert.Equal(t, []string{"ann", "bob"}, Names(docs))
	assert.Empty(t, Names(nil))
}
