// Package testutil holds fixtures shared by the backend tests: the users
// model, document construction and deterministic build ids.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
)

// UsersModel returns the User model over the users table with name and
// age as secondary indexes. An empty policy selects the default.
func UsersModel(policy string) *model.Model {
	return &model.Model{
		Name:        "User",
		Table:       "users",
		IndexPolicy: policy,
		Fields: []model.Field{
			{Name: "name", SecondaryIndex: true},
			{Name: "age", SecondaryIndex: true},
			{Name: "city"},
			{Name: "active"},
			{Name: "tags"},
			{Name: "profile"},
			{Name: "friends"},
		},
	}
}

// Object converts plain Go fields into a document. It fails the test when
// a value is not representable.
func Object(t testing.TB, fields map[string]any) ir.IRObject {
	t.Helper()
	v, err := ir.FromGo(fields)
	require.NoError(t, err)
	obj, ok := v.(ir.IRObject)
	require.True(t, ok, "expected object, got %s", ir.Kind(v))
	return obj
}

// Names returns the name field of each document, skipping documents
// without a string name.
func Names(docs []ir.IRObject) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if n, ok := d["name"].(ir.IRString); ok {
			out = append(out, string(n))
		}
	}
	return out
}
