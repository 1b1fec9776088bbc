package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/querysql"
	"github.com/roach88/docq/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func userDocs(t *testing.T) []ir.IRObject {
	return []ir.IRObject{
		testutil.Object(t, map[string]any{"name": "ann", "age": 31, "city": "Oslo", "active": true, "tags": []any{"a", "b"}, "profile": map[string]any{"city": "Oslo"}}),
		testutil.Object(t, map[string]any{"name": "bob", "age": 25, "city": "Bergen", "active": false, "tags": []any{"b"}, "profile": map[string]any{"city": "Oslo"}}),
		testutil.Object(t, map[string]any{"name": "cid", "age": 40, "city": "Oslo", "tags": []any{}, "profile": map[string]any{"city": "Bergen"}}),
		testutil.Object(t, map[string]any{"name": "dee", "city": nil, "active": true}),
		testutil.Object(t, map[string]any{"name": "Eve", "age": 25, "city": "Trondheim", "friends": []any{"ann", "bob"}}),
		testutil.Object(t, map[string]any{"name": "ann", "age": 19, "city": "Oslo", "friends": []any{"cid"}}),
		testutil.Object(t, map[string]any{"name": "fay", "age": 33, "city": "Oslo", "friends": []any{"fay"}}),
	}
}

// seededStore returns a store holding userDocs under m, plus a parser
// over the SQLite processor.
func seededStore(t *testing.T, m *model.Model, opts ...querysql.Option) (*Store, *parser.Parser[*querysql.Stage]) {
	t.Helper()
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ensure(ctx, m))
	_, err := s.Insert(ctx, m, userDocs(t)...)
	require.NoError(t, err)

	reg, err := model.NewRegistry(m)
	require.NoError(t, err)
	p := parser.New[*querysql.Stage](querysql.NewProcessor(opts...), parser.QueryContext{Models: reg}, parser.WithSeed(7))
	return s, p
}

