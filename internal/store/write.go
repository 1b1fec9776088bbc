package store

import (
	"context"
	"fmt"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/querysql"
)

// Insert stores docs in the table of m and returns their ids in order.
// Documents are written as canonical JSON so nested values compare
// byte-for-byte against canonical query parameters.
//
// The model table must exist (see Ensure).
func (s *Store) Insert(ctx context.Context, m *model.Model, docs ...ir.IRObject) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", m.Name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, querysql.InsertSQL(m))
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", m.Name, err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(docs))
	for i, doc := range docs {
		data, err := ir.MarshalCanonical(doc)
		if err != nil {
			return nil, fmt.Errorf("insert %s: document %d: %w", m.Name, i, err)
		}
		res, err := stmt.ExecContext(ctx, string(data))
		if err != nil {
			return nil, fmt.Errorf("insert %s: document %d: %w", m.Name, i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert %s: document %d: %w", m.Name, i, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert %s: %w", m.Name, err)
	}
	return ids, nil
}
