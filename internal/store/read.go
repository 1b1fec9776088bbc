package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/querysql"
)

var _ parser.Executor[*querysql.Stage] = (*Store)(nil)

// Execute runs q. Pre-processing hooks run first and abort on error;
// post-processing hooks rewrite the fetched documents in order.
//
// With withoutFetch set, or for update stages, the statement is executed
// for its effects only and nil is returned.
func (s *Store) Execute(ctx context.Context, q *querysql.Stage, withoutFetch bool) ([]ir.IRObject, error) {
	for _, hook := range q.Pre {
		if err := hook(ctx); err != nil {
			return nil, fmt.Errorf("pre-processing hook: %w", err)
		}
	}

	sqlText, params := q.SQL()
	slog.Debug("executing statement", "sql", sqlText, "params", len(params), "without_fetch", withoutFetch)

	if withoutFetch || q.Shape == querysql.ShapeUpdate {
		res, err := s.db.ExecContext(ctx, sqlText, params...)
		if err != nil {
			return nil, fmt.Errorf("exec: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			slog.Debug("statement executed", "rows_affected", n)
		}
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var docs []ir.IRObject
	if q.Shape == querysql.ShapeAggregate {
		docs, err = scanRows(rows)
	} else {
		docs, err = scanDocuments(rows)
	}
	if err != nil {
		return nil, err
	}

	for _, hook := range q.Post {
		if docs, err = hook(docs); err != nil {
			return nil, fmt.Errorf("post-processing hook: %w", err)
		}
	}
	return docs, nil
}

// scanDocuments reads (id, doc) rows. Returns an empty slice (not nil)
// when nothing matched.
func scanDocuments(rows *sql.Rows) ([]ir.IRObject, error) {
	docs := []ir.IRObject{}
	for rows.Next() {
		var id int64
		var doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		v, err := ir.UnmarshalIRValue([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", id, err)
		}
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("document %d: expected object, got %s", id, ir.Kind(v))
		}
		docs = append(docs, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// scanRows reads arbitrary result rows into objects keyed by column name.
func scanRows(rows *sql.Rows) ([]ir.IRObject, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []ir.IRObject{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		obj := make(ir.IRObject, len(cols))
		for i, col := range cols {
			raw := values[i]
			if b, ok := raw.([]byte); ok {
				raw = string(b)
			}
			v, err := ir.FromGo(raw)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			obj[col] = v
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
