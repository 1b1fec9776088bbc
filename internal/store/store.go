package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - docq_models catalog
const currentSchemaVersion = 1

// driverName is the go-sqlite3 driver with docq's SQL functions.
const driverName = "sqlite3_docq"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

var patterns sync.Map // string -> *regexp.Regexp

// regexpMatch backs the REGEXP operator: "x REGEXP y" calls regexp(y, x).
// Non-text values never match.
func regexpMatch(pattern string, value any) (bool, error) {
	s, ok := value.(string)
	if !ok {
		return false, nil
	}
	re, ok := patterns.Load(pattern)
	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("regexp %q: %w", pattern, err)
		}
		re, _ = patterns.LoadOrStore(pattern, compiled)
	}
	return re.(*regexp.Regexp).MatchString(s), nil
}

// Store executes querysql stages against a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the catalog schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the catalog if it doesn't exist and records the
// schema version. This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Ensure creates the document table of m and one expression index per
// definition of its index policy, then records m in the catalog.
// Ensure is idempotent.
func (s *Store) Ensure(ctx context.Context, m *model.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	policy, err := index.ForModel(m)
	if err != nil {
		return err
	}
	defs := policy.BuildIndexList(m)

	stmts := []string{querysql.TableDDL(m)}
	for _, def := range defs {
		ddl, err := querysql.IndexDDL(m, def)
		if err != nil {
			return fmt.Errorf("model %s: %w", m.Name, err)
		}
		stmts = append(stmts, ddl)
	}

	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	indexes, err := ir.MarshalCanonical(toAnySlice(names))
	if err != nil {
		return err
	}
	fingerprint, err := ir.Fingerprint(ir.DomainPlan, map[string]any{
		"table":   m.Table,
		"policy":  policy.Name(),
		"indexes": toAnySlice(names),
	})
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure %s: %w", m.Name, err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s: %w", m.Name, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO docq_models (name, table_name, policy, indexes, fingerprint)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			table_name = excluded.table_name,
			policy = excluded.policy,
			indexes = excluded.indexes,
			fingerprint = excluded.fingerprint
	`, m.Name, m.Table, policy.Name(), string(indexes), fingerprint)
	if err != nil {
		return fmt.Errorf("ensure %s: record catalog: %w", m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure %s: %w", m.Name, err)
	}

	slog.Debug("model ensured", "model", m.Name, "table", m.Table, "policy", policy.Name(), "indexes", len(defs))
	return nil
}

// CatalogEntry is one model recorded in the database.
type CatalogEntry struct {
	Name        string
	Table       string
	Policy      string
	Indexes     []string
	Fingerprint string
}

// Catalog returns the ensured models ordered by name.
func (s *Store) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, table_name, policy, indexes, fingerprint
		FROM docq_models
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	entries := []CatalogEntry{}
	for rows.Next() {
		var e CatalogEntry
		var indexes string
		if err := rows.Scan(&e.Name, &e.Table, &e.Policy, &indexes, &e.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		v, err := ir.UnmarshalIRValue([]byte(indexes))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", e.Name, err)
		}
		arr, _ := v.(ir.IRArray)
		for _, name := range arr {
			if str, ok := name.(ir.IRString); ok {
				e.Indexes = append(e.Indexes, string(str))
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return entries, nil
}

func toAnySlice(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
