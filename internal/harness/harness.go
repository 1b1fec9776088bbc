package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/memstore"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
	"github.com/roach88/docq/internal/querysql"
	"github.com/roach88/docq/internal/store"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh in-memory SQLite database and a fresh
// in-memory document store, both seeded with the scenario documents.
// Unless the scenario samples, both backends must return the same rows.
//
// Execution flow:
// 1. Build the plan snapshot (or check the expected build error)
// 2. Seed and run the in-memory backend
// 3. Seed and run the SQLite backend
// 4. Compare backends and evaluate expectations
func Run(ctx context.Context, s *Scenario, reg *model.Registry) (*Result, error) {
	m, ok := reg.Lookup(s.Model)
	if !ok {
		return nil, fmt.Errorf("scenario %s: unknown model %q", s.Name, s.Model)
	}
	result := NewResult()

	plan, err := BuildPlan(s, reg)
	if s.Expect.Error != "" {
		checkBuildError(result, err, s.Expect.Error)
		return result, nil
	}
	if err != nil {
		if query.IsBuildError(err) {
			result.AddError(fmt.Sprintf("build failed: %v", err))
			return result, nil
		}
		return nil, err
	}
	result.Plan = plan

	docs, err := seedDocuments(s)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	memDocs, err := runMemory(ctx, s, m, reg, docs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: in-memory backend: %w", s.Name, err)
	}
	sqlDocs, err := runSQLite(ctx, s, m, reg, docs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: sqlite backend: %w", s.Name, err)
	}
	result.Documents = memDocs

	if !s.Sampled() {
		if err := sameRows(memDocs, sqlDocs); err != nil {
			result.AddError(err.Error())
		}
	}
	for _, msg := range EvaluateExpectations(s, result) {
		result.AddError(msg)
	}

	slog.Debug("scenario executed", "scenario", s.Name, "pass", result.Pass, "rows", len(memDocs))
	return result, nil
}

func seedDocuments(s *Scenario) ([]ir.IRObject, error) {
	docs := make([]ir.IRObject, len(s.Documents))
	for i, raw := range s.Documents {
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("documents[%d]: %w", i, err)
		}
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("documents[%d]: expected object, got %s", i, ir.Kind(v))
		}
		docs[i] = obj
	}
	return docs, nil
}

func runMemory(ctx context.Context, s *Scenario, m *model.Model, reg *model.Registry, docs []ir.IRObject) ([]ir.IRObject, error) {
	st := memstore.New()
	if err := st.Ensure(ctx, m); err != nil {
		return nil, err
	}
	if _, err := st.Insert(ctx, m, docs...); err != nil {
		return nil, err
	}
	p := parser.New[*memstore.Plan](st.Processor(), parser.QueryContext{Models: reg}, parser.WithSeed(1))
	return execute(ctx, p, st, s, m)
}

func runSQLite(ctx context.Context, s *Scenario, m *model.Model, reg *model.Registry, docs []ir.IRObject) ([]ir.IRObject, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Ensure(ctx, m); err != nil {
		return nil, err
	}
	if _, err := st.Insert(ctx, m, docs...); err != nil {
		return nil, err
	}
	p := parser.New[*querysql.Stage](querysql.NewProcessor(), parser.QueryContext{Models: reg}, parser.WithSeed(1))
	return execute(ctx, p, st, s, m)
}

// execute runs the scenario statement or operation. After an update the
// whole table is returned.
func execute[Q any](ctx context.Context, p *parser.Parser[Q], exec parser.Executor[Q], s *Scenario, m *model.Model) ([]ir.IRObject, error) {
	stmt, err := s.BuildStatement(m)
	if err != nil {
		return nil, err
	}
	op, err := s.BuildOperation(m, stmt)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return parser.Fetch(ctx, p, exec, stmt)
	}
	docs, err := parser.Apply(ctx, p, exec, op)
	if err != nil {
		return nil, err
	}
	if _, ok := op.(*query.Update); ok {
		return parser.Fetch(ctx, p, exec, m.Scan())
	}
	return docs, nil
}

// sameRows reports a mismatch between the rows of the two backends.
func sameRows(mem, sql []ir.IRObject) error {
	a, err := ir.MarshalCanonical(toArray(mem))
	if err != nil {
		return err
	}
	b, err := ir.MarshalCanonical(toArray(sql))
	if err != nil {
		return err
	}
	if string(a) != string(b) {
		return fmt.Errorf("backends disagree: in-memory %s, sqlite %s", a, b)
	}
	return nil
}

func toArray(docs []ir.IRObject) ir.IRArray {
	out := make(ir.IRArray, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
