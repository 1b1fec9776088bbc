package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/memstore"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/querysql"
)

// PlanSnapshot captures how a scenario is built on every backend.
// All fields use canonical JSON serialization for deterministic comparison.
type PlanSnapshot struct {
	Name      string   `json:"name"`
	Model     string   `json:"model"`
	Statement string   `json:"statement"`
	Operation string   `json:"operation,omitempty"`
	Index     string   `json:"index"`
	Residual  []string `json:"residual"`
	Emulated  bool     `json:"emulated"` // the in-memory backend emulates a sample
	SQL       string   `json:"sql"`
	Params    []any    `json:"params"`
	Memory    string   `json:"memory"`
}

// BuildPlan parses the scenario for the SQLite and in-memory backends.
// Build ids are fixed so snapshots are reproducible.
func BuildPlan(s *Scenario, reg *model.Registry) (*PlanSnapshot, error) {
	m, ok := reg.Lookup(s.Model)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", s.Model)
	}
	qctx := parser.QueryContext{Models: reg}

	sqlRes, err := parse(parser.New[*querysql.Stage](querysql.NewProcessor(), qctx, planOptions()...), s, m)
	if err != nil {
		return nil, err
	}
	memRes, err := parse(parser.New[*memstore.Plan](memstore.New().Processor(), qctx, planOptions()...), s, m)
	if err != nil {
		return nil, err
	}

	sql, params := sqlRes.Query.SQL()
	snap := &PlanSnapshot{
		Name:      s.Name,
		Model:     m.Name,
		Statement: memRes.Statement.String(),
		Index:     memRes.Index,
		Residual:  memRes.Residual,
		Emulated:  memRes.Emulated,
		SQL:       sql,
		Params:    params,
		Memory:    memRes.Query.String(),
	}
	if snap.Residual == nil {
		snap.Residual = []string{}
	}
	if snap.Params == nil {
		snap.Params = []any{}
	}
	if s.Operation != nil {
		stmt, err := s.BuildStatement(m)
		if err != nil {
			return nil, err
		}
		op, err := s.BuildOperation(m, stmt)
		if err != nil {
			return nil, err
		}
		snap.Operation = op.String()
	}
	return snap, nil
}

func planOptions() []parser.Option {
	return []parser.Option{
		parser.WithIDGenerator(parser.NewFixedGenerator("plan")),
		parser.WithSeed(1),
	}
}

func parse[Q any](p *parser.Parser[Q], s *Scenario, m *model.Model) (*parser.Result[Q], error) {
	stmt, err := s.BuildStatement(m)
	if err != nil {
		return nil, err
	}
	op, err := s.BuildOperation(m, stmt)
	if err != nil {
		return nil, err
	}
	if op != nil {
		return p.ParseOperation(op)
	}
	return p.Parse(stmt)
}

// toCanonicalMap converts a PlanSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *PlanSnapshot) toCanonicalMap() map[string]any {
	residual := make([]any, len(s.Residual))
	for i, r := range s.Residual {
		residual[i] = r
	}
	params := make([]any, len(s.Params))
	copy(params, s.Params)

	result := map[string]any{
		"name":      s.Name,
		"model":     s.Model,
		"statement": s.Statement,
		"index":     s.Index,
		"residual":  residual,
		"emulated":  s.Emulated,
		"sql":       s.SQL,
		"params":    params,
		"memory":    s.Memory,
	}
	if s.Operation != "" {
		result["operation"] = s.Operation
	}
	return result
}

// MarshalSnapshot renders the snapshot as indented canonical JSON with a
// trailing newline.
func MarshalSnapshot(s *PlanSnapshot) ([]byte, error) {
	data, err := ir.MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden builds the scenario plan and compares it against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, reg *model.Registry) error {
	t.Helper()

	snap, err := BuildPlan(scenario, reg)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, snap)
}

// AssertGolden compares a snapshot against the golden file called name.
func AssertGolden(t *testing.T, name string, snap *PlanSnapshot) error {
	t.Helper()

	data, err := MarshalSnapshot(snap)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
