package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/docq/internal/harness"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
	"github.com/roach88/docq/internal/querysql"
	"github.com/roach88/docq/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	ModelsDir string
	DBPath    string
	SeedFile  string
}

// ExecResult is the JSON payload of the exec command.
type ExecResult struct {
	BuildID   string `json:"build_id"`
	Model     string `json:"model"`
	Index     string `json:"index,omitempty"`
	Seeded    int    `json:"seeded"`
	Updated   bool   `json:"updated,omitempty"`
	Documents []any  `json:"documents"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <query.yaml>",
		Short: "Run a query against a SQLite database",
		Long: `Run the query in a YAML query file against a SQLite database.

The model table and the indexes of its policy are created when missing.
--seed inserts the documents of a JSON array file before the query runs.
Result documents are printed one canonical JSON object per line.

Examples:
  docq exec --models ./models --db ./docq.db queries/adults.yaml
  docq exec --models ./models --db ./docq.db --seed users.json queries/adults.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ModelsDir, "models", "", "directory of CUE model definitions (required)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite database (required)")
	cmd.Flags().StringVar(&opts.SeedFile, "seed", "", "JSON array of documents to insert first")
	_ = cmd.MarkFlagRequired("models")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExec(ctx context.Context, opts *ExecOptions, queryFile string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, err := LoadRegistry(opts.ModelsDir)
	if err != nil {
		return failLoad(formatter, err)
	}
	scenario, err := harness.LoadScenario(queryFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFile, err.Error(), nil)
	}
	m, ok := reg.Lookup(scenario.Model)
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("unknown model %q", scenario.Model), nil)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	if err := st.Ensure(ctx, m); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	seeded := 0
	if opts.SeedFile != "" {
		if seeded, err = seed(ctx, st, m, opts.SeedFile); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
	}

	result, docs, err := execute(ctx, st, reg, m, scenario)
	if err != nil {
		return failQuery(formatter, err)
	}
	result.Seeded = seeded

	slog.Info("query executed",
		"build_id", result.BuildID,
		"model", m.Name,
		"index", result.Index,
		"rows", len(result.Documents),
	)

	return formatter.Success(result, func(w io.Writer) error {
		if result.Updated {
			_, err := fmt.Fprintln(w, "✓ Update applied")
			return err
		}
		return writeDocuments(w, docs)
	})
}

// seed inserts the documents of a JSON array file.
func seed(ctx context.Context, st *store.Store, m *model.Model, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return 0, fmt.Errorf("seed file %s: %w", path, err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return 0, fmt.Errorf("seed file %s: expected a JSON array, got %s", path, ir.Kind(v))
	}
	docs := make([]ir.IRObject, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(ir.IRObject)
		if !ok {
			return 0, fmt.Errorf("seed file %s: element %d: expected object, got %s", path, i, ir.Kind(elem))
		}
		docs[i] = obj
	}
	ids, err := st.Insert(ctx, m, docs...)
	if err != nil {
		return 0, err
	}
	slog.Debug("documents seeded", "model", m.Name, "count", len(ids))
	return len(ids), nil
}

func execute(ctx context.Context, st *store.Store, reg *model.Registry, m *model.Model, s *harness.Scenario) (*ExecResult, []ir.IRObject, error) {
	p := parser.New[*querysql.Stage](querysql.NewProcessor(), parser.QueryContext{Models: reg})

	stmt, err := s.BuildStatement(m)
	if err != nil {
		return nil, nil, err
	}
	op, err := s.BuildOperation(m, stmt)
	if err != nil {
		return nil, nil, err
	}

	var res *parser.Result[*querysql.Stage]
	if op != nil {
		res, err = p.ParseOperation(op)
	} else {
		res, err = p.Parse(stmt)
	}
	if err != nil {
		return nil, nil, err
	}

	_, isUpdate := op.(*query.Update)
	docs, err := st.Execute(ctx, res.Query, isUpdate)
	if err != nil {
		return nil, nil, fmt.Errorf("execute %s: %w", res.BuildID, err)
	}
	if docs == nil {
		docs = []ir.IRObject{}
	}

	return &ExecResult{
		BuildID:   res.BuildID,
		Model:     m.Name,
		Index:     res.Index,
		Updated:   isUpdate,
		Documents: documentsData(docs),
	}, docs, nil
}
