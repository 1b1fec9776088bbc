package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docq/internal/harness"
	"github.com/roach88/docq/internal/query"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	ModelsDir string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <query.yaml>",
		Short: "Show how a query is built",
		Long: `Build the query in a YAML query file without running it and print the
merged statement, the chosen secondary index, the residual fields, the
SQLite statement with its parameters and the in-memory plan.

Examples:
  docq plan --models ./models queries/adults.yaml
  docq plan --models ./models queries/adults.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ModelsDir, "models", "", "directory of CUE model definitions (required)")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}

func runPlan(opts *PlanOptions, queryFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, err := LoadRegistry(opts.ModelsDir)
	if err != nil {
		return failLoad(formatter, err)
	}
	scenario, err := harness.LoadScenario(queryFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFile, err.Error(), nil)
	}

	snap, err := harness.BuildPlan(scenario, reg)
	if err != nil {
		return failQuery(formatter, err)
	}

	return formatter.Success(snap, func(w io.Writer) error {
		return writePlan(w, snap)
	})
}

func writePlan(w io.Writer, snap *harness.PlanSnapshot) error {
	index := snap.Index
	if index == "" {
		index = "(none)"
	}
	residual := strings.Join(snap.Residual, ", ")
	if residual == "" {
		residual = "(none)"
	}

	fmt.Fprintf(w, "model:     %s\n", snap.Model)
	fmt.Fprintf(w, "statement: %s\n", snap.Statement)
	if snap.Operation != "" {
		fmt.Fprintf(w, "operation: %s\n", snap.Operation)
	}
	fmt.Fprintf(w, "index:     %s\n", index)
	fmt.Fprintf(w, "residual:  %s\n", residual)
	fmt.Fprintf(w, "sql:       %s\n", snap.SQL)
	fmt.Fprintf(w, "params:    %v\n", snap.Params)
	_, err := fmt.Fprintf(w, "memory:    %s\n", snap.Memory)
	if snap.Emulated {
		_, err = fmt.Fprintln(w, "           (sample emulated in memory)")
	}
	return err
}

// failQuery reports a statement build or execution failure. Build errors
// carry their code in the details.
func failQuery(formatter *OutputFormatter, err error) error {
	var details any
	var be *query.BuildError
	if errors.As(err, &be) {
		details = map[string]string{"build_error": string(be.Code)}
	}
	return formatter.Fail(ExitCommandError, ErrCodeQuery, err.Error(), details)
}
