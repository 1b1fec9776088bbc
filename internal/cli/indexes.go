package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/querysql"
)

// IndexesOptions holds flags for the indexes command.
type IndexesOptions struct {
	*RootOptions
	ModelsDir string
}

// ModelIndexes lists the indexes one model maintains under its policy.
type ModelIndexes struct {
	Model   string       `json:"model"`
	Table   string       `json:"table"`
	Policy  string       `json:"policy"`
	Indexes []IndexEntry `json:"indexes"`
}

// IndexEntry is one maintained index with its SQLite name.
type IndexEntry struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	SQLite string   `json:"sqlite"`
}

// NewIndexesCommand creates the indexes command.
func NewIndexesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "indexes [model]",
		Short: "List the secondary indexes of each model",
		Long: `List the indexes each model's policy maintains, in the order the
policy declares them, with the SQLite index name created by exec.

Examples:
  docq indexes --models ./models
  docq indexes --models ./models User --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runIndexes(opts, name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ModelsDir, "models", "", "directory of CUE model definitions (required)")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}

func runIndexes(opts *IndexesOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, err := LoadRegistry(opts.ModelsDir)
	if err != nil {
		return failLoad(formatter, err)
	}

	names := reg.Names()
	if name != "" {
		if _, ok := reg.Lookup(name); !ok {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("unknown model %q", name), nil)
		}
		names = []string{name}
	}

	result := make([]ModelIndexes, 0, len(names))
	for _, n := range names {
		m, _ := reg.Lookup(n)
		entry, err := describeIndexes(m)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result = append(result, entry)
	}

	return formatter.Success(result, func(w io.Writer) error {
		return writeIndexes(w, result)
	})
}

func describeIndexes(m *model.Model) (ModelIndexes, error) {
	policy, err := index.ForModel(m)
	if err != nil {
		return ModelIndexes{}, err
	}
	defs := policy.BuildIndexList(m)
	out := ModelIndexes{
		Model:   m.Name,
		Table:   m.Table,
		Policy:  policy.Name(),
		Indexes: make([]IndexEntry, len(defs)),
	}
	for i, def := range defs {
		out.Indexes[i] = IndexEntry{
			Name:   def.Name,
			Fields: def.Fields,
			SQLite: querysql.IndexName(m.Table, def),
		}
	}
	return out, nil
}

func writeIndexes(w io.Writer, models []ModelIndexes) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, m := range models {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s (table %s, policy %s)\n", m.Model, m.Table, m.Policy)
		if len(m.Indexes) == 0 {
			fmt.Fprintln(tw, "  (no secondary indexes)")
		}
		for _, idx := range m.Indexes {
			fmt.Fprintf(tw, "  %s\t[%s]\t%s\n", idx.Name, strings.Join(idx.Fields, ", "), idx.SQLite)
		}
	}
	return tw.Flush()
}

// failLoad reports a model loading failure as a command error.
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
