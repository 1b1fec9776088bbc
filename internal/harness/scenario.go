package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docq/internal/query"
)

// Scenario defines one query scenario: a statement over a model, an
// optional operation, the documents to run it on and the expected plan
// and results.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the name of the queried model.
	Model string `yaml:"model"`

	// Where lists the conditions, conjoined in order. An empty list
	// scans the whole table.
	Where []Condition `yaml:"where,omitempty"`

	// Sampling lists the directives in declaration order.
	Sampling []DirectiveSpec `yaml:"sampling,omitempty"`

	// Operation is applied to the filtered documents when set.
	Operation *OperationSpec `yaml:"operation,omitempty"`

	// Documents seed every backend before the statement runs.
	Documents []map[string]any `yaml:"documents,omitempty"`

	// Expect holds the plan and result expectations.
	Expect ExpectClause `yaml:"expect"`
}

// Condition is one binary statement. Exactly one of Value and Row is the
// right operand; an absent value compares against null.
type Condition struct {
	// Field is the left row, dotted for nested paths ("profile.city",
	// "tags.0").
	Field string `yaml:"field"`

	// Op is an operator name or symbol (eq, ==, ge, >=, in, between, =~ ...).
	Op string `yaml:"op"`

	// Value is the literal operand. For between it is [lo, hi]; for in a
	// list of candidates.
	Value any `yaml:"value,omitempty"`

	// Row names the right row of a row-to-row comparison.
	Row string `yaml:"row,omitempty"`

	// Closed sets the endpoint closedness of between. Defaults to
	// [true, true].
	Closed []bool `yaml:"closed,omitempty"`
}

// DirectiveSpec is one sampling directive. Exactly one member is set.
type DirectiveSpec struct {
	Limit   *int       `yaml:"limit,omitempty"`
	Skip    *int       `yaml:"skip,omitempty"`
	Sample  *int       `yaml:"sample,omitempty"`
	OrderBy []OrderKey `yaml:"order_by,omitempty"`
}

// OrderKey is one order_by key.
type OrderKey struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc,omitempty"`
}

// OperationSpec selects an operation. Aggregate and Update exclude each
// other.
type OperationSpec struct {
	// Aggregate names the function: count, sum, avg, min or max.
	Aggregate string `yaml:"aggregate,omitempty"`

	// Row is the aggregated row; count may omit it.
	Row string `yaml:"row,omitempty"`

	// GroupBy turns the aggregate into a grouped aggregate.
	GroupBy []string `yaml:"group_by,omitempty"`

	// Update sets top-level fields on the filtered documents.
	Update map[string]any `yaml:"update,omitempty"`
}

// ExpectClause specifies the expected plan and results. Unset members are
// not checked.
type ExpectClause struct {
	// Error is the expected build error code (e.g. "TYPE_MISMATCH").
	// When set, nothing else is checked.
	Error string `yaml:"error,omitempty"`

	// Index is the expected secondary index; "" expects none.
	Index *string `yaml:"index,omitempty"`

	// Residual lists the indexed fields the chosen index leaves open.
	Residual []string `yaml:"residual,omitempty"`

	// Statement is the expected rendering of the merged statement.
	Statement string `yaml:"statement,omitempty"`

	// Count is the expected number of result rows.
	Count *int `yaml:"count,omitempty"`

	// Results are matched in order against the result rows. This is a
	// subset match: only specified fields are validated.
	Results []map[string]any `yaml:"results,omitempty"`
}

// Sampled reports whether the scenario draws a random sample. Sampled
// results are only checked by count.
func (s *Scenario) Sampled() bool {
	for _, d := range s.Sampling {
		if d.Sample != nil {
			return true
		}
	}
	return false
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "sampeling:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}

	for i, c := range s.Where {
		if c.Field == "" {
			return fmt.Errorf("where[%d]: field is required", i)
		}
		if _, err := query.ParseKind(c.Op); err != nil {
			return fmt.Errorf("where[%d]: %w", i, err)
		}
		if c.Row != "" && c.Value != nil {
			return fmt.Errorf("where[%d]: value and row are mutually exclusive", i)
		}
		if len(c.Closed) != 0 && len(c.Closed) != 2 {
			return fmt.Errorf("where[%d]: closed needs two entries", i)
		}
	}

	for i, d := range s.Sampling {
		set := 0
		for _, isSet := range []bool{d.Limit != nil, d.Skip != nil, d.Sample != nil, len(d.OrderBy) > 0} {
			if isSet {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("sampling[%d]: exactly one of limit, skip, sample, order_by is required", i)
		}
	}

	if op := s.Operation; op != nil {
		if (op.Aggregate == "") == (op.Update == nil) {
			return fmt.Errorf("operation: exactly one of aggregate, update is required")
		}
		if op.Aggregate != "" {
			if _, err := query.ParseAggregateFunc(op.Aggregate); err != nil {
				return fmt.Errorf("operation: %w", err)
			}
		}
	}

	return nil
}
