package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/query"
)

// AssertionError is returned when an expectation fails.
// It includes enough context to debug the failure.
type AssertionError struct {
	Type     string // Expectation type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// checkBuildError records a failure unless err carries the expected code.
func checkBuildError(result *Result, err error, code string) {
	if err == nil {
		result.AddError((&AssertionError{
			Type:     "error",
			Expected: fmt.Sprintf("build error %s", code),
			Actual:   "build succeeded",
		}).Error())
		return
	}
	if !query.HasCode(err, query.BuildErrorCode(code)) {
		result.AddError((&AssertionError{
			Type:     "error",
			Expected: fmt.Sprintf("build error %s", code),
			Actual:   err.Error(),
		}).Error())
	}
}

func assertIndex(plan *PlanSnapshot, want string) error {
	if plan.Index == want {
		return nil
	}
	return &AssertionError{
		Type:     "index",
		Expected: quoteIndex(want),
		Actual:   quoteIndex(plan.Index),
	}
}

func quoteIndex(name string) string {
	if name == "" {
		return "no index"
	}
	return fmt.Sprintf("index %q", name)
}

func assertResidual(plan *PlanSnapshot, want []string) error {
	if slices.Equal(plan.Residual, want) {
		return nil
	}
	return &AssertionError{
		Type:     "residual",
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", plan.Residual),
	}
}

func assertStatement(plan *PlanSnapshot, want string) error {
	if plan.Statement == want {
		return nil
	}
	return &AssertionError{
		Type:     "statement",
		Expected: want,
		Actual:   plan.Statement,
	}
}

func assertCount(docs []ir.IRObject, want int) error {
	if len(docs) == want {
		return nil
	}
	return &AssertionError{
		Type:     "count",
		Expected: fmt.Sprintf("%d rows", want),
		Actual:   fmt.Sprintf("%d rows", len(docs)),
	}
}

// assertResults matches want against docs in order. Only the fields named
// in each expected row are compared.
func assertResults(docs []ir.IRObject, want []map[string]any) error {
	if len(docs) < len(want) {
		return &AssertionError{
			Type:     "results",
			Expected: fmt.Sprintf("at least %d rows", len(want)),
			Actual:   fmt.Sprintf("%d rows", len(docs)),
		}
	}
	for i, expected := range want {
		for key, raw := range expected {
			exp, err := ir.FromGo(raw)
			if err != nil {
				return fmt.Errorf("results[%d].%s: %w", i, key, err)
			}
			actual, exists := docs[i][key]
			if !exists {
				return &AssertionError{
					Type:     "results",
					Expected: fmt.Sprintf("row %d field %q = %s", i, key, ir.ValueKey(exp)),
					Actual:   fmt.Sprintf("field %q not present", key),
				}
			}
			if !ir.Equal(exp, actual) {
				return &AssertionError{
					Type:     "results",
					Expected: fmt.Sprintf("row %d field %q = %s", i, key, ir.ValueKey(exp)),
					Actual:   fmt.Sprintf("row %d field %q = %s", i, key, ir.ValueKey(actual)),
				}
			}
		}
	}
	return nil
}

// EvaluateExpectations checks the scenario's expectations against the
// result. Returns a slice of error messages for failed expectations.
// Sampled scenarios are only checked by plan and count.
func EvaluateExpectations(s *Scenario, result *Result) []string {
	var errors []string
	add := func(err error) {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	e := s.Expect
	if result.Plan != nil {
		if e.Index != nil {
			add(assertIndex(result.Plan, *e.Index))
		}
		if e.Residual != nil {
			add(assertResidual(result.Plan, e.Residual))
		}
		if e.Statement != "" {
			add(assertStatement(result.Plan, e.Statement))
		}
	}
	if e.Count != nil {
		add(assertCount(result.Documents, *e.Count))
	}
	if len(e.Results) > 0 && !s.Sampled() {
		add(assertResults(result.Documents, e.Results))
	}
	return errors
}
