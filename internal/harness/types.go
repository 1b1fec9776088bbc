package harness

import "github.com/roach88/docq/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every expectation matches and the backends agree.
	Pass bool `json:"pass"`

	// Plan is the build snapshot of the scenario. Nil when the build
	// failed.
	Plan *PlanSnapshot `json:"plan,omitempty"`

	// Documents are the result rows of the in-memory backend.
	Documents []ir.IRObject `json:"documents"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Documents: []ir.IRObject{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
