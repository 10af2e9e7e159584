package harness

import (
	"github.com/roach88/pathql/internal/engine"
	"github.com/roach88/pathql/internal/record"
)

// StepResult is what one step produced.
type StepResult struct {
	Name string `json:"name"`
	Mode string `json:"mode"`

	// Results holds the materialized objects of find, one and page steps.
	// A one step with no match leaves it empty.
	Results []record.Object `json:"results,omitempty"`

	// Count is the result count, the count, or the page total.
	Count int64 `json:"count"`

	// Pages is set by page steps.
	Pages int64 `json:"pages,omitempty"`

	// Statements is set by explain steps.
	Statements []engine.Statement `json:"statements,omitempty"`

	// Error is the queryerr code of a failed step.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause matched.
	Pass bool `json:"pass"`

	// Steps holds one entry per step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
