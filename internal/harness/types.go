package harness

import "github.com/roach88/yinglong/internal/store"

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	CircuitID   string `json:"circuit_id"`
	CircuitHash string `json:"circuit_hash,omitempty"`

	// Status is the run status the store recorded.
	Status store.RunStatus `json:"status"`

	// Codes lists the diagnostic codes in pipeline order: validation codes
	// for invalid circuits, inference codes otherwise.
	Codes []string `json:"codes,omitempty"`

	// Widths maps "module.name" to the resolved width. Only set when the
	// circuit type-checked.
	Widths map[string]int `json:"widths,omitempty"`

	// Unsupported names the construct the lowering engine rejected.
	Unsupported string `json:"unsupported,omitempty"`

	Verilog string `json:"verilog,omitempty"`

	// Run is the row recorded for this execution.
	Run store.Run `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// OK reports whether the pipeline produced Verilog.
func (r *Result) OK() bool {
	return r.Status == store.RunOK
}
