package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/yinglong/internal/compiler"
	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/ir"
	"github.com/roach88/yinglong/internal/store"
	"github.com/roach88/yinglong/internal/verilog"
)

// Harness executes scenarios against one artifact store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store for isolation.
//
// Execution flow:
// 1. Load the circuit document
// 2. Check and lower it through the pipeline, caching the artifact
// 3. Record the run in the store
// 4. Evaluate expectations against the outcome and the recorded run
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h.Run(context.Background(), scenario)
}

// New creates a harness recording runs in st.
func New(st *store.Store, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{store: st, logger: logger}
}

// Run executes one scenario. The returned error is reserved for
// infrastructure failures; pipeline failures are outcomes that the
// expectations judge.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	c, err := compiler.LoadFile(scenario.Circuit)
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit: %w", err)
	}

	p := compiler.New(
		compiler.WithCache(h.store),
		compiler.WithLogger(h.logger),
		compiler.WithLowerOptions(scenario.Lower.Options()...),
	)
	out, lowerErr := p.Lower(ctx, c)

	run, err := h.store.RecordRun(ctx, store.NewRun(c.ID, out, lowerErr))
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	result := newResult(c, out, lowerErr, run)

	if scenario.Expect.Deterministic && lowerErr == nil {
		if msg := h.checkDeterminism(c, scenario.Lower, result.Verilog); msg != "" {
			result.AddError(msg)
		}
	}

	for _, msg := range EvaluateExpectations(ctx, result, scenario.Expect, h.store) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"circuit", c.ID,
		"status", run.Status,
		"pass", result.Pass,
	)
	return result, nil
}

// checkDeterminism lowers c again without the cache, forcing every map onto
// the worker pool, and reports a mismatch with want.
func (h *Harness) checkDeterminism(c *ir.Circuit, settings LowerSettings, want string) string {
	opts := append(settings.Options(),
		verilog.WithWorkers(4),
		verilog.WithParallelThreshold(1),
	)
	p := compiler.New(
		compiler.WithLogger(h.logger),
		compiler.WithInferOptions(infer.WithWorkers(4), infer.WithParallelThreshold(1)),
		compiler.WithLowerOptions(opts...),
	)
	out, err := p.Lower(context.Background(), c)
	if err != nil {
		return fmt.Sprintf("deterministic: parallel lowering failed: %v", err)
	}
	if out.Verilog != want {
		return (&ExpectationError{
			Type:     "deterministic",
			Expected: "identical text with forced parallelism",
			Actual:   fmt.Sprintf("%d bytes differ from %d bytes", len(out.Verilog), len(want)),
		}).Error()
	}
	return ""
}

// newResult collects the observable outcome of one pipeline run.
func newResult(c *ir.Circuit, out *compiler.Output, err error, run store.Run) *Result {
	result := NewResult()
	result.CircuitID = c.ID
	result.Status = run.Status
	result.Run = run

	// Validation codes come first; inference still reports on the modules
	// validation did not reject.
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		for _, v := range verrs {
			result.Codes = append(result.Codes, v.Code)
		}
	}

	if out != nil {
		result.CircuitHash = out.CircuitHash
		result.Verilog = out.Verilog
		for _, code := range out.Diagnostics.Codes() {
			result.Codes = append(result.Codes, string(code))
		}
		if out.Checked != nil {
			result.Widths = widths(out.Checked.Env)
		}
	}

	var uerr *verilog.UnsupportedConstructError
	if errors.As(err, &uerr) {
		result.Unsupported = uerr.Construct
	}
	return result
}

func widths(env *infer.Environment) map[string]int {
	out := make(map[string]int)
	for _, m := range env.Modules() {
		for _, b := range m.Bindings() {
			if w := b.Width(); w.Known() {
				out[m.ID+"."+b.Name] = int(w)
			}
		}
	}
	return out
}
