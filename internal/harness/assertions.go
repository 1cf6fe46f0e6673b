package harness

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/yinglong/internal/store"
)

// ExpectationError is returned when an expectation fails.
// It includes enough context to debug the failure without rerunning.
type ExpectationError struct {
	Type     string   // Expectation name, e.g. "widths"
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Codes    []string // Diagnostic codes the run produced
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Codes) > 0 {
		fmt.Fprintf(&buf, "\nDiagnostics: %s\n", strings.Join(e.Codes, ", "))
	}

	return buf.String()
}

func expectOK(result *Result, want bool) error {
	if result.OK() == want {
		return nil
	}
	return &ExpectationError{
		Type:     "ok",
		Expected: fmt.Sprintf("ok=%v", want),
		Actual:   fmt.Sprintf("ok=%v (status %s)", result.OK(), result.Status),
		Codes:    result.Codes,
	}
}

// expectDiagnostics requires the exact code sequence.
func expectDiagnostics(result *Result, want []string) error {
	if slices.Equal(result.Codes, want) {
		return nil
	}
	return &ExpectationError{
		Type:     "diagnostics",
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", result.Codes),
		Codes:    result.Codes,
	}
}

// expectWidths checks every listed width. Keys are visited in sorted order
// so the first reported mismatch is stable.
func expectWidths(result *Result, want map[string]int) error {
	if result.Widths == nil {
		return &ExpectationError{
			Type:     "widths",
			Expected: fmt.Sprintf("%d resolved widths", len(want)),
			Actual:   "circuit did not type-check",
			Codes:    result.Codes,
		}
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		got, ok := result.Widths[key]
		if !ok {
			return &ExpectationError{
				Type:     "widths",
				Expected: fmt.Sprintf("%s = %d", key, want[key]),
				Actual:   fmt.Sprintf("%s has no resolved width", key),
				Codes:    result.Codes,
			}
		}
		if got != want[key] {
			return &ExpectationError{
				Type:     "widths",
				Expected: fmt.Sprintf("%s = %d", key, want[key]),
				Actual:   fmt.Sprintf("%s = %d", key, got),
				Codes:    result.Codes,
			}
		}
	}
	return nil
}

func expectVerilogContains(result *Result, want []string) error {
	for _, s := range want {
		if !strings.Contains(result.Verilog, s) {
			return &ExpectationError{
				Type:     "verilog_contains",
				Expected: fmt.Sprintf("output containing %q", s),
				Actual:   "not found in:\n" + result.Verilog,
			}
		}
	}
	return nil
}

func expectUnsupported(result *Result, want string) error {
	if result.Unsupported == want {
		return nil
	}
	actual := "no construct rejected"
	if result.Unsupported != "" {
		actual = result.Unsupported
	}
	return &ExpectationError{
		Type:     "unsupported",
		Expected: want,
		Actual:   fmt.Sprintf("%s (status %s)", actual, result.Status),
		Codes:    result.Codes,
	}
}

// expectStatus reads the run back from the store so the expectation covers
// what was persisted, not only what was returned.
func expectStatus(ctx context.Context, st *store.Store, result *Result, want store.RunStatus) error {
	runs, err := st.ListRuns(ctx, result.CircuitID)
	if err != nil {
		return fmt.Errorf("status: reading runs: %w", err)
	}
	for _, r := range runs {
		if r.ID != result.Run.ID {
			continue
		}
		if r.Status != want {
			return &ExpectationError{
				Type:     "status",
				Expected: string(want),
				Actual:   string(r.Status),
				Codes:    result.Codes,
			}
		}
		return nil
	}
	return &ExpectationError{
		Type:     "status",
		Expected: fmt.Sprintf("recorded run %s", result.Run.ID),
		Actual:   "run not found in store",
	}
}

// EvaluateExpectations evaluates every set expectation against the result.
// Returns one message per failed expectation. st may be nil when the
// expectation has no status.
func EvaluateExpectations(ctx context.Context, result *Result, expect Expect, st *store.Store) []string {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if expect.OK != nil {
		add(expectOK(result, *expect.OK))
	}
	if len(expect.Diagnostics) > 0 {
		add(expectDiagnostics(result, expect.Diagnostics))
	}
	if len(expect.Widths) > 0 {
		add(expectWidths(result, expect.Widths))
	}
	if len(expect.VerilogContains) > 0 {
		add(expectVerilogContains(result, expect.VerilogContains))
	}
	if expect.Unsupported != "" {
		add(expectUnsupported(result, expect.Unsupported))
	}
	if expect.Status != "" {
		if st == nil {
			add(fmt.Errorf("status: expectation requires a store"))
		} else {
			add(expectStatus(ctx, st, result, expect.Status))
		}
	}

	return errs
}
