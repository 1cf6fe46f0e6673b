package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/yinglong/internal/store"
)

// ScenarioDirError is returned when a scenario directory is missing or is
// not a directory.
type ScenarioDirError struct {
	Dir    string
	Reason string
}

// Error implements the error interface.
func (e *ScenarioDirError) Error() string {
	return fmt.Sprintf("scenario directory %s: %s", e.Dir, e.Reason)
}

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against scenario file names without
	// extension. Empty matches everything.
	Filter string

	// Update rewrites golden files instead of comparing against them.
	Update bool

	// GoldenDir holds golden files. Defaults to <dir>/golden.
	GoldenDir string

	// Store records runs and caches artifacts across scenarios. When nil
	// each scenario gets a fresh in-memory store.
	Store *store.Store

	Logger *slog.Logger
}

// ScenarioResult is the outcome of one scenario in a suite.
type ScenarioResult struct {
	Name          string          `json:"name"`
	File          string          `json:"file"`
	Pass          bool            `json:"pass"`
	Status        store.RunStatus `json:"status,omitempty"`
	GoldenUpdated bool            `json:"golden_updated,omitempty"`
	Errors        []string        `json:"errors,omitempty"`
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// FindScenarios returns the scenario files directly inside dir, sorted by
// name. Subdirectories are not searched, so circuit documents may live in
// one without being mistaken for scenarios.
func FindScenarios(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &ScenarioDirError{Dir: dir, Reason: "not found"}
	}
	if err != nil {
		return nil, &ScenarioDirError{Dir: dir, Reason: err.Error()}
	}
	if !info.IsDir() {
		return nil, &ScenarioDirError{Dir: dir, Reason: "not a directory"}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ScenarioDirError{Dir: dir, Reason: err.Error()}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario in dir. A scenario that fails to
// load or run counts as failed; the returned error is reserved for problems
// with the directory itself.
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, err
	}
	if opts.GoldenDir == "" {
		opts.GoldenDir = filepath.Join(dir, "golden")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	result := &SuiteResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runSuiteScenario(ctx, file, opts)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	return result, nil
}

func runSuiteScenario(ctx context.Context, file string, opts SuiteOptions) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	var result *Result
	if opts.Store != nil {
		result, err = New(opts.Store, opts.Logger).Run(ctx, scenario)
	} else {
		result, err = Run(scenario)
	}
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Status = result.Status
	sr.Errors = result.Errors

	if scenario.Golden && result.OK() {
		path := filepath.Join(opts.GoldenDir, scenario.Name+".golden")
		if opts.Update {
			if err := writeGolden(path, result.Verilog); err != nil {
				sr.Errors = append(sr.Errors, err.Error())
			} else {
				sr.GoldenUpdated = true
			}
		} else if msg := compareGolden(path, result.Verilog); msg != "" {
			sr.Errors = append(sr.Errors, msg)
		}
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

func writeGolden(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func compareGolden(path, text string) string {
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Sprintf("golden file %s missing (run with --update to create)", path)
	}
	if err != nil {
		return fmt.Sprintf("failed to read golden file: %v", err)
	}
	if string(want) != text {
		return fmt.Sprintf("Verilog does not match golden file %s (run with --update to regenerate)", path)
	}
	return ""
}
