package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/yinglong/internal/harness"
	"github.com/roach88/yinglong/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Cache  string // shared artifact database; per-scenario in-memory when empty
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run the YAML scenarios in a directory.

Each scenario names a circuit document, the lowering settings and the
expected outcome. Passing scenarios are compared against
<scenarios-dir>/golden/<name>.golden when golden comparison is enabled.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  yinglong test ./scenarios
  yinglong test ./scenarios --filter "counter*"
  yinglong test ./scenarios --update
  yinglong test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "share one artifact database across scenarios")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var st *store.Store
	if opts.Cache != "" {
		var err error
		st, err = openCache(opts.Cache)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		defer st.Close()
	}

	result, err := harness.RunSuite(cmd.Context(), dir, harness.SuiteOptions{
		Filter: opts.Filter,
		Update: opts.Update,
		Store:  st,
		Logger: opts.Logger(),
	})
	if err != nil {
		var dirErr *harness.ScenarioDirError
		if errors.As(err, &dirErr) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}

	if formatter.Format == "json" {
		if result.Failed > 0 {
			_ = formatter.Failure(ErrCodeTestFailed, fmt.Sprintf("%d scenario(s) failed", result.Failed), result)
		} else if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputTestText(formatter, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs test results in human-readable format.
func outputTestText(f *OutputFormatter, result *harness.SuiteResult) {
	w := f.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, sr := range result.Scenarios {
		if sr.Pass {
			suffix := ""
			if sr.GoldenUpdated {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(w, "%s %s%s\n", f.Style.Success("✓"), sr.Name, suffix)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", f.Style.Error("✗"), sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("%d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		fmt.Fprintln(w, f.Style.Error(summary))
	} else {
		fmt.Fprintln(w, f.Style.Success(summary))
	}
}
