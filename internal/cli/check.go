package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/yinglong/internal/compiler"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Cache string // artifact database that records the run
}

// CheckResult is the JSON payload of a successful check.
type CheckResult struct {
	Circuit     string             `json:"circuit"`
	CircuitHash string             `json:"circuit_hash"`
	Modules     []ModuleOutput     `json:"modules"`
	Diagnostics []DiagnosticOutput `json:"diagnostics"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <circuit-file>",
		Short: "Validate and type-check a circuit",
		Long: `Validate a circuit document and infer every width.

Prints the resolved type of each declared name, or the diagnostics that
prevented inference. Warnings never fail the check.

Exit codes:
  0 - Circuit type-checks
  1 - Validation errors or inference diagnostics
  2 - Command error (missing file, undecodable document, etc.)

Examples:
  yinglong check adder.yaml
  yinglong check top.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cache, "cache", "", "record the run in this artifact database")

	return cmd
}

func runCheck(opts *CheckOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	c, err := LoadCircuit(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded circuit %s (%d module(s)) from %s", c.ID, len(c.Modules), path)

	st, err := openCacheFor(opts.RootOptions, opts.Cache)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if st != nil {
		defer st.Close()
	}

	cfg := opts.Settings()
	p := compiler.New(
		compiler.WithLogger(opts.Logger()),
		compiler.WithInferOptions(cfg.InferOptions()...),
	)
	out, err := p.Check(c)
	opts.recordRun(cmd.Context(), st, c, out, err)
	if err != nil {
		return reportPipelineError(formatter, out.Diagnostics, err)
	}

	result := CheckResult{
		Circuit:     c.ID,
		CircuitHash: out.CircuitHash,
		Modules:     moduleOutputs(out.Checked.Env),
		Diagnostics: diagnosticOutputs(out.Diagnostics),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, d := range out.Diagnostics {
		printDiagnostic(w, formatter.Style, d)
	}
	fmt.Fprintf(w, "%s Circuit %s: %d module(s) type-checked\n", formatter.Style.Success("✓"), c.ID, len(result.Modules))
	for _, m := range result.Modules {
		fmt.Fprintf(w, "\nmodule %s\n", m.ID)
		for _, b := range m.Bindings {
			fmt.Fprintf(w, "  %-16s %-6s %s\n", b.Name, b.Kind, b.Type)
		}
	}
	return nil
}
