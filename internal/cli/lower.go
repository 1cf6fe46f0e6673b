package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/yinglong/internal/compiler"
	"github.com/roach88/yinglong/internal/config"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	*RootOptions
	Output             string // output file path; stdout when empty
	Registers          bool
	NoPositionComments bool
	Workers            int
	Cache              string
}

// LowerResult is the JSON payload of a successful lowering.
type LowerResult struct {
	Circuit     string             `json:"circuit"`
	CircuitHash string             `json:"circuit_hash"`
	OptionsHash string             `json:"options_hash"`
	Cached      bool               `json:"cached"`
	Output      string             `json:"output,omitempty"`
	Verilog     string             `json:"verilog,omitempty"`
	Diagnostics []DiagnosticOutput `json:"diagnostics"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lower <circuit-file>",
		Short: "Lower a circuit to Verilog",
		Long: `Type-check a circuit and emit one Verilog module per IR module.

Output is byte-identical for the same circuit and options regardless of
worker count. With a cache, previously lowered circuits are served from
the artifact database.

Exit codes:
  0 - Verilog emitted
  1 - Circuit rejected (diagnostics or unsupported construct)
  2 - Command error (missing file, write failure, etc.)

Examples:
  yinglong lower adder.yaml
  yinglong lower counter.yaml --registers -o counter.v
  yinglong lower top.cue --cache .yinglong/cache.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Registers, "registers", false, "lower registers to clocked always blocks")
	cmd.Flags().BoolVar(&opts.NoPositionComments, "no-position-comments", false, "omit source position comments")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel workers (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "artifact database")

	return cmd
}

func runLower(opts *LowerOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Workers < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--workers must be >= 0, got %d", opts.Workers))
	}

	c, err := LoadCircuit(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded circuit %s (%d module(s)) from %s", c.ID, len(c.Modules), path)

	st, err := openCacheFor(opts.RootOptions, opts.Cache)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	cfg := opts.settings(cmd)
	pipelineOpts := []compiler.Option{
		compiler.WithLogger(opts.Logger()),
		compiler.WithInferOptions(cfg.InferOptions()...),
		compiler.WithLowerOptions(cfg.LowerOptions()...),
	}
	if st != nil {
		defer st.Close()
		pipelineOpts = append(pipelineOpts, compiler.WithCache(st))
	}

	out, err := compiler.New(pipelineOpts...).Lower(cmd.Context(), c)
	opts.recordRun(cmd.Context(), st, c, out, err)
	if err != nil {
		return reportPipelineError(formatter, out.Diagnostics, err)
	}
	if out.Cached {
		formatter.VerboseLog("Served from cache (%s)", out.CircuitHash)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(out.Verilog), 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	if formatter.Format == "json" {
		result := LowerResult{
			Circuit:     c.ID,
			CircuitHash: out.CircuitHash,
			OptionsHash: out.OptionsHash,
			Cached:      out.Cached,
			Output:      opts.Output,
			Diagnostics: diagnosticOutputs(out.Diagnostics),
		}
		if opts.Output == "" {
			result.Verilog = out.Verilog
		}
		return formatter.Success(result)
	}

	// Warnings go to stderr so stdout stays valid Verilog.
	for _, d := range out.Diagnostics {
		printDiagnostic(formatter.GetErrWriter(), formatter.Style, d)
	}
	if opts.Output == "" {
		fmt.Fprint(formatter.Writer, out.Verilog)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%s Lowered %d module(s) to %s\n", formatter.Style.Success("✓"), len(c.Modules), opts.Output)
	return nil
}

// settings starts from the configuration and applies the flags the user set
// explicitly. Workers bounds both checking and lowering.
func (o *LowerOptions) settings(cmd *cobra.Command) *config.Config {
	cfg := *o.Settings()
	if cmd.Flags().Changed("registers") {
		cfg.Lower.Registers = o.Registers
	}
	if cmd.Flags().Changed("no-position-comments") {
		cfg.Lower.PositionComments = !o.NoPositionComments
	}
	if cmd.Flags().Changed("workers") {
		cfg.Lower.Workers = o.Workers
	}
	return &cfg
}
