package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/yinglong/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Cache string
}

// RunOutput is the JSON form of one recorded run.
type RunOutput struct {
	Seq         int64                 `json:"seq"`
	ID          string                `json:"id"`
	Status      store.RunStatus       `json:"status"`
	Cached      bool                  `json:"cached"`
	CircuitHash string                `json:"circuit_hash,omitempty"`
	OptionsHash string                `json:"options_hash,omitempty"`
	Diagnostics []store.RunDiagnostic `json:"diagnostics,omitempty"`
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Circuit string      `json:"circuit"`
	Runs    []RunOutput `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <circuit-file>",
		Short: "List recorded runs of a circuit",
		Long: `List the check and lower runs recorded for a circuit, oldest first.

The circuit is identified by the ID in the document, so edits to the
document keep their history.

Examples:
  yinglong history adder.yaml --cache .yinglong/cache.db
  yinglong history adder.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cache, "cache", "", "artifact database (default: configured cache path)")

	return cmd
}

func runHistory(opts *HistoryOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	c, err := LoadCircuit(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	dbPath := opts.Cache
	if dbPath == "" {
		dbPath = opts.Settings().Cache.Path
	}
	st, err := openCache(dbPath)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), c.ID)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeStoreFailed, err)
	}

	result := HistoryResult{Circuit: c.ID, Runs: make([]RunOutput, 0, len(runs))}
	for _, r := range runs {
		result.Runs = append(result.Runs, RunOutput{
			Seq:         r.Seq,
			ID:          r.ID,
			Status:      r.Status,
			Cached:      r.Cached,
			CircuitHash: r.CircuitHash,
			OptionsHash: r.OptionsHash,
			Diagnostics: r.Diagnostics,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(result.Runs) == 0 {
		fmt.Fprintf(w, "No runs recorded for %s.\n", c.ID)
		return nil
	}
	fmt.Fprintf(w, "Runs for %s:\n", c.ID)
	for _, r := range result.Runs {
		status := string(r.Status)
		if r.Status == store.RunOK {
			status = formatter.Style.Success(status)
		} else {
			status = formatter.Style.Error(status)
		}
		cached := ""
		if r.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(w, "  %4d  %s  %s%s\n", r.Seq, r.ID, status, cached)
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "        [%s] %s\n", d.Code, d.Message)
		}
	}
	return nil
}
