package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/leapstack-labs/dynmacro/internal/cli/output"
	"github.com/leapstack-labs/dynmacro/internal/state"
	"github.com/spf13/cobra"
)

// DefaultHistoryLimit is the number of runs shown when --limit is not set.
const DefaultHistoryLimit = 20

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit      int
	Reconciles bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled macro runs",
		Long: `Show the most recent macro runs recorded in the invocation journal,
newest first. Runs made through exec or console are journaled unless the
state path is ":memory:".

Use --reconciles to show registry reloads instead.`,
		Example: `  # Last 20 runs
  dynmacro history

  # Everything, as JSON
  dynmacro history --limit 0 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", DefaultHistoryLimit, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Reconciles, "reconciles", false, "Show registry reloads instead of runs")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	path := cmdCtx.Cfg.StatePath

	if path == state.MemoryPath {
		return fmt.Errorf("journal is disabled (state path is %s)", state.MemoryPath)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		r.Warning(fmt.Sprintf("no journal at %s", path))
		return nil
	}

	store := state.NewSQLiteStore(cmdCtx.Logger)
	if err := store.Open(path); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.Reconciles {
		entries, err := store.ListReconciles(cmd.Context(), opts.Limit)
		if err != nil {
			return err
		}
		return printReconciles(r, entries)
	}

	runs, err := store.ListInvocations(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	return printInvocations(r, runs)
}

func printInvocations(r *output.Renderer, runs []*state.InvocationRecord) error {
	if r.EffectiveMode() == output.ModeJSON {
		infos := make([]output.InvocationInfo, len(runs))
		for i, run := range runs {
			infos[i] = output.InvocationInfo{
				ID:          run.ID,
				Macro:       run.Macro,
				Command:     run.Command,
				RawParams:   run.RawParams,
				Depth:       run.Depth,
				Placeholder: run.Placeholder,
				Status:      string(run.Status),
				Error:       run.Error,
				StartedAt:   run.StartedAt,
				CompletedAt: run.CompletedAt,
				DurationMS:  run.Duration().Milliseconds(),
			}
		}
		return r.JSON(infos)
	}

	r.Header(1, "History")
	if len(runs) == 0 {
		r.Muted("no runs recorded")
		return nil
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			run.StartedAt.Local().Format(time.DateTime),
			run.Macro,
			run.Command + paramsSuffix(run.RawParams),
			strconv.Itoa(run.Depth),
			string(run.Status),
			run.Duration().Round(time.Millisecond).String(),
			run.Error,
		}
	}
	r.Table([]string{"Started", "Macro", "Command", "Depth", "Status", "Duration", "Error"}, rows)
	return nil
}

func printReconciles(r *output.Renderer, entries []*state.ReconcileEntry) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}

	r.Header(1, "Reloads")
	if len(entries) == 0 {
		r.Muted("no reloads recorded")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		status := "reloaded"
		if e.Skipped {
			status = "unchanged"
		}
		rows[i] = []string{
			e.CreatedAt.Local().Format(time.DateTime),
			status,
			strconv.Itoa(e.Macros),
			strconv.Itoa(e.Registered),
			strconv.Itoa(e.Diagnostics),
			e.Duration.String(),
		}
	}
	r.Table([]string{"Time", "Status", "Macros", "Registered", "Diagnostics", "Duration"}, rows)
	return nil
}

func paramsSuffix(raw string) string {
	if raw == "" {
		return ""
	}
	return " " + raw
}
