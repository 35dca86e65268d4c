package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"flacbatch/internal/history"
	"flacbatch/internal/logging"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past runs",
	}

	listCmd := newHistoryListCommand(ctx)
	historyCmd.RunE = listCmd.RunE
	historyCmd.Flags().AddFlagSet(listCmd.Flags())
	historyCmd.AddCommand(listCmd)
	historyCmd.AddCommand(newHistoryShowCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if runs == nil {
						runs = []history.Run{}
					}
					return writeJSON(cmd, runs)
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.RunID),
						run.StartedAt.Local().Format("2006-01-02 15:04"),
						run.InputDir,
						strconv.Itoa(run.TotalFiles),
						strconv.Itoa(run.Successful),
						strconv.Itoa(run.Failed + run.StagingFailed),
						logging.FormatBytes(run.TotalInputBytes),
						run.Elapsed.Round(time.Second).String(),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Run", "Started", "Input", "Files", "OK", "Failed", "Size", "Elapsed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its failures (a unique ID prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if errors.Is(err, history.ErrNotFound) {
					return fmt.Errorf("no run matches %q", args[0])
				}
				if err != nil {
					return err
				}
				failures, err := store.Failures(cmd.Context(), run.RunID)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if failures == nil {
						failures = []history.Failure{}
					}
					return writeJSON(cmd, map[string]any{"run": run, "failures": failures})
				}

				out := cmd.OutOrStdout()
				pairs := [][2]string{
					{"Run", run.RunID},
					{"Started", run.StartedAt.Local().Format(time.RFC3339)},
					{"Input", run.InputDir},
					{"Output", run.OutputDir},
					{"Files", fmt.Sprintf("%d total, %d converted, %d failed, %d not staged", run.TotalFiles, run.Successful, run.Failed, run.StagingFailed)},
					{"Input size", logging.FormatBytes(run.TotalInputBytes)},
					{"Output size", logging.FormatBytes(run.OutputBytes)},
					{"Elapsed", run.Elapsed.Round(time.Millisecond).String()},
					{"Staged", yesNo(run.Staged)},
					{"Cancelled", yesNo(run.Cancelled)},
				}
				if run.CleanupError != "" {
					pairs = append(pairs, [2]string{"Cleanup", run.CleanupError})
				}
				fmt.Fprint(out, renderKeyValues(pairs))
				if len(failures) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(failures))
				for _, f := range failures {
					rows = append(rows, []string{f.Kind, f.RelPath, f.Reason, f.Message})
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderTable([]string{"Kind", "File", "Reason", "Error"}, rows, nil))
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
