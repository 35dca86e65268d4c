package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flacbatch/internal/capacity"
	"flacbatch/internal/logging"
	"flacbatch/internal/pipeline"
	"flacbatch/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "preflight <input-dir>",
		Short: "Check directories, ffmpeg, and staging space without converting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			req := pipeline.RequestFromConfig(cfg, args[0])
			opts.apply(cmd, &req)
			plan, planErr := pipeline.New(nil, logger).Preflight(cmd.Context(), req)

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Target{
				InputDir:   plan.Request.InputDir,
				OutputDir:  plan.Request.OutputDir,
				Stage:      plan.Request.Stage,
				StagingDir: plan.Request.StagingDir,
			})
			failed := preflight.Failed(results)

			if ctx.JSONMode() {
				payload := map[string]any{
					"checks":      results,
					"input_dir":   plan.Request.InputDir,
					"output_dir":  plan.Request.OutputDir,
					"files":       len(plan.Files),
					"total_bytes": plan.TotalBytes,
					"capacity":    plan.Capacity,
				}
				if planErr != nil {
					payload["error"] = planErr.Error()
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Name, statusMark(out, r.Passed), r.Detail})
				}
				fmt.Fprint(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
				if planErr == nil {
					fmt.Fprintln(out)
					printPlan(out, plan)
				}
			}

			switch {
			case planErr != nil:
				return planErr
			case len(failed) > 0:
				return fmt.Errorf("preflight failed: %d of %d checks did not pass", len(failed), len(results))
			case plan.Capacity != nil && plan.Capacity.Status == capacity.StatusInsufficient:
				return plan.Capacity.AsError()
			}
			logger.Debug("preflight passed",
				logging.Int("files", len(plan.Files)),
				logging.String("total", logging.FormatBytes(plan.TotalBytes)),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Destination directory (default <input>_converted)")
	flags.BoolVar(&opts.stage, "stage", false, "Check the staging cache as well")
	flags.BoolVar(&opts.noStage, "no-stage", false, "Skip staging checks")
	flags.StringVar(&opts.stagingDir, "staging-dir", "", "Staging cache root (overrides paths.staging_dir)")
	flags.StringVar(&opts.extension, "ext", "", "Source file extension to look for")
	cmd.MarkFlagsMutuallyExclusive("stage", "no-stage")
	return cmd
}
