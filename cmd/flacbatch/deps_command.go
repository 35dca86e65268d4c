package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flacbatch/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Report whether the external binaries flacbatch needs are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			for i, s := range statuses {
				if s.Command == cfg.Conversion.FFmpegBinary && s.Available {
					statuses[i] = deps.CheckFFmpegFLAC(cmd.Context(), s.Command)
				}
			}
			missing := deps.MissingRequired(statuses)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, map[string]any{"dependencies": statuses, "missing": missing}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					detail := s.Detail
					if s.Available {
						detail = strings.TrimSpace(s.Path + "  " + s.Version)
					}
					rows = append(rows, []string{s.Name, s.Command, statusMark(out, s.Available), detail})
				}
				fmt.Fprint(out, renderTable([]string{"Dependency", "Command", "Status", "Detail"}, rows, nil))
			}

			if len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
