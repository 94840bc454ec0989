package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kiln/internal/platform"
	"kiln/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var platformName string
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check paths, free space and toolchains for a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := platform.Parse(platformName)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, id)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Check", "Status", "Detail"}, rows))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight checks failed", len(failed))
			}
			return nil
		},
	}
	platformFlag(cmd, &platformName)
	return cmd
}
