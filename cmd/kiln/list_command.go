package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kiln/internal/cook"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/staleness"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:                "list platform=<pc|xenon|ps3> [switches] [roots...]",
		Short:              "Print the ordered cook plan without cooking",
		DisableFlagParsing: true,
		Annotations:        map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, tokens []string) error {
			if wantsHelp(tokens) {
				return cmd.Help()
			}
			args, err := cook.ParseArgs(ctx.takeRootFlags(tokens))
			if err != nil {
				return err
			}
			cfg, err := ctx.configFor(args.ConfigPath)
			if err != nil {
				return err
			}
			policy, err := cfg.Policy(args.Platform)
			if err != nil {
				return cookerr.Wrap(cookerr.ErrConfiguration, "list", "policy", "", err)
			}
			plan, err := cook.BuildPlan(cmd.Context(), cfg, args, policy, logging.NewNop())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(plan.Entries) == 0 {
				fmt.Fprintln(out, "Nothing to cook")
				return nil
			}
			outputRoot := cfg.Paths.OutputRoot
			rows := make([][]string, 0, len(plan.Entries))
			stale := 0
			for i, planned := range plan.Entries {
				if planned.Decision.State == staleness.Stale {
					stale++
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					planned.Entry.Name,
					cook.Describe(planned.Entry),
					planned.Decision.State.String(),
					planned.Decision.Reason,
					relativeTo(outputRoot, planned.Entry.DestinationPath),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"#>", "Package", "Class", "Decision", "Reason", "Destination"},
				rows,
			))
			fmt.Fprintf(out, "%d of %d packages stale\n", stale, len(plan.Entries))
			return nil
		},
	}
}
