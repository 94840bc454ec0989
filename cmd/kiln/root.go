package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: "Content cooker for pc, xenon and ps3 targets",
		Long: "kiln converts editor packages into per-platform cooked packages.\n" +
			"cook and list take the classic token syntax, e.g.\n" +
			"  kiln cook platform=xenon -full Entry Level01",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newCookCommand(ctx),
		newListCommand(ctx),
		newIndexCommand(ctx),
		newPreflightCommand(ctx),
		newConfigCommand(ctx),
	)
	return rootCmd
}
