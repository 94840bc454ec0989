package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kiln/internal/cook"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/preflight"
)

const cookUsage = "cook platform=<pc|xenon|ps3> [-full] [-skipmaps] [-alwaysrecookmaps] [-alwaysrecookscript] " +
	"[-cookallnonmappackages] [-payloadonly] [-skipnotrequired] [-skipsavingmaps] [-sha] [-config=<path>] [roots...]"

func newCookCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:                cookUsage,
		Short:              "Cook content for one target platform",
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
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if failed := preflight.Failed(preflight.RunAll(runCtx, cfg, args.Platform)); len(failed) > 0 {
				return cookerr.Fatal("cook", "preflight", preflight.Summary(failed), nil)
			}

			summary, err := cook.Run(runCtx, cfg, args, logger)
			if summary != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(cmd.OutOrStdout(), summary))
			}
			if err != nil {
				if errors.Is(err, cookerr.ErrFatal) {
					logging.ErrorWithContext(logger, "cook failed", "cook_failed", logging.Error(err))
				}
				return err
			}
			return nil
		},
	}
}

func renderSummary(out io.Writer, s *cook.Summary) string {
	rows := [][]string{
		{"Run", s.RunID},
		{"Platform", string(s.Platform)},
		{"Planned", strconv.Itoa(s.Planned)},
		{"Stale", strconv.Itoa(s.Stale)},
		{"Written", strconv.Itoa(s.Written)},
		{"Patched payloads", strconv.Itoa(s.Patched)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Not saved", strconv.Itoa(s.NotSaved)},
		{"Size", logging.FormatBytes(s.Bytes)},
		{"Exports", strconv.Itoa(s.Exports)},
		{"Forced exports", strconv.Itoa(s.Forced)},
		{"Payloads recorded", strconv.Itoa(s.Recorded)},
		{"Hashed", strconv.Itoa(s.Hashed)},
		{"Recovered objects", strconv.Itoa(s.Recovered)},
	}
	for _, kc := range s.Cooked {
		rows = append(rows, []string{"Cooked " + kc.Kind.String(), strconv.Itoa(kc.Count)})
	}
	for _, phase := range s.Phases {
		rows = append(rows, []string{"Phase " + phase.Name, phase.Duration.Round(time.Millisecond).String()})
	}
	rows = append(rows, []string{"Duration", s.Duration.Round(time.Millisecond).String()})
	return renderTable(out, []string{"Metric", "Value>"}, rows)
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
