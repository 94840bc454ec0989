package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kiln/internal/bulkindex"
	"kiln/internal/logging"
	"kiln/internal/platform"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the per-platform bulk payload index",
	}
	indexCmd.AddCommand(newIndexDumpCommand(ctx))
	return indexCmd
}

func newIndexDumpCommand(ctx *commandContext) *cobra.Command {
	var platformName string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every recorded payload placement",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := platform.Parse(platformName)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := bulkindex.Open(cmd.Context(), cfg.IndexPath(id))
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer index.Close()
			if err := index.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load index: %w", err)
			}

			out := cmd.OutOrStdout()
			entries := index.All()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No payloads recorded for %s\n", id)
				return nil
			}
			cookedDir := cfg.CookedDir(id)
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Key.Object,
					e.Key.Payload,
					e.Record.Storage.String(),
					strconv.FormatInt(e.Record.Offset, 10),
					logging.FormatBytes(e.Record.SizeOnDisk),
					strconv.FormatInt(e.Record.ElementCount, 10),
					e.Record.Compression.String(),
					relativeTo(cookedDir, e.Record.File),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Object", "Payload", "Storage", "Offset>", "Size>", "Elements>", "Compression", "File"},
				rows,
			))
			fmt.Fprintf(out, "%d payloads\n", len(entries))
			return nil
		},
	}
	platformFlag(cmd, &platformName)
	return cmd
}
