package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"kiln/internal/cookerr"
)

// Exit statuses: 1 for a failed cook, 2 for bad arguments or configuration.
const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		if errors.Is(err, cookerr.ErrConfiguration) {
			os.Exit(exitUsage)
		}
		os.Exit(exitFailure)
	}
}
