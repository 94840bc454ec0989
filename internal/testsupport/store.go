package testsupport

import (
	"context"
	"testing"

	"kiln/internal/bulkindex"
	"kiln/internal/config"
	"kiln/internal/platform"
)

// MustOpenIndex opens the side index for a target and registers cleanup.
func MustOpenIndex(t testing.TB, cfg *config.Config, id platform.ID) *bulkindex.Index {
	t.Helper()

	ix, err := bulkindex.Open(context.Background(), cfg.IndexPath(id))
	if err != nil {
		t.Fatalf("bulkindex.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = ix.Close()
	})
	return ix
}
