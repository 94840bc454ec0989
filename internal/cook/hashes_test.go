package cook_test

import (
	"os"
	"path/filepath"
	"testing"

	"kiln/internal/cook"
)

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, cook.HashesFileName)

	empty, err := cook.ReadManifest(path)
	if err != nil || len(empty) != 0 {
		t.Fatalf("missing manifest = %v, %v", empty, err)
	}

	pkg := filepath.Join(dir, "Core.xxx")
	if err := os.WriteFile(pkg, []byte("cooked"), 0o644); err != nil {
		t.Fatal(err)
	}
	digest, err := cook.HashFile(pkg)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if len(digest) != 64 {
		t.Fatalf("digest %q is not 32 hex bytes", digest)
	}

	m := cook.Manifest{"Core.xxx": digest, "Startup_INT.xxx": digest}
	if err := m.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := cook.ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(got) != 2 || got["Core.xxx"] != digest {
		t.Fatalf("manifest = %v", got)
	}

	if err := os.WriteFile(pkg, []byte("recooked"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := cook.HashFile(pkg)
	if err != nil {
		t.Fatal(err)
	}
	if changed == digest {
		t.Fatal("digest should follow file contents")
	}
}

func TestMalformedManifestIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), cook.HashesFileName)
	if err := os.WriteFile(path, []byte("abc Core.xxx\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cook.ReadManifest(path); err == nil {
		t.Fatal("expected parse error")
	}
}
