package bulkindex_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"kiln/internal/asset"
	"kiln/internal/bulkindex"
	"kiln/internal/cookerr"
	"kiln/internal/platform"
	"kiln/internal/testsupport"
)

func sampleRecord(dir string, offset int64) bulkindex.Record {
	return bulkindex.Record{
		Storage:      asset.StorageInline,
		ElementCount: 4096,
		Offset:       offset,
		SizeOnDisk:   1024,
		Compression:  platform.CompressLZ4,
		File:         filepath.Join(dir, "Props.xxx"),
	}
}

func TestRecordSaveAndReload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.MustOpenIndex(t, cfg, platform.Xenon)
	ctx := context.Background()

	key := bulkindex.Key{Object: "Props.Crate", Payload: asset.MipName(2)}
	rec := sampleRecord(cfg.CookedDir(platform.Xenon), 64)
	if err := ix.Record(key, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := ix.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenIndex(t, cfg, platform.Xenon)
	if err := reopened.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := reopened.Retrieve(key)
	if !ok {
		t.Fatal("expected record after reload")
	}
	if got != rec {
		t.Fatalf("reloaded record = %+v, want %+v", got, rec)
	}
}

func TestRecordIsImmutableWithinRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.MustOpenIndex(t, cfg, platform.PS3)
	dir := cfg.CookedDir(platform.PS3)

	key := bulkindex.Key{Object: "Props.Crate", Payload: asset.MipName(0)}
	if err := ix.Record(key, sampleRecord(dir, 64)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := ix.Record(key, sampleRecord(dir, 64)); err != nil {
		t.Fatalf("identical Record should be a no-op, got %v", err)
	}
	err := ix.Record(key, sampleRecord(dir, 128))
	if err == nil {
		t.Fatal("expected conflicting record to fail")
	}
	if !errors.Is(err, cookerr.ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if got, _ := ix.Retrieve(key); got.Offset != 64 {
		t.Fatalf("conflicting record replaced original: %+v", got)
	}
}

func TestLoadedRecordsCanBeReplacedByNewRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	dir := cfg.CookedDir(platform.PC)
	key := bulkindex.Key{Object: "Props.Crate", Payload: asset.MipName(1)}

	first := testsupport.MustOpenIndex(t, cfg, platform.PC)
	if err := first.Record(key, sampleRecord(dir, 64)); err != nil {
		t.Fatal(err)
	}
	if err := first.Save(ctx); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second := testsupport.MustOpenIndex(t, cfg, platform.PC)
	if err := second.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := second.Record(key, sampleRecord(dir, 512)); err != nil {
		t.Fatalf("new run should overwrite a loaded record: %v", err)
	}
	if err := second.Save(ctx); err != nil {
		t.Fatal(err)
	}
	all := second.All()
	if len(all) != 1 || all[0].Record.Offset != 512 {
		t.Fatalf("unexpected records: %+v", all)
	}
}

func TestAllIsSorted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.MustOpenIndex(t, cfg, platform.Xenon)
	dir := cfg.CookedDir(platform.Xenon)
	keys := []bulkindex.Key{
		{Object: "B.Tex", Payload: "MipLevel_1"},
		{Object: "A.Tex", Payload: "MipLevel_2"},
		{Object: "A.Tex", Payload: "MipLevel_0"},
	}
	for i, key := range keys {
		if err := ix.Record(key, sampleRecord(dir, int64(64*(i+1)))); err != nil {
			t.Fatal(err)
		}
	}
	all := ix.All()
	want := []string{"A.Tex:MipLevel_0", "A.Tex:MipLevel_2", "B.Tex:MipLevel_1"}
	for i, entry := range all {
		if entry.Key.String() != want[i] {
			t.Fatalf("All()[%d] = %s, want %s", i, entry.Key, want[i])
		}
	}
}

func TestFilesStoredRelativeToIndex(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.MustOpenIndex(t, cfg, platform.Xenon)
	ctx := context.Background()
	key := bulkindex.Key{Object: "Props.Crate", Payload: asset.MipName(0)}
	if err := ix.Record(key, sampleRecord(cfg.CookedDir(platform.Xenon), 64)); err != nil {
		t.Fatal(err)
	}
	if err := ix.Save(ctx); err != nil {
		t.Fatal(err)
	}
	_ = ix.Close()

	db, err := sql.Open("sqlite", cfg.IndexPath(platform.Xenon))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var file string
	if err := db.QueryRow("SELECT file FROM bulk_payloads").Scan(&file); err != nil {
		t.Fatal(err)
	}
	if file != "Props.xxx" {
		t.Fatalf("stored file = %q, want relative Props.xxx", file)
	}
}

func TestSchemaVersionMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := cfg.IndexPath(platform.PC)
	ix := testsupport.MustOpenIndex(t, cfg, platform.PC)
	_ = ix.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := bulkindex.Open(context.Background(), path); !errors.Is(err, bulkindex.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
