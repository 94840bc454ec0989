package bulkindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kiln/internal/asset"
	"kiln/internal/cookerr"
	"kiln/internal/platform"
)

// Key identifies a payload: the owning object's "Package.Object" path and
// the payload name, such as MipLevel_3 or MovieStream.
type Key struct {
	Object  string
	Payload string
}

func (k Key) String() string {
	return k.Object + ":" + k.Payload
}

// Record is the placement of one payload inside a written package.
type Record struct {
	Storage      asset.BulkStorage
	ElementCount int64
	Offset       int64
	SizeOnDisk   int64
	Compression  platform.Compression
	// File is the absolute path of the package holding the payload.
	File string
}

// Entry pairs a key with its record for listings.
type Entry struct {
	Key    Key
	Record Record
}

// Index is the per-target side index. It is not safe for concurrent use.
type Index struct {
	db   *sql.DB
	path string
	dir  string

	records  map[Key]Record
	recorded map[Key]struct{}
	dirty    map[Key]struct{}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open creates or connects to the index at path and verifies its schema.
func Open(ctx context.Context, path string) (*Index, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ix := &Index{
		db:       db,
		path:     path,
		dir:      dir,
		records:  make(map[Key]Record),
		recorded: make(map[Key]struct{}),
		dirty:    make(map[Key]struct{}),
	}
	if err := ix.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ix, nil
}

// Path returns the database location.
func (ix *Index) Path() string {
	return ix.path
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Load reads every stored record into memory, replacing anything not yet
// recorded in this run.
func (ix *Index) Load(ctx context.Context) error {
	rows, err := ix.db.QueryContext(ctx, `SELECT object_path, payload_name, storage, element_count,
		file_offset, size_on_disk, compression, file FROM bulk_payloads`)
	if err != nil {
		return fmt.Errorf("query bulk payloads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key                  Key
			storage, compression string
			file                 string
			rec                  Record
		)
		if err := rows.Scan(&key.Object, &key.Payload, &storage, &rec.ElementCount,
			&rec.Offset, &rec.SizeOnDisk, &compression, &file); err != nil {
			return fmt.Errorf("scan bulk payload: %w", err)
		}
		if rec.Storage, err = asset.ParseBulkStorage(storage); err != nil {
			return fmt.Errorf("bulk payload %s: %w", key, err)
		}
		if rec.Compression, err = platform.ParseCompression(compression); err != nil {
			return fmt.Errorf("bulk payload %s: %w", key, err)
		}
		rec.File = ix.absolute(file)
		if _, ok := ix.recorded[key]; ok {
			continue
		}
		ix.records[key] = rec
	}
	return rows.Err()
}

// Record stores the placement of a payload for this run.
func (ix *Index) Record(key Key, rec Record) error {
	if _, ok := ix.recorded[key]; ok {
		existing := ix.records[key]
		if existing == rec {
			return nil
		}
		return cookerr.Fatal("bulkindex", "record",
			fmt.Sprintf("%s already placed at %s+%d (%d bytes), refusing %s+%d (%d bytes)",
				key, existing.File, existing.Offset, existing.SizeOnDisk, rec.File, rec.Offset, rec.SizeOnDisk), nil)
	}
	ix.records[key] = rec
	ix.recorded[key] = struct{}{}
	ix.dirty[key] = struct{}{}
	return nil
}

// Retrieve returns the placement of a payload.
func (ix *Index) Retrieve(key Key) (Record, bool) {
	rec, ok := ix.records[key]
	return rec, ok
}

// Len returns the number of records held in memory.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Save writes the records recorded since the last save in one transaction.
func (ix *Index) Save(ctx context.Context) error {
	if len(ix.dirty) == 0 {
		return nil
	}
	keys := make([]Key, 0, len(ix.dirty))
	for key := range ix.dirty {
		keys = append(keys, key)
	}
	sortKeys(keys)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	err := retryOnBusy(ctx, func() error {
		tx, err := ix.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO bulk_payloads (object_path, payload_name, storage,
			element_count, file_offset, size_on_disk, compression, file, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(object_path, payload_name) DO UPDATE SET
				storage = excluded.storage,
				element_count = excluded.element_count,
				file_offset = excluded.file_offset,
				size_on_disk = excluded.size_on_disk,
				compression = excluded.compression,
				file = excluded.file,
				updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, key := range keys {
			rec := ix.records[key]
			if _, err := stmt.ExecContext(ctx, key.Object, key.Payload, rec.Storage.String(), rec.ElementCount,
				rec.Offset, rec.SizeOnDisk, rec.Compression.String(), ix.relative(rec.File), now); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save bulk payloads: %w", err)
	}
	clear(ix.dirty)
	return nil
}

// All returns every record sorted by key.
func (ix *Index) All() []Entry {
	keys := make([]Key, 0, len(ix.records))
	for key := range ix.records {
		keys = append(keys, key)
	}
	sortKeys(keys)
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Key: key, Record: ix.records[key]})
	}
	return entries
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Object != keys[j].Object {
			return keys[i].Object < keys[j].Object
		}
		return keys[i].Payload < keys[j].Payload
	})
}

// Files are stored relative to the index so a cooked tree can be moved.
func (ix *Index) relative(file string) string {
	rel, err := filepath.Rel(ix.dir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}
	return filepath.ToSlash(rel)
}

func (ix *Index) absolute(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(ix.dir, filepath.FromSlash(file))
}
