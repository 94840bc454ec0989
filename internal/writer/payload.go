package writer

import (
	"context"
	"fmt"
	"strings"

	"kiln/internal/asset"
	"kiln/internal/bulkindex"
	"kiln/internal/catalog"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/pkgfile"
	"kiln/internal/runctx"
)

// PatchResult describes one payload-only refresh.
type PatchResult struct {
	Package string
	Patched int
	Files   int
}

// Patch refreshes the inline payloads of entry's resident textures and
// movies in the files an earlier full run wrote, without rewriting any
// package. Every payload must have a record of the same length and stored
// size.
func (w *Writer) Patch(ctx context.Context, entry catalog.Entry) (PatchResult, error) {
	result := PatchResult{Package: entry.Name}
	if isSynthetic(entry) {
		return result, nil
	}
	ctx = runctx.WithPackage(ctx, entry.Name)
	ctx = runctx.WithStage(ctx, "patch")
	w.state = StateIdle
	defer func() { w.state = StateIdle }()

	w.transition(ctx, StateLoading, logging.String("classification", entry.Classification.String()))
	pkg, err := w.loader.Load(ctx, entry.Name)
	if err != nil {
		return result, loadError(entry, err)
	}
	w.stamp(pkg, entry)
	ld := loaded{entry: entry, pkg: pkg}
	if err := w.checkGC(ctx, ld); err != nil {
		return result, err
	}

	l := layout{
		seekFree:        entry.Classification.IsSeekFree(),
		fullyCompressed: fullyCompressed(entry.Classification, w.opts.Policy),
	}
	var objects []*asset.Object
	for _, obj := range w.universe.ObjectsIn(pkg.ID) {
		if obj.Kind != asset.KindTexture && obj.Kind != asset.KindMovie {
			continue
		}
		if obj.Has(asset.FlagTransient) {
			continue
		}
		if obj.IsLocalized() && !strings.EqualFold(obj.Language, w.opts.Policy.Language) {
			continue
		}
		if err := w.cooker.Cook(ctx, obj); err != nil {
			return result, err
		}
		if err := w.place(obj, true, l); err != nil {
			return result, err
		}
		objects = append(objects, obj)
	}
	w.transition(ctx, StateTransformed, logging.Int("objects", len(objects)))

	files := make(map[string]struct{})
	for _, obj := range objects {
		for _, p := range obj.Payloads() {
			if p.Storage != asset.StorageInline {
				continue
			}
			file, err := w.patchPayload(obj, p)
			if err != nil {
				return result, err
			}
			files[file] = struct{}{}
			result.Patched++
		}
	}
	result.Files = len(files)
	w.stats.Patched += result.Patched
	pkg.Set(asset.PackageCooked)
	w.transition(ctx, StateWritten,
		logging.Int("payloads", result.Patched),
		logging.Int("files", result.Files),
	)
	return result, nil
}

func (w *Writer) patchPayload(obj *asset.Object, p *asset.BulkPayload) (string, error) {
	key := bulkindex.Key{Object: w.universe.Path(obj), Payload: p.Name}
	rec, ok := w.index.Retrieve(key)
	if !ok {
		return "", cookerr.Fatal("writer", "patch",
			fmt.Sprintf("no placement recorded for %s; run a full cook first", key), nil)
	}
	if int64(len(p.Data)) != rec.ElementCount {
		return "", cookerr.Fatal("writer", "patch",
			fmt.Sprintf("%s holds %d bytes, recorded %d; recook with -full", key, len(p.Data), rec.ElementCount), nil)
	}
	stored, err := pkgfile.Compress(p.Data, rec.Compression)
	if err != nil {
		return "", cookerr.Fatal("writer", "patch", key.String(), err)
	}
	if int64(len(stored)) != rec.SizeOnDisk {
		return "", cookerr.Fatal("writer", "patch",
			fmt.Sprintf("%s encodes to %d bytes, recorded %d", key, len(stored), rec.SizeOnDisk), nil)
	}
	if err := pkgfile.PatchPayload(rec.File, rec.Offset, stored); err != nil {
		return "", cookerr.Fatal("writer", "patch", key.String(), err)
	}
	p.File = rec.File
	p.Offset = rec.Offset
	p.SizeOnDisk = rec.SizeOnDisk
	return rec.File, nil
}
