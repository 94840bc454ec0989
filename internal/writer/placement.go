package writer

import (
	"fmt"

	"kiln/internal/asset"
	"kiln/internal/bulkindex"
	"kiln/internal/cookerr"
	"kiln/internal/platform"
)

// layout carries the package-level facts payload placement depends on.
type layout struct {
	seekFree        bool
	fullyCompressed bool
}

// inlineCompression is the per-payload method for inline payloads. Seek-free
// and fully compressed packages store payloads raw, as does ps3.
func (w *Writer) inlineCompression(l layout) platform.Compression {
	if l.seekFree || l.fullyCompressed || w.opts.Policy.Platform == platform.PS3 {
		return platform.CompressNone
	}
	return w.opts.Policy.Compression
}

// place decides the storage of every bulk payload of obj. resident reports
// whether obj belongs to the package being written.
func (w *Writer) place(obj *asset.Object, resident bool, l layout) error {
	switch {
	case obj.Texture != nil:
		return w.placeTexture(obj, resident, l)
	case obj.Movie != nil && obj.Movie.Stream != nil:
		stream := obj.Movie.Stream
		stream.ResetPlacement()
		if stream.Storage == asset.StorageUnused && stream.Data == nil {
			return nil
		}
		stream.Storage = asset.StorageInline
		stream.Compression = w.inlineCompression(l)
	}
	return nil
}

func (w *Writer) placeTexture(obj *asset.Object, resident bool, l layout) error {
	tex := obj.Texture
	n := tex.MipCount()
	streaming := !resident && !tex.NeverStream
	for i, mip := range tex.Mips {
		mip.ResetPlacement()
		switch {
		case i < tex.FirstMip || i > tex.MipTailBase:
			mip.Storage = asset.StorageUnused
		case l.seekFree && streaming && i < n-w.opts.Policy.MinResidentMips && i < tex.MipTailBase:
			key := bulkindex.Key{Object: w.universe.Path(obj), Payload: mip.Name}
			rec, ok := w.index.Retrieve(key)
			if !ok {
				return cookerr.Fatal("writer", "place",
					fmt.Sprintf("no placement recorded for streaming mip %s; recook with -full", key), nil)
			}
			mip.Storage = asset.StorageExternal
			mip.Compression = rec.Compression
			mip.File = rec.File
			mip.Offset = rec.Offset
			mip.SizeOnDisk = rec.SizeOnDisk
			mip.ElementCount = int(rec.ElementCount)
		default:
			mip.Storage = asset.StorageInline
			mip.Compression = w.inlineCompression(l)
		}
	}
	return nil
}

// record stores the inline placements of a resident object.
func (w *Writer) record(obj *asset.Object) (int, error) {
	recorded := 0
	for _, p := range obj.Payloads() {
		if p.Storage != asset.StorageInline || p.File == "" {
			continue
		}
		key := bulkindex.Key{Object: w.universe.Path(obj), Payload: p.Name}
		err := w.index.Record(key, bulkindex.Record{
			Storage:      asset.StorageInline,
			ElementCount: int64(p.ElementCount),
			Offset:       p.Offset,
			SizeOnDisk:   p.SizeOnDisk,
			Compression:  p.Compression,
			File:         p.File,
		})
		if err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}
