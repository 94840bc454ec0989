package writer

import (
	"encoding/binary"
	"sort"

	"kiln/internal/asset"
	"kiln/internal/pkgfile"
	"kiln/internal/platform"
)

// buildExports converts saved objects into package exports. References to
// objects outside the set become imports.
func (w *Writer) buildExports(objects []*asset.Object) []pkgfile.Export {
	order := w.opts.Policy.Platform.ByteOrder()
	inSet := make(map[asset.ObjectID]bool, len(objects))
	for _, obj := range objects {
		inSet[obj.ID] = true
	}
	exports := make([]pkgfile.Export, 0, len(objects))
	for _, obj := range objects {
		exp := pkgfile.Export{
			Path:     w.universe.Path(obj),
			Kind:     obj.Kind,
			Flags:    uint32(obj.Flags),
			Language: obj.Language,
			Body:     encodeBody(obj, order),
		}
		seen := make(map[string]bool)
		for _, ref := range obj.Refs {
			target := w.universe.Object(ref)
			if target == nil || inSet[target.ID] {
				continue
			}
			path := w.universe.Path(target)
			if !seen[path] {
				seen[path] = true
				exp.Imports = append(exp.Imports, path)
			}
		}
		for _, p := range obj.Payloads() {
			payload := pkgfile.Payload{
				Name:         p.Name,
				Storage:      p.Storage,
				Compression:  p.Compression,
				ElementCount: int64(p.ElementCount),
				Offset:       p.Offset,
				SizeOnDisk:   p.SizeOnDisk,
				File:         p.File,
			}
			if p.Storage == asset.StorageInline {
				payload.Data = p.Data
			}
			exp.Payloads = append(exp.Payloads, payload)
		}
		exports = append(exports, exp)
	}
	return exports
}

// applyPlacements copies the placements Write chose back onto the objects.
func applyPlacements(objects []*asset.Object, exports []pkgfile.Export) {
	for i, obj := range objects {
		for j, p := range obj.Payloads() {
			written := exports[i].Payloads[j]
			if written.Storage != asset.StorageInline {
				continue
			}
			p.File = written.File
			p.Offset = written.Offset
			p.SizeOnDisk = written.SizeOnDisk
			p.ElementCount = int(written.ElementCount)
		}
	}
}

// encodeBody serializes the non-payload data of an object in the target
// byte order.
func encodeBody(obj *asset.Object, order binary.ByteOrder) []byte {
	enc := pkgfile.NewEncoder(order)
	enc.Blob(obj.Blob)
	switch {
	case obj.Texture != nil:
		tex := obj.Texture
		enc.Text(tex.Format)
		enc.U32(uint32(tex.SizeX))
		enc.U32(uint32(tex.SizeY))
		enc.Text(tex.LODGroup)
		enc.U8(boolByte(tex.NeverStream))
		enc.U32(uint32(tex.MipCount()))
		enc.U32(uint32(tex.FirstMip))
		enc.U32(uint32(tex.MipTailBase))
	case obj.Mesh != nil:
		enc.U32(uint32(len(obj.Mesh.LODs)))
		for _, lod := range obj.Mesh.LODs {
			enc.U32(uint32(len(lod.Indices)))
			for _, idx := range lod.Indices {
				enc.U16(idx)
			}
			enc.U32(uint32(len(lod.Sections)))
			for _, section := range lod.Sections {
				enc.U32(uint32(section.BaseIndex))
				enc.U32(uint32(section.NumTriangles))
			}
		}
	case obj.Sound != nil:
		ids := make([]string, 0, len(obj.Sound.Compressed))
		for id := range obj.Sound.Compressed {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		enc.U32(uint32(len(ids)))
		for _, id := range ids {
			enc.Text(id)
			enc.Blob(obj.Sound.Compressed[platform.ID(id)])
		}
		enc.Blob(obj.Sound.RawWAV)
	case obj.Movie != nil:
		enc.Text(obj.Movie.Codec)
	}
	if obj.World != nil {
		enc.U32(uint32(len(obj.World.StreamingLevels)))
		for _, level := range obj.World.StreamingLevels {
			enc.Text(level)
		}
	}
	return enc.Bytes()
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
