package transform

import (
	"context"
	"fmt"
	"log/slog"

	"kiln/internal/asset"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/platform"
	"kiln/internal/toolchain"
)

// Registry dispatches per-kind transforms to the bound toolchains.
type Registry struct {
	bindings toolchain.Bindings
	logger   *slog.Logger
}

// New builds a registry over resolved bindings.
func New(bindings toolchain.Bindings, logger *slog.Logger) *Registry {
	return &Registry{
		bindings: bindings,
		logger:   logging.NewComponentLogger(logger, "transform"),
	}
}

// Bindings returns the toolchains the registry calls into.
func (r *Registry) Bindings() toolchain.Bindings {
	return r.bindings
}

func toolchainError(operation string, obj *asset.Object, err error) error {
	return cookerr.Wrap(cookerr.ErrToolchain, "transform", operation, obj.Name, err)
}

// CookTexture selects the first resident mip, converts the mip chain into
// the platform layout and packs the mip tail when the policy asks for it.
func (r *Registry) CookTexture(ctx context.Context, obj *asset.Object, policy platform.Policy) error {
	tex := obj.Texture
	if tex == nil || tex.MipCount() == 0 {
		return nil
	}
	if tex.LODGroup == asset.LODGroupUI && tex.MipCount() > 1 {
		tex.Mips = tex.Mips[:1]
	}
	n := tex.MipCount()
	tex.FirstMip = min(max(policy.LODBiasFor(tex.LODGroup), 0), n-1)
	tex.MipTailBase = n - 1

	if !policy.Platform.IsConsole() {
		return nil
	}
	if r.bindings.Textures == nil {
		return toolchainError("texture", obj, fmt.Errorf("no texture toolchain bound for %s", policy.Platform))
	}
	block, err := asset.Block(tex.Format)
	if err != nil {
		return toolchainError("texture", obj, err)
	}

	var flags toolchain.TextureFlags
	if policy.PackMipTail {
		flags |= toolchain.TexturePackMipTail
	}
	cooker, err := r.bindings.Textures.NewCooker(ctx, tex.Format, tex.SizeX, tex.SizeY, n, flags)
	if err != nil {
		return toolchainError("texture", obj, err)
	}

	maxMip := n
	if policy.PackMipTail {
		tailBase := cooker.MipTailBase()
		if tailBase < 0 || tailBase >= n {
			return toolchainError("texture", obj, fmt.Errorf("mip tail base %d outside %d mips", tailBase, n))
		}
		tex.MipTailBase = tailBase
		tex.FirstMip = min(tex.FirstMip, tailBase)
		maxMip = tailBase
	}

	for i := tex.FirstMip; i < maxMip; i++ {
		mip := tex.Mips[i]
		size := cooker.MipSize(i)
		if size == 0 {
			size = len(mip.Data)
		}
		dst := make([]byte, size)
		copy(dst, mip.Data)
		if err := cooker.CookMip(ctx, i, mip.Data, dst, block.RowPitch(tex.SizeX, i)); err != nil {
			return toolchainError("texture", obj, fmt.Errorf("mip %d: %w", i, err))
		}
		mip.Data = dst
		mip.ElementCount = len(dst)
	}

	if policy.PackMipTail {
		tailBase := tex.MipTailBase
		tailMips := make([][]byte, 0, n-tailBase)
		for _, mip := range tex.Mips[tailBase:] {
			tailMips = append(tailMips, mip.Data)
		}
		tail, err := cooker.CookMipTail(ctx, tailBase, tailMips)
		if err != nil {
			return toolchainError("texture", obj, fmt.Errorf("mip tail %d: %w", tailBase, err))
		}
		tex.Mips[tailBase].Data = tail
		tex.Mips[tailBase].ElementCount = len(tail)
		for _, mip := range tex.Mips[tailBase+1:] {
			mip.Data = nil
			mip.ElementCount = 0
		}
	}

	r.logger.Debug("texture cooked",
		logging.String("object", obj.Name),
		logging.Int("first_mip", tex.FirstMip),
		logging.Int("tail_base", tex.MipTailBase),
		logging.Int("mips", n),
	)
	return nil
}

// CookMesh reorders each section's triangles for the vertex cache. Only
// ps3 reorders; section boundaries never move.
func (r *Registry) CookMesh(ctx context.Context, obj *asset.Object, policy platform.Policy) error {
	if policy.Platform != platform.PS3 || obj.Mesh == nil {
		return nil
	}
	if r.bindings.Meshes == nil {
		return toolchainError("mesh", obj, fmt.Errorf("no mesh toolchain bound for %s", policy.Platform))
	}
	for lodIndex := range obj.Mesh.LODs {
		lod := &obj.Mesh.LODs[lodIndex]
		for sectionIndex, section := range lod.Sections {
			start := section.BaseIndex
			end := start + section.NumTriangles*3
			if start < 0 || section.NumTriangles < 0 || end > len(lod.Indices) {
				return toolchainError("mesh", obj, fmt.Errorf("lod %d section %d: range [%d,%d) outside %d indices",
					lodIndex, sectionIndex, start, end, len(lod.Indices)))
			}
			if section.NumTriangles == 0 {
				continue
			}
			original := append([]uint16(nil), lod.Indices[start:end]...)
			reordered, err := r.bindings.Meshes.Optimize(ctx, original, section.NumTriangles)
			if err != nil {
				return toolchainError("mesh", obj, fmt.Errorf("lod %d section %d: %w", lodIndex, sectionIndex, err))
			}
			if !sameTriangles(lod.Indices[start:end], reordered) {
				return toolchainError("mesh", obj, fmt.Errorf("lod %d section %d: optimizer changed the triangle set",
					lodIndex, sectionIndex))
			}
			copy(lod.Indices[start:end], reordered)
		}
	}
	return nil
}

// CookSkeletalMesh applies the same index reordering as CookMesh.
func (r *Registry) CookSkeletalMesh(ctx context.Context, obj *asset.Object, policy platform.Policy) error {
	return r.CookMesh(ctx, obj, policy)
}

// CookSound encodes the raw WAV for the target and drops buffers encoded
// for any other platform.
func (r *Registry) CookSound(ctx context.Context, obj *asset.Object, policy platform.Policy) error {
	snd := obj.Sound
	if snd == nil {
		return nil
	}
	if snd.Compressed == nil {
		snd.Compressed = make(map[platform.ID][]byte)
	}
	if len(snd.RawWAV) > 0 {
		if r.bindings.Sounds == nil {
			return toolchainError("sound", obj, fmt.Errorf("no sound toolchain bound for %s", policy.Platform))
		}
		encoded, err := r.bindings.Sounds.Encode(ctx, snd.RawWAV, policy.Platform)
		if err != nil {
			return toolchainError("sound", obj, err)
		}
		snd.Compressed[policy.Platform] = encoded
	}
	for id := range snd.Compressed {
		if id != policy.Platform {
			delete(snd.Compressed, id)
		}
	}
	return nil
}

const (
	codecBink     = "bink"
	binkSignature = "BIK"
)

// CookMovie byte-swaps a movie stream for big-endian targets. A stream with
// an unknown codec or a bad signature is discarded.
func (r *Registry) CookMovie(_ context.Context, obj *asset.Object, policy platform.Policy) error {
	if !policy.ByteSwap || obj.Movie == nil || obj.Movie.Stream == nil {
		return nil
	}
	stream := obj.Movie.Stream
	if obj.Movie.Codec != codecBink {
		discard(stream)
		return cookerr.Recoverable("transform", "movie", fmt.Sprintf("%s: unsupported codec %q", obj.Name, obj.Movie.Codec), nil)
	}
	if len(stream.Data) >= len(binkSignature) && string(stream.Data[:len(binkSignature)]) != binkSignature {
		discard(stream)
		return cookerr.Recoverable("transform", "movie", fmt.Sprintf("%s: invalid bink signature", obj.Name), nil)
	}
	swapWords(stream.Data)
	return nil
}

func discard(payload *asset.BulkPayload) {
	payload.Data = nil
	payload.ElementCount = 0
	payload.Storage = asset.StorageUnused
}

func swapWords(b []byte) {
	for i := 0; i+3 < len(b); i += 4 {
		b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
	}
}

// sameTriangles reports whether b holds the triangles of a in any order,
// each allowed to start at any of its vertices but keeping its winding.
func sameTriangles(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[[3]uint16]int, len(a)/3)
	for i := 0; i+2 < len(a); i += 3 {
		counts[canonicalTriangle(a[i], a[i+1], a[i+2])]++
	}
	for i := 0; i+2 < len(b); i += 3 {
		key := canonicalTriangle(b[i], b[i+1], b[i+2])
		if counts[key] == 0 {
			return false
		}
		counts[key]--
	}
	return true
}

// canonicalTriangle returns the lexicographically smallest rotation.
func canonicalTriangle(x, y, z uint16) [3]uint16 {
	best := [3]uint16{x, y, z}
	for _, rot := range [][3]uint16{{y, z, x}, {z, x, y}} {
		if rot[0] < best[0] || (rot[0] == best[0] && (rot[1] < best[1] || (rot[1] == best[1] && rot[2] < best[2]))) {
			best = rot
		}
	}
	return best
}
