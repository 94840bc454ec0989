package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kiln/internal/config"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/platform"
)

// TextureFlags select cooker behavior.
type TextureFlags uint32

const (
	// TexturePackMipTail asks the cooker to pack the smallest mips into one
	// tail mip.
	TexturePackMipTail TextureFlags = 1 << iota
)

// TextureCodec creates per-texture mip cookers.
type TextureCodec interface {
	NewCooker(ctx context.Context, format string, width, height, mips int, flags TextureFlags) (TextureCooker, error)
}

// TextureCooker converts one texture's mips into the platform layout.
type TextureCooker interface {
	// MipTailBase is the first mip packed into the tail.
	MipTailBase() int
	// MipSize is the cooked size of a mip; 0 keeps the source size.
	MipSize(level int) int
	// CookMip writes the cooked form of src into dst, which is zeroed and
	// sized by MipSize. rowPitch is the source block-row pitch.
	CookMip(ctx context.Context, level int, src, dst []byte, rowPitch int) error
	// CookMipTail packs mips [tailBase, n) into a single buffer.
	CookMipTail(ctx context.Context, tailBase int, mips [][]byte) ([]byte, error)
}

// MeshOptimizer reorders a triangle list for the vertex cache. The result
// must hold the same triangles with their winding intact.
type MeshOptimizer interface {
	Optimize(ctx context.Context, indices []uint16, triangles int) ([]uint16, error)
}

// SoundEncoder transcodes a WAV file into a platform format.
type SoundEncoder interface {
	Encode(ctx context.Context, raw []byte, target platform.ID) ([]byte, error)
}

// Bindings are the toolchains resolved for one run. A nil field is unbound.
type Bindings struct {
	Platform platform.ID
	Textures TextureCodec
	Meshes   MeshOptimizer
	Sounds   SoundEncoder
}

const (
	bindingBuiltin = "builtin"
	bindingExec    = "exec:"
)

// Capability names used in errors and logs.
const (
	CapabilityTexture = "texture"
	CapabilityMesh    = "mesh"
	CapabilitySound   = "sound"
)

// Required lists the capabilities a target cannot cook without.
func Required(id platform.ID) []string {
	switch id {
	case platform.Xenon:
		return []string{CapabilityTexture, CapabilitySound}
	case platform.PS3:
		return []string{CapabilityTexture, CapabilityMesh, CapabilitySound}
	default:
		return []string{CapabilitySound}
	}
}

// Bind resolves the configured toolchains for a target. Unknown values,
// missing executables, builtins the target has no implementation for, and
// required capabilities left unbound are fatal.
func Bind(ctx context.Context, id platform.ID, cfg config.Toolchain, logger *slog.Logger) (Bindings, error) {
	logger = logging.NewComponentLogger(logger, "toolchain")
	b := Bindings{Platform: id}

	texture, err := bindTexture(id, cfg.Texture)
	if err != nil {
		return Bindings{}, bindError(CapabilityTexture, cfg.Texture, err)
	}
	b.Textures = texture

	mesh, err := bindMesh(id, cfg.Mesh)
	if err != nil {
		return Bindings{}, bindError(CapabilityMesh, cfg.Mesh, err)
	}
	b.Meshes = mesh

	sound, err := bindSound(cfg.Sound)
	if err != nil {
		return Bindings{}, bindError(CapabilitySound, cfg.Sound, err)
	}
	b.Sounds = sound

	for _, capability := range Required(id) {
		if !b.has(capability) {
			return Bindings{}, cookerr.Wrap(cookerr.ErrToolchain, "toolchain", "bind",
				fmt.Sprintf("%s toolchain required for %s but not bound", capability, id), nil)
		}
	}
	logging.WithContext(ctx, logger).Info("toolchains bound",
		logging.String(logging.FieldPlatform, string(id)),
		logging.String("texture", describe(cfg.Texture)),
		logging.String("mesh", describe(cfg.Mesh)),
		logging.String("sound", describe(cfg.Sound)),
	)
	return b, nil
}

func (b Bindings) has(capability string) bool {
	switch capability {
	case CapabilityTexture:
		return b.Textures != nil
	case CapabilityMesh:
		return b.Meshes != nil
	case CapabilitySound:
		return b.Sounds != nil
	}
	return false
}

func bindError(capability, value string, err error) error {
	return cookerr.Wrap(cookerr.ErrToolchain, "toolchain", "bind", fmt.Sprintf("%s binding %q", capability, value), err)
}

func describe(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unbound"
	}
	return value
}

func bindTexture(id platform.ID, value string) (TextureCodec, error) {
	switch {
	case value == "":
		return nil, nil
	case value == bindingBuiltin:
		switch id {
		case platform.Xenon:
			return xenonTextureCodec{}, nil
		case platform.PS3:
			return ps3TextureCodec{}, nil
		}
		return nil, fmt.Errorf("no builtin texture codec for %s", id)
	case strings.HasPrefix(value, bindingExec):
		tool, err := newExecTool(strings.TrimPrefix(value, bindingExec))
		if err != nil {
			return nil, err
		}
		return execTextureCodec{tool: tool}, nil
	}
	return nil, fmt.Errorf("unsupported binding")
}

func bindMesh(id platform.ID, value string) (MeshOptimizer, error) {
	switch {
	case value == "":
		return nil, nil
	case value == bindingBuiltin:
		if id == platform.PS3 {
			return CacheOptimizer{CacheSize: defaultCacheSize}, nil
		}
		return nil, fmt.Errorf("no builtin mesh optimizer for %s", id)
	case strings.HasPrefix(value, bindingExec):
		tool, err := newExecTool(strings.TrimPrefix(value, bindingExec))
		if err != nil {
			return nil, err
		}
		return execMeshOptimizer{tool: tool}, nil
	}
	return nil, fmt.Errorf("unsupported binding")
}

func bindSound(value string) (SoundEncoder, error) {
	switch {
	case value == "":
		return nil, nil
	case value == bindingBuiltin:
		return BuiltinSoundEncoder{}, nil
	case strings.HasPrefix(value, bindingExec):
		tool, err := newExecTool(strings.TrimPrefix(value, bindingExec))
		if err != nil {
			return nil, err
		}
		return execSoundEncoder{tool: tool}, nil
	}
	return nil, fmt.Errorf("unsupported binding")
}
