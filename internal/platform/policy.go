package platform

import (
	"fmt"
	"strings"
)

// Compression selects a payload or package compression method.
type Compression uint8

const (
	CompressNone Compression = iota
	CompressZlib
	CompressZstd
	CompressLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressZlib:
		return "zlib"
	case CompressZstd:
		return "zstd"
	case CompressLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression maps a configured method name.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressNone, nil
	case "zlib":
		return CompressZlib, nil
	case "zstd":
		return CompressZstd, nil
	case "lz4":
		return CompressLZ4, nil
	default:
		return CompressNone, fmt.Errorf("unknown compression method %q", name)
	}
}

// Policy is the immutable per-run view of target settings handed to every
// component entry point.
type Policy struct {
	Platform        ID
	LODBias         map[string]int
	Compression     Compression
	ByteSwap        bool
	PreloadFully    bool
	PackMipTail     bool
	MinResidentMips int
	// Language is the cook language as an upper-case ISO 639-2 code.
	Language        string
	DefaultLanguage string
}

// LODBiasFor returns the mip bias configured for a texture LOD group.
func (p Policy) LODBiasFor(group string) int {
	if p.LODBias == nil {
		return 0
	}
	return p.LODBias[strings.ToLower(group)]
}

// IsDefaultLanguage reports whether the run cooks the primary language.
func (p Policy) IsDefaultLanguage() bool {
	return p.Language == "" || strings.EqualFold(p.Language, p.DefaultLanguage)
}
