package asset

import (
	"fmt"
	"strings"

	"kiln/internal/platform"
)

// Pixel formats understood by the texture cookers.
const (
	FormatDXT1     = "DXT1"
	FormatDXT3     = "DXT3"
	FormatDXT5     = "DXT5"
	FormatA8R8G8B8 = "A8R8G8B8"
	FormatG8       = "G8"
)

// LODGroupUI strips textures to a single mip.
const LODGroupUI = "ui"

// BlockInfo describes the compression block of a pixel format.
type BlockInfo struct {
	Width  int
	Height int
	Bytes  int
}

var blockTable = map[string]BlockInfo{
	FormatDXT1:     {Width: 4, Height: 4, Bytes: 8},
	FormatDXT3:     {Width: 4, Height: 4, Bytes: 16},
	FormatDXT5:     {Width: 4, Height: 4, Bytes: 16},
	FormatA8R8G8B8: {Width: 1, Height: 1, Bytes: 4},
	FormatG8:       {Width: 1, Height: 1, Bytes: 1},
}

// Block returns the block layout for a pixel format.
func Block(format string) (BlockInfo, error) {
	info, ok := blockTable[strings.ToUpper(format)]
	if !ok {
		return BlockInfo{}, fmt.Errorf("unsupported pixel format %q", format)
	}
	return info, nil
}

// RowPitch returns the byte pitch of one block row of mip level.
func (b BlockInfo) RowPitch(width, level int) int {
	return max(1, (width>>level)/b.Width) * b.Bytes
}

// MipBytes returns the tightly packed size of mip level.
func (b BlockInfo) MipBytes(width, height, level int) int {
	rows := max(1, (height>>level)/b.Height)
	return rows * b.RowPitch(width, level)
}

// Texture holds a mip chain. Mips[0] is the largest level.
type Texture struct {
	Format      string
	SizeX       int
	SizeY       int
	LODGroup    string
	NeverStream bool
	Mips        []*BulkPayload
	// FirstMip is the first mip the runtime loads; mips below it are unused.
	FirstMip int
	// MipTailBase is the first mip packed into the tail, or len(Mips)-1
	// when the tail is not packed.
	MipTailBase int
}

// MipCount returns the number of mip levels.
func (t *Texture) MipCount() int {
	return len(t.Mips)
}

// MipName returns the bulk payload name of a mip level.
func MipName(level int) string {
	return fmt.Sprintf("MipLevel_%d", level)
}

// BulkStorage is where a payload ends up in the written package.
type BulkStorage uint8

const (
	// StorageInline places the payload in the package being written.
	StorageInline BulkStorage = iota
	// StorageExternal references a payload written into another package.
	StorageExternal
	// StorageUnused drops the payload.
	StorageUnused
)

func (s BulkStorage) String() string {
	switch s {
	case StorageInline:
		return "inline"
	case StorageExternal:
		return "external"
	case StorageUnused:
		return "unused"
	default:
		return fmt.Sprintf("storage(%d)", uint8(s))
	}
}

// ParseBulkStorage converts a stored storage name.
func ParseBulkStorage(value string) (BulkStorage, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "inline":
		return StorageInline, nil
	case "external":
		return StorageExternal, nil
	case "unused":
		return StorageUnused, nil
	default:
		return StorageUnused, fmt.Errorf("unknown bulk storage %q", value)
	}
}

// BulkPayload is an out-of-line data block owned by an object.
type BulkPayload struct {
	Name         string
	Data         []byte
	ElementCount int
	Storage      BulkStorage
	Compression  platform.Compression

	// Placement chosen during the last write.
	File       string
	Offset     int64
	SizeOnDisk int64
}

// ResetPlacement forgets the placement of the previous write.
func (b *BulkPayload) ResetPlacement() {
	b.File = ""
	b.Offset = 0
	b.SizeOnDisk = 0
}
