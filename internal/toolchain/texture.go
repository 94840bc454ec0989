package toolchain

import (
	"context"
	"fmt"

	"kiln/internal/asset"
)

// xenonTileSize is the texel alignment of tiled xenon mips. Mips narrower
// than a tile are packed into the tail.
const xenonTileSize = 32

type xenonTextureCodec struct{}

func (xenonTextureCodec) NewCooker(_ context.Context, format string, width, height, mips int, flags TextureFlags) (TextureCooker, error) {
	block, err := asset.Block(format)
	if err != nil {
		return nil, err
	}
	if mips <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid texture %dx%d with %d mips", width, height, mips)
	}
	tail := mips - 1
	if flags&TexturePackMipTail != 0 {
		tail = 0
		for tail < mips-1 && width>>tail >= xenonTileSize && height>>tail >= xenonTileSize {
			tail++
		}
	}
	return &xenonTextureCooker{block: block, width: width, height: height, mips: mips, tailBase: tail}, nil
}

type xenonTextureCooker struct {
	block    asset.BlockInfo
	width    int
	height   int
	mips     int
	tailBase int
}

func (c *xenonTextureCooker) MipTailBase() int { return c.tailBase }

func (c *xenonTextureCooker) alignedPitch(level int) (pitch, rows int) {
	w := alignUp(max(1, c.width>>level), xenonTileSize)
	h := alignUp(max(1, c.height>>level), xenonTileSize)
	return max(1, w/c.block.Width) * c.block.Bytes, max(1, h/c.block.Height)
}

func (c *xenonTextureCooker) MipSize(level int) int {
	pitch, rows := c.alignedPitch(level)
	return pitch * rows
}

// CookMip tiles the source rows into the aligned layout and swaps 16-bit
// words into the console's byte order.
func (c *xenonTextureCooker) CookMip(_ context.Context, level int, src, dst []byte, rowPitch int) error {
	dstPitch, dstRows := c.alignedPitch(level)
	if len(dst) < dstPitch*dstRows {
		return fmt.Errorf("xenon mip %d: destination %d bytes, need %d", level, len(dst), dstPitch*dstRows)
	}
	if rowPitch <= 0 {
		return fmt.Errorf("xenon mip %d: invalid row pitch %d", level, rowPitch)
	}
	for row := 0; row*rowPitch < len(src) && row < dstRows; row++ {
		end := min(len(src), (row+1)*rowPitch)
		copy(dst[row*dstPitch:row*dstPitch+min(dstPitch, end-row*rowPitch)], src[row*rowPitch:end])
	}
	swap16(dst)
	return nil
}

// CookMipTail concatenates the tail mips, each aligned to 16 bytes, and
// swaps them like regular mips.
func (c *xenonTextureCooker) CookMipTail(_ context.Context, _ int, mips [][]byte) ([]byte, error) {
	var out []byte
	for _, mip := range mips {
		out = append(out, mip...)
		if pad := alignUp(len(out), 16) - len(out); pad > 0 {
			out = append(out, make([]byte, pad)...)
		}
	}
	swap16(out)
	return out, nil
}

type ps3TextureCodec struct{}

func (ps3TextureCodec) NewCooker(_ context.Context, format string, width, height, mips int, _ TextureFlags) (TextureCooker, error) {
	block, err := asset.Block(format)
	if err != nil {
		return nil, err
	}
	if mips <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid texture %dx%d with %d mips", width, height, mips)
	}
	return &ps3TextureCooker{format: format, block: block, mips: mips}, nil
}

// ps3TextureCooker keeps the linear layout. ARGB texels are stored
// big-endian; compressed formats are copied unchanged.
type ps3TextureCooker struct {
	format string
	block  asset.BlockInfo
	mips   int
}

func (c *ps3TextureCooker) MipTailBase() int { return c.mips - 1 }

func (c *ps3TextureCooker) MipSize(int) int { return 0 }

func (c *ps3TextureCooker) CookMip(_ context.Context, _ int, src, dst []byte, _ int) error {
	copy(dst, src)
	if c.format == asset.FormatA8R8G8B8 {
		swap32(dst)
	}
	return nil
}

func (c *ps3TextureCooker) CookMipTail(_ context.Context, _ int, mips [][]byte) ([]byte, error) {
	var out []byte
	for _, mip := range mips {
		out = append(out, mip...)
	}
	if c.format == asset.FormatA8R8G8B8 {
		swap32(out)
	}
	return out, nil
}

func alignUp(v, to int) int {
	return (v + to - 1) / to * to
}

func swap16(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}

func swap32(b []byte) {
	for i := 0; i+3 < len(b); i += 4 {
		b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
	}
}
