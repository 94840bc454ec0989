package pkgfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"kiln/internal/platform"
)

const (
	// HeaderSize is the fixed, never-compressed header length.
	HeaderSize = 64
	// FormatVersion is the cooked package layout version.
	FormatVersion = 1

	byteOrderMark uint32 = 0x0A0B0C0D
)

var magic = [4]byte{'K', 'I', 'L', 'N'}

// ErrNotPackage reports a file that is not a cooked package.
var ErrNotPackage = errors.New("not a cooked package")

// Flags describe how a package was written.
type Flags uint8

const (
	FlagSeekFree Flags = 1 << iota
	FlagFullyCompressed
	FlagTexturesOnly
)

// Has reports whether every flag in mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// Header is the fixed-size package summary.
type Header struct {
	FormatVersion     uint32
	ContentVersion    uint32
	Platform          platform.ID
	Flags             Flags
	Compression       platform.Compression
	ExportCount       uint32
	ExportTableOffset uint64
	// ImageSize is the length of the uncompressed image, header included.
	ImageSize uint64

	order binary.ByteOrder
}

// ByteOrder returns the byte order the package was written in.
func (h Header) ByteOrder() binary.ByteOrder {
	if h.order == nil {
		return binary.LittleEndian
	}
	return h.order
}

func (h Header) marshal(order binary.ByteOrder) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], magic[:])
	order.PutUint32(buf[4:8], byteOrderMark)
	order.PutUint32(buf[8:12], h.FormatVersion)
	order.PutUint32(buf[12:16], h.ContentVersion)
	buf[16] = h.Platform.Code()
	buf[17] = uint8(h.Flags)
	buf[18] = uint8(h.Compression)
	order.PutUint32(buf[20:24], h.ExportCount)
	order.PutUint64(buf[24:32], h.ExportTableOffset)
	order.PutUint64(buf[32:40], h.ImageSize)
	return buf
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrNotPackage, len(buf))
	}
	if [4]byte(buf[0:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrNotPackage)
	}
	var order binary.ByteOrder
	switch {
	case binary.BigEndian.Uint32(buf[4:8]) == byteOrderMark:
		order = binary.BigEndian
	case binary.LittleEndian.Uint32(buf[4:8]) == byteOrderMark:
		order = binary.LittleEndian
	default:
		return Header{}, fmt.Errorf("%w: bad byte order mark", ErrNotPackage)
	}
	id, ok := platform.FromCode(buf[16])
	if !ok {
		return Header{}, fmt.Errorf("%w: unknown platform code %d", ErrNotPackage, buf[16])
	}
	h := Header{
		FormatVersion:     order.Uint32(buf[8:12]),
		ContentVersion:    order.Uint32(buf[12:16]),
		Platform:          id,
		Flags:             Flags(buf[17]),
		Compression:       platform.Compression(buf[18]),
		ExportCount:       order.Uint32(buf[20:24]),
		ExportTableOffset: order.Uint64(buf[24:32]),
		ImageSize:         order.Uint64(buf[32:40]),
		order:             order,
	}
	if h.FormatVersion != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported format version %d", ErrNotPackage, h.FormatVersion)
	}
	if h.ImageSize < HeaderSize || h.ExportTableOffset > h.ImageSize {
		return Header{}, fmt.Errorf("%w: inconsistent sizes", ErrNotPackage)
	}
	return h, nil
}
