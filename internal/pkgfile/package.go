package pkgfile

import (
	"fmt"
	"io"
	"os"

	"kiln/internal/asset"
	"kiln/internal/fileutil"
	"kiln/internal/platform"
)

// Payload is one bulk payload slot of an export.
type Payload struct {
	Name         string
	Storage      asset.BulkStorage
	Compression  platform.Compression
	ElementCount int64
	// Data is the uncompressed payload for inline storage.
	Data []byte

	// Offset and SizeOnDisk locate the payload in the uncompressed image of
	// File. Write fills them for inline payloads; callers supply them for
	// external payloads.
	Offset     int64
	SizeOnDisk int64
	File       string
}

// Export is one object serialized into a package.
type Export struct {
	Path     string
	Kind     asset.Kind
	Flags    uint32
	Language string
	Body     []byte
	Imports  []string
	Payloads []Payload
}

// Package is a cooked package ready to be written.
type Package struct {
	Platform       platform.ID
	ContentVersion int
	Flags          Flags
	// Compression is the whole-image method used when FlagFullyCompressed
	// is set.
	Compression platform.Compression
	Exports     []Export
}

// Write serializes pkg to path atomically and fills the placement of every
// inline payload. It returns the number of bytes written to disk.
func Write(path string, pkg *Package) (int64, error) {
	if !pkg.Platform.Valid() {
		return 0, fmt.Errorf("write %s: unknown platform %q", path, pkg.Platform)
	}
	order := pkg.Platform.ByteOrder()
	image := NewEncoder(order)
	image.Raw(make([]byte, HeaderSize))

	bodies := make([][2]uint64, len(pkg.Exports))
	for i := range pkg.Exports {
		exp := &pkg.Exports[i]
		bodies[i] = [2]uint64{uint64(image.Len()), uint64(len(exp.Body))}
		image.Raw(exp.Body)
		for j := range exp.Payloads {
			p := &exp.Payloads[j]
			if p.Storage != asset.StorageInline {
				continue
			}
			stored, err := Compress(p.Data, p.Compression)
			if err != nil {
				return 0, fmt.Errorf("write %s: payload %s.%s: %w", path, exp.Path, p.Name, err)
			}
			p.Offset = int64(image.Len())
			p.SizeOnDisk = int64(len(stored))
			p.ElementCount = int64(len(p.Data))
			p.File = path
			image.Raw(stored)
		}
	}

	tableOffset := uint64(image.Len())
	for i, exp := range pkg.Exports {
		image.Text(exp.Path)
		image.U8(uint8(exp.Kind))
		image.U32(exp.Flags)
		image.Text(exp.Language)
		image.U64(bodies[i][0])
		image.U64(bodies[i][1])
		image.U32(uint32(len(exp.Imports)))
		for _, imp := range exp.Imports {
			image.Text(imp)
		}
		image.U16(uint16(len(exp.Payloads)))
		for _, p := range exp.Payloads {
			image.Text(p.Name)
			image.U8(uint8(p.Storage))
			image.U8(uint8(p.Compression))
			image.U64(uint64(p.ElementCount))
			image.U64(uint64(p.Offset))
			image.U64(uint64(p.SizeOnDisk))
			image.Text(p.File)
		}
	}

	header := Header{
		FormatVersion:     FormatVersion,
		ContentVersion:    uint32(pkg.ContentVersion),
		Platform:          pkg.Platform,
		Flags:             pkg.Flags,
		Compression:       pkg.Compression,
		ExportCount:       uint32(len(pkg.Exports)),
		ExportTableOffset: tableOffset,
		ImageSize:         uint64(image.Len()),
	}
	data := image.Bytes()
	copy(data[:HeaderSize], header.marshal(order))

	if pkg.Flags.Has(FlagFullyCompressed) {
		body, err := Compress(data[HeaderSize:], pkg.Compression)
		if err != nil {
			return 0, fmt.Errorf("write %s: compress image: %w", path, err)
		}
		out := make([]byte, 0, HeaderSize+len(body))
		out = append(out, data[:HeaderSize]...)
		data = append(out, body...)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return int64(len(data)), nil
}

// ReadSummary reads only the header of a cooked package.
func ReadSummary(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Header{}, fmt.Errorf("%s: %w: %w", path, ErrNotPackage, err)
	}
	h, err := parseHeader(buf)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// ReadImage returns the uncompressed image of a cooked package.
func ReadImage(path string) ([]byte, Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, err
	}
	h, err := parseHeader(data)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	if !h.Flags.Has(FlagFullyCompressed) {
		if uint64(len(data)) != h.ImageSize {
			return nil, Header{}, fmt.Errorf("%s: %w: size %d, header says %d", path, ErrNotPackage, len(data), h.ImageSize)
		}
		return data, h, nil
	}
	body, err := Decompress(data[HeaderSize:], h.Compression, int(h.ImageSize)-HeaderSize)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	image := make([]byte, 0, h.ImageSize)
	image = append(image, data[:HeaderSize]...)
	return append(image, body...), h, nil
}

// Read parses a cooked package, decompressing inline payloads.
func Read(path string) (*Package, error) {
	image, h, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	order := h.ByteOrder()
	dec := NewDecoder(image, int(h.ExportTableOffset), order)
	pkg := &Package{
		Platform:       h.Platform,
		ContentVersion: int(h.ContentVersion),
		Flags:          h.Flags,
		Compression:    h.Compression,
		Exports:        make([]Export, 0, h.ExportCount),
	}
	for range h.ExportCount {
		exp := Export{
			Path:     dec.Text(),
			Kind:     asset.Kind(dec.U8()),
			Flags:    dec.U32(),
			Language: dec.Text(),
		}
		bodyOffset, bodySize := dec.U64(), dec.U64()
		if dec.Err() == nil {
			if bodyOffset+bodySize > uint64(len(image)) {
				return nil, fmt.Errorf("%s: export %s body outside image", path, exp.Path)
			}
			exp.Body = image[bodyOffset : bodyOffset+bodySize]
		}
		imports := dec.U32()
		for range imports {
			exp.Imports = append(exp.Imports, dec.Text())
		}
		payloads := dec.U16()
		for range payloads {
			p := Payload{
				Name:         dec.Text(),
				Storage:      asset.BulkStorage(dec.U8()),
				Compression:  platform.Compression(dec.U8()),
				ElementCount: int64(dec.U64()),
				Offset:       int64(dec.U64()),
				SizeOnDisk:   int64(dec.U64()),
				File:         dec.Text(),
			}
			if dec.Err() == nil && p.Storage == asset.StorageInline {
				end := p.Offset + p.SizeOnDisk
				if p.Offset < 0 || end > int64(len(image)) {
					return nil, fmt.Errorf("%s: payload %s.%s outside image", path, exp.Path, p.Name)
				}
				data, err := Decompress(image[p.Offset:end], p.Compression, int(p.ElementCount))
				if err != nil {
					return nil, fmt.Errorf("%s: payload %s.%s: %w", path, exp.Path, p.Name, err)
				}
				p.Data = data
			}
			exp.Payloads = append(exp.Payloads, p)
		}
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("%s: export table: %w", path, err)
		}
		pkg.Exports = append(pkg.Exports, exp)
	}
	return pkg, nil
}

// PatchPayload overwrites stored payload bytes at an image offset. Plain
// packages are patched in place; fully compressed packages are decompressed,
// patched, and rewritten atomically.
func PatchPayload(path string, offset int64, stored []byte) error {
	h, err := ReadSummary(path)
	if err != nil {
		return err
	}
	end := uint64(offset) + uint64(len(stored))
	if offset < HeaderSize || end > h.ExportTableOffset {
		return fmt.Errorf("%s: patch range [%d,%d) outside payload region", path, offset, end)
	}
	if !h.Flags.Has(FlagFullyCompressed) {
		return fileutil.PatchAt(path, offset, stored)
	}
	image, _, err := ReadImage(path)
	if err != nil {
		return err
	}
	copy(image[offset:], stored)
	body, err := Compress(image[HeaderSize:], h.Compression)
	if err != nil {
		return fmt.Errorf("%s: recompress: %w", path, err)
	}
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, image[:HeaderSize]...)
	return fileutil.WriteAtomic(path, append(out, body...), 0o644)
}
