package pkgfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"kiln/internal/platform"
)

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("pkgfile: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("pkgfile: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress encodes data with method. When compression does not shrink the
// data the input is returned unchanged; readers recognise stored data by its
// size equalling the uncompressed size.
func Compress(data []byte, method platform.Compression) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch method {
	case platform.CompressNone:
		return data, nil
	case platform.CompressZlib:
		out, err = compressZlib(data)
	case platform.CompressZstd:
		out = zstdEncoder.EncodeAll(data, nil)
	case platform.CompressLZ4:
		out, err = compressLZ4(data)
	default:
		return nil, fmt.Errorf("unsupported compression %d", method)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || len(out) >= len(data) {
		return data, nil
	}
	return out, nil
}

// Decompress reverses Compress. size is the exact uncompressed length.
func Decompress(stored []byte, method platform.Compression, size int) ([]byte, error) {
	if method == platform.CompressNone || len(stored) == size {
		if len(stored) != size {
			return nil, fmt.Errorf("stored payload: size %d does not match expected %d", len(stored), size)
		}
		return stored, nil
	}
	switch method {
	case platform.CompressZlib:
		reader, err := zlib.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, fmt.Errorf("zlib decompress: %w", err)
		}
		defer reader.Close()
		out := make([]byte, size)
		if _, err := io.ReadFull(reader, out); err != nil {
			return nil, fmt.Errorf("zlib decompress: %w", err)
		}
		return out, nil
	case platform.CompressZstd:
		out, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	case platform.CompressLZ4:
		out := make([]byte, size)
		read, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression %d", method)
	}
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return dst[:written], nil
}
