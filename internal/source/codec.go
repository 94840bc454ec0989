package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"kiln/internal/fileutil"
)

// encMode uses Core Deterministic Encoding so identical documents always
// produce identical bytes.
var encMode cbor.EncMode

// decMode ignores unknown fields so older readers accept newer documents.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("source: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 24,
		MaxMapPairs:      1 << 20,
	}.DecMode()
	if err != nil {
		panic("source: CBOR decoder initialization failed: " + err.Error())
	}
}

// ErrFormat reports a file that is not a kiln source document.
var ErrFormat = errors.New("not a kiln source document")

// Encode serializes a document.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("encode: nil document")
	}
	if doc.Format == "" {
		doc.Format = FormatName
	}
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	return encMode.Marshal(doc)
}

// Decode parses and checks a document.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := decMode.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if err := checkHeader(doc.Format, doc.Version); err != nil {
		return nil, err
	}
	return &doc, nil
}

func checkHeader(format string, version int) error {
	if format != FormatName {
		return fmt.Errorf("%w: format %q", ErrFormat, format)
	}
	if version < 1 || version > FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	return nil
}

// WriteFile encodes doc and writes it atomically.
func WriteFile(path string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o644)
}

// ReadFile reads and decodes a source package.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Summary is the cheap view of a source package used for classification.
type Summary struct {
	Objects  int
	HasWorld bool
}

type peekDocument struct {
	Format  string `cbor:"format"`
	Version int    `cbor:"version"`
	Objects []struct {
		World *WorldRecord `cbor:"world,omitempty"`
	} `cbor:"objects"`
}

// Peek reports whether a source package contains a world without building
// any objects.
func Peek(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	var doc peekDocument
	if err := decMode.Unmarshal(data, &doc); err != nil {
		return Summary{}, fmt.Errorf("%s: %w: %w", path, ErrFormat, err)
	}
	if err := checkHeader(doc.Format, doc.Version); err != nil {
		return Summary{}, fmt.Errorf("%s: %w", path, err)
	}
	summary := Summary{Objects: len(doc.Objects)}
	for _, obj := range doc.Objects {
		if obj.World != nil {
			summary.HasWorld = true
			break
		}
	}
	return summary, nil
}
