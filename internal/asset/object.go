package asset

import (
	"fmt"
	"strings"

	"kiln/internal/platform"
)

// ObjectID indexes an object inside a Universe.
type ObjectID int

// PackageID indexes a package inside a Universe.
type PackageID int

// NoPackage marks an unset package reference.
const NoPackage PackageID = -1

// Kind discriminates the cookable object variants.
type Kind uint8

const (
	KindGeneric Kind = iota
	KindTexture
	KindMesh
	KindSkeletalMesh
	KindSound
	KindMovie
)

var kindNames = map[Kind]string{
	KindGeneric:      "generic",
	KindTexture:      "texture",
	KindMesh:         "mesh",
	KindSkeletalMesh: "skeletal_mesh",
	KindSound:        "sound",
	KindMovie:        "movie",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a serialized kind name.
func ParseKind(value string) (Kind, error) {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return KindGeneric, nil
	}
	for kind, name := range kindNames {
		if name == needle {
			return kind, nil
		}
	}
	return KindGeneric, fmt.Errorf("unknown object kind %q", value)
}

// Flags are the per-object markers.
type Flags uint32

const (
	FlagCooked Flags = 1 << iota
	FlagForceExport
	FlagSavedThisRun
	FlagNoReexport
	FlagTemplate
	FlagTransient
	FlagPublic
	FlagRooted
)

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// Object is a cookable object. Exactly one of the kind-specific pointers is
// populated, matching Kind; a world is a generic object with World set.
type Object struct {
	ID       ObjectID
	Name     string
	Package  PackageID
	Kind     Kind
	Flags    Flags
	Language string
	Refs     []ObjectID

	Blob       []byte
	EditorData []byte

	Texture *Texture
	Mesh    *Mesh
	Sound   *Sound
	Movie   *Movie
	World   *World
}

// Has reports whether the object carries every flag in mask.
func (o *Object) Has(mask Flags) bool {
	return o.Flags.Has(mask)
}

// Set raises flags on the object.
func (o *Object) Set(mask Flags) {
	o.Flags |= mask
}

// Clear lowers flags on the object.
func (o *Object) Clear(mask Flags) {
	o.Flags &^= mask
}

// IsWorld reports whether the object is a level container.
func (o *Object) IsWorld() bool {
	return o.World != nil
}

// IsLocalized reports whether the object belongs to a single language.
func (o *Object) IsLocalized() bool {
	return o.Language != ""
}

// Payloads returns the out-of-line bulk payloads the object owns.
func (o *Object) Payloads() []*BulkPayload {
	switch o.Kind {
	case KindTexture:
		if o.Texture != nil {
			return o.Texture.Mips
		}
	case KindMovie:
		if o.Movie != nil && o.Movie.Stream != nil {
			return []*BulkPayload{o.Movie.Stream}
		}
	}
	return nil
}

// World holds level streaming data.
type World struct {
	StreamingLevels []string
}

// Mesh holds static or skeletal mesh geometry.
type Mesh struct {
	LODs []MeshLOD
	// RawTriangles is editor-only source geometry.
	RawTriangles []byte
}

// MeshLOD is one level of detail. Sections index disjoint triangle ranges of
// Indices.
type MeshLOD struct {
	Indices  []uint16
	Sections []MeshSection
}

// MeshSection is a contiguous run of triangles starting at BaseIndex.
type MeshSection struct {
	BaseIndex    int
	NumTriangles int
}

// Sound holds raw and per-platform encoded audio.
type Sound struct {
	RawWAV     []byte
	Compressed map[platform.ID][]byte
}

// Movie holds an encoded movie stream.
type Movie struct {
	Codec  string
	Stream *BulkPayload
}

// MovieStreamName is the bulk payload name of a movie stream.
const MovieStreamName = "MovieStream"
