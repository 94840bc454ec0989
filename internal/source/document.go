package source

// FormatName identifies kiln source documents.
const FormatName = "kiln-source"

// FormatVersion is the current source document version.
const FormatVersion = 1

// Document is one editor-format source package.
type Document struct {
	Format  string         `cbor:"format"`
	Version int            `cbor:"version"`
	Objects []ObjectRecord `cbor:"objects"`
}

// ObjectRecord is the serialized form of one object. References use
// "Package.Object" paths.
type ObjectRecord struct {
	Name       string         `cbor:"name"`
	Kind       string         `cbor:"kind"`
	Public     bool           `cbor:"public,omitempty"`
	Template   bool           `cbor:"template,omitempty"`
	Language   string         `cbor:"language,omitempty"`
	Refs       []string       `cbor:"refs,omitempty"`
	Blob       []byte         `cbor:"blob,omitempty"`
	EditorData []byte         `cbor:"editor_data,omitempty"`
	Texture    *TextureRecord `cbor:"texture,omitempty"`
	Mesh       *MeshRecord    `cbor:"mesh,omitempty"`
	Sound      *SoundRecord   `cbor:"sound,omitempty"`
	Movie      *MovieRecord   `cbor:"movie,omitempty"`
	World      *WorldRecord   `cbor:"world,omitempty"`
}

// TextureRecord holds a full mip chain, largest first.
type TextureRecord struct {
	Format      string   `cbor:"format"`
	SizeX       int      `cbor:"size_x"`
	SizeY       int      `cbor:"size_y"`
	LODGroup    string   `cbor:"lod_group,omitempty"`
	NeverStream bool     `cbor:"never_stream,omitempty"`
	Mips        [][]byte `cbor:"mips"`
}

// MeshRecord holds per-LOD index buffers.
type MeshRecord struct {
	LODs         []MeshLODRecord `cbor:"lods"`
	RawTriangles []byte          `cbor:"raw_triangles,omitempty"`
}

// MeshLODRecord is one level of detail.
type MeshLODRecord struct {
	Indices  []uint16            `cbor:"indices"`
	Sections []MeshSectionRecord `cbor:"sections"`
}

// MeshSectionRecord is a triangle range.
type MeshSectionRecord struct {
	BaseIndex    int `cbor:"base_index"`
	NumTriangles int `cbor:"num_triangles"`
}

// SoundRecord holds the imported WAV file.
type SoundRecord struct {
	WAV []byte `cbor:"wav"`
}

// MovieRecord holds an encoded movie.
type MovieRecord struct {
	Codec string `cbor:"codec"`
	Data  []byte `cbor:"data"`
}

// WorldRecord marks a level container.
type WorldRecord struct {
	StreamingLevels []string `cbor:"streaming_levels,omitempty"`
}

// NewDocument returns an empty document with the current header.
func NewDocument(objects ...ObjectRecord) *Document {
	return &Document{Format: FormatName, Version: FormatVersion, Objects: objects}
}
