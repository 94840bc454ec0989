package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"kiln/internal/config"
	"kiln/internal/source"
)

// WriteSource encodes a source package under the config's source root and
// returns its path. rel includes the extension.
func WriteSource(t testing.TB, cfg *config.Config, rel string, objects ...source.ObjectRecord) string {
	t.Helper()

	path := filepath.Join(cfg.Paths.SourceRoot, filepath.FromSlash(rel))
	if err := source.WriteFile(path, source.NewDocument(objects...)); err != nil {
		t.Fatalf("write source %s: %v", rel, err)
	}
	return path
}

// Object returns a generic object record.
func Object(name string, refs ...string) source.ObjectRecord {
	return source.ObjectRecord{Name: name, Kind: "generic", Public: true, Refs: refs}
}

// World returns a world object streaming the named levels.
func World(name string, levels ...string) source.ObjectRecord {
	return source.ObjectRecord{
		Name:  name,
		Kind:  "generic",
		World: &source.WorldRecord{StreamingLevels: levels},
	}
}

// Texture returns an A8R8G8B8 texture record of size x size with a full
// mip chain. Every byte of mip i holds i+1.
func Texture(name string, size int) source.ObjectRecord {
	rec := &source.TextureRecord{Format: "A8R8G8B8", SizeX: size, SizeY: size}
	level := 0
	for dim := size; dim >= 1; dim >>= 1 {
		mip := make([]byte, dim*dim*4)
		for i := range mip {
			mip[i] = byte(level + 1)
		}
		rec.Mips = append(rec.Mips, mip)
		level++
	}
	return source.ObjectRecord{Name: name, Kind: "texture", Public: true, Texture: rec}
}

// Mesh returns a single-LOD, single-section mesh record of a triangle strip
// laid out as a list.
func Mesh(name string, triangles int) source.ObjectRecord {
	indices := make([]uint16, 0, triangles*3)
	for i := 0; i < triangles; i++ {
		indices = append(indices, uint16(i), uint16(i+1), uint16(i+2))
	}
	return source.ObjectRecord{
		Name: name,
		Kind: "mesh",
		Mesh: &source.MeshRecord{
			LODs: []source.MeshLODRecord{{
				Indices:  indices,
				Sections: []source.MeshSectionRecord{{BaseIndex: 0, NumTriangles: triangles}},
			}},
			RawTriangles: []byte("raw"),
		},
	}
}

// Sound returns a sound record wrapping a generated WAV.
func Sound(t testing.TB, name string, frames int) source.ObjectRecord {
	t.Helper()
	return source.ObjectRecord{Name: name, Kind: "sound", Sound: &source.SoundRecord{WAV: WAV(t, 22050, 1, frames)}}
}

// WAV encodes a 16-bit sine tone.
func WAV(t testing.TB, rate, channels, frames int) []byte {
	t.Helper()

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: channels, Precision: 2}
	pos := 0
	tone := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= frames {
			return 0, false
		}
		n := 0
		for n < len(samples) && pos < frames {
			v := 0.5 * math.Sin(2*math.Pi*440*float64(pos)/float64(rate))
			samples[n] = [2]float64{v, v}
			n++
			pos++
		}
		return n, true
	})

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	if err := wav.Encode(f, tone, format); err != nil {
		f.Close()
		t.Fatalf("encode wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}
