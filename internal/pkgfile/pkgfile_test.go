package pkgfile_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"kiln/internal/asset"
	"kiln/internal/pkgfile"
	"kiln/internal/platform"
)

func compressible(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 7)
	}
	return data
}

func samplePackage(id platform.ID, method platform.Compression, flags pkgfile.Flags) *pkgfile.Package {
	return &pkgfile.Package{
		Platform:       id,
		ContentVersion: 3,
		Flags:          flags,
		Compression:    method,
		Exports: []pkgfile.Export{
			{
				Path:    "Props.Crate",
				Kind:    asset.KindTexture,
				Flags:   uint32(asset.FlagPublic),
				Body:    []byte("texture-body"),
				Imports: []string{"Engine.DefaultMaterial"},
				Payloads: []pkgfile.Payload{
					{Name: "MipLevel_0", Storage: asset.StorageExternal, Offset: 900, SizeOnDisk: 64, ElementCount: 4096, File: "/elsewhere.xxx"},
					{Name: "MipLevel_1", Storage: asset.StorageInline, Compression: method, Data: compressible(1024)},
					{Name: "MipLevel_2", Storage: asset.StorageUnused},
				},
			},
			{
				Path:     "Props.Hello",
				Kind:     asset.KindSound,
				Language: "FRA",
				Body:     []byte{1, 2, 3},
			},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		id     platform.ID
		method platform.Compression
		flags  pkgfile.Flags
	}{
		{"pc zlib", platform.PC, platform.CompressZlib, 0},
		{"xenon lz4 fully compressed", platform.Xenon, platform.CompressLZ4, pkgfile.FlagSeekFree | pkgfile.FlagFullyCompressed},
		{"ps3 zstd", platform.PS3, platform.CompressZstd, pkgfile.FlagTexturesOnly},
		{"ps3 none", platform.PS3, platform.CompressNone, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Props.xxx")
			pkg := samplePackage(tc.id, tc.method, tc.flags)
			if _, err := pkgfile.Write(path, pkg); err != nil {
				t.Fatalf("Write: %v", err)
			}
			inline := pkg.Exports[0].Payloads[1]
			if inline.Offset < pkgfile.HeaderSize || inline.File != path || inline.ElementCount != 1024 {
				t.Fatalf("unexpected inline placement %+v", inline)
			}
			if tc.method != platform.CompressNone && inline.SizeOnDisk >= 1024 {
				t.Fatalf("expected compressed payload, size %d", inline.SizeOnDisk)
			}

			header, err := pkgfile.ReadSummary(path)
			if err != nil {
				t.Fatalf("ReadSummary: %v", err)
			}
			if header.Platform != tc.id || header.ContentVersion != 3 || header.Flags != tc.flags || header.ExportCount != 2 {
				t.Fatalf("unexpected header %+v", header)
			}
			if header.ByteOrder() != tc.id.ByteOrder() {
				t.Fatalf("unexpected byte order for %s", tc.id)
			}

			got, err := pkgfile.Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if len(got.Exports) != 2 {
				t.Fatalf("unexpected exports %d", len(got.Exports))
			}
			crate := got.Exports[0]
			if crate.Path != "Props.Crate" || string(crate.Body) != "texture-body" || crate.Imports[0] != "Engine.DefaultMaterial" {
				t.Fatalf("unexpected export %+v", crate)
			}
			if !bytes.Equal(crate.Payloads[1].Data, compressible(1024)) {
				t.Fatal("inline payload did not round-trip")
			}
			external := crate.Payloads[0]
			if external.Storage != asset.StorageExternal || external.Offset != 900 || external.File != "/elsewhere.xxx" {
				t.Fatalf("unexpected external payload %+v", external)
			}
			if crate.Payloads[2].Storage != asset.StorageUnused {
				t.Fatal("expected unused payload")
			}
			if got.Exports[1].Language != "FRA" {
				t.Fatalf("unexpected language %q", got.Exports[1].Language)
			}
		})
	}
}

func TestPatchPayload(t *testing.T) {
	for _, flags := range []pkgfile.Flags{0, pkgfile.FlagFullyCompressed} {
		path := filepath.Join(t.TempDir(), "Props.xxx")
		pkg := samplePackage(platform.Xenon, platform.CompressNone, flags)
		pkg.Compression = platform.CompressZlib
		if _, err := pkgfile.Write(path, pkg); err != nil {
			t.Fatalf("Write: %v", err)
		}
		slot := pkg.Exports[0].Payloads[1]
		replacement := bytes.Repeat([]byte{0xAB}, int(slot.SizeOnDisk))
		if err := pkgfile.PatchPayload(path, slot.Offset, replacement); err != nil {
			t.Fatalf("PatchPayload: %v", err)
		}
		got, err := pkgfile.Read(path)
		if err != nil {
			t.Fatalf("Read after patch: %v", err)
		}
		if !bytes.Equal(got.Exports[0].Payloads[1].Data, replacement) {
			t.Fatalf("patched payload not visible (flags %v)", flags)
		}
		if err := pkgfile.PatchPayload(path, 2, []byte{1}); err == nil {
			t.Fatal("expected header patch to be rejected")
		}
	}
}

func TestReadSummaryRejectsForeignFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.xxx")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 80), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := pkgfile.ReadSummary(path); !errors.Is(err, pkgfile.ErrNotPackage) {
		t.Fatalf("expected ErrNotPackage, got %v", err)
	}
	short := filepath.Join(t.TempDir(), "short.xxx")
	if err := os.WriteFile(short, []byte("KILN"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := pkgfile.ReadSummary(short); !errors.Is(err, pkgfile.ErrNotPackage) {
		t.Fatalf("expected ErrNotPackage for short file, got %v", err)
	}
}

func TestCompressIsDeterministic(t *testing.T) {
	data := compressible(4096)
	for _, method := range []platform.Compression{platform.CompressZlib, platform.CompressZstd, platform.CompressLZ4} {
		first, err := pkgfile.Compress(data, method)
		if err != nil {
			t.Fatalf("%v: %v", method, err)
		}
		second, err := pkgfile.Compress(data, method)
		if err != nil {
			t.Fatalf("%v: %v", method, err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("%v output differs between calls", method)
		}
		back, err := pkgfile.Decompress(first, method, len(data))
		if err != nil || !bytes.Equal(back, data) {
			t.Fatalf("%v round trip failed: %v", method, err)
		}
	}
	incompressible := []byte{0x01, 0x9f}
	stored, err := pkgfile.Compress(incompressible, platform.CompressZlib)
	if err != nil || !bytes.Equal(stored, incompressible) {
		t.Fatalf("expected tiny payload stored raw, got %v %v", stored, err)
	}
}
