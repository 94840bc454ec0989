package platform_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"kiln/internal/platform"
)

func TestParseAliases(t *testing.T) {
	cases := map[string]platform.ID{
		"pc":      platform.PC,
		"Win32":   platform.PC,
		"xenon":   platform.Xenon,
		"XBOX360": platform.Xenon,
		"ps3":     platform.PS3,
	}
	for input, want := range cases {
		got, err := platform.Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", input, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := platform.Parse(""); err == nil {
		t.Fatal("expected error for missing platform")
	}
	if _, err := platform.Parse("dreamcast"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestByteOrder(t *testing.T) {
	if platform.PC.NeedsByteSwap() {
		t.Fatal("pc should not byte swap")
	}
	if !platform.Xenon.NeedsByteSwap() || !platform.PS3.NeedsByteSwap() {
		t.Fatal("consoles should byte swap")
	}
	if platform.PS3.ByteOrder() != binary.ByteOrder(binary.BigEndian) {
		t.Fatal("ps3 should be big endian")
	}
}

func TestDestinationPath(t *testing.T) {
	src := filepath.Join("/src", "Maps", "Level01.kmap")
	got := platform.Xenon.DestinationPath("/out", "/src", src)
	if want := filepath.Join("/out", "CookedXenon", "Level01.xxx"); got != want {
		t.Fatalf("xenon destination = %q, want %q", got, want)
	}
	got = platform.PC.DestinationPath("/out", "/src", src)
	if want := filepath.Join("/out", "CookedPC", "Maps", "Level01.kmap"); got != want {
		t.Fatalf("pc destination = %q, want %q", got, want)
	}
}

func TestCodeRoundTrip(t *testing.T) {
	for _, id := range platform.All {
		back, ok := platform.FromCode(id.Code())
		if !ok || back != id {
			t.Fatalf("FromCode(%d) = %q, %v", id.Code(), back, ok)
		}
	}
}

func TestPolicyLODBias(t *testing.T) {
	p := platform.Policy{LODBias: map[string]int{"world": 2}}
	if got := p.LODBiasFor("World"); got != 2 {
		t.Fatalf("LODBiasFor = %d, want 2", got)
	}
	if got := p.LODBiasFor("ui"); got != 0 {
		t.Fatalf("LODBiasFor(ui) = %d, want 0", got)
	}
}
