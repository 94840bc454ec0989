package platform

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
)

// ID identifies a cook target.
type ID string

const (
	PC    ID = "pc"
	Xenon ID = "xenon"
	PS3   ID = "ps3"
)

// All lists the supported targets in a stable order.
var All = []ID{PC, Xenon, PS3}

// ConsoleExtension is the platform-neutral extension used for flat console outputs.
const ConsoleExtension = ".xxx"

// Parse accepts the target names and aliases understood on the command line.
func Parse(value string) (ID, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pc", "win32", "windows":
		return PC, nil
	case "xenon", "xbox360":
		return Xenon, nil
	case "ps3":
		return PS3, nil
	case "":
		return "", fmt.Errorf("platform not specified")
	default:
		return "", fmt.Errorf("unknown platform %q", value)
	}
}

func (id ID) String() string { return string(id) }

// Valid reports whether id names a supported target.
func (id ID) Valid() bool {
	switch id {
	case PC, Xenon, PS3:
		return true
	}
	return false
}

// IsConsole reports whether the target uses the flat console output layout.
func (id ID) IsConsole() bool {
	return id == Xenon || id == PS3
}

// ByteOrder returns the byte order of the target's cooked data.
func (id ID) ByteOrder() binary.ByteOrder {
	if id.IsConsole() {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// NeedsByteSwap reports whether editor data (little-endian) must be swapped.
func (id ID) NeedsByteSwap() bool {
	return id.IsConsole()
}

// Code is the single byte stored in cooked package headers.
func (id ID) Code() uint8 {
	switch id {
	case PC:
		return 1
	case Xenon:
		return 2
	case PS3:
		return 3
	}
	return 0
}

// FromCode is the inverse of Code.
func FromCode(code uint8) (ID, bool) {
	for _, id := range All {
		if id.Code() == code {
			return id, true
		}
	}
	return "", false
}

// CookedDirName is the per-target directory created under the output root.
func (id ID) CookedDirName() string {
	switch id {
	case PC:
		return "CookedPC"
	case Xenon:
		return "CookedXenon"
	case PS3:
		return "CookedPS3"
	}
	return "Cooked" + string(id)
}

// CookedDir returns the per-target output directory.
func (id ID) CookedDir(outputRoot string) string {
	return filepath.Join(outputRoot, id.CookedDirName())
}

// Extension returns the cooked file extension for a source extension.
func (id ID) Extension(sourceExt string) string {
	if id.IsConsole() {
		return ConsoleExtension
	}
	return sourceExt
}

// DestinationPath maps a source file to its cooked location. Console targets
// flatten to <base>.xxx; the desktop target mirrors the source tree.
func (id ID) DestinationPath(outputRoot, sourceRoot, sourcePath string) string {
	dir := id.CookedDir(outputRoot)
	ext := filepath.Ext(sourcePath)
	if id.IsConsole() {
		base := strings.TrimSuffix(filepath.Base(sourcePath), ext)
		return filepath.Join(dir, base+ConsoleExtension)
	}
	rel, err := filepath.Rel(sourceRoot, sourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(sourcePath)
	}
	return filepath.Join(dir, rel)
}

// SyntheticPath names a package that has no source file of its own, such as
// a combined startup package.
func (id ID) SyntheticPath(outputRoot, name, sourceExt string) string {
	return filepath.Join(id.CookedDir(outputRoot), name+id.Extension(sourceExt))
}
