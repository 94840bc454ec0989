package cook

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"kiln/internal/fileutil"
)

// HashesFileName is the manifest of fully compressed package hashes kept in
// each cooked directory.
const HashesFileName = "Hashes.b3"

// hashKey separates cooked package digests from any other BLAKE3 use of the
// same bytes. ASCII "kiln.cooked.package", zero padded to 32 bytes.
var hashKey = [32]byte{
	'k', 'i', 'l', 'n', '.', 'c', 'o', 'o', 'k', 'e', 'd', '.',
	'p', 'a', 'c', 'k', 'a', 'g', 'e',
}

// HashFile returns the keyed BLAKE3 digest of a cooked file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher, err := blake3.NewKeyed(hashKey[:])
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Manifest maps slash-separated paths, relative to the cooked directory, to
// hex digests.
type Manifest map[string]string

// ReadManifest parses a hash manifest. A missing file is an empty manifest.
func ReadManifest(path string) (Manifest, error) {
	m := make(Manifest)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		digest, name, ok := strings.Cut(text, "  ")
		if !ok || len(digest) != 64 {
			return nil, fmt.Errorf("%s:%d: malformed entry", path, line)
		}
		m[name] = digest
	}
	return m, scanner.Err()
}

// Write stores the manifest sorted by path.
func (m Manifest) Write(path string) error {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	var buf bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&buf, "%s  %s\n", m[name], name)
	}
	return fileutil.WriteAtomic(path, buf.Bytes(), 0o644)
}

// updateManifest hashes files and merges them into the manifest in dir.
func updateManifest(dir string, files []string) (int, error) {
	path := filepath.Join(dir, HashesFileName)
	m, err := ReadManifest(path)
	if err != nil {
		return 0, err
	}
	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return 0, err
		}
		digest, err := HashFile(file)
		if err != nil {
			return 0, err
		}
		m[filepath.ToSlash(rel)] = digest
	}
	if err := m.Write(path); err != nil {
		return 0, err
	}
	return len(files), nil
}
