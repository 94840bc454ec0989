package source

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// File is a source package found on disk.
type File struct {
	Path string
	// Rel is the slash-separated path relative to the scanned root.
	Rel  string
	Name string
	Ext  string
}

// Scan walks root and returns every file whose lowercase extension is in
// exts, sorted by relative path. Unreadable directories are skipped.
func Scan(root string, exts []string) ([]File, error) {
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if _, ok := allowed[strings.ToLower(ext)]; !ok {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		files = append(files, File{
			Path: path,
			Rel:  filepath.ToSlash(rel),
			Name: strings.TrimSuffix(filepath.Base(path), ext),
			Ext:  strings.ToLower(ext),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}
