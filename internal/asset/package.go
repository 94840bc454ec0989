package asset

import (
	"strings"

	"kiln/internal/platform"
)

// PackageFlags are package-level markers.
type PackageFlags uint8

const (
	// PackageCooked is set once the package has been written this run and
	// is never cleared.
	PackageCooked PackageFlags = 1 << iota
	// PackageRooted keeps the package resident across collections.
	PackageRooted
	// PackageTransient marks the in-memory transient package.
	PackageTransient
	// PackageSynthetic marks packages assembled by the writer.
	PackageSynthetic
)

// Package is a loaded or synthetic package.
type Package struct {
	ID              PackageID
	Name            string
	SourcePath      string
	DestinationPath string
	Classification  Classification
	Platform        platform.ID
	Flags           PackageFlags
	// Dependencies holds the lowercase names of packages referenced by this
	// package's objects.
	Dependencies map[string]struct{}
	Objects      []ObjectID
}

// Has reports whether every flag in mask is set.
func (p *Package) Has(mask PackageFlags) bool {
	return p.Flags&mask == mask
}

// Set raises package flags.
func (p *Package) Set(mask PackageFlags) {
	p.Flags |= mask
}

// Clear lowers package flags. PackageCooked cannot be cleared.
func (p *Package) Clear(mask PackageFlags) {
	p.Flags &^= mask &^ PackageCooked
}

// IsCooked reports whether the package has been written this run.
func (p *Package) IsCooked() bool {
	return p.Has(PackageCooked)
}

// AddDependency records a referenced package name.
func (p *Package) AddDependency(name string) {
	key := strings.ToLower(name)
	if key == "" || key == strings.ToLower(p.Name) {
		return
	}
	if p.Dependencies == nil {
		p.Dependencies = make(map[string]struct{})
	}
	p.Dependencies[key] = struct{}{}
}

// HasSource reports whether the package was loaded from a file on disk.
func (p *Package) HasSource() bool {
	return p.SourcePath != "" && !p.Has(PackageTransient) && !p.Has(PackageSynthetic)
}
