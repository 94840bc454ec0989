package asset

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	// TransientPackageName owns in-memory objects that are never saved.
	TransientPackageName = "Transient"
	// CanonicalWorldName is the editor world every GC check tolerates.
	CanonicalWorldName = "TheWorld"
)

// ErrDuplicate reports a name collision inside the Universe.
var ErrDuplicate = errors.New("duplicate name")

// Universe is the arena owning every package and object of a run.
type Universe struct {
	packages []*Package
	objects  []*Object

	packagesByName map[string]PackageID
	objectsByPath  map[string]ObjectID

	transient PackageID
	world     ObjectID
}

// NewUniverse returns an arena holding the transient package and the
// canonical world.
func NewUniverse() *Universe {
	u := &Universe{
		packagesByName: make(map[string]PackageID),
		objectsByPath:  make(map[string]ObjectID),
	}
	pkg, _ := u.NewPackage(TransientPackageName, "")
	pkg.Set(PackageTransient | PackageRooted)
	u.transient = pkg.ID
	world, _ := u.NewObject(pkg.ID, CanonicalWorldName, KindGeneric)
	world.World = &World{}
	world.Set(FlagTransient)
	u.world = world.ID
	return u
}

// NewPackage adds an empty package.
func (u *Universe) NewPackage(name, sourcePath string) (*Package, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("package name is empty")
	}
	key := strings.ToLower(name)
	if _, ok := u.packagesByName[key]; ok {
		return nil, fmt.Errorf("package %q: %w", name, ErrDuplicate)
	}
	pkg := &Package{
		ID:         PackageID(len(u.packages)),
		Name:       name,
		SourcePath: sourcePath,
	}
	u.packages = append(u.packages, pkg)
	u.packagesByName[key] = pkg.ID
	return pkg, nil
}

// NewObject adds an object to a live package.
func (u *Universe) NewObject(pkgID PackageID, name string, kind Kind) (*Object, error) {
	pkg := u.Package(pkgID)
	if pkg == nil {
		return nil, fmt.Errorf("object %q: package %d is not live", name, pkgID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("package %s: object name is empty", pkg.Name)
	}
	path := pkg.Name + "." + name
	key := strings.ToLower(path)
	if _, ok := u.objectsByPath[key]; ok {
		return nil, fmt.Errorf("object %q: %w", path, ErrDuplicate)
	}
	obj := &Object{
		ID:      ObjectID(len(u.objects)),
		Name:    name,
		Package: pkgID,
		Kind:    kind,
	}
	u.objects = append(u.objects, obj)
	u.objectsByPath[key] = obj.ID
	pkg.Objects = append(pkg.Objects, obj.ID)
	return obj, nil
}

// Package returns a live package or nil.
func (u *Universe) Package(id PackageID) *Package {
	if id < 0 || int(id) >= len(u.packages) {
		return nil
	}
	return u.packages[id]
}

// FindPackage looks up a live package by case-insensitive name.
func (u *Universe) FindPackage(name string) (*Package, bool) {
	id, ok := u.packagesByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return u.packages[id], true
}

// Packages returns the live packages in creation order.
func (u *Universe) Packages() []*Package {
	out := make([]*Package, 0, len(u.packagesByName))
	for _, pkg := range u.packages {
		if pkg != nil {
			out = append(out, pkg)
		}
	}
	return out
}

// Object returns a live object or nil.
func (u *Universe) Object(id ObjectID) *Object {
	if id < 0 || int(id) >= len(u.objects) {
		return nil
	}
	return u.objects[id]
}

// FindObject looks up a live object by "Package.Object" path.
func (u *Universe) FindObject(path string) (*Object, bool) {
	id, ok := u.objectsByPath[strings.ToLower(strings.TrimSpace(path))]
	if !ok {
		return nil, false
	}
	return u.objects[id], true
}

// Objects returns the live objects in creation order.
func (u *Universe) Objects() []*Object {
	out := make([]*Object, 0, len(u.objectsByPath))
	for _, obj := range u.objects {
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// ObjectsIn returns the live objects owned by a package.
func (u *Universe) ObjectsIn(id PackageID) []*Object {
	pkg := u.Package(id)
	if pkg == nil {
		return nil
	}
	out := make([]*Object, 0, len(pkg.Objects))
	for _, oid := range pkg.Objects {
		if obj := u.Object(oid); obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// Path returns the "Package.Object" path of an object.
func (u *Universe) Path(obj *Object) string {
	if obj == nil {
		return ""
	}
	if pkg := u.Package(obj.Package); pkg != nil {
		return pkg.Name + "." + obj.Name
	}
	return obj.Name
}

// PackageName returns the owning package name of an object.
func (u *Universe) PackageName(obj *Object) string {
	if pkg := u.Package(obj.Package); pkg != nil {
		return pkg.Name
	}
	return ""
}

// TransientPackage returns the transient package ID.
func (u *Universe) TransientPackage() PackageID {
	return u.transient
}

// CanonicalWorld returns the canonical world object ID.
func (u *Universe) CanonicalWorld() ObjectID {
	return u.world
}

// SetAll raises flags on every live object.
func (u *Universe) SetAll(mask Flags) {
	for _, obj := range u.objects {
		if obj != nil {
			obj.Set(mask)
		}
	}
}

// ClearAll lowers flags on every live object.
func (u *Universe) ClearAll(mask Flags) {
	for _, obj := range u.objects {
		if obj != nil {
			obj.Clear(mask)
		}
	}
}

// AddRef appends a reference from one object to another and records the
// package dependency.
func (u *Universe) AddRef(from *Object, to ObjectID) {
	if from == nil || slices.Contains(from.Refs, to) {
		return
	}
	target := u.Object(to)
	if target == nil {
		return
	}
	from.Refs = append(from.Refs, to)
	if pkg := u.Package(from.Package); pkg != nil && target.Package != from.Package {
		pkg.AddDependency(u.PackageName(target))
	}
}

// LiveWorlds returns every live world object.
func (u *Universe) LiveWorlds() []*Object {
	var out []*Object
	for _, obj := range u.objects {
		if obj != nil && obj.IsWorld() {
			out = append(out, obj)
		}
	}
	return out
}
