package writer

import (
	"strings"

	"kiln/internal/asset"
	"kiln/internal/catalog"
)

// ExportMode is how an object reached from a saved object ends up in a
// package.
type ExportMode uint8

const (
	// ExportDirect objects belong to the package being written.
	ExportDirect ExportMode = iota
	// ExportNever objects stay imports.
	ExportNever
	// ExportForced objects are copied into a seek-free package.
	ExportForced
)

func (m ExportMode) String() string {
	switch m {
	case ExportDirect:
		return "direct"
	case ExportNever:
		return "never"
	default:
		return "forced"
	}
}

// exportMode applies the forced-export rules in order; the first match wins.
// Already cooked objects are forced like any other.
func (w *Writer) exportMode(obj *asset.Object, target *asset.Package, entry catalog.Entry) ExportMode {
	if obj.Package == target.ID {
		return ExportDirect
	}
	if obj.Has(asset.FlagTransient) || obj.Has(asset.FlagTemplate) || obj.Package == w.universe.TransientPackage() {
		return ExportNever
	}
	if obj.Has(asset.FlagNoReexport) {
		return ExportNever
	}
	if entry.Classification == asset.ClassMPMap && w.opts.SeparateSharedMPResources && w.isMPShared(obj) {
		return ExportNever
	}
	return ExportForced
}

func (w *Writer) isMPShared(obj *asset.Object) bool {
	name := w.universe.PackageName(obj)
	for _, shared := range w.opts.MPShared {
		if strings.EqualFold(shared, name) {
			return true
		}
	}
	return false
}

// selection is the set of objects a package write saves.
type selection struct {
	// main holds the objects serialized into the package, resident first.
	main []*asset.Object
	// localized holds objects for the cook language, written to the side
	// package.
	localized []*asset.Object
	// dropped counts localized objects for other languages.
	dropped   int
	forced    int
	hasLocale bool
}

// selectObjects marks and returns the objects to save. Traversal only
// follows references out of saved objects.
func (w *Writer) selectObjects(pkg *asset.Package, entry catalog.Entry, seekFree bool) selection {
	var (
		saved []*asset.Object
		queue []*asset.Object
		sel   selection
	)
	// FlagSavedThisRun is the saved guard; imports only need remembering
	// for this traversal.
	imports := make(map[asset.ObjectID]bool)
	add := func(obj *asset.Object) {
		obj.Set(asset.FlagSavedThisRun)
		saved = append(saved, obj)
		queue = append(queue, obj)
	}

	texturesOnly := entry.Flags.Has(catalog.FlagTexturesOnly)
	for _, obj := range w.universe.ObjectsIn(pkg.ID) {
		if obj.Has(asset.FlagTransient) {
			continue
		}
		if texturesOnly && obj.Kind != asset.KindTexture {
			continue
		}
		add(obj)
	}

	if seekFree {
		for len(queue) > 0 {
			obj := queue[0]
			queue = queue[1:]
			for _, ref := range obj.Refs {
				target := w.universe.Object(ref)
				if target == nil || target.Has(asset.FlagSavedThisRun) || imports[target.ID] {
					continue
				}
				if w.exportMode(target, pkg, entry) != ExportForced {
					imports[target.ID] = true
					continue
				}
				target.Set(asset.FlagForceExport)
				sel.forced++
				add(target)
			}
		}
	}

	for _, obj := range saved {
		if !obj.IsLocalized() {
			sel.main = append(sel.main, obj)
			continue
		}
		sel.hasLocale = true
		if strings.EqualFold(obj.Language, w.opts.Policy.Language) {
			sel.localized = append(sel.localized, obj)
			continue
		}
		obj.Clear(asset.FlagSavedThisRun | asset.FlagForceExport)
		sel.dropped++
	}
	return sel
}
