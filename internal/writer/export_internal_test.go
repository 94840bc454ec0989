package writer

import (
	"testing"

	"kiln/internal/asset"
	"kiln/internal/catalog"
)

func TestExportModePrecedence(t *testing.T) {
	u := asset.NewUniverse()
	level, _ := u.NewPackage("MP_Arena", "")
	props, _ := u.NewPackage("Props", "")
	shared, _ := u.NewPackage("SharedMP", "")

	mk := func(pkg asset.PackageID, name string, flags asset.Flags) *asset.Object {
		obj, err := u.NewObject(pkg, name, asset.KindGeneric)
		if err != nil {
			t.Fatalf("NewObject %s: %v", name, err)
		}
		obj.Set(flags)
		return obj
	}
	resident := mk(level.ID, "Actor", asset.FlagNoReexport)
	plain := mk(props.ID, "Crate", 0)
	cooked := mk(props.ID, "Barrel", asset.FlagCooked)
	transient := mk(props.ID, "Scratch", asset.FlagTransient)
	template := mk(props.ID, "Default", asset.FlagTemplate)
	pinned := mk(props.ID, "Script", asset.FlagNoReexport)
	inTransient := mk(u.TransientPackage(), "Helper", 0)
	sharedObj := mk(shared.ID, "Rifle", 0)

	w := &Writer{universe: u, opts: Options{MPShared: []string{"sharedmp"}, SeparateSharedMPResources: true}}
	mpMap := catalog.Entry{Classification: asset.ClassMPMap}
	plainMap := catalog.Entry{Classification: asset.ClassMap}

	tests := []struct {
		name  string
		obj   *asset.Object
		entry catalog.Entry
		want  ExportMode
	}{
		{"resident wins over every flag", resident, mpMap, ExportDirect},
		{"ordinary object", plain, mpMap, ExportForced},
		{"cooked object", cooked, plainMap, ExportForced},
		{"transient object", transient, plainMap, ExportNever},
		{"template object", template, plainMap, ExportNever},
		{"transient package", inTransient, plainMap, ExportNever},
		{"no reexport", pinned, plainMap, ExportNever},
		{"mp shared in mp map", sharedObj, mpMap, ExportNever},
		{"mp shared in plain map", sharedObj, plainMap, ExportForced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.exportMode(tt.obj, level, tt.entry); got != tt.want {
				t.Fatalf("exportMode = %s, want %s", got, tt.want)
			}
		})
	}

	w.opts.SeparateSharedMPResources = false
	if got := w.exportMode(sharedObj, level, mpMap); got != ExportForced {
		t.Fatalf("shared resources without separation = %s, want forced", got)
	}
}

func TestSelectionTraversesSavedObjectsOnly(t *testing.T) {
	u := asset.NewUniverse()
	level, _ := u.NewPackage("Level", "")
	props, _ := u.NewPackage("Props", "")
	script, _ := u.NewPackage("Script", "")

	world, _ := u.NewObject(level.ID, "TheWorld", asset.KindGeneric)
	world.World = &asset.World{}
	crate, _ := u.NewObject(props.ID, "Crate", asset.KindGeneric)
	lid, _ := u.NewObject(props.ID, "Lid", asset.KindGeneric)
	base, _ := u.NewObject(script.ID, "Base", asset.KindGeneric)
	base.Set(asset.FlagNoReexport)
	behind, _ := u.NewObject(props.ID, "BehindScript", asset.KindGeneric)

	u.AddRef(world, crate.ID)
	u.AddRef(crate, lid.ID)
	u.AddRef(world, base.ID)
	u.AddRef(base, behind.ID)

	w := &Writer{universe: u}
	sel := w.selectObjects(level, catalog.Entry{Classification: asset.ClassMap}, true)
	if sel.forced != 2 {
		t.Fatalf("forced = %d, want 2", sel.forced)
	}
	want := map[asset.ObjectID]bool{world.ID: true, crate.ID: true, lid.ID: true}
	if len(sel.main) != len(want) {
		t.Fatalf("saved %d objects, want %d", len(sel.main), len(want))
	}
	for _, obj := range sel.main {
		if !want[obj.ID] || !obj.Has(asset.FlagSavedThisRun) {
			t.Fatalf("unexpected saved object %s", u.Path(obj))
		}
	}
	if behind.Has(asset.FlagSavedThisRun) {
		t.Fatal("objects behind an import should not be traversed")
	}
	if !crate.Has(asset.FlagForceExport) || world.Has(asset.FlagForceExport) {
		t.Fatal("only forced objects carry the force-export marker")
	}
}

func TestSelectionSavesSharedReferenceOnce(t *testing.T) {
	u := asset.NewUniverse()
	level, _ := u.NewPackage("Level", "")
	props, _ := u.NewPackage("Props", "")

	world, _ := u.NewObject(level.ID, "TheWorld", asset.KindGeneric)
	world.World = &asset.World{}
	crate, _ := u.NewObject(props.ID, "Crate", asset.KindGeneric)
	lid, _ := u.NewObject(props.ID, "Lid", asset.KindGeneric)
	u.AddRef(world, crate.ID)
	u.AddRef(world, lid.ID)
	u.AddRef(crate, lid.ID)
	u.AddRef(crate, world.ID)

	w := &Writer{universe: u}
	sel := w.selectObjects(level, catalog.Entry{Classification: asset.ClassMap}, true)
	if sel.forced != 2 || len(sel.main) != 3 {
		t.Fatalf("forced %d saved %d, want 2 and 3", sel.forced, len(sel.main))
	}
	for _, obj := range []*asset.Object{world, crate, lid} {
		if !obj.Has(asset.FlagSavedThisRun) {
			t.Fatalf("%s not marked saved", u.Path(obj))
		}
	}
}
