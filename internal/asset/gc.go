package asset

import (
	"fmt"
	"slices"
	"strings"
)

// CollectStats summarizes one collection.
type CollectStats struct {
	PackagesRemoved int
	ObjectsRemoved  int
}

// Collect removes every package unreachable from the roots. Roots are rooted
// objects, rooted packages, the transient package, and pinned.
func (u *Universe) Collect(pinned ...PackageID) CollectStats {
	live := make([]bool, len(u.packages))
	var queue []PackageID
	mark := func(id PackageID) {
		if u.Package(id) == nil || live[id] {
			return
		}
		live[id] = true
		queue = append(queue, id)
	}

	mark(u.transient)
	for _, id := range pinned {
		mark(id)
	}
	for _, pkg := range u.packages {
		if pkg != nil && pkg.Has(PackageRooted) {
			mark(pkg.ID)
		}
	}
	for _, obj := range u.objects {
		if obj != nil && obj.Has(FlagRooted) {
			mark(obj.Package)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, oid := range u.packages[id].Objects {
			obj := u.Object(oid)
			if obj == nil {
				continue
			}
			for _, ref := range obj.Refs {
				if target := u.Object(ref); target != nil {
					mark(target.Package)
				}
			}
		}
	}

	var stats CollectStats
	for id, pkg := range u.packages {
		if pkg == nil || live[id] {
			continue
		}
		for _, oid := range pkg.Objects {
			obj := u.objects[oid]
			if obj == nil {
				continue
			}
			delete(u.objectsByPath, strings.ToLower(pkg.Name+"."+obj.Name))
			u.objects[oid] = nil
			stats.ObjectsRemoved++
		}
		delete(u.packagesByName, strings.ToLower(pkg.Name))
		u.packages[id] = nil
		stats.PackagesRemoved++
	}
	return stats
}

// StrayWorldError lists worlds that survived collection while they should
// have been released.
type StrayWorldError struct {
	Worlds []string
}

func (e *StrayWorldError) Error() string {
	return fmt.Sprintf("worlds survived collection: %s", strings.Join(e.Worlds, ", "))
}

// VerifyNoStrayWorlds checks that the only live worlds are the canonical
// world and worlds owned by the allowed packages.
func (u *Universe) VerifyNoStrayWorlds(allowed ...PackageID) error {
	var stray []string
	for _, world := range u.LiveWorlds() {
		if world.ID == u.world || slices.Contains(allowed, world.Package) {
			continue
		}
		stray = append(stray, u.Path(world))
	}
	if len(stray) == 0 {
		return nil
	}
	slices.Sort(stray)
	return &StrayWorldError{Worlds: stray}
}
