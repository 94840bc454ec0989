// Package deptrack discovers the set of packages a cook needs starting from
// root maps.
package deptrack

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/source"
)

// Set holds lowercase package names.
type Set map[string]struct{}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// Names returns the members sorted.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Tracker resolves root packages through a source loader.
type Tracker struct {
	loader *source.Loader
	perMap map[string][]string
	logger *slog.Logger
}

// New constructs a Tracker. perMap lists packages force-loaded alongside a
// root, keyed by lowercase root name.
func New(loader *source.Loader, perMap map[string][]string, logger *slog.Logger) *Tracker {
	return &Tracker{
		loader: loader,
		perMap: perMap,
		logger: logging.NewComponentLogger(logger, "deptrack"),
	}
}

// Resolve loads the roots and everything they reference, including streamed
// sub-levels, and returns the package names of every live object that came
// from disk. No roots returns nil, meaning every package is eligible.
func (t *Tracker) Resolve(ctx context.Context, roots []string) (Set, error) {
	if len(roots) == 0 {
		return nil, nil
	}
	logger := logging.WithContext(ctx, t.logger)
	for _, root := range roots {
		if _, err := t.loader.Load(ctx, root); err != nil {
			return nil, cookerr.Fatal("deptrack", "load root", "root package "+root, err)
		}
	}
	for _, root := range roots {
		for _, name := range t.perMap[strings.ToLower(root)] {
			if _, err := t.loader.Load(ctx, name); err != nil {
				logging.WarnWithContext(logger, "per-map package not loaded", "per_map_load_failed",
					logging.String("map", root),
					logging.String(logging.FieldPackage, name),
					logging.Error(err),
				)
			}
		}
	}
	if err := t.loadStreamingLevels(ctx, logger); err != nil {
		return nil, err
	}

	universe := t.loader.Universe()
	set := make(Set)
	for _, obj := range universe.Objects() {
		pkg := universe.Package(obj.Package)
		if pkg == nil || !pkg.HasSource() {
			continue
		}
		set[strings.ToLower(pkg.Name)] = struct{}{}
	}
	logger.Info("dependencies resolved",
		logging.Int("roots", len(roots)),
		logging.Int("packages", len(set)),
	)
	return set, nil
}

// loadStreamingLevels loads streamed sub-levels of every live world until a
// pass loads nothing new.
func (t *Tracker) loadStreamingLevels(ctx context.Context, logger *slog.Logger) error {
	universe := t.loader.Universe()
	attempted := make(map[string]struct{})
	for {
		loaded := 0
		for _, world := range universe.LiveWorlds() {
			for _, level := range world.World.StreamingLevels {
				key := strings.ToLower(level)
				if _, done := attempted[key]; done {
					continue
				}
				attempted[key] = struct{}{}
				if _, live := universe.FindPackage(level); live {
					continue
				}
				if _, err := t.loader.Load(ctx, level); err != nil {
					if errors.Is(err, cookerr.ErrNotFound) {
						logging.WarnWithContext(logger, "streaming level missing", "streaming_level_missing",
							logging.String("world", universe.Path(world)),
							logging.String("level", level),
						)
						continue
					}
					return cookerr.Fatal("deptrack", "load streaming level", level, err)
				}
				loaded++
			}
		}
		if loaded == 0 {
			return nil
		}
	}
}
