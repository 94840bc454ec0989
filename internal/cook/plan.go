package cook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kiln/internal/asset"
	"kiln/internal/catalog"
	"kiln/internal/config"
	"kiln/internal/cookerr"
	"kiln/internal/deptrack"
	"kiln/internal/logging"
	"kiln/internal/platform"
	"kiln/internal/source"
	"kiln/internal/staleness"
)

// ReasonOutsideDependencies marks entries an incremental run keeps only
// because -cookallnonmappackages widened the selection.
const ReasonOutsideDependencies = "outside the dependency set"

// Planned is a cook list entry with its staleness decision.
type Planned struct {
	Entry    catalog.Entry
	Decision staleness.Decision
}

// Plan is the ordered cook list of a run. The loader holds every package
// planning left live, rooted native script included.
type Plan struct {
	Entries      []Planned
	Dependencies deptrack.Set
	Loader       *source.Loader
	NativeScript []string
}

// Stale returns the entries to cook, in order.
func (p *Plan) Stale() []catalog.Entry {
	out := make([]catalog.Entry, 0, len(p.Entries))
	for _, planned := range p.Entries {
		if planned.Decision.State == staleness.Stale {
			out = append(out, planned.Entry)
		}
	}
	return out
}

// All returns every selected entry, in order.
func (p *Plan) All() []catalog.Entry {
	out := make([]catalog.Entry, 0, len(p.Entries))
	for _, planned := range p.Entries {
		out = append(out, planned.Entry)
	}
	return out
}

// BuildPlan loads native script, resolves dependencies of the roots,
// enumerates the source tree and decides staleness for every selected entry.
func BuildPlan(ctx context.Context, cfg *config.Config, args Args, policy platform.Policy, logger *slog.Logger) (*Plan, error) {
	logger = logging.NewComponentLogger(logger, "plan")
	log := logging.WithContext(ctx, logger)

	files, err := source.Scan(cfg.Paths.SourceRoot, cfg.Packages.Extensions)
	if err != nil {
		return nil, cookerr.Fatal("plan", "scan", cfg.Paths.SourceRoot, err)
	}
	universe := asset.NewUniverse()
	loader := source.NewLoader(universe, files, logger)

	native, err := loadNativeScript(ctx, loader, cfg.Packages)
	if err != nil {
		return nil, err
	}

	deps, err := deptrack.New(loader, cfg.Packages.PerMap, logger).Resolve(ctx, args.Roots)
	if err != nil {
		return nil, err
	}
	stats := universe.Collect()
	log.Debug("post-dependency collection",
		logging.Int("packages_collected", stats.PackagesRemoved),
		logging.Int("objects_collected", stats.ObjectsRemoved),
	)

	entries, err := catalog.Enumerate(catalog.OptionsFromConfig(cfg, args.Platform, policy.Language))
	if err != nil {
		return nil, cookerr.Fatal("plan", "enumerate", "", err)
	}
	selected := catalog.Select(entries, catalog.Selection{
		Dependencies:    deps,
		CookAllNonMap:   args.CookAllNonMap,
		SkipMaps:        args.SkipMaps,
		SkipNotRequired: args.SkipNotRequired,
	})

	decider := staleness.New(staleness.Options{
		ContentVersion:     cfg.Cooking.ContentVersion,
		AlwaysRecookMaps:   args.AlwaysRecookMaps,
		AlwaysRecookScript: args.AlwaysRecookScript,
	})
	plan := &Plan{Dependencies: deps, Loader: loader, NativeScript: native}
	stale := 0
	for _, entry := range selected {
		decision := decider.Decide(entry)
		if decision.State == staleness.Fresh && deps != nil && !deps.Has(entry.Name) {
			decision = staleness.Decision{State: staleness.Stale, Reason: ReasonOutsideDependencies}
		}
		if decision.State == staleness.Stale {
			stale++
		}
		log.Debug("staleness decided", logging.Args(append(
			logging.DecisionAttrs("staleness", decision.State.String(), decision.Reason),
			logging.String(logging.FieldPackage, entry.Name),
			logging.String("classification", entry.Classification.String()),
		)...)...)
		plan.Entries = append(plan.Entries, Planned{Entry: entry, Decision: decision})
	}
	log.Info("cook list planned",
		logging.Int("enumerated", len(entries)),
		logging.Int("selected", len(selected)),
		logging.Int("stale", stale),
		logging.Int("dependencies", len(deps)),
	)
	return plan, nil
}

// loadNativeScript loads and roots the declared native script packages.
// Their objects are never re-exported into other packages.
func loadNativeScript(ctx context.Context, loader *source.Loader, lists config.Packages) ([]string, error) {
	names := append(append([]string(nil), lists.EngineNativeScript...), lists.GameNativeScript...)
	universe := loader.Universe()
	for _, name := range names {
		pkg, err := loader.Load(ctx, name)
		if err != nil {
			return nil, cookerr.Fatal("plan", "load native script", name, err)
		}
		pkg.Set(asset.PackageRooted)
		for _, obj := range universe.ObjectsIn(pkg.ID) {
			obj.Set(asset.FlagNoReexport)
		}
	}
	return names, nil
}

// Describe renders an entry's classification and flags for listings.
func Describe(entry catalog.Entry) string {
	var flags []string
	for _, f := range []struct {
		flag catalog.EntryFlags
		name string
	}{
		{catalog.FlagSeekFree, "seekfree"},
		{catalog.FlagTexturesOnly, "textures-only"},
		{catalog.FlagPIE, "pie"},
	} {
		if entry.Flags.Has(f.flag) {
			flags = append(flags, f.name)
		}
	}
	if len(flags) == 0 {
		return entry.Classification.String()
	}
	return fmt.Sprintf("%s (%s)", entry.Classification, strings.Join(flags, ", "))
}
