package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"kiln/internal/asset"
	"kiln/internal/bulkindex"
	"kiln/internal/catalog"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/objcook"
	"kiln/internal/pkgfile"
	"kiln/internal/platform"
	"kiln/internal/runctx"
	"kiln/internal/source"
)

// State is the position of the current package in the write pipeline.
type State uint8

const (
	StateIdle State = iota
	StateLoading
	StateGcChecked
	StateTransformed
	StateWritten
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateGcChecked:
		return "gc_checked"
	case StateTransformed:
		return "transformed"
	case StateWritten:
		return "written"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ReferencerName is the object a synthetic package uses to pull in its
// constituents.
const ReferencerName = "SeekFreeReferencer"

// LocalizedInfix separates a package name from its language suffix.
const LocalizedInfix = "_LOC_"

// Options are the run settings the writer needs.
type Options struct {
	Policy                    platform.Policy
	ContentVersion            int
	SkipSavingMaps            bool
	SeparateSharedMPResources bool
	MPShared                  []string
	// PerMap lists force-cook packages per lowercase map name.
	PerMap map[string][]string
}

// Result describes one written group.
type Result struct {
	Package         string
	Path            string
	LocalizedPath   string
	Bytes           int64
	Exports         int
	Forced          int
	Recorded        int
	FullyCompressed bool
	NotSaved        bool
}

// Stats accumulate over a run.
type Stats struct {
	Packages         int
	Skipped          int
	Bytes            int64
	Exports          int
	Forced           int
	Recorded         int
	Patched          int
	LocalizedDropped int
	ObjectsCollected int
}

// Writer drives packages through the write pipeline one group at a time.
// It is not safe for concurrent use.
type Writer struct {
	loader   *source.Loader
	universe *asset.Universe
	cooker   *objcook.Cooker
	index    *bulkindex.Index
	opts     Options
	logger   *slog.Logger

	state        State
	firstMapSeen bool
	stats        Stats
}

// New returns a writer for one run.
func New(loader *source.Loader, cooker *objcook.Cooker, index *bulkindex.Index, opts Options, logger *slog.Logger) *Writer {
	return &Writer{
		loader:   loader,
		universe: loader.Universe(),
		cooker:   cooker,
		index:    index,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "writer"),
	}
}

// State returns the current pipeline state.
func (w *Writer) State() State {
	return w.state
}

// Stats returns the run totals so far.
func (w *Writer) Stats() Stats {
	return w.stats
}

func (w *Writer) transition(ctx context.Context, next State, attrs ...logging.Attr) {
	prev := w.state
	w.state = next
	attrs = append([]logging.Attr{
		logging.String("from", prev.String()),
		logging.String("to", next.String()),
	}, attrs...)
	logging.WithContext(ctx, w.logger).Debug("package state", logging.Args(attrs...)...)
}

// Group splits an ordered cook list into write groups: consecutive entries
// sharing a destination, such as the constituents of a combined startup
// package, form one group.
func Group(entries []catalog.Entry) [][]catalog.Entry {
	var groups [][]catalog.Entry
	for _, entry := range entries {
		n := len(groups)
		if n > 0 && isSynthetic(entry) && groups[n-1][0].DestinationPath == entry.DestinationPath {
			groups[n-1] = append(groups[n-1], entry)
			continue
		}
		groups = append(groups, []catalog.Entry{entry})
	}
	return groups
}

func isSynthetic(entry catalog.Entry) bool {
	return entry.Classification == asset.ClassCombinedStartup || entry.Classification == asset.ClassStandaloneSeekFree
}

// loaded is the outcome of the Loading state.
type loaded struct {
	entry        catalog.Entry
	pkg          *asset.Package
	constituents []*asset.Package
}

func (l loaded) pinned() []asset.PackageID {
	ids := []asset.PackageID{l.pkg.ID}
	for _, c := range l.constituents {
		ids = append(ids, c.ID)
	}
	return ids
}

// Write cooks and saves one group. Recoverable errors mean the group was
// skipped; any other error must abort the run.
func (w *Writer) Write(ctx context.Context, group []catalog.Entry) (Result, error) {
	if len(group) == 0 {
		return Result{}, errors.New("write: empty group")
	}
	entry := group[0]
	ctx = runctx.WithPackage(ctx, entry.Name)
	ctx = runctx.WithStage(ctx, "write")
	w.state = StateIdle
	defer func() { w.state = StateIdle }()

	w.transition(ctx, StateLoading, logging.String("classification", entry.Classification.String()))
	ld, err := w.load(ctx, group)
	if err != nil {
		if cookerr.Classify(err) == cookerr.SeverityRecoverable {
			w.stats.Skipped++
		}
		return Result{}, err
	}

	if err := w.checkGC(ctx, ld); err != nil {
		return Result{}, err
	}

	seekFree := entry.Classification.IsSeekFree()
	l := layout{
		seekFree:        seekFree,
		fullyCompressed: fullyCompressed(entry.Classification, w.opts.Policy),
	}
	sel := w.selectObjects(ld.pkg, entry, seekFree)
	for _, obj := range append(append([]*asset.Object(nil), sel.main...), sel.localized...) {
		if err := w.cooker.Cook(ctx, obj); err != nil {
			return Result{}, err
		}
	}
	w.transition(ctx, StateTransformed,
		logging.Int("saved", len(sel.main)+len(sel.localized)),
		logging.Int("forced", sel.forced),
	)

	result := Result{Package: ld.pkg.Name, Path: entry.DestinationPath, Forced: sel.forced, FullyCompressed: l.fullyCompressed}
	if w.opts.SkipSavingMaps && entry.Classification.IsMap() {
		result.NotSaved = true
		w.finish(ld, sel)
		w.transition(ctx, StateWritten, logging.Bool("saved", false))
		return result, nil
	}

	if err := w.writeFiles(ctx, ld, sel, l, &result); err != nil {
		return Result{}, err
	}
	w.finish(ld, sel)
	w.transition(ctx, StateWritten,
		logging.String("path", result.Path),
		logging.Bytes("size", result.Bytes),
		logging.Int("exports", result.Exports),
	)

	w.stats.Packages++
	w.stats.Bytes += result.Bytes
	w.stats.Exports += result.Exports
	w.stats.Forced += result.Forced
	w.stats.Recorded += result.Recorded
	w.stats.LocalizedDropped += sel.dropped
	return result, nil
}

func fullyCompressed(class asset.Classification, policy platform.Policy) bool {
	return (class == asset.ClassNativeScript || class == asset.ClassCombinedStartup) && policy.PreloadFully
}

func (w *Writer) load(ctx context.Context, group []catalog.Entry) (loaded, error) {
	entry := group[0]
	if isSynthetic(entry) {
		return w.loadSynthetic(ctx, group)
	}

	if entry.Classification.IsMap() && !w.firstMapSeen {
		w.firstMapSeen = true
		stats := w.universe.Collect()
		w.stats.ObjectsCollected += stats.ObjectsRemoved
		w.universe.SetAll(asset.FlagNoReexport)
		logging.WithContext(ctx, w.logger).Info("first map reached, resident objects marked no-reexport",
			logging.Int("objects", len(w.universe.Objects())),
		)
	}

	pkg, err := w.loader.Load(ctx, entry.Name)
	if err != nil {
		return loaded{}, loadError(entry, err)
	}
	w.stamp(pkg, entry)
	ld := loaded{entry: entry, pkg: pkg}
	if entry.Classification.IsMap() {
		w.forceCookPerMap(ctx, pkg)
	}
	return ld, nil
}

// loadError applies the load failure policy: required, script and map
// entries abort the run, anything else is skipped.
func loadError(entry catalog.Entry, err error) error {
	class := entry.Classification
	if class == asset.ClassRequired || class.IsScript() || class.IsMap() {
		return cookerr.Fatal("writer", "load", entry.Name, err)
	}
	return cookerr.Recoverable("writer", "load", entry.Name, err)
}

func (w *Writer) stamp(pkg *asset.Package, entry catalog.Entry) {
	pkg.DestinationPath = entry.DestinationPath
	pkg.Classification = entry.Classification
	pkg.Platform = entry.Platform
}

// loadSynthetic assembles Startup_<LANG> or <Name>_SF from its
// constituents.
func (w *Writer) loadSynthetic(ctx context.Context, group []catalog.Entry) (loaded, error) {
	entry := group[0]
	base := filepath.Base(entry.DestinationPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if _, exists := w.universe.FindPackage(name); exists {
		return loaded{}, cookerr.Fatal("writer", "load", fmt.Sprintf("synthetic package %s already live", name), nil)
	}

	var constituents []*asset.Package
	logger := logging.WithContext(ctx, w.logger)
	for _, member := range group {
		pkg, err := w.loader.Load(ctx, member.Name)
		if err != nil {
			if cookerr.IsFatal(loadError(member, err)) {
				return loaded{}, loadError(member, err)
			}
			logging.WarnWithContext(logger, "skipping constituent", "constituent_load_failed",
				logging.String("constituent", member.Name),
				logging.String("synthetic", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "constituent objects missing from seek-free package"),
			)
			continue
		}
		constituents = append(constituents, pkg)
	}
	if len(constituents) == 0 {
		return loaded{}, cookerr.Recoverable("writer", "load", fmt.Sprintf("%s has no loadable constituents", name), nil)
	}

	pkg, err := w.universe.NewPackage(name, "")
	if err != nil {
		return loaded{}, cookerr.Fatal("writer", "load", name, err)
	}
	pkg.Set(asset.PackageSynthetic)
	w.stamp(pkg, entry)
	referencer, err := w.universe.NewObject(pkg.ID, ReferencerName, asset.KindGeneric)
	if err != nil {
		return loaded{}, cookerr.Fatal("writer", "load", name, err)
	}
	for _, c := range constituents {
		for _, obj := range w.universe.ObjectsIn(c.ID) {
			obj.Clear(asset.FlagNoReexport)
			w.universe.AddRef(referencer, obj.ID)
		}
	}
	logger.Info("synthetic package assembled",
		logging.String("synthetic", name),
		logging.Int("constituents", len(constituents)),
	)
	return loaded{entry: entry, pkg: pkg, constituents: constituents}, nil
}

// forceCookPerMap adds the public objects of the map's force-cook packages
// to its world's references.
func (w *Writer) forceCookPerMap(ctx context.Context, pkg *asset.Package) {
	names := w.opts.PerMap[strings.ToLower(pkg.Name)]
	if len(names) == 0 {
		return
	}
	logger := logging.WithContext(ctx, w.logger)
	var world *asset.Object
	for _, obj := range w.universe.ObjectsIn(pkg.ID) {
		if obj.IsWorld() {
			world = obj
			break
		}
	}
	if world == nil {
		logging.WarnWithContext(logger, "map has no world for force-cook packages", "per_map_no_world",
			logging.Int("packages", len(names)),
		)
		return
	}
	for _, name := range names {
		extra, err := w.loader.Load(ctx, name)
		if err != nil {
			logging.WarnWithContext(logger, "force-cook package not loaded", "per_map_load_failed",
				logging.String("force_cook", name),
				logging.Error(err),
			)
			continue
		}
		for _, obj := range w.universe.ObjectsIn(extra.ID) {
			if obj.Has(asset.FlagPublic) && !obj.Has(asset.FlagNoReexport) {
				w.universe.AddRef(world, obj.ID)
			}
		}
	}
}

func (w *Writer) checkGC(ctx context.Context, ld loaded) error {
	pinned := ld.pinned()
	stats := w.universe.Collect(pinned...)
	w.stats.ObjectsCollected += stats.ObjectsRemoved
	if err := w.universe.VerifyNoStrayWorlds(pinned...); err != nil {
		return cookerr.Fatal("writer", "gc", ld.pkg.Name, err)
	}
	w.transition(ctx, StateGcChecked,
		logging.Int("packages_collected", stats.PackagesRemoved),
		logging.Int("objects_collected", stats.ObjectsRemoved),
	)
	return nil
}

func (w *Writer) writeFiles(ctx context.Context, ld loaded, sel selection, l layout, result *Result) error {
	entry := ld.entry
	for _, obj := range sel.main {
		if err := w.place(obj, obj.Package == ld.pkg.ID, l); err != nil {
			return err
		}
	}
	for _, obj := range sel.localized {
		if err := w.place(obj, obj.Package == ld.pkg.ID, l); err != nil {
			return err
		}
	}

	var flags pkgfile.Flags
	if l.seekFree {
		flags |= pkgfile.FlagSeekFree
	}
	if l.fullyCompressed {
		flags |= pkgfile.FlagFullyCompressed
	}
	if entry.Flags.Has(catalog.FlagTexturesOnly) {
		flags |= pkgfile.FlagTexturesOnly
	}

	size, exports, err := w.writeObjects(entry.DestinationPath, sel.main, flags)
	if err != nil {
		return err
	}
	result.Bytes += size
	result.Exports += exports

	if len(sel.localized) > 0 {
		path := LocalizedPath(entry.DestinationPath, w.opts.Policy.Language)
		size, exports, err := w.writeObjects(path, sel.localized, flags&^pkgfile.FlagFullyCompressed)
		if err != nil {
			return err
		}
		result.LocalizedPath = path
		result.Bytes += size
		result.Exports += exports
	} else if sel.hasLocale && !w.opts.Policy.IsDefaultLanguage() {
		logging.WarnWithContext(logging.WithContext(ctx, w.logger), "no localized resources for cook language",
			"localization_missing",
			logging.String("language", w.opts.Policy.Language),
			logging.String(logging.FieldImpact, "package ships without localized objects"),
			logging.Alert("localization"),
		)
	}

	for _, obj := range append(append([]*asset.Object(nil), sel.main...), sel.localized...) {
		if obj.Package != ld.pkg.ID {
			continue
		}
		n, err := w.record(obj)
		result.Recorded += n
		if err != nil {
			return err
		}
	}
	if err := w.index.Save(ctx); err != nil {
		return cookerr.Fatal("writer", "index", ld.pkg.Name, err)
	}
	return nil
}

func (w *Writer) writeObjects(path string, objects []*asset.Object, flags pkgfile.Flags) (int64, int, error) {
	pkg := &pkgfile.Package{
		Platform:       w.opts.Policy.Platform,
		ContentVersion: w.opts.ContentVersion,
		Flags:          flags,
		Compression:    w.opts.Policy.Compression,
		Exports:        w.buildExports(objects),
	}
	size, err := pkgfile.Write(path, pkg)
	if err != nil {
		return 0, 0, cookerr.Fatal("writer", "serialize", filepath.Base(path), err)
	}
	applyPlacements(objects, pkg.Exports)
	return size, len(pkg.Exports), nil
}

// finish resets the per-run markers once a package is done.
func (w *Writer) finish(ld loaded, sel selection) {
	class := ld.entry.Classification
	if class == asset.ClassNativeScript || class == asset.ClassCombinedStartup {
		for _, obj := range append(append([]*asset.Object(nil), sel.main...), sel.localized...) {
			obj.Set(asset.FlagNoReexport)
		}
	}
	w.universe.ClearAll(asset.FlagForceExport | asset.FlagSavedThisRun)
	ld.pkg.Set(asset.PackageCooked)
	for _, c := range ld.constituents {
		c.Set(asset.PackageCooked)
		if class == asset.ClassCombinedStartup {
			c.Set(asset.PackageRooted)
		}
	}
}

// LocalizedPath names the side package holding a language's objects.
func LocalizedPath(destination, language string) string {
	ext := filepath.Ext(destination)
	return strings.TrimSuffix(destination, ext) + LocalizedInfix + strings.ToUpper(language) + ext
}
