package catalog

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"kiln/internal/asset"
	"kiln/internal/config"
	"kiln/internal/platform"
	"kiln/internal/source"
)

const (
	shaderCacheMarker = "shadercache"
	autosaveDir       = "autosaves"
	piePrefix         = "pie_"
	entryMapName      = "entry"
	// SeekFreeSuffix names the seek-free companion of a standalone package.
	SeekFreeSuffix = "_SF"
	// StartupPrefix names the combined startup package.
	StartupPrefix = "Startup_"
)

// EntryFlags annotate a cook list entry.
type EntryFlags uint16

const (
	FlagMap EntryFlags = 1 << iota
	FlagMPMap
	FlagNativeScript
	FlagScript
	FlagSeekFree
	FlagTexturesOnly
	FlagAutosave
	FlagPIE
)

// Has reports whether every flag in mask is set.
func (f EntryFlags) Has(mask EntryFlags) bool {
	return f&mask == mask
}

// Entry is one unit of the cook list.
type Entry struct {
	SourcePath      string
	DestinationPath string
	// Rel is the slash-separated source path relative to the source root.
	Rel            string
	Name           string
	Ext            string
	Classification asset.Classification
	Platform       platform.ID
	Flags          EntryFlags

	scriptOrder int
}

// Options carries everything classification depends on.
type Options struct {
	SourceRoot                string
	OutputRoot                string
	Platform                  platform.ID
	Packages                  config.Packages
	SeparateSharedMPResources bool
	MPMapPrefix               string
	// Language is the cook language suffix used for the startup package name.
	Language string
}

// OptionsFromConfig builds Options for a target.
func OptionsFromConfig(cfg *config.Config, id platform.ID, language string) Options {
	return Options{
		SourceRoot:                cfg.Paths.SourceRoot,
		OutputRoot:                cfg.Paths.OutputRoot,
		Platform:                  id,
		Packages:                  cfg.Packages,
		SeparateSharedMPResources: cfg.Cooking.SeparateSharedMPResources,
		MPMapPrefix:               cfg.Cooking.MPMapPrefix,
		Language:                  language,
	}
}

// StartupName returns the combined startup package name for a language suffix.
func StartupName(language string) string {
	return StartupPrefix + language
}

// Enumerate scans the source root and returns the ordered cook list. Files
// that cannot be read are skipped.
func Enumerate(opts Options) ([]Entry, error) {
	if !opts.Platform.Valid() {
		return nil, fmt.Errorf("enumerate: unknown platform %q", opts.Platform)
	}
	files, err := source.Scan(opts.SourceRoot, opts.Packages.Extensions)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", opts.SourceRoot, err)
	}
	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		entry, ok := Classify(file, opts)
		if !ok {
			continue
		}
		entries = append(entries, entry)
		if entry.Classification == asset.ClassCombinedStartup || entry.Classification == asset.ClassStandaloneSeekFree {
			entries = append(entries, notRequiredCompanion(file, opts))
		}
	}
	Sort(entries)
	return entries, nil
}

// Classify tags one source file. It reports false for excluded files.
func Classify(file source.File, opts Options) (Entry, bool) {
	name := file.Name
	lower := strings.ToLower(name)
	if strings.Contains(lower, shaderCacheMarker) {
		return Entry{}, false
	}
	var flags EntryFlags
	if inAutosaves(file.Rel) {
		if !strings.HasPrefix(lower, piePrefix) {
			return Entry{}, false
		}
		flags |= FlagAutosave | FlagPIE
	}
	lists := opts.Packages
	if containsFold(lists.EditorScript, name) {
		return Entry{}, false
	}

	class := asset.ClassNotRequired
	scriptOrder := -1
	isMap, ok := isMapFile(file, opts)
	if !ok {
		return Entry{}, false
	}
	native := nativeScriptOrder(lists, name)
	switch {
	case isMap:
		class = asset.ClassMap
		if opts.SeparateSharedMPResources && opts.MPMapPrefix != "" && strings.HasPrefix(lower, opts.MPMapPrefix) {
			class = asset.ClassMPMap
		}
	case native >= 0:
		class = asset.ClassNativeScript
		scriptOrder = native
	case indexFold(lists.Script, name) >= 0:
		class = asset.ClassScript
		scriptOrder = indexFold(lists.Script, name)
	case containsFold(lists.Startup, name):
		class = asset.ClassCombinedStartup
	case containsFold(lists.StandaloneSeekFree, name):
		class = asset.ClassStandaloneSeekFree
	case containsFold(lists.Required, name):
		class = asset.ClassRequired
	}

	entry := Entry{
		SourcePath:     file.Path,
		Rel:            file.Rel,
		Name:           name,
		Ext:            file.Ext,
		Classification: class,
		Platform:       opts.Platform,
		scriptOrder:    scriptOrder,
	}
	entry.Flags = flags | classFlags(class, opts.Platform)
	switch class {
	case asset.ClassCombinedStartup:
		entry.DestinationPath = opts.Platform.SyntheticPath(opts.OutputRoot, StartupName(opts.Language), file.Ext)
	case asset.ClassStandaloneSeekFree:
		entry.DestinationPath = opts.Platform.SyntheticPath(opts.OutputRoot, name+SeekFreeSuffix, file.Ext)
	default:
		entry.DestinationPath = opts.Platform.DestinationPath(opts.OutputRoot, opts.SourceRoot, file.Path)
	}
	return entry, true
}

func notRequiredCompanion(file source.File, opts Options) Entry {
	return Entry{
		SourcePath:      file.Path,
		DestinationPath: opts.Platform.DestinationPath(opts.OutputRoot, opts.SourceRoot, file.Path),
		Rel:             file.Rel,
		Name:            file.Name,
		Ext:             file.Ext,
		Classification:  asset.ClassNotRequired,
		Platform:        opts.Platform,
		Flags:           classFlags(asset.ClassNotRequired, opts.Platform),
		scriptOrder:     -1,
	}
}

func classFlags(class asset.Classification, id platform.ID) EntryFlags {
	var flags EntryFlags
	switch class {
	case asset.ClassMap:
		flags |= FlagMap
	case asset.ClassMPMap:
		flags |= FlagMap | FlagMPMap
	case asset.ClassNativeScript:
		flags |= FlagNativeScript | FlagScript
	case asset.ClassScript:
		flags |= FlagScript
	case asset.ClassNotRequired:
		if id.IsConsole() {
			flags |= FlagTexturesOnly
		}
	}
	if class.IsSeekFree() {
		flags |= FlagSeekFree
	}
	return flags
}

// isMapFile reports whether the file is a map. The second result is false
// when the file had to be opened and could not be read.
func isMapFile(file source.File, opts Options) (bool, bool) {
	if opts.Packages.MapExtension != "" && strings.EqualFold(file.Ext, opts.Packages.MapExtension) {
		return true, true
	}
	if strings.EqualFold(file.Name, entryMapName) {
		return true, true
	}
	summary, err := source.Peek(file.Path)
	if err != nil {
		return false, false
	}
	return summary.HasWorld, true
}

func inAutosaves(rel string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if strings.EqualFold(segment, autosaveDir) {
			return true
		}
	}
	return false
}

func nativeScriptOrder(lists config.Packages, name string) int {
	if i := indexFold(lists.EngineNativeScript, name); i >= 0 {
		return i
	}
	if i := indexFold(lists.GameNativeScript, name); i >= 0 {
		return len(lists.EngineNativeScript) + i
	}
	return -1
}

func indexFold(list []string, name string) int {
	return slices.IndexFunc(list, func(candidate string) bool {
		return strings.EqualFold(candidate, name)
	})
}

func containsFold(list []string, name string) bool {
	return indexFold(list, name) >= 0
}

// Sort orders entries by classification group. Script entries follow their
// declared order; every other group sorts by relative source path.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}

// Less is the cook list ordering.
func Less(a, b Entry) bool {
	if ga, gb := a.Classification.Group(), b.Classification.Group(); ga != gb {
		return ga < gb
	}
	if a.Classification.IsScript() && a.scriptOrder != b.scriptOrder {
		return a.scriptOrder < b.scriptOrder
	}
	return a.Rel < b.Rel
}
