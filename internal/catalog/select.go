package catalog

import (
	"strings"

	"kiln/internal/asset"
)

// Selection carries the run flags that filter the cook list.
type Selection struct {
	// Dependencies restricts the list to these lowercase package names.
	// Nil means every package is eligible.
	Dependencies map[string]struct{}
	// CookAllNonMap keeps non-map packages outside the dependency set and
	// non-native script.
	CookAllNonMap   bool
	SkipMaps        bool
	SkipNotRequired bool
}

// Select filters entries in order, preserving their relative order.
func Select(entries []Entry, sel Selection) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if sel.Dependencies != nil && !(sel.CookAllNonMap && !entry.Flags.Has(FlagMap)) {
			if _, ok := sel.Dependencies[strings.ToLower(entry.Name)]; !ok {
				continue
			}
		}
		if sel.SkipMaps && entry.Flags.Has(FlagMap) {
			continue
		}
		if entry.Classification == asset.ClassScript && !sel.CookAllNonMap {
			continue
		}
		if sel.SkipNotRequired && entry.Classification == asset.ClassNotRequired {
			continue
		}
		out = append(out, entry)
	}
	return out
}
