package asset

import "fmt"

// Classification tags a cook list entry. The ordinal is the cook order group.
type Classification uint8

const (
	ClassNotRequired Classification = iota
	ClassRequired
	ClassNativeScript
	ClassScript
	ClassCombinedStartup
	ClassStandaloneSeekFree
	ClassMap
	ClassMPMap
)

var classificationNames = [...]string{
	ClassNotRequired:        "not_required",
	ClassRequired:           "required",
	ClassNativeScript:       "native_script",
	ClassScript:             "script",
	ClassCombinedStartup:    "combined_startup",
	ClassStandaloneSeekFree: "standalone_seekfree",
	ClassMap:                "map",
	ClassMPMap:              "mp_map",
}

func (c Classification) String() string {
	if int(c) < len(classificationNames) {
		return classificationNames[c]
	}
	return fmt.Sprintf("classification(%d)", uint8(c))
}

// Group returns the ordering group of the classification.
func (c Classification) Group() int {
	return int(c)
}

// IsMap reports whether the classification is a map of either flavor.
func (c Classification) IsMap() bool {
	return c == ClassMap || c == ClassMPMap
}

// IsScript reports whether the classification is native or non-native script.
func (c Classification) IsScript() bool {
	return c == ClassNativeScript || c == ClassScript
}

// IsSeekFree reports whether packages of this class are written seek-free:
// every object they need is exported into the package itself.
func (c Classification) IsSeekFree() bool {
	switch c {
	case ClassNativeScript, ClassCombinedStartup, ClassStandaloneSeekFree, ClassMap, ClassMPMap:
		return true
	default:
		return false
	}
}
