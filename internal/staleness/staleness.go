// Package staleness decides whether a cook list entry needs recooking.
package staleness

import (
	"fmt"
	"os"

	"kiln/internal/asset"
	"kiln/internal/catalog"
	"kiln/internal/pkgfile"
)

// State is the outcome of a staleness decision.
type State uint8

const (
	Fresh State = iota
	Stale
)

func (s State) String() string {
	if s == Fresh {
		return "fresh"
	}
	return "stale"
}

// Reasons reported with each decision.
const (
	ReasonUpToDate         = "destination up to date"
	ReasonMissing          = "destination missing"
	ReasonEmpty            = "destination empty"
	ReasonSourceMissing    = "source missing"
	ReasonOlder            = "destination older than source"
	ReasonUnreadableHeader = "destination header unreadable"
	ReasonContentVersion   = "destination content version outdated"
	ReasonForceMaps        = "maps always recooked"
	ReasonForceScript      = "script always recooked"
	ReasonCombinedStartup  = "combined startup always recooked"
)

// Options carries the run flags that force recooking.
type Options struct {
	ContentVersion     int
	AlwaysRecookMaps   bool
	AlwaysRecookScript bool
}

// Decision is the staleness verdict for one entry.
type Decision struct {
	State  State
	Reason string
}

// Decider evaluates entries against their destinations.
type Decider struct {
	opts Options
	stat func(string) (os.FileInfo, error)
	peek func(string) (pkgfile.Header, error)
}

// New returns a Decider reading the filesystem.
func New(opts Options) *Decider {
	return &Decider{opts: opts, stat: os.Stat, peek: pkgfile.ReadSummary}
}

// Decide returns Fresh only when no staleness condition holds.
func (d *Decider) Decide(entry catalog.Entry) Decision {
	if entry.Classification == asset.ClassCombinedStartup {
		return stale(ReasonCombinedStartup)
	}
	if d.opts.AlwaysRecookMaps && entry.Flags.Has(catalog.FlagMap) {
		return stale(ReasonForceMaps)
	}
	if d.opts.AlwaysRecookScript && entry.Flags.Has(catalog.FlagScript) {
		return stale(ReasonForceScript)
	}
	dst, err := d.stat(entry.DestinationPath)
	if err != nil {
		return stale(ReasonMissing)
	}
	if dst.Size() == 0 {
		return stale(ReasonEmpty)
	}
	src, err := d.stat(entry.SourcePath)
	if err != nil {
		return stale(ReasonSourceMissing)
	}
	if dst.ModTime().Before(src.ModTime()) {
		return stale(ReasonOlder)
	}
	header, err := d.peek(entry.DestinationPath)
	if err != nil {
		return stale(ReasonUnreadableHeader)
	}
	if int(header.ContentVersion) < d.opts.ContentVersion {
		return stale(fmt.Sprintf("%s (%d < %d)", ReasonContentVersion, header.ContentVersion, d.opts.ContentVersion))
	}
	return Decision{State: Fresh, Reason: ReasonUpToDate}
}

func stale(reason string) Decision {
	return Decision{State: Stale, Reason: reason}
}
