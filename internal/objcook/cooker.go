// Package objcook cooks individual objects exactly once per run.
package objcook

import (
	"context"
	"log/slog"
	"sort"

	"kiln/internal/asset"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/platform"
)

// Transforms is the per-kind transform surface the cooker dispatches to.
// transform.Registry implements it.
type Transforms interface {
	CookTexture(ctx context.Context, obj *asset.Object, policy platform.Policy) error
	CookMesh(ctx context.Context, obj *asset.Object, policy platform.Policy) error
	CookSkeletalMesh(ctx context.Context, obj *asset.Object, policy platform.Policy) error
	CookSound(ctx context.Context, obj *asset.Object, policy platform.Policy) error
	CookMovie(ctx context.Context, obj *asset.Object, policy platform.Policy) error
}

// Cooker owns FlagCooked: it is the only writer of the marker.
type Cooker struct {
	transforms Transforms
	policy     platform.Policy
	logger     *slog.Logger

	counts    map[asset.Kind]int
	recovered int
}

// New returns a cooker for one run.
func New(transforms Transforms, policy platform.Policy, logger *slog.Logger) *Cooker {
	return &Cooker{
		transforms: transforms,
		policy:     policy,
		logger:     logging.NewComponentLogger(logger, "objcook"),
		counts:     make(map[asset.Kind]int),
	}
}

// Cook transforms obj for the target and strips data the runtime never
// reads. Cooked objects and templates are left untouched. Recoverable
// transform failures are logged and the object is still marked cooked;
// anything else is returned.
func (c *Cooker) Cook(ctx context.Context, obj *asset.Object) error {
	if obj.Has(asset.FlagCooked) || obj.Has(asset.FlagTemplate) {
		return nil
	}

	var err error
	switch obj.Kind {
	case asset.KindTexture:
		err = c.transforms.CookTexture(ctx, obj, c.policy)
	case asset.KindMesh:
		err = c.transforms.CookMesh(ctx, obj, c.policy)
	case asset.KindSkeletalMesh:
		err = c.transforms.CookSkeletalMesh(ctx, obj, c.policy)
	case asset.KindSound:
		err = c.transforms.CookSound(ctx, obj, c.policy)
	case asset.KindMovie:
		err = c.transforms.CookMovie(ctx, obj, c.policy)
	}
	if err != nil {
		if cookerr.Classify(err) != cookerr.SeverityRecoverable {
			return err
		}
		c.recovered++
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "object transform skipped", "transform_recoverable",
			logging.String("object", obj.Name),
			logging.String("kind", obj.Kind.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "payload dropped from cooked package"),
		)
	}

	c.strip(obj)
	obj.Set(asset.FlagCooked)
	c.counts[obj.Kind]++
	return nil
}

func (c *Cooker) strip(obj *asset.Object) {
	obj.EditorData = nil
	if obj.Sound != nil && c.policy.Platform.IsConsole() {
		obj.Sound.RawWAV = nil
	}
	if obj.Mesh != nil {
		obj.Mesh.RawTriangles = nil
	}
}

// KindCount is the number of objects cooked for one kind.
type KindCount struct {
	Kind  asset.Kind
	Count int
}

// Counts returns per-kind totals in kind order.
func (c *Cooker) Counts() []KindCount {
	out := make([]KindCount, 0, len(c.counts))
	for kind, count := range c.counts {
		out = append(out, KindCount{Kind: kind, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Total returns the number of objects cooked so far.
func (c *Cooker) Total() int {
	total := 0
	for _, count := range c.counts {
		total += count
	}
	return total
}

// Recovered returns the number of recoverable transform failures.
func (c *Cooker) Recovered() int {
	return c.recovered
}
