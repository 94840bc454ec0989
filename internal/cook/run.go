package cook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"kiln/internal/bulkindex"
	"kiln/internal/catalog"
	"kiln/internal/config"
	"kiln/internal/cookerr"
	"kiln/internal/fileutil"
	"kiln/internal/logging"
	"kiln/internal/objcook"
	"kiln/internal/runctx"
	"kiln/internal/toolchain"
	"kiln/internal/transform"
	"kiln/internal/writer"
)

// LockFileName guards a cooked directory against concurrent runs.
const LockFileName = ".kiln.lock"

// Run performs one cook for args.Platform. Recoverable package failures are
// logged and counted; the first fatal error stops the run.
func Run(ctx context.Context, cfg *config.Config, args Args, logger *slog.Logger) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString(), Platform: args.Platform}
	timer := newPhaseTimer(&summary.Phases)
	ctx = runctx.WithRunID(ctx, summary.RunID)
	ctx = runctx.WithPlatform(ctx, string(args.Platform))
	logger = logging.ComponentLogger(cfg, logger, "cook")
	log := logging.WithContext(ctx, logger)

	policy, err := cfg.Policy(args.Platform)
	if err != nil {
		return summary, cookerr.Wrap(cookerr.ErrConfiguration, "cook", "policy", "", err)
	}
	bindings, err := toolchain.Bind(ctx, args.Platform, cfg.ToolchainFor(args.Platform), logger)
	if err != nil {
		return summary, err
	}

	cookedDir := cfg.CookedDir(args.Platform)
	if err := os.MkdirAll(cookedDir, 0o755); err != nil {
		return summary, cookerr.Fatal("cook", "init", "create cooked directory", err)
	}
	lock := flock.New(filepath.Join(cookedDir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return summary, cookerr.Fatal("cook", "init", "acquire run lock", err)
	}
	if !locked {
		return summary, cookerr.Fatal("cook", "init",
			fmt.Sprintf("another cook is running against %s", cookedDir), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(log, "failed to release run lock", "lock_release_failed", logging.Error(err))
		}
	}()

	if args.Full {
		if err := fileutil.RemoveContents(cookedDir, LockFileName); err != nil {
			return summary, cookerr.Fatal("cook", "init", "wipe cooked directory", err)
		}
		log.Info("cooked directory wiped", logging.String("dir", cookedDir))
	}

	index, err := bulkindex.Open(ctx, cfg.IndexPath(args.Platform))
	if err != nil {
		return summary, cookerr.Fatal("cook", "init", "open side index", err)
	}
	defer index.Close()
	if err := index.Load(ctx); err != nil {
		return summary, cookerr.Fatal("cook", "init", "load side index", err)
	}
	log.Info("cook started",
		logging.Int("roots", len(args.Roots)),
		logging.Bool("full", args.Full),
		logging.Bool("payload_only", args.PayloadOnly),
		logging.Int("records", index.Len()),
	)
	timer.mark("init")

	plan, err := BuildPlan(ctx, cfg, args, policy, logger)
	if err != nil {
		return summary, err
	}
	summary.Planned = len(plan.Entries)
	timer.mark("plan")

	cooker := objcook.New(transform.New(bindings, logger), policy, logger)
	w := writer.New(plan.Loader, cooker, index, writer.Options{
		Policy:                    policy,
		ContentVersion:            cfg.Cooking.ContentVersion,
		SkipSavingMaps:            args.SkipSavingMaps,
		SeparateSharedMPResources: cfg.Cooking.SeparateSharedMPResources,
		MPShared:                  cfg.Packages.MPShared,
		PerMap:                    cfg.Packages.PerMap,
	}, logger)

	var hashTargets []string
	if args.PayloadOnly {
		err = patchAll(ctx, w, plan.All(), summary, log)
	} else {
		hashTargets, err = writeAll(ctx, w, plan.Stale(), summary, log)
	}
	summary.Cooked = cooker.Counts()
	summary.Recovered = cooker.Recovered()
	if err != nil {
		return summary, err
	}
	timer.mark("cook")

	if args.SHA && len(hashTargets) > 0 {
		n, err := updateManifest(cookedDir, hashTargets)
		if err != nil {
			return summary, cookerr.Fatal("cook", "hashes", HashesFileName, err)
		}
		summary.Hashed = n
		timer.mark("hashes")
	}

	summary.Duration = timer.total()
	summary.Log(log)
	return summary, nil
}

// writeAll runs every stale group through the writer and returns the fully
// compressed files it wrote.
func writeAll(ctx context.Context, w *writer.Writer, stale []catalog.Entry, summary *Summary, log *slog.Logger) ([]string, error) {
	summary.Stale = len(stale)
	var fullyCompressed []string
	for _, group := range writer.Group(stale) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := w.Write(ctx, group)
		if err != nil {
			if cookerr.Classify(err) == cookerr.SeverityRecoverable {
				summary.Skipped++
				logging.WarnWithContext(log, "package skipped", "package_skipped",
					logging.String(logging.FieldPackage, group[0].Name),
					logging.Error(err),
					logging.String(logging.FieldImpact, "package missing from cooked output"),
					logging.Alert("package_skipped"),
				)
				continue
			}
			return nil, err
		}
		if res.NotSaved {
			summary.NotSaved++
			continue
		}
		summary.Written++
		summary.Bytes += res.Bytes
		summary.Exports += res.Exports
		summary.Forced += res.Forced
		summary.Recorded += res.Recorded
		if res.FullyCompressed {
			fullyCompressed = append(fullyCompressed, res.Path)
		}
	}
	return fullyCompressed, nil
}

// patchAll refreshes payloads of every selected entry. Staleness does not
// apply: the files must already exist.
func patchAll(ctx context.Context, w *writer.Writer, entries []catalog.Entry, summary *Summary, log *slog.Logger) error {
	summary.Stale = len(entries)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := w.Patch(ctx, entry)
		if err != nil {
			if cookerr.Classify(err) == cookerr.SeverityRecoverable {
				summary.Skipped++
				logging.WarnWithContext(log, "package skipped", "package_skipped",
					logging.String(logging.FieldPackage, entry.Name),
					logging.Error(err),
					logging.String(logging.FieldImpact, "payloads left as previously cooked"),
				)
				continue
			}
			return err
		}
		summary.Patched += res.Patched
	}
	return nil
}
