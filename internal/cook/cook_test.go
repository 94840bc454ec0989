package cook_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"kiln/internal/asset"
	"kiln/internal/bulkindex"
	"kiln/internal/config"
	"kiln/internal/cook"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/pkgfile"
	"kiln/internal/platform"
	"kiln/internal/source"
	"kiln/internal/staleness"
	"kiln/internal/testsupport"
)

func TestParseArgs(t *testing.T) {
	args, err := cook.ParseArgs([]string{
		"platform=xbox360", "-FULL", "-sha", "--config", "/etc/Kiln.toml",
		"-skipmaps", "-cookallnonmappackages", "Entry", "Level01",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if args.Platform != platform.Xenon {
		t.Fatalf("platform = %s", args.Platform)
	}
	if !args.Full || !args.SHA || !args.SkipMaps || !args.CookAllNonMap || args.PayloadOnly {
		t.Fatalf("switches = %+v", args)
	}
	if args.ConfigPath != "/etc/Kiln.toml" {
		t.Fatalf("config path = %q", args.ConfigPath)
	}
	if len(args.Roots) != 2 || args.Roots[0] != "Entry" || args.Roots[1] != "Level01" {
		t.Fatalf("roots = %v", args.Roots)
	}

	args, err = cook.ParseArgs([]string{"--platform=PS3", "-config=Cfg/Kiln.toml", "-payloadonly", "-skipnotrequired", "-skipsavingmaps", "-alwaysrecookmaps", "-alwaysrecookscript"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if args.Platform != platform.PS3 || args.ConfigPath != "Cfg/Kiln.toml" {
		t.Fatalf("args = %+v", args)
	}
	if !args.PayloadOnly || !args.SkipNotRequired || !args.SkipSavingMaps || !args.AlwaysRecookMaps || !args.AlwaysRecookScript {
		t.Fatalf("switches = %+v", args)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
	}{
		{"missing platform", []string{"-full", "Level"}},
		{"unknown platform", []string{"platform=dreamcast"}},
		{"unknown switch", []string{"platform=pc", "-fast"}},
		{"switch with value", []string{"platform=pc", "-full=yes"}},
		{"dangling config", []string{"platform=pc", "--config"}},
		{"payload only with full", []string{"platform=pc", "-full", "-payloadonly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cook.ParseArgs(tt.tokens)
			if !errors.Is(err, cookerr.ErrConfiguration) || !cookerr.IsFatal(err) {
				t.Fatalf("expected fatal configuration error, got %v", err)
			}
		})
	}
}

func destination(cfg *config.Config, id platform.ID, rel string) string {
	return id.DestinationPath(cfg.Paths.OutputRoot, cfg.Paths.SourceRoot, filepath.Join(cfg.Paths.SourceRoot, rel))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mustRun(t *testing.T, cfg *config.Config, tokens ...string) *cook.Summary {
	t.Helper()
	args, err := cook.ParseArgs(tokens)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	summary, err := cook.Run(context.Background(), cfg, args, logging.NewNop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func scenarioConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPackages(func(p *config.Packages) {
		p.EngineNativeScript = []string{"Core"}
	}))
	testsupport.WriteSource(t, cfg, "Core.kpkg", testsupport.Object("Base"))
	testsupport.WriteSource(t, cfg, "Props/A.kpkg", testsupport.Object("Rock"))
	testsupport.WriteSource(t, cfg, "Props/B.kpkg", testsupport.Object("Tree"))
	testsupport.WriteSource(t, cfg, "Props/C.kpkg", testsupport.Object("Bush", "B.Tree"))
	world := testsupport.World("TheWorld")
	world.Refs = []string{"A.Rock"}
	testsupport.WriteSource(t, cfg, "Maps/Level.kmap", world)
	return cfg
}

func TestRootedRunCooksDependenciesOnly(t *testing.T) {
	cfg := scenarioConfig(t)

	args, err := cook.ParseArgs([]string{"platform=pc", "Level"})
	if err != nil {
		t.Fatal(err)
	}
	policy, err := cfg.Policy(platform.PC)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := cook.BuildPlan(context.Background(), cfg, args, policy, logging.NewNop())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	var order []string
	for _, entry := range plan.Stale() {
		order = append(order, entry.Name)
	}
	// Not-required packages lead the list, then script, then maps.
	if strings.Join(order, ",") != "A,Core,Level" {
		t.Fatalf("cook order = %v, want [A Core Level]", order)
	}

	summary := mustRun(t, cfg, "platform=pc", "Level")

	if summary.Written != 3 || summary.Skipped != 0 {
		t.Fatalf("written %d skipped %d, want 3 and 0", summary.Written, summary.Skipped)
	}
	for _, rel := range []string{"Core.kpkg", "Props/A.kpkg", "Maps/Level.kmap"} {
		if !exists(destination(cfg, platform.PC, rel)) {
			t.Fatalf("%s was not cooked", rel)
		}
	}
	for _, rel := range []string{"Props/B.kpkg", "Props/C.kpkg"} {
		if exists(destination(cfg, platform.PC, rel)) {
			t.Fatalf("%s is not a dependency of the root and should not be cooked", rel)
		}
	}
	if summary.RunID == "" || len(summary.Phases) == 0 {
		t.Fatalf("summary missing run metadata: %+v", summary)
	}

	again := mustRun(t, cfg, "platform=pc", "Level")
	if again.Written != 0 || again.Stale != 0 {
		t.Fatalf("second run wrote %d of %d stale entries, want nothing", again.Written, again.Stale)
	}
	forced := mustRun(t, cfg, "platform=pc", "-alwaysrecookmaps", "Level")
	if forced.Written != 1 {
		t.Fatalf("-alwaysrecookmaps wrote %d packages, want the map only", forced.Written)
	}
}

func TestPlanMarksEntriesOutsideDependencies(t *testing.T) {
	cfg := scenarioConfig(t)
	mustRun(t, cfg, "platform=pc", "-cookallnonmappackages")

	args, err := cook.ParseArgs([]string{"platform=pc", "-cookallnonmappackages", "Level"})
	if err != nil {
		t.Fatal(err)
	}
	policy, err := cfg.Policy(platform.PC)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := cook.BuildPlan(context.Background(), cfg, args, policy, logging.NewNop())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	decisions := make(map[string]staleness.Decision)
	for _, planned := range plan.Entries {
		decisions[planned.Entry.Name] = planned.Decision
	}
	if d := decisions["A"]; d.State != staleness.Fresh {
		t.Fatalf("A should be fresh, got %s (%s)", d.State, d.Reason)
	}
	if d := decisions["B"]; d.State != staleness.Stale || d.Reason != cook.ReasonOutsideDependencies {
		t.Fatalf("B decision = %s (%s)", d.State, d.Reason)
	}
	if !plan.Dependencies.Has("core") {
		t.Fatal("rooted native script should be part of the dependency set")
	}
}

func TestMissingRootIsFatal(t *testing.T) {
	cfg := scenarioConfig(t)
	args, err := cook.ParseArgs([]string{"platform=pc", "Nowhere"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = cook.Run(context.Background(), cfg, args, logging.NewNop())
	if !cookerr.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

// retint refills every mip of a texture record with byte(base+level).
func retint(rec source.ObjectRecord, base int) source.ObjectRecord {
	for level, mip := range rec.Texture.Mips {
		for i := range mip {
			mip[i] = byte(base + level)
		}
	}
	return rec
}

func findExport(t *testing.T, pkg *pkgfile.Package, path string) pkgfile.Export {
	t.Helper()
	for _, exp := range pkg.Exports {
		if exp.Path == path {
			return exp
		}
	}
	t.Fatalf("export %s not found", path)
	return pkgfile.Export{}
}

func uncompressedConfig(t *testing.T) *config.Config {
	return testsupport.NewConfig(t, testsupport.WithPlatforms(func(p *config.Platforms) {
		p.PC.Compression = "none"
	}))
}

func TestPayloadOnlyRewritesPayloadsInPlace(t *testing.T) {
	cfg := uncompressedConfig(t)
	testsupport.WriteSource(t, cfg, "Textures.kpkg", testsupport.Texture("Stone", 32))
	full := mustRun(t, cfg, "platform=pc")
	if full.Recorded == 0 {
		t.Fatal("full run recorded no inline payloads")
	}
	path := destination(cfg, platform.PC, "Textures.kpkg")
	before, err := pkgfile.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	testsupport.WriteSource(t, cfg, "Textures.kpkg", retint(testsupport.Texture("Stone", 32), 100))
	summary := mustRun(t, cfg, "platform=pc", "-payloadonly")
	if summary.Patched != full.Recorded || summary.Written != 0 {
		t.Fatalf("patched %d written %d, want %d and 0", summary.Patched, summary.Written, full.Recorded)
	}

	after, err := pkgfile.Read(path)
	if err != nil {
		t.Fatalf("Read after patch: %v", err)
	}
	ix := testsupport.MustOpenIndex(t, cfg, platform.PC)
	if err := ix.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	old := findExport(t, before, "Textures.Stone")
	stone := findExport(t, after, "Textures.Stone")
	if len(stone.Payloads) != len(old.Payloads) {
		t.Fatalf("payload count changed from %d to %d", len(old.Payloads), len(stone.Payloads))
	}
	checked := 0
	for i, p := range stone.Payloads {
		if p.Storage != asset.StorageInline {
			continue
		}
		if p.Offset != old.Payloads[i].Offset || p.SizeOnDisk != old.Payloads[i].SizeOnDisk {
			t.Fatalf("%s moved from %d+%d to %d+%d", p.Name,
				old.Payloads[i].Offset, old.Payloads[i].SizeOnDisk, p.Offset, p.SizeOnDisk)
		}
		rec, ok := ix.Retrieve(bulkindex.Key{Object: "Textures.Stone", Payload: p.Name})
		if !ok || rec.Offset != p.Offset || rec.SizeOnDisk != p.SizeOnDisk {
			t.Fatalf("%s at %d+%d, record %+v (found %v)", p.Name, p.Offset, p.SizeOnDisk, rec, ok)
		}
		var level int
		if _, err := fmt.Sscanf(p.Name, "MipLevel_%d", &level); err != nil {
			t.Fatalf("payload name %q: %v", p.Name, err)
		}
		want := bytes.Repeat([]byte{byte(100 + level)}, len(old.Payloads[i].Data))
		if !bytes.Equal(p.Data, want) {
			t.Fatalf("%s still holds the old bytes", p.Name)
		}
		checked++
	}
	if checked != full.Recorded {
		t.Fatalf("checked %d inline payloads, want %d", checked, full.Recorded)
	}
}

func TestPayloadOnlyRejectsResizedTexture(t *testing.T) {
	cfg := uncompressedConfig(t)
	testsupport.WriteSource(t, cfg, "Textures.kpkg", testsupport.Texture("Stone", 32))
	mustRun(t, cfg, "platform=pc")
	path := destination(cfg, platform.PC, "Textures.kpkg")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	testsupport.WriteSource(t, cfg, "Textures.kpkg", testsupport.Texture("Stone", 16))
	args, err := cook.ParseArgs([]string{"platform=pc", "-payloadonly"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = cook.Run(context.Background(), cfg, args, logging.NewNop())
	if !cookerr.IsFatal(err) || !strings.Contains(err.Error(), "recook with -full") {
		t.Fatalf("expected fatal size mismatch, got %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("a rejected refresh should leave the package untouched")
	}
}

func TestPayloadOnlyRejectsStaleElementCount(t *testing.T) {
	cfg := uncompressedConfig(t)
	testsupport.WriteSource(t, cfg, "Textures.kpkg", testsupport.Texture("Stone", 32))
	mustRun(t, cfg, "platform=pc")

	db, err := sql.Open("sqlite", cfg.IndexPath(platform.PC))
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec("UPDATE bulk_payloads SET element_count = element_count + 1 WHERE payload_name = 'MipLevel_0'")
	_ = db.Close()
	if err != nil {
		t.Fatal(err)
	}

	args, err := cook.ParseArgs([]string{"platform=pc", "-payloadonly"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = cook.Run(context.Background(), cfg, args, logging.NewNop())
	if !cookerr.IsFatal(err) || !strings.Contains(err.Error(), "MipLevel_0") {
		t.Fatalf("expected fatal element count mismatch, got %v", err)
	}
}

func TestFullWipesCookedDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSource(t, cfg, "Props.kpkg", testsupport.Object("Crate"))
	stray := filepath.Join(cfg.CookedDir(platform.PC), "Old.kpkg")
	if err := os.MkdirAll(filepath.Dir(stray), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stray, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	summary := mustRun(t, cfg, "platform=pc", "-full")
	if exists(stray) {
		t.Fatal("-full should remove previous output")
	}
	if summary.Written != 1 || !exists(destination(cfg, platform.PC, "Props.kpkg")) {
		t.Fatalf("written %d", summary.Written)
	}
}

func TestConcurrentRunIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSource(t, cfg, "Props.kpkg", testsupport.Object("Crate"))
	dir := cfg.CookedDir(platform.PC)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(dir, cook.LockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: %v %v", locked, err)
	}
	defer held.Unlock()

	args, _ := cook.ParseArgs([]string{"platform=pc"})
	_, err = cook.Run(context.Background(), cfg, args, logging.NewNop())
	if !cookerr.IsFatal(err) || !strings.Contains(err.Error(), "another cook") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestSHAManifestCoversFullyCompressedPackages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPackages(func(p *config.Packages) {
		p.EngineNativeScript = []string{"Core"}
	}))
	testsupport.WriteSource(t, cfg, "Core.kpkg", testsupport.Object("Base"))
	testsupport.WriteSource(t, cfg, "Props.kpkg", testsupport.Object("Crate"))

	summary := mustRun(t, cfg, "platform=xenon", "-sha")
	if summary.Hashed != 1 {
		t.Fatalf("hashed %d packages, want the native script only", summary.Hashed)
	}
	dir := cfg.CookedDir(platform.Xenon)
	manifest, err := cook.ReadManifest(filepath.Join(dir, cook.HashesFileName))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	want, err := cook.HashFile(filepath.Join(dir, "Core"+platform.ConsoleExtension))
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest) != 1 || manifest["Core"+platform.ConsoleExtension] != want {
		t.Fatalf("manifest = %v", manifest)
	}
}

func TestPreloadFullyPolicyDrivesHashing(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithPackages(func(p *config.Packages) { p.EngineNativeScript = []string{"Core"} }),
		testsupport.WithPlatforms(func(p *config.Platforms) { p.PC.PreloadFully = true }),
	)
	testsupport.WriteSource(t, cfg, "Core.kpkg", testsupport.Object("Base"))

	summary := mustRun(t, cfg, "platform=pc", "-sha")
	if summary.Hashed != 1 {
		t.Fatalf("hashed %d packages, want the preloaded native script", summary.Hashed)
	}
}

func TestUnboundRequiredToolchainStopsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithToolchains(func(tc *config.Toolchains) {
		tc.Xenon.Texture = ""
	}))
	testsupport.WriteSource(t, cfg, "Props.kpkg", testsupport.Object("Crate"))

	args, err := cook.ParseArgs([]string{"platform=xenon"})
	if err != nil {
		t.Fatal(err)
	}
	summary, err := cook.Run(context.Background(), cfg, args, logging.NewNop())
	if !errors.Is(err, cookerr.ErrToolchain) {
		t.Fatalf("expected toolchain error, got %v", err)
	}
	if summary.Written != 0 || exists(destination(cfg, platform.Xenon, "Props.kpkg")) {
		t.Fatal("nothing should be written when binding fails")
	}
}
