package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"kiln/internal/config"
	"kiln/internal/platform"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("KILN_SOURCE_ROOT", "")
	t.Setenv("KILN_OUTPUT_ROOT", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.SourceRoot != filepath.Join(tempHome, "kiln", "content") {
		t.Fatalf("unexpected source root: %q", cfg.Paths.SourceRoot)
	}
	if cfg.Paths.OutputRoot != filepath.Join(tempHome, "kiln", "cooked") {
		t.Fatalf("unexpected output root: %q", cfg.Paths.OutputRoot)
	}
	if cfg.Packages.MapExtension != ".kmap" {
		t.Fatalf("unexpected map extension: %q", cfg.Packages.MapExtension)
	}
	if cfg.Cooking.ContentVersion != 1 {
		t.Fatalf("unexpected content version: %d", cfg.Cooking.ContentVersion)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputRoot, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Paths.SourceRoot); !os.IsNotExist(err) {
		t.Fatalf("expected source root to stay absent, got %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "kiln.toml")

	type payload struct {
		Paths struct {
			SourceRoot string `toml:"source_root"`
			OutputRoot string `toml:"output_root"`
		} `toml:"paths"`
		Packages struct {
			Extensions []string `toml:"extensions"`
			MapExt     string   `toml:"map_extension"`
			Startup    []string `toml:"startup"`
		} `toml:"packages"`
		Cooking struct {
			Language       string `toml:"language"`
			ContentVersion int    `toml:"content_version"`
		} `toml:"cooking"`
	}
	custom := payload{}
	custom.Paths.SourceRoot = filepath.Join(tempDir, "content")
	custom.Paths.OutputRoot = filepath.Join(tempDir, "cooked")
	custom.Packages.Extensions = []string{"PKG", " .map "}
	custom.Packages.MapExt = "map"
	custom.Packages.Startup = []string{" Startup ", "startup", "UI"}
	custom.Cooking.Language = "fr-CA"
	custom.Cooking.ContentVersion = 4

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if got := strings.Join(cfg.Packages.Extensions, ","); got != ".pkg,.map" {
		t.Fatalf("unexpected extensions: %q", got)
	}
	if cfg.Packages.MapExtension != ".map" {
		t.Fatalf("unexpected map extension: %q", cfg.Packages.MapExtension)
	}
	if got := strings.Join(cfg.Packages.Startup, ","); got != "Startup,UI" {
		t.Fatalf("expected deduplicated startup list, got %q", got)
	}
	if cfg.Cooking.ContentVersion != 4 {
		t.Fatalf("unexpected content version: %d", cfg.Cooking.ContentVersion)
	}

	policy, err := cfg.Policy(platform.Xenon)
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if policy.Language != "FRA" {
		t.Fatalf("expected FRA language suffix, got %q", policy.Language)
	}
	if policy.DefaultLanguage != "ENG" {
		t.Fatalf("expected ENG default language, got %q", policy.DefaultLanguage)
	}
	if policy.Compression != platform.CompressLZ4 {
		t.Fatalf("unexpected xenon compression: %v", policy.Compression)
	}
	if !policy.PackMipTail || !policy.PreloadFully || !policy.ByteSwap {
		t.Fatalf("unexpected xenon policy: %+v", policy)
	}
	if policy.LODBiasFor("World") != 1 {
		t.Fatalf("expected world lod bias 1, got %d", policy.LODBiasFor("World"))
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "kiln.toml")
	if err := os.WriteFile(configPath, []byte("[cooking]\nflavour = \"spicy\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestEnvOverridesRoots(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("KILN_SOURCE_ROOT", filepath.Join(tempDir, "src"))
	t.Setenv("KILN_OUTPUT_ROOT", filepath.Join(tempDir, "out"))

	cfg, _, _, err := config.Load(filepath.Join(tempDir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.SourceRoot != filepath.Join(tempDir, "src") {
		t.Fatalf("unexpected source root: %q", cfg.Paths.SourceRoot)
	}
	if cfg.IndexPath(platform.PS3) != filepath.Join(tempDir, "out", "CookedPS3", config.IndexFileName) {
		t.Fatalf("unexpected index path: %q", cfg.IndexPath(platform.PS3))
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "map extension not listed",
			mutate: func(c *config.Config) { c.Packages.MapExtension = ".lvl" },
			want:   "map_extension",
		},
		{
			name:   "bad language",
			mutate: func(c *config.Config) { c.Cooking.Language = "not a language" },
			want:   "cooking.language",
		},
		{
			name:   "content version",
			mutate: func(c *config.Config) { c.Cooking.ContentVersion = 0 },
			want:   "content_version",
		},
		{
			name:   "compression",
			mutate: func(c *config.Config) { c.Platforms.PS3.Compression = "rar" },
			want:   "platforms.ps3.compression",
		},
		{
			name:   "toolchain binding",
			mutate: func(c *config.Config) { c.Toolchain.Xenon.Texture = "magic" },
			want:   "toolchain.xenon.texture",
		},
		{
			name:   "empty exec binding",
			mutate: func(c *config.Config) { c.Toolchain.PS3.Mesh = "exec:  " },
			want:   "toolchain.ps3.mesh",
		},
		{
			name:   "log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
		{
			name:   "same roots",
			mutate: func(c *config.Config) { c.Paths.OutputRoot = c.Paths.SourceRoot },
			want:   "output_root",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.SourceRoot = "/tmp/kiln-src"
			cfg.Paths.OutputRoot = "/tmp/kiln-out"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLanguageSuffix(t *testing.T) {
	cases := map[string]string{"en": "ENG", "en-US": "ENG", "de": "DEU", "ja": "JPN"}
	for tag, want := range cases {
		got, err := config.LanguageSuffix(tag)
		if err != nil {
			t.Fatalf("LanguageSuffix(%q): %v", tag, err)
		}
		if got != want {
			t.Fatalf("LanguageSuffix(%q) = %q, want %q", tag, got, want)
		}
	}
	if _, err := config.LanguageSuffix(""); err == nil {
		t.Fatal("expected empty tag to fail")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("KILN_SOURCE_ROOT", "")
	t.Setenv("KILN_OUTPUT_ROOT", "")
	path := filepath.Join(tempDir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if len(cfg.Packages.EngineNativeScript) != 2 {
		t.Fatalf("unexpected engine native script list: %v", cfg.Packages.EngineNativeScript)
	}
}
