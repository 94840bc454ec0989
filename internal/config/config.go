package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"kiln/internal/platform"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the source tree, output root, and log locations.
type Paths struct {
	SourceRoot string `toml:"source_root"`
	OutputRoot string `toml:"output_root"`
	LogDir     string `toml:"log_dir"`
}

// Packages holds the declared package name lists that drive classification.
// Names are package base names without extension and compare case-insensitively.
type Packages struct {
	Extensions         []string            `toml:"extensions"`
	MapExtension       string              `toml:"map_extension"`
	Required           []string            `toml:"required"`
	Startup            []string            `toml:"startup"`
	StandaloneSeekFree []string            `toml:"standalone_seekfree"`
	EngineNativeScript []string            `toml:"engine_native_script"`
	GameNativeScript   []string            `toml:"game_native_script"`
	Script             []string            `toml:"script"`
	EditorScript       []string            `toml:"editor_script"`
	MPShared           []string            `toml:"mp_shared"`
	PerMap             map[string][]string `toml:"per_map"`
}

// Cooking contains run-wide cook settings.
type Cooking struct {
	Language                  string `toml:"language"`
	DefaultLanguage           string `toml:"default_language"`
	ContentVersion            int    `toml:"content_version"`
	SeparateSharedMPResources bool   `toml:"separate_shared_mp_resources"`
	MPMapPrefix               string `toml:"mp_map_prefix"`
	MinFreeSpaceMiB           int    `toml:"min_free_space_mib"`
}

// Platform holds the per-target policy values.
type Platform struct {
	Compression     string         `toml:"compression"`
	PreloadFully    bool           `toml:"preload_fully"`
	PackMipTail     bool           `toml:"pack_mip_tail"`
	MinResidentMips int            `toml:"min_resident_mips"`
	LODBias         map[string]int `toml:"lod_bias"`
}

// Platforms groups the per-target sections.
type Platforms struct {
	PC    Platform `toml:"pc"`
	Xenon Platform `toml:"xenon"`
	PS3   Platform `toml:"ps3"`
}

// Toolchain binds the external platform toolchain contracts for one target.
// Each value is empty (unbound), "builtin", or "exec:<command line>".
type Toolchain struct {
	Texture string `toml:"texture"`
	Mesh    string `toml:"mesh"`
	Sound   string `toml:"sound"`
}

// Toolchains groups the per-target toolchain bindings.
type Toolchains struct {
	PC    Toolchain `toml:"pc"`
	Xenon Toolchain `toml:"xenon"`
	PS3   Toolchain `toml:"ps3"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	ComponentLevels map[string]string `toml:"component_levels"`
}

// Config encapsulates all configuration values for kiln.
//
// Configuration sections:
//   - Paths: source tree, output root, log directory
//   - Packages: declared package lists used by classification
//   - Cooking: language, content version, multiplayer settings
//   - Platforms: per-target policy (compression, mip tail, LOD bias)
//   - Toolchain: per-target toolchain bindings
//   - Logging: log format and levels
type Config struct {
	Paths     Paths      `toml:"paths"`
	Packages  Packages   `toml:"packages"`
	Cooking   Cooking    `toml:"cooking"`
	Platforms Platforms  `toml:"platforms"`
	Toolchain Toolchains `toml:"toolchain"`
	Logging   Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kiln.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output root and log directory. The source
// root is never created; preflight reports it when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputRoot, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PlatformSettings returns the configured section for a target.
func (c *Config) PlatformSettings(id platform.ID) Platform {
	switch id {
	case platform.Xenon:
		return c.Platforms.Xenon
	case platform.PS3:
		return c.Platforms.PS3
	default:
		return c.Platforms.PC
	}
}

// ToolchainFor returns the configured toolchain bindings for a target.
func (c *Config) ToolchainFor(id platform.ID) Toolchain {
	switch id {
	case platform.Xenon:
		return c.Toolchain.Xenon
	case platform.PS3:
		return c.Toolchain.PS3
	default:
		return c.Toolchain.PC
	}
}

// Policy builds the immutable per-run policy for a target.
func (c *Config) Policy(id platform.ID) (platform.Policy, error) {
	if !id.Valid() {
		return platform.Policy{}, fmt.Errorf("unknown platform %q", id)
	}
	settings := c.PlatformSettings(id)
	method, err := platform.ParseCompression(settings.Compression)
	if err != nil {
		return platform.Policy{}, fmt.Errorf("platforms.%s.compression: %w", id, err)
	}
	lang, err := LanguageSuffix(c.Cooking.Language)
	if err != nil {
		return platform.Policy{}, fmt.Errorf("cooking.language: %w", err)
	}
	defaultLang, err := LanguageSuffix(c.Cooking.DefaultLanguage)
	if err != nil {
		return platform.Policy{}, fmt.Errorf("cooking.default_language: %w", err)
	}
	bias := make(map[string]int, len(settings.LODBias))
	for group, value := range settings.LODBias {
		bias[strings.ToLower(group)] = value
	}
	return platform.Policy{
		Platform:        id,
		LODBias:         bias,
		Compression:     method,
		ByteSwap:        id.NeedsByteSwap(),
		PreloadFully:    settings.PreloadFully,
		PackMipTail:     settings.PackMipTail,
		MinResidentMips: settings.MinResidentMips,
		Language:        lang,
		DefaultLanguage: defaultLang,
	}, nil
}

// CookedDir returns the per-target output directory.
func (c *Config) CookedDir(id platform.ID) string {
	return id.CookedDir(c.Paths.OutputRoot)
}

// IndexPath returns the bulk payload side index location for a target.
func (c *Config) IndexPath(id platform.ID) string {
	return filepath.Join(c.CookedDir(id), IndexFileName)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
