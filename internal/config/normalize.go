package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	envSourceRoot = "KILN_SOURCE_ROOT"
	envOutputRoot = "KILN_OUTPUT_ROOT"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePackages()
	c.normalizeCooking()
	c.normalizePlatforms()
	c.normalizeToolchains()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(envSourceRoot); ok && strings.TrimSpace(value) != "" {
		c.Paths.SourceRoot = value
	}
	if value, ok := os.LookupEnv(envOutputRoot); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputRoot = value
	}
	var err error
	if c.Paths.SourceRoot, err = expandPath(strings.TrimSpace(c.Paths.SourceRoot)); err != nil {
		return fmt.Errorf("paths.source_root: %w", err)
	}
	if c.Paths.OutputRoot, err = expandPath(strings.TrimSpace(c.Paths.OutputRoot)); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePackages() {
	p := &c.Packages
	exts := make([]string, 0, len(p.Extensions))
	seen := make(map[string]struct{}, len(p.Extensions))
	for _, ext := range p.Extensions {
		ext = normalizeExtension(ext)
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	p.Extensions = exts
	p.MapExtension = normalizeExtension(p.MapExtension)

	p.Required = normalizeNames(p.Required)
	p.Startup = normalizeNames(p.Startup)
	p.StandaloneSeekFree = normalizeNames(p.StandaloneSeekFree)
	p.EngineNativeScript = normalizeNames(p.EngineNativeScript)
	p.GameNativeScript = normalizeNames(p.GameNativeScript)
	p.Script = normalizeNames(p.Script)
	p.EditorScript = normalizeNames(p.EditorScript)
	p.MPShared = normalizeNames(p.MPShared)

	if len(p.PerMap) > 0 {
		perMap := make(map[string][]string, len(p.PerMap))
		for mapName, names := range p.PerMap {
			key := strings.ToLower(strings.TrimSpace(mapName))
			if key == "" {
				continue
			}
			perMap[key] = append(perMap[key], normalizeNames(names)...)
		}
		p.PerMap = perMap
	}
}

func (c *Config) normalizeCooking() {
	c.Cooking.Language = strings.TrimSpace(c.Cooking.Language)
	if c.Cooking.Language == "" {
		c.Cooking.Language = defaultLanguage
	}
	c.Cooking.DefaultLanguage = strings.TrimSpace(c.Cooking.DefaultLanguage)
	if c.Cooking.DefaultLanguage == "" {
		c.Cooking.DefaultLanguage = defaultLanguage
	}
	c.Cooking.MPMapPrefix = strings.ToLower(strings.TrimSpace(c.Cooking.MPMapPrefix))
}

func (c *Config) normalizePlatforms() {
	for _, p := range []*Platform{&c.Platforms.PC, &c.Platforms.Xenon, &c.Platforms.PS3} {
		p.Compression = strings.ToLower(strings.TrimSpace(p.Compression))
		if len(p.LODBias) == 0 {
			continue
		}
		bias := make(map[string]int, len(p.LODBias))
		for group, value := range p.LODBias {
			bias[strings.ToLower(strings.TrimSpace(group))] = value
		}
		p.LODBias = bias
	}
}

func (c *Config) normalizeToolchains() {
	for _, tc := range []*Toolchain{&c.Toolchain.PC, &c.Toolchain.Xenon, &c.Toolchain.PS3} {
		tc.Texture = strings.TrimSpace(tc.Texture)
		tc.Mesh = strings.TrimSpace(tc.Mesh)
		tc.Sound = strings.TrimSpace(tc.Sound)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
