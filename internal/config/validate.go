package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"kiln/internal/platform"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePackages(); err != nil {
		return err
	}
	if err := c.validateCooking(); err != nil {
		return err
	}
	if err := c.validatePlatforms(); err != nil {
		return err
	}
	if err := c.validateToolchains(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceRoot) == "" {
		return errors.New("paths.source_root must be set")
	}
	if strings.TrimSpace(c.Paths.OutputRoot) == "" {
		return errors.New("paths.output_root must be set")
	}
	if c.Paths.SourceRoot == c.Paths.OutputRoot {
		return errors.New("paths.output_root must differ from paths.source_root")
	}
	return nil
}

func (c *Config) validatePackages() error {
	if len(c.Packages.Extensions) == 0 {
		return errors.New("packages.extensions must list at least one extension")
	}
	if c.Packages.MapExtension != "" && !slices.Contains(c.Packages.Extensions, c.Packages.MapExtension) {
		return fmt.Errorf("packages.map_extension %q must be one of packages.extensions", c.Packages.MapExtension)
	}
	for _, ext := range c.Packages.Extensions {
		if ext == platform.ConsoleExtension {
			return fmt.Errorf("packages.extensions must not include the cooked extension %q", ext)
		}
	}
	return nil
}

func (c *Config) validateCooking() error {
	if _, err := LanguageSuffix(c.Cooking.Language); err != nil {
		return fmt.Errorf("cooking.language: %w", err)
	}
	if _, err := LanguageSuffix(c.Cooking.DefaultLanguage); err != nil {
		return fmt.Errorf("cooking.default_language: %w", err)
	}
	if c.Cooking.ContentVersion < 1 {
		return errors.New("cooking.content_version must be at least 1")
	}
	if c.Cooking.SeparateSharedMPResources && c.Cooking.MPMapPrefix == "" {
		return errors.New("cooking.mp_map_prefix must be set when separate_shared_mp_resources is true")
	}
	if c.Cooking.MinFreeSpaceMiB < 0 {
		return errors.New("cooking.min_free_space_mib must be non-negative")
	}
	return nil
}

func (c *Config) validatePlatforms() error {
	for _, id := range platform.All {
		settings := c.PlatformSettings(id)
		if _, err := platform.ParseCompression(settings.Compression); err != nil {
			return fmt.Errorf("platforms.%s.compression: %w", id, err)
		}
		if settings.MinResidentMips < 0 {
			return fmt.Errorf("platforms.%s.min_resident_mips must be non-negative", id)
		}
		for group, bias := range settings.LODBias {
			if bias < 0 {
				return fmt.Errorf("platforms.%s.lod_bias.%s must be non-negative", id, group)
			}
		}
	}
	return nil
}

func (c *Config) validateToolchains() error {
	for _, id := range platform.All {
		tc := c.ToolchainFor(id)
		for name, value := range map[string]string{"texture": tc.Texture, "mesh": tc.Mesh, "sound": tc.Sound} {
			if err := validateBinding(value); err != nil {
				return fmt.Errorf("toolchain.%s.%s: %w", id, name, err)
			}
		}
	}
	return nil
}

func validateBinding(value string) error {
	switch {
	case value == "", value == builtinBinding:
		return nil
	case strings.HasPrefix(value, "exec:"):
		if strings.TrimSpace(strings.TrimPrefix(value, "exec:")) == "" {
			return errors.New("exec binding requires a command")
		}
		return nil
	default:
		return fmt.Errorf("unsupported binding %q (use \"builtin\" or \"exec:<command>\")", value)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
