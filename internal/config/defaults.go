package config

const (
	defaultConfigPath      = "~/.config/kiln/config.toml"
	defaultSourceRoot      = "~/kiln/content"
	defaultOutputRoot      = "~/kiln/cooked"
	defaultLogDir          = "~/.local/share/kiln/logs"
	defaultPackageExt      = ".kpkg"
	defaultMapExt          = ".kmap"
	defaultLanguage        = "en"
	defaultContentVersion  = 1
	defaultMPMapPrefix     = "mp_"
	defaultMinFreeSpaceMiB = 512
	defaultMinResidentMips = 7
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	builtinBinding         = "builtin"

	// IndexFileName is the bulk payload side index stored in each cooked directory.
	IndexFileName = "CookedBulkPayloads.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceRoot: defaultSourceRoot,
			OutputRoot: defaultOutputRoot,
			LogDir:     defaultLogDir,
		},
		Packages: Packages{
			Extensions:   []string{defaultPackageExt, defaultMapExt},
			MapExtension: defaultMapExt,
		},
		Cooking: Cooking{
			Language:        defaultLanguage,
			DefaultLanguage: defaultLanguage,
			ContentVersion:  defaultContentVersion,
			MPMapPrefix:     defaultMPMapPrefix,
			MinFreeSpaceMiB: defaultMinFreeSpaceMiB,
		},
		Platforms: Platforms{
			PC: Platform{
				Compression:     "zlib",
				MinResidentMips: defaultMinResidentMips,
			},
			Xenon: Platform{
				Compression:     "lz4",
				PreloadFully:    true,
				PackMipTail:     true,
				MinResidentMips: defaultMinResidentMips,
				LODBias:         map[string]int{"world": 1},
			},
			PS3: Platform{
				Compression:     "zstd",
				MinResidentMips: defaultMinResidentMips,
				LODBias:         map[string]int{"world": 1},
			},
		},
		Toolchain: Toolchains{
			PC:    Toolchain{Sound: builtinBinding},
			Xenon: Toolchain{Texture: builtinBinding, Sound: builtinBinding},
			PS3:   Toolchain{Texture: builtinBinding, Mesh: builtinBinding, Sound: builtinBinding},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
