package cook

import (
	"fmt"
	"strings"

	"kiln/internal/cookerr"
	"kiln/internal/platform"
)

// Args are the parsed cook tokens.
type Args struct {
	Platform   platform.ID
	ConfigPath string
	Roots      []string

	Full               bool
	SkipMaps           bool
	AlwaysRecookMaps   bool
	AlwaysRecookScript bool
	CookAllNonMap      bool
	PayloadOnly        bool
	SkipNotRequired    bool
	SkipSavingMaps     bool
	SHA                bool
}

var switches = map[string]func(*Args){
	"full":                  func(a *Args) { a.Full = true },
	"skipmaps":              func(a *Args) { a.SkipMaps = true },
	"alwaysrecookmaps":      func(a *Args) { a.AlwaysRecookMaps = true },
	"alwaysrecookscript":    func(a *Args) { a.AlwaysRecookScript = true },
	"cookallnonmappackages": func(a *Args) { a.CookAllNonMap = true },
	"payloadonly":           func(a *Args) { a.PayloadOnly = true },
	"skipnotrequired":       func(a *Args) { a.SkipNotRequired = true },
	"skipsavingmaps":        func(a *Args) { a.SkipSavingMaps = true },
	"sha":                   func(a *Args) { a.SHA = true },
}

// ParseArgs reads cook tokens: platform=<id> or --platform <id>,
// -config=<path> or --config <path>, switches such as -full, and root
// package names. Switch names are case-insensitive.
func ParseArgs(tokens []string) (Args, error) {
	var (
		args     Args
		platName string
	)
	for i := 0; i < len(tokens); i++ {
		token := strings.TrimSpace(tokens[i])
		if token == "" {
			continue
		}
		if !strings.HasPrefix(token, "-") {
			if key, value, ok := strings.Cut(token, "="); ok && strings.EqualFold(key, "platform") {
				platName = value
				continue
			}
			args.Roots = append(args.Roots, token)
			continue
		}

		name := strings.ToLower(strings.TrimLeft(token, "-"))
		name, value, hasValue := strings.Cut(name, "=")
		if hasValue {
			// Keep the value's original case for paths.
			value = token[strings.Index(token, "=")+1:]
		}
		switch name {
		case "platform", "config":
			if !hasValue {
				if i+1 >= len(tokens) {
					return Args{}, usageError("%s needs a value", token)
				}
				i++
				value = tokens[i]
			}
			if name == "platform" {
				platName = value
			} else {
				args.ConfigPath = value
			}
		default:
			set, ok := switches[name]
			if !ok || hasValue {
				return Args{}, usageError("unknown switch %q", token)
			}
			set(&args)
		}
	}

	if strings.TrimSpace(platName) == "" {
		return Args{}, usageError("no target platform: pass platform=<%s>", platformList())
	}
	id, err := platform.Parse(platName)
	if err != nil {
		return Args{}, cookerr.Wrap(cookerr.ErrConfiguration, "cook", "parse args", "", err)
	}
	args.Platform = id
	if args.PayloadOnly && args.Full {
		return Args{}, usageError("-payloadonly refreshes an existing cook and cannot be combined with -full")
	}
	return args, nil
}

func usageError(format string, a ...any) error {
	return cookerr.Wrap(cookerr.ErrConfiguration, "cook", "parse args", fmt.Sprintf(format, a...), nil)
}

func platformList() string {
	names := make([]string, 0, len(platform.All))
	for _, id := range platform.All {
		names = append(names, string(id))
	}
	return strings.Join(names, "|")
}
