package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"kiln/internal/config"
	"kiln/internal/cookerr"
	"kiln/internal/platform"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configPath, c.configErr = c.load(flagValue(c.configFlag))
	})
	return c.config, c.configErr
}

// configFor loads the config named by a token-parsed -config, falling back
// to the --config flag.
func (c *commandContext) configFor(tokenPath string) (*config.Config, error) {
	if path := strings.TrimSpace(tokenPath); path != "" {
		cfg, _, err := c.load(path)
		return cfg, err
	}
	return c.ensureConfig()
}

func (c *commandContext) load(path string) (*config.Config, string, error) {
	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		return nil, "", cookerr.Wrap(cookerr.ErrConfiguration, "config", "load", resolved, err)
	}
	if level := flagValue(c.logLevelFlag); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// takeRootFlags removes the root's -c and --log-level from the raw tokens of
// a flag-parsing-disabled command and applies them. --config stays in the
// tokens; cook.ParseArgs owns it.
func (c *commandContext) takeRootFlags(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		name, value, inline := strings.Cut(tokens[i], "=")
		var target *string
		switch name {
		case "-c":
			target = c.configFlag
		case "--log-level":
			target = c.logLevelFlag
		default:
			out = append(out, tokens[i])
			continue
		}
		if !inline && i+1 < len(tokens) {
			i++
			value = tokens[i]
		}
		if target != nil {
			*target = value
		}
	}
	return out
}

// wantsHelp reports whether raw tokens of a flag-parsing-disabled command
// ask for help.
func wantsHelp(tokens []string) bool {
	for _, token := range tokens {
		switch token {
		case "-h", "--help", "help":
			return true
		}
	}
	return false
}

func platformFlag(cmd *cobra.Command, value *string) {
	cmd.Flags().StringVarP(value, "platform", "p", string(platform.PC), "Target platform (pc, xenon, ps3)")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
