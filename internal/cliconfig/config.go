// Package cliconfig loads the CLI's effective compiler Options (spec
// §6.1) by layering, in priority order, CLI flags over environment
// variables (PRQLC_*) over an optional prqlc.yaml project file — the same
// koanf provider stack (file, env, posflag) and layering order the
// teacher's internal/cli/config/loader.go uses for its own Config.
package cliconfig

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leapsql/pkg/compiler"
	"github.com/leapstack-labs/leapsql/pkg/dialect"
)

// configFileUsed records the last file actually loaded, for --verbose
// reporting (mirrors the teacher's configFileUsed package var).
var configFileUsed string

// ConfigFileUsed returns the path of the project config file loaded by the
// most recent call to Load, or "" if none was found.
func ConfigFileUsed() string {
	return configFileUsed
}

// Config is the CLI-level configuration layered on top of
// compiler.Options: everything compiler.Options needs, plus Verbose, which
// only the driver uses.
type Config struct {
	Target           string `koanf:"target"`
	Format           bool   `koanf:"format"`
	SignatureComment bool   `koanf:"signature_comment"`
	Color            bool   `koanf:"color"`
	Verbose          bool   `koanf:"verbose"`
}

func defaults() Config {
	return Config{
		Format:           true,
		SignatureComment: true,
	}
}

// findConfigFile looks for prqlc.yaml / prqlc.yml in the current
// directory, mirroring the teacher's findConfigFile priority (explicit
// path first, then the two conventional names).
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"prqlc.yaml", "prqlc.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load resolves a Config from, in increasing priority: built-in defaults,
// prqlc.yaml/prqlc.yml, PRQLC_* environment variables, then flags bound in
// fs. cfgFile overrides the conventional project-file search when set.
func Load(cfgFile string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	cfg := defaults()
	if err := k.Load(confmap.Provider(structToMap(cfg), "."), nil); err != nil {
		return nil, err
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
		configFileUsed = path
	}

	if err := k.Load(env.Provider("PRQLC_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PRQLC_"))
	}), nil); err != nil {
		return nil, err
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		}), nil); err != nil {
			return nil, err
		}
	}

	var out Config
	if err := k.Unmarshal("", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func structToMap(c Config) map[string]interface{} {
	return map[string]interface{}{
		"target":            c.Target,
		"format":            c.Format,
		"signature_comment": c.SignatureComment,
		"color":             c.Color,
		"verbose":           c.Verbose,
	}
}

// CompilerOptions translates the layered Config into compiler.Options
// (spec §6.1), resolving the dialect target string via pkg/dialect.
func (c *Config) CompilerOptions() compiler.Options {
	opts := compiler.DefaultOptions()
	opts.Format = c.Format
	opts.SignatureComment = c.SignatureComment
	opts.Color = c.Color
	if c.Color {
		opts.Display = compiler.DisplayAnsiColor
	}
	if c.Target != "" {
		if name, ok := dialect.ParseName(c.Target); ok {
			opts.Target.Dialect = &name
		}
	}
	return opts
}
