package cli

import (
	"fmt"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// Config holds CLI defaults read from the environment. Explicit flags
// override them.
type Config struct {
	Database string  `env:"EXTCALL_DB"`
	Format   string  `env:"EXTCALL_FORMAT"`
	Seed     *uint64 `env:"EXTCALL_SEED"`
	Cases    *int    `env:"EXTCALL_CASES"`
	Parallel int     `env:"EXTCALL_PARALLEL"`
}

// LoadConfig reads Config from environ, a map of variable names to
// values (env.ToMap(os.Environ()) for the process environment).
func LoadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// flagDefaults maps flag names to the values cfg sets for them.
func (cfg Config) flagDefaults() map[string]string {
	defaults := map[string]string{}
	if cfg.Database != "" {
		defaults["db"] = cfg.Database
	}
	if cfg.Seed != nil {
		defaults["seed"] = strconv.FormatUint(*cfg.Seed, 10)
	}
	if cfg.Cases != nil {
		defaults["cases"] = strconv.Itoa(*cfg.Cases)
	}
	if cfg.Parallel > 0 {
		defaults["parallel"] = strconv.Itoa(cfg.Parallel)
	}
	return defaults
}

// applyConfig makes cfg the defaults of the matching flags of root and
// its subcommands. A flag set this way counts as given, so --db from
// EXTCALL_DB satisfies commands that require it.
func applyConfig(root *cobra.Command, cfg Config) error {
	if cfg.Format != "" {
		if err := root.PersistentFlags().Set("format", cfg.Format); err != nil {
			return fmt.Errorf("EXTCALL_FORMAT: %w", err)
		}
	}

	defaults := cfg.flagDefaults()
	for _, sub := range root.Commands() {
		for name, value := range defaults {
			f := sub.Flags().Lookup(name)
			if f == nil {
				continue
			}
			if err := sub.Flags().Set(name, value); err != nil {
				return fmt.Errorf("%s default %q: %w", name, value, err)
			}
			f.DefValue = value
		}
	}
	return nil
}
