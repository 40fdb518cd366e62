package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the extcall CLI, with
// flag defaults taken from the process environment.
func NewRootCommand() *cobra.Command {
	return NewRootCommandFromEnv(env.ToMap(os.Environ()))
}

// NewRootCommandFromEnv creates the root command with flag defaults taken
// from environ. A malformed variable fails every command.
func NewRootCommandFromEnv(environ map[string]string) *cobra.Command {
	opts := &RootOptions{}
	cfg, cfgErr := LoadConfig(environ)

	cmd := &cobra.Command{
		Use:   "extcall",
		Short: "Check and run external call semantics",
		Long: `extcall models calls to external functions (volatile accesses, malloc,
free, memcpy, annotations, system calls and builtins) as steps that turn
arguments and memory into a result, a new memory and a trace of observable
events, and checks those steps against the contract optimizations rely on.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	if cfgErr == nil {
		cfgErr = applyConfig(cmd, cfg)
	}

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
