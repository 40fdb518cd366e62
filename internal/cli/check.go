package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/engine"
	"github.com/roach88/extcall/internal/harness"
	"github.com/roach88/extcall/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Seed      uint64
	Cases     int
	Database  string
	MaxAlloc  int64
	NoCatalog bool

	// RunIDs overrides the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <env-dir>",
		Short: "Check external call semantics against their contract",
		Long: `Check every operation against the external call contract in the
environment loaded from env-dir.

The built-in catalog (volatile accesses, malloc, free, memcpy, annotations,
debug) is checked, plus every external declared by the environment through
its hook. Each operation is run on --cases random inputs drawn from --seed;
the same seed and environment always draw the same inputs.

With --db the check is recorded as a run and every violation is stored.

Example:
  extcall check ./env
  extcall check ./env --seed 42 --cases 1000 --db ./extcall.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Seed, "seed", harness.DefaultSeed, "random seed")
	cmd.Flags().IntVar(&opts.Cases, "cases", harness.DefaultCases, "random inputs per operation")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record the check in")
	cmd.Flags().Int64Var(&opts.MaxAlloc, "max-alloc", 0, "largest malloc size to allow (0 for the default)")
	cmd.Flags().BoolVar(&opts.NoCatalog, "no-catalog", false, "check only the declared externals")

	return cmd
}

// setupLogging configures slog for commands that run the engine.
func setupLogging(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// signalContext is cancelled on SIGINT/SIGTERM or when the command's
// context is. The returned stop func releases the signal handler.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, func()) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// openStore opens the database at path and a clock that continues after
// its last record.
func openStore(ctx context.Context, path string) (*store.Store, *engine.Clock, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	last, err := st.LastSeq(ctx)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return st, engine.NewClockAt(last), nil
}

func runCheck(opts *CheckOptions, envDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := setupLogging(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadEnv(envDir, LoadModeFailFast)
	if loadResult == nil || len(loadErrors) > 0 {
		loadErr := firstLoadError(loadErrors)
		return formatter.CommandError(loadErr.Code, loadErr.Message)
	}
	env := loadResult.Env

	ge, err := env.Globalenv()
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}
	hooks, err := harness.Hooks(env)
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}

	efs := make([]ast.ExternalFunction, 0, len(env.Externals))
	for _, d := range env.Externals {
		efs = append(efs, d.EF())
	}
	ops, err := harness.HookOps(hooks, efs)
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}
	if !opts.NoCatalog {
		ops = append(harness.CatalogOps(opts.MaxAlloc), ops...)
	}
	if len(ops) == 0 {
		return formatter.CommandError(ErrCodeBadInput, "no operations to check")
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	cfg := harness.Config{
		Seed:         opts.Seed,
		Cases:        opts.Cases,
		MaxAllocSize: opts.MaxAlloc,
		Logger:       logger,
		RunIDs:       opts.RunIDs,
	}
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, clock, err := openStore(ctx, opts.Database)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, fmt.Sprintf("opening database: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		cfg.Store = st
		cfg.Clock = clock
	}

	formatter.VerboseLog("Checking %d operation(s), %d case(s) each, seed %d", len(ops), cfg.Cases, cfg.Seed)
	report, err := harness.CheckConformance(ctx, ge, ops, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return WrapExitError(ExitCommandError, "check interrupted", err)
		}
		return formatter.CommandError(ErrCodeStore, err.Error())
	}

	return outputCheckReport(formatter, report)
}

func outputCheckReport(formatter *OutputFormatter, report *harness.Report) error {
	violations := report.Violations()
	if formatter.IsJSON() {
		if len(violations) == 0 {
			return formatter.Success(report)
		}
		return formatter.Failure(report, ErrCodeViolation, fmt.Sprintf("%d contract violation(s)", len(violations)), ExitFailure)
	}

	w := formatter.Writer
	for _, op := range report.Ops {
		mark := "✓"
		if len(op.Violations) > 0 {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%d cases, %d outcomes, %d with events)\n", mark, op.Op, op.Cases, op.Outcomes, op.Events)
		for _, v := range op.Violations {
			fmt.Fprintf(w, "    %s: %s\n", v.Property, v.Message)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "run %s, seed %d\n", report.RunID, report.Seed)

	if len(violations) > 0 {
		fmt.Fprintf(w, "✗ %d contract violation(s)\n", len(violations))
		return NewExitError(ExitFailure, fmt.Sprintf("%d contract violation(s)", len(violations)))
	}
	fmt.Fprintf(w, "✓ %d operation(s) conform\n", len(report.Ops))
	return nil
}
