package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/engine"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/harness"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Answers   []string
	FrameSize int64
}

// CallOutput is what call prints in JSON mode.
type CallOutput struct {
	External string   `json:"external"`
	Args     []string `json:"args"`
	Result   string   `json:"result,omitempty"`
	Trace    []string `json:"trace"`
	Error    string   `json:"error,omitempty"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <env-dir> <external> [args...]",
		Short: "Call one declared external and print its outcome",
		Long: `Call an external declared in the environment once, from the
initial memory of the environment, and print its result and trace.

Arguments use the scenario syntax: i32:7, i64:-1, f64:1.5, &g+4, &sp+0,
int32[g+4]. Answers feed the volatile loads and syscalls of the call.

Example:
  extcall call ./env getc i32:0 --answer i32:65
  extcall call ./env __builtin_bswap i32:1`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Answers, "answer", nil, "answer for the next distinct query (repeatable)")
	cmd.Flags().Int64Var(&opts.FrameSize, "frame-size", 0, "size of the stack frame addressed as sp")

	return cmd
}

func runCall(opts *CallOptions, envDir, name string, rawArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := setupLogging(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadEnv(envDir, LoadModeFailFast)
	if loadResult == nil || len(loadErrors) > 0 {
		loadErr := firstLoadError(loadErrors)
		return formatter.CommandError(loadErr.Code, loadErr.Message)
	}
	env := loadResult.Env

	decl, ok := env.External(name)
	if !ok {
		return formatter.CommandError(ErrCodeBadInput, fmt.Sprintf("external %q is not declared", name))
	}
	args, err := harness.ParseArgs(rawArgs)
	if err != nil {
		return formatter.CommandError(ErrCodeBadInput, err.Error())
	}
	answers := make([]events.Eventval, 0, len(opts.Answers))
	for i, s := range opts.Answers {
		ev, err := harness.ParseEventval(s)
		if err != nil {
			return formatter.CommandError(ErrCodeBadInput, fmt.Sprintf("answer %d: %v", i, err))
		}
		answers = append(answers, ev)
	}

	ge, err := env.Globalenv()
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}
	m, err := ge.InitMem()
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}
	hooks, err := harness.Hooks(env)
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}

	eng := engine.New(ge, hooks,
		engine.WithOracle(harness.NewAnswers(answers...)),
		engine.WithLogger(logger),
		engine.WithFrameSize(opts.FrameSize),
		engine.WithRunName("call", 0),
	)
	res, runErr := eng.Run(cmd.Context(), m, []engine.Call{{EF: decl.EF(), Args: args}})

	out := CallOutput{External: name, Args: rawArgs, Trace: []string{}}
	if out.Args == nil {
		out.Args = []string{}
	}
	if res != nil {
		for _, ev := range res.Trace {
			out.Trace = append(out.Trace, ev.String())
		}
		if len(res.Results) > 0 {
			out.Result = fmt.Sprint(res.Results[0])
		}
	}

	if runErr != nil {
		var rtErr *engine.RuntimeError
		if !errors.As(runErr, &rtErr) {
			return formatter.CommandError(ErrCodeGeneric, runErr.Error())
		}
		out.Error = string(rtErr.Code)
		message := fmt.Sprintf("%s: %s", rtErr.Code, rtErr.Message)
		if formatter.IsJSON() {
			return formatter.Failure(out, ErrCodeScenario, message, ExitFailure)
		}
		fmt.Fprintf(formatter.Writer, "✗ %s\n", message)
		return NewExitError(ExitFailure, message)
	}

	if formatter.IsJSON() {
		return formatter.Success(out)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "%s(%s) = %s\n", name, strings.Join(out.Args, ", "), out.Result)
	for _, ev := range out.Trace {
		fmt.Fprintf(w, "  %s\n", ev)
	}
	return nil
}
