package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/compiler"
	"github.com/roach88/extcall/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// GlobalView is the compiled form of one global.
type GlobalView struct {
	Name      string `json:"name"`
	Block     int64  `json:"block"`
	Size      int64  `json:"size"`
	InitItems int    `json:"init_items"`
	Volatile  bool   `json:"volatile,omitempty"`
	ReadOnly  bool   `json:"readonly,omitempty"`
	Public    bool   `json:"public"`
	Func      bool   `json:"func,omitempty"`
}

// ExternalView is the compiled form of one external declaration.
type ExternalView struct {
	Name string   `json:"name"`
	Kind string   `json:"kind"`
	Args []string `json:"args"`
	Res  string   `json:"res"`
}

// CompilationResult is what compile prints and writes.
type CompilationResult struct {
	Hash      string         `json:"hash"`
	Globals   []GlobalView   `json:"globals"`
	Externals []ExternalView `json:"externals"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <env-dir>",
		Short: "Compile a CUE environment",
		Long: `Compile the CUE environment in a directory: its globals, in block
order, and the external functions programs may call.

The result carries a content hash so two environments can be compared.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, envDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadEnv(envDir, LoadModeCollectAll)
	if loadResult == nil {
		loadErr := firstLoadError(loadErrors)
		return formatter.CommandError(loadErr.Code, loadErr.Message)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, envDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result, err := buildCompilationResult(loadResult.Env)
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return formatter.CommandError(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	printCompilation(formatter, result, opts.Output)
	return nil
}

func buildCompilationResult(env *compiler.Environment) (*CompilationResult, error) {
	result := &CompilationResult{
		Globals:   make([]GlobalView, 0, len(env.Globals)),
		Externals: make([]ExternalView, 0, len(env.Externals)),
	}
	def := ir.IRObject{}
	globals := make(ir.IRArray, 0, len(env.Globals))
	for i, g := range env.Globals {
		view := GlobalView{
			Name:      g.Name,
			Block:     int64(i + 1),
			Size:      g.Def.BlockSize(),
			InitItems: len(g.Def.Init),
			Volatile:  g.Def.Volatile,
			ReadOnly:  g.Def.ReadOnly,
			Public:    g.Def.Public,
			Func:      g.Def.Func,
		}
		result.Globals = append(result.Globals, view)
		globals = append(globals, ir.IRObject{
			"name":     ir.IRString(view.Name),
			"size":     ir.IRInt(view.Size),
			"init":     ir.IRInt(int64(view.InitItems)),
			"volatile": ir.IRBool(view.Volatile),
			"readonly": ir.IRBool(view.ReadOnly),
			"public":   ir.IRBool(view.Public),
			"func":     ir.IRBool(view.Func),
		})
	}
	externals := make(ir.IRArray, 0, len(env.Externals))
	for _, d := range env.Externals {
		view := ExternalView{Name: d.Name, Kind: d.Kind.String(), Res: d.Sig.Res.String(), Args: []string{}}
		args := make(ir.IRArray, 0, len(d.Sig.Args))
		for _, a := range d.Sig.Args {
			view.Args = append(view.Args, a.String())
			args = append(args, ir.IRString(a.String()))
		}
		result.Externals = append(result.Externals, view)
		externals = append(externals, ir.IRObject{
			"name": ir.IRString(view.Name),
			"kind": ir.IRString(view.Kind),
			"args": args,
			"res":  ir.IRString(view.Res),
		})
	}
	def["globals"] = globals
	def["externals"] = externals

	hash, err := ir.ScenarioHash(def)
	if err != nil {
		return nil, err
	}
	result.Hash = hash
	return result, nil
}

func printCompilation(formatter *OutputFormatter, result *CompilationResult, outputFile string) {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d global(s), %d external(s)\n\n", len(result.Globals), len(result.Externals))

	if len(result.Globals) > 0 {
		fmt.Fprintln(w, "Globals:")
		for _, g := range result.Globals {
			fmt.Fprintf(w, "  b%d %s: %d byte(s), %d init item(s)%s\n", g.Block, g.Name, g.Size, g.InitItems, globalFlags(g))
		}
		fmt.Fprintln(w)
	}

	if len(result.Externals) > 0 {
		fmt.Fprintln(w, "Externals:")
		for _, e := range result.Externals {
			fmt.Fprintf(w, "  %s %s(%s) -> %s\n", e.Kind, e.Name, strings.Join(e.Args, ", "), e.Res)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "hash %s\n", result.Hash)
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote environment to %s\n", outputFile)
	}
}

func globalFlags(g GlobalView) string {
	var flags []string
	if g.Func {
		flags = append(flags, "func")
	}
	if g.Volatile {
		flags = append(flags, "volatile")
	}
	if g.ReadOnly {
		flags = append(flags, "readonly")
	}
	if !g.Public {
		flags = append(flags, "private")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, " ") + "]"
}

// outputCompileErrors outputs validation errors of a compiled environment.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	message := fmt.Sprintf("compilation failed with %d error(s)", len(errs))
	if formatter.IsJSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			loadErr := firstLoadError([]error{err})
			cliErrors[i] = CLIError{Code: loadErr.Code, Message: loadErr.Message, Details: loadErr.Field}
		}
		return formatter.Failure(cliErrors, cliErrors[0].Code, message, ExitCommandError)
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		loadErr := firstLoadError([]error{err})
		if loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", loadErr.Code, loadErr.Field, loadErr.Message)
	}
	return NewExitError(ExitCommandError, message)
}

// writeResultToFile writes the compilation result as indented JSON.
func writeResultToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling environment: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
