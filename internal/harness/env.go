package harness

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/extcall/internal/compiler"
	"github.com/roach88/extcall/internal/extcall"
)

// LoadEnvironment compiles and validates the CUE environment in path.
func LoadEnvironment(path string) (*compiler.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	env, err := compiler.CompileEnvironment(v)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}

	if errs := compiler.Validate(env); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid environment %s: %s", path, strings.Join(msgs, "; "))
	}
	return env, nil
}

// Hooks builds the hook registry for env: the pure builtins, plus the
// reference syscall semantics for every other declared external.
func Hooks(env *compiler.Environment) (*extcall.Registry, error) {
	r := extcall.NewRegistry()
	if err := extcall.RegisterPureBuiltins(r); err != nil {
		return nil, err
	}
	builtin := make(map[string]bool)
	for _, name := range r.Names() {
		builtin[name] = true
	}

	for _, d := range env.Externals {
		if builtin[d.Name] {
			continue
		}
		if err := r.Register(d.Name, extcall.SyscallHook(d.Name, d.Sig)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
