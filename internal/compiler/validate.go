package compiler

import (
	"fmt"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/genv"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported value for validation

	// Global errors (E101-E109)
	ErrEmptyGlobal     = "E101" // data global with no size and no initializer
	ErrInitOverflow    = "E102" // initializers exceed the declared size
	ErrUnknownSymbol   = "E103" // addr initializer names an undeclared global
	ErrFuncStorage     = "E104" // function global declares size, init or volatile
	ErrDuplicateGlobal = "E105" // duplicate global name

	// External errors (E110-E119)
	ErrDuplicateExternal = "E110" // duplicate external name
	ErrNameClash         = "E111" // external shadows a data global
	ErrVoidArgument      = "E112" // void used as an argument type
	ErrEmptyAsm          = "E113" // inline asm with empty text
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled environment against the rules InitMem and
// the dispatcher rely on. Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch env := v.(type) {
	case *Environment:
		return validateEnvironment(env)
	case Environment:
		return validateEnvironment(&env)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateEnvironment(env *Environment) []ValidationError {
	var errs []ValidationError

	globals := make(map[string]genv.Global, len(env.Globals))
	for i, g := range env.Globals {
		if _, dup := globals[g.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("global[%d]", i),
				Message: fmt.Sprintf("duplicate global %q", g.Name),
				Code:    ErrDuplicateGlobal,
			})
			continue
		}
		globals[g.Name] = g.Def
	}

	for _, g := range env.Globals {
		errs = append(errs, validateGlobal(g, globals)...)
	}

	seen := make(map[string]bool, len(env.Externals))
	for _, d := range env.Externals {
		field := "external." + d.Name
		if seen[d.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate external %q", d.Name),
				Code:    ErrDuplicateExternal,
			})
		}
		seen[d.Name] = true

		// Function globals may share a name with an external: that is how a
		// program takes the address of a function it calls.
		if def, ok := globals[d.Name]; ok && !def.Func {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("external %q shadows data global", d.Name),
				Code:    ErrNameClash,
			})
		}

		for i, ty := range d.Sig.Args {
			if ty == ast.Tvoid {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.args[%d]", field, i),
					Message: "void is not an argument type",
					Code:    ErrVoidArgument,
				})
			}
		}

		if d.Kind == ast.HookInlineAsm && d.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "inline asm text is required",
				Code:    ErrEmptyAsm,
			})
		}
	}

	return errs
}

func validateGlobal(g GlobalDecl, globals map[string]genv.Global) []ValidationError {
	var errs []ValidationError
	field := "global." + g.Name

	if g.Def.Func {
		if g.Def.Size != 0 || len(g.Def.Init) > 0 || g.Def.Volatile {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "function global cannot declare size, init or volatile",
				Code:    ErrFuncStorage,
			})
		}
		return errs
	}

	var initSize int64
	for _, d := range g.Def.Init {
		initSize += d.Size()
	}

	if g.Def.Size == 0 && initSize == 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("global %q has no size and no initializer", g.Name),
			Code:    ErrEmptyGlobal,
		})
	}

	if g.Def.Size > 0 && initSize > g.Def.Size {
		errs = append(errs, ValidationError{
			Field:   field + ".init",
			Message: fmt.Sprintf("initializers take %d bytes, declared size is %d", initSize, g.Def.Size),
			Code:    ErrInitOverflow,
		})
	}

	for i, d := range g.Def.Init {
		addr, ok := d.(genv.DAddrOf)
		if !ok {
			continue
		}
		if _, declared := globals[addr.Symbol]; !declared {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.init[%d]", field, i),
				Message: fmt.Sprintf("address of undeclared global %q", addr.Symbol),
				Code:    ErrUnknownSymbol,
			})
		}
	}

	return errs
}
