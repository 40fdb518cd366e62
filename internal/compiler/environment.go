package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/genv"
)

// GlobalDecl is a compiled global declaration.
type GlobalDecl struct {
	Name string
	Def  genv.Global
}

// ExternalDecl is a compiled external function declaration.
type ExternalDecl struct {
	Name string
	Kind ast.HookKind
	Sig  ast.Signature
}

// EF is the external function the declaration stands for.
func (d ExternalDecl) EF() ast.ExternalFunction {
	switch d.Kind {
	case ast.HookBuiltin:
		return ast.EFBuiltin{Func: d.Name, Sig: d.Sig}
	case ast.HookRuntime:
		return ast.EFRuntime{Func: d.Name, Sig: d.Sig}
	case ast.HookInlineAsm:
		return ast.EFInlineAsm{Text: d.Name, Sig: d.Sig}
	default:
		return ast.EFExternal{Func: d.Name, Sig: d.Sig}
	}
}

// Environment is a compiled environment: globals in declaration order and
// the external functions a program may call.
type Environment struct {
	Globals   []GlobalDecl
	Externals []ExternalDecl
}

// Globalenv builds the symbol environment. Blocks are numbered in
// declaration order.
func (env *Environment) Globalenv() (*genv.Globalenv, error) {
	ge := genv.New()
	for _, g := range env.Globals {
		if err := ge.Add(g.Name, g.Def); err != nil {
			return nil, err
		}
	}
	return ge, nil
}

// External finds a declared external by name.
func (env *Environment) External(name string) (ExternalDecl, bool) {
	for _, d := range env.Externals {
		if d.Name == name {
			return d, true
		}
	}
	return ExternalDecl{}, false
}

// CompileEnvironment parses a CUE value into an Environment.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value holds two optional structs, global and external:
//
//	global: {
//		dev:   {size: 8, volatile: true}
//		table: {readonly: true, init: [{int32: 42}, {space: 4}, {addr: "dev"}]}
//		main:  {func: true}
//	}
//	external: {
//		read:              {args: ["int", "ptr", "long"], res: "long"}
//		"__builtin_bswap": {kind: "builtin", args: ["int"], res: "int"}
//	}
//
// Globals are public unless declared with public: false.
func CompileEnvironment(v cue.Value) (*Environment, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	env := &Environment{}
	var err error
	env.Globals, err = parseGlobals(v)
	if err != nil {
		return nil, err
	}
	env.Externals, err = parseExternals(v)
	if err != nil {
		return nil, err
	}
	if len(env.Globals) == 0 && len(env.Externals) == 0 {
		return nil, &CompileError{
			Field:   "environment",
			Message: "at least one global or external is required",
			Pos:     v.Pos(),
		}
	}
	return env, nil
}

func parseGlobals(v cue.Value) ([]GlobalDecl, error) {
	var decls []GlobalDecl

	globalsVal := v.LookupPath(cue.ParsePath("global"))
	if !globalsVal.Exists() {
		return decls, nil
	}

	iter, err := globalsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Selector().Unquoted()
		gv := iter.Value()
		field := "global." + name

		def := genv.Global{Public: true}
		if def.Size, err = optInt(gv, "size"); err != nil {
			return nil, err
		}
		if def.Size < 0 {
			return nil, &CompileError{Field: field + ".size", Message: "size must not be negative", Pos: gv.Pos()}
		}
		for _, flag := range []struct {
			name string
			dst  *bool
		}{
			{"volatile", &def.Volatile},
			{"readonly", &def.ReadOnly},
			{"public", &def.Public},
			{"func", &def.Func},
		} {
			fv := gv.LookupPath(cue.ParsePath(flag.name))
			if !fv.Exists() {
				continue
			}
			if *flag.dst, err = fv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		initVal := gv.LookupPath(cue.ParsePath("init"))
		if initVal.Exists() {
			def.Init, err = parseInit(initVal, field+".init")
			if err != nil {
				return nil, err
			}
		}

		decls = append(decls, GlobalDecl{Name: name, Def: def})
	}

	return decls, nil
}

// initChunks maps initializer keys to the chunk the datum is stored with.
var initChunks = map[string]ast.Chunk{
	"int8":    ast.Mint8unsigned,
	"int16":   ast.Mint16unsigned,
	"int32":   ast.Mint32,
	"int64":   ast.Mint64,
	"float32": ast.Mfloat32,
	"float64": ast.Mfloat64,
}

// parseInit parses an initializer list. Each item is a struct with one
// datum key, plus ofs next to addr.
func parseInit(v cue.Value, field string) ([]genv.Datum, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var data []genv.Datum
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		itemField := fmt.Sprintf("%s[%d]", field, i)
		d, err := parseDatum(item, itemField)
		if err != nil {
			return nil, err
		}
		data = append(data, d)
	}
	return data, nil
}

func parseDatum(item cue.Value, field string) (genv.Datum, error) {
	if addr := item.LookupPath(cue.ParsePath("addr")); addr.Exists() {
		sym, err := addr.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ofs, err := optInt(item, "ofs")
		if err != nil {
			return nil, err
		}
		return genv.DAddrOf{Symbol: sym, Ofs: ofs}, nil
	}
	if space := item.LookupPath(cue.ParsePath("space")); space.Exists() {
		n, err := space.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 {
			return nil, &CompileError{Field: field, Message: "space must not be negative", Pos: item.Pos()}
		}
		return genv.DSpace{N: n}, nil
	}
	for _, key := range []string{"int8", "int16", "int32", "int64"} {
		if iv := item.LookupPath(cue.ParsePath(key)); iv.Exists() {
			n, err := iv.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			return genv.DInt{Chunk: initChunks[key], V: n}, nil
		}
	}
	for _, key := range []string{"float32", "float64"} {
		if fv := item.LookupPath(cue.ParsePath(key)); fv.Exists() {
			f, err := fv.Float64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			return genv.DFloat{Chunk: initChunks[key], V: f}, nil
		}
	}
	return nil, &CompileError{
		Field:   field,
		Message: "initializer must be one of int8, int16, int32, int64, float32, float64, space or addr",
		Pos:     item.Pos(),
	}
}

var hookKinds = map[string]ast.HookKind{
	"external": ast.HookExternal,
	"builtin":  ast.HookBuiltin,
	"runtime":  ast.HookRuntime,
	"asm":      ast.HookInlineAsm,
}

func parseExternals(v cue.Value) ([]ExternalDecl, error) {
	var decls []ExternalDecl

	extVal := v.LookupPath(cue.ParsePath("external"))
	if !extVal.Exists() {
		return decls, nil
	}

	iter, err := extVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Selector().Unquoted()
		ev := iter.Value()
		field := "external." + name

		decl := ExternalDecl{Name: name, Kind: ast.HookExternal}
		if kv := ev.LookupPath(cue.ParsePath("kind")); kv.Exists() {
			kind, err := kv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			k, ok := hookKinds[kind]
			if !ok {
				return nil, &CompileError{
					Field:   field + ".kind",
					Message: fmt.Sprintf("unknown kind %q (want external, builtin, runtime or asm)", kind),
					Pos:     kv.Pos(),
				}
			}
			decl.Kind = k
		}

		decl.Sig, err = parseSignature(ev, field)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}

	return decls, nil
}

func parseSignature(v cue.Value, field string) (ast.Signature, error) {
	sig := ast.Sig(ast.Tvoid)

	if argsVal := v.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
		iter, err := argsVal.List()
		if err != nil {
			return sig, formatCUEError(err)
		}
		for iter.Next() {
			ty, err := parseTyp(iter.Value(), field+".args")
			if err != nil {
				return sig, err
			}
			if ty == ast.Tvoid {
				return sig, &CompileError{Field: field + ".args", Message: "void is not an argument type", Pos: iter.Value().Pos()}
			}
			sig.Args = append(sig.Args, ty)
		}
	}

	if resVal := v.LookupPath(cue.ParsePath("res")); resVal.Exists() {
		ty, err := parseTyp(resVal, field+".res")
		if err != nil {
			return sig, err
		}
		sig.Res = ty
	}

	if va := v.LookupPath(cue.ParsePath("vararg")); va.Exists() {
		b, err := va.Bool()
		if err != nil {
			return sig, formatCUEError(err)
		}
		sig.CC.Vararg = b
	}
	return sig, nil
}

func parseTyp(v cue.Value, field string) (ast.Typ, error) {
	s, err := v.String()
	if err != nil {
		return ast.Tvoid, formatCUEError(err)
	}
	ty, err := ast.ParseTyp(s)
	if err != nil {
		return ast.Tvoid, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return ty, nil
}

func optInt(v cue.Value, key string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}
