package ast

import (
	"fmt"
	"strconv"
)

// ExternalFunction describes an operation that reaches outside ordinary
// memory semantics. It is a sealed interface: only the EF* types below
// implement it.
type ExternalFunction interface {
	// Signature is the type the caller must respect.
	Signature() Signature
	// Name is a short human-readable tag used in logs and stored runs.
	Name() string
	externalFunction()
}

// HookKind distinguishes the three opaque-hook tags. They resolve to the same
// lookup in the dispatcher; the kind is kept for callers that care.
type HookKind uint8

const (
	HookExternal HookKind = iota
	HookBuiltin
	HookRuntime
	HookInlineAsm
)

func (k HookKind) String() string {
	switch k {
	case HookExternal:
		return "external"
	case HookBuiltin:
		return "builtin"
	case HookRuntime:
		return "runtime"
	case HookInlineAsm:
		return "inline_asm"
	default:
		return "hook(" + strconv.Itoa(int(k)) + ")"
	}
}

// EFExternal is a named function defined outside the program.
type EFExternal struct {
	Func string
	Sig  Signature
}

// EFBuiltin is a compiler builtin.
type EFBuiltin struct {
	Func string
	Sig  Signature
}

// EFRuntime is a helper from the runtime support library.
type EFRuntime struct {
	Func string
	Sig  Signature
}

// EFInlineAsm is an inline assembly fragment.
type EFInlineAsm struct {
	Text     string
	Sig      Signature
	Clobbers []string
}

// EFVLoad is a volatile load of the given chunk.
type EFVLoad struct{ Chunk Chunk }

// EFVStore is a volatile store of the given chunk.
type EFVStore struct{ Chunk Chunk }

// EFMalloc allocates a block with a size header.
type EFMalloc struct{}

// EFFree deallocates a block created by EFMalloc.
type EFFree struct{}

// EFMemcpy copies Size bytes between Align-aligned addresses.
type EFMemcpy struct {
	Size  int64
	Align int64
}

// EFAnnot emits an annotation carrying its arguments.
type EFAnnot struct {
	Text  string
	Types []Typ
}

// EFAnnotVal emits an annotation and returns its single argument.
type EFAnnotVal struct {
	Text string
	Type Typ
}

// EFDebug is a debugging annotation with no observable effect.
type EFDebug struct {
	Kind  int
	Text  string
	Types []Typ
}

func (EFExternal) externalFunction()  {}
func (EFBuiltin) externalFunction()   {}
func (EFRuntime) externalFunction()   {}
func (EFInlineAsm) externalFunction() {}
func (EFVLoad) externalFunction()     {}
func (EFVStore) externalFunction()    {}
func (EFMalloc) externalFunction()    {}
func (EFFree) externalFunction()      {}
func (EFMemcpy) externalFunction()    {}
func (EFAnnot) externalFunction()     {}
func (EFAnnotVal) externalFunction()  {}
func (EFDebug) externalFunction()     {}

func (ef EFExternal) Signature() Signature  { return ef.Sig }
func (ef EFBuiltin) Signature() Signature   { return ef.Sig }
func (ef EFRuntime) Signature() Signature   { return ef.Sig }
func (ef EFInlineAsm) Signature() Signature { return ef.Sig }
func (ef EFVLoad) Signature() Signature     { return Sig(ef.Chunk.Type(), Tptr) }
func (ef EFVStore) Signature() Signature    { return Sig(Tvoid, Tptr, ef.Chunk.Type()) }
func (EFMalloc) Signature() Signature       { return Sig(Tptr, Tlong) }
func (EFFree) Signature() Signature         { return Sig(Tvoid, Tptr) }
func (EFMemcpy) Signature() Signature       { return Sig(Tvoid, Tptr, Tptr) }
func (ef EFAnnot) Signature() Signature     { return Sig(Tvoid, ef.Types...) }
func (ef EFAnnotVal) Signature() Signature  { return Sig(ef.Type, ef.Type) }
func (ef EFDebug) Signature() Signature     { return Sig(Tvoid, ef.Types...) }

func (ef EFExternal) Name() string  { return ef.Func }
func (ef EFBuiltin) Name() string   { return ef.Func }
func (ef EFRuntime) Name() string   { return ef.Func }
func (ef EFInlineAsm) Name() string { return "asm " + strconv.Quote(ef.Text) }
func (ef EFVLoad) Name() string     { return "vload " + ef.Chunk.String() }
func (ef EFVStore) Name() string    { return "vstore " + ef.Chunk.String() }
func (EFMalloc) Name() string       { return "malloc" }
func (EFFree) Name() string         { return "free" }
func (ef EFMemcpy) Name() string    { return fmt.Sprintf("memcpy size=%d align=%d", ef.Size, ef.Align) }
func (ef EFAnnot) Name() string     { return "annot " + strconv.Quote(ef.Text) }
func (ef EFAnnotVal) Name() string  { return "annot_val " + strconv.Quote(ef.Text) }
func (ef EFDebug) Name() string     { return fmt.Sprintf("debug %d %q", ef.Kind, ef.Text) }

// Hook returns the hook kind and symbol name of opaque external functions.
// ok is false for the operations the semantics defines itself.
func Hook(ef ExternalFunction) (kind HookKind, name string, ok bool) {
	switch ef := ef.(type) {
	case EFExternal:
		return HookExternal, ef.Func, true
	case EFBuiltin:
		return HookBuiltin, ef.Func, true
	case EFRuntime:
		return HookRuntime, ef.Func, true
	case EFInlineAsm:
		return HookInlineAsm, ef.Text, true
	default:
		return 0, "", false
	}
}
