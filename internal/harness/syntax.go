package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/builtinarg"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/values"
)

// Scenario files write arguments, expected values and oracle answers as
// short strings:
//
//	i32:5  i64:-1  f64:1.5  f32:0.25   literals
//	&g  &g+4  &sp+8                    symbol and frame addresses
//	int32[g+4]  int64[sp+0]            loads from a symbol or the frame
//	$p  $p+8                           local bindings, optionally offset
//	split(i32:1, i32:2)                a long from its high and low words
//	undef  null                        values only

// ParseArg parses a builtin argument expression.
func ParseArg(s string) (builtinarg.Arg[string], error) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutPrefix(s, "split("); ok && strings.HasSuffix(inner, ")") {
		hi, lo, ok := splitTopLevel(strings.TrimSuffix(inner, ")"))
		if !ok {
			return nil, fmt.Errorf("split needs two arguments: %q", s)
		}
		h, err := ParseArg(hi)
		if err != nil {
			return nil, err
		}
		l, err := ParseArg(lo)
		if err != nil {
			return nil, err
		}
		return builtinarg.BASplitLong[string]{Hi: h, Lo: l}, nil
	}

	if lit, ok, err := parseLiteral(s); ok || err != nil {
		return lit, err
	}

	switch {
	case strings.HasPrefix(s, "&"):
		name, ofs, err := splitOffset(s[1:])
		if err != nil {
			return nil, fmt.Errorf("bad address %q: %w", s, err)
		}
		if name == "sp" {
			return builtinarg.BAAddrStack[string]{Ofs: ofs}, nil
		}
		return builtinarg.BAAddrGlobal[string]{ID: name, Ofs: ofs}, nil

	case strings.HasPrefix(s, "$"):
		name, ofs, err := splitOffset(s[1:])
		if err != nil {
			return nil, fmt.Errorf("bad local %q: %w", s, err)
		}
		var a builtinarg.Arg[string] = builtinarg.BA[string]{X: name}
		if ofs != 0 {
			a = builtinarg.BAAddPtr[string]{A1: a, A2: builtinarg.BALong[string]{N: ofs}}
		}
		return a, nil

	case strings.HasSuffix(s, "]"):
		open := strings.IndexByte(s, '[')
		if open < 0 {
			return nil, fmt.Errorf("bad load %q", s)
		}
		chunk, err := ast.ParseChunk(s[:open])
		if err != nil {
			return nil, err
		}
		name, ofs, err := splitOffset(s[open+1 : len(s)-1])
		if err != nil {
			return nil, fmt.Errorf("bad load %q: %w", s, err)
		}
		if name == "sp" {
			return builtinarg.BALoadStack[string]{Chunk: chunk, Ofs: ofs}, nil
		}
		return builtinarg.BALoadGlobal[string]{Chunk: chunk, ID: name, Ofs: ofs}, nil
	}

	return nil, fmt.Errorf("unrecognized argument %q", s)
}

// ParseArgs parses each string with ParseArg.
func ParseArgs(ss []string) ([]builtinarg.Arg[string], error) {
	args := make([]builtinarg.Arg[string], 0, len(ss))
	for i, s := range ss {
		a, err := ParseArg(s)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		args = append(args, a)
	}
	return args, nil
}

func parseLiteral(s string) (builtinarg.Arg[string], bool, error) {
	kind, num, ok := strings.Cut(s, ":")
	if !ok {
		return nil, false, nil
	}
	switch kind {
	case "i32":
		n, err := strconv.ParseInt(num, 0, 32)
		if err != nil {
			return nil, true, fmt.Errorf("bad i32 literal %q: %w", s, err)
		}
		return builtinarg.BAInt[string]{N: int32(n)}, true, nil
	case "i64":
		n, err := strconv.ParseInt(num, 0, 64)
		if err != nil {
			return nil, true, fmt.Errorf("bad i64 literal %q: %w", s, err)
		}
		return builtinarg.BALong[string]{N: n}, true, nil
	case "f64":
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return nil, true, fmt.Errorf("bad f64 literal %q: %w", s, err)
		}
		return builtinarg.BAFloat[string]{F: f}, true, nil
	case "f32":
		f, err := strconv.ParseFloat(num, 32)
		if err != nil {
			return nil, true, fmt.Errorf("bad f32 literal %q: %w", s, err)
		}
		return builtinarg.BASingle[string]{F: float32(f)}, true, nil
	}
	return nil, false, nil
}

// ParseVal parses an expected value. Symbols resolve in ge and locals
// in the bindings of a finished run.
func ParseVal(s string, ge genv.Env, locals map[string]values.Val) (values.Val, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "undef":
		return values.Undef, nil
	case "null":
		return values.Nullptr, nil
	}
	if lit, ok, err := parseLiteral(s); ok || err != nil {
		if err != nil {
			return nil, err
		}
		v, _ := builtinarg.Eval[string](ge, nil, values.Undef, nil, lit)
		return v, nil
	}
	switch {
	case strings.HasPrefix(s, "&"):
		name, ofs, err := splitOffset(s[1:])
		if err != nil {
			return nil, fmt.Errorf("bad address %q: %w", s, err)
		}
		if _, ok := ge.FindSymbol(name); !ok {
			return nil, fmt.Errorf("unknown symbol %q", name)
		}
		return genv.SymbolAddress(ge, name, ofs), nil
	case strings.HasPrefix(s, "$"):
		name, ofs, err := splitOffset(s[1:])
		if err != nil {
			return nil, fmt.Errorf("bad local %q: %w", s, err)
		}
		v, ok := locals[name]
		if !ok {
			return nil, fmt.Errorf("unbound local %q", name)
		}
		if ofs == 0 {
			return v, nil
		}
		return values.OffsetPtr(v, ofs), nil
	}
	return nil, fmt.Errorf("unrecognized value %q", s)
}

// ParseEventval parses an oracle answer.
func ParseEventval(s string) (events.Eventval, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "&") {
		name, ofs, err := splitOffset(s[1:])
		if err != nil {
			return nil, fmt.Errorf("bad address %q: %w", s, err)
		}
		return events.EVPtrGlobal{ID: name, Ofs: ofs}, nil
	}
	lit, ok, err := parseLiteral(s)
	if err != nil {
		return nil, err
	}
	switch lit := lit.(type) {
	case builtinarg.BAInt[string]:
		return events.EVInt(lit.N), nil
	case builtinarg.BALong[string]:
		return events.EVLong(lit.N), nil
	case builtinarg.BAFloat[string]:
		return events.EVFloat(lit.F), nil
	case builtinarg.BASingle[string]:
		return events.EVSingle(lit.F), nil
	}
	if !ok {
		return nil, fmt.Errorf("unrecognized answer %q", s)
	}
	return nil, fmt.Errorf("unsupported answer %q", s)
}

// splitOffset splits "name+4" or "name-4" into its parts.
func splitOffset(s string) (string, int64, error) {
	i := strings.IndexAny(s, "+-")
	if i < 0 {
		if s == "" {
			return "", 0, fmt.Errorf("missing name")
		}
		return s, 0, nil
	}
	if i == 0 {
		return "", 0, fmt.Errorf("missing name")
	}
	ofs, err := strconv.ParseInt(s[i:], 0, 64)
	if err != nil {
		return "", 0, err
	}
	return s[:i], ofs, nil
}

// splitTopLevel splits "a, b" at the comma outside parentheses.
func splitTopLevel(s string) (string, string, bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}
