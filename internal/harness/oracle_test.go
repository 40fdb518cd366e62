package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/extcall"
	"github.com/roach88/extcall/internal/genv"
)

func oracleEnv() *genv.Globalenv {
	ge := genv.New()
	ge.MustAdd("g", genv.Global{Size: 16, Public: true})
	ge.MustAdd("hidden", genv.Global{Size: 8})
	ge.MustAdd("dev", genv.Global{Size: 8, Volatile: true, Public: true})
	return ge
}

func TestRandomOracle_SameQuerySameAnswer(t *testing.T) {
	ge := oracleEnv()
	q := extcall.Query{Env: ge, Event: events.VLoad{Chunk: ast.Mint32, ID: "dev"}, Type: ast.Tint}

	a1, ok1 := RandomOracle(7).Answer(q)
	a2, ok2 := RandomOracle(7).Answer(q)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, a1, a2)
}

func TestRandomOracle_WellTyped(t *testing.T) {
	ge := oracleEnv()
	for _, ty := range []ast.Typ{ast.Tint, ast.Tlong, ast.Tfloat, ast.Tsingle, ast.Tptr, ast.Tany32, ast.Tany64} {
		for seed := range uint64(20) {
			q := extcall.Query{Env: ge, Event: events.Syscall{Name: "f"}, Type: ty}
			ev, ok := RandomOracle(seed).Answer(q)
			require.True(t, ok, "type %s", ty)
			assert.True(t, events.Valid(ge, ev), "answer %v", ev)

			switch ty {
			case ast.Tany32:
				assert.Contains(t, []ast.Typ{ast.Tint, ast.Tsingle}, events.TypeOf(ev))
			case ast.Tany64:
				assert.Contains(t, []ast.Typ{ast.Tlong, ast.Tfloat, ast.Tptr}, events.TypeOf(ev))
			default:
				assert.True(t, ty.Admits(events.TypeOf(ev)), "%s answered with %v", ty, ev)
			}

			if p, isPtr := ev.(events.EVPtrGlobal); isPtr {
				assert.NotEqual(t, "hidden", p.ID)
			}
		}
	}
}

func TestRandomOracle_LongsIncludePointers(t *testing.T) {
	ge := oracleEnv()
	var ptrs, longs int
	for seed := range uint64(200) {
		q := extcall.Query{Env: ge, Event: events.VLoad{Chunk: ast.Mint64, ID: "dev"}, Type: ast.Tlong}
		ev, ok := RandomOracle(seed).Answer(q)
		require.True(t, ok)
		switch ev.(type) {
		case events.EVPtrGlobal:
			ptrs++
		case events.EVLong:
			longs++
		default:
			t.Fatalf("answer %v is not a long", ev)
		}
	}
	assert.Positive(t, ptrs)
	assert.Positive(t, longs)
}

func TestRandomOracle_SeedsDiffer(t *testing.T) {
	ge := oracleEnv()
	q := extcall.Query{Env: ge, Event: events.Syscall{Name: "f"}, Type: ast.Tlong}

	answers := make(map[events.Eventval]bool)
	for seed := range uint64(10) {
		ev, ok := RandomOracle(seed).Answer(q)
		require.True(t, ok)
		answers[ev] = true
	}
	assert.Greater(t, len(answers), 1)
}

func TestRandomOracle_NoPublicSymbol(t *testing.T) {
	ge := genv.New()
	ge.MustAdd("hidden", genv.Global{Size: 8})

	_, ok := RandomOracle(1).Answer(extcall.Query{Env: ge, Type: ast.Tptr})
	assert.False(t, ok)
}

func TestAnswers(t *testing.T) {
	ge := oracleEnv()
	o := NewAnswers(events.EVInt(1), events.EVInt(2))

	q1 := extcall.Query{Env: ge, Event: events.VLoad{Chunk: ast.Mint32, ID: "dev"}, Type: ast.Tint}
	q2 := extcall.Query{Env: ge, Event: events.VLoad{Chunk: ast.Mint32, ID: "dev", Ofs: 4}, Type: ast.Tint}
	q3 := extcall.Query{Env: ge, Event: events.Syscall{Name: "f"}, Type: ast.Tint}

	ev, ok := o.Answer(q1)
	require.True(t, ok)
	assert.Equal(t, events.EVInt(1), ev)

	ev, _ = o.Answer(q2)
	assert.Equal(t, events.EVInt(2), ev)

	// A repeated query keeps its answer.
	ev, _ = o.Answer(q1)
	assert.Equal(t, events.EVInt(1), ev)

	// Exhausted answers fall back to the default oracle.
	ev, ok = o.Answer(q3)
	require.True(t, ok)
	assert.Equal(t, events.EVInt(0), ev)
}
