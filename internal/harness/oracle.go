package harness

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/extcall"
	"github.com/roach88/extcall/internal/genv"
)

// RandomOracle answers every query with a well-typed pseudo-random value
// derived from seed and the query alone, so the same query always gets
// the same answer. Pointer answers name public symbols.
func RandomOracle(seed uint64) extcall.Oracle {
	return extcall.OracleFunc(func(q extcall.Query) (events.Eventval, bool) {
		h := fnv.New64a()
		h.Write([]byte(q.Type.String()))
		h.Write([]byte{0})
		if q.Event != nil {
			h.Write([]byte(q.Event.String()))
		}
		r := rand.New(rand.NewPCG(seed, h.Sum64()))
		return randomEventval(r, q.Env, q.Type)
	})
}

// randomEventval draws an eventval of type ty.
func randomEventval(r *rand.Rand, ge genv.Env, ty ast.Typ) (events.Eventval, bool) {
	switch ty {
	case ast.Tint:
		return events.EVInt(randInt32(r)), true
	case ast.Tlong:
		if r.IntN(5) == 0 {
			if ev, ok := randomEventval(r, ge, ast.Tptr); ok {
				return ev, true
			}
		}
		return events.EVLong(randInt64(r)), true
	case ast.Tfloat:
		return events.EVFloat(randFloat64(r)), true
	case ast.Tsingle:
		return events.EVSingle(float32(randFloat64(r))), true
	case ast.Tptr:
		var public []string
		for _, id := range ge.Symbols() {
			if ge.IsPublic(id) {
				public = append(public, id)
			}
		}
		if len(public) == 0 {
			return nil, false
		}
		return events.EVPtrGlobal{ID: public[r.IntN(len(public))], Ofs: r.Int64N(8)}, true
	case ast.Tany32:
		if r.IntN(2) == 0 {
			return randomEventval(r, ge, ast.Tint)
		}
		return randomEventval(r, ge, ast.Tsingle)
	case ast.Tany64:
		switch r.IntN(3) {
		case 0:
			return randomEventval(r, ge, ast.Tlong)
		case 1:
			return randomEventval(r, ge, ast.Tfloat)
		default:
			return randomEventval(r, ge, ast.Tptr)
		}
	}
	return nil, false
}

// randInt32 favors small magnitudes and the extremes.
func randInt32(r *rand.Rand) int32 {
	switch r.IntN(4) {
	case 0:
		return [...]int32{0, 1, -1, math.MaxInt32, math.MinInt32}[r.IntN(5)]
	case 1:
		return int32(r.Uint32())
	default:
		return int32(r.IntN(256)) - 128
	}
}

func randInt64(r *rand.Rand) int64 {
	switch r.IntN(4) {
	case 0:
		return [...]int64{0, 1, -1, math.MaxInt64, math.MinInt64}[r.IntN(5)]
	case 1:
		return int64(r.Uint64())
	default:
		return r.Int64N(4096) - 2048
	}
}

func randFloat64(r *rand.Rand) float64 {
	switch r.IntN(6) {
	case 0:
		return [...]float64{0, math.Copysign(0, -1), math.Inf(1), math.Inf(-1), math.NaN()}[r.IntN(5)]
	case 1:
		return math.Float64frombits(r.Uint64())
	default:
		return r.NormFloat64() * 100
	}
}

// Answers is an oracle fed by a list of answers. Each new query takes the
// next answer; a query asked again gets its first answer back. Once the
// list runs out, queries go to extcall.DefaultOracle.
//
// Thread-safety: Answers is safe for concurrent use via internal mutex.
type Answers struct {
	mu    sync.Mutex
	queue []events.Eventval
	seen  map[string]events.Eventval
}

// NewAnswers creates an oracle answering evs in order.
func NewAnswers(evs ...events.Eventval) *Answers {
	return &Answers{queue: evs, seen: make(map[string]events.Eventval)}
}

// Answer implements extcall.Oracle.
func (a *Answers) Answer(q extcall.Query) (events.Eventval, bool) {
	key := q.Type.String()
	if q.Event != nil {
		key += " " + q.Event.String()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ev, ok := a.seen[key]; ok {
		return ev, true
	}
	if len(a.queue) == 0 {
		return extcall.DefaultOracle.Answer(q)
	}
	ev := a.queue[0]
	a.queue = a.queue[1:]
	a.seen[key] = ev
	return ev, true
}
