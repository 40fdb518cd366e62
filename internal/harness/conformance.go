package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/engine"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/extcall"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/store"
	"github.com/roach88/extcall/internal/values"
)

// Default conformance knobs.
const (
	DefaultSeed  = 1
	DefaultCases = 200
)

// Clock stamps stored records. engine.Clock and
// testutil.DeterministicClock both satisfy it.
type Clock interface {
	Next() int64
}

// Config controls a conformance check.
type Config struct {
	// Seed makes a check reproducible: the same seed, environment and
	// operations draw the same inputs.
	Seed uint64
	// Cases is the number of random inputs per operation.
	Cases int
	// MaxAllocSize bounds Malloc in CatalogOps.
	MaxAllocSize int64

	Logger *slog.Logger
	// Store, when set, records the check as a run and every violation
	// found.
	Store  *store.Store
	RunIDs engine.RunIDGenerator
	Clock  Clock
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Seed:         DefaultSeed,
		Cases:        DefaultCases,
		MaxAllocSize: extcall.DefaultMaxAllocSize,
	}
}

func (c Config) withDefaults() Config {
	if c.Cases <= 0 {
		c.Cases = DefaultCases
	}
	if c.MaxAllocSize <= 0 {
		c.MaxAllocSize = extcall.DefaultMaxAllocSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RunIDs == nil {
		c.RunIDs = engine.UUIDv7Generator{}
	}
	if c.Clock == nil {
		c.Clock = engine.NewClock()
	}
	return c
}

// OpReport is the outcome of checking one operation.
type OpReport struct {
	Op       string `json:"op"`
	Cases    int    `json:"cases"`
	Outcomes int    `json:"outcomes"` // cases where the call had an outcome
	Events   int    `json:"events"`   // outcomes that emitted an event
	// Violations holds the first violation of each property.
	Violations []*extcall.Violation `json:"violations,omitempty"`
}

// Report is the outcome of a conformance check.
type Report struct {
	RunID string     `json:"run_id"`
	Seed  uint64     `json:"seed"`
	Ops   []OpReport `json:"ops"`
}

// Pass reports whether no operation violated any property.
func (r *Report) Pass() bool {
	return len(r.Violations()) == 0
}

// Violations lists every violation in operation order.
func (r *Report) Violations() []*extcall.Violation {
	var vs []*extcall.Violation
	for _, op := range r.Ops {
		vs = append(vs, op.Violations...)
	}
	return vs
}

// CatalogOps lists the built-in operations checked by default: volatile
// accesses for every chunk, allocation, copies of several shapes,
// annotations and debug.
func CatalogOps(maxAlloc int64) []extcall.Sem {
	var ops []extcall.Sem
	for _, c := range ast.Chunks {
		ops = append(ops, extcall.VolatileLoad{Chunk: c})
	}
	for _, c := range ast.Chunks {
		ops = append(ops, extcall.VolatileStore{Chunk: c})
	}
	ops = append(ops,
		extcall.Malloc{MaxSize: maxAlloc},
		extcall.Free{},
		extcall.Memcpy{Size: 0, Align: 1},
		extcall.Memcpy{Size: 3, Align: 1},
		extcall.Memcpy{Size: 6, Align: 2},
		extcall.Memcpy{Size: 4, Align: 4},
		extcall.Memcpy{Size: 16, Align: 8},
		extcall.Annotation{Text: "annot", Types: []ast.Typ{ast.Tint, ast.Tlong, ast.Tptr}},
		extcall.Annotation{Text: "floats", Types: []ast.Typ{ast.Tfloat, ast.Tsingle}},
		extcall.Annotation{Text: "empty"},
	)
	for _, ty := range []ast.Typ{ast.Tint, ast.Tlong, ast.Tfloat, ast.Tsingle, ast.Tptr} {
		ops = append(ops, extcall.AnnotationValue{Text: "val", Type: ty})
	}
	ops = append(ops, extcall.Debug{Kind: 1, Text: "dbg", Types: []ast.Typ{ast.Tint, ast.Tptr}})
	return ops
}

// HookOps resolves opaque externals through hooks.
func HookOps(hooks extcall.Hooks, efs []ast.ExternalFunction) ([]extcall.Sem, error) {
	ops := make([]extcall.Sem, 0, len(efs))
	for _, ef := range efs {
		s, err := extcall.Resolve(ef, hooks, 0)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ef.Name(), err)
		}
		ops = append(ops, s)
	}
	return ops, nil
}

// property is one contract check applied to a generated case.
type property struct {
	name  string
	check func(c *testCase) error
}

// testCase is one input laid out three ways: as drawn, in a memory that
// extends it, and in a memory it injects into.
type testCase struct {
	s     extcall.Sem
	in    extcall.Input
	ext   extcall.Input
	inj   extcall.Input
	f     values.Meminj
	alt   events.Trace
	seeds [2]uint64
}

var properties = []property{
	{extcall.PropTyping, func(c *testCase) error {
		return extcall.CheckTyping(c.s, c.in, RandomOracle(c.seeds[0]))
	}},
	{extcall.PropEnvInvariance, func(c *testCase) error {
		return extcall.CheckEnvInvariance(c.s, c.in, genv.Snapshot(c.in.Env), RandomOracle(c.seeds[0]))
	}},
	{extcall.PropValidBlocks, func(c *testCase) error {
		return extcall.CheckValidBlocks(c.s, c.in, RandomOracle(c.seeds[0]))
	}},
	{extcall.PropMaxPerm, func(c *testCase) error {
		return extcall.CheckMaxPerm(c.s, c.in, RandomOracle(c.seeds[0]))
	}},
	{extcall.PropReadonly, func(c *testCase) error {
		return extcall.CheckReadonly(c.s, c.in, RandomOracle(c.seeds[0]))
	}},
	{extcall.PropExtends, func(c *testCase) error {
		return extcall.CheckExtends(c.s, c.in, c.ext.Args, c.ext.Mem, RandomOracle(c.seeds[0]))
	}},
	{extcall.PropInject, func(c *testCase) error {
		return extcall.CheckInject(c.s, c.in, c.f, c.inj.Env, c.inj.Args, c.inj.Mem, RandomOracle(c.seeds[0]))
	}},
	{extcall.PropTraceLength, func(c *testCase) error {
		return extcall.CheckTraceLength(c.s, c.in, RandomOracle(c.seeds[0]))
	}},
	{extcall.PropReceptive, func(c *testCase) error {
		return extcall.CheckReceptive(c.s, c.in, RandomOracle(c.seeds[0]), c.alt)
	}},
	{extcall.PropDeterminism, func(c *testCase) error {
		return extcall.CheckDeterminism(c.s, c.in, RandomOracle(c.seeds[0]), RandomOracle(c.seeds[1]))
	}},
}

// CheckConformance runs every contract property against every operation
// in ops over cfg.Cases random inputs each, in the environment ge.
//
// Inputs for each operation come from their own stream seeded by
// cfg.Seed and the operation's position, so adding an operation does not
// change the inputs drawn for the others. Only the first violation of each
// property is kept per operation.
//
// The returned error is for cancellation or store failures; violations
// are reported in the Report.
func CheckConformance(ctx context.Context, ge *genv.Globalenv, ops []extcall.Sem, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	m0, err := ge.InitMem()
	if err != nil {
		return nil, fmt.Errorf("initialize memory: %w", err)
	}

	report := &Report{RunID: cfg.RunIDs.Generate(), Seed: cfg.Seed}
	log := cfg.Logger.With("run", report.RunID)

	if cfg.Store != nil {
		run := ir.Run{
			ID:            report.RunID,
			Name:          "check",
			Seed:          int64(cfg.Seed),
			Seq:           cfg.Clock.Next(),
			EngineVersion: ir.EngineVersion,
		}
		if err := cfg.Store.WriteRun(ctx, run); err != nil {
			return nil, fmt.Errorf("record check run: %w", err)
		}
	}

	for i, s := range ops {
		op := OpReport{Op: extcall.OpName(s)}
		log.Debug("checking operation", "op", op.Op, "cases", cfg.Cases)

		r := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
		g := newGen(r, ge, m0)
		seen := make(map[string]bool)

		for range cfg.Cases {
			if err := ctx.Err(); err != nil {
				report.Ops = append(report.Ops, op)
				return report, err
			}
			c, ok := g.testCase(s)
			if !ok {
				continue
			}
			op.Cases++
			if out, ok := s.Step(c.in.Env, c.in.Args, c.in.Mem, RandomOracle(c.seeds[0])); ok {
				op.Outcomes++
				if len(out.Trace) > 0 {
					op.Events++
				}
			}

			for _, p := range properties {
				if seen[p.name] {
					continue
				}
				err := p.check(c)
				if err == nil {
					continue
				}
				var v *extcall.Violation
				if !errors.As(err, &v) {
					v = &extcall.Violation{Op: op.Op, Property: p.name, Message: err.Error()}
				}
				seen[p.name] = true
				op.Violations = append(op.Violations, v)
				log.Warn("contract violation", "op", v.Op, "property", v.Property, "message", v.Message)

				if cfg.Store != nil {
					rec := ir.ViolationRecord{
						RunID:    report.RunID,
						Seq:      cfg.Clock.Next(),
						Op:       v.Op,
						Property: v.Property,
						Message:  v.Message,
					}
					if err := cfg.Store.WriteViolation(ctx, rec); err != nil {
						return report, fmt.Errorf("record violation: %w", err)
					}
				}
			}
		}

		log.Debug("operation checked",
			"op", op.Op,
			"cases", op.Cases,
			"outcomes", op.Outcomes,
			"events", op.Events,
			"violations", len(op.Violations),
		)
		report.Ops = append(report.Ops, op)
	}

	log.Info("conformance check complete",
		"ops", len(report.Ops),
		"violations", len(report.Violations()),
	)
	return report, nil
}
