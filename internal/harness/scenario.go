package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/compiler"
)

// Scenario defines a conformance test scenario: a sequence of calls run by
// the engine in a declared environment, and assertions on what happened.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Env is the CUE file declaring globals and externals.
	// Relative paths are resolved against the scenario file's directory.
	Env string `yaml:"env"`

	// FrameSize is the size of the stack frame addressed as sp.
	FrameSize int64 `yaml:"frame_size,omitempty"`

	// Answers feed volatile loads and syscalls, one per distinct query,
	// in order. Queries beyond the list get extcall.DefaultOracle's answer.
	Answers []string `yaml:"answers,omitempty"`

	// Calls run in order; each result may be bound to a local.
	Calls []CallStep `yaml:"calls"`

	// Error is the runtime error the run must stop with. When nil every
	// call must succeed.
	Error *ExpectError `yaml:"error,omitempty"`

	// Assertions validate the final trace, results and memory.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run ID for deterministic tests.
	// If empty, defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`
}

// CallStep is one call. Op selects the operation; the other fields
// parameterize it:
//
//	vload, vstore   chunk
//	malloc, free
//	memcpy          size, align
//	annot           text, types
//	annot_val       text, type
//	debug           kind, text, types
//	call            name (an external declared in the environment)
type CallStep struct {
	Op    string   `yaml:"op"`
	Chunk string   `yaml:"chunk,omitempty"`
	Size  int64    `yaml:"size,omitempty"`
	Align int64    `yaml:"align,omitempty"`
	Text  string   `yaml:"text,omitempty"`
	Kind  int      `yaml:"kind,omitempty"`
	Type  string   `yaml:"type,omitempty"`
	Types []string `yaml:"types,omitempty"`
	Name  string   `yaml:"name,omitempty"`

	// Args are builtin argument expressions, see ParseArg.
	Args []string `yaml:"args"`

	// Dest binds the result to a local for later calls.
	Dest string `yaml:"dest,omitempty"`
}

// Op names.
const (
	OpVLoad    = "vload"
	OpVStore   = "vstore"
	OpMalloc   = "malloc"
	OpFree     = "free"
	OpMemcpy   = "memcpy"
	OpAnnot    = "annot"
	OpAnnotVal = "annot_val"
	OpDebug    = "debug"
	OpCall     = "call"
)

// ExpectError names the runtime error a run must stop with.
type ExpectError struct {
	// Code is an engine.ErrCode* value, e.g. "NO_OUTCOME".
	Code string `yaml:"code"`
	// Step is the index of the failing call.
	Step int `yaml:"step"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event prints as Event
	// - "trace_count": exactly Count events of Kind
	// - "trace_length": exactly Count events
	// - "result": call Step (counting successful calls) returned Value
	// - "local": local Name holds Value
	// - "memory": loading Chunk at Addr gives Value, or fails for "none"
	// - "no_access": no byte of [Addr, Addr+Size) has any permission
	// - "replay_matches": rerunning with Answers gives a matching trace,
	//   different from the first one when Distinct is set
	Type string `yaml:"type"`

	Event    string   `yaml:"event,omitempty"`
	Kind     string   `yaml:"kind,omitempty"`
	Count    int      `yaml:"count,omitempty"`
	Step     int      `yaml:"step,omitempty"`
	Name     string   `yaml:"name,omitempty"`
	Addr     string   `yaml:"addr,omitempty"`
	Chunk    string   `yaml:"chunk,omitempty"`
	Size     int64    `yaml:"size,omitempty"`
	Value    string   `yaml:"value,omitempty"`
	Answers  []string `yaml:"answers,omitempty"`
	Distinct bool     `yaml:"distinct,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceLength   = "trace_length"
	AssertResult        = "result"
	AssertLocal         = "local"
	AssertMemory        = "memory"
	AssertNoAccess      = "no_access"
	AssertReplayMatches = "replay_matches"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The env path is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the env path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Env != "" && !filepath.IsAbs(scenario.Env) && basePath != "" {
		scenario.Env = filepath.Join(basePath, scenario.Env)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Env == "" {
		return fmt.Errorf("env is required")
	}
	if _, err := os.Stat(s.Env); os.IsNotExist(err) {
		return fmt.Errorf("env file not found: %s", s.Env)
	}

	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 && s.Error == nil {
		return fmt.Errorf("assertions list or error is required")
	}

	if s.FrameSize < 0 {
		return fmt.Errorf("frame_size must be non-negative")
	}

	for i, a := range s.Answers {
		if _, err := ParseEventval(a); err != nil {
			return fmt.Errorf("answers[%d]: %w", i, err)
		}
	}

	for i, step := range s.Calls {
		if err := validateCall(i, &step); err != nil {
			return err
		}
	}

	if s.Error != nil {
		if s.Error.Code == "" {
			return fmt.Errorf("error: code is required")
		}
		if s.Error.Step < 0 || s.Error.Step >= len(s.Calls) {
			return fmt.Errorf("error: step %d is not a call index", s.Error.Step)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateCall checks the fields its op needs. Hook names are checked
// against the environment when the scenario runs.
func validateCall(index int, c *CallStep) error {
	switch c.Op {
	case OpVLoad, OpVStore:
		if _, err := ast.ParseChunk(c.Chunk); err != nil {
			return fmt.Errorf("calls[%d]: %w", index, err)
		}
	case OpMalloc, OpFree, OpMemcpy:
	case OpAnnot, OpDebug:
		for _, ty := range c.Types {
			if _, err := ast.ParseTyp(ty); err != nil {
				return fmt.Errorf("calls[%d]: %w", index, err)
			}
		}
	case OpAnnotVal:
		if _, err := ast.ParseTyp(c.Type); err != nil {
			return fmt.Errorf("calls[%d]: %w", index, err)
		}
	case OpCall:
		if c.Name == "" {
			return fmt.Errorf("calls[%d]: name is required for call", index)
		}
	case "":
		return fmt.Errorf("calls[%d]: op is required", index)
	default:
		return fmt.Errorf("calls[%d]: unknown op %q", index, c.Op)
	}

	if _, err := ParseArgs(c.Args); err != nil {
		return fmt.Errorf("calls[%d]: %w", index, err)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceLength:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_length", index)
		}
	case AssertResult:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for result", index)
		}
	case AssertLocal:
		if a.Name == "" || a.Value == "" {
			return fmt.Errorf("assertions[%d]: name and value are required for local", index)
		}
	case AssertMemory:
		if a.Addr == "" || a.Value == "" {
			return fmt.Errorf("assertions[%d]: addr and value are required for memory", index)
		}
		if _, err := ast.ParseChunk(a.Chunk); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertNoAccess:
		if a.Addr == "" || a.Size <= 0 {
			return fmt.Errorf("assertions[%d]: addr and a positive size are required for no_access", index)
		}
	case AssertReplayMatches:
		if len(a.Answers) == 0 {
			return fmt.Errorf("assertions[%d]: answers are required for replay_matches", index)
		}
		for j, ans := range a.Answers {
			if _, err := ParseEventval(ans); err != nil {
				return fmt.Errorf("assertions[%d].answers[%d]: %w", index, j, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// EF builds the external function a call step stands for. Hooks are
// looked up among env's declared externals.
func (c CallStep) EF(env *compiler.Environment) (ast.ExternalFunction, error) {
	parseTypes := func() ([]ast.Typ, error) {
		var tys []ast.Typ
		for _, s := range c.Types {
			ty, err := ast.ParseTyp(s)
			if err != nil {
				return nil, err
			}
			tys = append(tys, ty)
		}
		return tys, nil
	}

	switch c.Op {
	case OpVLoad, OpVStore:
		chunk, err := ast.ParseChunk(c.Chunk)
		if err != nil {
			return nil, err
		}
		if c.Op == OpVLoad {
			return ast.EFVLoad{Chunk: chunk}, nil
		}
		return ast.EFVStore{Chunk: chunk}, nil
	case OpMalloc:
		return ast.EFMalloc{}, nil
	case OpFree:
		return ast.EFFree{}, nil
	case OpMemcpy:
		return ast.EFMemcpy{Size: c.Size, Align: c.Align}, nil
	case OpAnnot:
		tys, err := parseTypes()
		if err != nil {
			return nil, err
		}
		return ast.EFAnnot{Text: c.Text, Types: tys}, nil
	case OpAnnotVal:
		ty, err := ast.ParseTyp(c.Type)
		if err != nil {
			return nil, err
		}
		return ast.EFAnnotVal{Text: c.Text, Type: ty}, nil
	case OpDebug:
		tys, err := parseTypes()
		if err != nil {
			return nil, err
		}
		return ast.EFDebug{Kind: c.Kind, Text: c.Text, Types: tys}, nil
	case OpCall:
		decl, ok := env.External(c.Name)
		if !ok {
			return nil, fmt.Errorf("external %q is not declared", c.Name)
		}
		return decl.EF(), nil
	}
	return nil, fmt.Errorf("unknown op %q", c.Op)
}
