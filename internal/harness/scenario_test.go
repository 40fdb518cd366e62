package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/compiler"
)

// writeScenario writes an env file and a scenario file into a temp dir and
// returns the scenario path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.cue"), []byte(`global: { g: {size: 8} }`), 0644))
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
env: env.cue
calls:
  - op: malloc
    args: ["i64:8"]
    dest: p
assertions:
  - type: trace_length
    count: 0
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, validScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "env.cue"), scenario.Env)
	require.Len(t, scenario.Calls, 1)
	assert.Equal(t, OpMalloc, scenario.Calls[0].Op)
	assert.Equal(t, []string{"i64:8"}, scenario.Calls[0].Args)
	assert.Equal(t, "p", scenario.Calls[0].Dest)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertTraceLength, scenario.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/path.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "name: [unclosed")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	path := writeScenario(t, validScenario+"assertion: []\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nenv: env.cue\ncalls: [{op: free, args: [null]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nenv: env.cue\ncalls: [{op: free, args: [null]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing env",
			content: "name: n\ndescription: d\ncalls: [{op: free, args: [null]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "env is required",
		},
		{
			name:    "env not found",
			content: "name: n\ndescription: d\nenv: other.cue\ncalls: [{op: free, args: [null]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "env file not found",
		},
		{
			name:    "no calls",
			content: "name: n\ndescription: d\nenv: env.cue\nassertions: [{type: trace_length}]\n",
			wantErr: "calls list is required",
		},
		{
			name:    "no assertions or error",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\n",
			wantErr: "assertions list or error is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: jump, args: []}]\nassertions: [{type: trace_length}]\n",
			wantErr: `unknown op "jump"`,
		},
		{
			name:    "bad chunk",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: vload, chunk: int12, args: [\"&g\"]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "calls[0]",
		},
		{
			name:    "bad argument",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"oops\"]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "unrecognized argument",
		},
		{
			name:    "call without name",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: call, args: []}]\nassertions: [{type: trace_length}]\n",
			wantErr: "name is required for call",
		},
		{
			name:    "bad answer",
			content: "name: n\ndescription: d\nenv: env.cue\nanswers: [\"7\"]\ncalls: [{op: free, args: [\"i64:0\"]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "answers[0]",
		},
		{
			name:    "error step out of range",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\nerror: {code: NO_OUTCOME, step: 1}\n",
			wantErr: "step 1 is not a call index",
		},
		{
			name:    "negative frame size",
			content: "name: n\ndescription: d\nenv: env.cue\nframe_size: -8\ncalls: [{op: free, args: [\"i64:0\"]}]\nassertions: [{type: trace_length}]\n",
			wantErr: "frame_size must be non-negative",
		},
		{
			name:    "negative trace count",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\nassertions: [{type: trace_count, kind: vload, count: -1}]\n",
			wantErr: "count must be non-negative",
		},
		{
			name:    "memory without addr",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\nassertions: [{type: memory, chunk: int32, value: undef}]\n",
			wantErr: "addr and value are required",
		},
		{
			name:    "replay without answers",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "answers are required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\nassertions: [{type: final_state}]\n",
			wantErr: `unknown assertion type "final_state"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_ErrorInsteadOfAssertions(t *testing.T) {
	path := writeScenario(t, "name: n\ndescription: d\nenv: env.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\nerror: {code: NO_OUTCOME, step: 0}\n")
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	require.NotNil(t, scenario.Error)
	assert.Equal(t, ExpectError{Code: "NO_OUTCOME", Step: 0}, *scenario.Error)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "shared.cue"), []byte(`global: { g: {size: 8} }`), 0644))

	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	content := "name: n\ndescription: d\nenv: shared.cue\ncalls: [{op: free, args: [\"i64:0\"]}]\nassertions: [{type: trace_length}]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenarioWithBasePath(path, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "shared.cue"), scenario.Env)

	_, err = LoadScenario(path)
	assert.Error(t, err)
}

func TestCallStep_EF(t *testing.T) {
	env := &compiler.Environment{
		Externals: []compiler.ExternalDecl{
			{Name: "getc", Kind: ast.HookExternal, Sig: ast.Sig(ast.Tint, ast.Tint)},
		},
	}

	tests := []struct {
		step CallStep
		want ast.ExternalFunction
	}{
		{CallStep{Op: OpVLoad, Chunk: "int8s"}, ast.EFVLoad{Chunk: ast.Mint8signed}},
		{CallStep{Op: OpVStore, Chunk: "float64"}, ast.EFVStore{Chunk: ast.Mfloat64}},
		{CallStep{Op: OpMalloc}, ast.EFMalloc{}},
		{CallStep{Op: OpFree}, ast.EFFree{}},
		{CallStep{Op: OpMemcpy, Size: 8, Align: 4}, ast.EFMemcpy{Size: 8, Align: 4}},
		{CallStep{Op: OpAnnot, Text: "t", Types: []string{"int", "ptr"}}, ast.EFAnnot{Text: "t", Types: []ast.Typ{ast.Tint, ast.Tptr}}},
		{CallStep{Op: OpAnnotVal, Text: "v", Type: "long"}, ast.EFAnnotVal{Text: "v", Type: ast.Tlong}},
		{CallStep{Op: OpDebug, Kind: 2, Text: "d"}, ast.EFDebug{Kind: 2, Text: "d"}},
		{CallStep{Op: OpCall, Name: "getc"}, ast.EFExternal{Func: "getc", Sig: ast.Sig(ast.Tint, ast.Tint)}},
	}
	for _, tt := range tests {
		t.Run(tt.step.Op, func(t *testing.T) {
			got, err := tt.step.EF(env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := CallStep{Op: OpCall, Name: "putc"}.EF(env)
	assert.Error(t, err)
	_, err = CallStep{Op: OpAnnot, Types: []string{"quad"}}.EF(env)
	assert.Error(t, err)
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "trace_contains", AssertTraceContains)
	assert.Equal(t, "trace_count", AssertTraceCount)
	assert.Equal(t, "replay_matches", AssertReplayMatches)
}

func TestLoadExampleScenarios(t *testing.T) {
	files, err := FindScenarios(scenariosDir, "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenario(f)
			assert.NoError(t, err)
		})
	}
}
