package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const validEnv = `
global: {
	g: {size: 16, init: [{int32: 5}, {space: 12}]}
	dev: {size: 8, volatile: true}
	table: {readonly: true, init: [{int64: 42}]}
}

external: {
	getc: {args: ["int"], res: "int"}
	"__builtin_bswap": {kind: "builtin", args: ["int"], res: "int"}
}
`

// writeEnv writes src as the single package file of a fresh directory.
func writeEnv(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.cue"), []byte("package env\n"+src), 0o644))
	return dir
}

// writeScenarioDir writes the environment and the given scenarios into a
// fresh directory.
func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.cue"), []byte(validEnv), 0o644))
	for name, body := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

// execute runs a command and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const getcScenario = `name: getc_syscall
description: getc reads one answered character
env: env.cue
answers: ["i32:65"]
calls:
  - op: call
    name: getc
    args: ["i32:0"]
assertions:
  - type: trace_contains
    event: "syscall getc(0) = 65"
`

const annotScenario = `name: annotations
description: one annotation with an int argument
env: env.cue
run_id: annot-run
calls:
  - op: annot
    text: hello
    types: [int]
    args: ["i32:7"]
assertions:
  - type: trace_length
    count: 1
`

const failingScenario = `name: failing
description: expects more events than the call emits
env: env.cue
calls:
  - op: annot
    text: hello
    types: [int]
    args: ["i32:7"]
assertions:
  - type: trace_length
    count: 3
`

// recordRun runs the getc scenario into the database at dbPath and
// returns the new run's ID.
func recordRun(t *testing.T, dbPath string) string {
	t.Helper()
	dir := writeScenarioDir(t, map[string]string{"getc.yaml": getcScenario})
	out, err := execute(t, NewRunCommand(&RootOptions{Format: "json"}), filepath.Join(dir, "getc.yaml"), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.RunID)
	return resp.Data.RunID
}
