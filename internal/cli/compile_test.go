package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileValidEnv(t *testing.T) {
	dir := writeEnv(t, validEnv)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 3 global(s), 2 external(s)")
	assert.Contains(t, out, "b1 g: 16 byte(s), 2 init item(s)")
	assert.Contains(t, out, "b2 dev: 8 byte(s), 0 init item(s) [volatile]")
	assert.Contains(t, out, "b3 table: 8 byte(s), 1 init item(s) [readonly]")
	assert.Contains(t, out, "external getc(int) -> int")
	assert.Contains(t, out, "builtin __builtin_bswap(int) -> int")
	assert.Contains(t, out, "hash ")
}

func TestCompileValidEnvJSON(t *testing.T) {
	dir := writeEnv(t, validEnv)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Globals, 3)
	assert.Equal(t, int64(2), resp.Data.Globals[1].Block)
	assert.True(t, resp.Data.Globals[1].Volatile)
	require.Len(t, resp.Data.Externals, 2)
	assert.Equal(t, []string{"int"}, resp.Data.Externals[0].Args)
	assert.Len(t, resp.Data.Hash, 64)
}

func TestCompileHashIsStable(t *testing.T) {
	a, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), writeEnv(t, validEnv))
	require.NoError(t, err)
	b, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), writeEnv(t, validEnv))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), writeEnv(t, `global: { g: {size: 4} }`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCompileOutputFile(t *testing.T) {
	dir := writeEnv(t, validEnv)
	outFile := filepath.Join(t.TempDir(), "env.json")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), dir, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote environment to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Globals, 3)
}

func TestCompileNonExistentDir(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/env")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCompileEmptyEnv(t *testing.T) {
	dir := writeEnv(t, "")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeEmptyEnv)
}

func TestCompileUnknownKind(t *testing.T) {
	dir := writeEnv(t, `external: { f: {kind: "magic", args: [], res: "int"} }`)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeExternalKind, resp.Error.Code)
}

func TestCompileValidationErrors(t *testing.T) {
	dir := writeEnv(t, `global: { g: {size: 2, init: [{int32: 1}]}, p: {init: [{addr: "nowhere"}]} }`)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "E102")
	assert.Contains(t, out, "E103")
}
