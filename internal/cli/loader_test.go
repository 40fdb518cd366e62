package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/compiler"
)

func TestLoadEnv(t *testing.T) {
	dir := writeEnv(t, validEnv)

	res, errs := LoadEnv(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.FileCount)
	require.Len(t, res.Env.Globals, 3)
	assert.Equal(t, "g", res.Env.Globals[0].Name)
	_, ok := res.Env.External("getc")
	assert.True(t, ok)
}

func TestLoadEnvDirectoryErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "env.cue")
	require.NoError(t, os.WriteFile(file, []byte("package env"), 0o644))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing", "/nonexistent/env", ErrCodeNotFound},
		{"not_a_dir", file, ErrCodeNotFound},
		{"empty", t.TempDir(), ErrCodeNoFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, errs := LoadEnv(tt.dir, LoadModeFailFast)
			assert.Nil(t, res)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, firstLoadError(errs).Code)
		})
	}
}

func TestLoadEnvCompileError(t *testing.T) {
	dir := writeEnv(t, `global: { g: {size: -1} }`)

	res, errs := LoadEnv(dir, LoadModeCollectAll)
	assert.Nil(t, res)
	loadErr := firstLoadError(errs)
	assert.Equal(t, ErrCodeGlobalSize, loadErr.Code)
	assert.Equal(t, "global.g.size", loadErr.Field)
}

func TestLoadEnvValidationModes(t *testing.T) {
	// Two problems: the initializer overflows and the external clashes
	// with a data global.
	dir := writeEnv(t, `
global: { g: {size: 2, init: [{int32: 1}]} }
external: { g: {args: [], res: "int"} }
`)

	res, errs := LoadEnv(dir, LoadModeCollectAll)
	require.NotNil(t, res)
	assert.Len(t, errs, 2)

	res, errs = LoadEnv(dir, LoadModeFailFast)
	require.NotNil(t, res)
	require.Len(t, errs, 1)
	assert.Equal(t, compiler.ErrInitOverflow, firstLoadError(errs).Code)
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.cue"), []byte("package env"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notcue.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.cue"), []byte("package env"), 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"environment":        ErrCodeEmptyEnv,
		"global.g.size":      ErrCodeGlobalSize,
		"global.g.init[2]":   ErrCodeGlobalInit,
		"external.read.kind": ErrCodeExternalKind,
		"external.read.args": ErrCodeSignature,
		"external.read":      ErrCodeSignature,
		"cue":                ErrCodeGeneric,
		"global.g":           ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}
