package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(map[string]string{
		"EXTCALL_DB":    "/tmp/x.db",
		"EXTCALL_SEED":  "0",
		"EXTCALL_CASES": "50",
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Database)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(0), *cfg.Seed)
	require.NotNil(t, cfg.Cases)
	assert.Equal(t, 50, *cfg.Cases)
	assert.Equal(t, 0, cfg.Parallel)

	cfg, err = LoadConfig(map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, cfg.Seed)
	assert.Empty(t, cfg.flagDefaults())

	_, err = LoadConfig(map[string]string{"EXTCALL_CASES": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestEnvironmentFlagDefaults(t *testing.T) {
	cmd := NewRootCommandFromEnv(map[string]string{
		"EXTCALL_DB":       "/tmp/runs.db",
		"EXTCALL_SEED":     "42",
		"EXTCALL_PARALLEL": "3",
		"EXTCALL_FORMAT":   "json",
	})

	checkCmd, _, err := cmd.Find([]string{"check"})
	require.NoError(t, err)
	assert.Equal(t, "42", checkCmd.Flags().Lookup("seed").DefValue)
	assert.Equal(t, "/tmp/runs.db", checkCmd.Flags().Lookup("db").DefValue)
	assert.Equal(t, "200", checkCmd.Flags().Lookup("cases").DefValue)

	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)
	assert.Equal(t, "3", testCmd.Flags().Lookup("parallel").DefValue)

	assert.Equal(t, "json", cmd.PersistentFlags().Lookup("format").Value.String())
}

func TestEnvironmentDatabaseSatisfiesRequiredFlag(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "extcall.db")
	recordRun(t, dbPath)

	cmd := NewRootCommandFromEnv(map[string]string{"EXTCALL_DB": dbPath})
	out, err := execute(t, cmd, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "1 event(s)")

	// An explicit flag still wins.
	cmd = NewRootCommandFromEnv(map[string]string{"EXTCALL_DB": dbPath})
	_, err = execute(t, cmd, "runs", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
}

func TestMalformedEnvironmentFailsCommands(t *testing.T) {
	cmd := NewRootCommandFromEnv(map[string]string{"EXTCALL_SEED": "-1"})
	_, err := execute(t, cmd, "runs", "--db", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
