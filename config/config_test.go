package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir()) // no config file present
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 3, cfg.ContextTurnLimit)
	assert.Equal(t, 1000, cfg.QueryRowCap)
	assert.Equal(t, 50, cfg.SampleRowCap)
	assert.Equal(t, 50, cfg.MaxCycles)
	assert.Equal(t, 100, cfg.TypeInferenceSampleCap)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("data_dir: /srv/datachat\nmax_cycles: 7\nllm:\n  model: gpt-4.1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datachat.yaml"), yaml, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/datachat", cfg.DataDir)
	assert.Equal(t, 7, cfg.MaxCycles)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000, cfg.QueryRowCap)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DATACHAT_QUERY_ROW_CAP", "250")
	t.Setenv("DATACHAT_LLM_API_KEY", "sk-test")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.QueryRowCap)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestDefaultMatchesLoadDefaults(t *testing.T) {
	loaded, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}
