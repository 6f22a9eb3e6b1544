package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.QueryModel)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.ReasoningModel)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.False(t, cfg.Logging.Debug)
}

func TestLoadFrom_FileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
llm:
  api_key: file-key
  query_model: gemini-2.0-flash
logging:
  debug: true
  level: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.QueryModel)
	// Unspecified fields still get defaults.
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.AnswerModel)
	assert.True(t, cfg.Logging.Debug)
}

func TestLoadFrom_CorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a map"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY wins over file value", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "env-key")

		cfg := Default()
		cfg.LLM.APIKey = "file-key"
		cfg.applyEnvOverrides()

		assert.Equal(t, "env-key", cfg.LLM.APIKey)
	})

	t.Run("DEEPSCOUT_DEBUG enables debug logging", func(t *testing.T) {
		t.Setenv("DEEPSCOUT_DEBUG", "1")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Logging.Debug)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("DEEPSCOUT_STATE_DIR relocates state", func(t *testing.T) {
		t.Setenv("DEEPSCOUT_STATE_DIR", "/tmp/scout-test")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/scout-test", cfg.StateDir)
	})
}
