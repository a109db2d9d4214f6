package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfano.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  read_timeout: 5s
storage:
  base_url: https://blob.internal
ai:
  model: openai/gpt-4o-mini
font:
  path: /fonts/serif.ttf
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "https://blob.internal", cfg.Storage.BaseURL)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, "/fonts/serif.ttf", cfg.Font.Path)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1024, cfg.AI.MaxTokens)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PDFANO_STORAGE_TOKEN", "env-token")
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Storage.Token)
	assert.Equal(t, "env-key", cfg.AI.APIKey)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresStorageURL(t *testing.T) {
	cfg := Default()
	cfg.Storage.BaseURL = ""
	assert.Error(t, cfg.Validate())
}
