package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
plugin_paths:
  - ./plugins
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"./plugins"}, cfg.PluginPaths)
	assert.True(t, cfg.Isolation.Enabled)
	assert.Equal(t, 8, cfg.Isolation.MaxThreads)
	assert.Equal(t, "main", cfg.Registry.Branch)
	assert.Equal(t, 30*time.Second, cfg.Health.DefaultInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: loud
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid logging level")
}

func TestLoadRejectsNATSWithoutURL(t *testing.T) {
	path := writeConfig(t, `
events:
  nats:
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.url")
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
plugin_paths:
  - ./plugins
`)

	t.Setenv("MMF_PLUGIN_PATHS", "/opt/a, /opt/b")
	t.Setenv("MMF_METRICS_ENABLED", "true")
	t.Setenv("MMF_LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/opt/a", "/opt/b"}, cfg.PluginPaths)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestPluginConfigScoping(t *testing.T) {
	path := writeConfig(t, `
plugins:
  cache:
    ttl_seconds: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.PluginConfig("cache")["ttl_seconds"])
	assert.NotNil(t, cfg.PluginConfig("unknown"))
	assert.Empty(t, cfg.PluginConfig("unknown"))
}

func TestLookup(t *testing.T) {
	m := map[string]any{
		"cache": map[string]any{
			"ttl_seconds": 60,
			"backend": map[string]any{
				"kind": "memory",
			},
		},
		"flat": "value",
	}

	tests := []struct {
		name string
		key  string
		def  any
		want any
	}{
		{"flat key", "flat", nil, "value"},
		{"nested key", "cache.ttl_seconds", nil, 60},
		{"deep key", "cache.backend.kind", "", "memory"},
		{"missing key falls back", "cache.size", 128, 128},
		{"traversal through scalar falls back", "flat.inner", "d", "d"},
		{"empty key falls back", "", "d", "d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup(m, tt.key, tt.def))
		})
	}
}
