package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrySettings struct {
	URL     string
	Timeout time.Duration
}

type testConfig struct {
	Registry registrySettings
	Backend  string
}

const embedded = `
registry:
  url: https://chainlist.org/rpcs.json
  timeout: 15s
backend: memory
`

func TestLoadFallsBackToEmbedded(t *testing.T) {
	cfg, err := ParseConfigWithEmbedded[testConfig]([]string{t.TempDir()}, []byte(embedded))
	require.NoError(t, err)
	assert.Equal(t, "https://chainlist.org/rpcs.json", cfg.Registry.URL)
	assert.Equal(t, 15*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, "memory", cfg.Backend)
}

func TestLoadPrefersFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend: redis\n"), 0o600))

	cfg, err := ParseConfigWithEmbedded[testConfig]([]string{dir}, []byte(embedded))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Backend)
	assert.Empty(t, cfg.Registry.URL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REGISTRY_URL", "http://localhost:9999/rpcs.json")

	cfg, err := ParseConfigWithEmbedded[testConfig]([]string{t.TempDir()}, []byte(embedded))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/rpcs.json", cfg.Registry.URL)
}

func TestLoadMissingWithoutEmbedded(t *testing.T) {
	_, err := ParseConfig[testConfig]([]string{t.TempDir()})
	require.Error(t, err)
}
