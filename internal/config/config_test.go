package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "workflows", cfg.Workflows.Dir)
	assert.Equal(t, 3, cfg.Pipeline.HopLimit)
	assert.Equal(t, 2, cfg.Pipeline.FailureThreshold)
	assert.InDelta(t, 0.6, cfg.Pipeline.ConfidenceThreshold, 0.001)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  addr: ":9090"
store:
  backend: redis
  redis_addr: "redis:6379"
workflows:
  dir: "policies"
  watch: true
pipeline:
  hop_limit: 5
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "policies", cfg.Workflows.Dir)
	assert.True(t, cfg.Workflows.Watch)
	assert.Equal(t, 5, cfg.Pipeline.HopLimit)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset fields keep their defaults.
	assert.Equal(t, 2, cfg.Pipeline.FailureThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RESOLVD_ADDR", ":7070")
	t.Setenv("RESOLVD_STORE_BACKEND", "redis")
	t.Setenv("RESOLVD_REDIS_ADDR", "envhost:6379")
	t.Setenv("RESOLVD_WORKFLOWS_DIR", "envflows")
	t.Setenv("RESOLVD_LOG_FORMAT", "json")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "envhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "envflows", cfg.Workflows.Dir)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: {addr: "), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
