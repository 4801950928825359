package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ttsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9000
  keep_alive_timeout: 90s
models:
  design:
    engine: worker
    model_id: Qwen/Qwen3-TTS-12Hz-1.7B-VoiceDesign
    script: /opt/ttsd/worker.py
    device: cpu
  1.7b-clone:
    engine: worker
    model_id: Qwen/Qwen3-TTS-12Hz-1.7B-Base
    script: /opt/ttsd/worker.py
  remote:
    engine: openai
    base_url: http://localhost:8880/v1
residency:
  unload_timeout: 3m
  sweep_interval: 10s
logging:
  level: debug
  file: /var/log/ttsd/ttsd.log
  max_size_mb: 50
redis:
  addr: localhost:6379
  result_ttl: 30m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, 90*time.Second, cfg.Server.KeepAliveTimeout)
	assert.Len(t, cfg.Models, 3)
	assert.Equal(t, "worker", cfg.Models["design"].Engine)
	assert.Equal(t, "/opt/ttsd/worker.py", cfg.Models["1.7b-clone"].Script)
	assert.Equal(t, "http://localhost:8880/v1", cfg.Models["remote"].BaseURL)
	assert.Equal(t, 3*time.Minute, cfg.Residency.UnloadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Residency.SweepInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 30*time.Minute, cfg.Redis.ResultTTL)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
models:
  design:
    engine: worker
    model_id: some/model
    script: worker.py
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, 180*time.Second, cfg.Residency.UnloadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Residency.SweepInterval)
	assert.Equal(t, 120*time.Second, cfg.Server.KeepAliveTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Redis.Addr, "redis is off by default")
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"no_models",
			`server: {port: 8000}`,
			"at least one model",
		},
		{
			"worker_without_script",
			"models:\n  design:\n    engine: worker\n    model_id: m\n",
			"script is required",
		},
		{
			"worker_without_model_id",
			"models:\n  design:\n    engine: worker\n    script: w.py\n",
			"model_id is required",
		},
		{
			"unknown_engine",
			"models:\n  design:\n    engine: tensorrt\n    model_id: m\n",
			"unknown engine",
		},
		{
			"zero_timeout",
			"models:\n  design:\n    engine: openai\nresidency:\n  unload_timeout: 0s\n",
			"unload_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
