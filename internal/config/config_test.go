package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.EvaluatorTimeout)
	assert.Nil(t, cfg.AnalysisWeights())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
log_level: debug
evaluator_timeout: 3s
redis:
  addr: redis:6379
  db: 2
weights:
  license: 0.5
  ramp_up_time: 0.5
degradation:
  min_requests: 4
`)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port, "environment wins over the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.EvaluatorTimeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 4, cfg.Degradation.MinRequests)
	assert.Equal(t, 30*time.Second, cfg.Degradation.HealthCheckInterval, "unset nested fields keep defaults")
	assert.Equal(t, analysis.Weights{"license": 0.5, "ramp_up_time": 0.5}, cfg.AnalysisWeights())
	assert.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "port: [unclosed"))
	assert.Error(t, err)

	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err = Load(writeConfig(t, "port: \"1\""))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"unknown metric", func(c *Config) { c.Weights = map[string]float64{"stars": 1} }, false},
		{"negative weight", func(c *Config) { c.Weights = map[string]float64{"license": -1, "bus_factor": 1} }, false},
		{"all zero weights", func(c *Config) { c.Weights = map[string]float64{"license": 0} }, false},
		{"zero evaluator timeout", func(c *Config) { c.EvaluatorTimeout = 0 }, false},
		{"negative request timeout", func(c *Config) { c.RequestTimeout = -time.Second }, false},
		{"empty port", func(c *Config) { c.Port = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
