package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	config := Default()

	assert.Equal(t, 20.0, config.Anneal.Temperature)
	assert.Equal(t, 0.9995, config.Anneal.Cooling)
	assert.Equal(t, 1_000_000, config.Anneal.MaxIterations)
	assert.Equal(t, "zero", config.Anneal.ZeroRange)
	assert.Equal(t, `\t`, config.Input.Separator)
	assert.True(t, config.Output.Plot)
	assert.Equal(t, "zstd", config.Cache.Compression)
	assert.Equal(t, "info", config.Logging.Level)
	require.NoError(t, config.Validate())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_MINIO_SECRET", "s3cr3t-value")

	path := writeConfig(t, `
anneal:
  temperature: 5
  cooling: 0.99
  timeout: 90s
  zero_range: reject
input:
  separator: ","
output:
  plot: false
  db: runs.db
cache:
  location: minio://bucket/cache
  compression: lz4
storage:
  minio:
    endpoint: localhost:9000
    access_key: admin
    secret_key: ${TEST_MINIO_SECRET}
logging:
  format: json
`)

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5.0, config.Anneal.Temperature)
	assert.Equal(t, 0.99, config.Anneal.Cooling)
	assert.Equal(t, 90*time.Second, config.Anneal.Timeout)
	assert.Equal(t, "reject", config.Anneal.ZeroRange)
	assert.Equal(t, 1_000_000, config.Anneal.MaxIterations, "unset fields keep defaults")
	assert.Equal(t, ",", config.Input.Separator)
	assert.False(t, config.Output.Plot)
	assert.Equal(t, "runs.db", config.Output.DB)
	assert.Equal(t, "lz4", config.Cache.Compression)
	assert.Equal(t, "s3cr3t-value", config.Storage.MinIO.SecretKey)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadFromFile(writeConfig(t, "anneal: [not, a, map]"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANNEAL_TEMPERATURE", "7.5")
	t.Setenv("ANNEAL_MAX_ITERATIONS", "5000")
	t.Setenv("ANNEAL_SEED", "42")
	t.Setenv("ANNEAL_TIMEOUT", "1m")
	t.Setenv("ANNEAL_PLOT", "false")
	t.Setenv("ANNEAL_CACHE", "/tmp/cache")
	t.Setenv("ANNEAL_LOG_LEVEL", "debug")

	config, err := Load(writeConfig(t, "anneal:\n  temperature: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, 7.5, config.Anneal.Temperature, "env wins over file")
	assert.Equal(t, 5000, config.Anneal.MaxIterations)
	assert.Equal(t, uint64(42), config.Anneal.Seed)
	assert.Equal(t, time.Minute, config.Anneal.Timeout)
	assert.False(t, config.Output.Plot)
	assert.Equal(t, "/tmp/cache", config.Cache.Location)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANNEAL_COOLING", "slow")

	_, err := Load("")
	assert.ErrorContains(t, err, "ANNEAL_COOLING")
}

func TestLoad_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), config)

	dir := filepath.Join(home, ".anneal")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("anneal:\n  workers: 3\n"), 0600))

	config, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, config.Anneal.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"temperature", func(c *Config) { c.Anneal.Temperature = 0 }},
		{"cooling", func(c *Config) { c.Anneal.Cooling = 1 }},
		{"iterations", func(c *Config) { c.Anneal.MaxIterations = -1 }},
		{"workers", func(c *Config) { c.Anneal.Workers = -2 }},
		{"timeout", func(c *Config) { c.Anneal.Timeout = -time.Second }},
		{"zero range", func(c *Config) { c.Anneal.ZeroRange = "skip" }},
		{"metric", func(c *Config) { c.Anneal.Metric = "cosine" }},
		{"compression", func(c *Config) { c.Cache.Compression = "gzip" }},
		{"memory", func(c *Config) { c.Cache.MemoryLimit = -1 }},
		{"level", func(c *Config) { c.Logging.Level = "loud" }},
		{"format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mod(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestMinIOConfig_String(t *testing.T) {
	c := MinIOConfig{Endpoint: "localhost:9000", AccessKey: "admin", SecretKey: "hunter2"}
	assert.NotContains(t, c.String(), "hunter2")
	assert.Equal(t, "(set)", c.Redacted().SecretKey)
	assert.Equal(t, "hunter2", c.SecretKey)
}
