// Package config provides configuration loading for the anneal command.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all settings of the anneal command.
type Config struct {
	// Anneal contains the chain parameters.
	Anneal AnnealConfig `json:"anneal" yaml:"anneal"`

	// Input configures how tables are read.
	Input InputConfig `json:"input" yaml:"input"`

	// Output configures what a run writes besides the assignment table.
	Output OutputConfig `json:"output" yaml:"output"`

	// Cache configures the distance cache and memory budget.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Storage holds object store credentials for s3:// and minio:// locations.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging configures operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// AnnealConfig holds the annealing defaults. K has no default and comes
// from the command line.
type AnnealConfig struct {
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	Cooling       float64 `json:"cooling" yaml:"cooling"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations"`

	// Seed of the random source. 0 draws a random seed.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Workers bounds the distance build goroutines. 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`

	// ZeroRange is "zero", "reject" or "propagate".
	ZeroRange string `json:"zero_range" yaml:"zero_range"`

	// Metric is "euclidean", "manhattan" or "sqeuclidean".
	Metric string `json:"metric" yaml:"metric"`

	// Timeout stops the chain early, keeping the assignment reached. 0 disables it.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// InputConfig configures table parsing.
type InputConfig struct {
	// Separator is a single character or "\t".
	Separator string `json:"separator" yaml:"separator"`
}

// OutputConfig configures run outputs.
type OutputConfig struct {
	// Plot renders one SVG chart per cluster next to the assignment table.
	Plot bool `json:"plot" yaml:"plot"`

	// DB is the SQLite run history path. Empty disables history.
	DB string `json:"db,omitempty" yaml:"db,omitempty"`
}

// CacheConfig configures the distance cache.
type CacheConfig struct {
	// Location is a directory, s3://bucket/prefix or minio://bucket/prefix.
	// Empty disables the cache.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// Compression is "none", "lz4" or "zstd".
	Compression string `json:"compression" yaml:"compression"`

	// IOLimit throttles cache reads and writes in bytes per second. 0 is unlimited.
	IOLimit int64 `json:"io_limit,omitempty" yaml:"io_limit,omitempty"`

	// MemoryLimit caps the distance store in bytes. 0 is unlimited.
	MemoryLimit int64 `json:"memory_limit,omitempty" yaml:"memory_limit,omitempty"`
}

// StorageConfig holds object store settings.
type StorageConfig struct {
	S3    S3Config    `json:"s3" yaml:"s3"`
	MinIO MinIOConfig `json:"minio" yaml:"minio"`
}

// S3Config configures the AWS S3 client. Credentials come from the default
// AWS chain.
type S3Config struct {
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// MinIOConfig configures the MinIO client. Keys support ${VAR} syntax.
type MinIOConfig struct {
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Secure    bool   `json:"secure" yaml:"secure"`
}

// Redacted returns a copy with the secret key masked.
func (c MinIOConfig) Redacted() MinIOConfig {
	if c.SecretKey != "" {
		c.SecretKey = "(set)"
	}
	return c
}

// String implements fmt.Stringer to prevent accidental secret logging.
func (c MinIOConfig) String() string {
	return fmt.Sprintf("MinIOConfig{Endpoint:%s, AccessKey:%s, SecretKey:%s, Secure:%t}",
		c.Endpoint, c.AccessKey, c.Redacted().SecretKey, c.Secure)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is "trace", "debug", "info", "warn" or "error".
	Level string `json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr serves /metrics during a run, e.g. ":9090". Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default returns a Config with the defaults of the command line tool.
func Default() *Config {
	return &Config{
		Anneal: AnnealConfig{
			Temperature:   20,
			Cooling:       0.9995,
			MaxIterations: 1_000_000,
			ZeroRange:     "zero",
			Metric:        "euclidean",
		},
		Input: InputConfig{
			Separator: `\t`,
		},
		Output: OutputConfig{
			Plot: true,
		},
		Cache: CacheConfig{
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.anneal/config.yaml, or "" if the home directory is
// unknown.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".anneal", "config.yaml")
}

// Load loads configuration from path and environment variables.
// Order: defaults -> path (or ~/.anneal/config.yaml if path is empty and the
// file exists) -> environment variables.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if p := DefaultPath(); p != "" {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Storage.MinIO.AccessKey = expandEnvVars(config.Storage.MinIO.AccessKey)
	config.Storage.MinIO.SecretKey = expandEnvVars(config.Storage.MinIO.SecretKey)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	a := c.Anneal
	if !(a.Temperature > 0) || math.IsInf(a.Temperature, 0) {
		return fmt.Errorf("temperature must be positive and finite, got %v", a.Temperature)
	}
	if !(a.Cooling > 0 && a.Cooling < 1) {
		return fmt.Errorf("cooling must be between 0 and 1 (exclusive), got %v", a.Cooling)
	}
	if a.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", a.MaxIterations)
	}
	if a.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", a.Workers)
	}
	if a.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", a.Timeout)
	}

	validZeroRange := map[string]bool{"zero": true, "reject": true, "propagate": true}
	if !validZeroRange[a.ZeroRange] {
		return fmt.Errorf("invalid zero_range: %s (valid: zero, reject, propagate)", a.ZeroRange)
	}

	validMetrics := map[string]bool{"euclidean": true, "manhattan": true, "sqeuclidean": true}
	if !validMetrics[a.Metric] {
		return fmt.Errorf("invalid metric: %s (valid: euclidean, manhattan, sqeuclidean)", a.Metric)
	}

	validCompression := map[string]bool{"none": true, "lz4": true, "zstd": true}
	if !validCompression[c.Cache.Compression] {
		return fmt.Errorf("invalid compression: %s (valid: none, lz4, zstd)", c.Cache.Compression)
	}
	if c.Cache.IOLimit < 0 || c.Cache.MemoryLimit < 0 {
		return fmt.Errorf("cache limits must be non-negative")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"": true, "text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// applyEnvOverrides applies ANNEAL_* environment variable overrides.
func applyEnvOverrides(config *Config) error {
	floatVars := map[string]*float64{
		"ANNEAL_TEMPERATURE": &config.Anneal.Temperature,
		"ANNEAL_COOLING":     &config.Anneal.Cooling,
	}
	for name, dst := range floatVars {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = f
		}
	}

	intVars := map[string]*int{
		"ANNEAL_MAX_ITERATIONS": &config.Anneal.MaxIterations,
		"ANNEAL_WORKERS":        &config.Anneal.Workers,
	}
	for name, dst := range intVars {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("ANNEAL_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ANNEAL_SEED: %w", err)
		}
		config.Anneal.Seed = n
	}

	if v := os.Getenv("ANNEAL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ANNEAL_TIMEOUT: %w", err)
		}
		config.Anneal.Timeout = d
	}

	if v := os.Getenv("ANNEAL_PLOT"); v != "" {
		config.Output.Plot = v == "true" || v == "1"
	}

	if v := os.Getenv("ANNEAL_MINIO_SECURE"); v != "" {
		config.Storage.MinIO.Secure = v == "true" || v == "1"
	}

	stringVars := map[string]*string{
		"ANNEAL_ZERO_RANGE":        &config.Anneal.ZeroRange,
		"ANNEAL_METRIC":            &config.Anneal.Metric,
		"ANNEAL_SEPARATOR":         &config.Input.Separator,
		"ANNEAL_DB":                &config.Output.DB,
		"ANNEAL_CACHE":             &config.Cache.Location,
		"ANNEAL_CACHE_COMPRESSION": &config.Cache.Compression,
		"ANNEAL_S3_REGION":         &config.Storage.S3.Region,
		"ANNEAL_MINIO_ENDPOINT":    &config.Storage.MinIO.Endpoint,
		"ANNEAL_MINIO_ACCESS_KEY":  &config.Storage.MinIO.AccessKey,
		"ANNEAL_MINIO_SECRET_KEY":  &config.Storage.MinIO.SecretKey,
		"ANNEAL_LOG_LEVEL":         &config.Logging.Level,
		"ANNEAL_LOG_FORMAT":        &config.Logging.Format,
		"ANNEAL_METRICS_ADDR":      &config.Metrics.Addr,
	}
	for name, dst := range stringVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
