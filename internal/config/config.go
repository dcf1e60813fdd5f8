// Package config provides unified configuration for the Hookstream service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hookstream/hookstream/internal/store"
)

// Config holds the full service configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBPath is the event database path; defaults to <DataDir>/events.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Retention configuration for the dual-bucket query defaults
	Retention RetentionConfig `json:"retention" yaml:"retention"`

	// Broadcast configuration for the real-time channel
	Broadcast BroadcastConfig `json:"broadcast" yaml:"broadcast"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout. It must stay zero: the event
	// stream endpoint holds connections open indefinitely.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// RetentionConfig holds the server-side retention defaults. Clients may
// tighten these per request but the configured values are the baseline.
type RetentionConfig struct {
	TotalLimit             int `json:"total_limit" yaml:"total_limit"`
	PriorityLimit          int `json:"priority_limit" yaml:"priority_limit"`
	RegularLimit           int `json:"regular_limit" yaml:"regular_limit"`
	PriorityRetentionHours int `json:"priority_retention_hours" yaml:"priority_retention_hours"`
	RegularRetentionHours  int `json:"regular_retention_hours" yaml:"regular_retention_hours"`
}

// BroadcastConfig holds real-time channel configuration.
type BroadcastConfig struct {
	// BufferSize is the per-observer outbound queue depth
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/hookstream",
		HTTP: HTTPConfig{
			Addr:            ":4000",
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Retention: RetentionConfig{
			TotalLimit:             store.DefaultTotalLimit,
			PriorityLimit:          store.DefaultPriorityLimit,
			RegularLimit:           store.DefaultRegularLimit,
			PriorityRetentionHours: store.DefaultPriorityRetentionHours,
			RegularRetentionHours:  store.DefaultRegularRetentionHours,
		},
		Broadcast: BroadcastConfig{
			BufferSize: 64,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/hookstream"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "events.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.HTTP.WriteTimeout != 0 {
		return fmt.Errorf("http.write_timeout must be 0: the stream endpoint holds connections open")
	}
	if c.Retention.TotalLimit < 0 || c.Retention.PriorityLimit < 0 || c.Retention.RegularLimit < 0 {
		return fmt.Errorf("retention limits must be non-negative")
	}
	if c.Retention.PriorityRetentionHours < 0 || c.Retention.RegularRetentionHours < 0 {
		return fmt.Errorf("retention hours must be non-negative")
	}
	if c.Broadcast.BufferSize < 0 {
		return fmt.Errorf("broadcast.buffer_size must be non-negative")
	}
	return nil
}

// StoreRetention converts the configured defaults to the store's config type.
func (c *Config) StoreRetention() store.RetentionConfig {
	return store.RetentionConfig{
		TotalLimit:             c.Retention.TotalLimit,
		PriorityLimit:          c.Retention.PriorityLimit,
		RegularLimit:           c.Retention.RegularLimit,
		PriorityRetentionHours: c.Retention.PriorityRetentionHours,
		RegularRetentionHours:  c.Retention.RegularRetentionHours,
	}.Normalize()
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the HOOKSTREAM_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("HOOKSTREAM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("HOOKSTREAM_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	// HTTP configuration
	if v := os.Getenv("HOOKSTREAM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("HOOKSTREAM_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("HOOKSTREAM_HTTP_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.IdleTimeout = d
		}
	}
	if v := os.Getenv("HOOKSTREAM_HTTP_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ShutdownTimeout = d
		}
	}

	// Retention configuration
	if v := os.Getenv("HOOKSTREAM_RETENTION_TOTAL_LIMIT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retention.TotalLimit)
	}
	if v := os.Getenv("HOOKSTREAM_RETENTION_PRIORITY_LIMIT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retention.PriorityLimit)
	}
	if v := os.Getenv("HOOKSTREAM_RETENTION_REGULAR_LIMIT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retention.RegularLimit)
	}
	if v := os.Getenv("HOOKSTREAM_RETENTION_PRIORITY_HOURS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retention.PriorityRetentionHours)
	}
	if v := os.Getenv("HOOKSTREAM_RETENTION_REGULAR_HOURS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retention.RegularRetentionHours)
	}

	// Broadcast configuration
	if v := os.Getenv("HOOKSTREAM_BROADCAST_BUFFER_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Broadcast.BufferSize)
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	if c.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.DataDir, err)
	}
	return nil
}
