package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete engine configuration, matching the JSON
// shape accepted by the init() public operation one-for-one.
type Config struct {
	DatabasePath          string  `mapstructure:"database_path" json:"database_path"`
	DefaultMemoryTTLHours int     `mapstructure:"default_memory_ttl_hours" json:"default_memory_ttl_hours"`
	AutoDecayEnabled      bool    `mapstructure:"auto_decay_enabled" json:"auto_decay_enabled"`
	DecayIntervalHours    int     `mapstructure:"decay_interval_hours" json:"decay_interval_hours"`
	EnableCompression     bool    `mapstructure:"enable_compression" json:"enable_compression"`
	MaxMemoriesPerUser    int     `mapstructure:"max_memories_per_user" json:"max_memories_per_user"`
	ImportanceThreshold   float64 `mapstructure:"importance_threshold" json:"importance_threshold"`
	EnableRequestLimits   bool    `mapstructure:"enable_request_limits" json:"enable_request_limits"`
	MaxRequestsPerMinute  int     `mapstructure:"max_requests_per_minute" json:"max_requests_per_minute"`
	MaxBatchSize          int     `mapstructure:"max_batch_size" json:"max_batch_size"`
	AutoEvictOnQuota      bool    `mapstructure:"auto_evict_on_quota" json:"auto_evict_on_quota"`

	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
	RestAPI RestAPIConfig `mapstructure:"rest_api" json:"rest_api"`
}

// LoggingConfig controls the internal/logging package.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // console, json
}

// RestAPIConfig controls the optional REST façade (internal/api).
type RestAPIConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Host    string `mapstructure:"host" json:"host"`
	Port    int    `mapstructure:"port" json:"port"`
	CORS    bool   `mapstructure:"cors" json:"cors"`
}

// DefaultConfig returns configuration with the defaults from spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:          "./memex.db",
		DefaultMemoryTTLHours: 720,
		AutoDecayEnabled:      true,
		DecayIntervalHours:    24,
		EnableCompression:     true,
		MaxMemoriesPerUser:    10000,
		ImportanceThreshold:   0.3,
		EnableRequestLimits:   true,
		MaxRequestsPerMinute:  1000,
		MaxBatchSize:          100,
		AutoEvictOnQuota:      false,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RestAPI: RestAPIConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    8085,
			CORS:    true,
		},
	}
}

// Load loads configuration from YAML file with fallback to defaults.
// Searches in multiple locations:
//  1. ./config.yaml (current directory)
//  2. ~/.memex/config.yaml (user home)
//  3. /etc/memex/config.yaml (system-wide)
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".memex"))
	v.AddConfigPath("/etc/memex")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFrom loads configuration from an explicit file path instead of the
// search locations Load uses, for callers (e.g. the CLI's --config flag)
// that know exactly which file to read.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromJSON decodes the init() operation's config_json argument on top of
// DefaultConfig, so callers only need to supply the fields they want to
// override, then validates the result.
func FromJSON(raw []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("malformed config json: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("default_memory_ttl_hours", d.DefaultMemoryTTLHours)
	v.SetDefault("auto_decay_enabled", d.AutoDecayEnabled)
	v.SetDefault("decay_interval_hours", d.DecayIntervalHours)
	v.SetDefault("enable_compression", d.EnableCompression)
	v.SetDefault("max_memories_per_user", d.MaxMemoriesPerUser)
	v.SetDefault("importance_threshold", d.ImportanceThreshold)
	v.SetDefault("enable_request_limits", d.EnableRequestLimits)
	v.SetDefault("max_requests_per_minute", d.MaxRequestsPerMinute)
	v.SetDefault("max_batch_size", d.MaxBatchSize)
	v.SetDefault("auto_evict_on_quota", d.AutoEvictOnQuota)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("rest_api.enabled", d.RestAPI.Enabled)
	v.SetDefault("rest_api.host", d.RestAPI.Host)
	v.SetDefault("rest_api.port", d.RestAPI.Port)
	v.SetDefault("rest_api.cors", d.RestAPI.CORS)
}

// Validate rejects configuration combinations init() must refuse with
// BadConfig.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.MaxMemoriesPerUser <= 0 {
		return fmt.Errorf("max_memories_per_user must be > 0")
	}
	if c.ImportanceThreshold < 0 || c.ImportanceThreshold > 1 {
		return fmt.Errorf("importance_threshold must be between 0 and 1")
	}
	if c.DecayIntervalHours <= 0 {
		return fmt.Errorf("decay_interval_hours must be > 0")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be > 0")
	}
	if c.EnableRequestLimits && c.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("max_requests_per_minute must be > 0 when request limits are enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when the REST API is enabled")
		}
	}

	return nil
}

// EnsureConfigDir creates the directory holding the database file.
func (c *Config) EnsureConfigDir() error {
	dir := filepath.Dir(c.DatabasePath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// ConfigPath returns the default config directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".memex")
}
