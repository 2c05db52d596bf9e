package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxMemoriesPerUser != 10000 {
		t.Errorf("expected MaxMemoriesPerUser=10000, got %d", cfg.MaxMemoriesPerUser)
	}
	if cfg.DefaultMemoryTTLHours != 720 {
		t.Errorf("expected DefaultMemoryTTLHours=720, got %d", cfg.DefaultMemoryTTLHours)
	}
	if !cfg.AutoDecayEnabled {
		t.Error("expected AutoDecayEnabled=true")
	}
	if cfg.DecayIntervalHours != 24 {
		t.Errorf("expected DecayIntervalHours=24, got %d", cfg.DecayIntervalHours)
	}
	if !cfg.EnableCompression {
		t.Error("expected EnableCompression=true")
	}
	if cfg.ImportanceThreshold != 0.3 {
		t.Errorf("expected ImportanceThreshold=0.3, got %v", cfg.ImportanceThreshold)
	}
	if !cfg.EnableRequestLimits {
		t.Error("expected EnableRequestLimits=true")
	}
	if cfg.MaxRequestsPerMinute != 1000 {
		t.Errorf("expected MaxRequestsPerMinute=1000, got %d", cfg.MaxRequestsPerMinute)
	}
	if cfg.MaxBatchSize != 100 {
		t.Errorf("expected MaxBatchSize=100, got %d", cfg.MaxBatchSize)
	}
	if cfg.AutoEvictOnQuota {
		t.Error("expected AutoEvictOnQuota=false by default")
	}
	if !cfg.RestAPI.Enabled {
		t.Error("expected RestAPI.Enabled=true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}, expectErr: false},
		{name: "empty database path", modify: func(c *Config) { c.DatabasePath = "" }, expectErr: true},
		{name: "non-positive quota", modify: func(c *Config) { c.MaxMemoriesPerUser = 0 }, expectErr: true},
		{name: "invalid port", modify: func(c *Config) { c.RestAPI.Port = 99999 }, expectErr: true},
		{name: "invalid logging level", modify: func(c *Config) { c.Logging.Level = "invalid" }, expectErr: true},
		{name: "invalid importance threshold", modify: func(c *Config) { c.ImportanceThreshold = 2 }, expectErr: true},
		{name: "zero decay interval", modify: func(c *Config) { c.DecayIntervalHours = 0 }, expectErr: true},
		{
			name: "rate limits enabled with zero rpm",
			modify: func(c *Config) {
				c.EnableRequestLimits = true
				c.MaxRequestsPerMinute = 0
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error with missing config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if cfg.MaxMemoriesPerUser != 10000 {
		t.Errorf("expected default quota 10000, got %d", cfg.MaxMemoriesPerUser)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_path: /tmp/test-memex.db
max_memories_per_user: 500
decay_interval_hours: 6
logging:
  level: debug
  format: json
rest_api:
  enabled: true
  port: 9090
  host: 127.0.0.1
  cors: false
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.DatabasePath != "/tmp/test-memex.db" {
		t.Errorf("expected database_path=/tmp/test-memex.db, got %s", cfg.DatabasePath)
	}
	if cfg.MaxMemoriesPerUser != 500 {
		t.Errorf("expected max_memories_per_user=500, got %d", cfg.MaxMemoriesPerUser)
	}
	if cfg.RestAPI.Port != 9090 {
		t.Errorf("expected port=9090, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.CORS {
		t.Error("expected cors=false, got true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"max_memories_per_user": 42, "database_path": "/tmp/a.db"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxMemoriesPerUser != 42 {
		t.Errorf("expected override to apply, got %d", cfg.MaxMemoriesPerUser)
	}
	// fields not present in the JSON keep their defaults
	if cfg.MaxBatchSize != 100 {
		t.Errorf("expected default MaxBatchSize=100 to survive partial override, got %d", cfg.MaxBatchSize)
	}
}

func TestFromJSON_InvalidRejected(t *testing.T) {
	if _, err := FromJSON([]byte(`{"max_memories_per_user": -1}`)); err == nil {
		t.Error("expected validation error for negative quota")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{DatabasePath: filepath.Join(tmpDir, "subdir", "memex.db")}

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "subdir")); os.IsNotExist(err) {
		t.Error("config directory was not created")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}

	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, ".memex")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
