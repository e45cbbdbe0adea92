package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":8090" {
		t.Fatalf("Server.Address = %s, want :8090", cfg.Server.Address)
	}
	if cfg.Anomaly.Sensitivity != 0.85 {
		t.Fatalf("Anomaly.Sensitivity = %v, want 0.85", cfg.Anomaly.Sensitivity)
	}
	if cfg.Healing.FailureThreshold != 5 {
		t.Fatalf("Healing.FailureThreshold = %d, want 5", cfg.Healing.FailureThreshold)
	}
	if cfg.Resource.ScaleCooldown != 5*time.Minute {
		t.Fatalf("Resource.ScaleCooldown = %v, want 5m", cfg.Resource.ScaleCooldown)
	}
	if cfg.Analytics.RetentionDays != 90 {
		t.Fatalf("Analytics.RetentionDays = %d, want 90", cfg.Analytics.RetentionDays)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autopilot.yaml")
	content := `
server:
  address: ":9999"
anomaly:
  sensitivity: 0.5
  windowSizeMinutes: 10
resource:
  minInstances: 2
  maxInstances: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Fatalf("Server.Address = %s, want :9999", cfg.Server.Address)
	}
	if cfg.Anomaly.Sensitivity != 0.5 {
		t.Fatalf("Anomaly.Sensitivity = %v, want 0.5", cfg.Anomaly.Sensitivity)
	}
	if cfg.Resource.MaxInstances != 4 {
		t.Fatalf("Resource.MaxInstances = %d, want 4", cfg.Resource.MaxInstances)
	}
	// Untouched sections keep their defaults.
	if cfg.Healing.MaxRetryAttempts != 3 {
		t.Fatalf("Healing.MaxRetryAttempts = %d, want default 3", cfg.Healing.MaxRetryAttempts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() with missing file returned nil error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOPILOT_SERVER_ADDRESS", ":7070")
	t.Setenv("AUTOPILOT_ANOMALY_SENSITIVITY", "0.6")
	t.Setenv("AUTOPILOT_REDIS_ENABLED", "true")
	t.Setenv("AUTOPILOT_SCALE_COOLDOWN", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Fatalf("Server.Address = %s, want :7070", cfg.Server.Address)
	}
	if cfg.Anomaly.Sensitivity != 0.6 {
		t.Fatalf("Anomaly.Sensitivity = %v, want 0.6", cfg.Anomaly.Sensitivity)
	}
	if !cfg.Events.RedisEnabled {
		t.Fatal("Events.RedisEnabled = false, want true")
	}
	if cfg.Resource.ScaleCooldown != 90*time.Second {
		t.Fatalf("Resource.ScaleCooldown = %v, want 90s", cfg.Resource.ScaleCooldown)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sensitivity above one", func(c *Config) { c.Anomaly.Sensitivity = 1.5 }},
		{"confidence negative", func(c *Config) { c.Decision.ConfidenceThreshold = -0.1 }},
		{"zero min instances", func(c *Config) { c.Resource.MinInstances = 0 }},
		{"max below min", func(c *Config) { c.Resource.MinInstances = 5; c.Resource.MaxInstances = 2 }},
		{"backoff below one", func(c *Config) { c.Healing.RetryBackoffMultiplier = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}
