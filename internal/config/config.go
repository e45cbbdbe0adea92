package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every toggle and threshold the control plane needs.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Events     EventsConfig     `yaml:"events"`
	Storage    StorageConfig    `yaml:"storage"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Decision   DecisionConfig   `yaml:"decision"`
	Anomaly    AnomalyConfig    `yaml:"anomaly"`
	Healing    HealingConfig    `yaml:"healing"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Resource   ResourceConfig   `yaml:"resource"`
}

// ServerConfig controls the HTTP API and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EventsConfig configures the payment event source. When Redis is disabled
// the dispatcher falls back to the synthetic simulator.
type EventsConfig struct {
	RedisEnabled  bool   `yaml:"redisEnabled"`
	RedisURL      string `yaml:"redisURL"`
	Stream        string `yaml:"stream"`
	ConsumerGroup string `yaml:"consumerGroup"`
	ConsumerName  string `yaml:"consumerName"`
}

// StorageConfig configures the optional Postgres archive of engine outputs.
type StorageConfig struct {
	Enabled     bool          `yaml:"enabled"`
	DatabaseURL string        `yaml:"databaseURL"`
	FlushEvery  time.Duration `yaml:"flushEvery"`
}

// DispatcherConfig controls the periodic event fan-out loop.
type DispatcherConfig struct {
	Enabled        bool          `yaml:"enabled"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	SampleInterval time.Duration `yaml:"sampleInterval"`
}

// DecisionConfig controls the routing decision engine.
type DecisionConfig struct {
	MinTrainingSamples  int     `yaml:"minTrainingSamples"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	CacheSize           int     `yaml:"cacheSize"`
}

// AnomalyConfig controls statistical anomaly detection.
type AnomalyConfig struct {
	Enabled              bool    `yaml:"enabled"`
	Sensitivity          float64 `yaml:"sensitivity"`
	WindowSizeMinutes    int     `yaml:"windowSizeMinutes"`
	EnableFraudDetection bool    `yaml:"enableFraudDetection"`
}

// HealingConfig controls the self-healing engine.
type HealingConfig struct {
	Enabled                bool          `yaml:"enabled"`
	MaxRetryAttempts       int           `yaml:"maxRetryAttempts"`
	InitialRetryDelay      time.Duration `yaml:"initialRetryDelay"`
	RetryBackoffMultiplier float64       `yaml:"retryBackoffMultiplier"`
	AutoSwitchConnectors   bool          `yaml:"autoSwitchConnectors"`
	FailureThreshold       int           `yaml:"failureThreshold"`
	WorkerPoolSize         int           `yaml:"workerPoolSize"`
}

// AnalyticsConfig controls aggregation and forecasting.
type AnalyticsConfig struct {
	Enabled             bool `yaml:"enabled"`
	RetentionDays       int  `yaml:"retentionDays"`
	EnablePredictions   bool `yaml:"enablePredictions"`
	ForecastHorizonDays int  `yaml:"forecastHorizonDays"`
}

// ResourceConfig controls auto-scaling evaluation.
type ResourceConfig struct {
	EnableAutoScaling        bool          `yaml:"enableAutoScaling"`
	CPUScaleUpThreshold      float64       `yaml:"cpuScaleUpThreshold"`
	CPUScaleDownThreshold    float64       `yaml:"cpuScaleDownThreshold"`
	MemoryScaleUpThreshold   float64       `yaml:"memoryScaleUpThreshold"`
	MemoryScaleDownThreshold float64       `yaml:"memoryScaleDownThreshold"`
	MinInstances             int           `yaml:"minInstances"`
	MaxInstances             int           `yaml:"maxInstances"`
	ScaleCooldown            time.Duration `yaml:"scaleCooldown"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AUTOPILOT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range thresholds.
func (c *Config) Validate() error {
	if c.Decision.ConfidenceThreshold < 0 || c.Decision.ConfidenceThreshold > 1 {
		return fmt.Errorf("decision confidence threshold must be between 0 and 1, got %v", c.Decision.ConfidenceThreshold)
	}
	if c.Anomaly.Sensitivity < 0 || c.Anomaly.Sensitivity > 1 {
		return fmt.Errorf("anomaly sensitivity must be between 0 and 1, got %v", c.Anomaly.Sensitivity)
	}
	if c.Resource.MinInstances < 1 {
		return fmt.Errorf("min instances must be at least 1, got %d", c.Resource.MinInstances)
	}
	if c.Resource.MaxInstances < c.Resource.MinInstances {
		return fmt.Errorf("max instances %d below min instances %d", c.Resource.MaxInstances, c.Resource.MinInstances)
	}
	if c.Healing.RetryBackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff multiplier must be >= 1, got %v", c.Healing.RetryBackoffMultiplier)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8090",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Events: EventsConfig{
			RedisEnabled:  false,
			RedisURL:      "redis://localhost:6379",
			Stream:        "autopilot:events",
			ConsumerGroup: "autopilot_consumers",
			ConsumerName:  "autopilot-1",
		},
		Storage: StorageConfig{
			Enabled:    false,
			FlushEvery: 100 * time.Millisecond,
		},
		Dispatcher: DispatcherConfig{
			Enabled:        true,
			PollInterval:   100 * time.Millisecond,
			SampleInterval: 5 * time.Second,
		},
		Decision: DecisionConfig{
			MinTrainingSamples:  1000,
			ConfidenceThreshold: 0.75,
			CacheSize:           1000,
		},
		Anomaly: AnomalyConfig{
			Enabled:              true,
			Sensitivity:          0.85,
			WindowSizeMinutes:    60,
			EnableFraudDetection: true,
		},
		Healing: HealingConfig{
			Enabled:                true,
			MaxRetryAttempts:       3,
			InitialRetryDelay:      2 * time.Second,
			RetryBackoffMultiplier: 2.0,
			AutoSwitchConnectors:   true,
			FailureThreshold:       5,
			WorkerPoolSize:         32,
		},
		Analytics: AnalyticsConfig{
			Enabled:             true,
			RetentionDays:       90,
			EnablePredictions:   true,
			ForecastHorizonDays: 7,
		},
		Resource: ResourceConfig{
			EnableAutoScaling:        true,
			CPUScaleUpThreshold:      75.0,
			CPUScaleDownThreshold:    30.0,
			MemoryScaleUpThreshold:   80.0,
			MemoryScaleDownThreshold: 40.0,
			MinInstances:             1,
			MaxInstances:             10,
			ScaleCooldown:            5 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOPILOT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("AUTOPILOT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("AUTOPILOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUTOPILOT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("AUTOPILOT_REDIS_URL"); v != "" {
		cfg.Events.RedisURL = v
	}
	if v := os.Getenv("AUTOPILOT_REDIS_ENABLED"); v != "" {
		cfg.Events.RedisEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("AUTOPILOT_EVENT_STREAM"); v != "" {
		cfg.Events.Stream = v
	}
	if v := os.Getenv("AUTOPILOT_CONSUMER_GROUP"); v != "" {
		cfg.Events.ConsumerGroup = v
	}
	if v := os.Getenv("AUTOPILOT_CONSUMER_NAME"); v != "" {
		cfg.Events.ConsumerName = v
	}
	if v := os.Getenv("AUTOPILOT_DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("AUTOPILOT_STORAGE_ENABLED"); v != "" {
		cfg.Storage.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("AUTOPILOT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dispatcher.PollInterval = d
		}
	}
	if v := os.Getenv("AUTOPILOT_SAMPLE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dispatcher.SampleInterval = d
		}
	}
	if v := os.Getenv("AUTOPILOT_ANOMALY_SENSITIVITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Anomaly.Sensitivity = f
		}
	}
	if v := os.Getenv("AUTOPILOT_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Healing.FailureThreshold = n
		}
	}
	if v := os.Getenv("AUTOPILOT_MAX_INSTANCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resource.MaxInstances = n
		}
	}
	if v := os.Getenv("AUTOPILOT_SCALE_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Resource.ScaleCooldown = d
		}
	}
}
