// Package config provides configuration loading and validation for the
// fraud detection pipeline.
//
// Configuration file: ./config.yaml (default), overridable by the
// FRAUDDETECT_CONFIG environment variable.
// Schema version: 1
//
// Environment overlay: a ".env" file in the working directory (if
// present) is loaded via godotenv before the process reads any
// FRAUDDETECT_* environment variables, so local development can keep
// secrets (e.g. storage connection strings) out of config.yaml.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced (e.g. n1_max >= 1, risk alpha in [0,1]).
//   - Invalid config at startup: the pipeline refuses to start.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime are injected by the Makefile via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for the fraud pipeline.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// NodeID identifies this pipeline instance in logs and the admin
	// socket. Default: hostname.
	NodeID string `yaml:"node_id"`

	Producer      ProducerConfig      `yaml:"producer"`
	Consumer      ConsumerConfig      `yaml:"consumer"`
	Logger        LoggerConfig        `yaml:"logger"`
	Model         ModelConfig         `yaml:"model"`
	Alarm         AlarmConfig         `yaml:"alarm"`
	Risk          RiskConfig          `yaml:"risk"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Admin         AdminConfig         `yaml:"admin"`
	Streaming     StreamingConfig     `yaml:"streaming"`
}

// ProducerConfig configures producer batch sizing and the production rate.
type ProducerConfig struct {
	// N1Max is the maximum number of transactions generated per batch.
	// Default: 10.
	N1Max uint64 `yaml:"n1_max"`

	// PollIntervalMillis is the delay between production batches.
	// Default: 100.
	PollIntervalMillis uint64 `yaml:"poll_interval_millis"`

	// Seed, if non-zero, makes the producer's RNG deterministic. Default: 0 (OS entropy).
	Seed uint64 `yaml:"seed"`
}

// ConsumerConfig configures classification batch sizing.
type ConsumerConfig struct {
	// N2Max is the maximum number of transactions read from buffer1 per batch.
	// Default: 10.
	N2Max uint64 `yaml:"n2_max"`

	// PollIntervalMillis is the delay between classification batches.
	// Default: 50.
	PollIntervalMillis uint64 `yaml:"poll_interval_millis"`

	// Seed, if non-zero, makes the consumer's RNG deterministic.
	Seed uint64 `yaml:"seed"`
}

// LoggerConfig configures persistence batch sizing.
type LoggerConfig struct {
	// N3Max is the maximum number of inferred transactions read from
	// buffer2 per batch. Default: 10.
	N3Max uint64 `yaml:"n3_max"`

	// PollIntervalMillis is the delay between log/persist batches.
	// Default: 100.
	PollIntervalMillis uint64 `yaml:"poll_interval_millis"`

	// Seed, if non-zero, makes the logger's RNG deterministic.
	Seed uint64 `yaml:"seed"`
}

// ModelConfig selects and seeds the fraud classification model.
type ModelConfig struct {
	// Name selects a registered model factory (e.g. "demo", "bench").
	// Default: demo.
	Name string `yaml:"name"`

	// Seed, if non-zero, makes the model's RNG deterministic.
	Seed uint64 `yaml:"seed"`
}

// AlarmConfig selects and configures the alarm sink.
type AlarmConfig struct {
	// Sink selects the alarm backend: "log" or "redis". Default: log.
	Sink string `yaml:"sink"`

	// RedisAddr is the redis server address (host:port), used when sink=redis.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword authenticates to redis, used when sink=redis.
	RedisPassword string `yaml:"redis_password"`

	// RedisDB selects the redis logical database, used when sink=redis.
	RedisDB int `yaml:"redis_db"`

	// RedisChannel is the pub/sub channel alerts are published to.
	// Default: fraud-alerts.
	RedisChannel string `yaml:"redis_channel"`

	// ThrottleEnabled wraps the sink in a token-bucket rate limiter.
	// Default: false.
	ThrottleEnabled bool `yaml:"throttle_enabled"`

	// ThrottleCapacity is the token bucket capacity. Default: 100.
	ThrottleCapacity uint64 `yaml:"throttle_capacity"`

	// ThrottleRefillPeriod is the bucket's full-refill interval. Default: 1m.
	ThrottleRefillPeriod time.Duration `yaml:"throttle_refill_period"`
}

// RiskConfig configures the account risk escalation tracker.
type RiskConfig struct {
	// Enabled controls whether fraud flags feed the escalation tracker.
	// Default: true.
	Enabled bool `yaml:"enabled"`

	// Alpha is the EWMA smoothing factor for pressure, in [0.0, 1.0].
	// Default: 0.7.
	Alpha float64 `yaml:"alpha"`

	// ThresholdWatched, ThresholdRestricted, ThresholdBlocked are the
	// pressure levels at which an account escalates. Must be strictly
	// increasing. Defaults: 0.3, 0.6, 0.85.
	ThresholdWatched    float64 `yaml:"threshold_watched"`
	ThresholdRestricted float64 `yaml:"threshold_restricted"`
	ThresholdBlocked    float64 `yaml:"threshold_blocked"`

	// DecayAfter is the idle duration (no new fraud flag) after which an
	// escalated account's state drops one level per sweep; BLOCKED never
	// drops. Default: 5m.
	DecayAfter time.Duration `yaml:"decay_after"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend selects the storage adapter: "memory", "discard", "bolt",
	// "sqlite", or "postgres". Default: bolt.
	Backend string `yaml:"backend"`

	// Path is the file path used by the bolt and sqlite backends.
	// Default: ./data/frauddetect.db.
	Path string `yaml:"path"`

	// ConnString is the connection string used by the postgres backend.
	ConnString string `yaml:"conn_string"`

	// RetentionDays is the record retention period for the bolt backend.
	// Default: 30.
	RetentionDays int `yaml:"retention_days"`

	// Capacity bounds the in-memory backend's record count. Default: 100000.
	Capacity int `yaml:"capacity"`
}

// ObservabilityConfig holds metrics/health HTTP and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the HTTP bind address for /metrics, /healthz, /stats.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`
}

// AdminConfig holds the Unix-socket control plane parameters.
type AdminConfig struct {
	// Enabled controls whether the admin socket is started. Default: true.
	Enabled bool `yaml:"enabled"`

	// SocketPath is the Unix domain socket path. Default: ./run/admin.sock.
	SocketPath string `yaml:"socket_path"`
}

// StreamingConfig holds the WebSocket live alert feed parameters.
type StreamingConfig struct {
	// Enabled controls whether the websocket feed is started. Default: false.
	Enabled bool `yaml:"enabled"`

	// Addr is the HTTP bind address serving the /ws upgrade endpoint.
	// Default: 127.0.0.1:9092.
	Addr string `yaml:"addr"`
}

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		NodeID:        hostname,
		Producer: ProducerConfig{
			N1Max:              10,
			PollIntervalMillis: 100,
		},
		Consumer: ConsumerConfig{
			N2Max:              10,
			PollIntervalMillis: 50,
		},
		Logger: LoggerConfig{
			N3Max:              10,
			PollIntervalMillis: 100,
		},
		Model: ModelConfig{
			Name: "demo",
		},
		Alarm: AlarmConfig{
			Sink:                 "log",
			RedisChannel:         "fraud-alerts",
			ThrottleCapacity:     100,
			ThrottleRefillPeriod: time.Minute,
		},
		Risk: RiskConfig{
			Enabled:             true,
			Alpha:               0.7,
			ThresholdWatched:    0.3,
			ThresholdRestricted: 0.6,
			ThresholdBlocked:    0.85,
			DecayAfter:          5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend:       "bolt",
			Path:          DefaultDBPath,
			RetentionDays: 30,
			Capacity:      100000,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Admin: AdminConfig{
			Enabled:    true,
			SocketPath: "./run/admin.sock",
		},
		Streaming: StreamingConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9092",
		},
	}
}

// DefaultDBPath is the default bolt/sqlite storage file location.
const DefaultDBPath = "./data/frauddetect.db"

// Load reads a ".env" overlay (if present), then reads and validates a
// config file from path. Returns the merged config (defaults overridden
// by file values). Returns an error if the file cannot be read, parsed,
// or validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.Load: load .env: %w", err)
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets a handful of sensitive fields be supplied via
// environment variables (typically populated from .env) instead of
// committed to config.yaml.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FRAUDDETECT_STORAGE_CONN_STRING"); v != "" {
		cfg.Storage.ConnString = v
	}
	if v := os.Getenv("FRAUDDETECT_REDIS_PASSWORD"); v != "" {
		cfg.Alarm.RedisPassword = v
	}
}

// Validate checks all config fields for correctness.
// Returns a descriptive error listing all violations found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.NodeID == "" {
		errs = append(errs, "node_id must not be empty")
	}
	if cfg.Producer.N1Max < 1 {
		errs = append(errs, fmt.Sprintf("producer.n1_max must be >= 1, got %d", cfg.Producer.N1Max))
	}
	if cfg.Consumer.N2Max < 1 {
		errs = append(errs, fmt.Sprintf("consumer.n2_max must be >= 1, got %d", cfg.Consumer.N2Max))
	}
	if cfg.Logger.N3Max < 1 {
		errs = append(errs, fmt.Sprintf("logger.n3_max must be >= 1, got %d", cfg.Logger.N3Max))
	}
	if cfg.Model.Name == "" {
		errs = append(errs, "model.name must not be empty")
	}
	switch cfg.Alarm.Sink {
	case "log":
	case "redis":
		if cfg.Alarm.RedisAddr == "" {
			errs = append(errs, "alarm.redis_addr is required when alarm.sink=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("alarm.sink must be one of [log, redis], got %q", cfg.Alarm.Sink))
	}
	if cfg.Alarm.ThrottleEnabled {
		if cfg.Alarm.ThrottleCapacity < 1 {
			errs = append(errs, fmt.Sprintf("alarm.throttle_capacity must be >= 1, got %d", cfg.Alarm.ThrottleCapacity))
		}
		if cfg.Alarm.ThrottleRefillPeriod < time.Second {
			errs = append(errs, fmt.Sprintf("alarm.throttle_refill_period must be >= 1s, got %s", cfg.Alarm.ThrottleRefillPeriod))
		}
	}
	if cfg.Risk.Enabled {
		if cfg.Risk.Alpha < 0.0 || cfg.Risk.Alpha > 1.0 {
			errs = append(errs, fmt.Sprintf("risk.alpha must be in [0.0, 1.0], got %f", cfg.Risk.Alpha))
		}
		if !(cfg.Risk.ThresholdWatched < cfg.Risk.ThresholdRestricted && cfg.Risk.ThresholdRestricted < cfg.Risk.ThresholdBlocked) {
			errs = append(errs, "risk thresholds must be strictly increasing: watched < restricted < blocked")
		}
	}
	switch cfg.Storage.Backend {
	case "memory", "discard":
	case "bolt", "sqlite":
		if cfg.Storage.Path == "" {
			errs = append(errs, fmt.Sprintf("storage.path must not be empty for backend %q", cfg.Storage.Backend))
		}
	case "postgres":
		if cfg.Storage.ConnString == "" {
			errs = append(errs, "storage.conn_string is required for backend postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be one of [memory, discard, bolt, sqlite, postgres], got %q", cfg.Storage.Backend))
	}
	if cfg.Storage.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("storage.retention_days must be >= 1, got %d", cfg.Storage.RetentionDays))
	}
	if cfg.Storage.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("storage.capacity must be >= 1, got %d", cfg.Storage.Capacity))
	}
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_level must be one of [debug, info, warn, error], got %q", cfg.Observability.LogLevel))
	}
	switch cfg.Observability.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_format must be one of [json, console], got %q", cfg.Observability.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
