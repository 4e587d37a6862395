package tabauth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bazaarops/tabauth/session"
	"github.com/bazaarops/tabauth/storage"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a Store.
//
// Config values are read once by [Builder.Build]; later mutation has no effect on a
// built Store.
type Config struct {
	Session SessionConfig  `yaml:"session"`
	Durable storage.Config `yaml:"durable"`
	Audit   AuditConfig    `yaml:"audit"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging LoggingConfig  `yaml:"logging"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls registry staleness handling.
type SessionConfig struct {
	// StaleAfter is the inactivity age past which registry entries are purged.
	StaleAfter time.Duration `yaml:"stale_after"`
	// SweepOnStart purges stale registry entries when the Store is built.
	SweepOnStart bool `yaml:"sweep_on_start"`
	// SweepInterval, when > 0, also sweeps periodically until Close.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// FilterStaleOnRead hides stale entries from ActiveAccountsList between sweeps.
	FilterStaleOnRead bool `yaml:"filter_stale_on_read"`
}

/*
====================================
AUDIT / METRICS / LOGGING CONFIG
====================================
*/

// AuditConfig controls asynchronous session event delivery.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
	// BroadcastChannel names the Redis pub/sub channel used by broadcast.Publisher.
	BroadcastChannel string `yaml:"broadcast_channel"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// LoggingConfig selects the slog handler built by the CLI.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when nothing is overridden: 24h
// staleness swept at start, an in-process durable tier, audit and metrics off.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			StaleAfter:        session.DefaultStaleAfter,
			SweepOnStart:      true,
			SweepInterval:     0,
			FilterStaleOnRead: true,
		},
		Durable: storage.Config{
			Type: storage.TypeMemory,
			Redis: storage.RedisConfig{
				Prefix:     "tabauth",
				MaxRetries: 8,
			},
		},
		Audit: AuditConfig{
			Enabled:          false,
			BufferSize:       256,
			DropIfFull:       true,
			BroadcastChannel: "tabauth:events",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values a Store cannot run with.
func (c *Config) Validate() error {
	if c.Session.StaleAfter <= 0 {
		return errors.New("Session StaleAfter must be > 0")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("Session SweepInterval must be >= 0")
	}

	if err := c.Durable.Validate(); err != nil {
		return fmt.Errorf("Durable: %w", err)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.BufferSize < 0 {
		return errors.New("Audit BufferSize must be >= 0")
	}
	if c.Audit.BroadcastChannel != "" && strings.TrimSpace(c.Audit.BroadcastChannel) == "" {
		return errors.New("Audit BroadcastChannel must not be blank")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}

	return nil
}

// LoadConfig starts from [DefaultConfig], overlays the YAML file at path (skipped when
// path is empty), then applies TABAUTH_* environment overrides, and validates.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := lookupEnv("TABAUTH_DURABLE_TYPE"); ok {
		cfg.Durable.Type = storage.Type(strings.ToLower(v))
	}
	if v, ok := lookupEnv("TABAUTH_REDIS_ADDR"); ok {
		cfg.Durable.Redis.Addr = v
	}
	if v, ok := lookupEnv("TABAUTH_REDIS_PASSWORD"); ok {
		cfg.Durable.Redis.Password = v
	}
	if v, ok := lookupEnv("TABAUTH_REDIS_PREFIX"); ok {
		cfg.Durable.Redis.Prefix = v
	}
	if err := envInt("TABAUTH_REDIS_DB", &cfg.Durable.Redis.DB); err != nil {
		return err
	}
	if err := envDuration("TABAUTH_STALE_AFTER", &cfg.Session.StaleAfter); err != nil {
		return err
	}
	if err := envDuration("TABAUTH_SWEEP_INTERVAL", &cfg.Session.SweepInterval); err != nil {
		return err
	}
	if err := envBool("TABAUTH_METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	if err := envBool("TABAUTH_AUDIT_ENABLED", &cfg.Audit.Enabled); err != nil {
		return err
	}
	if v, ok := lookupEnv("TABAUTH_BROADCAST_CHANNEL"); ok {
		cfg.Audit.BroadcastChannel = v
	}
	if v, ok := lookupEnv("TABAUTH_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := lookupEnv("TABAUTH_LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envInt(key string, dst *int) error {
	v, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	*dst = d
	return nil
}
