package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable wraps every backend failure surfaced by a tier.
var ErrUnavailable = errors.New("storage unavailable")

// ErrUpdateConflict is returned when an optimistic update keeps losing to concurrent writers.
var ErrUpdateConflict = errors.New("storage update conflict")

// UpdateFunc receives the current value (ok=false when the key is absent) and returns
// the next value. Returning keep=false deletes the key.
type UpdateFunc func(current string, ok bool) (next string, keep bool, err error)

// Tier is a string key/value store.
type Tier interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Type selects a tier implementation.
type Type string

const (
	// TypeMemory is an in-process map.
	TypeMemory Type = "memory"
	// TypeRedis is a go-redis backed tier.
	TypeRedis Type = "redis"
	// TypeNone disables persistence.
	TypeNone Type = "none"
)

// RedisConfig configures the Redis tier.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	TTL          time.Duration `yaml:"ttl"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	PingOnCreate bool          `yaml:"ping_on_create"`
}

// Config selects and configures a tier.
type Config struct {
	Type  Type        `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

// Validate reports configuration errors without touching the network.
func (c Config) Validate() error {
	switch c.Type {
	case TypeMemory, TypeNone:
		return nil
	case TypeRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis tier requires addr")
		}
		if c.Redis.DB < 0 {
			return errors.New("redis db must be >= 0")
		}
		if c.Redis.TTL < 0 {
			return errors.New("redis ttl must be >= 0")
		}
		if c.Redis.MaxRetries < 0 {
			return errors.New("redis max_retries must be >= 0")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type %q", c.Type)
	}
}

// Open builds the tier described by cfg.
func Open(ctx context.Context, cfg Config) (Tier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeMemory:
		return NewMemory(), nil
	case TypeRedis:
		return DialRedis(ctx, cfg.Redis)
	default:
		return Noop{}, nil
	}
}
