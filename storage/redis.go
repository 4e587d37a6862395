package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix     = "tabauth"
	defaultUpdateAttempts  = 8
	defaultRedisDialTimout = 5 * time.Second
)

// Redis is a durable tier shared by every Store pointed at the same database.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	attempts int
}

// RedisOption configures a Redis tier.
type RedisOption func(*Redis)

// WithPrefix sets the key namespace. Keys are stored as "<prefix>:<key>".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithTTL expires every written key after ttl. Zero keeps keys forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithUpdateAttempts bounds optimistic transaction retries in Update.
func WithUpdateAttempts(n int) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:   client,
		prefix:   defaultRedisPrefix,
		attempts: defaultUpdateAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedis creates a client from cfg and, when cfg.PingOnCreate is set, verifies it.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultRedisDialTimout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if cfg.PingOnCreate {
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	opts := []RedisOption{WithTTL(cfg.TTL), WithUpdateAttempts(cfg.MaxRetries)}
	if cfg.Prefix != "" {
		opts = append(opts, WithPrefix(cfg.Prefix))
	}
	return NewRedis(client, opts...), nil
}

// Client exposes the underlying client for pub/sub and administrative use.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping returns a point-in-time availability check and latency.
func (r *Redis) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Update runs fn inside WATCH/MULTI. A concurrent write to key between the read and the
// commit aborts the transaction, and fn is re-run against the fresh value.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	fullKey := r.key(key)

	for attempt := 0; attempt < r.attempts; attempt++ {
		var fnErr error

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, fullKey).Result()
			ok := true
			if err != nil {
				if !errors.Is(err, redis.Nil) {
					return err
				}
				ok = false
			}

			next, keep, err := fn(current, ok)
			if err != nil {
				fnErr = err
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if keep {
					pipe.Set(ctx, fullKey, next, r.ttl)
				} else {
					pipe.Del(ctx, fullKey)
				}
				return nil
			})
			return err
		}, fullKey)

		switch {
		case err == nil:
			return nil
		case fnErr != nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return ErrUpdateConflict
}
