package tabauth

import (
	"slices"
	"testing"
	"time"

	"github.com/bazaarops/tabauth/storage"
)

func TestLint_DefaultConfigOnlyWarnsAboutMemoryTier(t *testing.T) {
	cfg := DefaultConfig()
	codes := cfg.Lint().Codes()

	if !slices.Equal(codes, []string{"durable_memory"}) {
		t.Fatalf("unexpected default warnings %v", codes)
	}
}

func TestLint_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{
			name: "sweep disabled",
			mutate: func(c *Config) {
				c.Session.SweepOnStart = false
				c.Session.SweepInterval = 0
			},
			code: "sweep_disabled",
		},
		{
			name: "sweep interval beyond stale age",
			mutate: func(c *Config) {
				c.Session.SweepInterval = 48 * time.Hour
			},
			code: "sweep_interval_long",
		},
		{
			name: "stale after long",
			mutate: func(c *Config) {
				c.Session.StaleAfter = 30 * 24 * time.Hour
			},
			code: "stale_after_long",
		},
		{
			name: "durable none",
			mutate: func(c *Config) {
				c.Durable.Type = storage.TypeNone
			},
			code: "durable_none",
		},
		{
			name: "audit blocking",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.DropIfFull = false
			},
			code: "audit_blocking",
		},
		{
			name: "redis ttl short",
			mutate: func(c *Config) {
				c.Durable.Type = storage.TypeRedis
				c.Durable.Redis.Addr = "127.0.0.1:6379"
				c.Durable.Redis.TTL = time.Hour
			},
			code: "redis_ttl_short",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if !slices.Contains(cfg.Lint().Codes(), tc.code) {
				t.Fatalf("expected %s warning, got %v", tc.code, cfg.Lint().Codes())
			}
		})
	}
}

func TestLint_RedisTierDropsMemoryWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Durable.Type = storage.TypeRedis
	cfg.Durable.Redis.Addr = "127.0.0.1:6379"

	if codes := cfg.Lint().Codes(); len(codes) != 0 {
		t.Fatalf("expected no warnings, got %v", codes)
	}
}
