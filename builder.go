package tabauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bazaarops/tabauth/jwt"
	"github.com/bazaarops/tabauth/session"
	"github.com/bazaarops/tabauth/storage"
)

// TokenDecoder extracts identity claims from a token without verifying it.
type TokenDecoder interface {
	Decode(token string) (*jwt.Claims, error)
}

// Builder assembles a [Store]. A Builder can be built once.
type Builder struct {
	config Config

	ephemeral storage.Tier
	durable   storage.Tier
	decoder   TokenDecoder
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithEphemeral sets the per-tab tier. Defaults to a fresh [storage.Memory].
func (b *Builder) WithEphemeral(tier storage.Tier) *Builder {
	b.ephemeral = tier
	return b
}

// WithDurable sets the tier shared with other tabs. When unset, Build opens the tier
// described by Config.Durable and closes it on [Store.Close].
func (b *Builder) WithDurable(tier storage.Tier) *Builder {
	b.durable = tier
	return b
}

// WithDecoder replaces the token decoder. Defaults to [jwt.NewDecoder].
func (b *Builder) WithDecoder(d TokenDecoder) *Builder {
	b.decoder = d
	return b
}

// WithLogger sets the logger for absorbed failures. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where session events go when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source, mainly for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the CheckAuth latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, opens the durable tier when needed, sweeps stale
// registry entries when configured, and returns a Store ready for use.
func (b *Builder) Build(ctx context.Context) (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	s := &Store{
		config:    cfg,
		ephemeral: b.ephemeral,
		durable:   b.durable,
		decoder:   b.decoder,
		logger:    b.logger,
		now:       b.now,
	}

	if s.ephemeral == nil {
		s.ephemeral = storage.NewMemory()
	}
	if s.durable == nil {
		tier, err := storage.Open(ctx, cfg.Durable)
		if err != nil {
			return nil, err
		}
		s.durable = tier
		if c, ok := tier.(io.Closer); ok {
			s.closers = append(s.closers, c.Close)
		}
	}
	if s.decoder == nil {
		s.decoder = jwt.NewDecoder()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.metrics = NewMetrics(cfg.Metrics)
	s.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	s.registry = session.NewRegistry(s.durable, session.WithCorruptionHook(func(err error) {
		s.metrics.Inc(MetricRegistryCorrupt)
		s.logger.Warn("tabauth: active accounts registry unreadable, treating as empty", "error", err)
	}))

	b.built = true

	if cfg.Session.SweepOnStart {
		s.Sweep(ctx)
	}
	if cfg.Session.SweepInterval > 0 {
		s.startSweeper(cfg.Session.SweepInterval)
	}

	return s, nil
}
