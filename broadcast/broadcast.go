package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bazaarops/tabauth"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "tabauth:events"

// ErrNoClient is returned when a nil Redis client is supplied.
var ErrNoClient = errors.New("broadcast: redis client is nil")

// Publisher publishes session events as JSON on a Redis channel.
type Publisher struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger logs publish failures to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher returns a Publisher for channel, or [DefaultChannel] when channel is blank.
func NewPublisher(client redis.UniversalClient, channel string, opts ...Option) (*Publisher, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}

	p := &Publisher{
		client:  client,
		channel: channel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit implements tabauth.AuditSink. Failures are counted and logged.
func (p *Publisher) Emit(ctx context.Context, event tabauth.AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.fail(event, err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.fail(event, err)
		return
	}
	p.published.Add(1)
}

func (p *Publisher) fail(event tabauth.AuditEvent, err error) {
	p.failed.Add(1)
	p.logger.Warn("broadcast: publish failed", "channel", p.channel, "event_type", event.EventType, "error", err)
}

// Channel returns the channel events are published on.
func (p *Publisher) Channel() string {
	return p.channel
}

// Published returns how many events were delivered to Redis.
func (p *Publisher) Published() uint64 {
	return p.published.Load()
}

// Failed returns how many events could not be published.
func (p *Publisher) Failed() uint64 {
	return p.failed.Load()
}

// Subscription streams events from a channel until Close or ctx is done.
type Subscription struct {
	pubsub *redis.PubSub
	events chan tabauth.AuditEvent
	done   chan struct{}
}

// Subscribe listens on channel. The subscription is confirmed before Subscribe returns,
// so events published afterwards are delivered. Messages that are not events are skipped.
func Subscribe(ctx context.Context, client redis.UniversalClient, channel string) (*Subscription, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("broadcast: subscribe %s: %w", channel, err)
	}

	s := &Subscription{
		pubsub: pubsub,
		events: make(chan tabauth.AuditEvent, 64),
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.events)

	messages := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event tabauth.AuditEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil || event.EventType == "" {
				continue
			}
			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

// Events returns the event stream. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan tabauth.AuditEvent {
	return s.events
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.pubsub.Close()
}
