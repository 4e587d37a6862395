package tabauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bazaarops/tabauth/internal"
	"github.com/bazaarops/tabauth/session"
	"github.com/bazaarops/tabauth/storage"
)

// State is the identity the tab currently presents. It is decoded from an unverified
// token and is only a display hint.
type State struct {
	UserID          string
	RoleID          string
	Exp             int64 // epoch seconds
	IsAuthenticated bool
}

// Store is the session store of one tab. Build it with [New] and [Builder.Build].
//
// Exported methods are safe for concurrent use and are serialized per Store.
type Store struct {
	mu sync.Mutex

	config    Config
	ephemeral storage.Tier
	durable   storage.Tier
	registry  *session.Registry
	decoder   TokenDecoder
	logger    *slog.Logger
	metrics   *Metrics
	audit     *auditDispatcher
	now       func() time.Time

	state  State
	tabID  string
	closed bool

	closers   []func() error
	stopSweep chan struct{}
	sweepWG   sync.WaitGroup
}

// State returns the current identity.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TabID returns this tab's identifier, generating and caching it in the ephemeral tier
// on first use.
func (s *Store) TabID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabIDLocked(ctx)
}

func (s *Store) tabIDLocked(ctx context.Context) string {
	if s.tabID != "" {
		return s.tabID
	}

	cached, ok, err := s.ephemeral.Get(ctx, session.TabIDKey)
	s.absorb("read tab id", err)
	if ok && cached != "" {
		s.tabID = cached
		return s.tabID
	}

	id, err := internal.NewTabID(s.now())
	if err != nil {
		s.logger.Error("tabauth: tab id generation failed", "error", err)
		id = fmt.Sprintf("tab_%d", s.now().UnixMilli())
	}
	s.tabID = id
	s.absorb("write tab id", s.ephemeral.Set(ctx, session.TabIDKey, id))
	return s.tabID
}

// Metrics exposes the Store's counters.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot copies the current counters for exporters.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped returns how many events were dropped because the audit buffer was full.
func (s *Store) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// Close is the tab's unload hook: it withdraws this tab from the active-accounts
// registry, stops the sweeper, flushes audit events, and releases tiers the Builder
// opened. Session records are kept so a later Store over the same tiers can restore
// them. Close is idempotent.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	tabID := s.tabIDLocked(ctx)
	s.absorb("remove registry entry", s.registry.Remove(ctx, tabID))
	s.emit(ctx, AuditEvent{EventType: EventTabClosed, Success: true})
	s.mu.Unlock()

	if s.stopSweep != nil {
		close(s.stopSweep)
		s.sweepWG.Wait()
	}
	s.audit.Close()

	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.logger.Warn("tabauth: closing tier failed", "tab_id", tabID, "error", err)
		}
	}
}

func (s *Store) startSweeper(interval time.Duration) {
	s.stopSweep = make(chan struct{})
	s.sweepWG.Add(1)

	go func() {
		defer s.sweepWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopSweep:
				return
			}
		}
	}()
}

// absorb logs and counts a storage failure. Store operations never surface them.
func (s *Store) absorb(op string, err error) {
	if err == nil {
		return
	}
	s.metrics.Inc(MetricStorageFailure)
	s.logger.Warn("tabauth: storage operation failed", "op", op, "tab_id", s.tabID, "error", err)
}

func (s *Store) emit(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if event.TabID == "" {
		event.TabID = s.tabID
	}
	s.audit.Emit(ctx, event)
}
