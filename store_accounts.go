package tabauth

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/bazaarops/tabauth/session"
)

// ActiveAccount is one registry entry as shown to an account picker.
type ActiveAccount struct {
	TabID      string
	UserID     string
	RoleID     string
	Token      string
	LastActive time.Time
	// Current marks the entry owned by the calling Store.
	Current bool
}

// ActiveAccountsList returns the accounts published by open tabs, most recently active
// first. Stale entries are hidden when Session.FilterStaleOnRead is set.
func (s *Store) ActiveAccountsList(ctx context.Context) []ActiveAccount {
	s.mu.Lock()
	tabID := s.tabIDLocked(ctx)
	s.mu.Unlock()

	accounts, err := s.registry.Load(ctx)
	if err != nil {
		s.absorb("read registry", err)
		return nil
	}

	now := s.now()
	list := make([]ActiveAccount, 0, len(accounts))
	for id, acct := range accounts {
		if s.config.Session.FilterStaleOnRead && acct.Stale(now, s.config.Session.StaleAfter) {
			continue
		}
		list = append(list, ActiveAccount{
			TabID:      id,
			UserID:     acct.UserID,
			RoleID:     acct.RoleID,
			Token:      acct.Token,
			LastActive: time.UnixMilli(acct.LastActive),
			Current:    id == tabID,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].LastActive.Equal(list[j].LastActive) {
			return list[i].LastActive.After(list[j].LastActive)
		}
		return list[i].TabID < list[j].TabID
	})
	return list
}

// SwitchToAccount finds the most recently active entry for userID published by another
// tab and switches this tab to it. It reports whether the tab ended up as userID.
func (s *Store) SwitchToAccount(ctx context.Context, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || userID == "" {
		return false
	}

	tabID := s.tabIDLocked(ctx)
	accounts, err := s.registry.Load(ctx)
	if err != nil {
		s.absorb("read registry", err)
		return false
	}

	now := s.now()
	var (
		target session.Account
		found  bool
	)
	for id, acct := range accounts {
		if id == tabID || acct.UserID != userID {
			continue
		}
		if acct.Stale(now, s.config.Session.StaleAfter) {
			continue
		}
		if !found || acct.LastActive > target.LastActive {
			target = acct
			found = true
		}
	}
	if !found {
		s.logger.Warn("tabauth: switch target unavailable", "tab_id", tabID, "user_id", userID, "error", ErrAccountNotFound)
		return false
	}

	if !s.switchLocked(ctx, target.Token) {
		return false
	}
	return s.state.IsAuthenticated && s.state.UserID == userID
}

// Sweep purges registry entries inactive for longer than Session.StaleAfter and returns
// how many were removed. Build runs it when Session.SweepOnStart is set.
func (s *Store) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.registry.Sweep(ctx, s.now(), s.config.Session.StaleAfter)
	if err != nil {
		s.absorb("sweep registry", err)
		return 0
	}
	if len(removed) == 0 {
		return 0
	}

	s.metrics.Add(MetricRegistryPurged, uint64(len(removed)))
	s.logger.Info("tabauth: purged stale registry entries", "count", len(removed))
	s.emit(ctx, AuditEvent{
		EventType: EventRegistrySwept,
		Success:   true,
		Metadata:  map[string]string{"removed": strconv.Itoa(len(removed))},
	})
	return len(removed)
}
