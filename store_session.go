package tabauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazaarops/tabauth/session"
)

// Login decodes token and, when it carries uid and rid, authenticates the tab. The
// record is always written to the ephemeral tier and, when rememberMe is set, to the
// durable tier under this tab's key. The tab's registry entry is upserted.
//
// An empty or unusable token leaves the Store unchanged.
func (s *Store) Login(ctx context.Context, token string, rememberMe bool) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("tabauth: login ignored", "error", ErrStoreClosed)
		return s.state
	}
	s.loginLocked(ctx, token, rememberMe)
	return s.state
}

func (s *Store) loginLocked(ctx context.Context, token string, rememberMe bool) bool {
	tabID := s.tabIDLocked(ctx)

	if strings.TrimSpace(token) == "" {
		s.rejectLogin(ctx, ErrTokenMissing)
		return false
	}

	claims, err := s.decoder.Decode(token)
	if err != nil {
		s.rejectLogin(ctx, err)
		return false
	}
	if !claims.Complete() {
		s.rejectLogin(ctx, ErrTokenClaimsMissing)
		return false
	}

	record := session.Record{
		UserID: claims.UserID,
		RoleID: claims.RoleID,
		Exp:    claims.ExpiresAt,
		Token:  token,
	}
	s.state = State{
		UserID:          record.UserID,
		RoleID:          record.RoleID,
		Exp:             record.Exp,
		IsAuthenticated: true,
	}

	raw, err := session.EncodeRecord(record)
	if err != nil {
		s.absorb("encode record", err)
	} else {
		if rememberMe {
			s.absorb("write durable record", s.durable.Set(ctx, session.DurableAuthKey(tabID), raw))
		}
		s.absorb("write ephemeral record", s.ephemeral.Set(ctx, session.CurrentAuthKey, raw))
	}

	s.absorb("update registry entry", s.registry.Put(ctx, tabID, session.Account{
		UserID: record.UserID,
		RoleID: record.RoleID,
		Token:  token,
	}, s.now()))

	s.metrics.Inc(MetricLoginSuccess)
	s.logger.Debug("tabauth: logged in", "tab_id", tabID, "user_id", record.UserID, "remember_me", rememberMe)
	s.emit(ctx, AuditEvent{
		EventType: EventLogin,
		UserID:    record.UserID,
		RoleID:    record.RoleID,
		Success:   true,
		Metadata:  map[string]string{"remember_me": fmt.Sprint(rememberMe)},
	})
	return true
}

func (s *Store) rejectLogin(ctx context.Context, err error) {
	s.metrics.Inc(MetricLoginRejected)
	s.logger.Warn("tabauth: login rejected", "tab_id", s.tabID, "error", err)
	s.emit(ctx, AuditEvent{
		EventType: EventLoginRejected,
		Success:   false,
		Error:     err.Error(),
	})
}

// SwitchAccount drops this tab's ephemeral record and registry entry, then logs in with
// token and rememberMe set. An unusable token leaves the tab's identity in memory but
// withdrawn from storage.
func (s *Store) SwitchAccount(ctx context.Context, token string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("tabauth: switch ignored", "error", ErrStoreClosed)
		return s.state
	}
	s.switchLocked(ctx, token)
	return s.state
}

func (s *Store) switchLocked(ctx context.Context, token string) bool {
	tabID := s.tabIDLocked(ctx)
	previous := s.state.UserID

	s.absorb("delete ephemeral record", s.ephemeral.Delete(ctx, session.CurrentAuthKey))
	s.absorb("remove registry entry", s.registry.Remove(ctx, tabID))

	if !s.loginLocked(ctx, token, true) {
		return false
	}

	s.metrics.Inc(MetricSwitchAccount)
	s.emit(ctx, AuditEvent{
		EventType: EventSwitchAccount,
		UserID:    s.state.UserID,
		RoleID:    s.state.RoleID,
		Success:   true,
		Metadata:  map[string]string{"previous_user_id": previous},
	})
	return true
}

// Logout clears the identity and removes this tab's records and registry entry.
// Calling it on a logged-out tab is harmless.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.logoutLocked(ctx, "")
}

func (s *Store) logoutLocked(ctx context.Context, reason string) {
	tabID := s.tabIDLocked(ctx)
	userID := s.state.UserID

	s.state = State{}

	s.absorb("delete durable record", s.durable.Delete(ctx, session.DurableAuthKey(tabID)))
	s.absorb("delete ephemeral record", s.ephemeral.Delete(ctx, session.CurrentAuthKey))
	s.absorb("remove registry entry", s.registry.Remove(ctx, tabID))

	s.metrics.Inc(MetricLogout)
	event := AuditEvent{
		EventType: EventLogout,
		UserID:    userID,
		Success:   true,
	}
	if reason != "" {
		event.Metadata = map[string]string{"reason": reason}
	}
	s.emit(ctx, event)
}

// CheckAuth restores the tab's session from storage. The ephemeral record wins over the
// durable one. An expired record, or one whose token disagrees with it, logs the tab
// out. Without any record the state is left as is.
func (s *Store) CheckAuth(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.state
	}

	start := time.Now()
	defer func() {
		s.metrics.Observe(MetricCheckAuthLatency, time.Since(start))
	}()

	tabID := s.tabIDLocked(ctx)

	raw, found := s.readRecord(ctx, tabID)
	if !found {
		s.metrics.Inc(MetricCheckAuthEmpty)
		return s.state
	}

	record, err := session.DecodeRecord(raw)
	if err != nil {
		s.discardSession(ctx, MetricSessionTampered, EventSessionTampered, err)
		return s.state
	}

	now := s.now()
	if record.Expired(now) {
		s.discardSession(ctx, MetricSessionExpired, EventSessionExpired,
			fmt.Errorf("%w: exp %d", ErrSessionExpired, record.Exp))
		return s.state
	}

	if err := s.verifyRecord(record); err != nil {
		s.discardSession(ctx, MetricSessionTampered, EventSessionTampered, err)
		return s.state
	}

	s.state = State{
		UserID:          record.UserID,
		RoleID:          record.RoleID,
		Exp:             record.Exp,
		IsAuthenticated: true,
	}
	s.absorb("refresh registry entry", s.registry.Put(ctx, tabID, session.Account{
		UserID: record.UserID,
		RoleID: record.RoleID,
		Token:  record.Token,
	}, now))

	s.metrics.Inc(MetricCheckAuthRestored)
	s.emit(ctx, AuditEvent{
		EventType: EventSessionRestored,
		UserID:    record.UserID,
		RoleID:    record.RoleID,
		Success:   true,
	})
	return s.state
}

func (s *Store) readRecord(ctx context.Context, tabID string) (string, bool) {
	raw, ok, err := s.ephemeral.Get(ctx, session.CurrentAuthKey)
	s.absorb("read ephemeral record", err)
	if ok {
		return raw, true
	}

	raw, ok, err = s.durable.Get(ctx, session.DurableAuthKey(tabID))
	s.absorb("read durable record", err)
	return raw, ok
}

func (s *Store) verifyRecord(record session.Record) error {
	claims, err := s.decoder.Decode(record.Token)
	if err != nil {
		return errors.Join(ErrSessionTampered, err)
	}
	if claims.UserID != record.UserID || claims.RoleID != record.RoleID {
		return fmt.Errorf("%w: token uid=%q rid=%q", ErrSessionTampered, claims.UserID, claims.RoleID)
	}
	return nil
}

func (s *Store) discardSession(ctx context.Context, metric MetricID, eventType string, err error) {
	s.metrics.Inc(metric)
	s.logger.Warn("tabauth: discarding stored session", "tab_id", s.tabID, "error", err)
	s.emit(ctx, AuditEvent{
		EventType: eventType,
		Success:   false,
		Error:     err.Error(),
	})
	s.logoutLocked(ctx, eventType)
}
