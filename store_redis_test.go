package tabauth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bazaarops/tabauth/session"
	"github.com/bazaarops/tabauth/storage"
)

func redisTabConfig(mr *miniredis.Miniredis) *Config {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Durable.Type = storage.TypeRedis
	cfg.Durable.Redis.Addr = mr.Addr()
	cfg.Durable.Redis.PingOnCreate = true
	return &cfg
}

func openRedisTab(t *testing.T, mr *miniredis.Miniredis, clock *testClock) *Store {
	t.Helper()
	// nil durable: Build dials the redis tier from config and owns it.
	return openTab(t, nil, clock, tabOptions{config: redisTabConfig(mr)})
}

func TestRedisTabsShareRegistry(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()

	tabA := openRedisTab(t, mr, clock)
	tabB := openRedisTab(t, mr, clock)

	tabA.Login(ctx, mintToken(t, signer, "alice", "admin", clock.Now().Add(time.Hour)), true)
	clock.Advance(time.Second)
	tabB.Login(ctx, mintToken(t, signer, "bob", "viewer", clock.Now().Add(time.Hour)), false)

	raw, err := mr.Get("tabauth:" + session.ActiveAccountsKey)
	if err != nil {
		t.Fatalf("registry missing in redis: %v", err)
	}
	accounts, err := session.ParseAccounts(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 entries, got %v", accounts)
	}

	if !mr.Exists("tabauth:" + session.DurableAuthKey(tabA.TabID(ctx))) {
		t.Fatal("remembered session must be stored durably")
	}
	if mr.Exists("tabauth:" + session.DurableAuthKey(tabB.TabID(ctx))) {
		t.Fatal("rememberMe=false must not write the durable record")
	}

	if !tabB.SwitchToAccount(ctx, "alice") {
		t.Fatal("switch across tabs failed")
	}
	if st := tabB.State(); st.UserID != "alice" {
		t.Fatalf("unexpected state %+v", st)
	}

	tabA.Close(ctx)
	list := tabB.ActiveAccountsList(ctx)
	if len(list) != 1 || list[0].TabID != tabB.TabID(ctx) {
		t.Fatalf("expected only tab B after tab A closed, got %+v", list)
	}
}

func TestRedisTabReloadRestoresSession(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()
	ephemeral := storage.NewMemory()

	cfg := redisTabConfig(mr)
	tab := openTab(t, nil, clock, tabOptions{config: cfg, ephemeral: ephemeral})
	tab.Login(ctx, mintToken(t, signer, "alice", "admin", clock.Now().Add(time.Hour)), true)
	tab.Close(ctx)

	// Browser restart: the tab id survives, the ephemeral record does not.
	_ = ephemeral.Delete(ctx, session.CurrentAuthKey)

	reopened := openTab(t, nil, clock, tabOptions{config: cfg, ephemeral: ephemeral})
	if st := reopened.CheckAuth(ctx); !st.IsAuthenticated || st.UserID != "alice" {
		t.Fatalf("expected restore from redis, got %+v", st)
	}
	if list := reopened.ActiveAccountsList(ctx); len(list) != 1 || !list[0].Current {
		t.Fatalf("restore must republish the registry entry, got %+v", list)
	}
}

func TestRedisUnavailableIsAbsorbed(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()

	tab := openRedisTab(t, mr, clock)
	mr.Close()

	st := tab.Login(ctx, mintToken(t, signer, "alice", "admin", clock.Now().Add(time.Hour)), true)
	if !st.IsAuthenticated {
		t.Fatalf("login must authenticate despite storage failure, got %+v", st)
	}
	if st := tab.CheckAuth(ctx); st.UserID != "alice" {
		t.Fatalf("ephemeral record must still restore, got %+v", st)
	}
	if list := tab.ActiveAccountsList(ctx); list != nil {
		t.Fatalf("expected nil list when registry unreachable, got %+v", list)
	}
	if tab.Metrics().Value(MetricStorageFailure) == 0 {
		t.Fatal("expected storage failures to be counted")
	}
	tab.Logout(ctx)
	if tab.State().IsAuthenticated {
		t.Fatal("logout must clear state even when redis is down")
	}
}

func TestBuildFailsWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisTabConfig(mr)
	mr.Close()

	if _, err := New().WithConfig(*cfg).Build(context.Background()); err == nil {
		t.Fatal("expected build to fail when ping fails")
	}
}
