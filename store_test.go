package tabauth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bazaarops/tabauth/internal/logging"
	"github.com/bazaarops/tabauth/jwt"
	"github.com/bazaarops/tabauth/session"
	"github.com/bazaarops/tabauth/storage"
)

const testSigningKey = "tabauth-test-signing-key-0123456789"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSigner(t testing.TB) *jwt.Signer {
	t.Helper()

	signer, err := jwt.NewSigner(jwt.SignerConfig{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(testSigningKey),
	})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	return signer
}

func mintToken(t testing.TB, signer *jwt.Signer, uid, rid string, exp time.Time) string {
	t.Helper()

	token, err := signer.SignWithExpiry(uid, rid, exp)
	if err != nil {
		t.Fatalf("SignWithExpiry failed: %v", err)
	}
	return token
}

type tabOptions struct {
	ephemeral storage.Tier
	config    *Config
	sink      AuditSink
}

func openTab(t *testing.T, durable storage.Tier, clock *testClock, opts tabOptions) *Store {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	if opts.config != nil {
		cfg = *opts.config
	}

	b := New().
		WithConfig(cfg).
		WithDurable(durable).
		WithClock(clock.Now).
		WithLogger(logging.Discard())
	if opts.ephemeral != nil {
		b.WithEphemeral(opts.ephemeral)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}

	store, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func TestBuilderRejectsReuse(t *testing.T) {
	b := New().WithLogger(logging.Discard())
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	if _, err := b.Build(context.Background()); err == nil {
		t.Fatal("expected second build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.StaleAfter = 0

	_, err := New().WithConfig(cfg).Build(context.Background())
	if err == nil {
		t.Fatal("expected invalid config error")
	}
	if !strings.Contains(err.Error(), ErrInvalidConfig.Error()) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoginRememberMeReloadRestores(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ephemeral := storage.NewMemory()
	ctx := context.Background()

	exp := clock.Now().Add(time.Hour)
	token := mintToken(t, signer, "u-1", "admin", exp)

	tab := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	got := tab.Login(ctx, token, true)
	want := State{UserID: "u-1", RoleID: "admin", Exp: exp.Unix(), IsAuthenticated: true}
	if got != want {
		t.Fatalf("login state = %+v, want %+v", got, want)
	}

	reloaded := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	if st := reloaded.State(); st.IsAuthenticated {
		t.Fatalf("fresh store must start unauthenticated, got %+v", st)
	}
	if st := reloaded.CheckAuth(ctx); st != want {
		t.Fatalf("reload state = %+v, want %+v", st, want)
	}
	if reloaded.TabID(ctx) != tab.TabID(ctx) {
		t.Fatal("reload must keep the tab id cached in the ephemeral tier")
	}

	// Ephemeral record gone, durable record for the same tab still present.
	if err := ephemeral.Delete(ctx, session.CurrentAuthKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	restored := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	if st := restored.CheckAuth(ctx); st != want {
		t.Fatalf("durable fallback state = %+v, want %+v", st, want)
	}
}

func TestLoginWritesStorageSchema(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ephemeral := storage.NewMemory()
	ctx := context.Background()

	exp := clock.Now().Add(time.Hour)
	token := mintToken(t, signer, "u-1", "r-9", exp)

	tab := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	tab.Login(ctx, token, true)
	tabID := tab.TabID(ctx)

	if !strings.HasPrefix(tabID, "tab_") {
		t.Fatalf("unexpected tab id %q", tabID)
	}
	if cached, ok, _ := ephemeral.Get(ctx, session.TabIDKey); !ok || cached != tabID {
		t.Fatalf("tab id not cached: %q %v", cached, ok)
	}

	for name, tier := range map[string]storage.Tier{"ephemeral": ephemeral, "durable": durable} {
		key := session.CurrentAuthKey
		if name == "durable" {
			key = session.DurableAuthKey(tabID)
		}
		raw, ok, err := tier.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("%s record missing: ok=%v err=%v", name, ok, err)
		}
		rec, err := session.DecodeRecord(raw)
		if err != nil {
			t.Fatalf("%s record decode: %v", name, err)
		}
		want := session.Record{UserID: "u-1", RoleID: "r-9", Exp: exp.Unix(), Token: token}
		if rec != want {
			t.Fatalf("%s record = %+v, want %+v", name, rec, want)
		}
	}

	accounts, err := session.NewRegistry(durable).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, ok := accounts[tabID]
	if !ok {
		t.Fatalf("registry entry missing for %s: %v", tabID, accounts)
	}
	if entry.UserID != "u-1" || entry.RoleID != "r-9" || entry.Token != token {
		t.Fatalf("unexpected registry entry %+v", entry)
	}
	if entry.LastActive != clock.Now().UnixMilli() {
		t.Fatalf("lastActive = %d, want %d", entry.LastActive, clock.Now().UnixMilli())
	}
}

func TestLoginInvalidTokenLeavesStateUnchanged(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()
	tab := openTab(t, storage.NewMemory(), clock, tabOptions{})

	good := mintToken(t, signer, "u-1", "admin", clock.Now().Add(time.Hour))
	before := tab.Login(ctx, good, false)

	invalid := []string{
		"",
		"   ",
		"not-a-jwt",
		mintToken(t, signer, "", "admin", clock.Now().Add(time.Hour)),
		mintToken(t, signer, "u-2", "", clock.Now().Add(time.Hour)),
	}
	for _, token := range invalid {
		if got := tab.Login(ctx, token, true); got != before {
			t.Fatalf("Login(%q) changed state to %+v, want %+v", token, got, before)
		}
	}

	if got := tab.Metrics().Value(MetricLoginRejected); got != uint64(len(invalid)) {
		t.Fatalf("rejected logins = %d, want %d", got, len(invalid))
	}
}

func TestLoginInvalidTokenOnFreshTabStaysEmpty(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()
	durable := storage.NewMemory()
	tab := openTab(t, durable, clock, tabOptions{})

	tab.Login(ctx, mintToken(t, signer, "", "", clock.Now().Add(time.Hour)), true)
	if st := tab.State(); st != (State{}) {
		t.Fatalf("expected empty state, got %+v", st)
	}
	if _, ok, _ := durable.Get(ctx, session.ActiveAccountsKey); ok {
		t.Fatal("rejected login must not publish a registry entry")
	}
}

func TestCheckAuthExpiredRecordLogsOut(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ephemeral := storage.NewMemory()
	ctx := context.Background()

	token := mintToken(t, signer, "u-1", "admin", clock.Now().Add(time.Minute))
	tab := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	tab.Login(ctx, token, true)
	tabID := tab.TabID(ctx)

	clock.Advance(2 * time.Minute)

	if st := tab.CheckAuth(ctx); st.IsAuthenticated {
		t.Fatalf("expired session restored: %+v", st)
	}
	if _, ok, _ := ephemeral.Get(ctx, session.CurrentAuthKey); ok {
		t.Fatal("ephemeral record must be removed")
	}
	if _, ok, _ := durable.Get(ctx, session.DurableAuthKey(tabID)); ok {
		t.Fatal("durable record must be removed")
	}
	accounts, _ := session.NewRegistry(durable).Load(ctx)
	if _, ok := accounts[tabID]; ok {
		t.Fatal("registry entry must be removed")
	}
	if got := tab.Metrics().Value(MetricSessionExpired); got != 1 {
		t.Fatalf("expired metric = %d, want 1", got)
	}
}

func TestCheckAuthTokenWithoutExpiryIsExpired(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()
	ephemeral := storage.NewMemory()

	tab := openTab(t, storage.NewMemory(), clock, tabOptions{ephemeral: ephemeral})
	// Epoch-zero expiry stands in for a token that carries no exp claim.
	tab.Login(ctx, mintToken(t, signer, "u-1", "admin", time.Unix(0, 0)), false)

	if st := tab.CheckAuth(ctx); st.IsAuthenticated {
		t.Fatalf("session without expiry restored: %+v", st)
	}
}

func TestCheckAuthTamperedRecordLogsOut(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()
	ephemeral := storage.NewMemory()

	exp := clock.Now().Add(time.Hour)
	tab := openTab(t, storage.NewMemory(), clock, tabOptions{ephemeral: ephemeral})
	tab.Login(ctx, mintToken(t, signer, "u-1", "viewer", exp), false)

	forged, err := session.EncodeRecord(session.Record{
		UserID: "u-1",
		RoleID: "admin",
		Exp:    exp.Unix(),
		Token:  mintToken(t, signer, "u-1", "viewer", exp),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ephemeral.Set(ctx, session.CurrentAuthKey, forged); err != nil {
		t.Fatalf("set: %v", err)
	}

	if st := tab.CheckAuth(ctx); st.IsAuthenticated {
		t.Fatalf("tampered session restored: %+v", st)
	}
	if got := tab.Metrics().Value(MetricSessionTampered); got != 1 {
		t.Fatalf("tampered metric = %d, want 1", got)
	}

	if err := ephemeral.Set(ctx, session.CurrentAuthKey, "{broken"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if st := tab.CheckAuth(ctx); st.IsAuthenticated {
		t.Fatalf("corrupt record restored: %+v", st)
	}
	if _, ok, _ := ephemeral.Get(ctx, session.CurrentAuthKey); ok {
		t.Fatal("corrupt record must be removed")
	}
}

func TestCheckAuthWithoutRecordKeepsState(t *testing.T) {
	clock := newTestClock()
	ctx := context.Background()
	tab := openTab(t, storage.NewMemory(), clock, tabOptions{})

	if st := tab.CheckAuth(ctx); st != (State{}) {
		t.Fatalf("expected empty state, got %+v", st)
	}
	if got := tab.Metrics().Value(MetricCheckAuthEmpty); got != 1 {
		t.Fatalf("empty metric = %d, want 1", got)
	}
}

func TestCheckAuthRefreshesLastActive(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ctx := context.Background()

	tab := openTab(t, durable, clock, tabOptions{})
	tab.Login(ctx, mintToken(t, signer, "u-1", "admin", clock.Now().Add(48*time.Hour)), false)

	clock.Advance(10 * time.Minute)
	tab.CheckAuth(ctx)

	accounts, _ := session.NewRegistry(durable).Load(ctx)
	if got := accounts[tab.TabID(ctx)].LastActive; got != clock.Now().UnixMilli() {
		t.Fatalf("lastActive = %d, want %d", got, clock.Now().UnixMilli())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ephemeral := storage.NewMemory()
	ctx := context.Background()

	tab := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	tab.Login(ctx, mintToken(t, signer, "u-1", "admin", clock.Now().Add(time.Hour)), true)

	tab.Logout(ctx)
	once := tab.State()
	durableOnce := durable.Len()
	ephemeralOnce := ephemeral.Len()

	tab.Logout(ctx)
	if tab.State() != once || once != (State{}) {
		t.Fatalf("state after second logout = %+v, want %+v", tab.State(), once)
	}
	if durable.Len() != durableOnce || ephemeral.Len() != ephemeralOnce {
		t.Fatal("second logout changed storage")
	}
	if _, ok, _ := ephemeral.Get(ctx, session.CurrentAuthKey); ok {
		t.Fatal("ephemeral record survived logout")
	}
	if _, ok, _ := durable.Get(ctx, session.DurableAuthKey(tab.TabID(ctx))); ok {
		t.Fatal("durable record survived logout")
	}
}

func TestSweepOnBuildDropsStaleEntries(t *testing.T) {
	clock := newTestClock()
	durable := storage.NewMemory()
	ctx := context.Background()
	reg := session.NewRegistry(durable)

	if err := reg.Put(ctx, "tab_old", session.Account{UserID: "old"}, clock.Now().Add(-25*time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := reg.Put(ctx, "tab_recent", session.Account{UserID: "recent"}, clock.Now().Add(-23*time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	tab := openTab(t, durable, clock, tabOptions{})

	accounts, _ := reg.Load(ctx)
	if _, ok := accounts["tab_old"]; ok {
		t.Fatal("stale entry survived the start sweep")
	}
	if _, ok := accounts["tab_recent"]; !ok {
		t.Fatal("recent entry must be kept")
	}
	if got := tab.Metrics().Value(MetricRegistryPurged); got != 1 {
		t.Fatalf("purged metric = %d, want 1", got)
	}
}

func TestSweepOnBuildDisabled(t *testing.T) {
	clock := newTestClock()
	durable := storage.NewMemory()
	ctx := context.Background()
	reg := session.NewRegistry(durable)
	_ = reg.Put(ctx, "tab_old", session.Account{UserID: "old"}, clock.Now().Add(-48*time.Hour))

	cfg := DefaultConfig()
	cfg.Session.SweepOnStart = false
	cfg.Session.FilterStaleOnRead = false
	tab := openTab(t, durable, clock, tabOptions{config: &cfg})

	if list := tab.ActiveAccountsList(ctx); len(list) != 1 {
		t.Fatalf("expected stale entry visible without filtering, got %+v", list)
	}
	if n := tab.Sweep(ctx); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if list := tab.ActiveAccountsList(ctx); len(list) != 0 {
		t.Fatalf("expected empty list after sweep, got %+v", list)
	}
}

func TestPeriodicSweeper(t *testing.T) {
	clock := newTestClock()
	durable := storage.NewMemory()
	ctx := context.Background()
	reg := session.NewRegistry(durable)

	cfg := DefaultConfig()
	cfg.Session.SweepInterval = 5 * time.Millisecond
	openTab(t, durable, clock, tabOptions{config: &cfg})

	_ = reg.Put(ctx, "tab_old", session.Account{UserID: "old"}, clock.Now().Add(-48*time.Hour))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		accounts, _ := reg.Load(ctx)
		if _, ok := accounts["tab_old"]; !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("periodic sweeper did not purge the stale entry")
}

func TestTabIDsAreDistinct(t *testing.T) {
	clock := newTestClock()
	durable := storage.NewMemory()
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		id := openTab(t, durable, clock, tabOptions{}).TabID(ctx)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate tab id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestRememberMeFalseScenario(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ephemeral := storage.NewMemory()
	ctx := context.Background()

	tab := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	tab.Login(ctx, mintToken(t, signer, "u-1", "admin", clock.Now().Add(time.Hour)), false)
	tabID := tab.TabID(ctx)

	if _, ok, _ := durable.Get(ctx, session.DurableAuthKey(tabID)); ok {
		t.Fatal("rememberMe=false must not write the durable record")
	}

	reloaded := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	if st := reloaded.CheckAuth(ctx); !st.IsAuthenticated || st.UserID != "u-1" {
		t.Fatalf("reload from ephemeral failed: %+v", st)
	}

	if err := ephemeral.Delete(ctx, session.CurrentAuthKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	newSession := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	if st := newSession.CheckAuth(ctx); st.IsAuthenticated {
		t.Fatalf("expected unauthenticated without durable record, got %+v", st)
	}
}

func TestSwitchAccountScenario(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ctx := context.Background()

	tab := openTab(t, durable, clock, tabOptions{})
	tab.Login(ctx, mintToken(t, signer, "userA", "admin", clock.Now().Add(time.Hour)), false)
	tabID := tab.TabID(ctx)

	tokenB := mintToken(t, signer, "userB", "viewer", clock.Now().Add(2*time.Hour))
	st := tab.SwitchAccount(ctx, tokenB)
	if st.UserID != "userB" || st.RoleID != "viewer" || !st.IsAuthenticated {
		t.Fatalf("unexpected state after switch: %+v", st)
	}

	accounts, _ := session.NewRegistry(durable).Load(ctx)
	if len(accounts) != 1 {
		t.Fatalf("expected exactly one registry entry, got %v", accounts)
	}
	if entry := accounts[tabID]; entry.UserID != "userB" || entry.Token != tokenB {
		t.Fatalf("registry entry under %s = %+v, want userB", tabID, entry)
	}
	if _, ok, _ := durable.Get(ctx, session.DurableAuthKey(tabID)); !ok {
		t.Fatal("switch must persist the new account durably")
	}
	if got := tab.Metrics().Value(MetricSwitchAccount); got != 1 {
		t.Fatalf("switch metric = %d, want 1", got)
	}
}

func TestActiveAccountsAndSwitchToAccount(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ctx := context.Background()

	tabA := openTab(t, durable, clock, tabOptions{})
	tabA.Login(ctx, mintToken(t, signer, "alice", "admin", clock.Now().Add(time.Hour)), true)
	clock.Advance(time.Second)

	tabB := openTab(t, durable, clock, tabOptions{})
	tabB.Login(ctx, mintToken(t, signer, "bob", "viewer", clock.Now().Add(time.Hour)), true)

	list := tabB.ActiveAccountsList(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 accounts, got %+v", list)
	}
	if list[0].UserID != "bob" || !list[0].Current {
		t.Fatalf("expected bob first and current, got %+v", list[0])
	}
	if list[1].UserID != "alice" || list[1].Current {
		t.Fatalf("expected alice second, got %+v", list[1])
	}

	if tabB.SwitchToAccount(ctx, "carol") {
		t.Fatal("switch to unknown account must fail")
	}
	if tabB.State().UserID != "bob" {
		t.Fatal("failed switch must keep the current account")
	}

	if !tabB.SwitchToAccount(ctx, "alice") {
		t.Fatal("switch to alice failed")
	}
	if st := tabB.State(); st.UserID != "alice" || st.RoleID != "admin" {
		t.Fatalf("unexpected state after SwitchToAccount: %+v", st)
	}

	accounts, _ := session.NewRegistry(durable).Load(ctx)
	if accounts[tabB.TabID(ctx)].UserID != "alice" || accounts[tabA.TabID(ctx)].UserID != "alice" {
		t.Fatalf("expected both tabs on alice, got %+v", accounts)
	}
}

func TestCorruptRegistryTreatedAsEmpty(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ctx := context.Background()

	if err := durable.Set(ctx, session.ActiveAccountsKey, "{not json"); err != nil {
		t.Fatalf("set: %v", err)
	}

	tab := openTab(t, durable, clock, tabOptions{})
	if list := tab.ActiveAccountsList(ctx); len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}

	tab.Login(ctx, mintToken(t, signer, "u-1", "admin", clock.Now().Add(time.Hour)), false)
	if list := tab.ActiveAccountsList(ctx); len(list) != 1 || list[0].UserID != "u-1" {
		t.Fatalf("login must repair the registry, got %+v", list)
	}
	if tab.Metrics().Value(MetricRegistryCorrupt) == 0 {
		t.Fatal("expected corrupt registry metric")
	}
}

func TestNoopTiersDegradeGracefully(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	ctx := context.Background()

	tab := openTab(t, storage.Noop{}, clock, tabOptions{ephemeral: storage.Noop{}})
	if id := tab.TabID(ctx); id == "" {
		t.Fatal("tab id must be generated even without storage")
	}

	st := tab.Login(ctx, mintToken(t, signer, "u-1", "admin", clock.Now().Add(time.Hour)), true)
	if !st.IsAuthenticated {
		t.Fatalf("login must still authenticate in memory, got %+v", st)
	}
	if st := tab.CheckAuth(ctx); st.UserID != "u-1" {
		t.Fatalf("CheckAuth must leave state alone without storage, got %+v", st)
	}
	if list := tab.ActiveAccountsList(ctx); len(list) != 0 {
		t.Fatalf("expected no accounts, got %+v", list)
	}
	tab.Logout(ctx)
	if tab.State().IsAuthenticated {
		t.Fatal("logout must clear state")
	}
}

func TestCloseRemovesRegistryEntryAndKeepsRecord(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ephemeral := storage.NewMemory()
	ctx := context.Background()

	tab := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	tab.Login(ctx, mintToken(t, signer, "u-1", "admin", clock.Now().Add(time.Hour)), true)
	tabID := tab.TabID(ctx)

	tab.Close(ctx)
	tab.Close(ctx)

	accounts, _ := session.NewRegistry(durable).Load(ctx)
	if _, ok := accounts[tabID]; ok {
		t.Fatal("closed tab must leave the registry")
	}
	if _, ok, _ := durable.Get(ctx, session.DurableAuthKey(tabID)); !ok {
		t.Fatal("close must keep the durable record")
	}

	if st := tab.Login(ctx, mintToken(t, signer, "u-2", "admin", clock.Now().Add(time.Hour)), true); st.UserID != "u-1" {
		t.Fatalf("closed store must ignore login, got %+v", st)
	}

	reopened := openTab(t, durable, clock, tabOptions{ephemeral: ephemeral})
	if st := reopened.CheckAuth(ctx); st.UserID != "u-1" {
		t.Fatalf("reload after close failed: %+v", st)
	}
}

func TestConcurrentTabsKeepEveryRegistryEntry(t *testing.T) {
	clock := newTestClock()
	signer := newTestSigner(t)
	durable := storage.NewMemory()
	ctx := context.Background()

	const tabs = 24
	stores := make([]*Store, tabs)
	tokens := make([]string, tabs)
	for i := range stores {
		stores[i] = openTab(t, durable, clock, tabOptions{})
		tokens[i] = mintToken(t, signer, "user-"+strings.Repeat("x", i+1), "admin", clock.Now().Add(time.Hour))
	}

	var wg sync.WaitGroup
	for i, s := range stores {
		wg.Add(1)
		go func(token string, s *Store) {
			defer wg.Done()
			s.Login(ctx, token, true)
			s.CheckAuth(ctx)
		}(tokens[i], s)
	}
	wg.Wait()

	accounts, _ := session.NewRegistry(durable).Load(ctx)
	if len(accounts) != tabs {
		t.Fatalf("expected %d registry entries, got %d", tabs, len(accounts))
	}
}
