package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bazaarops/tabauth/storage"
)

// ErrRegistryCorrupt is reported when the stored registry blob is not valid JSON.
var ErrRegistryCorrupt = errors.New("active accounts registry corrupt")

// DefaultStaleAfter is how long an entry may go without activity before sweeps drop it.
const DefaultStaleAfter = 24 * time.Hour

// Account is the presence record a tab publishes for account switching.
type Account struct {
	UserID     string `json:"userId"`
	RoleID     string `json:"roleId"`
	Token      string `json:"token"`
	LastActive int64  `json:"lastActive"` // epoch milliseconds
}

// Stale reports whether a has been inactive for longer than maxAge at now.
func (a Account) Stale(now time.Time, maxAge time.Duration) bool {
	return now.UnixMilli()-a.LastActive > maxAge.Milliseconds()
}

// Accounts maps tab identifiers to their published account.
type Accounts map[string]Account

// ParseAccounts decodes a registry blob. An empty blob is an empty registry.
func ParseAccounts(raw string) (Accounts, error) {
	accounts := Accounts{}
	if raw == "" {
		return accounts, nil
	}
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return Accounts{}, fmt.Errorf("%w: %v", ErrRegistryCorrupt, err)
	}
	if accounts == nil {
		accounts = Accounts{}
	}
	return accounts, nil
}

// Encode renders the registry in its storage form.
func (a Accounts) Encode() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Prune removes stale entries in place and returns the removed tab identifiers, sorted.
func (a Accounts) Prune(now time.Time, maxAge time.Duration) []string {
	var removed []string
	for tabID, acct := range a {
		if acct.Stale(now, maxAge) {
			delete(a, tabID)
			removed = append(removed, tabID)
		}
	}
	sort.Strings(removed)
	return removed
}

// Registry reads and writes the active-accounts blob in a durable tier.
type Registry struct {
	tier      storage.Tier
	onCorrupt func(error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCorruptionHook is called whenever a corrupt blob is read and replaced by an
// empty registry.
func WithCorruptionHook(fn func(error)) RegistryOption {
	return func(r *Registry) {
		r.onCorrupt = fn
	}
}

// NewRegistry binds a registry to tier.
func NewRegistry(tier storage.Tier, opts ...RegistryOption) *Registry {
	r := &Registry{tier: tier, onCorrupt: func(error) {}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the current registry. A corrupt blob yields an empty registry.
func (r *Registry) Load(ctx context.Context) (Accounts, error) {
	raw, ok, err := r.tier.Get(ctx, ActiveAccountsKey)
	if err != nil {
		return Accounts{}, err
	}
	if !ok {
		return Accounts{}, nil
	}
	return r.parse(raw), nil
}

// Put upserts the entry for tabID, stamping LastActive with now.
func (r *Registry) Put(ctx context.Context, tabID string, acct Account, now time.Time) error {
	acct.LastActive = now.UnixMilli()
	return r.tier.Update(ctx, ActiveAccountsKey, func(current string, ok bool) (string, bool, error) {
		accounts := Accounts{}
		if ok {
			accounts = r.parse(current)
		}
		accounts[tabID] = acct
		next, err := accounts.Encode()
		return next, true, err
	})
}

// Remove deletes the entry for tabID.
func (r *Registry) Remove(ctx context.Context, tabID string) error {
	return r.tier.Update(ctx, ActiveAccountsKey, func(current string, ok bool) (string, bool, error) {
		if !ok {
			return "", false, nil
		}
		accounts := r.parse(current)
		delete(accounts, tabID)
		next, err := accounts.Encode()
		return next, true, err
	})
}

// Sweep drops entries inactive for longer than maxAge and returns the removed tab
// identifiers.
func (r *Registry) Sweep(ctx context.Context, now time.Time, maxAge time.Duration) ([]string, error) {
	var removed []string
	err := r.tier.Update(ctx, ActiveAccountsKey, func(current string, ok bool) (string, bool, error) {
		removed = nil
		if !ok {
			return "", false, nil
		}
		accounts := r.parse(current)
		removed = accounts.Prune(now, maxAge)
		next, err := accounts.Encode()
		return next, true, err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *Registry) parse(raw string) Accounts {
	accounts, err := ParseAccounts(raw)
	if err != nil {
		r.onCorrupt(err)
	}
	return accounts
}
