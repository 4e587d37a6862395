package tabauth

import "context"

type storeContextKey struct{}

// NewContext returns a copy of ctx carrying s, so handlers and views can reach the
// tab's Store without a package-level singleton.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, s)
}

// FromContext returns the Store attached by [NewContext].
func FromContext(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(storeContextKey{}).(*Store)
	return s, ok && s != nil
}
