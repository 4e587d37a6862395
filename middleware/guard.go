package middleware

import (
	"context"
	"net/http"

	"github.com/bazaarops/tabauth"
)

type stateContextKey struct{}

// StateFromContext returns the state captured by [RequireSession] or [RequireRole].
func StateFromContext(ctx context.Context) (tabauth.State, bool) {
	st, ok := ctx.Value(stateContextKey{}).(tabauth.State)
	return st, ok
}

// RequireSession restores the tab's session and rejects the request with 401 when the
// tab is not authenticated.
func RequireSession(store *tabauth.Store) func(http.Handler) http.Handler {
	return guard(store, nil)
}

func guard(store *tabauth.Store, allow func(tabauth.State) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			st := store.CheckAuth(r.Context())
			if !st.IsAuthenticated {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if allow != nil && !allow(st) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := tabauth.NewContext(r.Context(), store)
			ctx = context.WithValue(ctx, stateContextKey{}, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
