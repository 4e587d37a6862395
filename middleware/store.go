package middleware

import (
	"net/http"

	"github.com/bazaarops/tabauth"
)

// WithStore makes store reachable through tabauth.FromContext without enforcing login.
func WithStore(store *tabauth.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(tabauth.NewContext(r.Context(), store)))
		})
	}
}
