package middleware

import (
	"net/http"
	"slices"

	"github.com/bazaarops/tabauth"
)

// RequireRole is [RequireSession] restricted to the given role identifiers; other roles
// get 403.
func RequireRole(store *tabauth.Store, roles ...string) func(http.Handler) http.Handler {
	return guard(store, func(st tabauth.State) bool {
		return slices.Contains(roles, st.RoleID)
	})
}
