// Package middleware adapts a tab's [tabauth.Store] to net/http handlers.
//
// [WithStore] attaches the Store to each request context. [RequireSession] runs
// CheckAuth and turns away requests from a tab that is not logged in. [RequireRole]
// additionally matches the role claim.
//
// The Store trusts unverified token claims. These guards decide what the local UI
// shows; the backend must still authorize every API call it receives.
package middleware
