// Package session defines the storage schema of a tab session and the cross-tab
// active-accounts registry.
//
// # Storage schema
//
//   - ephemeral "currentAuth"   -> [Record] JSON
//   - ephemeral "tabId"         -> tab identifier string
//   - durable   "auth_<tabId>"  -> [Record] JSON, written only for remembered logins
//   - durable   "activeAccounts" -> [Accounts] JSON, keyed by tab identifier
//
// # Architecture boundaries
//
// This package owns encoding and the [Registry] read-modify-write cycle. It does NOT
// decode tokens or decide whether a session is authenticated; that belongs to the
// tabauth Store.
package session
