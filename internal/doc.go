// Package internal contains helpers that are private to tabauth: tab identifier
// generation and logger construction.
//
// # Sub-packages
//
//   - logging — slog handler construction from level/format settings
//
// # What this package must NOT do
//
//   - Export types that appear in the public tabauth API.
//   - Be imported by any package outside the tabauth module.
package internal
