// Package storage provides the key/value tiers a tab session persists into: an in-process
// [Memory] tier (per-tab ephemeral scope, or a shared tier inside one process), a
// [Redis] tier (durable scope shared by every tab of a profile), and a [Noop] tier used
// when no storage is available.
//
// # Architecture boundaries
//
// Tiers store opaque string values. They do NOT know about session records, the
// active-accounts registry, or token claims; those live in package session.
//
// # Atomic updates
//
// [Tier.Update] is the only read-modify-write primitive. Memory serializes it under a
// mutex, Redis runs it as a WATCH/MULTI optimistic transaction and retries on conflict.
package storage
