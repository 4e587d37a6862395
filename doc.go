// Package tabauth keeps the authenticated identity of one dashboard tab and the
// cross-tab directory of logged-in accounts used for account switching.
//
// A [Store] is one tab. It owns an ephemeral tier (lives as long as the tab) and shares
// a durable tier with every other tab of the same profile. Identity comes from a
// backend-issued token that is decoded but never verified: the resulting [State] is a
// display hint, and every authorization decision stays on the server.
//
// # Architecture boundaries
//
// tabauth is the public surface. It exposes [Store], [Builder], [Config], and value
// types ([State], [ActiveAccount], [MetricsSnapshot], [AuditEvent]). Storage schema and
// registry maintenance live in package session; tiers live in package storage; token
// decoding lives in package jwt.
//
// # Failure model
//
// Store operations never return errors. Malformed tokens, storage failures, expired or
// tampered records all resolve to "not authenticated", and are reported through the
// configured logger, metrics, and audit sink.
//
// # Concurrency
//
// Each Store serializes its own operations. Tabs coordinate only through the durable
// tier, whose registry writes go through [storage.Tier.Update].
package tabauth
