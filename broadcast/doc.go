// Package broadcast carries session events between tabs over Redis pub/sub.
//
// A [Publisher] is an audit sink; pass it to tabauth.Builder.WithAuditSink. [Subscribe]
// lets another tab, or an operator tool, observe those events as they happen.
package broadcast
