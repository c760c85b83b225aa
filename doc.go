// Package ldap is an LDAP v3 (RFC 4511) client core: connection
// lifecycle, request multiplexing, reconnection with backoff, and
// paged search, built directly on the wire codec in ber and the
// filter AST in filter.
//
// A Client owns at most one live transport at a time. Operations
// (Bind, Add, Delete, Modify, ModifyDN, Compare, Extended, Search,
// Abandon, Unbind) submit a request and block the calling goroutine
// until a terminal response arrives, a per-request timeout fires, or
// the supplied context is canceled; Search instead returns a
// SearchSink the caller drains at its own pace.
//
// While the transport is down, operations are queued (spec'd capacity
// and timeout via Config.Queue) and flushed in order once a
// reconnect succeeds. Subscribe to Events() for connection-lifecycle
// visibility (connect, error, close, idle, and the rest of the
// documented event set).
package ldap
