// Package server is the reference implementation of the remote.Service
// boundary: authoritative board state in SQLite with Redis pub/sub fan-out.
//
// The server is the source of truth. Every mutation is validated again here
// regardless of what the client already checked: closed-board state, content
// limits, per-user quotas, and link invariants are all enforced against the
// stored state before anything is written. Reaction counts are never stored;
// reads derive them with COUNT(*) so a retried write cannot leave a stale
// counter behind.
//
// A Session binds the server to one actor identity. Sessions are cheap and
// safe for concurrent use; the SQLite connection pool underneath is limited
// to a single writer.
//
// After a successful mutation the server publishes a remote.Event on the
// board's Redis channel. Card-scoped events carry the full authoritative card
// so subscribers reconcile by upsert. Fan-out is best effort: a publish
// failure is logged and the mutation still succeeds.
package server
