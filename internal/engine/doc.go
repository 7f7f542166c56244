// Package engine implements the optimistic mutation coordinator and the
// reconciliation loop for a retroloop board.
//
// # Architecture
//
// The Coordinator owns the board.Repository. All repository writes, local or
// inbound, go through it; external callers never mutate the repository
// directly.
//
// Every mutating operation follows one state-machine shape:
//
//  1. Guard: reject closed boards, invalid content, illegal relationships,
//     exhausted quotas, and unknown operands without touching the repository
//     or (except quota checks) the network.
//  2. Apply-local: write a provisional result into the repository and capture
//     a snapshot of exactly what was changed.
//  3. Invoke-remote: call the persistence service. The repository lock is
//     NOT held across this suspension point.
//  4. Commit: replace the provisional entry with the authoritative result.
//  5. Rollback: on remote failure, undo exactly the step-2 change from the
//     captured snapshot. The repository ends in the state it was in before
//     step 2, without clobbering concurrent changes to unrelated cards.
//
// # Concurrency model
//
// A single mutex serializes repository access. Coordinator methods hold it
// only for guard-free repository steps (apply-local, commit, rollback); many
// operations can be outstanding at once, interleaving only at the suspension
// points (remote calls, quota checks, refetch). Cancellation mid-operation
// is not supported: once a remote call is issued, its outcome is applied.
//
// Inbound push events are buffered in a FIFO inbox and drained by Run, a
// single-writer loop in the same shape as a log-processing event loop:
// dequeue, apply, log-and-continue on failure. Reconciliation handlers are
// idempotent upserts over full authoritative card payloads; link events are
// reconciled by wholesale refetch rather than patching, which keeps
// hierarchy and aggregation consistent under concurrent multi-party edits.
//
// At most one relationship mutation (link/unlink) is in flight per board
// from this client; concurrent relationship edits by other clients are
// absorbed by the refetch path, not by locking.
package engine
