// Package board provides the client-side mirror of a board's cards and the
// relationship rules that constrain how cards may be linked.
//
// # Repository
//
// Repository is the authoritative local mirror of card entities, keyed by id.
// It is purely in-memory and has no network or async behavior. It is NOT
// safe for concurrent use on its own: there is exactly one logical owner
// (the engine coordinator), which serializes access. See internal/engine.
//
// Every successful mutation re-derives the aggregated reaction count for the
// mutated card and, when the card is a child, for its parent. Aggregation is
// always a full recompute from current children (see card.Aggregate), so the
// repository self-corrects under duplicated or reordered reconciliation.
//
// # Relationship rules
//
// The checker methods (CheckParentChild, CheckActionFeedback, WouldCreateCycle,
// HasParent) are read-only: they decide whether a proposed link is legal given
// current repository state and never mutate anything.
//
// Structural invariants enforced:
//   - parent/child edges connect feedback cards only
//   - hierarchy depth <= 1, enforced from both ends
//   - no cycles (the walk is generic, not hard-coded to depth 1)
//   - action cards link to feedback cards through a separate, non-hierarchical
//     relation that is never reaction-aggregated
package board
