package remote

import "github.com/roach88/retroloop/internal/card"

// EventKind identifies a push notification variant.
//
// The set is closed: the engine's reconciliation dispatcher switches
// exhaustively over these kinds, so adding a kind forces a reconciliation
// rule to be declared for it.
type EventKind string

const (
	EventCardCreated     EventKind = "card:created"
	EventCardUpdated     EventKind = "card:updated"
	EventCardDeleted     EventKind = "card:deleted"
	EventCardMoved       EventKind = "card:moved"
	EventReactionAdded   EventKind = "reaction:added"
	EventReactionRemoved EventKind = "reaction:removed"
	EventCardsLinked     EventKind = "card:linked"
	EventCardsUnlinked   EventKind = "card:unlinked"
)

// Event is a push notification from the real-time channel.
//
// Delivery guarantees are weak: events may arrive out of order
// relative to the local client's own pending operations, and may be
// duplicated. Reconciliation handlers must therefore be idempotent.
//
// Card-scoped events (created, updated, moved, reaction added/removed) carry
// the full authoritative card so handlers can reconcile by upsert rather
// than by patching deltas; absolute state self-corrects where deltas drift.
// Deletion carries only the id. Link events carry the edge endpoints but are
// reconciled by wholesale refetch, not by patching (see internal/engine).
type Event struct {
	Kind    EventKind `json:"kind"`
	BoardID string    `json:"board_id"`

	// Seq is the server's logical sequence stamp for the event.
	// Strictly increasing per server, never a wall-clock timestamp.
	Seq int64 `json:"seq"`

	// CardID identifies the affected card. Always set for card-scoped
	// events, including those that also carry the full card.
	CardID string `json:"card_id,omitempty"`

	// Card is the full authoritative card after the change.
	// Nil for deletions and link events.
	Card *card.Card `json:"card,omitempty"`

	// SourceID, TargetID, and LinkType describe the edge for link events.
	SourceID string        `json:"source_id,omitempty"`
	TargetID string        `json:"target_id,omitempty"`
	LinkType card.LinkType `json:"link_type,omitempty"`
}
