package remote

import (
	"context"

	"github.com/roach88/retroloop/internal/card"
)

// CreateCardRequest carries the client-chosen fields of a new card.
// Identity fields (id, author, seq) are assigned by the service.
type CreateCardRequest struct {
	ColumnID    string    `json:"column_id"`
	Content     string    `json:"content"`
	Kind        card.Kind `json:"kind"`
	IsAnonymous bool      `json:"is_anonymous"`
}

// LinkRequest identifies the target and relation of a link or unlink call.
// The source card is passed separately; LinkType selects between the
// hierarchical parent_of edge and the non-hierarchical linked_to edge.
type LinkRequest struct {
	TargetID string        `json:"target_id"`
	LinkType card.LinkType `json:"link_type"`
}

// CardQuota is the result of a card-creation quota check.
type CardQuota struct {
	CanCreate bool `json:"can_create"`
}

// ReactionQuota is the result of a reaction quota check.
type ReactionQuota struct {
	CanReact bool `json:"can_react"`
}

// Service is the authoritative persistence/API boundary.
//
// Every mutating call either returns the authoritative entity state (or nil
// error for void operations) or a failure. The engine treats any error from
// a mutating call as a remote failure and rolls back its provisional write;
// it never inspects service errors for partial-success semantics.
//
// All calls take a context and may block; they are the engine's suspension
// points. Implementations must be safe for concurrent use.
type Service interface {
	// GetCards returns the full authoritative card set for a board.
	GetCards(ctx context.Context, boardID string) ([]card.Card, error)

	// CreateCard persists a new card and returns it with server-assigned
	// id, author fields, and creation seq.
	CreateCard(ctx context.Context, boardID string, req CreateCardRequest) (card.Card, error)

	// UpdateCardContent replaces a card's text content and returns the
	// authoritative card.
	UpdateCardContent(ctx context.Context, cardID, content string) (card.Card, error)

	// DeleteCard removes a card. Children of a deleted parent survive and
	// are unparented server-side.
	DeleteCard(ctx context.Context, cardID string) error

	// MoveCard changes a card's column.
	MoveCard(ctx context.Context, cardID, columnID string) error

	// LinkCards creates a parent_of or linked_to relation from sourceID.
	LinkCards(ctx context.Context, sourceID string, req LinkRequest) error

	// UnlinkCards removes a parent_of or linked_to relation from sourceID.
	UnlinkCards(ctx context.Context, sourceID string, req LinkRequest) error

	// AddReaction records one reaction by the calling actor on a card.
	AddReaction(ctx context.Context, cardID string) error

	// RemoveReaction removes the calling actor's reaction from a card.
	RemoveReaction(ctx context.Context, cardID string) error

	// CheckCardQuota reports whether the calling actor may create another
	// quota-gated (feedback) card on the board.
	CheckCardQuota(ctx context.Context, boardID string) (CardQuota, error)

	// CheckReactionQuota reports whether the calling actor may place
	// another reaction on the board.
	CheckReactionQuota(ctx context.Context, boardID string) (ReactionQuota, error)
}

// BoardGate exposes whether the board is closed (read-only). The engine
// respects the gate but does not own the lifecycle transition.
type BoardGate interface {
	Closed() bool
}

// GateFunc adapts a plain function to the BoardGate interface.
type GateFunc func() bool

// Closed implements BoardGate.
func (f GateFunc) Closed() bool { return f() }
