package card

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes the two card types on a board.
type Kind string

const (
	// KindFeedback is a retrospective observation. Feedback cards may
	// participate in the parent/child hierarchy.
	KindFeedback Kind = "feedback"

	// KindAction is a follow-up task. Action cards link non-hierarchically
	// to feedback cards and are never reaction-aggregated.
	KindAction Kind = "action"
)

// Valid reports whether k is a known card kind.
func (k Kind) Valid() bool {
	return k == KindFeedback || k == KindAction
}

// LinkType identifies the relation created by a link operation.
type LinkType string

const (
	// LinkParentOf creates a hierarchical feedback→feedback edge.
	LinkParentOf LinkType = "parent_of"

	// LinkLinkedTo creates a non-hierarchical action→feedback edge.
	LinkLinkedTo LinkType = "linked_to"
)

// Card is the core board entity.
//
// A Card value is always passed and stored by value; the repository hands out
// copies so callers can never alias its internal state. Clone exists for the
// one field with reference semantics (LinkedFeedbackIDs).
type Card struct {
	ID          string `json:"id"`
	BoardID     string `json:"board_id"`
	ColumnID    string `json:"column_id"`
	Content     string `json:"content"`
	Kind        Kind   `json:"kind"`
	IsAnonymous bool   `json:"is_anonymous"`

	// AuthorHash is a stable opaque hash of the creator identity.
	// AuthorName is empty when the card is anonymous.
	AuthorHash string `json:"author_hash"`
	AuthorName string `json:"author_name,omitempty"`

	// CreatedSeq is the server-assigned logical creation sequence.
	// Zero for provisional cards that the server has not yet confirmed.
	CreatedSeq int64 `json:"created_seq"`

	// ParentCardID references the card's parent, or empty when standalone.
	// Only feedback cards may carry a parent, and hierarchy depth is <= 1.
	ParentCardID string `json:"parent_card_id,omitempty"`

	// LinkedFeedbackIDs holds the feedback cards an action card is linked to.
	// Kept sorted; empty for feedback cards.
	LinkedFeedbackIDs []string `json:"linked_feedback_ids,omitempty"`

	// DirectReactionCount is the number of reactions placed on this card.
	// AggregatedReactionCount is the displayed total: direct reactions plus
	// the direct reactions of all children. Equal to the direct count for a
	// card without children.
	DirectReactionCount     int `json:"direct_reaction_count"`
	AggregatedReactionCount int `json:"aggregated_reaction_count"`
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	if c.LinkedFeedbackIDs != nil {
		out.LinkedFeedbackIDs = make([]string, len(c.LinkedFeedbackIDs))
		copy(out.LinkedFeedbackIDs, c.LinkedFeedbackIDs)
	}
	return out
}

// HasParent reports whether the card currently has a parent.
func (c Card) HasParent() bool {
	return c.ParentCardID != ""
}

// IsLinkedTo reports whether an action card is linked to the given feedback card.
func (c Card) IsLinkedTo(feedbackID string) bool {
	for _, id := range c.LinkedFeedbackIDs {
		if id == feedbackID {
			return true
		}
	}
	return false
}

// AddLinkedFeedback records an action→feedback link, preserving sort order.
// Idempotent: adding an existing id is a no-op.
func (c *Card) AddLinkedFeedback(feedbackID string) {
	if c.IsLinkedTo(feedbackID) {
		return
	}
	c.LinkedFeedbackIDs = append(c.LinkedFeedbackIDs, feedbackID)
	sort.Strings(c.LinkedFeedbackIDs)
}

// RemoveLinkedFeedback removes an action→feedback link.
// Idempotent: removing an absent id is a no-op.
func (c *Card) RemoveLinkedFeedback(feedbackID string) {
	for i, id := range c.LinkedFeedbackIDs {
		if id == feedbackID {
			c.LinkedFeedbackIDs = append(c.LinkedFeedbackIDs[:i], c.LinkedFeedbackIDs[i+1:]...)
			return
		}
	}
}

// provisionalPrefix marks locally generated ids for cards the server has not
// confirmed yet. Server ids are bare UUIDs and never collide with this prefix.
const provisionalPrefix = "prov-"

// NewProvisionalID returns a fresh provisional card id.
//
// Uses UUIDv7 so provisional ids sort by creation time, which keeps debug
// output readable when several creates are pending at once.
func NewProvisionalID() string {
	return provisionalPrefix + uuid.Must(uuid.NewV7()).String()
}

// IsProvisionalID reports whether id was generated locally by this client
// and has not been replaced by a server-assigned id.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}
