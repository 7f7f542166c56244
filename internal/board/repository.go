package board

import (
	"sort"

	"github.com/roach88/retroloop/internal/card"
)

// Repository is the in-memory, single-owner mirror of a board's cards.
//
// All accessors return copies; callers never hold references into the
// repository's internal state.
type Repository struct {
	cards map[string]card.Card
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{cards: make(map[string]card.Card)}
}

// Get returns the card with the given id, or false when absent.
func (r *Repository) Get(id string) (card.Card, bool) {
	c, ok := r.cards[id]
	if !ok {
		return card.Card{}, false
	}
	return c.Clone(), true
}

// Len returns the number of cards in the repository.
func (r *Repository) Len() int {
	return len(r.cards)
}

// All returns every card, ordered by (created seq, id) for determinism.
// Consumers derive their own display order; this ordering only guarantees
// reproducible iteration.
func (r *Repository) All() []card.Card {
	out := make([]card.Card, 0, len(r.cards))
	for _, c := range r.cards {
		out = append(out, c.Clone())
	}
	sortCards(out)
	return out
}

// ByColumn returns the cards in the given column, ordered by (created seq, id).
func (r *Repository) ByColumn(columnID string) []card.Card {
	var out []card.Card
	for _, c := range r.cards {
		if c.ColumnID == columnID {
			out = append(out, c.Clone())
		}
	}
	sortCards(out)
	return out
}

// ChildrenOf returns the cards whose parent is the given id, ordered by
// (created seq, id). A linear scan: boards hold tens of cards, not millions,
// and a scan cannot go stale the way an auxiliary index can.
func (r *Repository) ChildrenOf(id string) []card.Card {
	var out []card.Card
	for _, c := range r.cards {
		if c.ParentCardID == id {
			out = append(out, c.Clone())
		}
	}
	sortCards(out)
	return out
}

// Upsert inserts or replaces a card, then re-derives aggregation for the
// card itself, its current parent, and (when a replace moved the card to a
// different parent) its former parent.
func (r *Repository) Upsert(c card.Card) {
	prev, existed := r.cards[c.ID]
	r.cards[c.ID] = c.Clone()

	r.reaggregate(c.ID)
	if c.ParentCardID != "" {
		r.reaggregate(c.ParentCardID)
	}
	if existed && prev.ParentCardID != "" && prev.ParentCardID != c.ParentCardID {
		r.reaggregate(prev.ParentCardID)
	}
}

// Remove deletes a card by id and returns the removed card.
//
// Deleting a parent does not delete its children: each child is unparented
// and survives as a standalone card with its aggregate reset to its direct
// count. When the removed card was itself a child, the former parent's
// aggregate is re-derived.
func (r *Repository) Remove(id string) (card.Card, bool) {
	removed, ok := r.cards[id]
	if !ok {
		return card.Card{}, false
	}
	delete(r.cards, id)

	for childID, child := range r.cards {
		if child.ParentCardID == id {
			child.ParentCardID = ""
			r.cards[childID] = child
			r.reaggregate(childID)
		}
	}
	if removed.ParentCardID != "" {
		r.reaggregate(removed.ParentCardID)
	}
	return removed, true
}

// ReplaceAll installs a full authoritative card set, discarding local state.
// Used by the wholesale-refetch reconciliation path after link changes.
// Aggregation is re-derived for every card, so the incoming set does not
// need trustworthy aggregate fields.
func (r *Repository) ReplaceAll(cards []card.Card) {
	r.cards = make(map[string]card.Card, len(cards))
	for _, c := range cards {
		r.cards[c.ID] = c.Clone()
	}
	for id := range r.cards {
		r.reaggregate(id)
	}
}

// reaggregate recomputes the stored aggregated reaction count for one card
// from its current children. No-op when the id is unknown.
func (r *Repository) reaggregate(id string) {
	c, ok := r.cards[id]
	if !ok {
		return
	}
	var children []card.Card
	for _, other := range r.cards {
		if other.ParentCardID == id {
			children = append(children, other)
		}
	}
	c.AggregatedReactionCount = card.Aggregate(c, children)
	r.cards[id] = c
}

func sortCards(cards []card.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CreatedSeq != cards[j].CreatedSeq {
			return cards[i].CreatedSeq < cards[j].CreatedSeq
		}
		return cards[i].ID < cards[j].ID
	})
}
