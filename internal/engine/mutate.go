package engine

import (
	"context"

	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/remote"
)

// CreateCard creates a new card optimistically.
//
// Feedback-card creation is quota gated: the service quota check runs before
// apply-local, so a denied quota aborts with no repository mutation. The
// provisional card carries a locally generated id; on commit it is replaced
// wholesale by the authoritative card under the server-assigned id.
func (c *Coordinator) CreateCard(ctx context.Context, req remote.CreateCardRequest) (card.Card, error) {
	if err := c.guardOpen(); err != nil {
		return card.Card{}, err
	}
	if !req.Kind.Valid() {
		return card.Card{}, &ValidationError{Field: "kind", Message: "unknown card kind"}
	}
	if err := c.validateContent(req.Content); err != nil {
		return card.Card{}, err
	}
	if req.Kind == card.KindFeedback {
		quota, err := c.svc.CheckCardQuota(ctx, c.boardID)
		if err != nil {
			return card.Card{}, &RemoteFailure{Op: "check card quota", Err: err}
		}
		if !quota.CanCreate {
			return card.Card{}, &QuotaExceededError{BoardID: c.boardID, Resource: "card"}
		}
	}

	provisional := card.Card{
		ID:          c.idgen.Generate(),
		BoardID:     c.boardID,
		ColumnID:    req.ColumnID,
		Content:     req.Content,
		Kind:        req.Kind,
		IsAnonymous: req.IsAnonymous,
	}

	c.mu.Lock()
	c.repo.Upsert(provisional)
	c.mu.Unlock()

	authoritative, err := c.svc.CreateCard(ctx, c.boardID, req)
	if err != nil {
		// The provisional card is unreferenced by anything else; removing
		// it restores the exact pre-operation state.
		c.mu.Lock()
		c.repo.Remove(provisional.ID)
		c.mu.Unlock()
		return card.Card{}, &RemoteFailure{Op: "create card", Err: err}
	}

	c.mu.Lock()
	c.repo.Remove(provisional.ID)
	c.repo.Upsert(authoritative)
	c.mu.Unlock()

	c.refreshQuota(ctx)
	return authoritative, nil
}

// UpdateContent edits a card's text content optimistically.
func (c *Coordinator) UpdateContent(ctx context.Context, cardID, content string) (card.Card, error) {
	if err := c.guardOpen(); err != nil {
		return card.Card{}, err
	}
	if err := c.validateContent(content); err != nil {
		return card.Card{}, err
	}

	c.mu.Lock()
	snapshot, ok := c.repo.Get(cardID)
	if !ok {
		c.mu.Unlock()
		return card.Card{}, &NotFoundError{CardID: cardID}
	}
	updated := snapshot.Clone()
	updated.Content = content
	c.repo.Upsert(updated)
	c.mu.Unlock()

	authoritative, err := c.svc.UpdateCardContent(ctx, cardID, content)
	if err != nil {
		// Restore from the snapshot captured at apply-local time, not from
		// whatever the repository currently contains.
		c.mu.Lock()
		c.repo.Upsert(snapshot)
		c.mu.Unlock()
		return card.Card{}, &RemoteFailure{Op: "update card content", Err: err}
	}

	c.mu.Lock()
	c.repo.Upsert(authoritative)
	c.mu.Unlock()
	return authoritative, nil
}

// DeleteCard removes a card optimistically. Children of a deleted parent are
// not deleted; they become standalone cards.
func (c *Coordinator) DeleteCard(ctx context.Context, cardID string) error {
	if err := c.guardOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	snapshot, ok := c.repo.Get(cardID)
	if !ok {
		c.mu.Unlock()
		return &NotFoundError{CardID: cardID}
	}
	// Capture which children the removal will unparent, so rollback can
	// reattach exactly those edges and nothing else.
	children := c.repo.ChildrenOf(cardID)
	c.repo.Remove(cardID)
	c.mu.Unlock()

	if err := c.svc.DeleteCard(ctx, cardID); err != nil {
		c.mu.Lock()
		c.repo.Upsert(snapshot)
		for _, child := range children {
			// Undo only the parent pointer: the child may have received
			// unrelated concurrent updates during the remote call.
			if current, ok := c.repo.Get(child.ID); ok {
				current.ParentCardID = cardID
				c.repo.Upsert(current)
			}
		}
		c.mu.Unlock()
		return &RemoteFailure{Op: "delete card", Err: err}
	}

	c.refreshQuota(ctx)
	return nil
}

// MoveCard moves a card to another column optimistically. The remote call
// returns void; the provisional column assignment stands as committed, and
// the authoritative card arrives through the push channel.
func (c *Coordinator) MoveCard(ctx context.Context, cardID, columnID string) error {
	if err := c.guardOpen(); err != nil {
		return err
	}
	if columnID == "" {
		return &ValidationError{Field: "column_id", Message: "must not be empty"}
	}

	c.mu.Lock()
	snapshot, ok := c.repo.Get(cardID)
	if !ok {
		c.mu.Unlock()
		return &NotFoundError{CardID: cardID}
	}
	moved := snapshot.Clone()
	moved.ColumnID = columnID
	c.repo.Upsert(moved)
	c.mu.Unlock()

	if err := c.svc.MoveCard(ctx, cardID, columnID); err != nil {
		c.mu.Lock()
		c.repo.Upsert(snapshot)
		c.mu.Unlock()
		return &RemoteFailure{Op: "move card", Err: err}
	}
	return nil
}
