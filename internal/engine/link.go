package engine

import (
	"context"
	"fmt"

	"github.com/roach88/retroloop/internal/board"
	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/remote"
)

// acquireLinkGate marks a relationship mutation as in flight, or fails when
// one already is. Only one link/unlink runs per board at a time from this
// client; relationship edits from other collaborators are absorbed by the
// wholesale-refetch reconciliation path instead of locking.
func (c *Coordinator) acquireLinkGate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.linkInFlight {
		return ErrLinkInFlight
	}
	c.linkInFlight = true
	return nil
}

func (c *Coordinator) releaseLinkGate() {
	c.mu.Lock()
	c.linkInFlight = false
	c.mu.Unlock()
}

// Link creates a relationship from sourceID optimistically.
//
// For parent_of, sourceID becomes the parent of req.TargetID. For linked_to,
// the action card sourceID is linked to the feedback card req.TargetID. The
// invariant checker validates the edge against current repository state
// before anything is written.
func (c *Coordinator) Link(ctx context.Context, sourceID string, req remote.LinkRequest) error {
	if err := c.guardOpen(); err != nil {
		return err
	}
	if err := c.acquireLinkGate(); err != nil {
		return err
	}
	defer c.releaseLinkGate()

	c.mu.Lock()
	var snapshot card.Card
	switch req.LinkType {
	case card.LinkParentOf:
		if denial := c.repo.CheckParentChild(sourceID, req.TargetID); denial != board.DenialNone {
			err := c.denialError(denial, sourceID, req.TargetID)
			c.mu.Unlock()
			return err
		}
		child, _ := c.repo.Get(req.TargetID)
		snapshot = child
		child.ParentCardID = sourceID
		c.repo.Upsert(child)

	case card.LinkLinkedTo:
		if denial := c.repo.CheckActionFeedback(sourceID, req.TargetID); denial != board.DenialNone {
			err := c.denialError(denial, sourceID, req.TargetID)
			c.mu.Unlock()
			return err
		}
		source, _ := c.repo.Get(sourceID)
		snapshot = source
		source.AddLinkedFeedback(req.TargetID)
		c.repo.Upsert(source)

	default:
		c.mu.Unlock()
		return &ValidationError{Field: "link_type", Message: fmt.Sprintf("unknown link type %q", req.LinkType)}
	}
	c.mu.Unlock()

	if err := c.svc.LinkCards(ctx, sourceID, req); err != nil {
		c.mu.Lock()
		c.repo.Upsert(snapshot)
		c.mu.Unlock()
		return &RemoteFailure{Op: "link cards", Err: err}
	}
	return nil
}

// Unlink removes a relationship from sourceID optimistically.
func (c *Coordinator) Unlink(ctx context.Context, sourceID string, req remote.LinkRequest) error {
	if err := c.guardOpen(); err != nil {
		return err
	}
	if err := c.acquireLinkGate(); err != nil {
		return err
	}
	defer c.releaseLinkGate()

	c.mu.Lock()
	var snapshot card.Card
	switch req.LinkType {
	case card.LinkParentOf:
		child, ok := c.repo.Get(req.TargetID)
		if !ok {
			c.mu.Unlock()
			return &NotFoundError{CardID: req.TargetID}
		}
		if child.ParentCardID != sourceID {
			c.mu.Unlock()
			return &RelationshipViolation{Reason: ReasonNotLinked, SourceID: sourceID, TargetID: req.TargetID}
		}
		snapshot = child
		child.ParentCardID = ""
		c.repo.Upsert(child)

	case card.LinkLinkedTo:
		source, ok := c.repo.Get(sourceID)
		if !ok {
			c.mu.Unlock()
			return &NotFoundError{CardID: sourceID}
		}
		if !source.IsLinkedTo(req.TargetID) {
			c.mu.Unlock()
			return &RelationshipViolation{Reason: ReasonNotLinked, SourceID: sourceID, TargetID: req.TargetID}
		}
		snapshot = source
		source.RemoveLinkedFeedback(req.TargetID)
		c.repo.Upsert(source)

	default:
		c.mu.Unlock()
		return &ValidationError{Field: "link_type", Message: fmt.Sprintf("unknown link type %q", req.LinkType)}
	}
	c.mu.Unlock()

	if err := c.svc.UnlinkCards(ctx, sourceID, req); err != nil {
		c.mu.Lock()
		c.repo.Upsert(snapshot)
		c.mu.Unlock()
		return &RemoteFailure{Op: "unlink cards", Err: err}
	}
	return nil
}

// denialError maps a checker denial to the coordinator's error taxonomy.
// Missing operands surface as NotFoundError; everything else is a
// RelationshipViolation carrying the checker's reason.
// Caller must hold c.mu.
func (c *Coordinator) denialError(denial board.LinkDenial, sourceID, targetID string) error {
	if denial == board.DenialNotFound {
		missing := targetID
		if _, ok := c.repo.Get(sourceID); !ok {
			missing = sourceID
		}
		return &NotFoundError{CardID: missing}
	}
	return &RelationshipViolation{Reason: denial, SourceID: sourceID, TargetID: targetID}
}
