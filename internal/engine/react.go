package engine

import "context"

// React places one reaction on a card optimistically.
//
// Reactions are quota gated: the service quota check runs before apply-local,
// so a denied quota aborts with no repository mutation. The local increment
// is provisional; the authoritative per-card count arrives through the push
// channel and overwrites it idempotently.
func (c *Coordinator) React(ctx context.Context, cardID string) error {
	if err := c.guardOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	if _, ok := c.repo.Get(cardID); !ok {
		c.mu.Unlock()
		return &NotFoundError{CardID: cardID}
	}
	c.mu.Unlock()

	quota, err := c.svc.CheckReactionQuota(ctx, c.boardID)
	if err != nil {
		return &RemoteFailure{Op: "check reaction quota", Err: err}
	}
	if !quota.CanReact {
		return &QuotaExceededError{BoardID: c.boardID, Resource: "reaction"}
	}

	c.mu.Lock()
	snapshot, ok := c.repo.Get(cardID)
	if !ok {
		// Deleted while the quota check was outstanding.
		c.mu.Unlock()
		return &NotFoundError{CardID: cardID}
	}
	bumped := snapshot.Clone()
	bumped.DirectReactionCount++
	c.repo.Upsert(bumped)
	c.mu.Unlock()

	if err := c.svc.AddReaction(ctx, cardID); err != nil {
		c.mu.Lock()
		c.repo.Upsert(snapshot)
		c.mu.Unlock()
		return &RemoteFailure{Op: "add reaction", Err: err}
	}

	c.refreshQuota(ctx)
	return nil
}

// Unreact removes the caller's reaction from a card optimistically.
//
// The local decrement is clamped at zero: the direct count mixes in other
// collaborators' reactions, so whether the caller actually holds one is
// only known authoritatively by the service.
func (c *Coordinator) Unreact(ctx context.Context, cardID string) error {
	if err := c.guardOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	snapshot, ok := c.repo.Get(cardID)
	if !ok {
		c.mu.Unlock()
		return &NotFoundError{CardID: cardID}
	}
	dropped := snapshot.Clone()
	if dropped.DirectReactionCount > 0 {
		dropped.DirectReactionCount--
	}
	c.repo.Upsert(dropped)
	c.mu.Unlock()

	if err := c.svc.RemoveReaction(ctx, cardID); err != nil {
		c.mu.Lock()
		c.repo.Upsert(snapshot)
		c.mu.Unlock()
		return &RemoteFailure{Op: "remove reaction", Err: err}
	}

	c.refreshQuota(ctx)
	return nil
}
