package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/retroloop/internal/remote"
)

// Feed submits an inbound push event for reconciliation by the Run loop.
// Thread-safe: may be called from any goroutine (typically the pub/sub pump).
// Returns false if the coordinator has been stopped.
func (c *Coordinator) Feed(ev remote.Event) bool {
	return c.inbox.Enqueue(ev)
}

// Run drains the event inbox, reconciling each event into the repository.
// Blocks until the context is cancelled or Stop is called.
//
// On reconciliation failure the error is logged with full event context and
// processing continues: a single malformed or unresolvable event must not
// wedge the stream behind it.
func (c *Coordinator) Run(ctx context.Context) error {
	slog.Info("reconciliation loop starting", "board", c.boardID)

	for {
		ev, ok := c.inbox.TryDequeue()
		if ok {
			if err := c.ApplyEvent(ctx, ev); err != nil {
				slog.Error("reconciliation failed",
					"board", c.boardID,
					"kind", ev.Kind,
					"card", ev.CardID,
					"seq", ev.Seq,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("reconciliation loop stopping: context cancelled", "board", c.boardID)
			c.inbox.Close()
			return ctx.Err()

		case <-c.inbox.Wait():
			// Signal received, or signal channel closed by Stop. In the
			// latter case the queue is drained and empty.
			if c.inbox.Len() == 0 {
				slog.Info("reconciliation loop stopping: inbox closed", "board", c.boardID)
				return nil
			}
		}
	}
}

// Stop closes the inbox, which causes Run to return once drained.
func (c *Coordinator) Stop() {
	c.inbox.Close()
}

// ApplyEvent folds one push notification into the repository.
//
// Every handler is idempotent under repetition and tolerant of ids not
// locally known: card-scoped events reconcile by upserting the full
// authoritative card (or refetching when the payload lacks it), deletions by
// removal, and link events by wholesale refetch. The dispatcher is
// exhaustive over the closed event union; unknown kinds are an error so a
// new kind cannot ship without declaring its reconciliation rule.
func (c *Coordinator) ApplyEvent(ctx context.Context, ev remote.Event) error {
	if ev.BoardID != c.boardID {
		// Channel subscriptions are per board; a mismatched event is a
		// wiring bug upstream, not something to fold in.
		return fmt.Errorf("event for board %q delivered to board %q", ev.BoardID, c.boardID)
	}

	switch ev.Kind {
	case remote.EventCardCreated, remote.EventCardUpdated, remote.EventCardMoved,
		remote.EventReactionAdded, remote.EventReactionRemoved:
		if ev.Card == nil {
			// Partial payload: fall back to a refetch rather than guessing
			// at deltas.
			return c.refetch(ctx)
		}
		c.mu.Lock()
		c.repo.Upsert(*ev.Card)
		c.mu.Unlock()
		return nil

	case remote.EventCardDeleted:
		c.mu.Lock()
		c.repo.Remove(ev.CardID)
		c.mu.Unlock()
		return nil

	case remote.EventCardsLinked, remote.EventCardsUnlinked:
		// Patching relationship fields from a partial edge payload cannot
		// keep hierarchy and aggregation consistent under concurrent
		// multi-party edits; replace local state wholesale instead.
		return c.refetch(ctx)

	default:
		return fmt.Errorf("unknown event kind: %q", ev.Kind)
	}
}

// refetch replaces the local card set with the full authoritative collection.
func (c *Coordinator) refetch(ctx context.Context) error {
	cards, err := c.svc.GetCards(ctx, c.boardID)
	if err != nil {
		return fmt.Errorf("refetch board %s: %w", c.boardID, err)
	}
	c.mu.Lock()
	c.repo.ReplaceAll(cards)
	c.mu.Unlock()
	return nil
}

// Refetch loads the full authoritative card set, replacing local state.
// Used at startup and after a push-channel reconnect, when events may have
// been missed.
func (c *Coordinator) Refetch(ctx context.Context) error {
	return c.refetch(ctx)
}
