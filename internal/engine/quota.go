package engine

import (
	"context"
	"log/slog"
	"sync"
)

// QuotaCache holds the last known quota state for the board, for display
// purposes (for example disabling a "new card" control).
//
// The cache is advisory: quota consumption is also driven by other
// collaborators' actions arriving through reconciliation, so the cached
// state is refreshed after every successful create/delete/react/unreact
// rather than adjusted locally. Mutating operations never consult it; they
// run their own authoritative checks against the service.
//
// Thread-safe.
type QuotaCache struct {
	mu        sync.Mutex
	known     bool
	canCreate bool
	canReact  bool
}

// NewQuotaCache creates an empty cache. Known() is false until the first set.
func NewQuotaCache() *QuotaCache {
	return &QuotaCache{}
}

// Known reports whether the cache has been populated at least once.
func (q *QuotaCache) Known() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.known
}

// CanCreate returns the last known card-creation quota state.
func (q *QuotaCache) CanCreate() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.canCreate
}

// CanReact returns the last known reaction quota state.
func (q *QuotaCache) CanReact() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.canReact
}

func (q *QuotaCache) set(canCreate, canReact bool) {
	q.mu.Lock()
	q.known = true
	q.canCreate = canCreate
	q.canReact = canReact
	q.mu.Unlock()
}

// refreshQuota re-reads both quota states from the service after a
// successful mutation. Failures are advisory and non-fatal: the mutation
// this refresh follows has already succeeded, so errors are logged and the
// stale cache stands until the next refresh.
func (c *Coordinator) refreshQuota(ctx context.Context) {
	cardQuota, err := c.svc.CheckCardQuota(ctx, c.boardID)
	if err != nil {
		slog.Warn("quota refresh failed", "board", c.boardID, "check", "card", "error", err)
		return
	}
	reactionQuota, err := c.svc.CheckReactionQuota(ctx, c.boardID)
	if err != nil {
		slog.Warn("quota refresh failed", "board", c.boardID, "check", "reaction", "error", err)
		return
	}
	c.quota.set(cardQuota.CanCreate, reactionQuota.CanReact)
}
