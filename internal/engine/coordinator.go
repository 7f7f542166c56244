package engine

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/roach88/retroloop/internal/board"
	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/remote"
)

// DefaultMaxContentLength caps card text content, in runes.
const DefaultMaxContentLength = 1000

// IDGenerator produces provisional card ids for optimistic creates.
// Implemented by ProvisionalIDGenerator (production) and
// testutil.FixedIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// ProvisionalIDGenerator generates prov-prefixed UUIDv7 ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, making provisional
// ids sortable by creation time, which keeps debug output readable when
// several creates are pending at once.
//
// Thread-safety: stateless and safe for concurrent use.
type ProvisionalIDGenerator struct{}

// Generate returns a fresh provisional card id.
func (ProvisionalIDGenerator) Generate() string {
	return card.NewProvisionalID()
}

// Coordinator performs optimistic mutations against the local repository and
// reconciles inbound push events. It is the single logical owner of the
// repository: all writes, local and inbound, are serialized by its mutex.
type Coordinator struct {
	mu   sync.Mutex
	repo *board.Repository

	boardID string
	svc     remote.Service
	gate    remote.BoardGate
	idgen   IDGenerator
	quota   *QuotaCache
	inbox   *eventQueue

	// linkInFlight serializes relationship mutations from this client.
	// Guarded by mu.
	linkInFlight bool

	maxContentLen int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxContentLength overrides the card content length cap (in runes).
func WithMaxContentLength(n int) Option {
	return func(c *Coordinator) {
		c.maxContentLen = n
	}
}

// WithIDGenerator overrides the provisional id generator.
// Tests use a fixed-sequence generator for deterministic golden output.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *Coordinator) {
		c.idgen = gen
	}
}

// New creates a Coordinator for one board.
//
// The repository is owned by the returned coordinator; callers must not
// mutate it directly afterward. The gate is consulted on every mutation and
// is expected to be cheap.
func New(boardID string, repo *board.Repository, svc remote.Service, gate remote.BoardGate, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:          repo,
		boardID:       boardID,
		svc:           svc,
		gate:          gate,
		idgen:         ProvisionalIDGenerator{},
		quota:         NewQuotaCache(),
		inbox:         newEventQueue(),
		maxContentLen: DefaultMaxContentLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BoardID returns the board this coordinator operates on.
func (c *Coordinator) BoardID() string {
	return c.boardID
}

// Quota returns the advisory quota cache. The cache reflects the last
// refresh, not a live check; mutating operations still perform their own
// authoritative quota checks.
func (c *Coordinator) Quota() *QuotaCache {
	return c.quota
}

// Cards returns the current card set, ordered by (created seq, id).
// The presentation layer derives its own sorting and filtering from this.
func (c *Coordinator) Cards() []card.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo.All()
}

// Card returns one card by id.
func (c *Coordinator) Card(id string) (card.Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo.Get(id)
}

// guardOpen rejects mutations on a closed board. Guards never touch the
// repository.
func (c *Coordinator) guardOpen() error {
	if c.gate.Closed() {
		return &ClosedBoardError{BoardID: c.boardID}
	}
	return nil
}

// validateContent rejects empty and over-length card text.
func (c *Coordinator) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(content) > c.maxContentLen {
		return &ValidationError{Field: "content", Message: "exceeds maximum length"}
	}
	return nil
}
