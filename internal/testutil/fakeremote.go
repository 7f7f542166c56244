package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/remote"
)

// FakeRemote is a scripted in-memory implementation of remote.Service.
//
// It maintains its own authoritative card state (like the real server), so a
// coordinator's commit step receives genuinely server-shaped entities:
// server-assigned ids, author fields, and creation seqs. Ids are srv-N in
// call order and every seq is drawn from one DeterministicClock, so outputs
// are stable enough for golden comparison. Tests can:
//
//   - inject a one-shot failure per operation with FailNext
//   - deny quotas with SetCardQuota / SetReactionQuota
//   - assert on the recorded call log with Calls
//   - drain the push events a real channel would have published with PopEvents
//
// Thread-safe: the coordinator calls it from multiple goroutines in
// concurrency tests.
type FakeRemote struct {
	mu sync.Mutex

	boardID   string
	cards     map[string]card.Card
	nextID    int
	clock     *DeterministicClock
	canCreate bool
	canReact  bool

	actorHash string
	actorName string

	failNext map[string]error
	calls    []string
	events   []remote.Event
}

var _ remote.Service = (*FakeRemote)(nil)

// NewFakeRemote creates a fake service for one board with open quotas.
func NewFakeRemote(boardID string) *FakeRemote {
	return &FakeRemote{
		boardID:   boardID,
		cards:     make(map[string]card.Card),
		clock:     NewDeterministicClock(),
		canCreate: true,
		canReact:  true,
		actorHash: "actor-hash-1",
		actorName: "Test Actor",
		failNext:  make(map[string]error),
	}
}

// FailNext makes the next call to the named operation return err.
// Operation names: get_cards, create, update, delete, move, link, unlink,
// react, unreact, check_card_quota, check_reaction_quota.
func (f *FakeRemote) FailNext(op string, err error) {
	f.mu.Lock()
	f.failNext[op] = err
	f.mu.Unlock()
}

// SetCardQuota scripts the card-creation quota check result.
func (f *FakeRemote) SetCardQuota(canCreate bool) {
	f.mu.Lock()
	f.canCreate = canCreate
	f.mu.Unlock()
}

// SetReactionQuota scripts the reaction quota check result.
func (f *FakeRemote) SetReactionQuota(canReact bool) {
	f.mu.Lock()
	f.canReact = canReact
	f.mu.Unlock()
}

// Calls returns the operation names invoked so far, in order.
func (f *FakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// PopEvents drains and returns the push events emitted by mutations,
// in emission order. A test feeds these to the coordinator to simulate the
// real-time channel.
func (f *FakeRemote) PopEvents() []remote.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.events
	f.events = nil
	return out
}

// Seed installs a card directly into the fake's authoritative state without
// recording a call or emitting an event. Used for test setup.
func (f *FakeRemote) Seed(c card.Card) {
	f.mu.Lock()
	if c.CreatedSeq == 0 {
		c.CreatedSeq = f.clock.Next()
	}
	f.cards[c.ID] = c.Clone()
	f.mu.Unlock()
}

// ServerCard returns the fake's authoritative copy of a card.
func (f *FakeRemote) ServerCard(id string) (card.Card, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return card.Card{}, false
	}
	return c.Clone(), true
}

// begin records the call and consumes a scripted failure, if any.
// Caller must hold f.mu.
func (f *FakeRemote) begin(op string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	return nil
}

func (f *FakeRemote) emit(kind remote.EventKind, c *card.Card, cardID string) {
	ev := remote.Event{
		Kind:    kind,
		BoardID: f.boardID,
		Seq:     f.clock.Next(),
		CardID:  cardID,
	}
	if c != nil {
		clone := c.Clone()
		ev.Card = &clone
	}
	f.events = append(f.events, ev)
}

// GetCards implements remote.Service.
func (f *FakeRemote) GetCards(ctx context.Context, boardID string) ([]card.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("get_cards"); err != nil {
		return nil, err
	}
	out := make([]card.Card, 0, len(f.cards))
	for _, c := range f.cards {
		out = append(out, c.Clone())
	}
	return out, nil
}

// CreateCard implements remote.Service.
func (f *FakeRemote) CreateCard(ctx context.Context, boardID string, req remote.CreateCardRequest) (card.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create"); err != nil {
		return card.Card{}, err
	}
	f.nextID++
	c := card.Card{
		ID:          fmt.Sprintf("srv-%d", f.nextID),
		BoardID:     boardID,
		ColumnID:    req.ColumnID,
		Content:     req.Content,
		Kind:        req.Kind,
		IsAnonymous: req.IsAnonymous,
		AuthorHash:  f.actorHash,
		CreatedSeq:  f.clock.Next(),
	}
	if !req.IsAnonymous {
		c.AuthorName = f.actorName
	}
	f.cards[c.ID] = c.Clone()
	f.emit(remote.EventCardCreated, &c, c.ID)
	return c, nil
}

// UpdateCardContent implements remote.Service.
func (f *FakeRemote) UpdateCardContent(ctx context.Context, cardID, content string) (card.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("update"); err != nil {
		return card.Card{}, err
	}
	c, ok := f.cards[cardID]
	if !ok {
		return card.Card{}, fmt.Errorf("card %s not found", cardID)
	}
	c.Content = content
	f.cards[cardID] = c.Clone()
	f.emit(remote.EventCardUpdated, &c, cardID)
	return c, nil
}

// DeleteCard implements remote.Service.
func (f *FakeRemote) DeleteCard(ctx context.Context, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("delete"); err != nil {
		return err
	}
	if _, ok := f.cards[cardID]; !ok {
		return fmt.Errorf("card %s not found", cardID)
	}
	delete(f.cards, cardID)
	for id, other := range f.cards {
		if other.ParentCardID == cardID {
			other.ParentCardID = ""
			f.cards[id] = other
			f.emit(remote.EventCardUpdated, &other, id)
		}
	}
	f.emit(remote.EventCardDeleted, nil, cardID)
	return nil
}

// MoveCard implements remote.Service.
func (f *FakeRemote) MoveCard(ctx context.Context, cardID, columnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("move"); err != nil {
		return err
	}
	c, ok := f.cards[cardID]
	if !ok {
		return fmt.Errorf("card %s not found", cardID)
	}
	c.ColumnID = columnID
	f.cards[cardID] = c.Clone()
	f.emit(remote.EventCardMoved, &c, cardID)
	return nil
}

// LinkCards implements remote.Service.
func (f *FakeRemote) LinkCards(ctx context.Context, sourceID string, req remote.LinkRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("link"); err != nil {
		return err
	}
	if err := f.applyLink(sourceID, req, true); err != nil {
		return err
	}
	f.emitLink(remote.EventCardsLinked, sourceID, req)
	return nil
}

// UnlinkCards implements remote.Service.
func (f *FakeRemote) UnlinkCards(ctx context.Context, sourceID string, req remote.LinkRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("unlink"); err != nil {
		return err
	}
	if err := f.applyLink(sourceID, req, false); err != nil {
		return err
	}
	f.emitLink(remote.EventCardsUnlinked, sourceID, req)
	return nil
}

func (f *FakeRemote) applyLink(sourceID string, req remote.LinkRequest, create bool) error {
	source, ok := f.cards[sourceID]
	if !ok {
		return fmt.Errorf("card %s not found", sourceID)
	}
	target, ok := f.cards[req.TargetID]
	if !ok {
		return fmt.Errorf("card %s not found", req.TargetID)
	}
	switch req.LinkType {
	case card.LinkParentOf:
		if create {
			target.ParentCardID = sourceID
		} else {
			target.ParentCardID = ""
		}
		f.cards[req.TargetID] = target
	case card.LinkLinkedTo:
		if create {
			source.AddLinkedFeedback(req.TargetID)
		} else {
			source.RemoveLinkedFeedback(req.TargetID)
		}
		f.cards[sourceID] = source
	default:
		return fmt.Errorf("unknown link type %q", req.LinkType)
	}
	return nil
}

func (f *FakeRemote) emitLink(kind remote.EventKind, sourceID string, req remote.LinkRequest) {
	f.events = append(f.events, remote.Event{
		Kind:     kind,
		BoardID:  f.boardID,
		Seq:      f.clock.Next(),
		SourceID: sourceID,
		TargetID: req.TargetID,
		LinkType: req.LinkType,
	})
}

// AddReaction implements remote.Service.
func (f *FakeRemote) AddReaction(ctx context.Context, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("react"); err != nil {
		return err
	}
	c, ok := f.cards[cardID]
	if !ok {
		return fmt.Errorf("card %s not found", cardID)
	}
	c.DirectReactionCount++
	f.cards[cardID] = c.Clone()
	f.emit(remote.EventReactionAdded, &c, cardID)
	return nil
}

// RemoveReaction implements remote.Service.
func (f *FakeRemote) RemoveReaction(ctx context.Context, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("unreact"); err != nil {
		return err
	}
	c, ok := f.cards[cardID]
	if !ok {
		return fmt.Errorf("card %s not found", cardID)
	}
	if c.DirectReactionCount > 0 {
		c.DirectReactionCount--
	}
	f.cards[cardID] = c.Clone()
	f.emit(remote.EventReactionRemoved, &c, cardID)
	return nil
}

// CheckCardQuota implements remote.Service.
func (f *FakeRemote) CheckCardQuota(ctx context.Context, boardID string) (remote.CardQuota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("check_card_quota"); err != nil {
		return remote.CardQuota{}, err
	}
	return remote.CardQuota{CanCreate: f.canCreate}, nil
}

// CheckReactionQuota implements remote.Service.
func (f *FakeRemote) CheckReactionQuota(ctx context.Context, boardID string) (remote.ReactionQuota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("check_reaction_quota"); err != nil {
		return remote.ReactionQuota{}, err
	}
	return remote.ReactionQuota{CanReact: f.canReact}, nil
}
