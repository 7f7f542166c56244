package server

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/remote"
)

func newTestBus(t *testing.T) (*miniredis.Miniredis, *EventBus) {
	t.Helper()
	mr := miniredis.RunT(t)
	bus := NewEventBus(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { bus.Close() })
	return mr, bus
}

// waitForSubscriber publishes probe events directly through miniredis until
// the subscription is registered. Probes carry a sentinel board id so tests
// can skip them.
func waitForSubscriber(t *testing.T, mr *miniredis.Miniredis, channel string) {
	t.Helper()
	probe, err := json.Marshal(remote.Event{Kind: remote.EventCardMoved, BoardID: "probe"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return mr.Publish(channel, string(probe)) > 0
	}, 2*time.Second, 5*time.Millisecond)
}

// nextEvent reads events until one matches the wanted kind, skipping probes.
func nextEvent(t *testing.T, sub *Subscription, kind remote.EventKind) remote.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscription closed before %s arrived", kind)
			if ev.BoardID == "probe" {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestEventBus_PublishSubscribeRoundtrip(t *testing.T) {
	mr, bus := newTestBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "board-1")
	require.NoError(t, err)
	defer sub.Close()
	waitForSubscriber(t, mr, BoardChannel("board-1"))

	sent := remote.Event{
		Kind:    remote.EventCardCreated,
		BoardID: "board-1",
		Seq:     7,
		CardID:  "c1",
		Card:    &card.Card{ID: "c1", BoardID: "board-1", Content: "hello", Kind: card.KindFeedback},
	}
	require.NoError(t, bus.Publish(ctx, sent))

	got := nextEvent(t, sub, remote.EventCardCreated)
	assert.Equal(t, int64(7), got.Seq)
	require.NotNil(t, got.Card)
	assert.Equal(t, "hello", got.Card.Content, "events carry the full card payload")
}

func TestEventBus_BadPayloadReportedNotFatal(t *testing.T) {
	mr, bus := newTestBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "board-1")
	require.NoError(t, err)
	defer sub.Close()
	waitForSubscriber(t, mr, BoardChannel("board-1"))

	mr.Publish(BoardChannel("board-1"), "{not json")

	select {
	case err := <-sub.Errors():
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an unmarshal error")
	}

	// The subscription survives and keeps delivering.
	require.NoError(t, bus.Publish(ctx, remote.Event{Kind: remote.EventCardDeleted, BoardID: "board-1", CardID: "x", Seq: 1}))
	nextEvent(t, sub, remote.EventCardDeleted)
}

func TestEventBus_CloseStopsDelivery(t *testing.T) {
	mr, bus := newTestBus(t)

	sub, err := bus.Subscribe(context.Background(), "board-1")
	require.NoError(t, err)
	waitForSubscriber(t, mr, BoardChannel("board-1"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close is idempotent")

	require.Eventually(t, func() bool {
		_, ok := <-sub.Events()
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServer_PublishesMutationEvents(t *testing.T) {
	mr, bus := newTestBus(t)
	store, err := OpenStore(filepath.Join(t.TempDir(), "retroloop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	srv := New(store, WithEventBus(bus))
	ctx := context.Background()

	boardID, err := srv.CreateBoard(ctx, BoardConfig{Name: "b"})
	require.NoError(t, err)

	sub, err := bus.Subscribe(ctx, boardID)
	require.NoError(t, err)
	defer sub.Close()
	waitForSubscriber(t, mr, BoardChannel(boardID))

	sess := srv.Session("alice")
	created, err := sess.CreateCard(ctx, boardID, remote.CreateCardRequest{
		ColumnID: "went-well", Content: "pairing worked", Kind: card.KindFeedback,
	})
	require.NoError(t, err)

	ev := nextEvent(t, sub, remote.EventCardCreated)
	assert.Equal(t, created.ID, ev.CardID)
	require.NotNil(t, ev.Card)
	assert.Equal(t, "pairing worked", ev.Card.Content)

	require.NoError(t, sess.AddReaction(ctx, created.ID))
	ev = nextEvent(t, sub, remote.EventReactionAdded)
	require.NotNil(t, ev.Card)
	assert.Equal(t, 1, ev.Card.DirectReactionCount, "reaction events carry the absolute count")

	require.NoError(t, sess.DeleteCard(ctx, created.ID))
	ev = nextEvent(t, sub, remote.EventCardDeleted)
	assert.Equal(t, created.ID, ev.CardID)
	assert.Nil(t, ev.Card, "deletions carry only the id")
}
