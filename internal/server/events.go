package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/retroloop/internal/remote"
)

// EventBus fans board events out over Redis pub/sub. Each board has its own
// channel; payloads are the full remote.Event JSON so subscribers never need
// a second fetch to interpret a message.
//
// Delivery is at-most-once (Redis pub/sub semantics). Subscribers that need
// certainty refetch the board; the client engine already does this for link
// events and on any gap it detects.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates a bus over the given Redis connection options.
func NewEventBus(opts *redis.Options) *EventBus {
	return &EventBus{rdb: redis.NewClient(opts)}
}

// Close closes the Redis connection. Implements io.Closer.
func (b *EventBus) Close() error {
	return b.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (b *EventBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// BoardChannel returns the pub/sub channel name for a board.
func BoardChannel(boardID string) string {
	return "retroloop:board:" + boardID + ":events"
}

// Publish sends an event on its board's channel.
func (b *EventBus) Publish(ctx context.Context, ev remote.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, BoardChannel(ev.BoardID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscription is an active pub/sub subscription to one board's events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan remote.Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board events. The channel is closed when the
// subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan remote.Event {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal;
// the subscription skips the bad message and continues.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer.
// Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe starts listening for a board's events. Events are delivered on a
// buffered channel (size 10); if the subscriber is too slow, Redis pub/sub
// may drop messages.
func (b *EventBus) Subscribe(ctx context.Context, boardID string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, BoardChannel(boardID))

	eventsChan := make(chan remote.Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev remote.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("unmarshal board event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
