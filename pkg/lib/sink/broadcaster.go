package sink

import (
	"fmt"
	"sync"
)

// Broadcaster fans a stream of messages out to any number of subscribers.
// Delivery is lossy: a subscriber that falls behind has its oldest pending
// message replaced by the newest, so publishers never block. Use it for
// wake-up notifications where only "something happened since you last looked"
// matters.
type Broadcaster[T any] struct {
	incoming    chan T
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	stopped     bool
	stopOnce    sync.Once
}

func RunNewBroadcaster[T any]() *Broadcaster[T] {
	b := &Broadcaster[T]{
		incoming:    make(chan T, 1),
		subscribers: make(map[chan T]struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster[T]) run() {
	for msg := range b.incoming {
		b.mu.Lock()
		targets := make([]chan T, 0, len(b.subscribers))
		for ch := range b.subscribers {
			targets = append(targets, ch)
		}
		b.mu.Unlock()

		for _, ch := range targets {
			select {
			case ch <- msg:
			default:
				// subscriber is behind: drop its oldest, deliver the newest
				select {
				case <-ch:
				default:
				}
				ch <- msg
			}
		}
	}

	b.mu.Lock()
	for ch := range b.subscribers {
		close(ch)
	}
	b.stopped = true
	b.mu.Unlock()
	logger.Println("broadcaster stopped")
}

// Stop shuts the broadcaster down and closes every subscriber channel. Safe
// to call more than once. The owner must publish its last message before
// stopping; Publish after Stop panics.
func (b *Broadcaster[T]) Stop() {
	b.stopOnce.Do(func() { close(b.incoming) })
}

// Subscribe registers a new subscriber. The returned channel has a buffer of
// one so stale notifications can be replaced without blocking the publisher.
func (b *Broadcaster[T]) Subscribe() (chan T, error) {
	ch := make(chan T, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil, fmt.Errorf("failed to subscribe: broadcaster is stopped")
	}
	b.subscribers[ch] = struct{}{}
	return ch, nil
}

// Unsubscribe removes a subscriber. The channel is left open and simply goes
// quiet; only the stop path ever closes subscriber channels, so the broadcast
// loop can never send on a closed channel.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
}

// Publish hands a message to the broadcast loop without blocking. If the
// intake buffer is full the oldest undelivered message is replaced.
func (b *Broadcaster[T]) Publish(msg T) {
	select {
	case b.incoming <- msg:
	default:
		select {
		case <-b.incoming:
		default:
		}
		b.incoming <- msg
	}
}
