package statemachine

import (
	"context"
	"sync"

	"github.com/keyapp-labs/flowkit/channels"
)

// broadcaster fans committed states out to subscribers. Each subscriber gets
// its own unbounded queue, so a slow reader never stalls the machine and never
// misses a state.
type broadcaster[S any] struct {
	mu     sync.Mutex
	latest S
	subs   map[uint64]chan<- S
	nextID uint64
	closed bool
	done   chan struct{}
}

func newBroadcaster[S any](initial S) *broadcaster[S] {
	return &broadcaster[S]{
		latest: initial,
		subs:   make(map[uint64]chan<- S),
		done:   make(chan struct{}),
	}
}

// subscribe replays the latest state and then every published one. The
// channel closes when ctx is done or the broadcaster is closed.
func (b *broadcaster[S]) subscribe(ctx context.Context) <-chan S {
	in, out := channels.InfiniteChanContext[S](ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		in <- b.latest

		close(in)

		return out
	}

	in <- b.latest

	id := b.nextID
	b.nextID++
	b.subs[id] = in

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(id)
		case <-b.done:
		}
	}()

	return out
}

func (b *broadcaster[S]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if in, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(in)
	}
}

func (b *broadcaster[S]) publish(state S) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.latest = state

	for _, in := range b.subs {
		in <- state
	}
}

func (b *broadcaster[S]) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

func (b *broadcaster[S]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, in := range b.subs {
		delete(b.subs, id)
		close(in)
	}

	close(b.done)
}
