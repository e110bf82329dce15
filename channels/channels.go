// Package channels holds small channel helpers shared by the actor mailbox
// and the state broadcaster.
package channels

import "context"

// Create makes a channel with the given buffer depth and hands back its
// directional halves together with a function reporting how many values
// are currently queued. A depth of zero (or less) yields an unbuffered channel.
func Create[T any](depth int) (chan<- T, <-chan T, func() int) {
	if depth < 0 {
		depth = 0
	}

	ch := make(chan T, depth)

	return ch, ch, func() int {
		return len(ch)
	}
}

// CloseChannelIgnorePanic closes a channel like normal.
// However, if the channel has already been closed,
// it will suppress the resulting panic.
func CloseChannelIgnorePanic[T any](ch chan<- T) {
	if ch == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	close(ch)
}

// InfiniteChanContext creates a channel pair with unbounded buffering between them.
// Values written to the send side come out of the receive side in the order
// they were sent. Closing the send side drains the queue and then closes the
// receive side.
//
// Memory grows without limit if the receiver stops reading, so callers must
// guarantee a reader (or close the send side) for the lifetime of the pair.
//
// Once ctx is done the receive side is closed, queued values are dropped and
// further sends are accepted and discarded until the send side is closed, so
// senders never block for long whatever the reader does.
func InfiniteChanContext[A any](ctx context.Context) (chan<- A, <-chan A) {
	inputCh := make(chan A)
	outputCh := make(chan A)

	go func() {
		var queue []A

		// A nil channel disables its select case while the queue is empty.
		outCh := func() chan A {
			if len(queue) == 0 {
				return nil
			}

			return outputCh
		}

		head := func() A {
			if len(queue) == 0 {
				var zero A

				return zero
			}

			return queue[0]
		}

		in := inputCh

		for len(queue) > 0 || in != nil {
			select {
			case <-ctx.Done():
				close(outputCh)

				if in != nil {
					for range in { //nolint:revive
					}
				}

				return
			case v, ok := <-in:
				if !ok {
					in = nil
				} else {
					queue = append(queue, v)
				}
			case outCh() <- head():
				queue = queue[1:]
			}
		}

		close(outputCh)
	}()

	return inputCh, outputCh
}
