// Package coordinator is the consumer side of a flow: it turns the stream of
// committed states into one Build call per state.
package coordinator

import (
	"context"
	"errors"

	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// ErrSourceClosed is returned by Run when the source stops publishing before
// a terminal state was built.
var ErrSourceClosed = errors.New("state source closed")

// Source publishes committed states. *statemachine.Machine satisfies it.
type Source[S any] interface {
	Subscribe(ctx context.Context) <-chan S
}

// Builder renders one state, typically a screen.
type Builder[S any] interface {
	Build(ctx context.Context, state S) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc[S any] func(ctx context.Context, state S) error

func (f BuilderFunc[S]) Build(ctx context.Context, state S) error {
	return f(ctx, state)
}

// Run calls b.Build once per state published by src, in publish order. The
// next Build starts only after the previous one returned. Run returns nil
// after building a terminal state, the first Build error, ctx.Err() when ctx
// ends, or ErrSourceClosed.
func Run[S any](ctx context.Context, src Source[S], b Builder[S]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := src.Subscribe(ctx)
	built := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-states:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}

				return ErrSourceClosed
			}

			if err := b.Build(ctx, state); err != nil {
				return err
			}

			built++

			if statemachine.IsTerminal(state) {
				logger.Get(ctx).Debug("coordinator reached terminal state",
					"state", statemachine.NameOf(state), "built", built)

				return nil
			}
		}
	}
}
