// Package actor implements a single-consumer mailbox. Messages submitted to an
// actor are processed strictly one at a time, in the order their submission
// completed, which is what the state machine engine relies on to serialize
// transitions. Panics in a processor are recovered and reported to the caller.
package actor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/keyapp-labs/flowkit/channels"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/try"
	"go.uber.org/atomic"
)

// actorMetricsTickerTime is the interval at which queue depth is sampled.
const actorMetricsTickerTime = 10 * time.Second

var (
	// ErrDeadActor is returned when attempting to interact with a stopped actor.
	ErrDeadActor = errors.New("actor is dead")
	// ErrActorPanic is returned when an actor's processor panics during message processing.
	ErrActorPanic = errors.New("panic in actor")
)

// Actor is a factory for running mailboxes of Request/Response messages.
type Actor[Request, Response any] struct {
	factory func(ref *Ref[Request, Response]) Processor[Request, Response]
}

// New creates a new Actor with the given processor factory function.
// The factory is called by Run with the reference of the started actor.
func New[Request, Response any](
	processorFactory func(ref *Ref[Request, Response]) Processor[Request, Response],
) *Actor[Request, Response] {
	return &Actor[Request, Response]{
		factory: processorFactory,
	}
}

func getPanicErr(name string, err any) error {
	if e, ok := err.(error); ok {
		return fmt.Errorf("%w %s: %w", ErrActorPanic, name, e)
	}

	return fmt.Errorf("%w %s: %v", ErrActorPanic, name, err)
}

func (a *Actor[Request, Response]) runProcessor(
	ctx context.Context,
	proc Processor[Request, Response],
	msg Message[Request, Response],
	name string,
) {
	defer func() {
		if err := recover(); err != nil {
			subsystem := logger.GetSubsystem(ctx)

			actorPanic.WithLabelValues(subsystem, name).Inc()

			logger.Get(ctx).Error("actor recovered from panic",
				"actor", name,
				"error", err,
				"stack", string(debug.Stack()))

			var zero Response

			msg.Reply(zero, getPanicErr(name, err))
		}
	}()

	if !msg.start() {
		return
	}

	proc.Process(msg)
}

// Run starts the actor and returns a reference used to send it messages.
// depth is the mailbox buffer size (0 for unbuffered). The actor stops when
// ctx is cancelled or Stop is called; messages already in the mailbox are
// still handed to the processor.
func (a *Actor[Request, Response]) Run(ctx context.Context, name string, depth int) *Ref[Request, Response] {
	w, r, count := channels.Create[Message[Request, Response]](depth)

	ref := &Ref[Request, Response]{
		inboxRead:  r,
		inboxWrite: w,
		getCount:   count,
		name:       name,
		dead:       atomic.NewBool(false),
	}

	ref.wg.Add(1)

	proc := a.factory(ref)

	subsystem := logger.GetSubsystem(ctx)

	processedMessages.WithLabelValues(subsystem, name).Add(0)
	actorPanic.WithLabelValues(subsystem, name).Add(0)
	enqueuedMessages.WithLabelValues(subsystem, name).Set(0)
	aliveActors.WithLabelValues(subsystem, name).Inc()

	ticker := time.NewTicker(actorMetricsTickerTime)

	go func() {
		defer ref.wg.Done()
		defer ticker.Stop()
		defer aliveActors.WithLabelValues(subsystem, name).Dec()

		done := ctx.Done()

		for {
			select {
			case <-done:
				// Stop accepting and keep draining. Stop waits for blocked
				// submitters, which need this loop to make room.
				go ref.Stop()

				done = nil
			case <-ticker.C:
				enqueuedMessages.WithLabelValues(subsystem, name).Set(float64(ref.getCount()))
			case msg, ok := <-ref.inboxRead:
				if !ok {
					return
				}

				start := time.Now()

				a.runProcessor(ctx, proc, msg, name)

				processedMessages.WithLabelValues(subsystem, name).Inc()
				processingTime.WithLabelValues(subsystem, name).Observe(time.Since(start).Seconds())
			}
		}
	}()

	return ref
}

// Ref is a reference to a running actor.
type Ref[Request, Response any] struct {
	wg         sync.WaitGroup
	closeOnce  sync.Once
	sendMu     sync.RWMutex
	inboxRead  <-chan Message[Request, Response]
	inboxWrite chan<- Message[Request, Response]
	getCount   func() int
	dead       *atomic.Bool
	name       string
}

// Name returns the actor's name.
func (r *Ref[Request, Response]) Name() string {
	return r.name
}

// Alive returns true if the actor still accepts messages.
func (r *Ref[Request, Response]) Alive() bool {
	return !r.dead.Load()
}

// Pending returns the number of messages waiting in the mailbox.
func (r *Ref[Request, Response]) Pending() int {
	return r.getCount()
}

// Stop closes the mailbox. Queued messages are still processed. It is safe
// to call multiple times and concurrently with submissions.
func (r *Ref[Request, Response]) Stop() {
	r.closeOnce.Do(func() {
		r.dead.Store(true)

		// Wait for in-flight submissions so close never races a send.
		r.sendMu.Lock()
		defer r.sendMu.Unlock()

		channels.CloseChannelIgnorePanic(r.inboxWrite)
	})
}

// Wait blocks until the actor has fully stopped processing messages.
func (r *Ref[Request, Response]) Wait() {
	r.wg.Wait()
}

func (r *Ref[Request, Response]) submit(ctx context.Context, message Message[Request, Response]) error {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	if r.dead.Load() {
		return ErrDeadActor
	}

	subsystem := logger.GetSubsystem(ctx)

	submitCount.WithLabelValues(subsystem, r.name).Inc()

	begin := time.Now()
	message.Enqueued = begin

	if message.Context == nil {
		message.Context = ctx
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.inboxWrite <- message:
	}

	submitTime.WithLabelValues(subsystem, r.name).Observe(time.Since(begin).Seconds())

	return nil
}

// RequestCtx submits a request and waits for its response or for ctx to end.
// A request still in the mailbox when ctx ends is abandoned and never
// processed. Once the processor has started it, RequestCtx waits for the
// reply even if ctx ends, so the caller always learns the outcome of work
// that ran.
func (r *Ref[Request, Response]) RequestCtx(ctx context.Context, request Request) (Response, error) { //nolint:ireturn
	var zero Response

	responseChan := make(chan try.Try[Response], 1)

	msg := Message[Request, Response]{
		Context:      ctx,
		Request:      request,
		ResponseChan: responseChan,
		claim:        atomic.NewInt32(claimPending),
	}

	err := r.submit(ctx, msg)
	if err != nil {
		return zero, err
	}

	start := time.Now()

	select {
	case <-ctx.Done():
		if msg.abandon() {
			return zero, ctx.Err()
		}
	case val := <-responseChan:
		receiveTime.WithLabelValues(logger.GetSubsystem(ctx), r.name).Observe(time.Since(start).Seconds())

		return val.Get()
	}

	val := <-responseChan

	receiveTime.WithLabelValues(logger.GetSubsystem(ctx), r.name).Observe(time.Since(start).Seconds())

	return val.Get()
}
