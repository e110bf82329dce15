package statemachine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keyapp-labs/flowkit/actor"
	"github.com/keyapp-labs/flowkit/logger"
)

const defaultMailboxDepth = 16

type options struct {
	name  string
	log   *slog.Logger
	depth int
}

// Option configures a Machine.
type Option func(*options)

// WithName sets the flow name used in logs, spans and metric labels.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger overrides the logger taken from the construction context.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithMailboxDepth sets how many events may wait before Accept blocks on submit.
func WithMailboxDepth(depth int) Option {
	return func(o *options) {
		if depth >= 0 {
			o.depth = depth
		}
	}
}

// Machine holds the current state of one flow instance and runs its
// transition for every accepted event. Events are handled one at a time in
// arrival order; a failed transition leaves the state untouched.
type Machine[S, E, P any] struct {
	id       uuid.UUID
	name     string
	provider P
	accept   Transition[S, E, P]
	log      *slog.Logger

	mu      sync.RWMutex
	current S

	ref       *actor.Ref[E, S]
	bus       *broadcaster[S]
	closeOnce sync.Once
}

// New creates a machine in state initial. No transition runs until the first
// Accept. The machine stops when ctx is done or Close is called.
func New[S, E, P any](
	ctx context.Context,
	initial S,
	provider P,
	accept Transition[S, E, P],
	opts ...Option,
) *Machine[S, E, P] {
	o := options{depth: defaultMailboxDepth}

	for _, opt := range opts {
		opt(&o)
	}

	m := &Machine[S, E, P]{
		id:       uuid.New(),
		name:     sanitizeFlow(o.name),
		provider: provider,
		accept:   accept,
		current:  initial,
		bus:      newBroadcaster(initial),
	}

	log := o.log
	if log == nil {
		log = logger.Get(ctx)
	}

	m.log = log.With("flow", m.name, "machine_id", m.id.String())

	act := actor.New(func(*actor.Ref[E, S]) actor.Processor[E, S] {
		return actor.NewProcessor(m.process)
	})

	m.ref = act.Run(ctx, "statemachine."+m.name, o.depth)

	go func() {
		m.ref.Wait()
		m.bus.close()
	}()

	return m
}

// ID identifies this machine instance in logs and spans.
func (m *Machine[S, E, P]) ID() uuid.UUID {
	return m.id
}

// Name returns the flow name.
func (m *Machine[S, E, P]) Name() string {
	return m.name
}

// Current returns the committed state without waiting for queued events.
func (m *Machine[S, E, P]) Current() S { //nolint:ireturn
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current
}

// Accept queues event behind any earlier ones and waits for its transition.
// On success it returns the new state. On failure it returns the unchanged
// current state with an error; transition failures are *TransitionError and
// match the underlying sentinel or collaborator error with errors.Is. If ctx
// ends while the event is still queued the event is dropped and ctx.Err() is
// returned; once its transition has started Accept reports its outcome.
func (m *Machine[S, E, P]) Accept(ctx context.Context, event E) (S, error) { //nolint:ireturn
	next, err := m.ref.RequestCtx(ctx, event)
	if err == nil {
		return next, nil
	}

	state := m.Current()

	switch {
	case errors.Is(err, actor.ErrDeadActor):
		err = ErrMachineClosed
	case errors.Is(err, actor.ErrActorPanic):
	default:
		return state, err
	}

	err = &TransitionError{Flow: m.name, State: NameOf(state), Event: NameOf(event), Err: err}

	acceptErrorsTotal.WithLabelValues(m.name, NameOf(state), ErrorKind(err)).Inc()

	return state, err
}

// Subscribe returns a channel that first carries the current state and then
// every committed state, in commit order. Nothing is dropped. The channel is
// closed when ctx is done or the machine is closed.
func (m *Machine[S, E, P]) Subscribe(ctx context.Context) <-chan S {
	return m.bus.subscribe(ctx)
}

// Subscribers returns the number of live subscriptions.
func (m *Machine[S, E, P]) Subscribers() int {
	return m.bus.subscribers()
}

// Close stops accepting events, lets queued ones finish and closes every
// subscription. It must not be called from inside a transition.
func (m *Machine[S, E, P]) Close() {
	m.closeOnce.Do(func() {
		m.ref.Stop()
		m.ref.Wait()
		m.bus.close()
	})
}

// process runs on the actor's single consumer goroutine.
func (m *Machine[S, E, P]) process(msg actor.Message[E, S]) {
	ctx := msg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if !msg.Enqueued.IsZero() {
		queueWait.WithLabelValues(m.name).Observe(time.Since(msg.Enqueued).Seconds())
	}

	next, err := m.apply(ctx, msg.Request)
	msg.Reply(next, err)
}

func (m *Machine[S, E, P]) apply(ctx context.Context, event E) (S, error) { //nolint:ireturn
	from := m.Current()
	fromName := NameOf(from)
	eventName := NameOf(event)

	ctx, span := startAcceptSpan(ctx, m.name, m.id.String(), fromName, eventName)
	defer span.End()

	start := time.Now()

	next, err := m.run(ctx, from, event)

	// A caller that left while the transition ran gets nothing committed.
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	took := time.Since(start)
	acceptDuration.WithLabelValues(m.name, outcomeOf(err)).Observe(took.Seconds())

	if err != nil {
		err = &TransitionError{Flow: m.name, State: fromName, Event: eventName, Err: err}

		finishAcceptSpan(span, "", err)
		acceptErrorsTotal.WithLabelValues(m.name, fromName, ErrorKind(err)).Inc()
		logFailed(ctx, m.log, fromName, eventName, err)

		return from, err
	}

	toName := NameOf(next)

	m.mu.Lock()
	m.current = next
	m.mu.Unlock()

	m.bus.publish(next)

	finishAcceptSpan(span, toName, nil)
	transitionsTotal.WithLabelValues(m.name, fromName, toName).Inc()
	logCommitted(ctx, m.log, fromName, eventName, toName, took)

	return next, nil
}

func (m *Machine[S, E, P]) run(ctx context.Context, from S, event E) (S, error) { //nolint:ireturn
	if err := ctx.Err(); err != nil {
		return from, err
	}

	if IsTerminal(from) {
		return from, InvalidEvent(from, event)
	}

	next, err := m.accept(ctx, from, event, m.provider)
	if err != nil {
		return from, err
	}

	return next, nil
}

// String identifies the machine in debug output.
func (m *Machine[S, E, P]) String() string {
	return fmt.Sprintf("%s[%s] in %s", m.name, m.id, NameOf(m.Current()))
}
