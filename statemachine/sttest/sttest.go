// Package sttest provides helpers for testing flows built on statemachine.
//
// Runner drives a transition function directly, without a Machine, and keeps
// a trace of every step for later assertions.
package sttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keyapp-labs/flowkit/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Entry records one event fed to a Runner.
type Entry[S, E any] struct {
	From     S
	Event    E
	To       S
	Err      error
	Duration time.Duration
}

// Runner applies events to a transition function the way a Machine would:
// the state only changes when the transition succeeds.
type Runner[S, E, P any] struct {
	t        *testing.T
	ctx      context.Context //nolint:containedctx
	accept   statemachine.Transition[S, E, P]
	provider P
	state    S
	trace    []Entry[S, E]
}

// NewRunner starts a runner in initial. Transitions see t.Context().
func NewRunner[S, E, P any](
	t *testing.T, initial S, provider P, accept statemachine.Transition[S, E, P],
) *Runner[S, E, P] {
	t.Helper()

	return &Runner[S, E, P]{
		t:        t,
		ctx:      t.Context(),
		accept:   accept,
		provider: provider,
		state:    initial,
	}
}

// Try feeds event and returns the resulting state and error without failing the test.
func (r *Runner[S, E, P]) Try(event E) (S, error) { //nolint:ireturn
	r.t.Helper()

	start := time.Now()
	from := r.state

	var (
		next S
		err  error
	)

	if statemachine.IsTerminal(from) {
		err = statemachine.InvalidEvent(from, event)
	} else {
		next, err = r.accept(r.ctx, from, event, r.provider)
	}

	entry := Entry[S, E]{From: from, Event: event, Err: err, Duration: time.Since(start)}

	if err == nil {
		r.state = next
		entry.To = next
	} else {
		entry.To = from
	}

	r.trace = append(r.trace, entry)

	return r.state, err
}

// Send feeds event and fails the test if the transition errors.
func (r *Runner[S, E, P]) Send(events ...E) S { //nolint:ireturn
	r.t.Helper()

	for _, event := range events {
		_, err := r.Try(event)
		require.NoError(r.t, err, "event %s in state %s",
			statemachine.NameOf(event), statemachine.NameOf(r.state))
	}

	return r.state
}

// RequireInvalid feeds event and requires it to be rejected as invalid with
// the state left as it was.
func (r *Runner[S, E, P]) RequireInvalid(event E) {
	r.t.Helper()

	before := statemachine.NameOf(r.state)

	_, err := r.Try(event)
	RequireInvalidEvent(r.t, err)
	require.Equal(r.t, before, statemachine.NameOf(r.state), "state changed on invalid event")
}

// State returns the current state.
func (r *Runner[S, E, P]) State() S { //nolint:ireturn
	return r.state
}

// Trace returns every step fed so far.
func (r *Runner[S, E, P]) Trace() []Entry[S, E] {
	return r.trace
}

// States returns the names of the initial state and of every state reached.
func (r *Runner[S, E, P]) States() []string {
	if len(r.trace) == 0 {
		return []string{statemachine.NameOf(r.state)}
	}

	names := []string{statemachine.NameOf(r.trace[0].From)}

	for _, e := range r.trace {
		if e.Err == nil {
			names = append(names, statemachine.NameOf(e.To))
		}
	}

	return names
}

// AssertStateVisited checks that a state with the given name was reached.
func (r *Runner[S, E, P]) AssertStateVisited(name string) {
	r.t.Helper()

	assert.Contains(r.t, r.States(), name, "state %q should have been visited", name)
}

// AssertTransitionTaken checks that from was directly followed by to.
func (r *Runner[S, E, P]) AssertTransitionTaken(from, to string) {
	r.t.Helper()

	for _, e := range r.trace {
		if e.Err == nil && statemachine.NameOf(e.From) == from && statemachine.NameOf(e.To) == to {
			return
		}
	}

	assert.Fail(r.t, "transition not taken", "from %q to %q; visited %v", from, to, r.States())
}

// RequireFinalState checks the name of the current state.
func (r *Runner[S, E, P]) RequireFinalState(name string) {
	r.t.Helper()

	require.Equal(r.t, name, statemachine.NameOf(r.state))
}

// RequireMonotonicProgress checks that Step never decreased over the
// successful steps of the trace.
func (r *Runner[S, E, P]) RequireMonotonicProgress() {
	r.t.Helper()

	states := make([]any, 0, len(r.trace)+1)
	if len(r.trace) > 0 {
		states = append(states, r.trace[0].From)
	}

	for _, e := range r.trace {
		if e.Err == nil {
			states = append(states, e.To)
		}
	}

	RequireMonotonic(r.t, states...)
}

// RequireInvalidEvent requires err to be an invalid-event rejection.
func RequireInvalidEvent(t *testing.T, err error) {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, statemachine.ErrInvalidEvent)

	var iee *statemachine.InvalidEventError

	require.ErrorAs(t, err, &iee)
}

// RequireMonotonic requires the Step values of states to never decrease.
func RequireMonotonic(t *testing.T, states ...any) {
	t.Helper()

	prev := -1.0

	for i, s := range states {
		step := statemachine.StepOf(s)
		require.GreaterOrEqual(t, step, prev,
			"progress went backwards at %d: %s", i, statemachine.NameOf(s))

		prev = step
	}
}

// RequireInvalidPairs feeds every event to every state and requires the pairs
// that valid rejects to fail with ErrInvalidEvent. Pairs valid accepts are
// skipped because they may need collaborator set-up.
func RequireInvalidPairs[S, E, P any](
	t *testing.T,
	accept statemachine.Transition[S, E, P],
	provider P,
	states []S,
	events []E,
	valid func(S, E) bool,
) {
	t.Helper()

	for _, state := range states {
		for _, event := range events {
			if valid(state, event) {
				continue
			}

			_, err := accept(t.Context(), state, event, provider)
			if !errors.Is(err, statemachine.ErrInvalidEvent) {
				assert.Fail(t, "expected invalid event",
					"state %s, event %s: got %v",
					statemachine.NameOf(state), statemachine.NameOf(event), err)
			}
		}
	}
}

// RequireLifted runs a child step whose child transition finishes and
// requires the parent state to be the lifted one, not the finished child
// wrapped into the parent.
func RequireLifted[CS, CE, CP, R, PS any](
	t *testing.T,
	child statemachine.Child[CS, CE, CP, R, PS],
	state CS,
	event CE,
	provider CP,
) PS { //nolint:ireturn
	t.Helper()

	finished, err := child.Accept(t.Context(), state, event, provider)
	require.NoError(t, err)

	_, done := child.Result(finished)
	require.True(t, done, "child state %s is not final", statemachine.NameOf(finished))

	parent, err := child.Step(t.Context(), state, event, provider)
	require.NoError(t, err)
	require.NotEqual(t, child.Wrap(finished), parent, "finished child was wrapped instead of lifted")

	return parent
}

// Collect reads n values from ch or fails after timeout.
func Collect[S any](t *testing.T, ch <-chan S, n int, timeout time.Duration) []S {
	t.Helper()

	out := make([]S, 0, n)
	deadline := time.After(timeout)

	for len(out) < n {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed after %d of %d values", len(out), n)

			out = append(out, v)
		case <-deadline:
			require.FailNow(t, "timed out", "got %d of %d values", len(out), n)
		}
	}

	return out
}

// Names maps states to their labels.
func Names[S any](states []S) []string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = statemachine.NameOf(s)
	}

	return names
}
