package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/keyapp-labs/flowkit/actor"
)

var (
	// ErrInvalidEvent is returned when the current state has no transition for an event.
	ErrInvalidEvent = errors.New("invalid event for current state")
	// ErrCollaborator marks a failure of an external collaborator that the flow
	// did not model as a state.
	ErrCollaborator = errors.New("collaborator failure")
	// ErrMachineClosed is returned by Accept after Close.
	ErrMachineClosed = errors.New("state machine is closed")
	// ErrStageOverflow indicates a child step outside [0, StageWidth).
	ErrStageOverflow = errors.New("child step exceeds stage width")
)

// InvalidEventError names the state and event of a rejected pair.
type InvalidEventError struct {
	State string
	Event string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("%s: event %s in state %s", ErrInvalidEvent, e.Event, e.State)
}

func (e *InvalidEventError) Unwrap() error {
	return ErrInvalidEvent
}

// InvalidEvent is what a transition returns for a state/event pair it does not handle.
func InvalidEvent(state, event any) error {
	return &InvalidEventError{
		State: NameOf(state),
		Event: NameOf(event),
	}
}

// CollaboratorError wraps an error from a collaborator call. Both
// ErrCollaborator and the wrapped error match with errors.Is.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCollaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaborator, e.Err}
}

// Collaborator marks err as a propagated collaborator failure of op.
// It returns nil for a nil err and leaves already marked errors untouched.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}

	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}

	return &CollaboratorError{Op: op, Err: err}
}

// TransitionError is returned by Machine.Accept when a transition fails.
type TransitionError struct {
	Flow  string
	State string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s + %s: %v", e.Flow, e.State, e.Event, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Error kinds used as metric labels.
const (
	KindInvalidEvent = "invalid_event"
	KindCollaborator = "collaborator"
	KindCanceled     = "canceled"
	KindClosed       = "closed"
	KindPanic        = "panic"
)

// ErrorKind classifies a transition failure. Anything not recognised counts
// as a collaborator failure.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEvent):
		return KindInvalidEvent
	case errors.Is(err, ErrMachineClosed):
		return KindClosed
	case errors.Is(err, actor.ErrActorPanic):
		return KindPanic
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindCollaborator
	}
}
