package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type childState interface{ isChildState() }

type (
	askName  struct{}
	askAge   struct{ Name string }
	answered struct{ Name string }
)

func (askName) isChildState()  {}
func (askAge) isChildState()   {}
func (answered) isChildState() {}

type parentState interface{ isParentState() }

type (
	inChild struct{ Inner childState }
	welcome struct{ Name string }
)

func (inChild) isParentState() {}
func (welcome) isParentState() {}

func childTransition(_ context.Context, s childState, event string, _ struct{}) (childState, error) {
	switch s := s.(type) {
	case askName:
		return askAge{Name: event}, nil
	case askAge:
		if event == "" {
			return nil, Collaborator("age", errBackend)
		}

		return answered{Name: s.Name}, nil
	}

	return nil, InvalidEvent(s, event)
}

func newChild() Child[childState, string, struct{}, string, parentState] {
	return Child[childState, string, struct{}, string, parentState]{
		Accept: childTransition,
		Result: func(s childState) (string, bool) {
			if a, ok := s.(answered); ok {
				return a.Name, true
			}

			return "", false
		},
		Lift: func(_ context.Context, name string) (parentState, error) {
			return welcome{Name: name}, nil
		},
		Wrap: func(s childState) parentState {
			return inChild{Inner: s}
		},
	}
}

func TestChild_WrapsIntermediateStates(t *testing.T) {
	t.Parallel()

	next, err := newChild().Step(t.Context(), askName{}, "ada", struct{}{})
	require.NoError(t, err)
	assert.Equal(t, inChild{Inner: askAge{Name: "ada"}}, next)
}

func TestChild_LiftsFinishedChild(t *testing.T) {
	t.Parallel()

	next, err := newChild().Step(t.Context(), askAge{Name: "ada"}, "36", struct{}{})
	require.NoError(t, err)
	assert.Equal(t, welcome{Name: "ada"}, next)
}

func TestChild_PropagatesErrors(t *testing.T) {
	t.Parallel()

	_, err := newChild().Step(t.Context(), askAge{Name: "ada"}, "", struct{}{})
	require.ErrorIs(t, err, ErrCollaborator)

	_, err = newChild().Step(t.Context(), answered{}, "x", struct{}{})
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestChild_SettleLiftFailure(t *testing.T) {
	t.Parallel()

	errLift := errors.New("lift failed")

	c := newChild()
	c.Lift = func(context.Context, string) (parentState, error) { return nil, errLift }

	_, err := c.Settle(t.Context(), answered{Name: "ada"})
	require.ErrorIs(t, err, errLift)

	next, err := c.Settle(t.Context(), askName{})
	require.NoError(t, err)
	assert.Equal(t, inChild{Inner: askName{}}, next)
}
