// Package statemachine is a small engine for typed, hierarchical state
// machines. A flow is described by a sealed State interface, a sealed Event
// interface, a provider of collaborators and a single Transition function that
// switches on the state and then on the event. Machine serializes calls to the
// transition, commits the resulting state and publishes it to subscribers.
//
// Child flows are embedded in a parent state and driven through Child, which
// lifts a finished child into a parent state.
package statemachine

import (
	"context"
	"fmt"
	"strings"
)

// Transition computes the next state. It must not mutate current; on error
// the machine keeps current. Unhandled pairs return InvalidEvent(current, event).
type Transition[S, E, P any] func(ctx context.Context, current S, event E, provider P) (S, error)

// Named is implemented by states and events that carry a stable label.
type Named interface {
	Name() string
}

// Terminal is implemented by final states. A machine whose current state
// reports Terminal() == true rejects every event.
type Terminal interface {
	Terminal() bool
}

// NameOf returns a label for a state or event: its Name() when it has one,
// otherwise its type name without the package path.
func NameOf(v any) string {
	switch n := v.(type) {
	case nil:
		return "<nil>"
	case Named:
		return n.Name()
	case fmt.Stringer:
		return n.String()
	}

	name := fmt.Sprintf("%T", v)
	name = strings.TrimLeft(name, "*")

	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	return name
}

// IsTerminal reports whether v is a final state.
func IsTerminal(v any) bool {
	t, ok := v.(Terminal)

	return ok && t.Terminal()
}
