// Package securitysetup is the last child flow of both onboarding flows: the
// user picks a PIN, confirms it and decides on biometric unlock.
package securitysetup

import (
	"context"
	"unicode"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// PIN length bounds.
const (
	MinPinLength = 4
	MaxPinLength = 8
)

// Data is what the flow produces.
type Data struct {
	Pin             string `json:"pin"`
	BiometryEnabled bool   `json:"biometryEnabled"`
}

// Result of a finished flow.
type Result interface{ isResult() }

// Success carries the chosen settings.
type Success struct{ Data Data }

func (Success) isResult() {}

// Problem explains why the user is asked for a PIN again.
type Problem int

const (
	NoProblem Problem = iota
	InvalidPin
	PinMismatch
)

// State of the flow.
type State interface {
	isState()
	Name() string
	Step() float64
	Continuable() bool
}

type (
	CreatePin     struct{ Problem Problem }
	ConfirmPin    struct{ Pin string }
	SetupBiometry struct{ Pin string }
	Finish        struct{ Result Result }
)

func (CreatePin) isState()     {}
func (ConfirmPin) isState()    {}
func (SetupBiometry) isState() {}
func (Finish) isState()        {}

func (CreatePin) Name() string     { return "create_pin" }
func (ConfirmPin) Name() string    { return "confirm_pin" }
func (SetupBiometry) Name() string { return "setup_biometry" }
func (Finish) Name() string        { return "finish" }

func (CreatePin) Step() float64     { return 1 }
func (ConfirmPin) Step() float64    { return 2 }
func (SetupBiometry) Step() float64 { return 3 }
func (Finish) Step() float64        { return 4 }

func (CreatePin) Continuable() bool     { return true }
func (ConfirmPin) Continuable() bool    { return true }
func (SetupBiometry) Continuable() bool { return true }
func (Finish) Continuable() bool        { return false }

func (Finish) Terminal() bool { return true }

// Initial is the state the flow starts in.
func Initial() State {
	return CreatePin{}
}

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	EnterPin    struct{ Pin string }
	RepeatPin   struct{ Pin string }
	SetBiometry struct{ Enabled bool }
	Back        struct{}
)

func (EnterPin) isEvent()    {}
func (RepeatPin) isEvent()   {}
func (SetBiometry) isEvent() {}
func (Back) isEvent()        {}

func (EnterPin) Name() string    { return "enter_pin" }
func (RepeatPin) Name() string   { return "repeat_pin" }
func (SetBiometry) Name() string { return "set_biometry" }
func (Back) Name() string        { return "back" }

// Container holds the flow's collaborators. Biometry may be nil on devices
// without biometric hardware.
type Container struct {
	Biometry onboarding.Biometry
}

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch s := current.(type) {
	case CreatePin:
		if e, ok := event.(EnterPin); ok {
			if !validPin(e.Pin) {
				return CreatePin{Problem: InvalidPin}, nil
			}

			return ConfirmPin{Pin: e.Pin}, nil
		}
	case ConfirmPin:
		switch e := event.(type) {
		case RepeatPin:
			if e.Pin != s.Pin {
				return CreatePin{Problem: PinMismatch}, nil
			}

			return SetupBiometry(s), nil
		case Back:
			return CreatePin{}, nil
		}
	case SetupBiometry:
		switch e := event.(type) {
		case SetBiometry:
			enabled, err := enroll(ctx, c.Biometry, e.Enabled)
			if err != nil {
				return nil, err
			}

			return Finish{Result: Success{Data: Data{Pin: s.Pin, BiometryEnabled: enabled}}}, nil
		case Back:
			return ConfirmPin(s), nil
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

func enroll(ctx context.Context, b onboarding.Biometry, want bool) (bool, error) {
	if !want || b == nil || !b.Available(ctx) {
		return false, nil
	}

	if err := b.Enroll(ctx); err != nil {
		return false, statemachine.Collaborator("biometry.enroll", err)
	}

	return true, nil
}

func validPin(pin string) bool {
	if len(pin) < MinPinLength || len(pin) > MaxPinLength {
		return false
	}

	for _, r := range pin {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return false
		}
	}

	return true
}
