// Package seed restores a wallet from a typed-in seed phrase.
package seed

import (
	"context"
	"strings"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// Result of a finished flow.
type Result interface{ isResult() }

type (
	// Successful carries the phrase words and the chosen derivation path.
	Successful struct {
		Phrase        []string
		DerivablePath onboarding.DerivablePath
	}
	// Returned means the user went back to the restore options.
	Returned struct{}
)

func (Successful) isResult() {}
func (Returned) isResult()   {}

// State of the flow.
type State interface {
	isState()
	Name() string
	Step() float64
	Continuable() bool
}

type (
	// SignInSeed waits for the phrase. Rejected is set after a phrase of the
	// wrong length.
	SignInSeed           struct{ Rejected bool }
	ChooseDerivationPath struct{ Phrase []string }
	Finish               struct{ Result Result }
)

func (SignInSeed) isState()           {}
func (ChooseDerivationPath) isState() {}
func (Finish) isState()               {}

func (SignInSeed) Name() string           { return "sign_in_seed" }
func (ChooseDerivationPath) Name() string { return "choose_derivation_path" }
func (Finish) Name() string               { return "finish" }

func (SignInSeed) Step() float64           { return 1 }
func (ChooseDerivationPath) Step() float64 { return 2 }
func (Finish) Step() float64               { return 3 }

func (SignInSeed) Continuable() bool           { return false }
func (ChooseDerivationPath) Continuable() bool { return false }
func (Finish) Continuable() bool               { return false }

func (Finish) Terminal() bool { return true }

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	// SignInWithSeed opens the flow from the restore options.
	SignInWithSeed      struct{}
	ChooseSeed          struct{ Phrase []string }
	ChooseDerivablePath struct{ Path onboarding.DerivablePath }
	Back                struct{}
)

func (SignInWithSeed) isEvent()      {}
func (ChooseSeed) isEvent()          {}
func (ChooseDerivablePath) isEvent() {}
func (Back) isEvent()                {}

func (SignInWithSeed) Name() string      { return "sign_in_with_seed" }
func (ChooseSeed) Name() string          { return "choose_seed" }
func (ChooseDerivablePath) Name() string { return "choose_derivable_path" }
func (Back) Name() string                { return "back" }

// Container is empty: the flow needs no collaborators.
type Container struct{}

// Accept is the flow's transition function.
func Accept(_ context.Context, current State, event Event, _ Container) (State, error) { //nolint:ireturn
	switch s := current.(type) {
	case SignInSeed:
		switch e := event.(type) {
		case ChooseSeed:
			words := normalize(e.Phrase)
			if !validLength(len(words)) {
				return SignInSeed{Rejected: true}, nil
			}

			return ChooseDerivationPath{Phrase: words}, nil
		case Back:
			return Finish{Result: Returned{}}, nil
		}
	case ChooseDerivationPath:
		switch e := event.(type) {
		case ChooseDerivablePath:
			if !e.Path.Valid() {
				break
			}

			return Finish{Result: Successful{Phrase: s.Phrase, DerivablePath: e.Path}}, nil
		case Back:
			return SignInSeed{}, nil
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

func normalize(phrase []string) []string {
	words := make([]string, 0, len(phrase))

	for _, chunk := range phrase {
		for _, w := range strings.Fields(chunk) {
			words = append(words, strings.ToLower(w))
		}
	}

	return words
}

func validLength(n int) bool {
	return n == 12 || n == 24
}
