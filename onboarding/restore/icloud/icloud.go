// Package icloud restores a wallet from a keychain backup.
package icloud

import (
	"context"
	"slices"
	"sort"

	"facette.io/natsort"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// Result of a finished flow.
type Result interface{ isResult() }

type (
	// Successful carries the restored phrase.
	Successful struct {
		Phrase        string
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
	SignIn       struct{}
	ChooseWallet struct{ Accounts []onboarding.ICloudAccount }
	Finish       struct{ Result Result }
)

func (SignIn) isState()       {}
func (ChooseWallet) isState() {}
func (Finish) isState()       {}

func (SignIn) Name() string       { return "sign_in" }
func (ChooseWallet) Name() string { return "choose_wallet" }
func (Finish) Name() string       { return "finish" }

func (SignIn) Step() float64       { return 1 }
func (ChooseWallet) Step() float64 { return 2 }
func (Finish) Step() float64       { return 3 }

func (SignIn) Continuable() bool       { return false }
func (ChooseWallet) Continuable() bool { return false }
func (Finish) Continuable() bool       { return false }

func (Finish) Terminal() bool { return true }

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	// Authorize asks the keychain for backed-up accounts.
	Authorize struct{}
	// RestoreRawWallet restores a phrase handed over by the platform.
	RestoreRawWallet struct {
		WalletName    string
		Phrase        string
		DerivablePath onboarding.DerivablePath
	}
	// RestoreWallet restores one of the listed accounts.
	RestoreWallet struct{ Account onboarding.ICloudAccount }
	Back          struct{}
)

func (Authorize) isEvent()        {}
func (RestoreRawWallet) isEvent() {}
func (RestoreWallet) isEvent()    {}
func (Back) isEvent()             {}

func (Authorize) Name() string        { return "authorize" }
func (RestoreRawWallet) Name() string { return "restore_raw_wallet" }
func (RestoreWallet) Name() string    { return "restore_wallet" }
func (Back) Name() string             { return "back" }

// Container holds the flow's collaborators.
type Container struct {
	Accounts onboarding.ICloudAccountProvider
}

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch current.(type) {
	case SignIn:
		switch e := event.(type) {
		case Authorize:
			accounts, err := c.Accounts.Accounts(ctx)
			if err != nil {
				return nil, statemachine.Collaborator("icloud.accounts", err)
			}

			return ChooseWallet{Accounts: sortAccounts(accounts)}, nil
		case RestoreRawWallet:
			return finish(e.Phrase, e.DerivablePath), nil
		case Back:
			return Finish{Result: Returned{}}, nil
		}
	case ChooseWallet:
		switch e := event.(type) {
		case RestoreWallet:
			return finish(e.Account.Phrase, e.Account.DerivablePath), nil
		case RestoreRawWallet:
			return finish(e.Phrase, e.DerivablePath), nil
		case Back:
			return Finish{Result: Returned{}}, nil
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

func finish(phrase string, path onboarding.DerivablePath) State {
	if !path.Valid() {
		path = onboarding.DefaultPath
	}

	return Finish{Result: Successful{Phrase: phrase, DerivablePath: path}}
}

// sortAccounts orders accounts by name so that "wallet 2" comes before "wallet 10".
func sortAccounts(accounts []onboarding.ICloudAccount) []onboarding.ICloudAccount {
	sorted := slices.Clone(accounts)

	sort.SliceStable(sorted, func(i, j int) bool {
		return natsort.Compare(sorted[i].Name, sorted[j].Name)
	})

	return sorted
}
