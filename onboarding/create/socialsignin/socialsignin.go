// Package socialsignin is the first child of the create-wallet flow: the
// user signs in with a social provider and a new wallet is split into shares
// on the key network.
package socialsignin

import (
	"context"

	"github.com/keyapp-labs/flowkit/hashing"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// Container holds the flow's collaborators.
type Container struct {
	TKey onboarding.TKeyFacade
	Auth onboarding.SocialAuthService
	Keys onboarding.KeyService
}

// Result of a finished flow.
type Result interface{ isResult() }

type (
	// Successful carries the new wallet and the shares the next steps bind.
	Successful struct {
		Email        string
		AuthProvider string
		SeedPhrase   string
		ETHPublicKey string
		DeviceShare  string
		CustomShare  string
		Metadata     string
	}
	BreakProcess struct{}
	// SwitchToRestoreFlow means the account already has a wallet.
	SwitchToRestoreFlow struct {
		Provider onboarding.SocialProvider
		Email    string
	}
)

func (Successful) isResult()          {}
func (BreakProcess) isResult()        {}
func (SwitchToRestoreFlow) isResult() {}

// State of the flow.
type State interface {
	isState()
	Name() string
	Step() float64
	Continuable() bool
}

type (
	SocialSelection struct{}
	SignInProgress  struct {
		TokenID  string
		Email    string
		Provider onboarding.SocialProvider
	}
	// AccountWasUsed means the signed-in account already owns a wallet.
	AccountWasUsed struct {
		Provider  onboarding.SocialProvider
		UsedEmail string
	}
	Finish struct{ Result Result }
)

// Initial is the state the flow starts in.
func Initial() State { return SocialSelection{} }

func (SocialSelection) isState() {}
func (SignInProgress) isState()  {}
func (AccountWasUsed) isState()  {}
func (Finish) isState()          {}

func (SocialSelection) Name() string { return "social_selection" }
func (SignInProgress) Name() string  { return "sign_in_progress" }
func (AccountWasUsed) Name() string  { return "account_was_used" }
func (Finish) Name() string          { return "finish" }

func (SocialSelection) Step() float64 { return 1 }
func (SignInProgress) Step() float64  { return 2 }
func (AccountWasUsed) Step() float64  { return 3 }
func (Finish) Step() float64          { return 5 }

func (SocialSelection) Continuable() bool { return false }
func (SignInProgress) Continuable() bool  { return false }
func (AccountWasUsed) Continuable() bool  { return false }
func (Finish) Continuable() bool          { return false }

func (Finish) Terminal() bool { return true }

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	SignIn      struct{ Provider onboarding.SocialProvider }
	SignInTorus struct {
		TokenID  string
		Email    string
		Provider onboarding.SocialProvider
	}
	SignInBack struct{}
	Restore    struct {
		Provider onboarding.SocialProvider
		Email    string
	}
)

func (SignIn) isEvent()      {}
func (SignInTorus) isEvent() {}
func (SignInBack) isEvent()  {}
func (Restore) isEvent()     {}

func (SignIn) Name() string      { return "sign_in" }
func (SignInTorus) Name() string { return "sign_in_torus" }
func (SignInBack) Name() string  { return "sign_in_back" }
func (Restore) Name() string     { return "restore" }

// TorusEvent builds the SignInTorus event that completes s.
func (s SignInProgress) TorusEvent() SignInTorus {
	return SignInTorus(s)
}

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch current.(type) {
	case SocialSelection:
		switch e := event.(type) {
		case SignIn:
			return signIn(ctx, c, e.Provider)
		case SignInBack:
			return Finish{Result: BreakProcess{}}, nil
		}
	case SignInProgress:
		switch e := event.(type) {
		case SignInTorus:
			return signUp(ctx, c, e)
		case SignInBack:
			return SocialSelection{}, nil
		}
	case AccountWasUsed:
		switch e := event.(type) {
		case SignIn:
			return signIn(ctx, c, e.Provider)
		case Restore:
			return Finish{Result: SwitchToRestoreFlow(e)}, nil
		case SignInBack:
			return SocialSelection{}, nil
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

func signIn(ctx context.Context, c Container, provider onboarding.SocialProvider) (State, error) {
	token, email, err := c.Auth.Auth(ctx, provider)
	if err != nil {
		return nil, statemachine.Collaborator("auth", err)
	}

	return SignInProgress{TokenID: token, Email: email, Provider: provider}, nil
}

func signUp(ctx context.Context, c Container, e SignInTorus) (State, error) {
	tokenID := onboarding.TokenID{Value: e.TokenID, Provider: string(e.Provider)}

	result, err := func() (onboarding.SignUpResult, error) {
		if err := c.TKey.Initialize(ctx); err != nil {
			return onboarding.SignUpResult{}, err
		}

		torusKey, err := c.TKey.ObtainTorusKey(ctx, tokenID)
		if err != nil {
			return onboarding.SignUpResult{}, err
		}

		mnemonic, err := c.Keys.NewMnemonic(ctx)
		if err != nil {
			return onboarding.SignUpResult{}, err
		}

		return c.TKey.SignUp(ctx, torusKey, mnemonic)
	}()
	if err != nil {
		if code, ok := onboarding.TKeyCode(err); ok && code == onboarding.TKeyDeviceShareNotFound {
			logger.Get(ctx).Info("account already has a wallet", "email", hashing.Redact(e.Email))

			return AccountWasUsed{Provider: e.Provider, UsedEmail: e.Email}, nil
		}

		return nil, statemachine.Collaborator("tkey.sign_up", err)
	}

	return Finish{Result: Successful{
		Email:        e.Email,
		AuthProvider: string(e.Provider),
		SeedPhrase:   result.PrivateSOL,
		ETHPublicKey: result.ReconstructedETH,
		DeviceShare:  result.DeviceShare,
		CustomShare:  result.CustomShare,
		Metadata:     result.Metadata,
	}}, nil
}
