// Package create is the create-wallet flow: social sign-in creates the
// wallet, the phone number is bound to its custom share and security setup
// finishes the onboarding.
package create

import (
	"context"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/create/bindphone"
	"github.com/keyapp-labs/flowkit/onboarding/create/socialsignin"
	"github.com/keyapp-labs/flowkit/onboarding/securitysetup"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// FlowName labels create machines in logs, spans and metrics.
const FlowName = "create"

// Stages of the flow, in progress order.
const (
	StageSocialSignIn statemachine.Stage = iota + 1
	StageBindingPhone
	StageSecuritySetup
	StageFinished
)

// Container holds every collaborator the flow and its children need.
type Container struct {
	Auth       onboarding.SocialAuthService
	APIGateway onboarding.APIGatewayClient
	TKey       onboarding.TKeyFacade
	Keys       onboarding.KeyService
	Biometry   onboarding.Biometry
	DeviceName string
	Clock      onboarding.Clock
}

// CreateWalletData is what a successful creation produces.
type CreateWalletData struct {
	ETHAddress  string                    `json:"ethAddress"`
	DeviceShare string                    `json:"deviceShare"`
	Wallet      onboarding.Wallet         `json:"wallet"`
	Security    securitysetup.Data        `json:"security"`
	Metadata    onboarding.WalletMetadata `json:"metadata"`
}

// Result of a finished flow.
type Result interface{ isResult() }

type (
	NewWallet    struct{ Data CreateWalletData }
	BreakProcess struct{}
	// SwitchToRestoreFlow means the account already owns a wallet.
	SwitchToRestoreFlow struct {
		Provider onboarding.SocialProvider
		Email    string
	}
)

func (NewWallet) isResult()           {}
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
	SocialSignIn       struct{ Inner socialsignin.State }
	BindingPhoneNumber struct {
		Email        string
		AuthProvider string
		SeedPhrase   string
		ETHPublicKey string
		DeviceShare  string
		Inner        bindphone.State
	}
	SecuritySetup struct {
		Wallet       onboarding.Wallet
		ETHPublicKey string
		DeviceShare  string
		Metadata     onboarding.WalletMetadata
		Inner        securitysetup.State
	}
	Finish struct{ Result Result }
)

// Initial is the state a creation starts in.
func Initial() State { return SocialSignIn{Inner: socialsignin.Initial()} }

func (SocialSignIn) isState()       {}
func (BindingPhoneNumber) isState() {}
func (SecuritySetup) isState()      {}
func (Finish) isState()             {}

func (s SocialSignIn) Name() string { return "social_sign_in." + statemachine.NameOf(s.Inner) }
func (s BindingPhoneNumber) Name() string {
	return "binding_phone_number." + statemachine.NameOf(s.Inner)
}
func (s SecuritySetup) Name() string { return "security_setup." + statemachine.NameOf(s.Inner) }
func (Finish) Name() string          { return "finish" }

func (s SocialSignIn) Step() float64 { return StageSocialSignIn.Progress(statemachine.StepOf(s.Inner)) }
func (s BindingPhoneNumber) Step() float64 {
	return StageBindingPhone.Progress(statemachine.StepOf(s.Inner))
}
func (s SecuritySetup) Step() float64 {
	return StageSecuritySetup.Progress(statemachine.StepOf(s.Inner))
}
func (Finish) Step() float64 { return StageFinished.Progress(0) }

func (s SocialSignIn) Continuable() bool       { return statemachine.ContinuableOf(s.Inner) }
func (s BindingPhoneNumber) Continuable() bool { return statemachine.ContinuableOf(s.Inner) }
func (s SecuritySetup) Continuable() bool      { return statemachine.ContinuableOf(s.Inner) }
func (Finish) Continuable() bool               { return false }

func (Finish) Terminal() bool { return true }

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	SocialSignInEvent struct{ Event socialsignin.Event }
	BindingPhoneEvent struct{ Event bindphone.Event }
	SecurityEvent     struct{ Event securitysetup.Event }
)

func (SocialSignInEvent) isEvent() {}
func (BindingPhoneEvent) isEvent() {}
func (SecurityEvent) isEvent()     {}

func (e SocialSignInEvent) Name() string { return "social_sign_in." + statemachine.NameOf(e.Event) }
func (e BindingPhoneEvent) Name() string { return "binding_phone." + statemachine.NameOf(e.Event) }
func (e SecurityEvent) Name() string     { return "security." + statemachine.NameOf(e.Event) }

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch s := current.(type) {
	case SocialSignIn:
		if e, ok := event.(SocialSignInEvent); ok {
			return socialSignInChild(c).Step(ctx, s.Inner, e.Event,
				socialsignin.Container{TKey: c.TKey, Auth: c.Auth, Keys: c.Keys})
		}
	case BindingPhoneNumber:
		if e, ok := event.(BindingPhoneEvent); ok {
			return bindPhoneChild(s).Step(ctx, s.Inner, e.Event,
				bindphone.Container{APIGateway: c.APIGateway, Keys: c.Keys, Clock: c.Clock})
		}
	case SecuritySetup:
		if e, ok := event.(SecurityEvent); ok {
			return securityChild(s).Step(ctx, s.Inner, e.Event, securitysetup.Container{Biometry: c.Biometry})
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

// New starts a create machine in Initial.
func New(ctx context.Context, c Container, opts ...statemachine.Option) *statemachine.Machine[State, Event, Container] {
	opts = append([]statemachine.Option{statemachine.WithName(FlowName)}, opts...)

	return statemachine.New(ctx, Initial(), c, Accept, opts...)
}

func socialSignInChild(
	c Container,
) statemachine.Child[socialsignin.State, socialsignin.Event, socialsignin.Container, socialsignin.Result, State] {
	return statemachine.Child[socialsignin.State, socialsignin.Event, socialsignin.Container, socialsignin.Result, State]{
		Accept: socialsignin.Accept,
		Result: func(s socialsignin.State) (socialsignin.Result, bool) {
			f, ok := s.(socialsignin.Finish)

			return f.Result, ok
		},
		Lift: func(_ context.Context, r socialsignin.Result) (State, error) {
			switch r := r.(type) {
			case socialsignin.Successful:
				data := bindphone.NewData(r.SeedPhrase, r.ETHPublicKey, r.CustomShare, r.Metadata,
					c.DeviceName, r.Email, r.AuthProvider)

				return BindingPhoneNumber{
					Email:        r.Email,
					AuthProvider: r.AuthProvider,
					SeedPhrase:   r.SeedPhrase,
					ETHPublicKey: r.ETHPublicKey,
					DeviceShare:  r.DeviceShare,
					Inner:        bindphone.Initial(data),
				}, nil
			case socialsignin.SwitchToRestoreFlow:
				return Finish{Result: SwitchToRestoreFlow(r)}, nil
			default:
				return Finish{Result: BreakProcess{}}, nil
			}
		},
		Wrap: func(s socialsignin.State) State { return SocialSignIn{Inner: s} },
	}
}

func bindPhoneChild(
	s BindingPhoneNumber,
) statemachine.Child[bindphone.State, bindphone.Event, bindphone.Container, bindphone.Result, State] {
	return statemachine.Child[bindphone.State, bindphone.Event, bindphone.Container, bindphone.Result, State]{
		Accept: bindphone.Accept,
		Result: func(inner bindphone.State) (bindphone.Result, bool) {
			f, ok := inner.(bindphone.Finish)

			return f.Result, ok
		},
		Lift: func(_ context.Context, r bindphone.Result) (State, error) {
			success, ok := r.(bindphone.Success)
			if !ok {
				return Finish{Result: BreakProcess{}}, nil
			}

			return SecuritySetup{
				Wallet:       onboarding.NewWallet(s.SeedPhrase),
				ETHPublicKey: s.ETHPublicKey,
				DeviceShare:  s.DeviceShare,
				Metadata:     success.Metadata,
				Inner:        securitysetup.Initial(),
			}, nil
		},
		Wrap: func(inner bindphone.State) State {
			s.Inner = inner

			return s
		},
	}
}

type securityChildT = statemachine.Child[
	securitysetup.State, securitysetup.Event, securitysetup.Container, securitysetup.Result, State,
]

func securityChild(
	s SecuritySetup,
) securityChildT {
	return securityChildT{
		Accept: securitysetup.Accept,
		Result: func(inner securitysetup.State) (securitysetup.Result, bool) {
			f, ok := inner.(securitysetup.Finish)

			return f.Result, ok
		},
		Lift: func(_ context.Context, r securitysetup.Result) (State, error) {
			success, ok := r.(securitysetup.Success)
			if !ok {
				return nil, statemachine.InvalidEvent(s, r)
			}

			return Finish{Result: NewWallet{Data: CreateWalletData{
				ETHAddress:  s.ETHPublicKey,
				DeviceShare: s.DeviceShare,
				Wallet:      s.Wallet,
				Security:    success.Data,
				Metadata:    s.Metadata,
			}}}, nil
		},
		Wrap: func(inner securitysetup.State) State {
			s.Inner = inner

			return s
		},
	}
}
