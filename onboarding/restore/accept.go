package restore

import (
	"context"
	"strings"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/restore/custom"
	"github.com/keyapp-labs/flowkit/onboarding/restore/icloud"
	"github.com/keyapp-labs/flowkit/onboarding/restore/seed"
	"github.com/keyapp-labs/flowkit/onboarding/restore/social"
	"github.com/keyapp-labs/flowkit/onboarding/securitysetup"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/statemachine"
)

var breakProcess = Finished{Result: BreakProcess{}}

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch s := current.(type) {
	case Restore:
		return fromRestore(ctx, current, event, c)
	case RestoreICloud:
		if e, ok := event.(ICloudEvent); ok {
			return icloudChild().Step(ctx, s.Inner, e.Event, c.icloud())
		}
	case RestoreSeed:
		if e, ok := event.(SeedEvent); ok {
			return seedChild().Step(ctx, s.Inner, e.Event, seed.Container{})
		}
	case RestoreSocial:
		if e, ok := event.(SocialEvent); ok {
			return socialChild(s.Option).Step(ctx, s.Inner, e.Event, c.social(s.Option))
		}
	case RestoreCustom:
		if e, ok := event.(CustomEvent); ok {
			return customChild(c, current, event).Step(ctx, s.Inner, e.Event, c.custom())
		}
	case SecuritySetup:
		if e, ok := event.(SecurityEvent); ok {
			return securityChild(s).Step(ctx, s.Inner, e.Event, c.security())
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

// fromRestore accepts only the events that open a child flow.
func fromRestore(ctx context.Context, current State, event Event, c Container) (State, error) {
	switch e := event.(type) {
	case ICloudEvent:
		switch e.Event.(type) {
		case icloud.Authorize, icloud.RestoreRawWallet:
			return icloudChild().Step(ctx, icloud.SignIn{}, e.Event, c.icloud())
		}
	case SeedEvent:
		if _, ok := e.Event.(seed.SignInWithSeed); ok {
			return RestoreSeed{Inner: seed.SignInSeed{}}, nil
		}
	case CustomEvent:
		if _, ok := e.Event.(custom.OpenPhoneEntry); ok {
			return RestoreCustom{Inner: custom.EnterPhone{}}, nil
		}
	case SocialEvent:
		if sd, ok := e.Event.(social.SignInDevice); ok {
			return signInDevice(ctx, c, current, event, social.Device, sd.Provider,
				optional.None[onboarding.RestoreWalletResult]())
		}
	case Back, Start:
		return breakProcess, nil
	}

	return nil, statemachine.InvalidEvent(current, event)
}

// signInDevice starts the social child with the device share. Without a
// device share the event that asked for it is invalid.
func signInDevice(
	ctx context.Context,
	c Container,
	current State,
	event Event,
	option social.Option,
	provider onboarding.SocialProvider,
	customResult optional.Value[onboarding.RestoreWalletResult],
) (State, error) {
	share, ok := c.DeviceShare.Get()
	if !ok {
		return nil, statemachine.InvalidEvent(current, event)
	}

	start := social.SignIn{DeviceShare: share, CustomResult: customResult}

	return socialChild(option).Step(ctx, start, social.SignInDevice{Provider: provider}, c.social(option))
}

func securityStart(
	wallet onboarding.Wallet,
	eth optional.Value[string],
	md optional.Value[onboarding.WalletMetadata],
) State {
	return SecuritySetup{Wallet: wallet, ETHPublicKey: eth, Metadata: md, Inner: securitysetup.Initial()}
}

func icloudChild() statemachine.Child[icloud.State, icloud.Event, icloud.Container, icloud.Result, State] {
	return statemachine.Child[icloud.State, icloud.Event, icloud.Container, icloud.Result, State]{
		Accept: icloud.Accept,
		Result: func(s icloud.State) (icloud.Result, bool) {
			f, ok := s.(icloud.Finish)

			return f.Result, ok
		},
		Lift: func(_ context.Context, r icloud.Result) (State, error) {
			switch r := r.(type) {
			case icloud.Successful:
				wallet := onboarding.Wallet{SeedPhrase: r.Phrase, DerivablePath: r.DerivablePath}

				return securityStart(wallet, optional.None[string](), optional.None[onboarding.WalletMetadata]()), nil
			default:
				return Restore{}, nil
			}
		},
		Wrap: func(s icloud.State) State { return RestoreICloud{Inner: s} },
	}
}

func seedChild() statemachine.Child[seed.State, seed.Event, seed.Container, seed.Result, State] {
	return statemachine.Child[seed.State, seed.Event, seed.Container, seed.Result, State]{
		Accept: seed.Accept,
		Result: func(s seed.State) (seed.Result, bool) {
			f, ok := s.(seed.Finish)

			return f.Result, ok
		},
		Lift: func(_ context.Context, r seed.Result) (State, error) {
			switch r := r.(type) {
			case seed.Successful:
				wallet := onboarding.Wallet{SeedPhrase: strings.Join(r.Phrase, " "), DerivablePath: r.DerivablePath}

				return securityStart(wallet, optional.None[string](), optional.None[onboarding.WalletMetadata]()), nil
			default:
				return Restore{}, nil
			}
		},
		Wrap: func(s seed.State) State { return RestoreSeed{Inner: s} },
	}
}

type socialChildT = statemachine.Child[social.State, social.Event, social.Container, social.Result, State]

func socialChild(option social.Option) socialChildT {
	return socialChildT{
		Accept: social.Accept,
		Result: func(s social.State) (social.Result, bool) {
			f, ok := s.(social.Finish)

			return f.Result, ok
		},
		Lift: func(_ context.Context, r social.Result) (State, error) {
			switch r := r.(type) {
			case social.Successful:
				return securityStart(onboarding.NewWallet(r.SeedPhrase), optional.Some(r.ETHPublicKey),
					optional.None[onboarding.WalletMetadata]()), nil
			case social.RequireCustom:
				return RestoreCustom{Inner: custom.EnterPhone{Social: r.Data}}, nil
			default:
				return breakProcess, nil
			}
		},
		Wrap: func(s social.State) State { return RestoreSocial{Inner: s, Option: option} },
	}
}

// customChild needs the parent's state and event because a request for a
// device sign-in is invalid without a device share.
func customChild(
	c Container, current State, event Event,
) statemachine.Child[custom.State, custom.Event, custom.Container, custom.Result, State] {
	return statemachine.Child[custom.State, custom.Event, custom.Container, custom.Result, State]{
		Accept: custom.Accept,
		Result: func(s custom.State) (custom.Result, bool) {
			f, ok := s.(custom.Finish)

			return f.Result, ok
		},
		Lift: func(ctx context.Context, r custom.Result) (State, error) {
			switch r := r.(type) {
			case custom.Successful:
				return securityStart(onboarding.NewWallet(r.SeedPhrase), optional.Some(r.ETHPublicKey), r.Metadata), nil
			case custom.RequireSocialCustom:
				return RestoreSocial{Inner: social.Social{Result: r.Result}, Option: social.Custom}, nil
			case custom.RequireSocialDevice:
				return signInDevice(ctx, c, current, event, social.CustomDevice, r.Provider, r.Result)
			case custom.BreakProcess:
				return Restore{}, nil
			default:
				return breakProcess, nil
			}
		},
		Wrap: func(s custom.State) State { return RestoreCustom{Inner: s} },
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

			return Finished{Result: Successful{Data: RestoreWalletData{
				ETHAddress: s.ETHPublicKey,
				Wallet:     s.Wallet,
				Security:   success.Data,
				Metadata:   s.Metadata,
			}}}, nil
		},
		Wrap: func(inner securitysetup.State) State {
			s.Inner = inner

			return s
		},
	}
}
