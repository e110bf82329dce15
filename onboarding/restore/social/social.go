// Package social restores a wallet by signing in with a social provider and
// combining the social share with the device share or with a custom share
// recovered through the phone flow.
package social

import (
	"context"

	"github.com/keyapp-labs/flowkit/hashing"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// Option records how the social flow was entered.
type Option int

const (
	// Device is a direct social sign-in using the device share.
	Device Option = iota
	// Custom follows a phone restore that found a custom share but no device share.
	Custom
	// CustomDevice follows a phone restore that asked for the device share.
	CustomDevice
)

func (o Option) String() string {
	switch o {
	case Device:
		return "device"
	case Custom:
		return "custom"
	case CustomDevice:
		return "custom_device"
	default:
		return "unknown"
	}
}

// Container holds the flow's collaborators.
type Container struct {
	Option Option
	TKey   onboarding.TKeyFacade
	Auth   onboarding.SocialAuthService
}

// Result of a finished flow.
type Result interface{ isResult() }

type (
	Successful struct {
		SeedPhrase   string
		ETHPublicKey string
	}
	// StartOver sends the user back to the start screen.
	StartOver struct{}
	// RequireCustom asks for the phone restore, passing on what the social
	// sign-in already found.
	RequireCustom struct {
		Data optional.Value[onboarding.RestoreSocialData]
	}
)

func (Successful) isResult()    {}
func (StartOver) isResult()     {}
func (RequireCustom) isResult() {}

// State of the flow.
type State interface {
	isState()
	Name() string
	Step() float64
	Continuable() bool
}

type (
	SignIn struct {
		DeviceShare  string
		CustomResult optional.Value[onboarding.RestoreWalletResult]
	}
	// SignInProgress waits for the key network sign-in; Back returns to BackState.
	SignInProgress struct {
		TokenID      onboarding.TokenID
		Email        string
		DeviceShare  optional.Value[string]
		CustomResult optional.Value[onboarding.RestoreWalletResult]
		BackState    State
	}
	Social struct {
		Result onboarding.RestoreWalletResult
	}
	NotFoundDevice struct {
		Data         onboarding.RestoreSocialData
		DeviceShare  string
		CustomResult optional.Value[onboarding.RestoreWalletResult]
	}
	NotFoundCustom struct {
		Result onboarding.RestoreWalletResult
		Email  string
	}
	NotFoundSocial struct {
		Data         onboarding.RestoreSocialData
		DeviceShare  string
		CustomResult optional.Value[onboarding.RestoreWalletResult]
	}
	Finish struct{ Result Result }
)

func (SignIn) isState()         {}
func (SignInProgress) isState() {}
func (Social) isState()         {}
func (NotFoundDevice) isState() {}
func (NotFoundCustom) isState() {}
func (NotFoundSocial) isState() {}
func (Finish) isState()         {}

func (SignIn) Name() string         { return "sign_in" }
func (SignInProgress) Name() string { return "sign_in_progress" }
func (Social) Name() string         { return "social" }
func (NotFoundDevice) Name() string { return "not_found_device" }
func (NotFoundCustom) Name() string { return "not_found_custom" }
func (NotFoundSocial) Name() string { return "not_found_social" }
func (Finish) Name() string         { return "finish" }

func (SignIn) Step() float64 { return 1 }

// Step is one past the state Back would return to.
func (s SignInProgress) Step() float64 {
	if s.BackState == nil {
		return 1
	}

	return s.BackState.Step() + 1
}

func (Social) Step() float64         { return 2 }
func (NotFoundCustom) Step() float64 { return 3 }
func (NotFoundDevice) Step() float64 { return 4 }
func (NotFoundSocial) Step() float64 { return 5 }
func (Finish) Step() float64         { return 6 }

func (SignIn) Continuable() bool         { return false }
func (SignInProgress) Continuable() bool { return false }
func (Social) Continuable() bool         { return false }
func (NotFoundDevice) Continuable() bool { return false }
func (NotFoundCustom) Continuable() bool { return false }
func (NotFoundSocial) Continuable() bool { return false }
func (Finish) Continuable() bool         { return false }

func (Finish) Terminal() bool { return true }

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	SignInDevice struct{ Provider onboarding.SocialProvider }
	SignInCustom struct{ Provider onboarding.SocialProvider }
	// SignInTorus completes a sign-in started by SignInDevice or SignInCustom.
	SignInTorus struct {
		TokenID      onboarding.TokenID
		Email        string
		DeviceShare  optional.Value[string]
		CustomResult optional.Value[onboarding.RestoreWalletResult]
	}
	Back           struct{}
	Start          struct{}
	SwitchToCustom struct{}
)

func (SignInDevice) isEvent()   {}
func (SignInCustom) isEvent()   {}
func (SignInTorus) isEvent()    {}
func (Back) isEvent()           {}
func (Start) isEvent()          {}
func (SwitchToCustom) isEvent() {}

func (SignInDevice) Name() string   { return "sign_in_device" }
func (SignInCustom) Name() string   { return "sign_in_custom" }
func (SignInTorus) Name() string    { return "sign_in_torus" }
func (Back) Name() string           { return "back" }
func (Start) Name() string          { return "start" }
func (SwitchToCustom) Name() string { return "switch_to_custom" }

// TorusEvent builds the SignInTorus event that completes s.
func (s SignInProgress) TorusEvent() SignInTorus {
	return SignInTorus{
		TokenID:      s.TokenID,
		Email:        s.Email,
		DeviceShare:  s.DeviceShare,
		CustomResult: s.CustomResult,
	}
}

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch s := current.(type) {
	case SignIn:
		if e, ok := event.(SignInDevice); ok {
			return progress(ctx, c, e.Provider, optional.Some(s.DeviceShare), s.CustomResult, Finish{Result: StartOver{}})
		}
	case SignInProgress:
		switch e := event.(type) {
		case SignInTorus:
			if share, ok := e.DeviceShare.Get(); ok {
				return signInDevice(ctx, c, share, e.CustomResult, e.Email, e.TokenID)
			}

			if result, ok := e.CustomResult.Get(); ok {
				return signInCustom(ctx, c, result, e.Email, e.TokenID)
			}
		case Back:
			return s.BackState, nil
		}
	case Social:
		if e, ok := event.(SignInCustom); ok {
			return progress(ctx, c, e.Provider, optional.None[string](), optional.Some(s.Result), s)
		}
	case NotFoundCustom:
		switch e := event.(type) {
		case SignInCustom:
			return progress(ctx, c, e.Provider, optional.None[string](), optional.Some(s.Result), s)
		case Start:
			return Finish{Result: StartOver{}}, nil
		}
	case NotFoundDevice:
		return retry(ctx, c, current, event, s.Data, s.DeviceShare, s.CustomResult)
	case NotFoundSocial:
		return retry(ctx, c, current, event, s.Data, s.DeviceShare, s.CustomResult)
	}

	return nil, statemachine.InvalidEvent(current, event)
}

// retry handles the two not-found states, which accept the same events.
func retry(
	ctx context.Context,
	c Container,
	current State,
	event Event,
	data onboarding.RestoreSocialData,
	deviceShare string,
	customResult optional.Value[onboarding.RestoreWalletResult],
) (State, error) {
	switch e := event.(type) {
	case SignInDevice:
		return progress(ctx, c, e.Provider, optional.Some(deviceShare), customResult, current)
	case Start:
		return Finish{Result: StartOver{}}, nil
	case SwitchToCustom:
		return Finish{Result: RequireCustom{Data: optional.Some(data)}}, nil
	}

	return nil, statemachine.InvalidEvent(current, event)
}

func progress(
	ctx context.Context,
	c Container,
	provider onboarding.SocialProvider,
	deviceShare optional.Value[string],
	customResult optional.Value[onboarding.RestoreWalletResult],
	back State,
) (State, error) {
	token, email, err := c.Auth.Auth(ctx, provider)
	if err != nil {
		return nil, statemachine.Collaborator("auth", err)
	}

	return SignInProgress{
		TokenID:      onboarding.TokenID{Value: token, Provider: string(provider)},
		Email:        email,
		DeviceShare:  deviceShare,
		CustomResult: customResult,
		BackState:    back,
	}, nil
}

func signInDevice(
	ctx context.Context,
	c Container,
	deviceShare string,
	customResult optional.Value[onboarding.RestoreWalletResult],
	email string,
	tokenID onboarding.TokenID,
) (State, error) {
	if err := c.TKey.Initialize(ctx); err != nil {
		return nil, statemachine.Collaborator("tkey.initialize", err)
	}

	torusKey, err := c.TKey.ObtainTorusKey(ctx, tokenID)
	if err != nil {
		return nil, statemachine.Collaborator("tkey.obtain_torus_key", err)
	}

	result, err := c.TKey.SignInWithDeviceShare(ctx, torusKey, deviceShare)
	if err == nil {
		return success(result), nil
	}

	code, ok := onboarding.TKeyCode(err)
	if !ok {
		return nil, statemachine.Collaborator("tkey.sign_in_device", err)
	}

	data := onboarding.RestoreSocialData{TorusKey: torusKey, Email: email}
	log := logger.Get(ctx)

	switch code {
	case onboarding.TKeyDeviceShareNotFound:
		custom, ok := customResult.Get()
		if !ok {
			return NotFoundDevice{Data: data, DeviceShare: deviceShare}, nil
		}

		result, err := c.TKey.SignInWithCustomShare(ctx, torusKey, custom.EncryptedShare, custom.EncryptedPayload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			log.Info("custom share sign-in failed", "email", hashing.Redact(email), "error", err)

			return NotFoundDevice{Data: data, DeviceShare: deviceShare, CustomResult: customResult}, nil
		}

		return success(result), nil
	case onboarding.TKeySocialShareNotFound:
		return NotFoundSocial{Data: data, DeviceShare: deviceShare, CustomResult: customResult}, nil
	default:
		return nil, statemachine.Collaborator("tkey.sign_in_device", err)
	}
}

func signInCustom(
	ctx context.Context,
	c Container,
	result onboarding.RestoreWalletResult,
	email string,
	tokenID onboarding.TokenID,
) (State, error) {
	signed, err := func() (onboarding.SignInResult, error) {
		if err := c.TKey.Initialize(ctx); err != nil {
			return onboarding.SignInResult{}, err
		}

		torusKey, err := c.TKey.ObtainTorusKey(ctx, tokenID)
		if err != nil {
			return onboarding.SignInResult{}, err
		}

		return c.TKey.SignInWithCustomShare(ctx, torusKey, result.EncryptedShare, result.EncryptedPayload)
	}()
	if err == nil {
		return success(signed), nil
	}

	switch code, _ := onboarding.TKeyCode(err); code {
	case onboarding.TKeyDeviceShareNotFound, onboarding.TKeySocialShareNotFound:
		return NotFoundCustom{Result: result, Email: email}, nil
	default:
		return nil, statemachine.Collaborator("tkey.sign_in_custom", err)
	}
}

func success(r onboarding.SignInResult) State {
	return Finish{Result: Successful{SeedPhrase: r.PrivateSOL, ETHPublicKey: r.ReconstructedETH}}
}
