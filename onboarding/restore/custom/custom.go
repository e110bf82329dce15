// Package custom restores a wallet through the phone number bound to it.
//
// The API gateway sends an OTP to the number; a confirmed OTP returns the
// custom share, which is combined with the device share or with a social
// sign-in to rebuild the wallet. Without either, the flow hands the custom
// share over to the social flow.
package custom

import (
	"context"
	"time"

	"github.com/keyapp-labs/flowkit/hashing"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/sanitize"
	"github.com/keyapp-labs/flowkit/statemachine"
)

// Container holds the flow's collaborators.
type Container struct {
	TKey        onboarding.TKeyFacade
	APIGateway  onboarding.APIGatewayClient
	Auth        onboarding.SocialAuthService
	Keys        onboarding.KeyService
	DeviceShare optional.Value[string]
	Clock       onboarding.Clock
}

// Result of a finished flow.
type Result interface{ isResult() }

type (
	Successful struct {
		SeedPhrase   string
		ETHPublicKey string
		Metadata     optional.Value[onboarding.WalletMetadata]
	}
	// RequireSocialCustom passes the custom share to a social sign-in.
	RequireSocialCustom struct {
		Result onboarding.RestoreWalletResult
	}
	// RequireSocialDevice asks for a social sign-in with the device share,
	// with the custom share when one was recovered.
	RequireSocialDevice struct {
		Provider onboarding.SocialProvider
		Result   optional.Value[onboarding.RestoreWalletResult]
	}
	StartOver    struct{}
	BreakProcess struct{}
)

func (Successful) isResult()          {}
func (RequireSocialCustom) isResult() {}
func (RequireSocialDevice) isResult() {}
func (StartOver) isResult()           {}
func (BreakProcess) isResult()        {}

// State of the flow.
type State interface {
	isState()
	Name() string
	Step() float64
	Continuable() bool
}

type (
	// EnterPhone waits for the phone number. InitialPhone and DidSend let a
	// user coming back from EnterOTP continue without a second OTP.
	EnterPhone struct {
		InitialPhone  string
		DidSend       bool
		ResendCounter optional.Value[onboarding.ResendCounter]
		SolPrivateKey []byte
		Social        optional.Value[onboarding.RestoreSocialData]
	}
	EnterOTP struct {
		Phone         string
		SolPrivateKey []byte
		Social        optional.Value[onboarding.RestoreSocialData]
		Attempt       onboarding.ResendCounter
	}
	OTPNotDeliveredTrySocial struct {
		Phone string
		Code  int
	}
	OTPNotDelivered struct {
		Phone string
		Code  int
	}
	// NoMatch means the recovered shares did not rebuild a wallet.
	NoMatch        struct{}
	NotFoundDevice struct {
		Result onboarding.RestoreWalletResult
	}
	// TryAnother follows a number the gateway does not know.
	TryAnother struct {
		WrongNumber string
		TrySocial   bool
	}
	Broken struct{ Code int }
	Block  struct {
		Until  time.Time
		Social optional.Value[onboarding.RestoreSocialData]
		Reason onboarding.BlockReason
	}
	Finish struct{ Result Result }
)

func (EnterPhone) isState()               {}
func (EnterOTP) isState()                 {}
func (OTPNotDeliveredTrySocial) isState() {}
func (OTPNotDelivered) isState()          {}
func (NoMatch) isState()                  {}
func (NotFoundDevice) isState()           {}
func (TryAnother) isState()               {}
func (Broken) isState()                   {}
func (Block) isState()                    {}
func (Finish) isState()                   {}

func (EnterPhone) Name() string               { return "enter_phone" }
func (EnterOTP) Name() string                 { return "enter_otp" }
func (OTPNotDeliveredTrySocial) Name() string { return "otp_not_delivered_try_social" }
func (OTPNotDelivered) Name() string          { return "otp_not_delivered" }
func (NoMatch) Name() string                  { return "no_match" }
func (NotFoundDevice) Name() string           { return "not_found_device" }
func (TryAnother) Name() string               { return "try_another" }
func (Broken) Name() string                   { return "broken" }
func (Block) Name() string                    { return "block" }
func (Finish) Name() string                   { return "finish" }

func (EnterPhone) Step() float64               { return 1 }
func (EnterOTP) Step() float64                 { return 2 }
func (OTPNotDeliveredTrySocial) Step() float64 { return 3 }
func (OTPNotDelivered) Step() float64          { return 4 }
func (NoMatch) Step() float64                  { return 5 }
func (NotFoundDevice) Step() float64           { return 6 }
func (Broken) Step() float64                   { return 7 }
func (TryAnother) Step() float64               { return 8 }
func (Block) Step() float64                    { return 9 }
func (Finish) Step() float64                   { return 10 }

func (EnterPhone) Continuable() bool               { return true }
func (EnterOTP) Continuable() bool                 { return true }
func (OTPNotDeliveredTrySocial) Continuable() bool { return true }
func (OTPNotDelivered) Continuable() bool          { return true }
func (NoMatch) Continuable() bool                  { return true }
func (NotFoundDevice) Continuable() bool           { return true }
func (TryAnother) Continuable() bool               { return true }
func (Broken) Continuable() bool                   { return true }
func (Block) Continuable() bool                    { return true }
func (Finish) Continuable() bool                   { return true }

func (Finish) Terminal() bool { return true }

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	// OpenPhoneEntry starts the flow or returns to the phone screen.
	OpenPhoneEntry struct{}
	SubmitPhone    struct{ Phone string }
	SubmitOTP      struct{ OTP string }
	ResendOTP      struct{}
	RequireSocial  struct{ Provider onboarding.SocialProvider }
	Start          struct{}
	Back           struct{}
)

func (OpenPhoneEntry) isEvent() {}
func (SubmitPhone) isEvent()    {}
func (SubmitOTP) isEvent()      {}
func (ResendOTP) isEvent()      {}
func (RequireSocial) isEvent()  {}
func (Start) isEvent()          {}
func (Back) isEvent()           {}

func (OpenPhoneEntry) Name() string { return "open_phone_entry" }
func (SubmitPhone) Name() string    { return "submit_phone" }
func (SubmitOTP) Name() string      { return "submit_otp" }
func (ResendOTP) Name() string      { return "resend_otp" }
func (RequireSocial) Name() string  { return "require_social" }
func (Start) Name() string          { return "start" }
func (Back) Name() string           { return "back" }

var (
	startOver    = Finish{Result: StartOver{}}
	breakProcess = Finish{Result: BreakProcess{}}
)

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch s := current.(type) {
	case EnterPhone:
		switch e := event.(type) {
		case SubmitPhone:
			return submitPhone(ctx, c, s, e.Phone)
		case Back:
			return breakProcess, nil
		}
	case EnterOTP:
		switch e := event.(type) {
		case SubmitOTP:
			return submitOTP(ctx, c, s, e.OTP)
		case ResendOTP:
			return resend(ctx, c, s)
		case Back:
			return EnterPhone{
				InitialPhone:  s.Phone,
				DidSend:       true,
				ResendCounter: optional.Some(s.Attempt),
				SolPrivateKey: s.SolPrivateKey,
				Social:        s.Social,
			}, nil
		}
	case OTPNotDeliveredTrySocial:
		switch e := event.(type) {
		case Back:
			return EnterPhone{}, nil
		case RequireSocial:
			return Finish{Result: RequireSocialDevice{Provider: e.Provider}}, nil
		case Start:
			return startOver, nil
		}
	case OTPNotDelivered, Broken, NoMatch:
		switch event.(type) {
		case Back, Start:
			return startOver, nil
		}
	case TryAnother:
		switch e := event.(type) {
		case OpenPhoneEntry:
			return EnterPhone{}, nil
		case RequireSocial:
			if s.TrySocial {
				return Finish{Result: RequireSocialDevice{Provider: e.Provider}}, nil
			}
		case Start:
			return startOver, nil
		}
	case Block:
		switch event.(type) {
		case Start:
			return startOver, nil
		case OpenPhoneEntry:
			if c.Clock.Now().After(s.Until) {
				return EnterPhone{Social: s.Social}, nil
			}
		}
	case NotFoundDevice:
		switch e := event.(type) {
		case OpenPhoneEntry:
			return EnterPhone{}, nil
		case RequireSocial:
			return Finish{Result: RequireSocialDevice{Provider: e.Provider, Result: optional.Some(s.Result)}}, nil
		case Start:
			return startOver, nil
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

func submitPhone(ctx context.Context, c Container, s EnterPhone, raw string) (State, error) {
	phone := sanitize.Phone(raw)

	if s.DidSend && len(s.SolPrivateKey) > 0 && sanitize.SamePhone(phone, s.InitialPhone) {
		return EnterOTP{
			Phone:         phone,
			SolPrivateKey: s.SolPrivateKey,
			Social:        s.Social,
			Attempt:       s.ResendCounter.GetOrElse(onboarding.ResendCounter{}),
		}, nil
	}

	key, err := c.Keys.NewSecretKey(ctx)
	if err != nil {
		return nil, statemachine.Collaborator("keys.new_secret_key", err)
	}

	return sendOTP(ctx, c, EnterOTP{Phone: phone, SolPrivateKey: key, Social: s.Social}, onboarding.BlockEnterPhoneNumber)
}

func resend(ctx context.Context, c Container, s EnterOTP) (State, error) {
	next, err := sendOTP(ctx, c, s, onboarding.BlockResend)
	if err != nil {
		return nil, err
	}

	if otp, ok := next.(EnterOTP); ok {
		otp.Attempt = s.Attempt.Incremented()

		return otp, nil
	}

	return next, nil
}

// sendOTP asks the gateway for an OTP and maps its failures to states. On
// success the flow moves to target.
func sendOTP(ctx context.Context, c Container, target EnterOTP, reason onboarding.BlockReason) (State, error) {
	log := logger.Get(ctx).With("phone", hashing.Redact(target.Phone))

	err := c.APIGateway.RestoreWallet(ctx, target.SolPrivateKey, target.Phone, onboarding.SMS, c.Clock.Now())
	if err == nil {
		log.Debug("otp sent")

		return target, nil
	}

	if cd, ok := onboarding.AsCooldown(err); ok {
		log.Info("otp rate limited", "cooldown", cd.Cooldown)

		return Block{Until: c.Clock.Now().Add(cd.Cooldown), Social: target.Social, Reason: reason}, nil
	}

	ge, ok := onboarding.AsAPIGatewayError(err)
	if !ok {
		return nil, statemachine.Collaborator("gateway.restore_wallet", err)
	}

	log.Info("otp request failed", "code", ge.Code)

	switch {
	case ge.Broken():
		return Broken{Code: ge.Code}, nil
	case ge.WrongNumber():
		return TryAnother{WrongNumber: target.Phone, TrySocial: c.DeviceShare.NonEmpty()}, nil
	case ge.NotDelivered():
		if c.DeviceShare.NonEmpty() {
			return OTPNotDeliveredTrySocial{Phone: target.Phone, Code: ge.Code}, nil
		}

		return OTPNotDelivered{Phone: target.Phone, Code: ge.Code}, nil
	default:
		return nil, statemachine.Collaborator("gateway.restore_wallet", err)
	}
}

func submitOTP(ctx context.Context, c Container, s EnterOTP, otp string) (State, error) {
	result, err := c.APIGateway.ConfirmRestoreWallet(ctx, s.SolPrivateKey, s.Phone, otp, c.Clock.Now())
	if err != nil {
		if cd, ok := onboarding.AsCooldown(err); ok {
			return Block{Until: c.Clock.Now().Add(cd.Cooldown), Social: s.Social, Reason: onboarding.BlockEnterOTP}, nil
		}

		if ge, ok := onboarding.AsAPIGatewayError(err); ok && ge.ProtocolFailure() {
			return Broken{Code: ge.Code}, nil
		}

		return nil, statemachine.Collaborator("gateway.confirm_restore_wallet", err)
	}

	deviceShare, hasDevice := c.DeviceShare.Get()

	if social, ok := s.Social.Get(); ok && hasDevice {
		return restore(ctx, c, social, deviceShare, result)
	}

	if hasDevice {
		return restoreWithDevice(ctx, c, deviceShare, result)
	}

	return Finish{Result: RequireSocialCustom{Result: result}}, nil
}

// restore rebuilds the wallet after a social sign-in, preferring the social
// share and falling back to the device share.
func restore(
	ctx context.Context,
	c Container,
	social onboarding.RestoreSocialData,
	deviceShare string,
	result onboarding.RestoreWalletResult,
) (State, error) {
	log := logger.Get(ctx).With("email", hashing.Redact(social.Email))

	signed, err := signInWithCustomShare(ctx, c, social, result)
	if err == nil {
		md, err := c.Keys.DecryptMetadata(ctx, signed.PrivateSOL, result.EncryptedMetadata)
		if err == nil {
			return successful(signed, optional.Some(md)), nil
		}

		log.Info("metadata decryption failed", "error", err)
	} else {
		log.Info("custom share sign-in failed", "error", err)
	}

	if err = c.TKey.Initialize(ctx); err != nil {
		return noMatch(ctx, err)
	}

	signed, err = c.TKey.SignInWithDeviceAndCustomShare(ctx, deviceShare, result.EncryptedShare, result.EncryptedPayload)
	if err != nil {
		return noMatch(ctx, err)
	}

	md, err := c.Keys.DecryptMetadata(ctx, signed.PrivateSOL, result.EncryptedMetadata)
	if err != nil {
		log.Info("metadata decryption failed", "error", err)

		return successful(signed, optional.None[onboarding.WalletMetadata]()), nil
	}

	return successful(signed, optional.Some(md)), nil
}

func signInWithCustomShare(
	ctx context.Context, c Container, social onboarding.RestoreSocialData, result onboarding.RestoreWalletResult,
) (onboarding.SignInResult, error) {
	if err := c.TKey.Initialize(ctx); err != nil {
		return onboarding.SignInResult{}, err
	}

	return c.TKey.SignInWithCustomShare(ctx, social.TorusKey, result.EncryptedShare, result.EncryptedPayload)
}

func restoreWithDevice(
	ctx context.Context, c Container, deviceShare string, result onboarding.RestoreWalletResult,
) (State, error) {
	signed, md, err := func() (onboarding.SignInResult, onboarding.WalletMetadata, error) {
		if err := c.TKey.Initialize(ctx); err != nil {
			return onboarding.SignInResult{}, onboarding.WalletMetadata{}, err
		}

		signed, err := c.TKey.SignInWithDeviceAndCustomShare(
			ctx, deviceShare, result.EncryptedShare, result.EncryptedPayload)
		if err != nil {
			return onboarding.SignInResult{}, onboarding.WalletMetadata{}, err
		}

		md, err := c.Keys.DecryptMetadata(ctx, signed.PrivateSOL, result.EncryptedMetadata)

		return signed, md, err
	}()
	if err == nil {
		return successful(signed, optional.Some(md)), nil
	}

	if code, ok := onboarding.TKeyCode(err); ok && code == onboarding.TKeyDeviceShareNotFound {
		return NotFoundDevice{Result: result}, nil
	}

	return noMatch(ctx, err)
}

func noMatch(ctx context.Context, err error) (State, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logger.Get(ctx).Info("shares did not match a wallet", "error", err)

	return NoMatch{}, nil
}

func successful(r onboarding.SignInResult, md optional.Value[onboarding.WalletMetadata]) State {
	return Finish{Result: Successful{SeedPhrase: r.PrivateSOL, ETHPublicKey: r.ReconstructedETH, Metadata: md}}
}
