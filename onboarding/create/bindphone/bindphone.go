// Package bindphone binds a phone number to a new wallet. The gateway stores
// the custom share behind the number once the user confirms an OTP.
package bindphone

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

// Sending limits: at most SendLimit OTP requests per SendWindow, after which
// the user is blocked for BlockTime.
const (
	SendLimit  = 5
	SendWindow = 10 * time.Minute
	BlockTime  = 10 * time.Minute
)

// Container holds the flow's collaborators.
type Container struct {
	APIGateway onboarding.APIGatewayClient
	Keys       onboarding.KeyService
	Clock      onboarding.Clock
}

// Data is the wallet being bound. It travels unchanged through the states
// except for the send throttle.
type Data struct {
	SeedPhrase      string              `json:"seedPhrase"`
	ETHAddress      string              `json:"ethAddress"`
	CustomShare     string              `json:"customShare"`
	Payload         string              `json:"payload"`
	DeviceName      string              `json:"deviceName"`
	Email           string              `json:"email"`
	AuthProvider    string              `json:"authProvider"`
	SendingThrottle onboarding.Throttle `json:"sendingThrottle"`
}

// NewData returns data with a fresh send throttle.
func NewData(seedPhrase, ethAddress, customShare, payload, deviceName, email, authProvider string) Data {
	return Data{
		SeedPhrase:      seedPhrase,
		ETHAddress:      ethAddress,
		CustomShare:     customShare,
		Payload:         payload,
		DeviceName:      deviceName,
		Email:           email,
		AuthProvider:    authProvider,
		SendingThrottle: onboarding.NewThrottle(SendLimit, SendWindow),
	}
}

// Result of a finished flow.
type Result interface{ isResult() }

type (
	// Success carries the metadata stored with the wallet.
	Success      struct{ Metadata onboarding.WalletMetadata }
	BreakProcess struct{}
)

func (Success) isResult()      {}
func (BreakProcess) isResult() {}

// State of the flow.
type State interface {
	isState()
	Name() string
	Step() float64
	Continuable() bool
}

type (
	EnterPhoneNumber struct {
		InitialPhone  string
		DidSend       bool
		ResendCounter optional.Value[onboarding.ResendCounter]
		Data          Data
	}
	EnterOTP struct {
		ResendCounter onboarding.ResendCounter
		Channel       onboarding.Channel
		Phone         string
		Data          Data
	}
	Block struct {
		Until  time.Time
		Reason onboarding.BlockReason
		Phone  string
		Data   Data
	}
	Broken struct{ Code int }
	Finish struct{ Result Result }
)

// Initial is the state the flow starts in for data.
func Initial(data Data) State {
	return EnterPhoneNumber{Data: data}
}

func (EnterPhoneNumber) isState() {}
func (EnterOTP) isState()         {}
func (Block) isState()            {}
func (Broken) isState()           {}
func (Finish) isState()           {}

func (EnterPhoneNumber) Name() string { return "enter_phone_number" }
func (EnterOTP) Name() string         { return "enter_otp" }
func (Block) Name() string            { return "block" }
func (Broken) Name() string           { return "broken" }
func (Finish) Name() string           { return "finish" }

func (EnterPhoneNumber) Step() float64 { return 1 }
func (EnterOTP) Step() float64         { return 2 }
func (Block) Step() float64            { return 3 }
func (Broken) Step() float64           { return 4 }
func (Finish) Step() float64           { return 5 }

func (EnterPhoneNumber) Continuable() bool { return true }
func (EnterOTP) Continuable() bool         { return true }
func (Block) Continuable() bool            { return true }
func (Broken) Continuable() bool           { return false }
func (Finish) Continuable() bool           { return true }

func (Finish) Terminal() bool { return true }

// Event of the flow.
type Event interface {
	isEvent()
	Name() string
}

type (
	SubmitPhone struct {
		Phone   string
		Channel onboarding.Channel
	}
	SubmitOTP   struct{ OTP string }
	ResendOTP   struct{}
	BlockFinish struct{}
	Home        struct{}
	Back        struct{}
)

func (SubmitPhone) isEvent() {}
func (SubmitOTP) isEvent()   {}
func (ResendOTP) isEvent()   {}
func (BlockFinish) isEvent() {}
func (Home) isEvent()        {}
func (Back) isEvent()        {}

func (SubmitPhone) Name() string { return "submit_phone" }
func (SubmitOTP) Name() string   { return "submit_otp" }
func (ResendOTP) Name() string   { return "resend_otp" }
func (BlockFinish) Name() string { return "block_finish" }
func (Home) Name() string        { return "home" }
func (Back) Name() string        { return "back" }

// Accept is the flow's transition function.
func Accept(ctx context.Context, current State, event Event, c Container) (State, error) { //nolint:ireturn
	switch s := current.(type) {
	case EnterPhoneNumber:
		if e, ok := event.(SubmitPhone); ok {
			return submitPhone(ctx, c, s, e)
		}
	case EnterOTP:
		switch e := event.(type) {
		case SubmitOTP:
			return submitOTP(ctx, c, s, e.OTP)
		case ResendOTP:
			return resend(ctx, c, s)
		case Back:
			return EnterPhoneNumber{
				InitialPhone:  s.Phone,
				DidSend:       true,
				ResendCounter: optional.Some(s.ResendCounter),
				Data:          s.Data,
			}, nil
		}
	case Broken:
		if _, ok := event.(Back); ok {
			return Finish{Result: BreakProcess{}}, nil
		}
	case Block:
		switch event.(type) {
		case Home:
			return Finish{Result: BreakProcess{}}, nil
		case BlockFinish:
			if c.Clock.Now().After(s.Until) {
				return EnterPhoneNumber{InitialPhone: s.Phone, Data: s.Data}, nil
			}
		}
	}

	return nil, statemachine.InvalidEvent(current, event)
}

func submitPhone(ctx context.Context, c Container, s EnterPhoneNumber, e SubmitPhone) (State, error) {
	phone := sanitize.Phone(e.Phone)
	data := s.Data

	if s.DidSend && sanitize.SamePhone(phone, s.InitialPhone) {
		return EnterOTP{
			ResendCounter: s.ResendCounter.GetOrElse(onboarding.ResendCounter{}),
			Channel:       onboarding.SMS,
			Phone:         phone,
			Data:          data,
		}, nil
	}

	now := c.Clock.Now()

	throttle, allowed := data.SendingThrottle.Process(now)
	if !allowed {
		data.SendingThrottle = throttle.Reset()

		return Block{Until: now.Add(BlockTime), Reason: onboarding.BlockEnterPhoneNumber, Phone: phone, Data: data}, nil
	}

	data.SendingThrottle = throttle

	next := EnterOTP{Channel: e.Channel, Phone: phone, Data: data}

	return register(ctx, c, next, onboarding.BlockEnterPhoneNumber)
}

func resend(ctx context.Context, c Container, s EnterOTP) (State, error) {
	next, err := register(ctx, c, s, onboarding.BlockResend)
	if err != nil {
		return nil, err
	}

	if otp, ok := next.(EnterOTP); ok {
		otp.ResendCounter = s.ResendCounter.Incremented()

		return otp, nil
	}

	return next, nil
}

// register asks the gateway to send an OTP for target's phone and moves to
// target on success.
func register(ctx context.Context, c Container, target EnterOTP, reason onboarding.BlockReason) (State, error) {
	key, err := c.Keys.SecretKeyFromPhrase(ctx, target.Data.SeedPhrase, onboarding.DefaultPath)
	if err != nil {
		return nil, statemachine.Collaborator("keys.secret_key_from_phrase", err)
	}

	now := c.Clock.Now()

	err = c.APIGateway.RegisterWallet(ctx, onboarding.RegisterWalletRequest{
		SolanaPrivateKey: key,
		ETHAddress:       target.Data.ETHAddress,
		Phone:            target.Phone,
		Channel:          target.Channel,
		Timestamp:        now,
	})
	if err == nil {
		return target, nil
	}

	logger.Get(ctx).Info("register wallet failed", "phone", hashing.Redact(target.Phone), "error", err)

	if cd, ok := onboarding.AsCooldown(err); ok {
		data := target.Data
		if reason == onboarding.BlockEnterPhoneNumber {
			data.SendingThrottle = data.SendingThrottle.Reset()
		}

		return Block{Until: now.Add(cd.Cooldown), Reason: reason, Phone: target.Phone, Data: data}, nil
	}

	if ge, ok := onboarding.AsAPIGatewayError(err); ok && ge.Broken() {
		return Broken{Code: ge.Code}, nil
	}

	return nil, statemachine.Collaborator("gateway.register_wallet", err)
}

func submitOTP(ctx context.Context, c Container, s EnterOTP, otp string) (State, error) {
	key, err := c.Keys.SecretKeyFromPhrase(ctx, s.Data.SeedPhrase, onboarding.DefaultPath)
	if err != nil {
		return nil, statemachine.Collaborator("keys.secret_key_from_phrase", err)
	}

	metadata := onboarding.WalletMetadata{
		ETHPublic:    s.Data.ETHAddress,
		DeviceName:   s.Data.DeviceName,
		Email:        s.Data.Email,
		AuthProvider: s.Data.AuthProvider,
		PhoneNumber:  s.Phone,
	}

	encrypted, err := c.Keys.EncryptMetadata(ctx, s.Data.SeedPhrase, metadata)
	if err != nil {
		return nil, statemachine.Collaborator("keys.encrypt_metadata", err)
	}

	now := c.Clock.Now()

	err = c.APIGateway.ConfirmRegisterWallet(ctx, onboarding.ConfirmRegisterWalletRequest{
		SolanaPrivateKey:  key,
		ETHAddress:        s.Data.ETHAddress,
		Share:             s.Data.CustomShare,
		EncryptedPayload:  s.Data.Payload,
		EncryptedMetadata: encrypted,
		Phone:             s.Phone,
		OTP:               otp,
		Timestamp:         now,
	})
	if err != nil {
		if cd, ok := onboarding.AsCooldown(err); ok {
			return Block{
				Until:  now.Add(cd.Cooldown),
				Reason: onboarding.BlockEnterOTP,
				Phone:  s.Phone,
				Data:   s.Data,
			}, nil
		}

		if ge, ok := onboarding.AsAPIGatewayError(err); ok && ge.Broken() {
			return Broken{Code: ge.Code}, nil
		}

		return nil, statemachine.Collaborator("gateway.confirm_register_wallet", err)
	}

	return Finish{Result: Success{Metadata: metadata}}, nil
}
