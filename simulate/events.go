package simulate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/create"
	"github.com/keyapp-labs/flowkit/onboarding/create/bindphone"
	"github.com/keyapp-labs/flowkit/onboarding/create/socialsignin"
	"github.com/keyapp-labs/flowkit/onboarding/restore"
	"github.com/keyapp-labs/flowkit/onboarding/restore/custom"
	"github.com/keyapp-labs/flowkit/onboarding/restore/icloud"
	"github.com/keyapp-labs/flowkit/onboarding/restore/seed"
	"github.com/keyapp-labs/flowkit/onboarding/restore/social"
	"github.com/keyapp-labs/flowkit/onboarding/securitysetup"
)

func (s Step) arg(key string) (string, error) {
	v, ok := s.Args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s needs %q", ErrMissingArg, s.Event, key)
	}

	return v, nil
}

func (s Step) argOr(key, fallback string) string {
	if v, ok := s.Args[key]; ok {
		return v
	}

	return fallback
}

func (s Step) provider() (onboarding.SocialProvider, error) {
	v, err := s.arg("provider")
	if err != nil {
		return "", err
	}

	return onboarding.ParseSocialProvider(v)
}

func (s Step) path() (onboarding.DerivablePath, error) {
	p := onboarding.DerivablePath(s.argOr("path", string(onboarding.DefaultPath)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: path %q", ErrBadArg, p)
	}

	return p, nil
}

func (s Step) channel() (onboarding.Channel, error) {
	switch c := onboarding.Channel(strings.ToLower(s.argOr("channel", string(onboarding.SMS)))); c {
	case onboarding.SMS, onboarding.Call:
		return c, nil
	default:
		return "", fmt.Errorf("%w: channel %q", ErrBadArg, c)
	}
}

func unknown(s Step) error {
	return fmt.Errorf("%w: %q", ErrUnknownEvent, s.Event)
}

func wrongState(s Step, state interface{ Name() string }) error {
	return fmt.Errorf("%w: %s in %s", ErrWrongState, s.Event, state.Name())
}

// restoreEvent builds the restore event a step names. Events that carry
// data produced by the flow itself take it from state.
func restoreEvent(state restore.State, s Step) (restore.Event, error) { //nolint:ireturn
	kind, name, nested := strings.Cut(s.Event, ".")
	if !nested {
		switch kind {
		case "back":
			return restore.Back{}, nil
		case "start":
			return restore.Start{}, nil
		}

		return nil, unknown(s)
	}

	switch kind {
	case "icloud":
		e, err := icloudEvent(state, s, name)

		return restore.ICloudEvent{Event: e}, err
	case "seed":
		e, err := seedEvent(s, name)

		return restore.SeedEvent{Event: e}, err
	case "social":
		e, err := socialEvent(state, s, name)

		return restore.SocialEvent{Event: e}, err
	case "custom":
		e, err := customEvent(s, name)

		return restore.CustomEvent{Event: e}, err
	case "security":
		e, err := securityEvent(s, name)

		return restore.SecurityEvent{Event: e}, err
	}

	return nil, unknown(s)
}

func icloudEvent(state restore.State, s Step, name string) (icloud.Event, error) { //nolint:ireturn
	switch name {
	case "authorize":
		return icloud.Authorize{}, nil
	case "back":
		return icloud.Back{}, nil
	case "restore_raw_wallet":
		phrase, err := s.arg("phrase")
		if err != nil {
			return nil, err
		}

		path, err := s.path()
		if err != nil {
			return nil, err
		}

		return icloud.RestoreRawWallet{WalletName: s.argOr("name", ""), Phrase: phrase, DerivablePath: path}, nil
	case "restore_wallet":
		account, err := s.arg("name")
		if err != nil {
			return nil, err
		}

		outer, ok := state.(restore.RestoreICloud)
		if !ok {
			return nil, wrongState(s, state)
		}

		chooser, ok := outer.Inner.(icloud.ChooseWallet)
		if !ok {
			return nil, wrongState(s, state)
		}

		for _, a := range chooser.Accounts {
			if a.Name == account {
				return icloud.RestoreWallet{Account: a}, nil
			}
		}

		return nil, fmt.Errorf("%w: no keychain account %q", ErrBadArg, account)
	}

	return nil, unknown(s)
}

func seedEvent(s Step, name string) (seed.Event, error) { //nolint:ireturn
	switch name {
	case "sign_in_with_seed":
		return seed.SignInWithSeed{}, nil
	case "back":
		return seed.Back{}, nil
	case "choose_seed":
		phrase, err := s.arg("phrase")
		if err != nil {
			return nil, err
		}

		return seed.ChooseSeed{Phrase: strings.Fields(phrase)}, nil
	case "choose_derivable_path":
		path, err := s.path()
		if err != nil {
			return nil, err
		}

		return seed.ChooseDerivablePath{Path: path}, nil
	}

	return nil, unknown(s)
}

func socialEvent(state restore.State, s Step, name string) (social.Event, error) { //nolint:ireturn
	switch name {
	case "sign_in_device", "sign_in_custom":
		provider, err := s.provider()
		if err != nil {
			return nil, err
		}

		if name == "sign_in_device" {
			return social.SignInDevice{Provider: provider}, nil
		}

		return social.SignInCustom{Provider: provider}, nil
	case "sign_in_torus":
		outer, ok := state.(restore.RestoreSocial)
		if !ok {
			return nil, wrongState(s, state)
		}

		progress, ok := outer.Inner.(social.SignInProgress)
		if !ok {
			return nil, wrongState(s, state)
		}

		return progress.TorusEvent(), nil
	case "back":
		return social.Back{}, nil
	case "start":
		return social.Start{}, nil
	case "switch_to_custom":
		return social.SwitchToCustom{}, nil
	}

	return nil, unknown(s)
}

func customEvent(s Step, name string) (custom.Event, error) { //nolint:ireturn
	switch name {
	case "open_phone_entry":
		return custom.OpenPhoneEntry{}, nil
	case "submit_phone":
		phone, err := s.arg("phone")

		return custom.SubmitPhone{Phone: phone}, err
	case "submit_otp":
		otp, err := s.arg("otp")

		return custom.SubmitOTP{OTP: otp}, err
	case "resend_otp":
		return custom.ResendOTP{}, nil
	case "require_social":
		provider, err := s.provider()

		return custom.RequireSocial{Provider: provider}, err
	case "start":
		return custom.Start{}, nil
	case "back":
		return custom.Back{}, nil
	}

	return nil, unknown(s)
}

func securityEvent(s Step, name string) (securitysetup.Event, error) { //nolint:ireturn
	switch name {
	case "enter_pin":
		pin, err := s.arg("pin")

		return securitysetup.EnterPin{Pin: pin}, err
	case "repeat_pin":
		pin, err := s.arg("pin")

		return securitysetup.RepeatPin{Pin: pin}, err
	case "set_biometry":
		enabled, err := strconv.ParseBool(s.argOr("enabled", "false"))
		if err != nil {
			return nil, fmt.Errorf("%w: enabled: %w", ErrBadArg, err)
		}

		return securitysetup.SetBiometry{Enabled: enabled}, nil
	case "back":
		return securitysetup.Back{}, nil
	}

	return nil, unknown(s)
}

// createEvent builds the create event a step names.
func createEvent(state create.State, s Step) (create.Event, error) { //nolint:ireturn
	kind, name, _ := strings.Cut(s.Event, ".")

	switch kind {
	case "social_sign_in":
		e, err := signInEvent(state, s, name)

		return create.SocialSignInEvent{Event: e}, err
	case "binding_phone":
		e, err := bindPhoneEvent(s, name)

		return create.BindingPhoneEvent{Event: e}, err
	case "security":
		e, err := securityEvent(s, name)

		return create.SecurityEvent{Event: e}, err
	}

	return nil, unknown(s)
}

func signInEvent(state create.State, s Step, name string) (socialsignin.Event, error) { //nolint:ireturn
	switch name {
	case "sign_in":
		provider, err := s.provider()

		return socialsignin.SignIn{Provider: provider}, err
	case "sign_in_torus":
		outer, ok := state.(create.SocialSignIn)
		if !ok {
			return nil, wrongState(s, state)
		}

		progress, ok := outer.Inner.(socialsignin.SignInProgress)
		if !ok {
			return nil, wrongState(s, state)
		}

		return progress.TorusEvent(), nil
	case "sign_in_back":
		return socialsignin.SignInBack{}, nil
	case "restore":
		provider, err := s.provider()
		if err != nil {
			return nil, err
		}

		email, err := s.arg("email")

		return socialsignin.Restore{Provider: provider, Email: email}, err
	}

	return nil, unknown(s)
}

func bindPhoneEvent(s Step, name string) (bindphone.Event, error) { //nolint:ireturn
	switch name {
	case "submit_phone":
		phone, err := s.arg("phone")
		if err != nil {
			return nil, err
		}

		channel, err := s.channel()

		return bindphone.SubmitPhone{Phone: phone, Channel: channel}, err
	case "submit_otp":
		otp, err := s.arg("otp")

		return bindphone.SubmitOTP{OTP: otp}, err
	case "resend_otp":
		return bindphone.ResendOTP{}, nil
	case "block_finish":
		return bindphone.BlockFinish{}, nil
	case "home":
		return bindphone.Home{}, nil
	case "back":
		return bindphone.Back{}, nil
	}

	return nil, unknown(s)
}
