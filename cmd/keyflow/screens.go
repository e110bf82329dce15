package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keyapp-labs/flowkit/cli"
	"github.com/keyapp-labs/flowkit/coordinator"
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
	"github.com/keyapp-labs/flowkit/statemachine"
)

var errNoScreen = errors.New("no screen for state")

type flowState interface {
	Name() string
	Step() float64
}

// action produces the event for a chosen option, prompting if it needs input.
type action[E any] func() (E, error)

func just[E any](e E) action[E] {
	return func() (E, error) { return e, nil }
}

func opt[E any](label string, a action[E]) cli.Choice[action[E]] {
	return cli.Choice[action[E]]{Label: label, Value: a}
}

func pick[E any](label string, options ...cli.Choice[action[E]]) (E, bool, error) { //nolint:ireturn
	a, err := cli.Choose(label, options...)
	if err != nil {
		var zero E

		return zero, false, err
	}

	e, err := a()

	return e, err == nil, err
}

// builder shows one screen per state and sends the event the user picks.
// A rejected event keeps the user on the same screen.
func builder[S flowState, E, P any](
	m *statemachine.Machine[S, E, P],
	total float64,
	screen func(S) (E, bool, error),
) coordinator.BuilderFunc[S] {
	return func(ctx context.Context, state S) error {
		fmt.Print(cli.Banner(strings.ReplaceAll(state.Name(), "_", " "), cli.Width()))
		fmt.Println(cli.ProgressBar(state.Step()/total, cli.Width()/2)) //nolint:mnd

		for {
			event, ok, err := screen(state)
			if err != nil {
				return err
			}

			if !ok {
				if statemachine.IsTerminal(state) {
					return nil
				}

				return fmt.Errorf("%w: %s", errNoScreen, state.Name())
			}

			_, err = m.Accept(ctx, event)

			switch {
			case err == nil:
				return nil
			case errors.Is(err, statemachine.ErrCollaborator), errors.Is(err, statemachine.ErrInvalidEvent):
				fmt.Println("✗", err)
			default:
				return err
			}
		}
	}
}

func provider() (onboarding.SocialProvider, error) {
	return cli.Choose("Provider",
		cli.Choice[onboarding.SocialProvider]{Label: "Google", Value: onboarding.Google},
		cli.Choice[onboarding.SocialProvider]{Label: "Apple", Value: onboarding.Apple},
	)
}

func pin(label string) (string, error) {
	return cli.PromptDigits(label, securitysetup.MinPinLength, securitysetup.MaxPinLength)
}

func security(s securitysetup.State) (securitysetup.Event, bool, error) { //nolint:ireturn
	switch s := s.(type) {
	case securitysetup.CreatePin:
		switch s.Problem {
		case securitysetup.InvalidPin:
			fmt.Println("The PIN must be 4 to 8 digits.")
		case securitysetup.PinMismatch:
			fmt.Println("The PINs did not match.")
		case securitysetup.NoProblem:
		}

		p, err := pin("New PIN")

		return securitysetup.EnterPin{Pin: p}, err == nil, err
	case securitysetup.ConfirmPin:
		return pick("Confirm",
			opt("Repeat PIN", func() (securitysetup.Event, error) {
				p, err := pin("Repeat PIN")

				return securitysetup.RepeatPin{Pin: p}, err
			}),
			opt("Back", just[securitysetup.Event](securitysetup.Back{})),
		)
	case securitysetup.SetupBiometry:
		enabled, err := cli.PromptConfirm("Unlock with biometrics")

		return securitysetup.SetBiometry{Enabled: enabled}, err == nil, err
	}

	return nil, false, nil
}

func restoreScreen(s restore.State) (restore.Event, bool, error) { //nolint:ireturn,cyclop
	switch s := s.(type) {
	case restore.Restore:
		return pick("How do you want to restore your wallet?",
			opt("Seed phrase", just[restore.Event](restore.SeedEvent{Event: seed.SignInWithSeed{}})),
			opt("Keychain backup", just[restore.Event](restore.ICloudEvent{Event: icloud.Authorize{}})),
			opt("Phone number", just[restore.Event](restore.CustomEvent{Event: custom.OpenPhoneEntry{}})),
			opt("Social account", func() (restore.Event, error) {
				p, err := provider()

				return restore.SocialEvent{Event: social.SignInDevice{Provider: p}}, err
			}),
			opt("Cancel", just[restore.Event](restore.Back{})),
		)
	case restore.RestoreICloud:
		return lift(icloudScreen, s.Inner, func(e icloud.Event) restore.Event { return restore.ICloudEvent{Event: e} })
	case restore.RestoreSeed:
		return lift(seedScreen, s.Inner, func(e seed.Event) restore.Event { return restore.SeedEvent{Event: e} })
	case restore.RestoreSocial:
		return lift(socialScreen, s.Inner, func(e social.Event) restore.Event { return restore.SocialEvent{Event: e} })
	case restore.RestoreCustom:
		return lift(customScreen, s.Inner, func(e custom.Event) restore.Event { return restore.CustomEvent{Event: e} })
	case restore.SecuritySetup:
		return lift(security, s.Inner, func(e securitysetup.Event) restore.Event { return restore.SecurityEvent{Event: e} })
	case restore.Finished:
		switch r := s.Result.(type) {
		case restore.Successful:
			fmt.Printf("Wallet restored (%d words, path %s, biometrics %t).\n",
				len(strings.Fields(r.Data.Wallet.SeedPhrase)), r.Data.Wallet.DerivablePath, r.Data.Security.BiometryEnabled)
		case restore.BreakProcess:
			fmt.Println("Restore cancelled.")
		}
	}

	return nil, false, nil
}

// lift shows a child flow's screen and wraps the event for the parent flow.
func lift[CS, C, P any](screen func(CS) (C, bool, error), state CS, wrap func(C) P) (P, bool, error) { //nolint:ireturn
	e, ok, err := screen(state)
	if !ok || err != nil {
		var zero P

		return zero, ok, err
	}

	return wrap(e), true, nil
}

func icloudScreen(s icloud.State) (icloud.Event, bool, error) { //nolint:ireturn
	chooser, ok := s.(icloud.ChooseWallet)
	if !ok {
		return nil, false, nil
	}

	options := make([]cli.Choice[action[icloud.Event]], 0, len(chooser.Accounts)+1)

	for _, a := range chooser.Accounts {
		options = append(options, opt(a.Name, just[icloud.Event](icloud.RestoreWallet{Account: a})))
	}

	options = append(options, opt("Back", just[icloud.Event](icloud.Back{})))

	return pick("Keychain wallets", options...)
}

func seedScreen(s seed.State) (seed.Event, bool, error) { //nolint:ireturn
	switch s := s.(type) {
	case seed.SignInSeed:
		if s.Rejected {
			fmt.Println("A seed phrase has 12 or 24 words.")
		}

		return pick("Seed phrase",
			opt("Enter phrase", func() (seed.Event, error) {
				phrase, err := cli.PromptString("Words", nil)

				return seed.ChooseSeed{Phrase: strings.Fields(phrase)}, err
			}),
			opt("Back", just[seed.Event](seed.Back{})),
		)
	case seed.ChooseDerivationPath:
		return pick("Derivation path",
			opt(string(onboarding.PathBIP44Change),
				just[seed.Event](seed.ChooseDerivablePath{Path: onboarding.PathBIP44Change})),
			opt(string(onboarding.PathBIP44), just[seed.Event](seed.ChooseDerivablePath{Path: onboarding.PathBIP44})),
			opt(string(onboarding.PathDeprecated), just[seed.Event](seed.ChooseDerivablePath{Path: onboarding.PathDeprecated})),
			opt("Back", just[seed.Event](seed.Back{})),
		)
	}

	return nil, false, nil
}

func socialScreen(s social.State) (social.Event, bool, error) { //nolint:ireturn
	signInDevice := func() (social.Event, error) {
		p, err := provider()

		return social.SignInDevice{Provider: p}, err
	}
	signInCustom := func() (social.Event, error) {
		p, err := provider()

		return social.SignInCustom{Provider: p}, err
	}

	switch s := s.(type) {
	case social.SignInProgress:
		fmt.Printf("Signed in as %s.\n", s.Email)

		return pick("Continue",
			opt("Unlock wallet", just[social.Event](s.TorusEvent())),
			opt("Back", just[social.Event](social.Back{})),
		)
	case social.Social:
		return pick("Your phone number was verified",
			opt("Sign in with a social account", signInCustom))
	case social.NotFoundCustom:
		fmt.Printf("No wallet for %s.\n", s.Email)

		return pick("Try again",
			opt("Another account", signInCustom),
			opt("Start over", just[social.Event](social.Start{})))
	case social.NotFoundDevice, social.NotFoundSocial:
		fmt.Println("This account does not match the wallet on this device.")

		return pick("Try again",
			opt("Another account", signInDevice),
			opt("Use phone number", just[social.Event](social.SwitchToCustom{})),
			opt("Start over", just[social.Event](social.Start{})))
	}

	return nil, false, nil
}

func customScreen(s custom.State) (custom.Event, bool, error) { //nolint:ireturn,cyclop
	startOver := opt("Start over", just[custom.Event](custom.Start{}))
	requireSocial := func() (custom.Event, error) {
		p, err := provider()

		return custom.RequireSocial{Provider: p}, err
	}

	switch s := s.(type) {
	case custom.EnterPhone:
		return pick("Phone number",
			opt("Enter number", func() (custom.Event, error) {
				phone, err := cli.PromptString("Phone", nil)

				return custom.SubmitPhone{Phone: phone}, err
			}),
			opt("Back", just[custom.Event](custom.Back{})))
	case custom.EnterOTP:
		return pick(fmt.Sprintf("Code sent to %s", s.Phone),
			opt("Enter code", func() (custom.Event, error) {
				otp, err := cli.PromptDigits("Code", 6, 6) //nolint:mnd

				return custom.SubmitOTP{OTP: otp}, err
			}),
			opt("Resend code", just[custom.Event](custom.ResendOTP{})),
			opt("Back", just[custom.Event](custom.Back{})))
	case custom.OTPNotDeliveredTrySocial:
		return pick("The code was not delivered",
			opt("Use a social account", requireSocial),
			opt("Back", just[custom.Event](custom.Back{})),
			startOver)
	case custom.OTPNotDelivered, custom.NoMatch:
		fmt.Println(strings.ReplaceAll(s.Name(), "_", " "))

		return pick("Restore failed", startOver)
	case custom.Broken:
		fmt.Printf("The service failed (code %d).\n", s.Code)

		return pick("Restore failed", startOver)
	case custom.TryAnother:
		fmt.Printf("No wallet is bound to %s.\n", s.WrongNumber)

		options := []cli.Choice[action[custom.Event]]{
			opt("Another number", just[custom.Event](custom.OpenPhoneEntry{})),
		}
		if s.TrySocial {
			options = append(options, opt("Use a social account", requireSocial))
		}

		return pick("Try again", append(options, startOver)...)
	case custom.NotFoundDevice:
		return pick("The device share is out of date",
			opt("Use a social account", requireSocial),
			opt("Another number", just[custom.Event](custom.OpenPhoneEntry{})),
			startOver)
	case custom.Block:
		fmt.Printf("Too many attempts. Try again after %s.\n", s.Until.Format("15:04:05"))

		return pick("Blocked",
			opt("Try again", just[custom.Event](custom.OpenPhoneEntry{})),
			startOver)
	}

	return nil, false, nil
}

func createScreen(s create.State) (create.Event, bool, error) { //nolint:ireturn
	switch s := s.(type) {
	case create.SocialSignIn:
		return lift(signInScreen, s.Inner, func(e socialsignin.Event) create.Event {
			return create.SocialSignInEvent{Event: e}
		})
	case create.BindingPhoneNumber:
		return lift(bindPhoneScreen, s.Inner, func(e bindphone.Event) create.Event {
			return create.BindingPhoneEvent{Event: e}
		})
	case create.SecuritySetup:
		return lift(security, s.Inner, func(e securitysetup.Event) create.Event { return create.SecurityEvent{Event: e} })
	case create.Finish:
		switch r := s.Result.(type) {
		case create.NewWallet:
			fmt.Printf("Wallet %s created and bound to %s.\n", r.Data.ETHAddress, r.Data.Metadata.PhoneNumber)
		case create.SwitchToRestoreFlow:
			fmt.Printf("%s already has a wallet. Restore it instead.\n", r.Email)
		case create.BreakProcess:
			fmt.Println("Creation cancelled.")
		}
	}

	return nil, false, nil
}

func signInScreen(s socialsignin.State) (socialsignin.Event, bool, error) { //nolint:ireturn
	signIn := func() (socialsignin.Event, error) {
		p, err := provider()

		return socialsignin.SignIn{Provider: p}, err
	}

	switch s := s.(type) {
	case socialsignin.SocialSelection:
		return pick("Create a wallet",
			opt("Sign in", signIn),
			opt("Cancel", just[socialsignin.Event](socialsignin.SignInBack{})))
	case socialsignin.SignInProgress:
		fmt.Printf("Signed in as %s.\n", s.Email)

		return pick("Continue",
			opt("Create wallet", just[socialsignin.Event](s.TorusEvent())),
			opt("Back", just[socialsignin.Event](socialsignin.SignInBack{})))
	case socialsignin.AccountWasUsed:
		fmt.Printf("%s already has a wallet.\n", s.UsedEmail)

		return pick("Account in use",
			opt("Restore it", just[socialsignin.Event](socialsignin.Restore{Provider: s.Provider, Email: s.UsedEmail})),
			opt("Another account", signIn),
			opt("Back", just[socialsignin.Event](socialsignin.SignInBack{})))
	}

	return nil, false, nil
}

func bindPhoneScreen(s bindphone.State) (bindphone.Event, bool, error) { //nolint:ireturn
	switch s := s.(type) {
	case bindphone.EnterPhoneNumber:
		phone, err := cli.PromptString("Phone", nil)
		if err != nil {
			return nil, false, err
		}

		channel, err := cli.Choose("Send the code by",
			cli.Choice[onboarding.Channel]{Label: "SMS", Value: onboarding.SMS},
			cli.Choice[onboarding.Channel]{Label: "Call", Value: onboarding.Call})

		return bindphone.SubmitPhone{Phone: phone, Channel: channel}, err == nil, err
	case bindphone.EnterOTP:
		return pick(fmt.Sprintf("Code sent to %s", s.Phone),
			opt("Enter code", func() (bindphone.Event, error) {
				otp, err := cli.PromptDigits("Code", 6, 6) //nolint:mnd

				return bindphone.SubmitOTP{OTP: otp}, err
			}),
			opt("Resend code", just[bindphone.Event](bindphone.ResendOTP{})),
			opt("Back", just[bindphone.Event](bindphone.Back{})))
	case bindphone.Block:
		fmt.Printf("Too many attempts. Try again after %s.\n", s.Until.Format("15:04:05"))

		return pick("Blocked",
			opt("Try again", just[bindphone.Event](bindphone.BlockFinish{})),
			opt("Home", just[bindphone.Event](bindphone.Home{})))
	case bindphone.Broken:
		fmt.Printf("The service failed (code %d).\n", s.Code)

		return pick("Binding failed", opt("Back", just[bindphone.Event](bindphone.Back{})))
	}

	return nil, false, nil
}
