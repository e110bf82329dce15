package restore

import (
	"strings"
	"testing"
	"time"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/fake"
	"github.com/keyapp-labs/flowkit/onboarding/restore/custom"
	"github.com/keyapp-labs/flowkit/onboarding/restore/icloud"
	"github.com/keyapp-labs/flowkit/onboarding/restore/seed"
	"github.com/keyapp-labs/flowkit/onboarding/restore/social"
	"github.com/keyapp-labs/flowkit/onboarding/securitysetup"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/statemachine"
	"github.com/keyapp-labs/flowkit/statemachine/sttest"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	email = "ann@example.com"
	phone = "+15550100000"
	words = "abandon ability able about above absent absorb abstract absurd abuse access accident"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	world    *fake.World
	account  fake.Account
	biometry *fake.Biometry
	c        Container
}

// newEnv builds a container over a world with one wallet bound to phone.
// withDevice controls whether this device still holds the wallet's share.
func newEnv(t *testing.T, withDevice bool) env {
	t.Helper()

	w := fake.NewWorld()
	w.SignInAs(onboarding.Google, email)
	acct := w.AddWallet(onboarding.Google, email, "seed phrase", phone)
	bio := &fake.Biometry{}

	c := Container{
		TKey:       fake.TKey{World: w},
		APIGateway: fake.Gateway{World: w},
		Auth:       fake.Auth{World: w},
		Keys:       fake.Keys{World: w},
		ICloud: fake.Keychain{Backups: []onboarding.ICloudAccount{
			{Name: "main", Phrase: words, DerivablePath: onboarding.PathBIP44},
		}},
		Biometry: bio,
		Clock:    onboarding.FixedClock(now),
	}

	if withDevice {
		c.DeviceShare = optional.Some(acct.DeviceShare)
	}

	return env{world: w, account: acct, biometry: bio, c: c}
}

func securityEvents(pin string) []Event {
	return []Event{
		SecurityEvent{Event: securitysetup.EnterPin{Pin: pin}},
		SecurityEvent{Event: securitysetup.RepeatPin{Pin: pin}},
		SecurityEvent{Event: securitysetup.SetBiometry{Enabled: true}},
	}
}

func torus(t *testing.T, s State) Event {
	t.Helper()

	rs, ok := s.(RestoreSocial)
	require.True(t, ok, "state is %s", s.Name())

	progress, ok := rs.Inner.(social.SignInProgress)
	require.True(t, ok, "social state is %s", statemachine.NameOf(rs.Inner))

	return SocialEvent{Event: progress.TorusEvent()}
}

func TestSeedOpensSeedFlow(t *testing.T) {
	t.Parallel()

	next, err := Accept(t.Context(), Restore{}, SeedEvent{Event: seed.SignInWithSeed{}}, Container{})
	require.NoError(t, err)
	assert.Equal(t, RestoreSeed{Inner: seed.SignInSeed{}}, next)
}

func TestBackAndStartBreak(t *testing.T) {
	t.Parallel()

	for _, e := range []Event{Back{}, Start{}} {
		next, err := Accept(t.Context(), Restore{}, e, Container{})
		require.NoError(t, err)
		assert.Equal(t, Finished{Result: BreakProcess{}}, next)
	}
}

func TestCustomSuccessLiftsToSecuritySetup(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)

	otp, err := Accept(t.Context(), Restore{}, CustomEvent{Event: custom.OpenPhoneEntry{}}, e.c)
	require.NoError(t, err)

	otp, err = Accept(t.Context(), otp, CustomEvent{Event: custom.SubmitPhone{Phone: phone}}, e.c)
	require.NoError(t, err)

	inner := otp.(RestoreCustom).Inner
	lifted := sttest.RequireLifted(t, customChild(e.c, otp, nil), inner,
		custom.Event(custom.SubmitOTP{OTP: fake.DefaultOTP}), e.c.custom())

	setup, ok := lifted.(SecuritySetup)
	require.True(t, ok, "lifted to %s", lifted.Name())
	assert.Equal(t, onboarding.NewWallet("seed phrase"), setup.Wallet)
	assert.Equal(t, optional.Some(e.account.ETHAddress), setup.ETHPublicKey)
	assert.True(t, setup.Metadata.NonEmpty())
	assert.Equal(t, securitysetup.Initial(), setup.Inner)
}

func TestFinishedRejectsEverything(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)

	for _, f := range []State{
		Finished{Result: BreakProcess{}},
		Finished{Result: Successful{}},
	} {
		for _, ev := range allEvents() {
			_, err := Accept(t.Context(), f, ev, e.c)
			sttest.RequireInvalidEvent(t, err)
		}
	}
}

func TestDeviceSignInWithoutDeviceShareIsInvalid(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)

	_, err := Accept(t.Context(), Restore{}, SocialEvent{Event: social.SignInDevice{Provider: onboarding.Google}}, e.c)
	sttest.RequireInvalidEvent(t, err)

	state := RestoreCustom{Inner: custom.NotFoundDevice{}}
	_, err = Accept(t.Context(), state, CustomEvent{Event: custom.RequireSocial{Provider: onboarding.Google}}, e.c)
	sttest.RequireInvalidEvent(t, err)

	assert.Equal(t, int64(0), e.world.Calls(fake.OpAuth))
}

func TestSeedRestore(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	r.Send(
		SeedEvent{Event: seed.SignInWithSeed{}},
		SeedEvent{Event: seed.ChooseSeed{Phrase: strings.Fields(words)}},
		SeedEvent{Event: seed.ChooseDerivablePath{Path: onboarding.PathDeprecated}},
	)
	final := r.Send(securityEvents("1234")...)

	assert.Equal(t, Finished{Result: Successful{Data: RestoreWalletData{
		Wallet:   onboarding.Wallet{SeedPhrase: words, DerivablePath: onboarding.PathDeprecated},
		Security: securitysetup.Data{Pin: "1234", BiometryEnabled: true},
	}}}, final)
	assert.Equal(t, int64(1), e.biometry.Enrolled())
	r.RequireMonotonicProgress()
}

func TestICloudRestore(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	chooser := r.Send(ICloudEvent{Event: icloud.Authorize{}})
	accounts := chooser.(RestoreICloud).Inner.(icloud.ChooseWallet).Accounts
	require.Len(t, accounts, 1)

	setup := r.Send(ICloudEvent{Event: icloud.RestoreWallet{Account: accounts[0]}})
	assert.Equal(t, words, setup.(SecuritySetup).Wallet.SeedPhrase)

	r.RequireMonotonicProgress()
}

func TestChildBackReturnsToRestore(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	r.Send(SeedEvent{Event: seed.SignInWithSeed{}})
	assert.Equal(t, Restore{}, r.Send(SeedEvent{Event: seed.Back{}}))

	r.Send(ICloudEvent{Event: icloud.Authorize{}})
	assert.Equal(t, Restore{}, r.Send(ICloudEvent{Event: icloud.Back{}}))

	r.Send(CustomEvent{Event: custom.OpenPhoneEntry{}})
	assert.Equal(t, Restore{}, r.Send(CustomEvent{Event: custom.Back{}}))
}

func TestSocialDeviceRestore(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	progress := r.Send(SocialEvent{Event: social.SignInDevice{Provider: onboarding.Google}})
	assert.Equal(t, StageSocialBeforeCustom, progress.(RestoreSocial).Stage())

	setup := r.Send(torus(t, progress))
	assert.Equal(t, optional.Some(e.account.ETHAddress), setup.(SecuritySetup).ETHPublicKey)

	final := r.Send(securityEvents("9876")...)
	data := final.(Finished).Result.(Successful).Data
	assert.Equal(t, "seed phrase", data.Wallet.SeedPhrase)
	assert.Equal(t, onboarding.DefaultPath, data.Wallet.DerivablePath)
	r.RequireMonotonicProgress()
}

func TestSocialStartOverBreaks(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	r.Send(SocialEvent{Event: social.SignInDevice{Provider: onboarding.Google}})
	assert.Equal(t, Finished{Result: BreakProcess{}}, r.Send(SocialEvent{Event: social.Back{}}))
}

func TestCustomThenSocialCustom(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	next := r.Send(
		CustomEvent{Event: custom.OpenPhoneEntry{}},
		CustomEvent{Event: custom.SubmitPhone{Phone: phone}},
		CustomEvent{Event: custom.SubmitOTP{OTP: fake.DefaultOTP}},
	)

	rs, ok := next.(RestoreSocial)
	require.True(t, ok, "state is %s", next.Name())
	assert.Equal(t, social.Custom, rs.Option)
	assert.Equal(t, StageSocialAfterCustom, rs.Stage())

	progress := r.Send(SocialEvent{Event: social.SignInCustom{Provider: onboarding.Google}})
	setup := r.Send(torus(t, progress))
	assert.Equal(t, "seed phrase", setup.(SecuritySetup).Wallet.SeedPhrase)

	r.Send(securityEvents("1111")...)
	r.RequireFinalState(Finished{}.Name())
	r.RequireMonotonicProgress()
}

func TestCustomStaleDeviceThenSocialDevice(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)
	e.c.DeviceShare = optional.Some("stale")
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	nf := r.Send(
		CustomEvent{Event: custom.OpenPhoneEntry{}},
		CustomEvent{Event: custom.SubmitPhone{Phone: phone}},
		CustomEvent{Event: custom.SubmitOTP{OTP: fake.DefaultOTP}},
	)
	require.IsType(t, custom.NotFoundDevice{}, nf.(RestoreCustom).Inner)

	progress := r.Send(CustomEvent{Event: custom.RequireSocial{Provider: onboarding.Google}})
	rs := progress.(RestoreSocial)
	assert.Equal(t, social.CustomDevice, rs.Option)
	assert.Equal(t, StageSocialAfterCustom, rs.Stage())

	setup := r.Send(torus(t, progress))
	assert.Equal(t, "seed phrase", setup.(SecuritySetup).Wallet.SeedPhrase)
	r.RequireMonotonicProgress()
}

func TestSocialNotFoundSwitchesToCustom(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	e.world.SignInAs(onboarding.Apple, "nobody@example.com")
	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	progress := r.Send(SocialEvent{Event: social.SignInDevice{Provider: onboarding.Apple}})
	notFound := r.Send(torus(t, progress))
	require.IsType(t, social.NotFoundSocial{}, notFound.(RestoreSocial).Inner)

	next := r.Send(SocialEvent{Event: social.SwitchToCustom{}})
	enter, ok := next.(RestoreCustom).Inner.(custom.EnterPhone)
	require.True(t, ok)

	data, ok := enter.Social.Get()
	require.True(t, ok)
	assert.Equal(t, "nobody@example.com", data.Email)
}

func TestCollaboratorFailureKeepsState(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	e.world.Fail(fake.OpAuth, assert.AnError)

	r := sttest.NewRunner(t, Initial(), e.c, Accept)

	_, err := r.Try(SocialEvent{Event: social.SignInDevice{Provider: onboarding.Google}})
	require.ErrorIs(t, err, statemachine.ErrCollaborator)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, Restore{}, r.State())
}

func allEvents() []Event {
	return []Event{
		ICloudEvent{Event: icloud.Authorize{}},
		ICloudEvent{Event: icloud.Back{}},
		SeedEvent{Event: seed.SignInWithSeed{}},
		SeedEvent{Event: seed.Back{}},
		SocialEvent{Event: social.SignInDevice{Provider: onboarding.Google}},
		SocialEvent{Event: social.Back{}},
		CustomEvent{Event: custom.OpenPhoneEntry{}},
		CustomEvent{Event: custom.Back{}},
		SecurityEvent{Event: securitysetup.Back{}},
		Back{},
		Start{},
	}
}

func TestInvalidEventCoverage(t *testing.T) {
	t.Parallel()

	// No device share, so the direct social sign-in is invalid too.
	e := newEnv(t, false)

	states := []State{
		Restore{},
		RestoreICloud{Inner: icloud.SignIn{}},
		RestoreICloud{Inner: icloud.ChooseWallet{}},
		RestoreSeed{Inner: seed.SignInSeed{}},
		RestoreSeed{Inner: seed.ChooseDerivationPath{Phrase: []string{"abandon"}}},
		RestoreSocial{Inner: social.Social{}, Option: social.Custom},
		RestoreSocial{Inner: social.SignIn{}, Option: social.Device},
		RestoreSocial{
			Inner:  social.SignInProgress{Email: email, BackState: social.SignIn{}},
			Option: social.CustomDevice,
		},
		RestoreCustom{Inner: custom.EnterPhone{}},
		RestoreCustom{Inner: custom.EnterOTP{Phone: phone}},
		RestoreCustom{Inner: custom.Block{Until: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)}},
		SecuritySetup{Inner: securitysetup.Initial()},
		SecuritySetup{Inner: securitysetup.ConfirmPin{Pin: "1234"}},
		Finished{Result: BreakProcess{}},
	}

	opening := map[string]bool{
		"icloud.authorize":        true,
		"seed.sign_in_with_seed":  true,
		"custom.open_phone_entry": true,
		Back{}.Name():             true,
		Start{}.Name():            true,
	}

	wrapper := func(s State) string {
		switch s.(type) {
		case RestoreICloud:
			return "icloud"
		case RestoreSeed:
			return "seed"
		case RestoreSocial:
			return "social"
		case RestoreCustom:
			return "custom"
		case SecuritySetup:
			return "security"
		}

		return ""
	}

	valid := func(s State, ev Event) bool {
		if _, ok := s.(Restore); ok {
			return opening[ev.Name()]
		}

		kind, _, _ := strings.Cut(ev.Name(), ".")

		return kind == wrapper(s)
	}

	sttest.RequireInvalidPairs(t, Accept, e.c, states, allEvents(), valid)
}

func TestProgressStages(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, Restore{}.Step(), 0)
	assert.InDelta(t, 401.0, RestoreSocial{Inner: social.SignIn{}, Option: social.CustomDevice}.Step(), 0)
	assert.InDelta(t, 404.0, RestoreSocial{Inner: social.NotFoundDevice{}, Option: social.Device}.Step(), 0)
	assert.InDelta(t, 604.0, RestoreSocial{Inner: social.NotFoundDevice{}, Option: social.CustomDevice}.Step(), 0)
	assert.InDelta(t, 602.0, RestoreSocial{Inner: social.Social{}, Option: social.Custom}.Step(), 0)
	assert.InDelta(t, 501.0, RestoreCustom{Inner: custom.EnterPhone{}}.Step(), 0)
	assert.InDelta(t, 800.0, Finished{}.Step(), 0)
	assert.Equal(t, StageSecuritySetup, statemachine.StageOf(SecuritySetup{Inner: securitysetup.Initial()}.Step()))
}

func TestContinuable(t *testing.T) {
	t.Parallel()

	assert.False(t, Restore{}.Continuable())
	assert.False(t, Finished{}.Continuable())
	assert.True(t, RestoreCustom{Inner: custom.EnterPhone{}}.Continuable())
	assert.False(t, RestoreSocial{Inner: social.SignIn{}}.Continuable())
	assert.True(t, SecuritySetup{Inner: securitysetup.Initial()}.Continuable())
	assert.False(t, RestoreSeed{Inner: seed.SignInSeed{}}.Continuable())
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "restore_custom.enter_otp", RestoreCustom{Inner: custom.EnterOTP{}}.Name())
	assert.Equal(t, "social.sign_in_device", SocialEvent{Event: social.SignInDevice{}}.Name())
}

func TestMachine(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)
	m := New(t.Context(), e.c, statemachine.WithLogger(slogt.New(t)))
	t.Cleanup(m.Close)

	sub := m.Subscribe(t.Context())

	events := append([]Event{
		SeedEvent{Event: seed.SignInWithSeed{}},
		SeedEvent{Event: seed.ChooseSeed{Phrase: strings.Fields(words)}},
		SeedEvent{Event: seed.ChooseDerivablePath{Path: onboarding.PathBIP44}},
	}, securityEvents("2468")...)

	for _, ev := range events {
		_, err := m.Accept(t.Context(), ev)
		require.NoError(t, err)
	}

	_, err := m.Accept(t.Context(), Back{})
	require.ErrorIs(t, err, statemachine.ErrInvalidEvent)

	states := sttest.Collect(t, sub, len(events)+1, 5*time.Second)
	assert.Equal(t, Restore{}, states[0])
	assert.IsType(t, Finished{}, states[len(states)-1])
	sttest.RequireMonotonic(t, toAny(states)...)
	assert.Equal(t, FlowName, m.Name())
}

func toAny(states []State) []any {
	out := make([]any, len(states))
	for i, s := range states {
		out[i] = s
	}

	return out
}
