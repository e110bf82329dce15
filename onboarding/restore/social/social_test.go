package social

import (
	"testing"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/fake"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/statemachine"
	"github.com/keyapp-labs/flowkit/statemachine/sttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const email = "ann@example.com"

func setup(t *testing.T) (*fake.World, fake.Account, Container) {
	t.Helper()

	w := fake.NewWorld()
	w.SignInAs(onboarding.Google, email)
	acct := w.AddWallet(onboarding.Google, email, "seed phrase", "+15550100000")

	return w, acct, Container{TKey: fake.TKey{World: w}, Auth: fake.Auth{World: w}}
}

func custom(acct fake.Account) onboarding.RestoreWalletResult {
	return onboarding.RestoreWalletResult{
		EncryptedShare:    acct.CustomShare,
		EncryptedPayload:  acct.EncryptedPayload,
		EncryptedMetadata: acct.EncryptedMetadata,
	}
}

// complete feeds the SignInTorus event that the current progress state expects.
func complete(t *testing.T, r *sttest.Runner[State, Event, Container]) State {
	t.Helper()

	progress, ok := r.State().(SignInProgress)
	require.True(t, ok, "state is %s", r.State().Name())

	return r.Send(progress.TorusEvent())
}

func TestDeviceShareSignIn(t *testing.T) {
	t.Parallel()

	_, acct, c := setup(t)
	r := sttest.NewRunner(t, State(SignIn{DeviceShare: acct.DeviceShare}), c, Accept)

	r.Send(SignInDevice{Provider: onboarding.Google})
	final := complete(t, r)

	assert.Equal(t, Finish{Result: Successful{SeedPhrase: "seed phrase", ETHPublicKey: acct.ETHAddress}}, final)
	r.RequireMonotonicProgress()
}

func TestProgressBackReturnsToStart(t *testing.T) {
	t.Parallel()

	_, acct, c := setup(t)
	r := sttest.NewRunner(t, State(SignIn{DeviceShare: acct.DeviceShare}), c, Accept)

	progress := r.Send(SignInDevice{Provider: onboarding.Google})
	assert.InDelta(t, 7.0, progress.Step(), 0)
	assert.Equal(t, Finish{Result: StartOver{}}, r.Send(Back{}))
}

func TestWrongDeviceShare(t *testing.T) {
	t.Parallel()

	_, _, c := setup(t)
	r := sttest.NewRunner(t, State(SignIn{DeviceShare: "stale"}), c, Accept)

	r.Send(SignInDevice{Provider: onboarding.Google})
	next := complete(t, r)

	nf, ok := next.(NotFoundDevice)
	require.True(t, ok)
	assert.Equal(t, email, nf.Data.Email)
	assert.Equal(t, "stale", nf.DeviceShare)

	assert.Equal(t, Finish{Result: RequireCustom{Data: optional.Some(nf.Data)}}, r.Send(SwitchToCustom{}))
}

func TestWrongDeviceShareFallsBackToCustomShare(t *testing.T) {
	t.Parallel()

	w, acct, c := setup(t)
	r := sttest.NewRunner(t,
		State(SignIn{DeviceShare: "stale", CustomResult: optional.Some(custom(acct))}), c, Accept)

	r.Send(SignInDevice{Provider: onboarding.Google})
	final := complete(t, r)

	assert.Equal(t, Finish{Result: Successful{SeedPhrase: "seed phrase", ETHPublicKey: acct.ETHAddress}}, final)
	assert.Equal(t, int64(1), w.Calls(fake.OpSignInCustom))
}

func TestCustomShareFallbackFailureKeepsCustomResult(t *testing.T) {
	t.Parallel()

	w, acct, c := setup(t)
	w.Fail(fake.OpSignInCustom, assert.AnError)

	r := sttest.NewRunner(t,
		State(SignIn{DeviceShare: "stale", CustomResult: optional.Some(custom(acct))}), c, Accept)

	r.Send(SignInDevice{Provider: onboarding.Google})
	next := complete(t, r)

	nf, ok := next.(NotFoundDevice)
	require.True(t, ok)
	assert.True(t, nf.CustomResult.NonEmpty())
}

func TestUnknownSocialAccount(t *testing.T) {
	t.Parallel()

	w, acct, c := setup(t)
	w.SignInAs(onboarding.Apple, "nobody@example.com")

	r := sttest.NewRunner(t, State(SignIn{DeviceShare: acct.DeviceShare}), c, Accept)
	r.Send(SignInDevice{Provider: onboarding.Apple})

	next := complete(t, r)
	require.IsType(t, NotFoundSocial{}, next)

	// Retrying with another provider goes back through progress.
	progress := r.Send(SignInDevice{Provider: onboarding.Google})
	assert.Equal(t, NotFoundSocial{}.Name(), progress.(SignInProgress).BackState.Name())

	final := complete(t, r)
	assert.IsType(t, Finish{}, final)
}

func TestCustomSignIn(t *testing.T) {
	t.Parallel()

	_, acct, c := setup(t)
	c.Option = Custom
	r := sttest.NewRunner(t, State(Social{Result: custom(acct)}), c, Accept)

	progress := r.Send(SignInCustom{Provider: onboarding.Google})
	assert.InDelta(t, 3.0, progress.Step(), 0)

	final := complete(t, r)
	assert.Equal(t, Finish{Result: Successful{SeedPhrase: "seed phrase", ETHPublicKey: acct.ETHAddress}}, final)
}

func TestCustomSignInWithWrongAccount(t *testing.T) {
	t.Parallel()

	w, acct, c := setup(t)
	w.SignInAs(onboarding.Apple, "nobody@example.com")

	r := sttest.NewRunner(t, State(Social{Result: custom(acct)}), c, Accept)
	r.Send(SignInCustom{Provider: onboarding.Apple})

	next := complete(t, r)
	assert.Equal(t, NotFoundCustom{Result: custom(acct), Email: "nobody@example.com"}, next)

	r.Send(SignInCustom{Provider: onboarding.Google})
	assert.Equal(t, next, r.Send(Back{}))
	assert.Equal(t, Finish{Result: StartOver{}}, r.Send(Start{}))
}

func TestCollaboratorFailurePropagates(t *testing.T) {
	t.Parallel()

	w, acct, c := setup(t)
	w.Fail(fake.OpInitialize, assert.AnError)

	r := sttest.NewRunner(t, State(SignIn{DeviceShare: acct.DeviceShare}), c, Accept)
	progress := r.Send(SignInDevice{Provider: onboarding.Google})

	_, err := r.Try(progress.(SignInProgress).TorusEvent())
	require.ErrorIs(t, err, statemachine.ErrCollaborator)
	require.ErrorIs(t, err, assert.AnError)
	r.RequireFinalState(SignInProgress{}.Name())

	w.Fail(fake.OpAuth, assert.AnError)
	r = sttest.NewRunner(t, State(SignIn{DeviceShare: acct.DeviceShare}), c, Accept)

	_, err = r.Try(SignInDevice{Provider: onboarding.Google})
	require.ErrorIs(t, err, statemachine.ErrCollaborator)
}

func TestTorusWithoutSharesIsInvalid(t *testing.T) {
	t.Parallel()

	_, _, c := setup(t)

	_, err := Accept(t.Context(), SignInProgress{BackState: SignIn{}}, SignInTorus{}, c)
	sttest.RequireInvalidEvent(t, err)
}

func TestInvalidPairs(t *testing.T) {
	t.Parallel()

	_, _, c := setup(t)

	states := []State{
		SignIn{}, SignInProgress{BackState: SignIn{}}, Social{}, NotFoundDevice{},
		NotFoundCustom{}, NotFoundSocial{}, Finish{Result: StartOver{}},
	}
	events := []Event{
		SignInDevice{}, SignInCustom{}, SignInTorus{}, Back{}, Start{}, SwitchToCustom{},
	}

	valid := func(s State, e Event) bool {
		switch s.(type) {
		case SignIn:
			return e.Name() == SignInDevice{}.Name()
		case SignInProgress:
			return e.Name() == SignInTorus{}.Name() || e.Name() == Back{}.Name()
		case Social:
			return e.Name() == SignInCustom{}.Name()
		case NotFoundCustom:
			return e.Name() == SignInCustom{}.Name() || e.Name() == Start{}.Name()
		case NotFoundDevice, NotFoundSocial:
			return e.Name() != SignInCustom{}.Name() && e.Name() != SignInTorus{}.Name() && e.Name() != Back{}.Name()
		}

		return false
	}

	sttest.RequireInvalidPairs(t, Accept, c, states, events, valid)
}

func TestSteps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, []float64{
		statemachine.StepOf(SignIn{}),
		statemachine.StepOf(Social{}),
		statemachine.StepOf(NotFoundCustom{}),
		statemachine.StepOf(NotFoundDevice{}),
		statemachine.StepOf(NotFoundSocial{}),
		statemachine.StepOf(Finish{}),
	})
	assert.InDelta(t, 5.0, SignInProgress{BackState: NotFoundDevice{}}.Step(), 0)
	assert.False(t, statemachine.ContinuableOf(Social{}))
	assert.Equal(t, "custom_device", CustomDevice.String())
}
