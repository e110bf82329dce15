package coordinator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/keyapp-labs/flowkit/coordinator"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/restore"
	"github.com/keyapp-labs/flowkit/onboarding/restore/seed"
	"github.com/keyapp-labs/flowkit/onboarding/securitysetup"
	"github.com/keyapp-labs/flowkit/statemachine"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const words = "abandon ability able about above absent absorb abstract absurd abuse access accident"

type machine = statemachine.Machine[restore.State, restore.Event, restore.Container]

func newMachine(t *testing.T) *machine {
	t.Helper()

	m := restore.New(t.Context(), restore.Container{}, statemachine.WithLogger(slogt.New(t)))
	t.Cleanup(m.Close)

	return m
}

// screen answers each seed restore state the way a user would.
func screen(state restore.State) (restore.Event, bool) {
	switch s := state.(type) {
	case restore.Restore:
		return restore.SeedEvent{Event: seed.SignInWithSeed{}}, true
	case restore.RestoreSeed:
		switch s.Inner.(type) {
		case seed.SignInSeed:
			return restore.SeedEvent{Event: seed.ChooseSeed{Phrase: strings.Fields(words)}}, true
		case seed.ChooseDerivationPath:
			return restore.SeedEvent{Event: seed.ChooseDerivablePath{Path: onboarding.PathBIP44}}, true
		}
	case restore.SecuritySetup:
		switch s.Inner.(type) {
		case securitysetup.CreatePin:
			return restore.SecurityEvent{Event: securitysetup.EnterPin{Pin: "1234"}}, true
		case securitysetup.ConfirmPin:
			return restore.SecurityEvent{Event: securitysetup.RepeatPin{Pin: "1234"}}, true
		case securitysetup.SetupBiometry:
			return restore.SecurityEvent{Event: securitysetup.SetBiometry{Enabled: false}}, true
		}
	}

	return nil, false
}

func TestRunBuildsEveryStateInOrder(t *testing.T) {
	t.Parallel()

	m := newMachine(t)

	var built []string

	err := coordinator.Run(t.Context(), m, coordinator.BuilderFunc[restore.State](
		func(ctx context.Context, state restore.State) error {
			built = append(built, state.Name())

			if event, ok := screen(state); ok {
				_, err := m.Accept(ctx, event)

				return err
			}

			return nil
		}))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"restore",
		"restore_seed.sign_in_seed",
		"restore_seed.choose_derivation_path",
		"security_setup.create_pin",
		"security_setup.confirm_pin",
		"security_setup.setup_biometry",
		"finished",
	}, built)
	assert.IsType(t, restore.Finished{}, m.Current())
}

func TestRunStopsOnBuildError(t *testing.T) {
	t.Parallel()

	m := newMachine(t)
	calls := 0

	err := coordinator.Run(t.Context(), m, coordinator.BuilderFunc[restore.State](
		func(context.Context, restore.State) error {
			calls++

			return assert.AnError
		}))
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestRunReturnsContextError(t *testing.T) {
	t.Parallel()

	m := newMachine(t)
	ctx, cancel := context.WithCancel(t.Context())

	err := coordinator.Run(ctx, m, coordinator.BuilderFunc[restore.State](
		func(context.Context, restore.State) error {
			cancel()

			return nil
		}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunClosedSource(t *testing.T) {
	t.Parallel()

	m := newMachine(t)
	m.Close()

	var built []restore.State

	err := coordinator.Run(t.Context(), m, coordinator.BuilderFunc[restore.State](
		func(_ context.Context, state restore.State) error {
			built = append(built, state)

			return nil
		}))
	require.ErrorIs(t, err, coordinator.ErrSourceClosed)
	assert.Equal(t, []restore.State{restore.Restore{}}, built)
}
