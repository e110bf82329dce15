package icloud

import (
	"context"
	"testing"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/statemachine"
	"github.com/keyapp-labs/flowkit/statemachine/sttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keychain struct {
	accounts []onboarding.ICloudAccount
	err      error
}

func (k keychain) Accounts(context.Context) ([]onboarding.ICloudAccount, error) {
	return k.accounts, k.err
}

func TestAuthorizeListsAccountsInNaturalOrder(t *testing.T) {
	t.Parallel()

	c := Container{Accounts: keychain{accounts: []onboarding.ICloudAccount{
		{Name: "wallet 10"}, {Name: "wallet 2"}, {Name: "wallet 1"},
	}}}

	next, err := Accept(t.Context(), SignIn{}, Authorize{}, c)
	require.NoError(t, err)

	choose, ok := next.(ChooseWallet)
	require.True(t, ok)

	names := make([]string, 0, len(choose.Accounts))
	for _, a := range choose.Accounts {
		names = append(names, a.Name)
	}

	assert.Equal(t, []string{"wallet 1", "wallet 2", "wallet 10"}, names)
}

func TestAuthorizeFailurePropagates(t *testing.T) {
	t.Parallel()

	_, err := Accept(t.Context(), SignIn{}, Authorize{}, Container{Accounts: keychain{err: assert.AnError}})
	require.ErrorIs(t, err, statemachine.ErrCollaborator)
	require.ErrorIs(t, err, assert.AnError)
}

func TestRestoreChosenWallet(t *testing.T) {
	t.Parallel()

	account := onboarding.ICloudAccount{Name: "main", Phrase: "a b c", DerivablePath: onboarding.PathBIP44}
	c := Container{Accounts: keychain{accounts: []onboarding.ICloudAccount{account}}}

	r := sttest.NewRunner(t, State(SignIn{}), c, Accept)
	final := r.Send(Authorize{}, RestoreWallet{Account: account})

	assert.Equal(t, Finish{Result: Successful{Phrase: "a b c", DerivablePath: onboarding.PathBIP44}}, final)
	r.RequireMonotonicProgress()
}

func TestRawWalletGetsDefaultPath(t *testing.T) {
	t.Parallel()

	next, err := Accept(t.Context(), SignIn{}, RestoreRawWallet{WalletName: "x", Phrase: "p"}, Container{})
	require.NoError(t, err)
	assert.Equal(t, Finish{Result: Successful{Phrase: "p", DerivablePath: onboarding.DefaultPath}}, next)
}

func TestBackReturns(t *testing.T) {
	t.Parallel()

	for _, s := range []State{SignIn{}, ChooseWallet{}} {
		next, err := Accept(t.Context(), s, Back{}, Container{})
		require.NoError(t, err)
		assert.Equal(t, Finish{Result: Returned{}}, next)
	}
}

func TestInvalidEvents(t *testing.T) {
	t.Parallel()

	r := sttest.NewRunner(t, State(ChooseWallet{}), Container{}, Accept)
	r.RequireInvalid(Authorize{})

	r = sttest.NewRunner(t, State(SignIn{}), Container{}, Accept)
	r.RequireInvalid(RestoreWallet{})

	final := State(Finish{Result: Returned{}})
	for _, e := range []Event{Authorize{}, RestoreRawWallet{}, RestoreWallet{}, Back{}} {
		_, err := Accept(t.Context(), final, e, Container{})
		sttest.RequireInvalidEvent(t, err)
	}
}
