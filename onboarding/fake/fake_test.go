package fake

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTKeyCodes(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	acct := w.AddWallet(onboarding.Google, "Ann@Example.com", "seed words", "")
	tk := TKey{World: w}

	key, err := tk.ObtainTorusKey(t.Context(), onboarding.TokenID{Value: "token:ann@example.com"})
	require.NoError(t, err)

	res, err := tk.SignInWithDeviceShare(t.Context(), key, acct.DeviceShare)
	require.NoError(t, err)
	assert.Equal(t, "seed words", res.PrivateSOL)

	_, err = tk.SignInWithDeviceShare(t.Context(), key, "other")
	code, _ := onboarding.TKeyCode(err)
	assert.Equal(t, onboarding.TKeyDeviceShareNotFound, code)

	unknown, err := tk.ObtainTorusKey(t.Context(), onboarding.TokenID{Value: "token:bob@example.com"})
	require.NoError(t, err)

	_, err = tk.SignInWithDeviceShare(t.Context(), unknown, acct.DeviceShare)
	code, _ = onboarding.TKeyCode(err)
	assert.Equal(t, onboarding.TKeySocialShareNotFound, code)

	_, err = tk.SignUp(t.Context(), key, "again")
	code, _ = onboarding.TKeyCode(err)
	assert.Equal(t, onboarding.TKeyDeviceShareNotFound, code)
}

func TestGatewayRestore(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	acct := w.AddWallet(onboarding.Apple, "a@b.c", "seed", "+1 (555) 010-0000")
	gw := Gateway{World: w}

	require.NoError(t, gw.RestoreWallet(t.Context(), nil, "+15550100000", onboarding.SMS, time.Now()))

	err := gw.RestoreWallet(t.Context(), nil, "+15550109999", onboarding.SMS, time.Now())
	ge, ok := onboarding.AsAPIGatewayError(err)
	require.True(t, ok)
	assert.True(t, ge.WrongNumber())

	_, err = gw.ConfirmRestoreWallet(t.Context(), nil, "+15550100000", "000000", time.Now())
	ge, ok = onboarding.AsAPIGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, onboarding.CodeInvalidOTP, ge.Code)

	res, err := gw.ConfirmRestoreWallet(t.Context(), nil, "+15550100000", DefaultOTP, time.Now())
	require.NoError(t, err)
	assert.Equal(t, acct.CustomShare, res.EncryptedShare)

	md, err := Keys{}.DecryptMetadata(t.Context(), "seed", res.EncryptedMetadata)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", md.Email)

	_, err = Keys{}.DecryptMetadata(t.Context(), "other", res.EncryptedMetadata)
	require.ErrorIs(t, err, ErrWrongSeed)
}

func TestFailIsConsumedInOrder(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	w.SignInAs(onboarding.Google, "x@y.z")
	auth := Auth{World: w}

	w.Fail(OpAuth, assert.AnError)

	_, _, err := auth.Auth(t.Context(), onboarding.Google)
	require.ErrorIs(t, err, assert.AnError)

	token, email, err := auth.Auth(t.Context(), onboarding.Google)
	require.NoError(t, err)
	assert.Equal(t, "token:x@y.z", token)
	assert.Equal(t, "x@y.z", email)
	assert.Equal(t, int64(2), w.Calls(OpAuth))

	_, _, err = auth.Auth(t.Context(), onboarding.Apple)
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	w.AddWallet(onboarding.Google, "a@b.c", "seed", "+100")
	gw := Gateway{World: w}

	var wg sync.WaitGroup

	for range 32 {
		wg.Go(func() {
			_ = gw.RestoreWallet(t.Context(), nil, "+100", onboarding.SMS, time.Now())
		})
	}

	wg.Wait()
	assert.Equal(t, int64(32), w.Calls(OpRestoreWallet))
}

func TestMnemonicHasTwelveWords(t *testing.T) {
	t.Parallel()

	m, err := Keys{}.NewMnemonic(t.Context())
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 12)
}
