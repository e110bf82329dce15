package bindphone

import (
	"fmt"
	"testing"
	"time"

	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/fake"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/statemachine"
	"github.com/keyapp-labs/flowkit/statemachine/sttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "+15550100000"

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*fake.World, Data, Container) {
	t.Helper()

	w := fake.NewWorld()
	acct := w.AddWallet(onboarding.Google, "ann@example.com", "seed phrase", "")

	data := NewData("seed phrase", acct.ETHAddress, acct.CustomShare, acct.EncryptedPayload,
		"pixel", "ann@example.com", "google")

	c := Container{
		APIGateway: fake.Gateway{World: w},
		Keys:       fake.Keys{World: w},
		Clock:      onboarding.FixedClock(now),
	}

	return w, data, c
}

func TestBindPhone(t *testing.T) {
	t.Parallel()

	w, data, c := setup(t)
	r := sttest.NewRunner(t, Initial(data), c, Accept)

	otp := r.Send(SubmitPhone{Phone: "+1 555 010 0000", Channel: onboarding.Call})
	assert.Equal(t, onboarding.Call, otp.(EnterOTP).Channel)
	assert.Equal(t, phone, otp.(EnterOTP).Phone)

	final := r.Send(SubmitOTP{OTP: fake.DefaultOTP})
	assert.Equal(t, Finish{Result: Success{Metadata: onboarding.WalletMetadata{
		ETHPublic:    data.ETHAddress,
		DeviceName:   "pixel",
		Email:        "ann@example.com",
		AuthProvider: "google",
		PhoneNumber:  phone,
	}}}, final)

	acct, ok := w.Account("ann@example.com")
	require.True(t, ok)
	assert.Equal(t, phone, acct.Phone)
	r.RequireMonotonicProgress()
}

func TestSendThrottle(t *testing.T) {
	t.Parallel()

	_, data, c := setup(t)
	r := sttest.NewRunner(t, Initial(data), c, Accept)

	for i := range SendLimit {
		require.IsType(t, EnterOTP{}, r.Send(SubmitPhone{Phone: fmt.Sprintf("+1555010000%d", i)}))
		r.Send(Back{})
	}

	block := r.Send(SubmitPhone{Phone: "+15550100009"}).(Block)
	assert.Equal(t, now.Add(BlockTime), block.Until)
	assert.Equal(t, onboarding.BlockEnterPhoneNumber, block.Reason)
	assert.Equal(t, 0, block.Data.SendingThrottle.Attempts)

	r.RequireInvalid(BlockFinish{})

	c.Clock = onboarding.FixedClock(now.Add(BlockTime + time.Second))

	next, err := Accept(t.Context(), block, BlockFinish{}, c)
	require.NoError(t, err)
	assert.Equal(t, EnterPhoneNumber{InitialPhone: "+15550100009", Data: block.Data}, next)
}

func TestBackKeepsSentCode(t *testing.T) {
	t.Parallel()

	w, data, c := setup(t)
	r := sttest.NewRunner(t, Initial(data), c, Accept)

	r.Send(SubmitPhone{Phone: phone}, ResendOTP{})

	back := r.Send(Back{}).(EnterPhoneNumber)
	assert.True(t, back.DidSend)
	assert.Equal(t, optional.Some(onboarding.ResendCounter{Attempt: 1}), back.ResendCounter)

	otp := r.Send(SubmitPhone{Phone: "+1 (555) 010-0000"}).(EnterOTP)
	assert.Equal(t, 1, otp.ResendCounter.Attempt)
	assert.Equal(t, int64(2), w.Calls(fake.OpRegisterWallet))
}

func TestBroken(t *testing.T) {
	t.Parallel()

	w, data, c := setup(t)
	w.Fail(fake.OpRegisterWallet, &onboarding.APIGatewayError{Code: onboarding.CodeTooManyRequests})

	r := sttest.NewRunner(t, Initial(data), c, Accept)

	broken := r.Send(SubmitPhone{Phone: phone})
	assert.Equal(t, Broken{Code: onboarding.CodeTooManyRequests}, broken)
	assert.False(t, statemachine.ContinuableOf(broken))
	assert.Equal(t, Finish{Result: BreakProcess{}}, r.Send(Back{}))
}

func TestCooldowns(t *testing.T) {
	t.Parallel()

	w, data, c := setup(t)
	r := sttest.NewRunner(t, Initial(data), c, Accept)
	r.Send(SubmitPhone{Phone: phone})

	w.Fail(fake.OpRegisterWallet, &onboarding.CooldownError{Cooldown: time.Minute})
	block := r.Send(ResendOTP{}).(Block)
	assert.Equal(t, onboarding.BlockResend, block.Reason)
	assert.Equal(t, now.Add(time.Minute), block.Until)
	assert.Equal(t, Finish{Result: BreakProcess{}}, r.Send(Home{}))

	r = sttest.NewRunner(t, Initial(data), c, Accept)
	r.Send(SubmitPhone{Phone: phone})

	w.Fail(fake.OpConfirmRegisterWallet, &onboarding.CooldownError{Cooldown: time.Hour})
	assert.Equal(t, onboarding.BlockEnterOTP, r.Send(SubmitOTP{OTP: fake.DefaultOTP}).(Block).Reason)
}

func TestCooldownThrottleReset(t *testing.T) {
	t.Parallel()

	w, data, c := setup(t)
	r := sttest.NewRunner(t, Initial(data), c, Accept)
	otp := r.Send(SubmitPhone{Phone: phone}).(EnterOTP)
	require.Positive(t, otp.Data.SendingThrottle.Attempts)

	w.Fail(fake.OpRegisterWallet, &onboarding.CooldownError{Cooldown: time.Minute})
	block := r.Send(ResendOTP{}).(Block)
	assert.Equal(t, onboarding.BlockResend, block.Reason)
	assert.Equal(t, otp.Data.SendingThrottle, block.Data.SendingThrottle)

	r = sttest.NewRunner(t, Initial(data), c, Accept)
	w.Fail(fake.OpRegisterWallet, &onboarding.CooldownError{Cooldown: time.Minute})
	block = r.Send(SubmitPhone{Phone: phone}).(Block)
	assert.Equal(t, onboarding.BlockEnterPhoneNumber, block.Reason)
	assert.Equal(t, 0, block.Data.SendingThrottle.Attempts)
}

func TestWrongOTPPropagates(t *testing.T) {
	t.Parallel()

	_, data, c := setup(t)
	r := sttest.NewRunner(t, Initial(data), c, Accept)
	r.Send(SubmitPhone{Phone: phone})

	_, err := r.Try(SubmitOTP{OTP: "000000"})
	require.ErrorIs(t, err, statemachine.ErrCollaborator)

	ge, ok := onboarding.AsAPIGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, onboarding.CodeInvalidOTP, ge.Code)
	r.RequireFinalState(EnterOTP{}.Name())
}

func TestInvalidPairs(t *testing.T) {
	t.Parallel()

	_, data, c := setup(t)

	states := []State{
		EnterPhoneNumber{Data: data}, EnterOTP{Data: data}, Block{Until: now.Add(time.Hour)},
		Broken{}, Finish{Result: BreakProcess{}},
	}
	events := []Event{SubmitPhone{}, SubmitOTP{}, ResendOTP{}, BlockFinish{}, Home{}, Back{}}

	valid := map[string][]string{
		EnterPhoneNumber{}.Name(): {SubmitPhone{}.Name()},
		EnterOTP{}.Name():         {SubmitOTP{}.Name(), ResendOTP{}.Name(), Back{}.Name()},
		Block{}.Name():            {Home{}.Name()},
		Broken{}.Name():           {Back{}.Name()},
	}

	sttest.RequireInvalidPairs(t, Accept, c, states, events, func(s State, e Event) bool {
		for _, name := range valid[s.Name()] {
			if name == e.Name() {
				return true
			}
		}

		return false
	})
}
