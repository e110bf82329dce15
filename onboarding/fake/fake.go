// Package fake provides in-memory collaborators for the onboarding flows.
//
// A World holds registered wallets and the phone numbers bound to them. The
// TKey, Gateway, Auth and Keys types all read and write the same World, so a
// wallet created by the create flow can be restored by the restore flow.
// Every collaborator is safe for concurrent use.
package fake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keyapp-labs/flowkit/hashing"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/sanitize"
	"go.uber.org/atomic"
)

// DefaultOTP is the code every phone receives unless changed with SetOTP.
const DefaultOTP = "123456"

// Operation names accepted by Fail and Calls.
const (
	OpAuth                  = "auth"
	OpInitialize            = "tkey.initialize"
	OpObtainTorusKey        = "tkey.obtain_torus_key"
	OpSignInDevice          = "tkey.sign_in_device"
	OpSignInCustom          = "tkey.sign_in_custom"
	OpSignInDeviceAndCustom = "tkey.sign_in_device_and_custom"
	OpSignUp                = "tkey.sign_up"
	OpRestoreWallet         = "gateway.restore_wallet"
	OpConfirmRestoreWallet  = "gateway.confirm_restore_wallet"
	OpRegisterWallet        = "gateway.register_wallet"
	OpConfirmRegisterWallet = "gateway.confirm_register_wallet"
	OpNewSecretKey          = "keys.new_secret_key"
	OpEncryptMetadata       = "keys.encrypt_metadata"
	OpDecryptMetadata       = "keys.decrypt_metadata"
)

var ops = []string{
	OpAuth, OpInitialize, OpObtainTorusKey, OpSignInDevice, OpSignInCustom,
	OpSignInDeviceAndCustom, OpSignUp, OpRestoreWallet, OpConfirmRestoreWallet,
	OpRegisterWallet, OpConfirmRegisterWallet, OpNewSecretKey, OpEncryptMetadata,
	OpDecryptMetadata,
}

// ErrNotSignedIn is returned by Auth for a provider without an identity.
var ErrNotSignedIn = errors.New("no identity for provider")

// Account is a wallet known to the World.
type Account struct {
	Email             string
	Provider          onboarding.SocialProvider
	SeedPhrase        string
	ETHAddress        string
	DeviceShare       string
	CustomShare       string
	EncryptedPayload  string
	EncryptedMetadata string
	Phone             string
}

// World is the shared backend state of the fakes.
type World struct {
	mu         sync.Mutex
	accounts   map[string]*Account // by email
	phones     map[string]string   // normalized phone to email
	pending    map[string]string   // normalized phone to ETH address awaiting confirmation
	identities map[onboarding.SocialProvider]string
	failures   map[string][]error
	otp        string
	calls      map[string]*atomic.Int64
}

// NewWorld returns an empty world.
func NewWorld() *World {
	w := &World{
		accounts:   make(map[string]*Account),
		phones:     make(map[string]string),
		pending:    make(map[string]string),
		identities: make(map[onboarding.SocialProvider]string),
		failures:   make(map[string][]error),
		otp:        DefaultOTP,
		calls:      make(map[string]*atomic.Int64, len(ops)),
	}

	for _, op := range ops {
		w.calls[op] = atomic.NewInt64(0)
	}

	return w
}

// SignInAs makes Auth return email for provider.
func (w *World) SignInAs(provider onboarding.SocialProvider, email string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.identities[provider] = sanitize.Email(email)
}

// SetOTP changes the code accepted by the gateway.
func (w *World) SetOTP(otp string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.otp = otp
}

// Fail queues err as the result of the next call to op. Queued errors are
// consumed in order.
func (w *World) Fail(op string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.failures[op] = append(w.failures[op], err)
}

// Calls returns how often op was invoked.
func (w *World) Calls(op string) int64 {
	c, ok := w.calls[op]
	if !ok {
		return 0
	}

	return c.Load()
}

// AddWallet registers a wallet with fresh shares. When phone is not empty it
// is bound to the wallet as if the create flow had finished.
func (w *World) AddWallet(provider onboarding.SocialProvider, email, seedPhrase, phone string) Account {
	email = sanitize.Email(email)
	keys := Keys{}

	acct := &Account{
		Email:            email,
		Provider:         provider,
		SeedPhrase:       seedPhrase,
		ETHAddress:       ethAddress(seedPhrase),
		DeviceShare:      "device:" + uuid.NewString(),
		CustomShare:      "custom:" + uuid.NewString(),
		EncryptedPayload: "payload:" + hashing.Fingerprint(seedPhrase),
		Phone:            sanitize.Phone(phone),
	}

	acct.EncryptedMetadata, _ = keys.EncryptMetadata(context.Background(), seedPhrase, onboarding.WalletMetadata{
		ETHPublic:    acct.ETHAddress,
		Email:        email,
		AuthProvider: string(provider),
		PhoneNumber:  acct.Phone,
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	w.accounts[email] = acct
	if acct.Phone != "" {
		w.phones[acct.Phone] = email
	}

	return *acct
}

// Account returns a copy of the wallet registered for email.
func (w *World) Account(email string) (Account, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	acct, ok := w.accounts[sanitize.Email(email)]
	if !ok {
		return Account{}, false
	}

	return *acct, true
}

// enter counts a call to op and pops a queued failure, if any.
func (w *World) enter(ctx context.Context, op string) error {
	w.calls[op].Inc()

	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	queue := w.failures[op]
	if len(queue) == 0 {
		return nil
	}

	err := queue[0]
	w.failures[op] = queue[1:]

	return err
}

func ethAddress(seedPhrase string) string {
	return "0x" + hashing.Fingerprint("eth:"+seedPhrase)
}

// Auth is a fake social sign-in.
type Auth struct{ World *World }

func (a Auth) Auth(ctx context.Context, provider onboarding.SocialProvider) (string, string, error) {
	if err := a.World.enter(ctx, OpAuth); err != nil {
		return "", "", err
	}

	a.World.mu.Lock()
	email, ok := a.World.identities[provider]
	a.World.mu.Unlock()

	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrNotSignedIn, provider)
	}

	return "token:" + email, email, nil
}

// TKey is a fake key network facade.
type TKey struct{ World *World }

func (k TKey) Initialize(ctx context.Context) error {
	return k.World.enter(ctx, OpInitialize)
}

func (k TKey) ObtainTorusKey(ctx context.Context, tokenID onboarding.TokenID) (onboarding.TorusKey, error) {
	if err := k.World.enter(ctx, OpObtainTorusKey); err != nil {
		return onboarding.TorusKey{}, err
	}

	email, ok := strings.CutPrefix(tokenID.Value, "token:")
	if !ok || email == "" {
		return onboarding.TorusKey{}, &onboarding.TKeyError{Code: 1001, Message: "malformed token"}
	}

	return onboarding.TorusKey{TokenID: tokenID, Value: "torus:" + email}, nil
}

func (k TKey) SignInWithDeviceShare(
	ctx context.Context, torusKey onboarding.TorusKey, deviceShare string,
) (onboarding.SignInResult, error) {
	if err := k.World.enter(ctx, OpSignInDevice); err != nil {
		return onboarding.SignInResult{}, err
	}

	acct, err := k.account(torusKey)
	if err != nil {
		return onboarding.SignInResult{}, err
	}

	if acct.DeviceShare != deviceShare {
		return onboarding.SignInResult{}, deviceNotFound()
	}

	return signIn(acct), nil
}

func (k TKey) SignInWithCustomShare(
	ctx context.Context, torusKey onboarding.TorusKey, customShare, _ string,
) (onboarding.SignInResult, error) {
	if err := k.World.enter(ctx, OpSignInCustom); err != nil {
		return onboarding.SignInResult{}, err
	}

	acct, err := k.account(torusKey)
	if err != nil {
		return onboarding.SignInResult{}, err
	}

	if acct.CustomShare != customShare {
		return onboarding.SignInResult{}, deviceNotFound()
	}

	return signIn(acct), nil
}

func (k TKey) SignInWithDeviceAndCustomShare(
	ctx context.Context, deviceShare, customShare, _ string,
) (onboarding.SignInResult, error) {
	if err := k.World.enter(ctx, OpSignInDeviceAndCustom); err != nil {
		return onboarding.SignInResult{}, err
	}

	k.World.mu.Lock()
	defer k.World.mu.Unlock()

	for _, acct := range k.World.accounts {
		if acct.DeviceShare == deviceShare && acct.CustomShare == customShare {
			return signIn(*acct), nil
		}
	}

	return onboarding.SignInResult{}, deviceNotFound()
}

func (k TKey) SignUp(
	ctx context.Context, torusKey onboarding.TorusKey, privateInput string,
) (onboarding.SignUpResult, error) {
	if err := k.World.enter(ctx, OpSignUp); err != nil {
		return onboarding.SignUpResult{}, err
	}

	email := strings.TrimPrefix(torusKey.Value, "torus:")

	k.World.mu.Lock()
	defer k.World.mu.Unlock()

	if _, exists := k.World.accounts[email]; exists {
		return onboarding.SignUpResult{}, deviceNotFound()
	}

	acct := &Account{
		Email:            email,
		Provider:         onboarding.SocialProvider(torusKey.TokenID.Provider),
		SeedPhrase:       privateInput,
		ETHAddress:       ethAddress(privateInput),
		DeviceShare:      "device:" + uuid.NewString(),
		CustomShare:      "custom:" + uuid.NewString(),
		EncryptedPayload: "payload:" + hashing.Fingerprint(privateInput),
	}
	k.World.accounts[email] = acct

	return onboarding.SignUpResult{
		PrivateSOL:       acct.SeedPhrase,
		ReconstructedETH: acct.ETHAddress,
		DeviceShare:      acct.DeviceShare,
		CustomShare:      acct.CustomShare,
		Metadata:         acct.EncryptedPayload,
	}, nil
}

func (k TKey) account(torusKey onboarding.TorusKey) (Account, error) {
	email := strings.TrimPrefix(torusKey.Value, "torus:")

	k.World.mu.Lock()
	defer k.World.mu.Unlock()

	acct, ok := k.World.accounts[email]
	if !ok {
		return Account{}, &onboarding.TKeyError{
			Code:    onboarding.TKeySocialShareNotFound,
			Message: "social share not found",
		}
	}

	return *acct, nil
}

func deviceNotFound() error {
	return &onboarding.TKeyError{Code: onboarding.TKeyDeviceShareNotFound, Message: "device share not found"}
}

func signIn(acct Account) onboarding.SignInResult {
	return onboarding.SignInResult{PrivateSOL: acct.SeedPhrase, ReconstructedETH: acct.ETHAddress}
}

// Gateway is a fake API gateway. Phones are compared after normalization.
type Gateway struct{ World *World }

func (g Gateway) RestoreWallet(
	ctx context.Context, _ []byte, phone string, _ onboarding.Channel, _ time.Time,
) error {
	if err := g.World.enter(ctx, OpRestoreWallet); err != nil {
		return err
	}

	g.World.mu.Lock()
	defer g.World.mu.Unlock()

	if _, ok := g.World.phones[sanitize.Phone(phone)]; !ok {
		return &onboarding.APIGatewayError{Code: onboarding.CodeWrongPhoneNumber, Message: "unknown phone"}
	}

	return nil
}

func (g Gateway) ConfirmRestoreWallet(
	ctx context.Context, _ []byte, phone, otp string, _ time.Time,
) (onboarding.RestoreWalletResult, error) {
	if err := g.World.enter(ctx, OpConfirmRestoreWallet); err != nil {
		return onboarding.RestoreWalletResult{}, err
	}

	g.World.mu.Lock()
	defer g.World.mu.Unlock()

	if otp != g.World.otp {
		return onboarding.RestoreWalletResult{}, &onboarding.APIGatewayError{
			Code: onboarding.CodeInvalidOTP, Message: "invalid otp",
		}
	}

	email, ok := g.World.phones[sanitize.Phone(phone)]
	if !ok {
		return onboarding.RestoreWalletResult{}, &onboarding.APIGatewayError{
			Code: onboarding.CodeWrongPhoneNumber, Message: "unknown phone",
		}
	}

	acct := g.World.accounts[email]

	return onboarding.RestoreWalletResult{
		EncryptedShare:    acct.CustomShare,
		EncryptedPayload:  acct.EncryptedPayload,
		EncryptedMetadata: acct.EncryptedMetadata,
	}, nil
}

func (g Gateway) RegisterWallet(ctx context.Context, req onboarding.RegisterWalletRequest) error {
	if err := g.World.enter(ctx, OpRegisterWallet); err != nil {
		return err
	}

	phone := sanitize.Phone(req.Phone)
	if phone == "" {
		return &onboarding.APIGatewayError{Code: onboarding.CodeInvalidParams, Message: "empty phone"}
	}

	g.World.mu.Lock()
	defer g.World.mu.Unlock()

	g.World.pending[phone] = req.ETHAddress

	return nil
}

func (g Gateway) ConfirmRegisterWallet(ctx context.Context, req onboarding.ConfirmRegisterWalletRequest) error {
	if err := g.World.enter(ctx, OpConfirmRegisterWallet); err != nil {
		return err
	}

	phone := sanitize.Phone(req.Phone)

	g.World.mu.Lock()
	defer g.World.mu.Unlock()

	if req.OTP != g.World.otp {
		return &onboarding.APIGatewayError{Code: onboarding.CodeInvalidOTP, Message: "invalid otp"}
	}

	if g.World.pending[phone] != req.ETHAddress {
		return &onboarding.APIGatewayError{Code: onboarding.CodeInvalidRequest, Message: "no pending registration"}
	}

	delete(g.World.pending, phone)

	for email, acct := range g.World.accounts {
		if acct.ETHAddress != req.ETHAddress {
			continue
		}

		acct.Phone = phone
		acct.CustomShare = req.Share
		acct.EncryptedPayload = req.EncryptedPayload
		acct.EncryptedMetadata = req.EncryptedMetadata
		g.World.phones[phone] = email

		return nil
	}

	return &onboarding.APIGatewayError{Code: onboarding.CodeInvalidRequest, Message: "unknown wallet"}
}
