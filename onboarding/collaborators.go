package onboarding

import (
	"context"
	"time"
)

// TKeyFacade reconstructs and creates wallets from key shares.
// Failures with a share lookup code are returned as *TKeyError.
type TKeyFacade interface {
	Initialize(ctx context.Context) error
	ObtainTorusKey(ctx context.Context, tokenID TokenID) (TorusKey, error)
	SignInWithDeviceShare(ctx context.Context, torusKey TorusKey, deviceShare string) (SignInResult, error)
	SignInWithCustomShare(
		ctx context.Context, torusKey TorusKey, customShare, encryptedMnemonic string,
	) (SignInResult, error)
	SignInWithDeviceAndCustomShare(
		ctx context.Context, deviceShare, customShare, encryptedMnemonic string,
	) (SignInResult, error)
	SignUp(ctx context.Context, torusKey TorusKey, privateInput string) (SignUpResult, error)
}

// SocialAuthService signs the user in with a social provider and returns the
// identity token and the account email.
type SocialAuthService interface {
	Auth(ctx context.Context, provider SocialProvider) (token, email string, err error)
}

// RegisterWalletRequest starts phone binding for a new wallet.
type RegisterWalletRequest struct {
	SolanaPrivateKey []byte
	ETHAddress       string
	Phone            string
	Channel          Channel
	Timestamp        time.Time
}

// ConfirmRegisterWalletRequest completes phone binding with the OTP.
type ConfirmRegisterWalletRequest struct {
	SolanaPrivateKey  []byte
	ETHAddress        string
	Share             string
	EncryptedPayload  string
	EncryptedMetadata string
	Phone             string
	OTP               string
	Timestamp         time.Time
}

// APIGatewayClient talks to the phone-binding backend. Protocol failures are
// *APIGatewayError, rate limiting is *CooldownError.
type APIGatewayClient interface {
	RestoreWallet(ctx context.Context, solPrivateKey []byte, phone string, channel Channel, ts time.Time) error
	ConfirmRestoreWallet(
		ctx context.Context, solPrivateKey []byte, phone, otp string, ts time.Time,
	) (RestoreWalletResult, error)
	RegisterWallet(ctx context.Context, req RegisterWalletRequest) error
	ConfirmRegisterWallet(ctx context.Context, req ConfirmRegisterWalletRequest) error
}

// ICloudAccountProvider lists wallets backed up to the platform keychain.
type ICloudAccountProvider interface {
	Accounts(ctx context.Context) ([]ICloudAccount, error)
}

// KeyService covers the key and metadata operations the flows need.
type KeyService interface {
	NewSecretKey(ctx context.Context) ([]byte, error)
	SecretKeyFromPhrase(ctx context.Context, phrase string, path DerivablePath) ([]byte, error)
	NewMnemonic(ctx context.Context) (string, error)
	EncryptMetadata(ctx context.Context, seedPhrase string, metadata WalletMetadata) (string, error)
	DecryptMetadata(ctx context.Context, seedPhrase, encrypted string) (WalletMetadata, error)
}

// Biometry enables biometric unlock on the device.
type Biometry interface {
	Available(ctx context.Context) bool
	Enroll(ctx context.Context) error
}
