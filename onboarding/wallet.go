// Package onboarding holds the types shared by the wallet onboarding flows:
// wallet and key material records, the collaborator interfaces the flows
// call into and the error types those collaborators return.
package onboarding

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SocialProvider is an identity provider used for social sign-in.
type SocialProvider string

const (
	Apple  SocialProvider = "apple"
	Google SocialProvider = "google"
)

// ErrUnknownProvider is returned by ParseSocialProvider.
var ErrUnknownProvider = errors.New("unknown social provider")

// ParseSocialProvider accepts a provider name in any case.
func ParseSocialProvider(s string) (SocialProvider, error) {
	switch p := SocialProvider(strings.ToLower(strings.TrimSpace(s))); p {
	case Apple, Google:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// TokenID is an identity token issued by a social provider.
type TokenID struct {
	Value    string `json:"value"`
	Provider string `json:"provider"`
}

// TorusKey is the key obtained from the key network for a TokenID.
type TorusKey struct {
	TokenID TokenID `json:"tokenId"`
	Value   string  `json:"value"`
}

// DerivablePath selects how accounts are derived from a seed phrase.
type DerivablePath string

const (
	PathBIP44       DerivablePath = "m/44'/501'/0'"
	PathBIP44Change DerivablePath = "m/44'/501'/0'/0'"
	PathDeprecated  DerivablePath = "m/501'/0'/0/0"
)

// DefaultPath is used when a flow does not ask the user.
const DefaultPath = PathBIP44Change

// Valid reports whether p is one of the supported paths.
func (p DerivablePath) Valid() bool {
	switch p {
	case PathBIP44, PathBIP44Change, PathDeprecated:
		return true
	default:
		return false
	}
}

// Wallet is the seed phrase and derivation path a flow ends up with.
type Wallet struct {
	SeedPhrase    string        `json:"seedPhrase"`
	DerivablePath DerivablePath `json:"derivablePath"`
}

// NewWallet returns a wallet on the default derivation path.
func NewWallet(seedPhrase string) Wallet {
	return Wallet{SeedPhrase: seedPhrase, DerivablePath: DefaultPath}
}

// WalletMetadata is the user profile stored encrypted next to the wallet.
type WalletMetadata struct {
	ETHPublic    string `json:"ethPublic"`
	DeviceName   string `json:"deviceName"`
	Email        string `json:"email"`
	AuthProvider string `json:"authProvider"`
	PhoneNumber  string `json:"phoneNumber"`
}

// RestoreSocialData is what a social sign-in produced before the wallet
// could be reconstructed.
type RestoreSocialData struct {
	TorusKey TorusKey `json:"torusKey"`
	Email    string   `json:"email"`
}

// RestoreWalletResult is the custom share material returned by the API
// gateway after a confirmed phone restore.
type RestoreWalletResult struct {
	EncryptedShare    string `json:"encryptedShare"`
	EncryptedPayload  string `json:"encryptedPayload"`
	EncryptedMetadata string `json:"encryptedMetadata"`
}

// SignInResult is a reconstructed wallet.
type SignInResult struct {
	PrivateSOL       string
	ReconstructedETH string
}

// SignUpResult is a freshly created wallet with its shares.
type SignUpResult struct {
	PrivateSOL       string
	ReconstructedETH string
	DeviceShare      string
	CustomShare      string
	Metadata         string
}

// ICloudAccount is a wallet backed up to the platform keychain.
type ICloudAccount struct {
	Name          string        `json:"name"`
	Phrase        string        `json:"phrase"`
	DerivablePath DerivablePath `json:"derivablePath"`
}

// Channel is how an OTP is delivered.
type Channel string

const (
	SMS  Channel = "sms"
	Call Channel = "call"
)

// ResendCounter counts OTP resends for one phone number.
type ResendCounter struct {
	Attempt int `json:"attempt"`
}

// Incremented returns the counter after one more resend.
func (c ResendCounter) Incremented() ResendCounter {
	return ResendCounter{Attempt: c.Attempt + 1}
}

// BlockReason says which step of a phone flow got rate limited.
type BlockReason int

const (
	BlockEnterPhoneNumber BlockReason = iota + 1
	BlockEnterOTP
	BlockResend
)

func (r BlockReason) String() string {
	switch r {
	case BlockEnterPhoneNumber:
		return "enter_phone_number"
	case BlockEnterOTP:
		return "enter_otp"
	case BlockResend:
		return "resend"
	default:
		return "unknown"
	}
}

// Throttle limits how often an action may happen within a window.
// It is a value; Process returns the updated copy.
type Throttle struct {
	MaxAttempts int           `json:"maxAttempts"`
	Window      time.Duration `json:"window"`
	Attempts    int           `json:"attempts"`
	Started     time.Time     `json:"started"`
}

// NewThrottle allows maxAttempts per window.
func NewThrottle(maxAttempts int, window time.Duration) Throttle {
	return Throttle{MaxAttempts: maxAttempts, Window: window}
}

// Process records an attempt at now and reports whether it is allowed.
func (t Throttle) Process(now time.Time) (Throttle, bool) {
	if t.Started.IsZero() || now.Sub(t.Started) > t.Window {
		t.Started = now
		t.Attempts = 0
	}

	t.Attempts++

	return t, t.Attempts <= t.MaxAttempts
}

// Reset forgets all attempts.
func (t Throttle) Reset() Throttle {
	return NewThrottle(t.MaxAttempts, t.Window)
}

// Clock supplies the current time to transitions. The zero value uses time.Now.
type Clock func() time.Time

// Now returns the current time.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}

	return c()
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
