package fake

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/keyapp-labs/flowkit/hashing"
	"github.com/keyapp-labs/flowkit/onboarding"
	"go.uber.org/atomic"
)

// ErrWrongSeed is returned when metadata is decrypted with another wallet's phrase.
var ErrWrongSeed = errors.New("metadata encrypted for another seed phrase")

var words = []string{
	"anchor", "breeze", "cactus", "dune", "ember", "fable", "glacier", "harbor",
	"island", "jungle", "kettle", "lantern", "meadow", "nectar", "orbit", "pebble",
}

// Keys is a deterministic fake key service. World may be nil, in which case
// no failures can be injected.
type Keys struct{ World *World }

func (k Keys) enter(ctx context.Context, op string) error {
	if k.World == nil {
		return ctx.Err()
	}

	return k.World.enter(ctx, op)
}

func (k Keys) NewSecretKey(ctx context.Context) ([]byte, error) {
	if err := k.enter(ctx, OpNewSecretKey); err != nil {
		return nil, err
	}

	id := uuid.New()

	return id[:], nil
}

func (k Keys) SecretKeyFromPhrase(ctx context.Context, phrase string, path onboarding.DerivablePath) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return []byte(hashing.Fingerprint(phrase + "|" + string(path))), nil
}

// NewMnemonic returns twelve words picked from a fresh UUID.
func (k Keys) NewMnemonic(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.New()
	phrase := make([]string, 12)

	for i := range phrase {
		phrase[i] = words[int(id[i])%len(words)]
	}

	return strings.Join(phrase, " "), nil
}

func (k Keys) EncryptMetadata(
	ctx context.Context, seedPhrase string, metadata onboarding.WalletMetadata,
) (string, error) {
	if err := k.enter(ctx, OpEncryptMetadata); err != nil {
		return "", err
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}

	return hashing.Fingerprint(seedPhrase) + ":" + base64.StdEncoding.EncodeToString(raw), nil
}

func (k Keys) DecryptMetadata(ctx context.Context, seedPhrase, encrypted string) (onboarding.WalletMetadata, error) {
	if err := k.enter(ctx, OpDecryptMetadata); err != nil {
		return onboarding.WalletMetadata{}, err
	}

	fp, body, ok := strings.Cut(encrypted, ":")
	if !ok || fp != hashing.Fingerprint(seedPhrase) {
		return onboarding.WalletMetadata{}, ErrWrongSeed
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return onboarding.WalletMetadata{}, err
	}

	var md onboarding.WalletMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return onboarding.WalletMetadata{}, err
	}

	return md, nil
}

// Keychain lists a fixed set of backed-up accounts.
type Keychain struct {
	Backups []onboarding.ICloudAccount
	Err     error
}

func (k Keychain) Accounts(ctx context.Context) ([]onboarding.ICloudAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return k.Backups, k.Err
}

// Biometry is a fake biometric unlock.
type Biometry struct {
	Unavailable bool
	EnrollErr   error
	enrolled    atomic.Int64
}

func (b *Biometry) Available(context.Context) bool {
	return !b.Unavailable
}

func (b *Biometry) Enroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if b.EnrollErr != nil {
		return b.EnrollErr
	}

	b.enrolled.Inc()

	return nil
}

// Enrolled returns how many times Enroll succeeded.
func (b *Biometry) Enrolled() int64 {
	return b.enrolled.Load()
}
