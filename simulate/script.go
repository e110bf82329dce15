// Package simulate runs onboarding flows from YAML scripts against one
// shared set of in-memory collaborators.
package simulate

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
	"github.com/keyapp-labs/flowkit/onboarding"
	"gopkg.in/yaml.v3"
)

// Flow names accepted in scripts.
const (
	FlowRestore = "restore"
	FlowCreate  = "create"
)

var (
	ErrUnknownFlow  = errors.New("unknown flow")
	ErrUnknownEvent = errors.New("unknown event")
	ErrMissingArg   = errors.New("missing argument")
	ErrBadArg       = errors.New("bad argument")
	ErrWrongState   = errors.New("event does not fit the current state")
	ErrUnexpected   = errors.New("unexpected final state")
)

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals

// Suite is one scripts file: shared setup followed by the scripts.
type Suite struct {
	// Wallets exist before any script runs.
	Wallets []Wallet `yaml:"wallets" validate:"dive"`
	// Identities maps a social provider to the email its sign-in returns.
	Identities map[string]string `yaml:"identities" validate:"dive,email"`
	// Backups are the platform keychain accounts.
	Backups []Backup `yaml:"backups" validate:"dive"`
	Scripts []Script `yaml:"scripts" validate:"dive"`
}

// Wallet is a pre-existing account.
type Wallet struct {
	Provider string `yaml:"provider" validate:"required"`
	Email    string `yaml:"email"    validate:"required,email"`
	Seed     string `yaml:"seed"     validate:"required"`
	Phone    string `yaml:"phone"    validate:"omitempty,e164"`
}

// Backup is a keychain account.
type Backup struct {
	Name   string `yaml:"name"   validate:"required"`
	Phrase string `yaml:"phrase" validate:"required"`
	Path   string `yaml:"path"`
}

// Script drives one flow instance.
type Script struct {
	Name string `yaml:"name" validate:"required"`
	Flow string `yaml:"flow"`
	// DeviceShareOf puts that account's device share on the simulated device.
	DeviceShareOf string `yaml:"deviceShareOf,omitempty"`
	Steps         []Step `yaml:"steps"                   validate:"required,dive"`
	// Expect is the required final state name, if set.
	Expect string `yaml:"expect,omitempty"`
}

// Step is one event, written as "<child>.<event>" or a top-level event name.
type Step struct {
	Event string            `yaml:"event"          validate:"required"`
	Args  map[string]string `yaml:"args,omitempty"`
}

// Parse decodes and validates a suite.
func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var suite Suite
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("decoding suite: %w", err)
	}

	if err := suite.validate(); err != nil {
		return nil, err
	}

	return &suite, nil
}

// Load reads and parses the suite at path.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

func (s *Suite) validate() error {
	for provider := range s.Identities {
		if _, err := onboarding.ParseSocialProvider(provider); err != nil {
			return fmt.Errorf("identities: %w", err)
		}
	}

	for i, w := range s.Wallets {
		if _, err := onboarding.ParseSocialProvider(w.Provider); err != nil {
			return fmt.Errorf("wallet %d: %w", i, err)
		}
	}

	for i, b := range s.Backups {
		if !onboarding.DerivablePath(b.Path).Valid() {
			return fmt.Errorf("backup %d: %w: path %q", i, ErrBadArg, b.Path)
		}
	}

	for i, sc := range s.Scripts {
		if sc.Flow != FlowRestore && sc.Flow != FlowCreate {
			return fmt.Errorf("script %d (%s): %w: %q", i, sc.Name, ErrUnknownFlow, sc.Flow)
		}
	}

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validating suite: %w", err)
	}

	return nil
}
