// Package startup prepares the process environment before a command reads its
// configuration. Files named in ENV_FILE are loaded into the environment so
// local runs of keyflow and flowsim can keep their settings in .env files.
package startup

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/keyapp-labs/flowkit/envutil"
)

// Option is a functional option for configuring environment loading behavior.
type Option func(*options)

type options struct {
	allowOverride bool
}

// WithAllowOverride lets values from files replace variables that are
// already set. By default the existing environment wins.
func WithAllowOverride(allowOverride bool) Option {
	return func(o *options) {
		o.allowOverride = allowOverride
	}
}

// ConfigureEnvironment loads the semicolon-separated files listed in
// ENV_FILE, e.g. ENV_FILE="/path/to/.env;/path/to/.env.local". Later files
// win over earlier ones. Nothing happens when ENV_FILE is unset.
func ConfigureEnvironment(opts ...Option) error {
	files := envutil.Map(envutil.String("ENV_FILE"), func(s string) ([]string, error) {
		return splitFiles(s), nil
	}).ValueOrElse(nil)

	return ConfigureEnvironmentFromFiles(files, opts...)
}

// ConfigureEnvironmentFromFiles loads envFiles like ConfigureEnvironment.
func ConfigureEnvironmentFromFiles(envFiles []string, opts ...Option) error {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	loaded := make(map[string]string)

	for _, file := range envFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			return fmt.Errorf("loading environment variables from file %q: %w", file, err)
		}

		for k, v := range values {
			loaded[k] = v
		}
	}

	for k, v := range loaded {
		old, exists := os.LookupEnv(k)
		if exists && (!cfg.allowOverride || old == v) {
			continue
		}

		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("setting environment variable %q: %w", k, err)
		}
	}

	return nil
}

func splitFiles(s string) []string {
	var files []string

	for _, f := range strings.Split(s, ";") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}

	return files
}
