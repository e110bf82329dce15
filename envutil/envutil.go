// Package envutil reads typed configuration out of environment variables.
//
//	level, err := envutil.SlogLevel("LOG_LEVEL", envutil.Default(slog.LevelInfo)).Value()
package envutil

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

func get(key string) Reader[string] {
	val, ok := os.LookupEnv(key)

	return Reader[string]{
		key:     key,
		present: ok,
		value:   val,
	}
}

// NewReader builds a Reader from raw data instead of the process environment.
func NewReader[T any](key string, present bool, err error, value T) Reader[T] {
	return Reader[T]{
		key:     key,
		present: present,
		value:   value,
		err:     err,
	}
}

func apply[T any](rdr Reader[T], opts []Option[T]) Reader[T] {
	for _, opt := range opts {
		rdr = opt(rdr)
	}

	return rdr
}

// String returns a Reader for the given environment variable key.
func String(key string, opts ...Option[string]) Reader[string] {
	return apply(get(key), opts)
}

func Bool(key string, opts ...Option[bool]) Reader[bool] {
	return apply(Map(get(key), func(s string) (bool, error) {
		return strconv.ParseBool(strings.TrimSpace(s))
	}), opts)
}

func Int(key string, opts ...Option[int]) Reader[int] {
	return apply(Map(get(key), func(s string) (int, error) {
		return strconv.Atoi(strings.TrimSpace(s))
	}), opts)
}

// Duration parses values such as "150ms" or "2m".
func Duration(key string, opts ...Option[time.Duration]) Reader[time.Duration] {
	return apply(Map(get(key), func(s string) (time.Duration, error) {
		return time.ParseDuration(strings.TrimSpace(s))
	}), opts)
}

// SlogLevel accepts the names understood by slog.Level.UnmarshalText
// (debug, info, warn, error, optionally with an offset like "info+2").
func SlogLevel(key string, opts ...Option[slog.Level]) Reader[slog.Level] {
	return apply(Map(get(key), func(s string) (slog.Level, error) {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
			return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
		}

		return lvl, nil
	}), opts)
}
