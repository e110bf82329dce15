// Package logger configures log/slog for flowkit binaries and carries log
// attributes (subsystem, flow, machine id) through context.Context so that
// deep call sites such as transition functions log with the right labels.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/keyapp-labs/flowkit/envutil"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Default subsystem name, set by ConfigureLogging.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes ConfigureLoggingWithOptions, which replaces global state.
var configMutex sync.Mutex //nolint:gochecknoglobals

type contextKey string

const (
	muteKey      contextKey = "mute"
	subsystemKey contextKey = "subsystem"
	valuesKey    contextKey = "loggerValues"
)

// Options is used to configure logging.
type Options struct {
	Subsystem   string
	JSON        bool
	MinLevel    slog.Level
	LegacyLevel slog.Level
	Output      io.Writer

	// Extra receives every record in addition to the primary handler,
	// e.g. an OpenTelemetry log bridge.
	Extra []slog.Handler
}

// ConfigureLoggingWithOptions installs the default slog logger and redirects
// the legacy log package into it. It returns the new default logger.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var handler slog.Handler

	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	} else {
		handler = slog.NewTextHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	}

	if len(opts.Extra) > 0 {
		handler = slogmulti.Fanout(append([]slog.Handler{handler}, opts.Extra...)...)
	}

	logger := slog.New(handler)

	slog.SetDefault(logger)

	// Third party packages may still use the log package.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

// Option is a functional option for ConfigureLogging.
type Option func(*Options)

// WithExtraHandler adds a handler that receives every record.
func WithExtraHandler(h slog.Handler) Option {
	return func(o *Options) {
		if h != nil {
			o.Extra = append(o.Extra, h)
		}
	}
}

const (
	defaultLogFileMaxMB = 10
	logFileBackups      = 3
)

// ErrInvalidLogOutput is returned when an invalid log output destination is specified.
var ErrInvalidLogOutput = errors.New("invalid log output")

// ConfigureLogging configures logging from LOG_JSON, LOG_LEVEL, LEGACY_LOG_LEVEL
// and LOG_OUTPUT (stdout or stderr). LOG_FILE sends logs to a file rotated
// every LOG_FILE_MAX_MB megabytes instead.
func ConfigureLogging(app string, opts ...Option) (*slog.Logger, error) {
	logJSON, err := envutil.Bool("LOG_JSON", envutil.Default(false)).Value()
	if err != nil {
		return nil, err
	}

	minLevel, err := envutil.SlogLevel("LOG_LEVEL", envutil.Default(slog.LevelInfo)).Value()
	if err != nil {
		return nil, err
	}

	legacyLevel, err := envutil.SlogLevel("LEGACY_LOG_LEVEL", envutil.Default(slog.LevelInfo)).Value()
	if err != nil {
		return nil, err
	}

	output, err := envutil.Map(envutil.String("LOG_OUTPUT", envutil.Default("stdout")),
		func(outName string) (io.Writer, error) {
			switch outName {
			case "stdout":
				return os.Stdout, nil
			case "stderr":
				return os.Stderr, nil
			default:
				return nil, fmt.Errorf("%w: %q", ErrInvalidLogOutput, outName)
			}
		}).Value()
	if err != nil {
		return nil, err
	}

	logFile, err := envutil.String("LOG_FILE", envutil.Default("")).Value()
	if err != nil {
		return nil, err
	}

	if logFile != "" {
		maxSize, err := envutil.Int("LOG_FILE_MAX_MB", envutil.Default(defaultLogFileMaxMB)).Value()
		if err != nil {
			return nil, err
		}

		output = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    maxSize,
			MaxBackups: logFileBackups,
			Compress:   true,
		}
	}

	options := Options{
		Subsystem:   app,
		JSON:        logJSON,
		MinLevel:    minLevel,
		LegacyLevel: legacyLevel,
		Output:      output,
	}

	for _, o := range opts {
		o(&options)
	}

	return ConfigureLoggingWithOptions(options), nil
}

// WithMuted suppresses all logging done through Get on the returned context.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, muteKey, muted)
}

func isMuted(ctx context.Context) bool {
	muted, ok := ctx.Value(muteKey).(bool)

	return ok && muted
}

// WithSubsystem overrides the subsystem label for logs and metrics.
func WithSubsystem(ctx context.Context, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, subsystemKey, name)
}

// GetSubsystem returns the subsystem from the context, falling back to the
// value set by ConfigureLogging.
func GetSubsystem(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	if val, ok := ctx.Value(subsystemKey).(string); ok {
		return val
	}

	if val, ok := subsystem.Load().(string); ok {
		return val
	}

	return ""
}

// With returns a new context whose logger carries the given key-value pairs.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	existing := getValues(ctx)
	vals := make([]any, 0, len(existing)+len(values))
	vals = append(vals, existing...)
	vals = append(vals, values...)

	return context.WithValue(ctx, valuesKey, vals)
}

func getValues(ctx context.Context) []any {
	vals, _ := ctx.Value(valuesKey).([]any)

	return vals
}

var nullLogger = slog.New(slog.DiscardHandler) //nolint:gochecknoglobals

// Get returns a logger decorated with whatever the context carries.
// Passing no context (or nil) yields the default logger with the subsystem.
//
//nolint:contextcheck
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := context.Background()

	for _, c := range ctx {
		if c != nil {
			realCtx = c

			break
		}
	}

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default().With("subsystem", GetSubsystem(realCtx))

	if vals := getValues(realCtx); len(vals) > 0 {
		logger = logger.With(vals...)
	}

	return logger
}
