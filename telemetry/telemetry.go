// Package telemetry installs OpenTelemetry tracing and, optionally, OTLP log
// export bridged from slog.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/keyapp-labs/flowkit/build"
	"github.com/keyapp-labs/flowkit/envutil"
	"github.com/keyapp-labs/flowkit/logger"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	defaultTimeout   = 5 * time.Second
	clusterCollector = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	LogsEndpoint   string
	Enabled        bool
	LogsEnabled    bool
	Timeout        time.Duration
}

// LoadConfigFromEnv reads OTEL_ENABLED, OTEL_LOGS_ENABLED, OTEL_SERVICE_NAME,
// OTEL_SERVICE_VERSION, OTEL_EXPORTER_OTLP_TRACES_ENDPOINT,
// OTEL_EXPORTER_OTLP_LOGS_ENDPOINT and OTEL_EXPORTER_OTLP_TIMEOUT. Inside
// Kubernetes the endpoints default to the cluster collector.
func LoadConfigFromEnv(ctx context.Context, runningEnv string) (*Config, error) {
	defaultEndpoint := ""
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		defaultEndpoint = clusterCollector
	}

	enabled, err := envutil.Bool("OTEL_ENABLED", envutil.Default(false)).Value()
	if err != nil {
		return nil, err
	}

	logsEnabled, err := envutil.Bool("OTEL_LOGS_ENABLED", envutil.Default(false)).Value()
	if err != nil {
		return nil, err
	}

	svcName, err := envutil.String("OTEL_SERVICE_NAME", envutil.Default(logger.GetSubsystem(ctx))).Value()
	if err != nil {
		return nil, err
	}

	svcVersion, err := envutil.String("OTEL_SERVICE_VERSION", envutil.Default(build.Current().Version)).Value()
	if err != nil {
		return nil, err
	}

	endpoint, err := envutil.String("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", envutil.Default(defaultEndpoint)).Value()
	if err != nil {
		return nil, err
	}

	logsEndpoint, err := envutil.String("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", envutil.Default(defaultEndpoint)).Value()
	if err != nil {
		return nil, err
	}

	timeout, err := envutil.Duration("OTEL_EXPORTER_OTLP_TIMEOUT", envutil.Default(defaultTimeout)).Value()
	if err != nil {
		return nil, err
	}

	return &Config{
		ServiceName:    svcName,
		ServiceVersion: svcVersion,
		Environment:    runningEnv,
		Endpoint:       endpoint,
		LogsEndpoint:   logsEndpoint,
		Enabled:        enabled,
		LogsEnabled:    logsEnabled,
		Timeout:        timeout,
	}, nil
}

// Providers are the SDK providers Initialize installed. The zero value is
// valid and does nothing.
type Providers struct {
	name   string
	tracer *sdktrace.TracerProvider
	logs   *sdklog.LoggerProvider
}

// Initialize sets up tracing and log export as configured. Missing
// endpoints disable the matching signal with a warning.
func Initialize(ctx context.Context, config *Config) (*Providers, error) {
	p := &Providers{name: config.ServiceName}

	if !config.Enabled {
		logger.Get(ctx).Info("OpenTelemetry is disabled")

		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if config.Endpoint == "" {
		logger.Get(ctx).Warn("OpenTelemetry traces endpoint not configured, tracing will be disabled")
	} else {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(config.Endpoint),
			otlptracehttp.WithTimeout(config.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

		p.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)

		otel.SetTracerProvider(p.tracer)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if config.LogsEnabled {
		if config.LogsEndpoint == "" {
			logger.Get(ctx).Warn("OpenTelemetry logs endpoint not configured, log export will be disabled")
		} else {
			exporter, err := otlploghttp.New(ctx,
				otlploghttp.WithEndpointURL(config.LogsEndpoint),
				otlploghttp.WithTimeout(config.Timeout),
			)
			if err != nil {
				return nil, errors.Join(fmt.Errorf("failed to create OTLP log exporter: %w", err), p.Shutdown(ctx))
			}

			p.logs = sdklog.NewLoggerProvider(
				sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
				sdklog.WithResource(res),
			)
		}
	}

	logger.Get(ctx).Info("OpenTelemetry initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"traces", p.tracer != nil,
		"logs", p.logs != nil,
	)

	return p, nil
}

// LogHandler returns a slog handler exporting records over OTLP, or nil
// when log export is off. Pass it to logger.WithExtraHandler.
func (p *Providers) LogHandler() slog.Handler {
	if p == nil || p.logs == nil {
		return nil
	}

	return otelslog.NewHandler(p.name, otelslog.WithLoggerProvider(p.logs))
}

// Shutdown flushes and stops the installed providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}

	if p.logs != nil {
		errs = append(errs, p.logs.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
