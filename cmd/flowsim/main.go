// Command flowsim runs flow scripts against a simulated key network and API
// gateway and reports how each one ended.
//
//	flowsim suite.yaml [more.yaml ...]
//
// Scripts of a suite run concurrently on FLOW_WORKER_COUNT workers. When
// METRICS_ADDR is set, Prometheus metrics are served there until exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/keyapp-labs/flowkit/bgworker"
	"github.com/keyapp-labs/flowkit/build"
	"github.com/keyapp-labs/flowkit/cli"
	"github.com/keyapp-labs/flowkit/envutil"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/create"
	"github.com/keyapp-labs/flowkit/onboarding/restore"
	"github.com/keyapp-labs/flowkit/shutdown"
	"github.com/keyapp-labs/flowkit/simulate"
	"github.com/keyapp-labs/flowkit/startup"
	"github.com/keyapp-labs/flowkit/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 5 * time.Second

var (
	errUsage         = errors.New("usage: flowsim suite.yaml [more.yaml ...]")
	errScriptsFailed = errors.New("scripts failed")
)

func main() {
	if err := startup.ConfigureEnvironment(); err != nil {
		fmt.Fprintln(os.Stderr, "flowsim:", err)
		os.Exit(1)
	}

	ctx := shutdown.SetupHandler(context.Background())
	ctx = logger.WithSubsystem(ctx, "flowsim")

	err := run(ctx, os.Args[1:])

	if hookErr := shutdown.Run(context.Background()); hookErr != nil {
		slog.Error("shutdown hooks failed", "error", hookErr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "flowsim:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errUsage
	}

	if err := setupObservability(ctx); err != nil {
		return err
	}

	pool := bgworker.FromEnv(ctx)
	failed := 0

	for _, path := range paths {
		suite, err := simulate.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		env, err := simulate.NewEnv(suite, onboarding.Clock(nil))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Print(cli.Banner(path, cli.Width()))

		for _, out := range env.RunAll(logger.With(ctx, "suite", path), pool, suite.Scripts) {
			report(out)

			if !out.OK() {
				failed++
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d", errScriptsFailed, failed)
	}

	return nil
}

func setupObservability(ctx context.Context) error {
	runningEnv := envutil.String("RUNNING_ENV", envutil.Default("local")).ValueOrElse("local")

	cfg, err := telemetry.LoadConfigFromEnv(ctx, runningEnv)
	if err != nil {
		return err
	}

	providers, err := telemetry.Initialize(ctx, cfg)
	if err != nil {
		return err
	}

	shutdown.BeforeShutdown("telemetry", providers.Shutdown)

	if _, err := logger.ConfigureLogging("flowsim", logger.WithExtraHandler(providers.LogHandler())); err != nil {
		return err
	}

	logger.Get(ctx).Info("starting flowsim", "build", build.Current())

	addr, err := envutil.String("METRICS_ADDR", envutil.Default("")).Value()
	if err != nil || addr == "" {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get(ctx).Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	shutdown.BeforeShutdown("metrics", srv.Shutdown)

	return nil
}

func report(out simulate.Outcome) {
	total := restore.StageFinished.Progress(0)
	if out.Flow == simulate.FlowCreate {
		total = create.StageFinished.Progress(0)
	}

	mark := "✓"
	if !out.OK() {
		mark = "✗"
	}

	fmt.Printf("%s %-28s %s %s (%d steps, %s)\n", mark, out.Script,
		cli.ProgressBar(out.Progress/total, 20), out.Final, out.Steps, out.Took.Round(time.Microsecond)) //nolint:mnd

	if out.Err != nil {
		fmt.Printf("    %v\n", out.Err)
	}
}
