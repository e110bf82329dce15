// Command keyflow walks through the onboarding flows in the terminal against
// a simulated key network and API gateway.
//
// The world comes from KEYFLOW_SUITE (a flowsim suite file) or a built-in
// demo. KEYFLOW_DEVICE_SHARE names the account whose device share this device
// holds, and KEYFLOW_VERBOSE enables transition logs. Set LOG_FILE to keep them
// out of the terminal.
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/keyapp-labs/flowkit/build"
	"github.com/keyapp-labs/flowkit/cli"
	"github.com/keyapp-labs/flowkit/coordinator"
	"github.com/keyapp-labs/flowkit/envutil"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/create"
	"github.com/keyapp-labs/flowkit/onboarding/fake"
	"github.com/keyapp-labs/flowkit/onboarding/restore"
	"github.com/keyapp-labs/flowkit/shutdown"
	"github.com/keyapp-labs/flowkit/simulate"
	"github.com/keyapp-labs/flowkit/startup"
	"github.com/manifoldco/promptui"
)

//go:embed demo.yaml
var demo []byte

func main() {
	ctx := shutdown.SetupHandler(context.Background())
	ctx = logger.WithSubsystem(ctx, "keyflow")

	if err := configure(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "keyflow:", err)
		os.Exit(1)
	}

	err := run(ctx)

	if hookErr := shutdown.Run(context.Background()); hookErr != nil {
		slog.Error("shutdown hooks failed", "error", hookErr)
	}

	switch {
	case err == nil, errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
	case errors.Is(err, context.Canceled):
		os.Exit(130) //nolint:mnd
	default:
		fmt.Fprintln(os.Stderr, "keyflow:", err)
		os.Exit(1)
	}
}

func configure(ctx context.Context) error {
	if err := startup.ConfigureEnvironment(); err != nil {
		return err
	}

	if _, err := logger.ConfigureLogging("keyflow"); err != nil {
		return err
	}

	logger.Get(ctx).Debug("starting keyflow", "build", build.Current())

	return nil
}

func loadSuite() (*simulate.Suite, error) {
	path := envutil.String("KEYFLOW_SUITE", envutil.Default("")).ValueOrElse("")
	if path == "" {
		return simulate.Parse(demo)
	}

	return simulate.Load(path)
}

func run(ctx context.Context) error {
	verbose := envutil.Bool("KEYFLOW_VERBOSE", envutil.Default(false)).ValueOrElse(false)
	ctx = logger.WithMuted(ctx, !verbose)

	suite, err := loadSuite()
	if err != nil {
		return err
	}

	env, err := simulate.NewEnv(suite, onboarding.Clock(nil))
	if err != nil {
		return err
	}

	env.DeviceName = "terminal"
	deviceShareOf := envutil.String("KEYFLOW_DEVICE_SHARE", envutil.Default("ann@example.com")).ValueOrElse("")

	fmt.Print(cli.Banner("keyflow", cli.Width()))
	fmt.Printf("One-time codes are %s.\n", fake.DefaultOTP)

	for {
		flow, err := cli.Choose("What do you want to do?",
			cli.Choice[string]{Label: "Restore a wallet", Value: simulate.FlowRestore},
			cli.Choice[string]{Label: "Create a wallet", Value: simulate.FlowCreate},
			cli.Choice[string]{Label: "Quit", Value: ""},
		)
		if err != nil || flow == "" {
			return err
		}

		switch flow {
		case simulate.FlowRestore:
			err = runRestore(ctx, env.RestoreContainer(deviceShareOf))
		case simulate.FlowCreate:
			err = runCreate(ctx, env.CreateContainer())
		}

		if err != nil {
			return err
		}
	}
}

func runRestore(ctx context.Context, c restore.Container) error {
	m := restore.New(ctx, c)
	defer m.Close()

	total := restore.StageFinished.Progress(0)

	return coordinator.Run(ctx, m, builder(m, total, restoreScreen))
}

func runCreate(ctx context.Context, c create.Container) error {
	m := create.New(ctx, c)
	defer m.Close()

	total := create.StageFinished.Progress(0)

	return coordinator.Run(ctx, m, builder(m, total, createScreen))
}
