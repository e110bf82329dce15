package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/keyapp-labs/flowkit/bgworker"
	"github.com/keyapp-labs/flowkit/hashing"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/onboarding"
	"github.com/keyapp-labs/flowkit/onboarding/create"
	"github.com/keyapp-labs/flowkit/onboarding/fake"
	"github.com/keyapp-labs/flowkit/onboarding/restore"
	"github.com/keyapp-labs/flowkit/optional"
	"github.com/keyapp-labs/flowkit/statemachine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scriptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
	Name: "simulate_scripts_total",
	Help: "Simulated flow scripts by flow and outcome.",
}, []string{"flow", "outcome"})

// Outcome is how one script ended.
type Outcome struct {
	Script   string
	Flow     string
	Final    string
	Progress float64
	Steps    int
	Took     time.Duration
	Err      error
}

// OK reports whether the script ran every step and met its expectation.
func (o Outcome) OK() bool { return o.Err == nil }

// StepError locates a failing step.
type StepError struct {
	Index int
	Event string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Event, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Env is the collaborator world every script runs against.
type Env struct {
	World      *fake.World
	Backups    []onboarding.ICloudAccount
	Biometry   *fake.Biometry
	Clock      onboarding.Clock
	DeviceName string
}

// NewEnv builds an Env and applies the suite's setup to it.
func NewEnv(suite *Suite, clock onboarding.Clock) (*Env, error) {
	env := &Env{
		World:      fake.NewWorld(),
		Biometry:   &fake.Biometry{},
		Clock:      clock,
		DeviceName: "flowsim",
	}

	for _, w := range suite.Wallets {
		provider, err := onboarding.ParseSocialProvider(w.Provider)
		if err != nil {
			return nil, err
		}

		env.World.AddWallet(provider, w.Email, w.Seed, w.Phone)
	}

	for name, email := range suite.Identities {
		provider, err := onboarding.ParseSocialProvider(name)
		if err != nil {
			return nil, err
		}

		env.World.SignInAs(provider, email)
	}

	for _, b := range suite.Backups {
		env.Backups = append(env.Backups, onboarding.ICloudAccount{
			Name: b.Name, Phrase: b.Phrase, DerivablePath: onboarding.DerivablePath(b.Path),
		})
	}

	return env, nil
}

// RestoreContainer wires a restore flow to the env. The device holds the
// device share of deviceShareOf's wallet when that account exists.
func (e *Env) RestoreContainer(deviceShareOf string) restore.Container {
	c := restore.Container{
		TKey:       fake.TKey{World: e.World},
		APIGateway: fake.Gateway{World: e.World},
		Auth:       fake.Auth{World: e.World},
		Keys:       fake.Keys{World: e.World},
		ICloud:     fake.Keychain{Backups: e.Backups},
		Biometry:   e.Biometry,
		Clock:      e.Clock,
	}

	if deviceShareOf != "" {
		if acct, ok := e.World.Account(deviceShareOf); ok {
			c.DeviceShare = optional.Some(acct.DeviceShare)
		}
	}

	return c
}

// CreateContainer wires a create flow to the env.
func (e *Env) CreateContainer() create.Container {
	return create.Container{
		Auth:       fake.Auth{World: e.World},
		APIGateway: fake.Gateway{World: e.World},
		TKey:       fake.TKey{World: e.World},
		Keys:       fake.Keys{World: e.World},
		Biometry:   e.Biometry,
		DeviceName: e.DeviceName,
		Clock:      e.Clock,
	}
}

// Run drives one script to its end on a fresh machine.
func (e *Env) Run(ctx context.Context, s Script) Outcome {
	ctx = logger.With(ctx, "script", s.Name, "flow", s.Flow)
	started := time.Now()

	var out Outcome

	switch s.Flow {
	case FlowRestore:
		m := restore.New(ctx, e.RestoreContainer(s.DeviceShareOf))
		defer m.Close()

		out = drive(ctx, m, s.Steps, restoreEvent)
	case FlowCreate:
		m := create.New(ctx, e.CreateContainer())
		defer m.Close()

		out = drive(ctx, m, s.Steps, createEvent)
	default:
		out.Err = fmt.Errorf("%w: %q", ErrUnknownFlow, s.Flow)
	}

	out.Script = s.Name
	out.Flow = s.Flow
	out.Took = time.Since(started)

	if out.Err == nil && s.Expect != "" && out.Final != s.Expect {
		out.Err = fmt.Errorf("%w: got %s, want %s", ErrUnexpected, out.Final, s.Expect)
	}

	outcome := "ok"
	if out.Err != nil {
		outcome = "failed"
	}

	scriptsTotal.WithLabelValues(s.Flow, outcome).Inc()

	logger.Get(ctx).Info("script finished",
		"final", out.Final, "progress", out.Progress, "steps", out.Steps,
		"device", hashing.Redact(s.DeviceShareOf), "error", out.Err)

	return out
}

type flowState interface {
	Name() string
	Step() float64
}

func drive[S flowState, E, P any](
	ctx context.Context,
	m *statemachine.Machine[S, E, P],
	steps []Step,
	build func(S, Step) (E, error),
) Outcome {
	var out Outcome

	state := m.Current()

	for i, step := range steps {
		event, err := build(state, step)
		if err == nil {
			state, err = m.Accept(ctx, event)
		}

		if err != nil {
			out.Err = &StepError{Index: i, Event: step.Event, Err: err}

			break
		}

		out.Steps++
	}

	out.Final = state.Name()
	out.Progress = state.Step()

	return out
}

// RunAll runs every script of the suite on pool and returns the outcomes in
// script order.
func (e *Env) RunAll(ctx context.Context, pool *bgworker.Pool, scripts []Script) []Outcome {
	outcomes := make([]Outcome, len(scripts))
	waits := make([]func() error, len(scripts))

	for i, s := range scripts {
		task := pool.Submit(ctx, func(ctx context.Context) error {
			outcomes[i] = e.Run(ctx, s)

			return nil
		})
		waits[i] = task.Wait
	}

	for i, wait := range waits {
		if err := wait(); err != nil {
			outcomes[i] = Outcome{Script: scripts[i].Name, Flow: scripts[i].Flow, Err: err}
		}
	}

	return outcomes
}
