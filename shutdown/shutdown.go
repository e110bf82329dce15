// Package shutdown runs registered cleanup hooks when the process is asked
// to stop, either by SIGINT/SIGTERM or programmatically.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/keyapp-labs/flowkit/logger"
)

// Hook releases one resource. The context passed to it is still alive.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Manager owns a list of hooks and the signal handling that runs them.
type Manager struct {
	mu        sync.Mutex
	hooks     []namedHook
	trigger   chan struct{}
	triggered sync.Once
}

// New returns a manager with no hooks.
func New() *Manager {
	return &Manager{trigger: make(chan struct{})}
}

// BeforeShutdown registers fn under name. Hooks run in registration order.
func (m *Manager) BeforeShutdown(name string, fn Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, namedHook{name: name, fn: fn})
}

// Shutdown starts the shutdown programmatically. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.triggered.Do(func() { close(m.trigger) })
}

// SetupHandler returns a context that is canceled once the process gets
// SIGINT or SIGTERM, Shutdown is called, or parent ends. On a signal or
// Shutdown the hooks run before the cancellation.
func (m *Manager) SetupHandler(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer cancel()
		defer signal.Stop(signals)

		select {
		case s := <-signals:
			logger.Get(ctx).Warn("Received " + s.String() + ", shutting down...")
		case <-m.trigger:
			logger.Get(ctx).Info("Shutdown requested")
		case <-parent.Done():
			return
		}

		if err := m.Run(ctx); err != nil {
			logger.Get(ctx).Error("shutdown hooks failed", "error", err)
		}
	}()

	return ctx
}

// Run executes every registered hook once and clears the list. Hook errors
// are joined; a failing hook does not stop the rest.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	hooks := m.hooks
	m.hooks = nil
	m.mu.Unlock()

	var errs []error

	for _, h := range hooks {
		logger.Get(ctx).Debug("running shutdown hook", "hook", h.name)

		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	return errors.Join(errs...)
}

var std = New() //nolint:gochecknoglobals

// BeforeShutdown registers fn on the process-wide manager.
func BeforeShutdown(name string, fn Hook) {
	std.BeforeShutdown(name, fn)
}

// SetupHandler installs the process-wide signal handler.
func SetupHandler(parent context.Context) context.Context {
	return std.SetupHandler(parent)
}

// Shutdown triggers the process-wide manager.
func Shutdown() {
	std.Shutdown()
}

// Run runs the process-wide hooks that have not run yet.
func Run(ctx context.Context) error {
	return std.Run(ctx)
}
