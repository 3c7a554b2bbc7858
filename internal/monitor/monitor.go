// Package monitor wires the event loop, the PipeWire registry source, the
// camera tracker and the indicator together for one run of the process.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"cameraled/internal/camera"
	"cameraled/internal/indicator"
	"cameraled/internal/loop"
	"cameraled/internal/metrics"
	"cameraled/internal/pipewire"
	"cameraled/internal/state"

	"go.uber.org/zap"
)

// ErrFatalRegistry wraps a core error with id 0
var ErrFatalRegistry = errors.New("pipewire error")

// Source feeds registry events into the core through the loop
type Source interface {
	Start(ctx context.Context, invoker pipewire.Invoker) error
}

// Options are the collaborators of a run
type Options struct {
	Core         *pipewire.Core
	Source       Source
	Controller   indicator.Controller
	Notifier     indicator.Notifier
	StateManager *state.Manager
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Monitor runs the camera indicator until shutdown
type Monitor struct {
	opts   Options
	logger *zap.Logger
}

// New creates a monitor
func New(opts Options) *Monitor {
	return &Monitor{
		opts:   opts,
		logger: opts.Logger.Named("monitor"),
	}
}

// Run blocks until SIGINT, SIGTERM, ctx cancellation or a fatal registry
// error. It returns nil on a clean shutdown, an ErrFatalRegistry error when
// the registry failed, and loop.ErrOwnershipViolation if the result was
// still shared at teardown.
func (m *Monitor) Run(ctx context.Context) error {
	l := loop.New(m.opts.Logger)
	result := loop.NewResult()

	signals := loop.QuitOnSignal(l, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		for _, s := range signals {
			s.Release()
		}
	}()

	computed, err := m.opts.StateManager.SetupComputedState()
	if err != nil {
		return fmt.Errorf("failed to set up computed state: %w", err)
	}
	defer func() {
		for _, sub := range computed {
			sub.Unsubscribe()
		}
	}()

	handle := result.Share()
	coreListener := m.opts.Core.AddListener(pipewire.CoreEvents{
		Info: func(info *pipewire.CoreInfo) {
			m.logger.Debug("Connected to PipeWire",
				zap.String("name", info.Name),
				zap.String("version", info.Version))
		},
		Error: func(id uint32, seq int, res int, message string) {
			m.logger.Error("PipeWire error",
				zap.Uint32("id", id),
				zap.Int("seq", seq),
				zap.Int("res", res),
				zap.String("message", message))
			if id == 0 {
				handle.Set(fmt.Errorf("%w: %s", ErrFatalRegistry, message))
				l.Quit()
			}
		},
	})

	reconciler := indicator.NewReconciler(m.opts.Controller, m.opts.Notifier, m.opts.StateManager, m.opts.Metrics, m.opts.Logger)
	tracker := camera.NewTracker(m.opts.Core.Registry(), reconciler, camera.DefaultTarget, m.opts.StateManager, m.opts.Metrics, m.opts.Logger)
	tracker.Start()

	sourceCtx, cancelSource := context.WithCancel(ctx)
	if err := m.opts.Source.Start(sourceCtx, l); err != nil {
		cancelSource()
		tracker.Stop()
		coreListener.Release()
		handle.Release()
		return fmt.Errorf("failed to start registry source: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			l.Quit()
		case <-l.Done():
		}
	}()

	m.logger.Info("Camera monitor running")
	l.Run()
	m.logger.Info("Camera monitor stopping")

	cancelSource()
	tracker.Stop()
	coreListener.Release()
	handle.Release()

	return result.Reclaim()
}
