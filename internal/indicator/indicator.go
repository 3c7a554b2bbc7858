// Package indicator drives the camera indicator LED from the camera node
// state, falling back to a desktop notification when the LED cannot be set.
package indicator

import (
	"time"

	"cameraled/internal/metrics"
	"cameraled/internal/pipewire"
	"cameraled/internal/state"

	"go.uber.org/zap"
)

// Fixed control channel parameters
const (
	Subsystem           = "leds"
	DeviceName          = "white:camera-indicator"
	NotificationSummary = "Camera state changed"
)

// Level is the brightness written to the indicator
type Level uint32

const (
	Off Level = 0
	On  Level = 1
)

func (l Level) String() string {
	if l == On {
		return "on"
	}
	return "off"
}

// LevelFor maps a node state to an indicator level: on only while running
func LevelFor(s pipewire.NodeState) Level {
	if s == pipewire.NodeStateRunning {
		return On
	}
	return Off
}

// Controller sets the brightness of a kernel LED device
type Controller interface {
	SetBrightness(subsystem, name string, brightness uint32) error
}

// Notifier posts a desktop notification
type Notifier interface {
	Notify(summary, body string) error
}

// Reconciler applies camera state to the indicator
type Reconciler struct {
	controller   Controller
	notifier     Notifier
	stateManager *state.Manager
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(controller Controller, notifier Notifier, stateManager *state.Manager, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		controller:   controller,
		notifier:     notifier,
		stateManager: stateManager,
		metrics:      m,
		logger:       logger.Named("indicator"),
	}
}

// Reconcile sets the indicator for the observed camera state. A failure to
// set it is logged and reported through the notifier; nothing is retried.
func (r *Reconciler) Reconcile(s pipewire.NodeState) {
	level := LevelFor(s)

	r.logger.Info("Camera state",
		zap.Stringer("state", s))
	r.logger.Info("Setting indicator",
		zap.String("device", DeviceName),
		zap.Stringer("level", level))

	start := time.Now()
	err := r.controller.SetBrightness(Subsystem, DeviceName, uint32(level))
	r.metrics.IndicatorLatency.Observe(time.Since(start).Seconds())

	if err == nil {
		r.metrics.IndicatorCommands.WithLabelValues(level.String(), metrics.ResultOK).Inc()
		r.record(level == On, "")
		return
	}

	r.metrics.IndicatorCommands.WithLabelValues(level.String(), metrics.ResultError).Inc()
	r.record(false, err.Error())
	r.logger.Error("Failed to set indicator brightness",
		zap.Stringer("state", s),
		zap.Stringer("level", level),
		zap.Error(err))

	if nerr := r.notifier.Notify(NotificationSummary, s.String()); nerr != nil {
		r.metrics.Notifications.WithLabelValues(metrics.ResultError).Inc()
		r.logger.Error("Failed to send notification", zap.Error(nerr))
		return
	}
	r.metrics.Notifications.WithLabelValues(metrics.ResultOK).Inc()
}

// record publishes the outcome. On failure the last applied level is kept.
func (r *Reconciler) record(on bool, failure string) {
	if failure == "" {
		if err := r.stateManager.SetBool(state.KeyIndicatorOn, on); err != nil {
			r.logger.Warn("Failed to record indicator level", zap.Error(err))
		}
	}
	if err := r.stateManager.SetString(state.KeyIndicatorError, failure); err != nil {
		r.logger.Warn("Failed to record indicator error", zap.Error(err))
	}
}

// DryRun is a Controller that only logs the brightness it would set
type DryRun struct {
	logger *zap.Logger
}

// NewDryRun creates a logging-only controller
func NewDryRun(logger *zap.Logger) *DryRun {
	return &DryRun{logger: logger.Named("dry-run")}
}

// SetBrightness logs the request and succeeds
func (d *DryRun) SetBrightness(subsystem, name string, brightness uint32) error {
	d.logger.Info("Skipping indicator change in read-only mode",
		zap.String("subsystem", subsystem),
		zap.String("device", name),
		zap.Uint32("brightness", brightness))
	return nil
}
