package camera

import (
	"errors"

	"cameraled/internal/lifecycle"
	"cameraled/internal/metrics"
	"cameraled/internal/pipewire"
	"cameraled/internal/state"

	"go.uber.org/zap"
)

// Registry is the part of the PipeWire registry the tracker uses
type Registry interface {
	AddListener(events pipewire.RegistryEvents) *pipewire.RegistryListener
	Bind(global *pipewire.Global) (*pipewire.Node, error)
}

// Reconciler applies an observed camera state
type Reconciler interface {
	Reconcile(s pipewire.NodeState)
}

// Tracker keeps a proxy and listeners for every node in the registry and
// latches onto the first node matching its target.
// All methods run on the event loop goroutine.
type Tracker struct {
	registry     Registry
	reconciler   Reconciler
	target       Target
	stateManager *state.Manager
	metrics      *metrics.Metrics
	logger       *zap.Logger

	nodes    *lifecycle.Table[*pipewire.Node]
	listener *pipewire.RegistryListener

	latched bool
	tracked uint32
}

// NewTracker creates a tracker for target
func NewTracker(registry Registry, reconciler Reconciler, target Target, stateManager *state.Manager, m *metrics.Metrics, logger *zap.Logger) *Tracker {
	return &Tracker{
		registry:     registry,
		reconciler:   reconciler,
		target:       target,
		stateManager: stateManager,
		metrics:      m,
		logger:       logger.Named("camera"),
		nodes:        lifecycle.NewTable[*pipewire.Node](),
	}
}

// Start subscribes to registry events
func (t *Tracker) Start() {
	t.logger.Info("Starting camera tracker",
		zap.String("role", t.target.Role),
		zap.String("location", t.target.Location),
		zap.String("product", t.target.Product))

	t.listener = t.registry.AddListener(pipewire.RegistryEvents{
		Global:       t.handleGlobal,
		GlobalRemove: t.handleGlobalRemove,
	})
}

// Stop releases the registry listener and every node listener
func (t *Tracker) Stop() {
	if t.listener != nil {
		t.listener.Release()
		t.listener = nil
	}
	t.nodes.Clear()
	t.unlatch()
	t.publishNodes()

	t.logger.Info("Camera tracker stopped")
}

// TrackedID returns the latched node id
func (t *Tracker) TrackedID() (uint32, bool) {
	return t.tracked, t.latched
}

// TrackedNodes returns how many node proxies are held
func (t *Tracker) TrackedNodes() int {
	return t.nodes.Len()
}

func (t *Tracker) handleGlobal(global *pipewire.Global) {
	t.metrics.RegistryEvents.WithLabelValues("global").Inc()
	if global.Type != pipewire.TypeNode {
		return
	}

	node, err := t.registry.Bind(global)
	if err != nil {
		t.logger.Warn("Failed to bind node",
			zap.Uint32("id", global.ID),
			zap.Error(err))
		return
	}

	id := global.ID
	info := node.AddListener(pipewire.NodeEvents{
		Info: func(info *pipewire.NodeInfo) { t.handleInfo(id, info) },
	})
	removed := node.AddProxyListener(pipewire.ProxyEvents{
		Removed: func() { t.handleRemoved(id) },
	})

	if err := t.nodes.Insert(id, node, info, removed); err != nil {
		info.Release()
		removed.Release()
		if errors.Is(err, lifecycle.ErrAlreadyTracked) {
			t.logger.DPanic("Node appeared twice without removal", zap.Uint32("id", id))
		}
		return
	}

	t.logger.Debug("Tracking node", zap.Uint32("id", id))
	t.publishNodes()
}

func (t *Tracker) handleInfo(id uint32, info *pipewire.NodeInfo) {
	t.metrics.RegistryEvents.WithLabelValues("info").Inc()

	if !t.latched && t.target.Matches(info.Props) {
		t.latched = true
		t.tracked = id
		t.logger.Info("Camera found",
			zap.Uint32("id", id),
			zap.String("node", info.Props[pipewire.KeyNodeName]))
		t.publishLatch()
	}

	if !t.latched || id != t.tracked {
		return
	}

	if info.Error != "" {
		t.logger.Warn("Camera node reports an error",
			zap.Uint32("id", id),
			zap.String("error", info.Error))
	}

	if err := t.stateManager.SetString(state.KeyCameraState, info.State.String()); err != nil {
		t.logger.Warn("Failed to record camera state", zap.Error(err))
	}
	t.reconciler.Reconcile(info.State)
}

// handleRemoved runs when a bound proxy learns its global is gone
func (t *Tracker) handleRemoved(id uint32) {
	t.metrics.RegistryEvents.WithLabelValues("proxy_removed").Inc()
	t.forget(id)
}

func (t *Tracker) handleGlobalRemove(id uint32) {
	t.metrics.RegistryEvents.WithLabelValues("global_remove").Inc()
	t.forget(id)
}

// forget drops the listeners for id and clears the latch if it was the
// camera. The indicator keeps its last level.
func (t *Tracker) forget(id uint32) {
	if t.nodes.Remove(id) {
		t.logger.Debug("Node removed", zap.Uint32("id", id))
		t.publishNodes()
	}

	if t.latched && t.tracked == id {
		t.logger.Info("Camera removed", zap.Uint32("id", id))
		t.unlatch()
	}
}

func (t *Tracker) unlatch() {
	if !t.latched {
		return
	}
	t.latched = false
	t.tracked = 0
	t.publishLatch()
	if err := t.stateManager.SetString(state.KeyCameraState, pipewire.NodeStateUnknown.String()); err != nil {
		t.logger.Warn("Failed to record camera state", zap.Error(err))
	}
}

func (t *Tracker) publishLatch() {
	t.metrics.CameraTracked.Set(boolGauge(t.latched))

	if err := t.stateManager.SetBool(state.KeyCameraTracked, t.latched); err != nil {
		t.logger.Warn("Failed to record camera tracking", zap.Error(err))
	}
	if err := t.stateManager.SetNumber(state.KeyCameraNodeID, float64(t.tracked)); err != nil {
		t.logger.Warn("Failed to record camera node id", zap.Error(err))
	}
}

func (t *Tracker) publishNodes() {
	n := t.nodes.Len()
	t.metrics.TrackedNodes.Set(float64(n))
	if err := t.stateManager.SetNumber(state.KeyTrackedNodes, float64(n)); err != nil {
		t.logger.Warn("Failed to record tracked node count", zap.Error(err))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
