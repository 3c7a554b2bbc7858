package pipewire

import (
	"go.uber.org/zap"
)

// CoreEvents are the callbacks a core listener can register. Nil fields are
// skipped.
type CoreEvents struct {
	Info  func(info *CoreInfo)
	Error func(id uint32, seq int, res int, message string)
}

// Core is the connection to the PipeWire daemon. Error events with id 0 are
// fatal to the connection.
type Core struct {
	logger    *zap.Logger
	registry  *Registry
	listeners hookList[CoreEvents]
	info      *CoreInfo
}

// NewCore creates a core with an empty registry
func NewCore(logger *zap.Logger) *Core {
	return &Core{
		logger:   logger.Named("pipewire"),
		registry: newRegistry(logger.Named("registry")),
	}
}

// Registry returns the registry of this core
func (c *Core) Registry() *Registry {
	return c.registry
}

// Info returns the last core info received, or nil
func (c *Core) Info() *CoreInfo {
	return c.info
}

// AddListener registers core callbacks
func (c *Core) AddListener(events CoreEvents) *CoreListener {
	return &CoreListener{h: c.listeners.add(events)}
}

// SetInfo records core info and emits it to listeners
func (c *Core) SetInfo(info CoreInfo) {
	c.info = &info
	c.listeners.each(func(e CoreEvents) {
		if e.Info != nil {
			e.Info(&info)
		}
	})
}

// Error emits an error event. id is the object the error refers to; 0 means
// the core itself.
func (c *Core) Error(id uint32, seq int, res int, message string) {
	c.logger.Debug("Core error event",
		zap.Uint32("id", id),
		zap.Int("seq", seq),
		zap.Int("res", res),
		zap.String("message", message))

	c.listeners.each(func(e CoreEvents) {
		if e.Error != nil {
			e.Error(id, seq, res, message)
		}
	})
}
