package pipewire

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrNotNode is returned when binding a global that is not a node
	ErrNotNode = errors.New("global is not a node")

	// ErrUnknownGlobal is returned when binding a global the registry does
	// not know about (never announced, or already removed)
	ErrUnknownGlobal = errors.New("unknown global")
)

// RegistryEvents are the callbacks a registry listener can register
type RegistryEvents struct {
	Global       func(global *Global)
	GlobalRemove func(id uint32)
}

// NodeEvents are the callbacks of a bound node
type NodeEvents struct {
	Info func(info *NodeInfo)
}

// ProxyEvents are the callbacks of any bound proxy
type ProxyEvents struct {
	Removed func()
}

// Registry tracks the live globals and the proxies bound to them
type Registry struct {
	logger    *zap.Logger
	globals   map[uint32]*Global
	proxies   map[uint32][]*Node
	listeners hookList[RegistryEvents]
}

// Node is a proxy bound to a node global
type Node struct {
	id             uint32
	listeners      hookList[NodeEvents]
	proxyListeners hookList[ProxyEvents]
	removed        bool
}

func newRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		globals: make(map[uint32]*Global),
		proxies: make(map[uint32][]*Node),
	}
}

// AddListener registers registry callbacks
func (r *Registry) AddListener(events RegistryEvents) *RegistryListener {
	return &RegistryListener{h: r.listeners.add(events)}
}

// Bind creates a node proxy for global
func (r *Registry) Bind(global *Global) (*Node, error) {
	if global.Type != TypeNode {
		return nil, fmt.Errorf("bind %d (%s): %w", global.ID, global.Type, ErrNotNode)
	}
	if _, ok := r.globals[global.ID]; !ok {
		return nil, fmt.Errorf("bind %d: %w", global.ID, ErrUnknownGlobal)
	}

	node := &Node{id: global.ID}
	r.proxies[global.ID] = append(r.proxies[global.ID], node)
	return node, nil
}

// Lookup returns the live global with the given id
func (r *Registry) Lookup(id uint32) (*Global, bool) {
	g, ok := r.globals[id]
	return g, ok
}

// Len returns the number of live globals
func (r *Registry) Len() int {
	return len(r.globals)
}

// Announce adds a global and emits it to registry listeners
func (r *Registry) Announce(global Global) {
	if _, exists := r.globals[global.ID]; exists {
		r.logger.Warn("Global announced while still live",
			zap.Uint32("id", global.ID),
			zap.String("type", global.Type))
	}

	g := &global
	r.globals[g.ID] = g

	r.logger.Debug("Global added",
		zap.Uint32("id", g.ID),
		zap.String("type", g.Type))

	r.listeners.each(func(e RegistryEvents) {
		if e.Global != nil {
			e.Global(g)
		}
	})
}

// Update delivers a node info event to every proxy bound to info.ID
func (r *Registry) Update(info NodeInfo) {
	nodes, ok := r.proxies[info.ID]
	if !ok {
		return
	}

	if g, ok := r.globals[info.ID]; ok && info.Props != nil {
		g.Props = info.Props
	}

	for _, node := range nodes {
		if node.removed {
			continue
		}
		node.listeners.each(func(e NodeEvents) {
			if e.Info != nil {
				e.Info(&info)
			}
		})
	}
}

// Remove drops a global. Proxies bound to it receive Removed first, then
// registry listeners receive GlobalRemove. Unknown ids are ignored.
func (r *Registry) Remove(id uint32) {
	g, ok := r.globals[id]
	if !ok {
		return
	}
	delete(r.globals, id)

	nodes := r.proxies[id]
	delete(r.proxies, id)

	r.logger.Debug("Global removed",
		zap.Uint32("id", id),
		zap.String("type", g.Type))

	for _, node := range nodes {
		node.removed = true
		node.proxyListeners.each(func(e ProxyEvents) {
			if e.Removed != nil {
				e.Removed()
			}
		})
	}

	r.listeners.each(func(e RegistryEvents) {
		if e.GlobalRemove != nil {
			e.GlobalRemove(id)
		}
	})
}

// ID returns the id of the global this proxy is bound to
func (n *Node) ID() uint32 {
	return n.id
}

// AddListener registers node info callbacks
func (n *Node) AddListener(events NodeEvents) *NodeListener {
	return &NodeListener{h: n.listeners.add(events)}
}

// AddProxyListener registers proxy lifecycle callbacks
func (n *Node) AddProxyListener(events ProxyEvents) *ProxyListener {
	return &ProxyListener{h: n.proxyListeners.add(events)}
}

// Listeners returns how many node and proxy listeners are still registered
func (n *Node) Listeners() int {
	return n.listeners.len() + n.proxyListeners.len()
}
