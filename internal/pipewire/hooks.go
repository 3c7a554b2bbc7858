package pipewire

// hook is one registered callback set in a hookList
type hook[E any] struct {
	events   E
	list     *hookList[E]
	released bool
}

type hookList[E any] struct {
	hooks []*hook[E]
}

func (l *hookList[E]) add(events E) *hook[E] {
	h := &hook[E]{events: events, list: l}
	l.hooks = append(l.hooks, h)
	return h
}

func (h *hook[E]) release() {
	if h.released {
		return
	}
	h.released = true

	hooks := h.list.hooks
	for i, other := range hooks {
		if other == h {
			h.list.hooks = append(hooks[:i], hooks[i+1:]...)
			break
		}
	}
}

// each calls fn for every live hook. A hook released by an earlier callback
// in the same pass is skipped.
func (l *hookList[E]) each(fn func(E)) {
	snapshot := append([]*hook[E](nil), l.hooks...)
	for _, h := range snapshot {
		if h.released {
			continue
		}
		fn(h.events)
	}
}

func (l *hookList[E]) len() int {
	return len(l.hooks)
}

// CoreListener is a registered CoreEvents set
type CoreListener struct{ h *hook[CoreEvents] }

// Release unregisters the listener
func (l *CoreListener) Release() { l.h.release() }

// RegistryListener is a registered RegistryEvents set
type RegistryListener struct{ h *hook[RegistryEvents] }

// Release unregisters the listener
func (l *RegistryListener) Release() { l.h.release() }

// NodeListener is a registered NodeEvents set
type NodeListener struct{ h *hook[NodeEvents] }

// Release unregisters the listener
func (l *NodeListener) Release() { l.h.release() }

// ProxyListener is a registered ProxyEvents set
type ProxyListener struct{ h *hook[ProxyEvents] }

// Release unregisters the listener
func (l *ProxyListener) Release() { l.h.release() }
