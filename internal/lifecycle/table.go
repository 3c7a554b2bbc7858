// Package lifecycle ties listener resources to the registry objects they
// belong to, so that they are released exactly once, when the object goes
// away.
package lifecycle

import (
	"errors"
	"fmt"
)

// ErrAlreadyTracked is returned by Insert when the identity is already in
// the table. Each identity may be inserted once between an appearance and
// its removal.
var ErrAlreadyTracked = errors.New("identity already tracked")

// Releaser is a resource that can be released. Listener handles of every
// kind satisfy it.
type Releaser interface {
	Release()
}

type entry[T any] struct {
	object    T
	listeners []Releaser
}

// Table maps object identity to the object and its listeners.
// Not safe for concurrent use; it belongs to the event loop goroutine.
type Table[T any] struct {
	entries map[uint32]*entry[T]
}

// NewTable creates an empty table
func NewTable[T any]() *Table[T] {
	return &Table[T]{entries: make(map[uint32]*entry[T])}
}

// Insert starts tracking object and its listeners under id
func (t *Table[T]) Insert(id uint32, object T, listeners ...Releaser) error {
	if _, exists := t.entries[id]; exists {
		return fmt.Errorf("insert %d: %w", id, ErrAlreadyTracked)
	}

	t.entries[id] = &entry[T]{
		object:    object,
		listeners: append([]Releaser(nil), listeners...),
	}
	return nil
}

// Remove releases every listener tracked under id and forgets the object.
// It reports whether id was tracked; unknown ids are a no-op.
func (t *Table[T]) Remove(id uint32) bool {
	e, ok := t.entries[id]
	if !ok {
		return false
	}

	// Drop the entry before releasing so a listener that calls back into
	// Remove sees it gone.
	delete(t.entries, id)
	for _, l := range e.listeners {
		l.Release()
	}
	return true
}

// Get returns the object tracked under id
func (t *Table[T]) Get(id uint32) (T, bool) {
	e, ok := t.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.object, true
}

// Contains reports whether id is tracked
func (t *Table[T]) Contains(id uint32) bool {
	_, ok := t.entries[id]
	return ok
}

// Len returns the number of tracked identities
func (t *Table[T]) Len() int {
	return len(t.entries)
}

// Clear releases everything in the table
func (t *Table[T]) Clear() {
	for id := range t.entries {
		t.Remove(id)
	}
}
