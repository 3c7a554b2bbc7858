package loop

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOwnershipViolation is returned by Reclaim when a shared handle to the
// result was never released.
var ErrOwnershipViolation = errors.New("result still shared at shutdown")

// Result holds the single final result of a loop run. Callbacks write it
// through handles obtained with Share; the owner reads it back with Reclaim
// once the loop has stopped.
type Result struct {
	mu      sync.Mutex
	err     error
	set     bool
	handles int
}

// ResultHandle is a shared write handle to a Result
type ResultHandle struct {
	result   *Result
	released bool
}

// NewResult creates an empty result (success until something sets it)
func NewResult() *Result {
	return &Result{}
}

// Share returns a new write handle. Every handle must be released before
// Reclaim is called.
func (r *Result) Share() *ResultHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles++
	return &ResultHandle{result: r}
}

// Set records err as the final result. Only the first call has an effect.
func (h *ResultHandle) Set(err error) {
	r := h.result
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.released || r.set {
		return
	}
	r.err = err
	r.set = true
}

// Release drops the handle. Releasing twice is a no-op.
func (h *ResultHandle) Release() {
	r := h.result
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.released {
		return
	}
	h.released = true
	r.handles--
}

// Outstanding reports how many handles have not been released
func (r *Result) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles
}

// Reclaim returns the recorded result. If any handle is still outstanding
// the result cannot be trusted and ErrOwnershipViolation is returned instead.
func (r *Result) Reclaim() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handles > 0 {
		return fmt.Errorf("%w: %d handle(s) outstanding", ErrOwnershipViolation, r.handles)
	}
	return r.err
}
