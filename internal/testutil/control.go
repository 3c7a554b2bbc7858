// Package testutil provides fakes for the monitor's control channels and
// helpers for feeding registry events in tests.
package testutil

import (
	"sync"
	"time"
)

// BrightnessCall records a SetBrightness request
type BrightnessCall struct {
	Timestamp  time.Time
	Subsystem  string
	Name       string
	Brightness uint32
}

// NotifyCall records a posted notification
type NotifyCall struct {
	Timestamp time.Time
	Summary   string
	Body      string
}

// FakeController records brightness requests and fails with Err when set
type FakeController struct {
	mu    sync.Mutex
	calls []BrightnessCall
	Err   error
}

// SetBrightness records the call
func (c *FakeController) SetBrightness(subsystem, name string, brightness uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, BrightnessCall{
		Timestamp:  time.Now(),
		Subsystem:  subsystem,
		Name:       name,
		Brightness: brightness,
	})
	return c.Err
}

// SetError makes subsequent calls fail with err (nil to succeed)
func (c *FakeController) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// Calls returns a copy of the recorded calls
func (c *FakeController) Calls() []BrightnessCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	calls := make([]BrightnessCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// Last returns the most recent call, or nil
func (c *FakeController) Last() *BrightnessCall {
	calls := c.Calls()
	if len(calls) == 0 {
		return nil
	}
	return &calls[len(calls)-1]
}

// Clear clears the call history
func (c *FakeController) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// FakeNotifier records notifications and fails with Err when set
type FakeNotifier struct {
	mu    sync.Mutex
	calls []NotifyCall
	Err   error
}

// Notify records the call
func (n *FakeNotifier) Notify(summary, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, NotifyCall{
		Timestamp: time.Now(),
		Summary:   summary,
		Body:      body,
	})
	return n.Err
}

// Calls returns a copy of the recorded notifications
func (n *FakeNotifier) Calls() []NotifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()

	calls := make([]NotifyCall, len(n.calls))
	copy(calls, n.calls)
	return calls
}
