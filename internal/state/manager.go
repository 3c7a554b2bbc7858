// Package state holds the monitor's observable status: which node is
// latched as the camera, its last state, and what the indicator was set to.
// The event loop writes it; the status API and the MQTT mirror read and
// subscribe to it from their own goroutines.
package state

import (
	"fmt"
	"sync"
	"time"

	"cameraled/internal/clock"

	"go.uber.org/zap"
)

// StateChangeHandler is called when a state variable changes
type StateChangeHandler func(key string, oldValue, newValue interface{})

// Subscription represents an active state change subscription
type Subscription interface {
	Unsubscribe()
}

type subscriberEntry struct {
	subID   int
	handler StateChangeHandler
}

type subscription struct {
	key     string
	subID   int
	manager *Manager
}

func (s *subscription) Unsubscribe() {
	s.manager.unsubscribe(s.key, s.subID)
}

// Value is a variable's current value and when it last changed
type Value struct {
	Value       interface{} `json:"value"`
	LastChanged time.Time   `json:"last_changed"`
}

// Manager stores status variables and notifies subscribers of changes
type Manager struct {
	logger      *zap.Logger
	clock       clock.Clock
	variables   map[string]StateVariable
	cache       map[string]Value
	cacheMu     sync.RWMutex
	subscribers map[string][]subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
}

// NewManager creates a new state manager with every variable at its default
func NewManager(logger *zap.Logger, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.NewRealClock()
	}

	m := &Manager{
		logger:      logger.Named("state"),
		clock:       clk,
		variables:   VariablesByKey(),
		cache:       make(map[string]Value),
		subscribers: make(map[string][]subscriberEntry),
	}

	now := clk.Now()
	for _, v := range AllVariables {
		m.cache[v.Key] = Value{Value: v.Default, LastChanged: now}
	}
	return m
}

func (m *Manager) lookup(key string, want StateType) (StateVariable, error) {
	variable, ok := m.variables[key]
	if !ok {
		return StateVariable{}, fmt.Errorf("variable %s not found", key)
	}
	if variable.Type != want {
		return StateVariable{}, fmt.Errorf("variable %s is not a %s", key, want)
	}
	return variable, nil
}

func (m *Manager) get(key string, want StateType) (interface{}, error) {
	if _, err := m.lookup(key, want); err != nil {
		return nil, err
	}

	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	return m.cache[key].Value, nil
}

// set stores value and notifies subscribers if it changed
func (m *Manager) set(key string, want StateType, value interface{}, allowComputed bool) error {
	variable, err := m.lookup(key, want)
	if err != nil {
		return err
	}
	if variable.Computed && !allowComputed {
		return fmt.Errorf("variable %s is computed", key)
	}

	m.cacheMu.Lock()
	old := m.cache[key]
	if old.Value == value {
		m.cacheMu.Unlock()
		return nil
	}
	m.cache[key] = Value{Value: value, LastChanged: m.clock.Now()}
	m.cacheMu.Unlock()

	m.logger.Debug("State changed",
		zap.String("key", key),
		zap.Any("old", old.Value),
		zap.Any("new", value))

	m.notifySubscribers(key, old.Value, value)
	return nil
}

// GetBool retrieves a boolean state variable
func (m *Manager) GetBool(key string) (bool, error) {
	value, err := m.get(key, TypeBool)
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// SetBool sets a boolean state variable
func (m *Manager) SetBool(key string, value bool) error {
	return m.set(key, TypeBool, value, false)
}

// GetString retrieves a string state variable
func (m *Manager) GetString(key string) (string, error) {
	value, err := m.get(key, TypeString)
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// SetString sets a string state variable
func (m *Manager) SetString(key string, value string) error {
	return m.set(key, TypeString, value, false)
}

// GetNumber retrieves a number state variable
func (m *Manager) GetNumber(key string) (float64, error) {
	value, err := m.get(key, TypeNumber)
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}

// SetNumber sets a number state variable
func (m *Manager) SetNumber(key string, value float64) error {
	return m.set(key, TypeNumber, value, false)
}

// Subscribe subscribes to state changes for a variable
func (m *Manager) Subscribe(key string, handler StateChangeHandler) (Subscription, error) {
	if _, ok := m.variables[key]; !ok {
		return nil, fmt.Errorf("variable %s not found", key)
	}

	m.subsMu.Lock()
	subID := m.nextSubID
	m.nextSubID++
	m.subscribers[key] = append(m.subscribers[key], subscriberEntry{
		subID:   subID,
		handler: handler,
	})
	m.subsMu.Unlock()

	return &subscription{
		key:     key,
		subID:   subID,
		manager: m,
	}, nil
}

// SubscribeAll subscribes handler to every variable. The returned
// subscriptions are in AllVariables order.
func (m *Manager) SubscribeAll(handler StateChangeHandler) []Subscription {
	subs := make([]Subscription, 0, len(AllVariables))
	for _, v := range AllVariables {
		sub, err := m.Subscribe(v.Key, handler)
		if err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

// unsubscribe removes a specific subscription by key and subscription ID
func (m *Manager) unsubscribe(key string, subID int) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subscribers, ok := m.subscribers[key]
	if !ok {
		return
	}

	for i, entry := range subscribers {
		if entry.subID == subID {
			m.subscribers[key] = append(subscribers[:i], subscribers[i+1:]...)
			if len(m.subscribers[key]) == 0 {
				delete(m.subscribers, key)
			}
			break
		}
	}
}

// notifySubscribers calls every handler for key on the calling goroutine
func (m *Manager) notifySubscribers(key string, oldValue, newValue interface{}) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers[key]...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(key, oldValue, newValue)
	}
}

// Snapshot returns every variable with its last change time
func (m *Manager) Snapshot() map[string]Value {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()

	values := make(map[string]Value, len(m.cache))
	for k, v := range m.cache {
		values[k] = v
	}
	return values
}

// GetAllValues returns all cached values
func (m *Manager) GetAllValues() map[string]interface{} {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()

	values := make(map[string]interface{}, len(m.cache))
	for k, v := range m.cache {
		values[k] = v.Value
	}
	return values
}
