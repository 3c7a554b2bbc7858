// Package mqtt mirrors the monitor's status variables to an MQTT broker as
// retained messages, one topic per variable.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cameraled/internal/state"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrConnectionFailed is returned when the broker cannot be reached
var ErrConnectionFailed = errors.New("mqtt connection failed")

const mirrorQueueSize = 64

// publisher is the part of a paho client the mirror uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

type update struct {
	key   string
	value interface{}
}

// Mirror publishes status changes from its own goroutine. State change
// handlers only enqueue, so a slow broker never stalls the event loop.
type Mirror struct {
	client       publisher
	disconnect   func()
	clientID     string
	topic        string
	stateManager *state.Manager
	logger       *zap.Logger

	queue         chan update
	done          chan struct{}
	subscriptions []state.Subscription
	stopOnce      sync.Once
}

// Connect dials broker and returns a mirror publishing under topic
func Connect(broker, topic string, stateManager *state.Manager, logger *zap.Logger) (*Mirror, error) {
	clientID := NewClientID()
	client := pahomqtt.NewClient(buildClientOptions(broker, clientID, topic))

	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	m := newMirror(client, clientID, topic, stateManager, logger)
	m.disconnect = func() { client.Disconnect(defaultDisconnectQuiesce) }
	m.logger.Info("Connected to MQTT broker",
		zap.String("broker", broker),
		zap.String("client_id", clientID))
	return m, nil
}

func newMirror(client publisher, clientID, topic string, stateManager *state.Manager, logger *zap.Logger) *Mirror {
	return &Mirror{
		client:       client,
		disconnect:   func() {},
		clientID:     clientID,
		topic:        topic,
		stateManager: stateManager,
		logger:       logger.Named("mqtt"),
		queue:        make(chan update, mirrorQueueSize),
		done:         make(chan struct{}),
	}
}

// Start publishes the online status and current values, then follows
// changes
func (m *Mirror) Start() {
	m.publish(statusTopic(m.topic), buildStatusPayload(m.clientID, "online", ""))

	for key, v := range m.stateManager.Snapshot() {
		m.enqueue(key, v.Value)
	}
	m.subscriptions = m.stateManager.SubscribeAll(func(key string, _, newValue interface{}) {
		m.enqueue(key, newValue)
	})

	go m.run()
}

// Stop drains pending updates, publishes the offline status and
// disconnects
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() {
		for _, sub := range m.subscriptions {
			sub.Unsubscribe()
		}
		m.subscriptions = nil

		close(m.queue)
		<-m.done

		m.publish(statusTopic(m.topic), buildStatusPayload(m.clientID, "offline", "graceful_shutdown"))
		m.disconnect()
		m.logger.Info("MQTT mirror stopped")
	})
}

func (m *Mirror) enqueue(key string, value interface{}) {
	select {
	case m.queue <- update{key: key, value: value}:
	default:
		m.logger.Warn("MQTT queue full, dropping update", zap.String("key", key))
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for u := range m.queue {
		payload, err := json.Marshal(u.value)
		if err != nil {
			m.logger.Error("Failed to encode value", zap.String("key", u.key), zap.Error(err))
			continue
		}
		m.publish(variableTopic(m.topic, u.key), payload)
	}
}

func (m *Mirror) publish(topic string, payload interface{}) {
	token := m.client.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		m.logger.Warn("MQTT publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	m.logger.Debug("Published", zap.String("topic", topic))
}
