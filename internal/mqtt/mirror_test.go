package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cameraled/internal/clock"
	"cameraled/internal/state"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool { return true }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	var body string
	switch v := payload.(type) {
	case string:
		body = v
	case []byte:
		body = string(v)
	}
	p.messages = append(p.messages, published{topic: topic, retained: retained, payload: body})
	return &fakeToken{err: p.err}
}

func (p *fakePublisher) last(topic string) (published, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].topic == topic {
			return p.messages[i], true
		}
	}
	return published{}, false
}

func newTestMirror(t *testing.T) (*Mirror, *fakePublisher, *state.Manager) {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	stateManager := state.NewManager(zap.NewNop(), clk)
	pub := &fakePublisher{}
	return newMirror(pub, "camera-led-test", "laptop/camera", stateManager, zap.NewNop()), pub, stateManager
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "camera-led/status", statusTopic("camera-led"))
	assert.Equal(t, "camera-led/state/indicatorOn", variableTopic("camera-led", state.KeyIndicatorOn))
}

func TestBuildStatusPayload(t *testing.T) {
	var online map[string]string
	require.NoError(t, json.Unmarshal([]byte(buildStatusPayload("id-1", "online", "")), &online))
	assert.Equal(t, "online", online["status"])
	assert.Equal(t, "id-1", online["client_id"])
	assert.NotContains(t, online, "reason")

	var offline map[string]string
	require.NoError(t, json.Unmarshal([]byte(buildStatusPayload("id-1", "offline", "graceful_shutdown")), &offline))
	assert.Equal(t, "graceful_shutdown", offline["reason"])
}

func TestNewClientID(t *testing.T) {
	a, b := NewClientID(), NewClientID()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "camera-led-")
}

func TestMirror_PublishesSnapshotAndChanges(t *testing.T) {
	m, pub, stateManager := newTestMirror(t)
	m.Start()

	require.NoError(t, stateManager.SetString(state.KeyCameraState, "Running"))
	require.NoError(t, stateManager.SetBool(state.KeyIndicatorOn, true))
	m.Stop()

	status, ok := pub.last("laptop/camera/status")
	require.True(t, ok)
	assert.True(t, status.retained)
	assert.Contains(t, status.payload, `"offline"`)

	msg, ok := pub.last("laptop/camera/state/cameraState")
	require.True(t, ok)
	assert.True(t, msg.retained)
	assert.Equal(t, `"Running"`, msg.payload)

	msg, ok = pub.last("laptop/camera/state/indicatorOn")
	require.True(t, ok)
	assert.Equal(t, "true", msg.payload)

	msg, ok = pub.last("laptop/camera/state/cameraNodeID")
	require.True(t, ok, "snapshot is published on start")
	assert.Equal(t, "0", msg.payload)
}

func TestMirror_StopIsIdempotent(t *testing.T) {
	m, _, stateManager := newTestMirror(t)
	m.Start()
	m.Stop()
	m.Stop()

	// no subscription left to enqueue on the closed queue
	assert.NotPanics(t, func() {
		require.NoError(t, stateManager.SetBool(state.KeyCameraTracked, true))
	})
}

func TestMirror_PublishErrorsAreLogged(t *testing.T) {
	m, pub, stateManager := newTestMirror(t)
	pub.err = errors.New("not connected")

	m.Start()
	require.NoError(t, stateManager.SetBool(state.KeyCameraTracked, true))
	m.Stop()

	_, ok := pub.last("laptop/camera/state/cameraTracked")
	assert.True(t, ok)
}
