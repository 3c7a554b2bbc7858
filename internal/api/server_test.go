package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cameraled/internal/clock"
	"cameraled/internal/metrics"
	"cameraled/internal/state"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *state.Manager, *metrics.Metrics) {
	t.Helper()

	clk := clock.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	stateManager := state.NewManager(zap.NewNop(), clk)
	m := metrics.New()
	return NewServer(stateManager, m.Handler(), zap.NewNop(), "127.0.0.1:0"), stateManager, m
}

func TestHandleGetState(t *testing.T) {
	server, stateManager, _ := newTestServer(t)

	require.NoError(t, stateManager.SetBool(state.KeyCameraTracked, true))
	require.NoError(t, stateManager.SetNumber(state.KeyCameraNodeID, 5))
	require.NoError(t, stateManager.SetString(state.KeyCameraState, "Running"))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response StateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	assert.True(t, response.Booleans[state.KeyCameraTracked])
	assert.False(t, response.Booleans[state.KeyIndicatorOn])
	assert.Equal(t, 5.0, response.Numbers[state.KeyCameraNodeID])
	assert.Equal(t, "Running", response.Strings[state.KeyCameraState])
	assert.Contains(t, response.LastChanged, state.KeyCameraState)

	total := len(response.Booleans) + len(response.Numbers) + len(response.Strings)
	assert.Equal(t, len(state.AllVariables), total)
}

func TestHandleHealth(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/state", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleMetrics(t *testing.T) {
	server, _, m := newTestServer(t)
	m.IndicatorCommands.WithLabelValues("on", metrics.ResultOK).Inc()

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cameraled_indicator_commands_total")
}

func TestHandleSitemap(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	for _, ep := range endpoints {
		assert.Contains(t, w.Body.String(), ep.Path)
	}
}

func TestWebSocket_StreamsChanges(t *testing.T) {
	server, stateManager, _ := newTestServer(t)
	server.subscribe()
	t.Cleanup(func() {
		server.unsubscribe()
		server.hub.CloseAll()
	})

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return server.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// initial snapshot
	seen := make(map[string]bool)
	for range state.AllVariables {
		var ev Event
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&ev))
		seen[ev.Key] = true
	}
	assert.Len(t, seen, len(state.AllVariables))

	require.NoError(t, stateManager.SetString(state.KeyCameraState, "Idle"))

	var ev Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, state.KeyCameraState, ev.Key)
	assert.Equal(t, "Unknown", ev.Old)
	assert.Equal(t, "Idle", ev.New)
}

func TestServer_StartStop(t *testing.T) {
	server, _, _ := newTestServer(t)

	require.NoError(t, server.Start())
	assert.NotEmpty(t, server.stateSubscriptions)

	require.NoError(t, server.Stop())
	assert.Empty(t, server.stateSubscriptions)
}

func TestServer_StartFailsOnBadAddress(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	server := NewServer(state.NewManager(zap.NewNop(), clk), metrics.New().Handler(), zap.NewNop(), "256.0.0.1:http")

	err := server.Start()
	require.Error(t, err)
	assert.Empty(t, server.stateSubscriptions)
}
