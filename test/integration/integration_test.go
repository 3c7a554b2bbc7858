package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cameraled/internal/api"
	"cameraled/internal/clock"
	"cameraled/internal/metrics"
	"cameraled/internal/monitor"
	"cameraled/internal/pipewire"
	"cameraled/internal/state"
	"cameraled/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	controller *testutil.FakeController
	notifier   *testutil.FakeNotifier
	state      *state.Manager
	status     *httptest.Server
	cancel     context.CancelFunc
	done       chan error
}

func startMonitor(t *testing.T, dump *MockPwDump, controllerErr error) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	script := dump.Write(t)

	env := &testEnv{
		controller: &testutil.FakeController{Err: controllerErr},
		notifier:   &testutil.FakeNotifier{},
		state:      state.NewManager(logger, clock.NewRealClock()),
		done:       make(chan error, 1),
	}
	m := metrics.New()

	env.status = httptest.NewServer(api.NewServer(env.state, m.Handler(), logger, "").Router())
	t.Cleanup(env.status.Close)

	core := pipewire.NewCore(logger)
	mon := monitor.New(monitor.Options{
		Core:         core,
		Source:       pipewire.NewMonitor(script, core, logger),
		Controller:   env.controller,
		Notifier:     env.notifier,
		StateManager: env.state,
		Metrics:      m,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	go func() { env.done <- mon.Run(ctx) }()
	t.Cleanup(cancel)
	return env
}

func (e *testEnv) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-e.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
		return nil
	}
}

func (e *testEnv) fetchState(t *testing.T) api.StateResponse {
	t.Helper()

	resp, err := http.Get(e.status.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// TestScenario_CameraSessionDrivesIndicator follows a camera through a
// whole session: found, started, stopped, unplugged, replugged
func TestScenario_CameraSessionDrivesIndicator(t *testing.T) {
	t.Log("GIVEN: pw-dump reports a rear and a front camera going through a session")
	env := startMonitor(t, &MockPwDump{Batches: [][]DumpObject{
		{Node(7, "suspended", RearCamera()), Node(5, "suspended", FrontCamera())},
		{Node(7, "running", RearCamera())},
		{Node(5, "running", FrontCamera())},
		{Node(5, "idle", FrontCamera())},
		{Removed(5)},
		{Node(9, "running", FrontCamera())},
	}}, nil)

	t.Log("WHEN: the monitor has consumed the stream")
	require.Eventually(t, func() bool {
		return len(env.controller.Calls()) == 4
	}, 5*time.Second, 20*time.Millisecond)

	t.Log("THEN: the indicator followed only the front camera")
	var levels []uint32
	for _, call := range env.controller.Calls() {
		assert.Equal(t, "leds", call.Subsystem)
		assert.Equal(t, "white:camera-indicator", call.Name)
		levels = append(levels, call.Brightness)
	}
	assert.Equal(t, []uint32{0, 1, 0, 1}, levels)
	assert.Empty(t, env.notifier.Calls())

	t.Log("AND: the status API reports the replugged camera")
	status := env.fetchState(t)
	assert.True(t, status.Booleans[state.KeyCameraTracked])
	assert.True(t, status.Booleans[state.KeyCameraActive])
	assert.Equal(t, 9.0, status.Numbers[state.KeyCameraNodeID])
	assert.Equal(t, "Running", status.Strings[state.KeyCameraState])
	assert.Equal(t, 2.0, status.Numbers[state.KeyTrackedNodes])

	t.Log("WHEN: the monitor is asked to stop")
	env.cancel()

	t.Log("THEN: it shuts down cleanly")
	assert.NoError(t, env.wait(t))
}

// TestScenario_IndicatorUnavailableFallsBackToNotification covers a
// session without logind access
func TestScenario_IndicatorUnavailableFallsBackToNotification(t *testing.T) {
	t.Log("GIVEN: SetBrightness is denied")
	env := startMonitor(t, &MockPwDump{Batches: [][]DumpObject{
		{Node(5, "running", FrontCamera())},
		{Node(5, "idle", FrontCamera())},
	}}, errors.New("org.freedesktop.DBus.Error.AccessDenied"))

	t.Log("WHEN: the front camera starts and stops")
	require.Eventually(t, func() bool {
		return len(env.notifier.Calls()) == 2
	}, 5*time.Second, 20*time.Millisecond)

	t.Log("THEN: a notification names each state")
	calls := env.notifier.Calls()
	assert.Equal(t, "Camera state changed", calls[0].Summary)
	assert.Contains(t, calls[0].Body, "Running")
	assert.Contains(t, calls[1].Body, "Idle")

	status := env.fetchState(t)
	assert.Contains(t, status.Strings[state.KeyIndicatorError], "AccessDenied")
	assert.False(t, status.Booleans[state.KeyIndicatorOn])

	env.cancel()
	assert.NoError(t, env.wait(t))
}

// TestScenario_PwDumpExitIsFatal covers the registry going away
func TestScenario_PwDumpExitIsFatal(t *testing.T) {
	t.Log("GIVEN: pw-dump fails after printing one batch")
	env := startMonitor(t, &MockPwDump{
		Batches:  [][]DumpObject{{Node(5, "running", FrontCamera())}},
		Stderr:   "failed to connect: Host is down",
		Exit:     true,
		ExitCode: 1,
	}, nil)

	t.Log("THEN: the monitor stops with the registry error")
	err := env.wait(t)
	require.Error(t, err)
	assert.True(t, errors.Is(err, monitor.ErrFatalRegistry))
	assert.Contains(t, err.Error(), "Host is down")

	t.Log("AND: the camera seen before the failure was still shown")
	require.Len(t, env.controller.Calls(), 1)
	assert.Equal(t, uint32(1), env.controller.Last().Brightness)
}
