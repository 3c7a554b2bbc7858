package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.IndicatorCommands.WithLabelValues("on", ResultOK).Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.IndicatorCommands.WithLabelValues("on", ResultOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.IndicatorCommands.WithLabelValues("on", ResultOK)))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.TrackedNodes.Set(4)
	m.Notifications.WithLabelValues(ResultError).Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "cameraled_tracked_nodes 4"))
	assert.True(t, strings.Contains(body, `cameraled_notifications_total{result="error"} 1`))
}
