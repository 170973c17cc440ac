package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveCommand("get", false, time.Millisecond)
	m.ObserveCommand("get", false, time.Millisecond)
	m.ObserveCommand("incr", true, time.Millisecond)
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	m.Rejected("max_clients")
	m.NamespaceCreated()
	m.KeyExpired()
	m.PanicRecovered()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("get", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("incr", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clients))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("max_clients")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.namespaces))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.expiredKeys))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panics))
	assert.Equal(t, 2, testutil.CollectAndCount(m.latency))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCommand("get", false, time.Millisecond)
		m.ClientConnected()
		m.ClientDisconnected()
		m.Rejected("rate_limit")
		m.NamespaceCreated()
		m.KeyExpired()
		m.PanicRecovered()
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveCommand("set", false, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `emberkv_commands_total{command="set",status="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "emberkv_connected_clients 0")
}
