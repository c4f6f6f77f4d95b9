package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnOpened()
	m.ConnOpened()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.connections))

	m.RequestDone("GET", 200, "END", 120, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.connections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "200", "END")))
	assert.Equal(t, float64(120), testutil.ToFloat64(m.sentBytes))

	m.ParseError(400)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.parseErrors.WithLabelValues("400")))

	var buf bytes.Buffer
	assert.Nil(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), "asyncweb_requests_total")
	assert.Contains(t, buf.String(), "asyncweb_connections 1")
}

func TestMetricsReuseRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1 := New(reg)
	m2 := New(reg)
	m1.ConnOpened()
	assert.Equal(t, float64(1), testutil.ToFloat64(m2.connections))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnOpened()
		m.RequestDone("GET", 200, "END", 1, time.Second)
		m.ParseError(400)
	})
}
