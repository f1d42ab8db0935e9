package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	r := New(prometheus.Labels{"role": "client"})
	r.PacketsSent.Add(3)
	r.PacketsAcked.Inc()
	r.BytesInFlight.Set(1200)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "quicsdn_packets_sent_total")
	require.Contains(t, body, "quicsdn_packets_acked_total")
	require.Contains(t, body, "quicsdn_bytes_in_flight")
	require.True(t, strings.Contains(body, `role="client"`))
}

func TestNewIndependentRegistries(t *testing.T) {
	a := New(prometheus.Labels{"role": "client"})
	b := New(prometheus.Labels{"role": "server"})
	a.PacketsLost.Inc()

	reqA := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recA := httptest.NewRecorder()
	a.Handler().ServeHTTP(recA, reqA)

	reqB := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recB := httptest.NewRecorder()
	b.Handler().ServeHTTP(recB, reqB)

	require.Contains(t, recA.Body.String(), `quicsdn_packets_lost_total{role="client"} 1`)
	require.Contains(t, recB.Body.String(), `quicsdn_packets_lost_total{role="server"} 0`)
}
