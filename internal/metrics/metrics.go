package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is a small Prometheus registry plus HTTP handler, adapted from
// the collector-registration pattern in runZeroInc-conniver's exporter
// package, simplified from a per-tcpinfo-field Collect loop to a direct
// set of gauges/counters. Nothing in package quic updates them; their
// values change only when a caller sets them.
type Registry struct {
	reg *prometheus.Registry

	BytesInFlight  prometheus.Gauge
	ActiveStreams  prometheus.Gauge
	PacketsSent    prometheus.Counter
	PacketsAcked   prometheus.Counter
	PacketsLost    prometheus.Counter
	DecryptFailures prometheus.Counter
}

func New(constLabels prometheus.Labels) *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.BytesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quicsdn_bytes_in_flight", Help: "Unacknowledged bytes currently in flight.", ConstLabels: constLabels,
	})
	r.ActiveStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quicsdn_active_streams", Help: "Streams not yet released.", ConstLabels: constLabels,
	})
	r.PacketsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quicsdn_packets_sent_total", Help: "Packets sent across all spaces.", ConstLabels: constLabels,
	})
	r.PacketsAcked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quicsdn_packets_acked_total", Help: "Packets removed from in-flight by an ACK.", ConstLabels: constLabels,
	})
	r.PacketsLost = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quicsdn_packets_lost_total", Help: "Packets declared lost by loss detection.", ConstLabels: constLabels,
	})
	r.DecryptFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quicsdn_decrypt_failures_total", Help: "AEAD open failures (routine, non-fatal).", ConstLabels: constLabels,
	})

	r.reg.MustRegister(r.BytesInFlight, r.ActiveStreams, r.PacketsSent, r.PacketsAcked, r.PacketsLost, r.DecryptFailures)
	return r
}

// Handler returns the HTTP handler to mount on the side port named in
// spec.md's ambient observability stack.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
