// Package metrics provides Prometheus metrics for the terminal client:
// per-channel connection health, message throughput, and decode hygiene,
// exposed via the promhttp endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the terminal.
type Metrics struct {
	WSReconnects     *prometheus.CounterVec // Reconnection attempts per channel
	MessagesReceived *prometheus.CounterVec // Decoded messages per channel
	DecodeFailures   *prometheus.CounterVec // Dropped undecodable messages per channel
	ListenerPanics   *prometheus.CounterVec // Recovered subscriber panics per channel
	ChannelsOpen     prometheus.Gauge       // Number of stream channels currently open
	RESTFailures     prometheus.Counter     // Failed REST snapshot calls
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for
// testing without touching the global registry).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		WSReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_reconnects_total",
			Help: "Total number of WebSocket reconnection attempts",
		}, []string{"channel"}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_messages_received_total",
			Help: "Total number of decoded stream messages",
		}, []string{"channel"}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_decode_failures_total",
			Help: "Total number of dropped undecodable messages",
		}, []string{"channel"}),
		ListenerPanics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriber_panics_total",
			Help: "Total number of recovered subscriber callback panics",
		}, []string{"channel"}),
		ChannelsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_channels_open",
			Help: "Number of stream channels currently open",
		}),
		RESTFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "rest_failures_total",
			Help: "Total number of failed REST snapshot calls",
		}),
	}
}

// ChannelReconnect implements ws.Recorder.
func (m *Metrics) ChannelReconnect(channel string) {
	m.WSReconnects.WithLabelValues(channel).Inc()
}

// ChannelMessage implements ws.Recorder.
func (m *Metrics) ChannelMessage(channel string) {
	m.MessagesReceived.WithLabelValues(channel).Inc()
}

// ChannelDecodeFailure implements ws.Recorder.
func (m *Metrics) ChannelDecodeFailure(channel string) {
	m.DecodeFailures.WithLabelValues(channel).Inc()
}

// ListenerPanic implements ws.Recorder.
func (m *Metrics) ListenerPanic(channel string) {
	m.ListenerPanics.WithLabelValues(channel).Inc()
}

// SetChannelsOpen updates the open-channels gauge.
func (m *Metrics) SetChannelsOpen(n int) {
	m.ChannelsOpen.Set(float64(n))
}
