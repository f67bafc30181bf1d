// ABOUTME: Prometheus metrics for the live link bridge
// ABOUTME: Counts listener events directly and samples source stats at scrape time
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Resonate-Protocol/livelink-go/pkg/livelink"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

const namespace = "livelink"

// Metrics contains all Prometheus metrics for the bridge
type Metrics struct {
	registry *prometheus.Registry

	// Listener metrics
	FramesReceived     *prometheus.CounterVec
	BytesReceivedTotal *prometheus.CounterVec
	FrameSize          *prometheus.HistogramVec
	ConnectionsTotal   *prometheus.CounterVec
	ActiveConnections  *prometheus.GaugeVec

	// Viewer metrics
	ViewerClients  prometheus.Gauge
	ViewerMessages prometheus.Counter
	ViewerDropped  prometheus.Counter
}

// New creates all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames received by kind",
		}, []string{"channel", "kind"}),
		BytesReceivedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total number of bytes read from senders",
		}, []string{"channel"}),
		FrameSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_size_bytes",
			Help:      "Size of received frame payloads",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8), // 16B to 256KB
		}, []string{"channel"}),
		ConnectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted sender connections",
		}, []string{"channel"}),
		ActiveConnections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Whether a sender is currently connected",
		}, []string{"channel"}),

		ViewerClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewer_clients",
			Help:      "Current number of connected live viewers",
		}),
		ViewerMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_messages_total",
			Help:      "Total number of messages queued to live viewers",
		}),
		ViewerDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_messages_dropped_total",
			Help:      "Total number of messages dropped for slow viewers",
		}),
	}
}

// FrameReceived implements listener.Observer
func (m *Metrics) FrameReceived(ch protocol.Channel, kind protocol.Kind, size int) {
	m.FramesReceived.WithLabelValues(ch.String(), kind.String()).Inc()
	m.FrameSize.WithLabelValues(ch.String()).Observe(float64(size))
}

// BytesReceived implements listener.Observer
func (m *Metrics) BytesReceived(ch protocol.Channel, n int) {
	m.BytesReceivedTotal.WithLabelValues(ch.String()).Add(float64(n))
}

// ConnectionAccepted implements listener.Observer
func (m *Metrics) ConnectionAccepted(ch protocol.Channel) {
	m.ConnectionsTotal.WithLabelValues(ch.String()).Inc()
	m.ActiveConnections.WithLabelValues(ch.String()).Set(1)
}

// ConnectionClosed implements listener.Observer
func (m *Metrics) ConnectionClosed(ch protocol.Channel) {
	m.ActiveConnections.WithLabelValues(ch.String()).Set(0)
}

// ViewerConnected tracks a live viewer joining
func (m *Metrics) ViewerConnected() { m.ViewerClients.Inc() }

// ViewerDisconnected tracks a live viewer leaving
func (m *Metrics) ViewerDisconnected() { m.ViewerClients.Dec() }

// ViewerMessage counts a message queued for a viewer, or dropped when its
// queue is full
func (m *Metrics) ViewerMessage(dropped bool) {
	if dropped {
		m.ViewerDropped.Inc()
		return
	}
	m.ViewerMessages.Inc()
}

// RegisterSource samples the source's scheduler and mixer stats on every
// scrape
func (m *Metrics) RegisterSource(src StatusProvider) error {
	return m.registry.Register(newSourceCollector(src))
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StatusProvider is satisfied by *livelink.Source
type StatusProvider interface {
	Status() livelink.Status
}
