// Package metricsx wraps the Prometheus collectors the server exposes.
package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WiccyCheng/MyKVServer/pkg/broadcaster"
)

// Registry wraps every Prometheus collector the server reports into.
type Registry struct {
	ActiveConnections prometheus.Gauge
	AcceptErrors      prometheus.Counter
	RequestsTotal     prometheus.Counter

	Published prometheus.Counter
	Delivered prometheus.Counter
	Dropped   prometheus.Counter
}

// NewRegistry creates and registers the collectors.
func NewRegistry() *Registry {
	return &Registry{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kv_connections_active",
			Help: "Number of active client connections.",
		}),
		AcceptErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kv_accept_errors_total",
			Help: "Total number of TLS accept/handshake errors.",
		}),
		RequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kv_requests_total",
			Help: "Total number of command requests dispatched.",
		}),
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kv_pubsub_published_total",
			Help: "Total number of publish calls accepted by the broadcaster.",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kv_pubsub_delivered_total",
			Help: "Total number of published payloads enqueued to a subscriber.",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kv_pubsub_dropped_total",
			Help: "Total number of published payloads dropped due to a full subscriber queue.",
		}),
	}
}

// BroadcasterMetrics adapts the registry to broadcaster.Metrics.
func (r *Registry) BroadcasterMetrics() *broadcaster.Metrics {
	return &broadcaster.Metrics{
		Published: r.Published,
		Delivered: r.Delivered,
		Dropped:   r.Dropped,
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
