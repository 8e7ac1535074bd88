package graphql

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds the gateway's Prometheus instrumentation. Each server
// owns its registry so tests can run servers side by side.
type metrics struct {
	registry *prometheus.Registry

	requestsTotal      prometheus.Counter
	requestsFailed     prometheus.Counter
	wsConnections      prometheus.Gauge
	tokensIssued       prometheus.Counter
	envelopesDelivered prometheus.Counter
	envelopesDropped   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadit",
			Subsystem: "gateway",
			Name:      "graphql_requests_total",
			Help:      "GraphQL HTTP requests handled.",
		}),
		requestsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadit",
			Subsystem: "gateway",
			Name:      "graphql_requests_failed_total",
			Help:      "GraphQL HTTP requests that returned errors.",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "threadit",
			Subsystem: "gateway",
			Name:      "websocket_connections",
			Help:      "Currently open subscription websocket connections.",
		}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadit",
			Subsystem: "gateway",
			Name:      "ws_auth_tokens_issued_total",
			Help:      "Streaming tokens minted by /api/ws-auth.",
		}),
		envelopesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadit",
			Subsystem: "gateway",
			Name:      "subscription_envelopes_delivered_total",
			Help:      "Envelopes forwarded to subscription clients.",
		}),
		envelopesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadit",
			Subsystem: "gateway",
			Name:      "subscription_envelopes_dropped_total",
			Help:      "Envelopes withheld by the delivery filter.",
		}),
	}
	registry.MustRegister(m.requestsTotal, m.requestsFailed, m.wsConnections,
		m.tokensIssued, m.envelopesDelivered, m.envelopesDropped)
	return m
}
