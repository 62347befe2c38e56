package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors a Server updates as connections
// come and go and bytes cross the wire. Pass nil to ServerOptions.Metrics
// to run without instrumentation.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	bytesReceived     prometheus.Counter
	bytesSent         prometheus.Counter
	framesDropped     prometheus.Counter
}

// NewMetrics registers the transport core's collectors on reg and returns
// the handle a Server uses to update them.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connections_total",
			Help:      "Total connections accepted or dialed since startup.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connections_active",
			Help:      "Currently tracked connections.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bytes_received_total",
			Help:      "Raw bytes read off the wire across all connections.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bytes_sent_total",
			Help:      "Raw bytes written to the wire across all connections.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded: a framing error (which also disconnects) or a pipeline decrypt/decompress miss (which does not).",
		}),
	}
	reg.MustRegister(m.connectionsTotal, m.connectionsActive, m.bytesReceived, m.bytesSent, m.framesDropped)
	return m
}
