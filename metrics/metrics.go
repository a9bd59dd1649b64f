// Package metrics exposes the proxy's operator-visible counters (spec.md
// §6) as Prometheus collectors, grounded on quic-go's metrics package
// (NewTracerWithRegisterer). Per Design Notes §9, these are read-on-demand
// aggregates rather than a single global mutable scoreboard: the
// Demultiplexer still computes totals by walking its connection table, and
// the connection engine, demultiplexer and dispatcher separately push the
// same values here so an operator can scrape them without holding a
// reference to the table.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "satproxy"

// Registry bundles every collector this module exports. Callers register
// it once against a prometheus.Registerer (typically the default one) and
// then update its collector fields directly from the connection engine,
// demultiplexer and dispatcher.
type Registry struct {
	PacketsSent          prometheus.Counter
	PacketsReceived      prometheus.Counter
	PacketsRetransmitted prometheus.Counter
	BytesSent            prometheus.Counter
	BytesReceived        prometheus.Counter
	ActiveConnections    prometheus.Gauge
	ValidationErrors     *prometheus.CounterVec

	DispatcherOps     *prometheus.CounterVec
	DispatcherBytes   *prometheus.CounterVec
	DispatcherLatency *prometheus.HistogramVec
}

// NewRegistry builds a Registry and registers its collectors against reg.
// Re-registering an already-registered collector (e.g. in tests that call
// NewRegistry more than once against the default registerer) is tolerated,
// matching quic-go's NewTracerWithRegisterer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_sent_total", Help: "QUIC packets sent.",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_received_total", Help: "QUIC packets received.",
		}),
		PacketsRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_retransmitted_total", Help: "QUIC packets retransmitted.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total", Help: "Bytes sent on the wire.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total", Help: "Bytes received on the wire.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_connections", Help: "Connections currently tracked by the demultiplexer.",
		}),
		ValidationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "validation_errors_total", Help: "Dropped datagrams by header validation error kind.",
		}, []string{"kind"}),
		DispatcherOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatcher_ops_total", Help: "Offload dispatcher calls by operation and path.",
		}, []string{"op", "path"}),
		DispatcherBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatcher_bytes_total", Help: "Bytes processed by the offload dispatcher, by operation.",
		}, []string{"op"}),
		DispatcherLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "dispatcher_latency_seconds", Help: "Offload dispatcher call latency, by operation and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "path"}),
	}
	for _, c := range []prometheus.Collector{
		r.PacketsSent, r.PacketsReceived, r.PacketsRetransmitted,
		r.BytesSent, r.BytesReceived, r.ActiveConnections,
		r.ValidationErrors, r.DispatcherOps, r.DispatcherBytes, r.DispatcherLatency,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return r
}

// NewUnregistered builds a Registry whose collectors are registered only
// against a fresh private registry, never the default one, for use in
// tests that construct many dispatchers in the same process.
func NewUnregistered() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
