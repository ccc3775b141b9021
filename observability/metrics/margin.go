package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"margincore/core/events"
)

// MarginMetrics exposes settlement engine counters.
type MarginMetrics struct {
	eventsEmitted   *prometheus.CounterVec
	rejectedCalls   *prometheus.CounterVec
	openPositions   prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

var (
	marginOnce     sync.Once
	marginRegistry *MarginMetrics
)

func Margin() *MarginMetrics {
	marginOnce.Do(func() {
		marginRegistry = &MarginMetrics{
			eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "margin_events_emitted_total",
				Help: "Count of settlement events emitted by type.",
			}, []string{"type"}),
			rejectedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "margin_rejected_calls_total",
				Help: "Count of rejected engine entry point calls by entry point.",
			}, []string{"entry_point"}),
			openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "margin_open_positions",
				Help: "Number of currently open positions.",
			}),
			requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "margin_rpc_request_duration_seconds",
				Help:    "Latency of RPC requests by route and status code.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(
			marginRegistry.eventsEmitted,
			marginRegistry.rejectedCalls,
			marginRegistry.openPositions,
			marginRegistry.requestDuration,
		)
	})
	return marginRegistry
}

func (m *MarginMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

func (m *MarginMetrics) ObserveRejectedCall(entryPoint string) {
	if m == nil {
		return
	}
	if entryPoint == "" {
		entryPoint = "unknown"
	}
	m.rejectedCalls.WithLabelValues(entryPoint).Inc()
}

func (m *MarginMetrics) SetOpenPositions(count float64) {
	if m == nil {
		return
	}
	m.openPositions.Set(count)
}

func (m *MarginMetrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, status).Observe(seconds)
}

// InstrumentedEmitter wraps an event emitter, counting every emitted event by
// type before forwarding it.
type InstrumentedEmitter struct {
	Next events.Emitter
}

func (e InstrumentedEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Margin().ObserveEvent(evt.EventType())
	if e.Next != nil {
		e.Next.Emit(evt)
	}
}
