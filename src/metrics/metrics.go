package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------

// Metrics owns the process-wide counters and gauges. It is constructed once
// at startup and injected into every component; there is no package-level
// registry.
type Metrics struct {
	registry *prometheus.Registry

	TicksReceived   prometheus.Counter
	TicksAccepted   prometheus.Counter
	TicksRejected   *prometheus.CounterVec
	CandlesClosed   prometheus.Counter
	TradesExecuted  prometheus.Counter
	OrdersSubmitted prometheus.Counter
	FetchCycles     *prometheus.CounterVec
	WSClients       prometheus.Gauge
	DroppedMessages prometheus.Counter
	BreakerState    prometheus.Gauge
}

// -----------------------------------------------------------------------------

// New builds a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TicksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_ticks_received_total",
			Help: "Raw ticks delivered by the upstream source.",
		}),
		TicksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_ticks_accepted_total",
			Help: "Ticks that passed validation and deduplication.",
		}),
		TicksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_ticks_rejected_total",
			Help: "Ticks rejected by the validator, by reason.",
		}, []string{"reason"}),
		CandlesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_candles_closed_total",
			Help: "Closed OHLCV candles across all timeframes.",
		}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_trades_executed_total",
			Help: "Executions produced by the matching engine.",
		}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_orders_submitted_total",
			Help: "Orders accepted into the matching engine.",
		}),
		FetchCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_fetch_cycles_total",
			Help: "Ingestion cycles, by result.",
		}, []string{"result"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_ws_clients",
			Help: "Currently connected streaming clients.",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_dropped_messages_total",
			Help: "Frames dropped because a client queue overflowed.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_breaker_state",
			Help: "Quote source circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
	}

	start := time.Now()
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "marketfeed_uptime_seconds",
		Help: "Process uptime in seconds.",
	}, func() float64 {
		return time.Since(start).Seconds()
	})
	heap := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "marketfeed_heap_alloc_bytes",
		Help: "Bytes of allocated heap objects.",
	}, func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.HeapAlloc)
	})

	m.registry.MustRegister(
		m.TicksReceived, m.TicksAccepted, m.TicksRejected,
		m.CandlesClosed, m.TradesExecuted, m.OrdersSubmitted,
		m.FetchCycles, m.WSClients, m.DroppedMessages, m.BreakerState,
		uptime, heap,
	)

	return m
}

// -----------------------------------------------------------------------------

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
