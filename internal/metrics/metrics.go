// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskhost"

// Metrics holds the collectors of one task host. Each instance registers on
// its own Registerer so tests can use isolated registries.
type Metrics struct {
	// HttpRequestsTotal counts HTTP requests handled by the producer API.
	HttpRequestsTotal *prometheus.CounterVec

	// OrdersEnqueuedTotal counts work orders accepted by the queue.
	OrdersEnqueuedTotal *prometheus.CounterVec

	// OrderExecutionsTotal counts finished executions by outcome.
	OrderExecutionsTotal *prometheus.CounterVec

	// OrderExecutionDuration observes how long workers ran.
	OrderExecutionDuration *prometheus.HistogramVec

	// DispatcherRunning is 1 while the dispatch loop is running.
	DispatcherRunning prometheus.Gauge

	reg prometheus.Registerer
}

// New creates the task host collectors on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HttpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of http requests handled by the service.",
			},
			[]string{"path", "method", "code"},
		),
		OrdersEnqueuedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_enqueued_total",
				Help:      "Total number of work orders enqueued.",
			},
			[]string{"worker_kind"},
		),
		OrderExecutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_executions_total",
				Help:      "Total number of work order executions.",
			},
			[]string{"worker_kind", "status"}, // success, failed, canceled
		),
		OrderExecutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "order_execution_duration_seconds",
				Help:      "Time spent executing work orders.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"worker_kind"},
		),
		DispatcherRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_running",
			Help:      "Is the dispatch loop running. 1 if running, 0 otherwise.",
		}),
		reg: reg,
	}
}

// RegisterQueueDepth exposes the current queue depth reported by depth.
func (m *Metrics) RegisterQueueDepth(depth func() int) {
	promauto.With(m.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of work orders waiting in the queue.",
		},
		func() float64 { return float64(depth()) },
	)
}
