package dispatcher

import (
	"log/slog"

	"background-tasks/internal/domain"
	"background-tasks/internal/metrics"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. If not set,
// the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithExecutionRepository records every execution in repo. Failures to save
// are logged and never stop the dispatch loop.
func WithExecutionRepository(repo domain.ExecutionRepository) Option {
	return func(d *Dispatcher) {
		d.records = repo
	}
}

// WithID sets the dispatcher ID stored in execution records.
func WithID(id string) Option {
	return func(d *Dispatcher) {
		if id != "" {
			d.id = id
		}
	}
}
