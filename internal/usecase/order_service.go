package usecase

import (
	"context"
	"log/slog"

	"background-tasks/internal/domain"
	"background-tasks/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderService is the producer-facing entry point: it submits work orders
// to the queue and answers questions about past executions.
type OrderService struct {
	queue    domain.Enqueuer
	execRepo domain.ExecutionRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

var _ domain.Submitter = (*OrderService)(nil)

// NewOrderService creates a new OrderService instance. m may be nil.
func NewOrderService(queue domain.Enqueuer, execRepo domain.ExecutionRepository, m *metrics.Metrics, logger *slog.Logger) *OrderService {
	return &OrderService{
		queue:    queue,
		execRepo: execRepo,
		metrics:  m,
		logger:   logger.With("component", "order_service"),
		tracer:   otel.Tracer("background-tasks-usecase"),
	}
}

// Submit enqueues order for background execution. It returns as soon as the
// order is queued.
func (s *OrderService) Submit(ctx context.Context, order domain.WorkOrder) error {
	_, span := s.tracer.Start(ctx, "service.Submit")
	defer span.End()

	// The queue rejects nil and typed-nil orders, so order is safe to use
	// once Enqueue succeeds.
	if err := s.queue.Enqueue(order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue work order")
		return err
	}
	span.SetAttributes(
		attribute.String("order.id", order.OrderID()),
		attribute.String("worker.kind", order.WorkerKind()),
	)

	if s.metrics != nil {
		s.metrics.OrdersEnqueuedTotal.WithLabelValues(order.WorkerKind()).Inc()
	}
	s.logger.Debug("work order enqueued", "order_id", order.OrderID(), "worker_kind", order.WorkerKind())
	return nil
}

// ListHistory lists the execution history for a worker kind, newest first.
func (s *OrderService) ListHistory(ctx context.Context, kind string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListHistory")
	defer span.End()
	span.SetAttributes(
		attribute.String("worker.kind", kind),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	records, err := s.execRepo.ListByKind(ctx, kind, page, pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list execution history from repository")
	}
	return records, err
}

// GetExecution returns a single execution record.
func (s *OrderService) GetExecution(ctx context.Context, kind, executionID string) (*domain.ExecutionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetExecution")
	defer span.End()
	span.SetAttributes(
		attribute.String("worker.kind", kind),
		attribute.String("execution.id", executionID),
	)

	record, err := s.execRepo.Get(ctx, kind, executionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get execution record from repository")
	}
	return record, err
}
