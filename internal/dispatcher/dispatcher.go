// Package dispatcher runs the background loop that drains the task queue
// and hands each work order to its worker.
//
// A Dispatcher moves through Created → Running → Stopping → Stopped. Start
// spawns the loop and returns at once. Stop cancels the shutdown context,
// which aborts the idle wait and is passed to every running worker, then
// waits for the loop to finish or for the caller's context to expire.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"background-tasks/internal/domain"
	"background-tasks/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "background-tasks-dispatcher"

	// recordSaveTimeout bounds saving the final execution record, which
	// happens after the shutdown context may already be cancelled.
	recordSaveTimeout = 5 * time.Second

	// dequeueRetryDelay spaces out retries when the queue reports an
	// error other than shutdown.
	dequeueRetryDelay = 100 * time.Millisecond
)

// State is the lifecycle state of a Dispatcher.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dequeuer is the consuming side of the task queue.
type Dequeuer interface {
	Dequeue(ctx context.Context) (domain.WorkOrder, error)
}

// Dispatcher pulls work orders off a queue and executes each one in a fresh
// scope. A failing order is logged and dropped; it never stops the loop.
type Dispatcher struct {
	id      string
	queue   Dequeuer
	scopes  domain.ScopeFactory
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	records domain.ExecutionRepository

	mu       sync.Mutex
	state    State
	shutdown context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a dispatcher that consumes queue and resolves workers from
// scopes.
func New(queue Dequeuer, scopes domain.ScopeFactory, opts ...Option) (*Dispatcher, error) {
	if queue == nil {
		return nil, fmt.Errorf("%w: queue cannot be nil", domain.ErrInvalidArgument)
	}
	if scopes == nil {
		return nil, fmt.Errorf("%w: scope factory cannot be nil", domain.ErrInvalidArgument)
	}

	d := &Dispatcher{
		id:     uuid.NewString(),
		queue:  queue,
		scopes: scopes,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		state:  StateCreated,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher", "dispatcher_id", d.id)
	return d, nil
}

// ID returns the dispatcher ID.
func (d *Dispatcher) ID() string { return d.id }

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Done returns a channel that is closed once the dispatch loop has exited.
// After a Stop that timed out, Done still closes when the abandoned loop
// finally returns.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Start begins the dispatch loop in the background and returns immediately.
// Values of ctx are inherited by the loop, its cancellation is not.
func (d *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: context cannot be nil", domain.ErrInvalidArgument)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateCreated {
		return fmt.Errorf("%w: cannot start dispatcher in state %s", domain.ErrInvalidState, d.state)
	}

	d.shutdown, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.state = StateRunning
	d.logger.Info("dispatcher is starting")

	go d.run()
	return nil
}

// Stop signals shutdown and waits until the loop exits or ctx is done,
// whichever comes first. Running workers observe the cancellation through
// their context; they are never forcibly interrupted. If ctx expires first,
// Stop returns ErrShutdownTimeout and the loop is left to finish on its own.
// Calling Stop again, or concurrently, is a no-op.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: context cannot be nil", domain.ErrInvalidArgument)
	}

	d.mu.Lock()
	switch d.state {
	case StateCreated:
		d.state = StateStopped
		close(d.done)
		d.mu.Unlock()
		return nil
	case StateStopping, StateStopped:
		d.mu.Unlock()
		return nil
	}
	d.state = StateStopping
	d.mu.Unlock()

	d.logger.Info("dispatcher is stopping")
	d.cancel()

	var err error
	select {
	case <-d.done:
		d.logger.Info("dispatcher stopped")
	case <-ctx.Done():
		err = fmt.Errorf("%w: %w", domain.ErrShutdownTimeout, ctx.Err())
		d.logger.Warn("dispatcher did not stop in time, abandoning running work", "error", ctx.Err())
	}

	d.mu.Lock()
	d.state = StateStopped
	d.mu.Unlock()
	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)

	if d.metrics != nil {
		d.metrics.DispatcherRunning.Set(1)
		defer d.metrics.DispatcherRunning.Set(0)
	}

	for {
		// Orders still queued at shutdown are left in the queue.
		if d.shutdown.Err() != nil {
			return
		}
		order, err := d.queue.Dequeue(d.shutdown)
		if err != nil {
			if d.shutdown.Err() != nil {
				return
			}
			d.logger.Error("failed to dequeue work order", "error", err)
			select {
			case <-time.After(dequeueRetryDelay):
			case <-d.shutdown.Done():
				return
			}
			continue
		}
		if order == nil {
			continue
		}
		d.execute(order)
	}
}

// execute runs a single order and records its outcome. It never panics and
// never returns an error: failures end here.
func (d *Dispatcher) execute(order domain.WorkOrder) {
	kind := order.WorkerKind()
	logger := d.logger.With("order_id", order.OrderID(), "worker_kind", kind)

	ctx, span := d.tracer.Start(d.shutdown, "dispatcher.execute",
		trace.WithAttributes(
			attribute.String("order.id", order.OrderID()),
			attribute.String("worker.kind", kind),
		))
	defer span.End()

	record := &domain.ExecutionRecord{
		ID:           uuid.NewString(),
		OrderID:      order.OrderID(),
		WorkerKind:   kind,
		StartTime:    time.Now(),
		Status:       domain.ExecutionStatusRunning,
		DispatcherID: d.id,
	}
	d.saveRecord(ctx, logger, record)

	logger.Debug("executing work order")
	err := d.invoke(ctx, logger, order)

	record.EndTime = time.Now()
	switch {
	case err == nil:
		record.Status = domain.ExecutionStatusSuccess
		span.SetStatus(codes.Ok, "work order executed")
	case d.shutdown.Err() != nil && errors.Is(err, context.Canceled):
		record.Status = domain.ExecutionStatusCanceled
		record.Error = err.Error()
		span.AddEvent("canceled_by_shutdown")
		logger.Info("work order canceled by shutdown")
	case errors.Is(err, domain.ErrWorkerNotRegistered), errors.Is(err, domain.ErrWorkerMismatch),
		errors.Is(err, domain.ErrWorkerCycle):
		record.Status = domain.ExecutionStatusFailed
		record.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker resolution failed")
		logger.Error("no worker available for work order", "error", err)
	default:
		record.Status = domain.ExecutionStatusFailed
		record.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "work order failed")
		logger.Error("error occurred executing work order", "error", err)
	}

	if d.metrics != nil {
		d.metrics.OrderExecutionsTotal.WithLabelValues(kind, string(record.Status)).Inc()
		d.metrics.OrderExecutionDuration.WithLabelValues(kind).Observe(record.EndTime.Sub(record.StartTime).Seconds())
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordSaveTimeout)
	defer cancel()
	d.saveRecord(saveCtx, logger, record)
}

// invoke opens a scope, runs the order in it and closes the scope on every
// path. Panics are converted to errors.
func (d *Dispatcher) invoke(ctx context.Context, logger *slog.Logger, order domain.WorkOrder) (err error) {
	scope, err := d.scopes.NewScope(ctx)
	if err != nil {
		return fmt.Errorf("open execution scope: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}
		if closeErr := scope.Close(); closeErr != nil {
			logger.Error("failed to close execution scope", "error", closeErr)
		}
	}()

	return order.ExecuteWith(ctx, scope)
}

func (d *Dispatcher) saveRecord(ctx context.Context, logger *slog.Logger, record *domain.ExecutionRecord) {
	if d.records == nil {
		return
	}
	if err := d.records.Save(ctx, record); err != nil {
		logger.Error("failed to save execution record", "execution_id", record.ID, "status", record.Status, "error", err)
	}
}
