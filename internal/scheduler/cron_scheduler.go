// internal/scheduler/cron_scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"background-tasks/internal/domain"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// cronScheduler only triggers: on each tick it builds a fresh work order and
// submits it. Execution happens on the dispatcher.
type cronScheduler struct {
	cron      *cron.Cron
	submitter domain.Submitter
	mu        sync.Mutex
	entries   map[string]cron.EntryID
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewCronScheduler creates a scheduler that parses six-field cron
// expressions (with seconds).
func NewCronScheduler(submitter domain.Submitter, logger *slog.Logger) domain.Scheduler {
	return &cronScheduler{
		cron:      cron.New(cron.WithSeconds()),
		submitter: submitter,
		entries:   make(map[string]cron.EntryID),
		logger:    logger.With("component", "cron-scheduler"),
		tracer:    otel.Tracer("background-tasks-scheduler"),
	}
}

func (s *cronScheduler) Start(ctx context.Context) error {
	s.logger.Info("cron scheduler started")
	s.cron.Start()
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// Stop halts the cron loop and waits for running ticks to return.
func (s *cronScheduler) Stop() {
	s.logger.Info("cron scheduler stopping...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("cron scheduler stopped")
}

// AddSchedule adds or replaces a schedule by name.
func (s *cronScheduler) AddSchedule(sch *domain.Schedule) error {
	if sch == nil || sch.Name == "" || sch.Build == nil {
		return fmt.Errorf("%w: schedule needs a name and a build function", domain.ErrInvalidArgument)
	}

	job := &cronJobWrapper{
		schedule:  sch,
		submitter: s.submitter,
		logger:    s.logger.With("schedule_name", sch.Name),
		tracer:    s.tracer,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddJob(sch.CronExpr, job)
	if err != nil {
		s.logger.Error("failed to add schedule to cron", "schedule_name", sch.Name, "error", err)
		return fmt.Errorf("%w: invalid cron expression %q: %w", domain.ErrInvalidArgument, sch.CronExpr, err)
	}
	if old, ok := s.entries[sch.Name]; ok {
		s.cron.Remove(old)
	}
	s.entries[sch.Name] = entryID
	s.logger.Info("added schedule", "schedule_name", sch.Name, "cron_expr", sch.CronExpr)
	return nil
}

// RemoveSchedule removes a schedule. Removing an unknown name is a no-op.
func (s *cronScheduler) RemoveSchedule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
		s.logger.Info("removed schedule", "schedule_name", name)
	}
	return nil
}

type cronJobWrapper struct {
	schedule  *domain.Schedule
	submitter domain.Submitter
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Run is called by the cron library on every tick.
func (w *cronJobWrapper) Run() {
	ctx, span := w.tracer.Start(context.Background(), "scheduler.Submit",
		trace.WithAttributes(attribute.String("schedule.name", w.schedule.Name)))
	defer span.End()

	order := w.schedule.Build()
	if order == nil {
		w.logger.Error("schedule built a nil work order")
		span.SetStatus(codes.Error, "nil work order")
		return
	}
	span.SetAttributes(attribute.String("order.id", order.OrderID()))

	if err := w.submitter.Submit(ctx, order); err != nil {
		w.logger.Error("failed to submit scheduled work order", "order_id", order.OrderID(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return
	}
	w.logger.Info("submitted scheduled work order", "order_id", order.OrderID())
}
