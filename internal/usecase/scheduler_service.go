package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"background-tasks/internal/domain"
)

// SchedulerService loads the configured schedules into a scheduler and runs
// it until the context is cancelled.
type SchedulerService struct {
	scheduler domain.Scheduler
	schedules []*domain.Schedule
	logger    *slog.Logger
}

func NewSchedulerService(scheduler domain.Scheduler, schedules []*domain.Schedule, logger *slog.Logger) *SchedulerService {
	return &SchedulerService{
		scheduler: scheduler,
		schedules: schedules,
		logger:    logger.With("component", "scheduler_service"),
	}
}

// Start blocks until ctx is done. A cancelled context is a normal shutdown
// and yields a nil error.
func (s *SchedulerService) Start(ctx context.Context) error {
	for _, sch := range s.schedules {
		if err := s.scheduler.AddSchedule(sch); err != nil {
			return fmt.Errorf("failed to load schedule: %w", err)
		}
	}
	s.logger.Info("scheduler service starting", "schedules", len(s.schedules))

	err := s.scheduler.Start(ctx)
	s.logger.Info("scheduler service shut down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
