package domain

import "context"

// Schedule produces a fresh work order every time its cron expression fires.
type Schedule struct {
	Name     string
	CronExpr string
	Build    func() WorkOrder
}

type Scheduler interface {
	Start(ctx context.Context) error
	Stop()

	AddSchedule(s *Schedule) error
	RemoveSchedule(name string) error
}
