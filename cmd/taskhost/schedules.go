package main

import (
	"background-tasks/internal/config"
	"background-tasks/internal/domain"
	"background-tasks/internal/orderspec"
)

func buildSchedules(cfgs []config.ScheduleConfig) ([]*domain.Schedule, error) {
	schedules := make([]*domain.Schedule, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := orderspec.NewSchedule(c.Name, c.CronExpr, orderspec.Spec{
			Kind:    c.Kind,
			URL:     c.URL,
			Method:  c.Method,
			Command: c.Command,
		})
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}
