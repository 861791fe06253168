// Package orderspec turns a kind-tagged description of a work order, as it
// arrives from the HTTP API or the config file, into a concrete order.
package orderspec

import (
	"fmt"

	"background-tasks/internal/domain"
	httpworker "background-tasks/internal/infra/http"
	"background-tasks/internal/infra/shell"
)

// Spec describes an order of one of the built-in kinds.
type Spec struct {
	Kind    string
	URL     string
	Method  string
	Body    string
	Headers map[string]string
	Command string
}

// Build creates a fresh work order from s.
func Build(s Spec) (domain.WorkOrder, error) {
	switch s.Kind {
	case httpworker.Kind:
		return httpworker.NewCallOrder(s.Method, s.URL, s.Body, s.Headers)
	case shell.Kind:
		return shell.NewCommandOrder(s.Command)
	default:
		return nil, fmt.Errorf("%w: unknown order kind %q", domain.ErrInvalidArgument, s.Kind)
	}
}

// NewSchedule returns a schedule that builds a fresh order from s on every
// tick. s is checked once up front so a bad spec fails at load time.
func NewSchedule(name, cronExpr string, s Spec) (*domain.Schedule, error) {
	if _, err := Build(s); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", name, err)
	}
	return &domain.Schedule{
		Name:     name,
		CronExpr: cronExpr,
		Build: func() domain.WorkOrder {
			order, err := Build(s)
			if err != nil {
				return nil
			}
			return order
		},
	}, nil
}
