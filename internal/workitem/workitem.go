// Package workitem lets producers run an arbitrary function in the
// background without declaring a dedicated work order type.
//
//	id, err := workitem.QueueWork(queue, func(ctx context.Context) error {
//		return mailer.Send(ctx, msg)
//	})
//
// The paired worker must be registered once at startup with Register.
package workitem

import (
	"context"
	"fmt"

	"background-tasks/internal/domain"
	"background-tasks/internal/worker"
)

// Kind is the worker kind that executes ad-hoc orders.
const Kind = "workitem"

// Func is the function run by an ad-hoc order. It receives the dispatcher's
// shutdown-aware context and should return promptly once it is done.
type Func func(ctx context.Context) error

// Order wraps a Func as a work order.
type Order struct {
	domain.Meta
	Fn Func
}

// NewOrder creates an ad-hoc order around fn.
func NewOrder(fn Func) (*Order, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: work item function cannot be nil", domain.ErrInvalidArgument)
	}
	return &Order{Meta: domain.NewMeta(), Fn: fn}, nil
}

// WorkerKind implements domain.WorkOrder.
func (o *Order) WorkerKind() string { return Kind }

// ExecuteWith implements domain.WorkOrder.
func (o *Order) ExecuteWith(ctx context.Context, r domain.Resolver) error {
	return domain.Execute(ctx, r, o)
}

// Worker executes ad-hoc orders by calling their function.
type Worker struct{}

// DoWork implements domain.Worker.
func (Worker) DoWork(ctx context.Context, order *Order) error {
	return order.Fn(ctx)
}

// Register adds the ad-hoc worker to r.
func Register(r *worker.Registry) error {
	return worker.Register(r, Kind, func(*worker.Scope) (Worker, error) {
		return Worker{}, nil
	})
}

// QueueWork schedules fn to run in the background and returns the order ID.
func QueueWork(q domain.Enqueuer, fn Func) (string, error) {
	if q == nil {
		return "", fmt.Errorf("%w: queue cannot be nil", domain.ErrInvalidArgument)
	}
	order, err := NewOrder(fn)
	if err != nil {
		return "", err
	}
	if err := q.Enqueue(order); err != nil {
		return "", err
	}
	return order.OrderID(), nil
}
