// internal/domain/order.go
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkOrder represents background work that needs to be done.
// Every order is permanently paired with the worker kind that executes it,
// so the dispatcher never needs a lookup table of its own.
type WorkOrder interface {
	// OrderID identifies the order in logs and execution records.
	OrderID() string
	// WorkerKind names the worker registered to execute this order.
	WorkerKind() string
	// ExecuteWith resolves the paired worker from r and runs the order on it.
	// Implementations normally delegate to Execute.
	ExecuteWith(ctx context.Context, r Resolver) error
}

// Worker executes work orders of exactly one variant.
type Worker[O WorkOrder] interface {
	DoWork(ctx context.Context, order O) error
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc[O WorkOrder] func(ctx context.Context, order O) error

// DoWork calls f(ctx, order).
func (f WorkerFunc[O]) DoWork(ctx context.Context, order O) error {
	return f(ctx, order)
}

// Execute resolves the worker paired with order and invokes it.
func Execute[O WorkOrder](ctx context.Context, r Resolver, order O) error {
	kind := order.WorkerKind()
	v, err := r.Resolve(kind)
	if err != nil {
		return err
	}
	w, ok := v.(Worker[O])
	if !ok {
		return fmt.Errorf("%w: kind %q resolved to %T", ErrWorkerMismatch, kind, v)
	}
	return w.DoWork(ctx, order)
}

// Meta carries the identity shared by all work orders. Embed it in an order
// type to get OrderID for free.
type Meta struct {
	ID         string    `json:"id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewMeta returns a Meta with a fresh random ID.
func NewMeta() Meta {
	return Meta{
		ID:         uuid.NewString(),
		EnqueuedAt: time.Now(),
	}
}

// OrderID returns the order identity.
func (m Meta) OrderID() string { return m.ID }
