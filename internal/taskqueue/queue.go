// internal/taskqueue/queue.go
package taskqueue

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"background-tasks/internal/domain"
)

// Queue is an unbounded FIFO of pending work orders. It is safe for
// concurrent use by any number of producers and consumers.
//
// Orders live in a mutex-guarded slice; ready carries at most one pending
// wake-up. A consumer that takes an order while others remain passes the
// wake-up on, so no waiter sleeps while orders are queued.
type Queue struct {
	mu     sync.Mutex
	orders []domain.WorkOrder
	head   int
	ready  chan struct{}
}

// Ensure Queue implements domain.Enqueuer.
var _ domain.Enqueuer = (*Queue)(nil)

// New creates an empty queue.
func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Enqueue appends order to the tail of the queue and wakes one waiting
// consumer. It never blocks on consumers.
func (q *Queue) Enqueue(order domain.WorkOrder) error {
	if isNil(order) {
		return fmt.Errorf("%w: order cannot be nil", domain.ErrInvalidArgument)
	}

	q.mu.Lock()
	q.orders = append(q.orders, order)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Dequeue removes and returns the order at the head of the queue, blocking
// until one is available or ctx is done. On cancellation it returns
// ctx.Err() and leaves the queue untouched, even when orders are pending.
func (q *Queue) Dequeue(ctx context.Context) (domain.WorkOrder, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if order, ok := q.tryPop(); ok {
			return order, nil
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of orders waiting to be dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.orders) - q.head
}

func (q *Queue) tryPop() (domain.WorkOrder, bool) {
	q.mu.Lock()
	if q.head == len(q.orders) {
		q.mu.Unlock()
		return nil, false
	}

	order := q.orders[q.head]
	q.orders[q.head] = nil
	q.head++
	remaining := len(q.orders) - q.head
	q.compact()
	q.mu.Unlock()

	if remaining > 0 {
		q.signal()
	}
	return order, true
}

// compact drops the consumed prefix once it dominates the backing array.
// Caller must hold q.mu.
func (q *Queue) compact() {
	if q.head == len(q.orders) {
		q.orders = q.orders[:0]
		q.head = 0
		return
	}
	if q.head > 64 && q.head*2 >= len(q.orders) {
		n := copy(q.orders, q.orders[q.head:])
		clear(q.orders[n:])
		q.orders = q.orders[:n]
		q.head = 0
	}
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func isNil(order domain.WorkOrder) bool {
	if order == nil {
		return true
	}
	v := reflect.ValueOf(order)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}
