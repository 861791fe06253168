package domain

import "context"

// Enqueuer accepts work orders for background execution.
// Enqueue never blocks waiting for the order to run.
type Enqueuer interface {
	Enqueue(order WorkOrder) error
}

// Submitter hands work orders to the background host on behalf of a
// producer, such as the cron scheduler or the HTTP API.
type Submitter interface {
	Submit(ctx context.Context, order WorkOrder) error
}
