package workitem_test

import (
	"context"
	"testing"

	"background-tasks/internal/domain"
	"background-tasks/internal/taskqueue"
	"background-tasks/internal/worker"
	"background-tasks/internal/workitem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueWork_RunsThroughRegisteredWorker(t *testing.T) {
	q := taskqueue.New()
	r := worker.NewRegistry()
	require.NoError(t, workitem.Register(r))

	called := false
	id, err := workitem.QueueWork(q, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	order, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, order.OrderID())
	assert.Equal(t, workitem.Kind, order.WorkerKind())

	scope, err := r.NewScope(context.Background())
	require.NoError(t, err)
	defer scope.Close()

	require.NoError(t, order.ExecuteWith(context.Background(), scope))
	assert.True(t, called)
}

func TestQueueWork_PassesContext(t *testing.T) {
	r := worker.NewRegistry()
	require.NoError(t, workitem.Register(r))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	order, err := workitem.NewOrder(func(ctx context.Context) error { return ctx.Err() })
	require.NoError(t, err)

	scope, _ := r.NewScope(ctx)
	err = order.ExecuteWith(ctx, scope)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueWork_InvalidArguments(t *testing.T) {
	q := taskqueue.New()

	_, err := workitem.QueueWork(q, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 0, q.Len())

	_, err = workitem.QueueWork(nil, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestOrder_WithoutRegisteredWorker(t *testing.T) {
	order, err := workitem.NewOrder(func(context.Context) error { return nil })
	require.NoError(t, err)

	scope, _ := worker.NewRegistry().NewScope(context.Background())
	err = order.ExecuteWith(context.Background(), scope)
	assert.ErrorIs(t, err, domain.ErrWorkerNotRegistered)
}
