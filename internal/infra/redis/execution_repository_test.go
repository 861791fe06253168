package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"background-tasks/internal/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "taskhost:test:"

// newTestRepository connects to the Redis named by TASKHOST_TEST_REDIS_ADDR
// and clears the test prefix. The test is skipped when the variable is unset.
func newTestRepository(t *testing.T) *ExecutionRepository {
	t.Helper()

	addr := os.Getenv("TASKHOST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TASKHOST_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, addr, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	iter := client.Scan(ctx, 0, testPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		require.NoError(t, client.Del(ctx, iter.Val()).Err())
	}
	require.NoError(t, iter.Err())

	return NewExecutionRepository(client, testPrefix)
}

func TestExecutionRepository_SaveGetList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &domain.ExecutionRecord{
			ID:         fmt.Sprintf("e%d", i),
			WorkerKind: "email",
			StartTime:  base.Add(time.Duration(i) * time.Second),
			Status:     domain.ExecutionStatusSuccess,
		}))
	}

	got, err := repo.Get(ctx, "email", "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusSuccess, got.Status)

	page, err := repo.ListByKind(ctx, "email", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e2", page[0].ID)
	assert.Equal(t, "e1", page[1].ID)

	_, err = repo.Get(ctx, "email", "missing")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestExecutionRepository_SaveInvalid(t *testing.T) {
	repo := NewExecutionRepository(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), "")
	assert.Equal(t, DefaultPrefix, repo.prefix)
	assert.ErrorIs(t, repo.Save(context.Background(), nil), domain.ErrInvalidArgument)
	assert.ErrorIs(t, repo.Save(context.Background(), &domain.ExecutionRecord{ID: "x"}), domain.ErrInvalidArgument)

	empty, err := repo.ListByKind(context.Background(), "email", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecodeValues(t *testing.T) {
	good := `{"id":"e1","worker_kind":"email","start_time":"2025-03-01T12:00:00Z","status":"success"}`

	records, err := decodeValues("email", []string{"e1", "gone"}, []any{good, nil})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "e1", records[0].ID)

	_, err = decodeValues("email", []string{"e1", "e2"}, []any{good, "{broken"})
	assert.ErrorIs(t, err, domain.ErrCorruptRecord)
	assert.Contains(t, err.Error(), "email/e2")
}

func TestExecutionRepository_ListReportsCorruptPayload(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.ExecutionRecord{
		ID:         "e1",
		WorkerKind: "email",
		StartTime:  time.Now(),
		Status:     domain.ExecutionStatusSuccess,
	}))
	client := repo.client
	require.NoError(t, client.Set(ctx, repo.keyRecord("email", "e1"), "{broken", 0).Err())

	_, err := repo.ListByKind(ctx, "email", 1, 10)
	assert.ErrorIs(t, err, domain.ErrCorruptRecord)

	_, err = repo.Get(ctx, "email", "e1")
	assert.ErrorIs(t, err, domain.ErrCorruptRecord)
}
