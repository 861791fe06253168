package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"background-tasks/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestRepository(t *testing.T) *ExecutionRepository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewExecutionRepository(context.Background(), db)
	require.NoError(t, err)
	return repo
}

func TestExecutionRepository_SaveUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	start := time.Now()
	record := &domain.ExecutionRecord{
		ID:           "e1",
		OrderID:      "o1",
		WorkerKind:   "email",
		StartTime:    start,
		Status:       domain.ExecutionStatusRunning,
		DispatcherID: "d1",
	}
	require.NoError(t, repo.Save(ctx, record))

	got, err := repo.Get(ctx, "email", "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusRunning, got.Status)
	assert.True(t, got.EndTime.IsZero())
	assert.True(t, got.StartTime.Equal(start))

	record.Status = domain.ExecutionStatusFailed
	record.Error = "boom"
	record.EndTime = start.Add(time.Second)
	require.NoError(t, repo.Save(ctx, record))

	got, err = repo.Get(ctx, "email", "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, "o1", got.OrderID)
	assert.Equal(t, "d1", got.DispatcherID)
	assert.True(t, got.EndTime.Equal(record.EndTime))
}

func TestExecutionRepository_GetMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), "email", "missing")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestExecutionRepository_SaveInvalid(t *testing.T) {
	repo := newTestRepository(t)

	assert.ErrorIs(t, repo.Save(context.Background(), nil), domain.ErrInvalidArgument)
	assert.ErrorIs(t, repo.Save(context.Background(), &domain.ExecutionRecord{ID: "x", WorkerKind: "k"}), domain.ErrInvalidArgument)
}

func TestExecutionRepository_ListByKind(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &domain.ExecutionRecord{
			ID:         fmt.Sprintf("e%d", i),
			WorkerKind: "email",
			StartTime:  base.Add(time.Duration(i) * time.Second),
			Status:     domain.ExecutionStatusSuccess,
		}))
	}
	require.NoError(t, repo.Save(ctx, &domain.ExecutionRecord{
		ID:         "s0",
		WorkerKind: "shell",
		StartTime:  base,
		Status:     domain.ExecutionStatusSuccess,
	}))

	page1, err := repo.ListByKind(ctx, "email", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "e4", page1[0].ID)
	assert.Equal(t, "e3", page1[1].ID)

	page3, err := repo.ListByKind(ctx, "email", 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "e0", page3[0].ID)

	none, err := repo.ListByKind(ctx, "email", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
