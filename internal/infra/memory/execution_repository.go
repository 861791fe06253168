// Package memory holds an in-process execution history, used when no
// external store is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"background-tasks/internal/domain"
)

// ExecutionRepository keeps execution records in memory, grouped by worker
// kind. Records are copied on the way in and out.
type ExecutionRepository struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.ExecutionRecord
}

var _ domain.ExecutionRepository = (*ExecutionRepository)(nil)

func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{records: make(map[string]map[string]domain.ExecutionRecord)}
}

func (r *ExecutionRepository) Save(_ context.Context, record *domain.ExecutionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: execution record cannot be nil", domain.ErrInvalidArgument)
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.records[record.WorkerKind]
	if !ok {
		byID = make(map[string]domain.ExecutionRecord)
		r.records[record.WorkerKind] = byID
	}
	byID[record.ID] = *record
	return nil
}

func (r *ExecutionRepository) Get(_ context.Context, kind, executionID string) (*domain.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[kind][executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrExecutionNotFound, kind, executionID)
	}
	return &record, nil
}

// ListByKind returns records newest first by start time.
func (r *ExecutionRepository) ListByKind(_ context.Context, kind string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	r.mu.RLock()
	all := make([]domain.ExecutionRecord, 0, len(r.records[kind]))
	for _, record := range r.records[kind] {
		all = append(all, record)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].StartTime.Equal(all[j].StartTime) {
			return all[i].ID > all[j].ID
		}
		return all[i].StartTime.After(all[j].StartTime)
	})

	start, end := domain.PageBounds(len(all), page, pageSize)
	out := make([]*domain.ExecutionRecord, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, &all[i])
	}
	return out, nil
}

// Len returns the total number of stored records.
func (r *ExecutionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, byID := range r.records {
		n += len(byID)
	}
	return n
}
