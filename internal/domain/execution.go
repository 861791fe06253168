// internal/domain/execution.go
package domain

import (
	"context"
	"fmt"
	"time"
)

// ExecutionStatus defines the status of a work order execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning  ExecutionStatus = "running"
	ExecutionStatusSuccess  ExecutionStatus = "success"
	ExecutionStatusFailed   ExecutionStatus = "failed"
	ExecutionStatusCanceled ExecutionStatus = "canceled"
)

// ExecutionRecord represents a single execution of a work order.
type ExecutionRecord struct {
	ID           string          `json:"id"`                      // Unique ID for this execution
	OrderID      string          `json:"order_id"`                // Order that was executed
	WorkerKind   string          `json:"worker_kind"`             // Kind of worker that ran it
	StartTime    time.Time       `json:"start_time"`              // When the execution started
	EndTime      time.Time       `json:"end_time"`                // When the execution ended
	Status       ExecutionStatus `json:"status"`                  // running, success, failed, canceled
	Error        string          `json:"error,omitempty"`         // Error message if execution failed
	DispatcherID string          `json:"dispatcher_id,omitempty"` // Dispatcher that ran the order
}

// Validate checks if the execution record is valid.
func (r *ExecutionRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("execution record ID cannot be empty")
	}
	if r.WorkerKind == "" {
		return fmt.Errorf("execution record worker kind cannot be empty")
	}
	if r.StartTime.IsZero() {
		return fmt.Errorf("execution record start time cannot be zero")
	}
	switch r.Status {
	case ExecutionStatusRunning, ExecutionStatusSuccess, ExecutionStatusFailed, ExecutionStatusCanceled:
	case "":
		return fmt.Errorf("execution record status cannot be empty")
	default:
		return fmt.Errorf("invalid execution record status: %s", r.Status)
	}
	return nil
}

// ExecutionRepository defines the interface for persisting and retrieving execution records.
type ExecutionRepository interface {
	// Save persists a single execution record, replacing any record with the same ID.
	Save(ctx context.Context, record *ExecutionRecord) error
	// ListByKind retrieves execution records for a worker kind, newest first.
	// page is 1-based.
	ListByKind(ctx context.Context, kind string, page, pageSize int) ([]*ExecutionRecord, error)
	// Get retrieves a single execution record. Returns ErrExecutionNotFound if missing.
	Get(ctx context.Context, kind, executionID string) (*ExecutionRecord, error)
}

// PageBounds converts a 1-based page into slice bounds over n items.
func PageBounds(n, page, pageSize int) (start, end int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		return 0, 0
	}
	start = (page - 1) * pageSize
	if start > n {
		start = n
	}
	end = start + pageSize
	if end > n {
		end = n
	}
	return start, end
}
