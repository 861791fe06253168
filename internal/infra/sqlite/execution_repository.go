// Package sqlite stores execution history in a SQLite database.
//
// The caller opens the *sql.DB and imports a driver, for example:
//
//	import _ "modernc.org/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"background-tasks/internal/domain"
)

// ExecutionRepository is a domain.ExecutionRepository backed by SQLite.
type ExecutionRepository struct {
	db *sql.DB
}

var _ domain.ExecutionRepository = (*ExecutionRepository)(nil)

// NewExecutionRepository creates the schema if needed and returns a repository.
func NewExecutionRepository(ctx context.Context, db *sql.DB) (*ExecutionRepository, error) {
	r := &ExecutionRepository{db: db}
	if err := r.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return r, nil
}

func (r *ExecutionRepository) initSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			worker_kind TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL,
			dispatcher_id TEXT NOT NULL
		);`,
	); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_executions_kind_start ON executions (worker_kind, start_time);`)
	return err
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (r *ExecutionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: execution record cannot be nil", domain.ErrInvalidArgument)
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO executions (id, order_id, worker_kind, start_time, end_time, status, error, dispatcher_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			order_id = excluded.order_id,
			worker_kind = excluded.worker_kind,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			error = excluded.error,
			dispatcher_id = excluded.dispatcher_id`,
		record.ID,
		record.OrderID,
		record.WorkerKind,
		toNanos(record.StartTime),
		toNanos(record.EndTime),
		string(record.Status),
		record.Error,
		record.DispatcherID,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution record %s: %w", record.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.ExecutionRecord, error) {
	var (
		record     domain.ExecutionRecord
		start, end int64
		status     string
	)
	if err := row.Scan(&record.ID, &record.OrderID, &record.WorkerKind, &start, &end, &status, &record.Error, &record.DispatcherID); err != nil {
		return nil, err
	}
	record.StartTime = fromNanos(start)
	record.EndTime = fromNanos(end)
	record.Status = domain.ExecutionStatus(status)
	return &record, nil
}

const selectColumns = `SELECT id, order_id, worker_kind, start_time, end_time, status, error, dispatcher_id FROM executions`

func (r *ExecutionRepository) Get(ctx context.Context, kind, executionID string) (*domain.ExecutionRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE worker_kind = ? AND id = ?`, kind, executionID)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrExecutionNotFound, kind, executionID)
		}
		return nil, fmt.Errorf("failed to get execution record %s/%s: %w", kind, executionID, err)
	}
	return record, nil
}

// ListByKind returns records newest first by start time.
func (r *ExecutionRepository) ListByKind(ctx context.Context, kind string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	records := []*domain.ExecutionRecord{}
	if pageSize <= 0 {
		return records, nil
	}
	if page < 1 {
		page = 1
	}

	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE worker_kind = ? ORDER BY start_time DESC, id DESC LIMIT ? OFFSET ?`,
		kind, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records for kind %s: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution records: %w", err)
	}
	return records, nil
}
