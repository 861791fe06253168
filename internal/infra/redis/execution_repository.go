// Package redis stores execution history in Redis.
//
// Keys:
//
//	<prefix>exec:<kind>:<id>   => JSON-encoded execution record
//	<prefix>idx:<kind>         => ZSET of execution IDs scored by start time
package redis

import (
	"context"
	"errors"
	"fmt"

	"background-tasks/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "taskhost:"

// ExecutionRepository is a domain.ExecutionRepository backed by Redis.
type ExecutionRepository struct {
	client goredis.Cmdable
	prefix string
}

var _ domain.ExecutionRepository = (*ExecutionRepository)(nil)

// NewExecutionRepository creates a repository using client. An empty prefix
// means DefaultPrefix.
func NewExecutionRepository(client goredis.Cmdable, prefix string) *ExecutionRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ExecutionRepository{client: client, prefix: prefix}
}

// NewClient connects to a single Redis node and checks it with PING.
func NewClient(ctx context.Context, addr string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *ExecutionRepository) keyRecord(kind, id string) string {
	return r.prefix + "exec:" + kind + ":" + id
}

func (r *ExecutionRepository) keyIndex(kind string) string {
	return r.prefix + "idx:" + kind
}

func (r *ExecutionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	data, err := domain.EncodeRecord(record)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.keyRecord(record.WorkerKind, record.ID), data, 0)
	pipe.ZAdd(ctx, r.keyIndex(record.WorkerKind), goredis.Z{
		Score:  float64(record.StartTime.UnixNano()),
		Member: record.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save execution record %s to redis: %w", record.ID, err)
	}
	return nil
}

func (r *ExecutionRepository) Get(ctx context.Context, kind, executionID string) (*domain.ExecutionRecord, error) {
	data, err := r.client.Get(ctx, r.keyRecord(kind, executionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrExecutionNotFound, kind, executionID)
		}
		return nil, fmt.Errorf("failed to get execution record %s/%s from redis: %w", kind, executionID, err)
	}

	record, err := domain.DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("execution record %s/%s: %w", kind, executionID, err)
	}
	return record, nil
}

// ListByKind returns records newest first by start time.
func (r *ExecutionRepository) ListByKind(ctx context.Context, kind string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	if pageSize <= 0 {
		return []*domain.ExecutionRecord{}, nil
	}
	if page < 1 {
		page = 1
	}
	start := int64((page - 1) * pageSize)
	stop := start + int64(pageSize) - 1

	ids, err := r.client.ZRevRange(ctx, r.keyIndex(kind), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records for kind %s from redis: %w", kind, err)
	}
	if len(ids) == 0 {
		return []*domain.ExecutionRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keyRecord(kind, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load execution records for kind %s from redis: %w", kind, err)
	}

	return decodeValues(kind, ids, values)
}

// decodeValues turns an MGET reply into records. A nil value is an index
// entry whose payload is gone and is skipped. A payload that does not decode
// fails the whole listing.
func decodeValues(kind string, ids []string, values []any) ([]*domain.ExecutionRecord, error) {
	records := make([]*domain.ExecutionRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		record, err := domain.DecodeRecord([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("execution record %s/%s: %w", kind, ids[i], err)
		}
		records = append(records, record)
	}
	return records, nil
}
