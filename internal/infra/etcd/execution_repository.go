// Package etcd stores execution history in etcd.
//
// Keys, relative to the repository prefix:
//
//	records/<kind>/<id>                  => encoded execution record
//	index/<kind>/<start-unix-nanos>/<id> => execution ID
//
// The index keys sort by start time, so a page is a descending range read
// over the index followed by one transaction that loads the records.
package etcd

import (
	"context"
	"fmt"

	"background-tasks/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultPrefix = "/taskhost/history/"

// maxTxnOps stays under etcd's default --max-txn-ops.
const maxTxnOps = 128

// ExecutionRepository is a domain.ExecutionRepository backed by etcd.
type ExecutionRepository struct {
	kv     clientv3.KV
	tracer trace.Tracer
}

var _ domain.ExecutionRepository = (*ExecutionRepository)(nil)

// NewExecutionRepository creates a repository that keeps every key under
// prefix. An empty prefix means DefaultPrefix.
func NewExecutionRepository(client *clientv3.Client, prefix string) *ExecutionRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ExecutionRepository{
		kv:     namespace.NewKV(client.KV, prefix),
		tracer: otel.Tracer("background-tasks-etcd-execution-repo"),
	}
}

func recordKey(kind, id string) string {
	return "records/" + kind + "/" + id
}

func indexPrefix(kind string) string {
	return "index/" + kind + "/"
}

func indexKey(record *domain.ExecutionRecord) string {
	return fmt.Sprintf("%s%020d/%s", indexPrefix(record.WorkerKind), record.StartTime.UnixNano(), record.ID)
}

// Save writes the record and its index entry in one transaction. Saving the
// same record again rewrites both keys in place.
func (r *ExecutionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveExecution")
	defer span.End()

	data, err := domain.EncodeRecord(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid execution record")
		return err
	}
	span.SetAttributes(
		attribute.String("execution.id", record.ID),
		attribute.String("worker.kind", record.WorkerKind),
	)

	_, err = r.kv.Txn(ctx).Then(
		clientv3.OpPut(recordKey(record.WorkerKind, record.ID), string(data)),
		clientv3.OpPut(indexKey(record), record.ID),
	).Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put execution record to etcd")
		return fmt.Errorf("failed to save execution record %s to etcd: %w", record.ID, err)
	}
	return nil
}

func (r *ExecutionRepository) Get(ctx context.Context, kind, executionID string) (*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetExecution")
	defer span.End()
	span.SetAttributes(
		attribute.String("worker.kind", kind),
		attribute.String("execution.id", executionID),
	)

	resp, err := r.kv.Get(ctx, recordKey(kind, executionID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get execution record from etcd")
		return nil, fmt.Errorf("failed to get execution record %s/%s from etcd: %w", kind, executionID, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrExecutionNotFound, kind, executionID)
	}

	record, err := domain.DecodeRecord(resp.Kvs[0].Value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "corrupt execution record")
		return nil, fmt.Errorf("execution record %s/%s: %w", kind, executionID, err)
	}
	return record, nil
}

// ListByKind returns records newest first by start time.
func (r *ExecutionRepository) ListByKind(ctx context.Context, kind string, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListExecutions")
	defer span.End()
	span.SetAttributes(
		attribute.String("worker.kind", kind),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	if pageSize <= 0 {
		return []*domain.ExecutionRecord{}, nil
	}
	if page < 1 {
		page = 1
	}

	// With a descending sort etcd applies the limit after sorting, so only
	// the pages up to this one are read.
	resp, err := r.kv.Get(ctx, indexPrefix(kind),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortDescend),
		clientv3.WithLimit(int64(page*pageSize)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list execution index from etcd")
		return nil, fmt.Errorf("failed to list execution records for kind %s from etcd: %w", kind, err)
	}

	start, end := domain.PageBounds(len(resp.Kvs), page, pageSize)
	ids := make([]string, 0, end-start)
	for _, kv := range resp.Kvs[start:end] {
		ids = append(ids, string(kv.Value))
	}

	records := make([]*domain.ExecutionRecord, 0, len(ids))
	for _, batch := range batches(ids, maxTxnOps) {
		loaded, err := r.load(ctx, kind, batch)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load execution records")
			return nil, err
		}
		records = append(records, loaded...)
	}
	span.SetAttributes(attribute.Int("records_returned", len(records)))
	return records, nil
}

// load reads the records for ids in one transaction. An index entry whose
// record is gone is skipped.
func (r *ExecutionRepository) load(ctx context.Context, kind string, ids []string) ([]*domain.ExecutionRecord, error) {
	ops := make([]clientv3.Op, len(ids))
	for i, id := range ids {
		ops[i] = clientv3.OpGet(recordKey(kind, id))
	}
	resp, err := r.kv.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to load execution records for kind %s from etcd: %w", kind, err)
	}

	records := make([]*domain.ExecutionRecord, 0, len(ids))
	for i, op := range resp.Responses {
		kvs := op.GetResponseRange().GetKvs()
		if len(kvs) == 0 {
			continue
		}
		record, err := domain.DecodeRecord(kvs[0].Value)
		if err != nil {
			return nil, fmt.Errorf("execution record %s/%s: %w", kind, ids[i], err)
		}
		records = append(records, record)
	}
	return records, nil
}

func batches(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
