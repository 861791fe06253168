package domain_test

import (
	"testing"
	"time"

	"background-tasks/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecord(t *testing.T) {
	in := &domain.ExecutionRecord{
		ID:           "e1",
		OrderID:      "o1",
		WorkerKind:   "http",
		StartTime:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC),
		Status:       domain.ExecutionStatusFailed,
		Error:        "boom",
		DispatcherID: "d1",
	}

	data, err := domain.EncodeRecord(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"worker_kind":"http"`)

	out, err := domain.DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeRecord_Invalid(t *testing.T) {
	_, err := domain.EncodeRecord(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = domain.EncodeRecord(&domain.ExecutionRecord{ID: "e1"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDecodeRecord_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{not json"},
		{"wrong type", `{"id": 7}`},
		{"missing kind", `{"id":"e1","start_time":"2025-03-01T12:00:00Z","status":"success"}`},
		{"unknown status", `{"id":"e1","worker_kind":"http","start_time":"2025-03-01T12:00:00Z","status":"lost"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.DecodeRecord([]byte(tt.data))
			assert.ErrorIs(t, err, domain.ErrCorruptRecord)
		})
	}
}
