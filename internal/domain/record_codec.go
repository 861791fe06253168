package domain

import (
	"encoding/json"
	"fmt"
)

// EncodeRecord validates record and returns its JSON form. Stores that keep
// records as opaque values use it so every backend writes the same bytes.
func EncodeRecord(record *ExecutionRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: execution record cannot be nil", ErrInvalidArgument)
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution record %s: %w", record.ID, err)
	}
	return data, nil
}

// DecodeRecord parses a value written by EncodeRecord. Malformed or invalid
// data is reported as ErrCorruptRecord.
func DecodeRecord(data []byte) (*ExecutionRecord, error) {
	var record ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return &record, nil
}
