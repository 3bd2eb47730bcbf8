// Package batch partitions an unbounded stream of records into serialized
// JSON payloads that fit the collector's per-request size ceiling.
package batch

import (
	"encoding/json"
	"fmt"

	"github.com/docker/go-units"
)

// DefaultMaxPayloadBytes is the collector's per-request payload ceiling.
const DefaultMaxPayloadBytes = 25 * units.MiB

// Record is one row destined for a table. All values are already coerced to
// their textual form; field sets may vary between records of the same table.
type Record map[string]string

// Batch is a completed group of records together with their serialized
// JSON-array payload, ready to be sent as one request body.
type Batch struct {
	Records []Record
	Payload []byte
}

// Size returns the serialized payload length in bytes.
func (b Batch) Size() int64 {
	return int64(len(b.Payload))
}

// Accumulator grows a batch record by record and emits it once the
// serialized size passes the ceiling. The size check runs after each append,
// so the record that causes the overflow ships in the emitted batch. This
// mirrors the collector client's historical behavior and means a batch can
// exceed the ceiling by at most one record's serialized size.
type Accumulator struct {
	maxBytes int64
	records  []Record
}

// NewAccumulator creates an Accumulator with the given payload ceiling in
// bytes. A non-positive value means DefaultMaxPayloadBytes.
func NewAccumulator(maxBytes int64) *Accumulator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	return &Accumulator{maxBytes: maxBytes}
}

// Append adds one record to the pending batch. It returns a completed Batch
// when the serialized pending batch exceeds the ceiling, nil otherwise.
func (a *Accumulator) Append(record Record) (*Batch, error) {
	a.records = append(a.records, record)

	payload, err := json.Marshal(a.records)
	if err != nil {
		return nil, fmt.Errorf("serialize batch: %w", err)
	}

	if int64(len(payload)) > a.maxBytes {
		completed := &Batch{Records: a.records, Payload: payload}
		a.records = nil
		return completed, nil
	}

	return nil, nil
}

// Flush emits the pending records as a final Batch regardless of size, or
// nil when nothing is pending. An empty source therefore produces no batch
// and no request.
func (a *Accumulator) Flush() (*Batch, error) {
	if len(a.records) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(a.records)
	if err != nil {
		return nil, fmt.Errorf("serialize batch: %w", err)
	}

	completed := &Batch{Records: a.records, Payload: payload}
	a.records = nil
	return completed, nil
}

// Stringify coerces a raw row into a Record by rendering every value with its
// default textual form. Numeric and date precision is not preserved.
func Stringify(row map[string]interface{}) Record {
	record := make(Record, len(row))
	for column, value := range row {
		record[column] = fmt.Sprintf("%v", value)
	}
	return record
}
