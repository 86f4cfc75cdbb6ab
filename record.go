package lstorage

import (
	"encoding/json"
	"fmt"
)

// The record format is the same for the WAL and segment data files:
/*
   {"key":"foo","value":"bar"}\n
*/
// No header, no checksum, no length prefix; the terminal newline is the
// only framing.

// maxRecordBytes caps the size of a single encoded record, line
// terminator included. The cap is enforced on both sides: encodeRecord
// rejects anything larger, and readers size their scan buffers to it.
// Nothing the engine commits may be unreadable by its own replay.
const maxRecordBytes = 1 << 20

// Record is a single key-value mutation, the unit of both the write-ahead
// log and segment data files.
type Record struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// encodeRecord serializes the record as one JSON line, terminator included.
func encodeRecord(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode record: %w", ErrEncoding, err)
	}
	if len(b)+1 > maxRecordBytes {
		return nil, fmt.Errorf("%w: record of %d bytes exceeds the %d byte limit", ErrEncoding, len(b)+1, maxRecordBytes)
	}
	return append(b, '\n'), nil
}

// decodeRecord parses a single line back into a record. The line must not
// contain its terminator.
func decodeRecord(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: failed to decode record: %w", ErrEncoding, err)
	}
	return rec, nil
}
