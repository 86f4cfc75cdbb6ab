package lstorage

import "errors"

// Two failure kinds cover the engine's file and codec paths. Every error
// returned by this package wraps one of the sentinels below together with
// its underlying cause, so callers can classify with errors.Is and still
// unwrap the original error.
var (
	// ErrIO marks a failure to open, read, write, seek, or sync a file.
	ErrIO = errors.New("i/o failure")

	// ErrEncoding marks a failure to serialize a record to its textual
	// form or to deserialize a line back into a record.
	ErrEncoding = errors.New("encoding failure")

	// ErrClosed is returned by any operation invoked after Close.
	ErrClosed = errors.New("storage is closed")

	// ErrInMemoryMode is returned by Flush when the storage has no data
	// path to persist segments under.
	ErrInMemoryMode = errors.New("storage is in-memory only")
)
