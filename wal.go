package lstorage

// wal represents a write-ahead log, which offers durability guarantees.
// Once a record has been appended and synced it is never rewritten or
// reordered; the log is the sole source of truth for recovery.
type wal interface {
	// append durably writes a single record. Only after append returns
	// nil is the mutation considered committed.
	append(rec Record) error
	// replay streams the log in file order and folds it into a fresh
	// memtable, later records for a key overwriting earlier ones.
	replay() (*memtable, error)
	// truncate resets the log to empty after its contents have been
	// persisted elsewhere.
	truncate() error
	close() error
}

// nopWAL backs the in-memory mode: nothing is durable, so every operation
// trivially succeeds.
type nopWAL struct{}

func (nopWAL) append(_ Record) error {
	return nil
}

func (nopWAL) replay() (*memtable, error) {
	return newMemtable(), nil
}

func (nopWAL) truncate() error {
	return nil
}

func (nopWAL) close() error {
	return nil
}
