package lstorage

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// fileWAL appends records to a single file via a long-lived write handle,
// the only descriptor the engine keeps open across calls. Replay and get
// open independent read handles, so readers never contend with the writer.
type fileWAL struct {
	filename string
	f        *os.File
	mu       sync.Mutex
}

func newFileWAL(filename string) (*fileWAL, error) {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open WAL %s: %w", ErrIO, filename, err)
	}

	return &fileWAL{
		filename: filename,
		f:        f,
	}, nil
}

// append encodes the record, writes it with its line terminator, then
// forces a sync. The mutation counts as committed only once the sync has
// returned; an encode failure writes nothing at all.
func (w *fileWAL) append(rec Record) error {
	line, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return fmt.Errorf("%w: no file descriptor", ErrIO)
	}
	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("%w: failed to append to WAL: %w", ErrIO, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync WAL: %w", ErrIO, err)
	}
	return nil
}

// replay folds the whole log into a fresh memtable. A malformed line
// aborts the replay entirely; the engine must not start from a log it
// cannot read back.
func (w *fileWAL) replay() (*memtable, error) {
	f, err := os.Open(w.filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open WAL for replay: %w", ErrIO, err)
	}
	defer f.Close()

	mt := newMemtable()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		rec, err := decodeRecord(scanner.Bytes())
		if err != nil {
			return nil, err
		}
		mt.put(rec.Key, rec.Value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read WAL: %w", ErrIO, err)
	}
	return mt, nil
}

// get full-scans the log from an independent read handle and returns the
// value of the last record for the key. The memtable mirrors this result
// by construction; the scan exists for cross-checking, not the read path.
func (w *fileWAL) get(key string) (string, bool, error) {
	f, err := os.Open(w.filename)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to open WAL for reading: %w", ErrIO, err)
	}
	defer f.Close()

	var (
		value string
		found bool
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		rec, err := decodeRecord(scanner.Bytes())
		if err != nil {
			return "", false, err
		}
		if rec.Key == key {
			value = rec.Value
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("%w: failed to read WAL: %w", ErrIO, err)
	}
	return value, found, nil
}

// truncate drops all records. The write handle is opened with O_APPEND,
// so subsequent appends start over from the beginning of the file.
func (w *fileWAL) truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return fmt.Errorf("%w: no file descriptor", ErrIO)
	}
	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("%w: failed to truncate WAL: %w", ErrIO, err)
	}
	return nil
}

func (w *fileWAL) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return fmt.Errorf("%w: failed to close WAL: %w", ErrIO, err)
	}
	return nil
}
