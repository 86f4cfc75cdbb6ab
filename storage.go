package lstorage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var segmentDataRegex = regexp.MustCompile(`^s-.+\.data$`)

const (
	walFileName = "wal"

	// defaultIndexInterval is the sparse index stride: every 16th record
	// of a flushed segment lands in its index file.
	defaultIndexInterval = 16
)

// Storage provides goroutine safe capabilities of insertion into and
// retrieval from the tiered store: one write-ahead log, one memtable, and
// zero or more immutable segments ordered newest first.
type Storage interface {
	Reader
	Writer
	// Flush persists the current memtable contents as an immutable
	// segment, then starts over with an empty memtable and log.
	Flush() error
	// Close releases the WAL handle. No operation is accepted afterwards.
	Close() error
}

// Reader provides reading access to stored values.
type Reader interface {
	// Get returns the latest value written for the key. The second
	// return value reports whether the key was found; a miss is not an
	// error.
	Get(key string) (string, bool, error)
}

// Writer provides writing access to the store.
type Writer interface {
	// Put durably records the key-value pair and makes it visible to
	// subsequent Gets.
	Put(key, value string) error
}

type Option func(*storage)

// WithDataPath makes the storage persistent, placing the WAL and all
// segment files under the given directory. Without it the storage runs
// in-memory only and Flush is unavailable.
func WithDataPath(dataPath string) Option {
	return func(s *storage) {
		s.dataPath = dataPath
	}
}

// WithIndexInterval overrides the sparse index sampling interval used
// when flushing segments.
func WithIndexInterval(interval int) Option {
	return func(s *storage) {
		s.indexInterval = interval
	}
}

func WithLogger(logger Logger) Option {
	return func(s *storage) {
		s.logger = logger
	}
}

// NewStorage gives back a new storage, fully recovered and ready for use.
// Give the WithDataPath option for running as an on-disk storage.
//
// Recovery replays the write-ahead log into a fresh memtable and loads
// every existing segment by its index file alone. Any replay failure is
// terminal: no storage is returned and the caller must not proceed.
func NewStorage(opts ...Option) (Storage, error) {
	s := &storage{
		tiers:         newTierList(),
		indexInterval: defaultIndexInterval,
		logger:        &nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.indexInterval <= 0 {
		s.indexInterval = defaultIndexInterval
	}

	if s.inMemoryMode() {
		s.wal = nopWAL{}
		s.memtable = newMemtable()
		s.tiers.insert(s.memtable)
		return s, nil
	}

	if err := os.MkdirAll(s.dataPath, fs.ModePerm); err != nil {
		return nil, fmt.Errorf("%w: failed to make data directory %s: %w", ErrIO, s.dataPath, err)
	}
	w, err := newFileWAL(filepath.Join(s.dataPath, walFileName))
	if err != nil {
		return nil, err
	}
	s.wal = w

	mt, err := w.replay()
	if err != nil {
		return nil, err
	}
	s.memtable = mt

	segments, err := openSegments(s.dataPath)
	if err != nil {
		return nil, err
	}
	// Insert oldest first so that the newest segment ends up right
	// behind the memtable at the head.
	for _, seg := range segments {
		s.tiers.insert(seg)
	}
	s.tiers.insert(s.memtable)

	s.logger.Printf("recovered %d keys from the WAL, opened %d segments", mt.size(), len(segments))
	return s, nil
}

// openSegments discovers segment files under the data path and loads
// their indexes concurrently. The returned slice is ordered oldest first;
// file names embed the flush time, so the lexical order is the creation
// order.
func openSegments(dataPath string) ([]*segment, error) {
	entries, err := os.ReadDir(dataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open data directory: %w", ErrIO, err)
	}
	prefixes := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !segmentDataRegex.MatchString(e.Name()) {
			continue
		}
		prefix := strings.TrimSuffix(e.Name(), segmentDataSuffix)
		prefixes = append(prefixes, filepath.Join(dataPath, prefix))
	}
	sort.Strings(prefixes)

	segments := make([]*segment, len(prefixes))
	var g errgroup.Group
	for i := range prefixes {
		i := i
		g.Go(func() error {
			seg, err := openSegment(prefixes[i])
			if err != nil {
				return err
			}
			segments[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

type storage struct {
	tiers    tierList
	memtable *memtable

	wal           wal
	dataPath      string
	indexInterval int
	logger        Logger

	// mu serializes mutations against each other and against reads.
	// The WAL append plus the memtable update must be atomic as a pair,
	// and a flush atomically moves authority for the flushed keys from
	// the memtable to the new segment.
	mu     sync.RWMutex
	closed bool
}

func (s *storage) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	// The WAL append gates the memtable update: a record that did not
	// reach disk must never become readable.
	if err := s.wal.append(Record{Key: key, Value: value}); err != nil {
		return err
	}
	s.memtable.put(key, value)
	return nil
}

func (s *storage) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	// Walk the tiers from the newest one. The memtable sits at the
	// head, so a hit there is always the latest committed value.
	iterator := s.tiers.newIterator()
	for iterator.next() {
		tier, err := iterator.value()
		if err != nil {
			return "", false, err
		}
		value, found, err := tier.get(key)
		if err != nil {
			return "", false, err
		}
		if found {
			return value, true, nil
		}
	}
	return "", false, nil
}

func (s *storage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.inMemoryMode() {
		return fmt.Errorf("%w: cannot flush without a data path", ErrInMemoryMode)
	}
	if s.memtable.size() == 0 {
		return nil
	}

	recs := s.memtable.all()
	prefix := filepath.Join(s.dataPath, fmt.Sprintf("s-%020d-%s", time.Now().UnixNano(), uuid.New()))
	seg, err := newSegment(prefix, recs, s.indexInterval)
	if err != nil {
		return fmt.Errorf("failed to build segment for %s: %w", prefix, err)
	}

	// The segment takes the memtable's place in the list, and a fresh
	// memtable starts at the head.
	if err := s.tiers.swap(s.memtable, seg); err != nil {
		return fmt.Errorf("failed to swap tiers: %w", err)
	}
	s.memtable = newMemtable()
	s.tiers.insert(s.memtable)

	// Every flushed record is durable in the segment now, so the log can
	// start over. A crash before this point merely replays records that
	// also live in the newest segment.
	if err := s.wal.truncate(); err != nil {
		return err
	}

	s.logger.Printf("flushed %d records to segment %s", len(recs), filepath.Base(prefix))
	return nil
}

func (s *storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.wal.close()
}

func (s *storage) inMemoryMode() bool {
	return s.dataPath == ""
}
