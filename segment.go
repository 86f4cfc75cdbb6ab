package lstorage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// A segment pairs two files derived from one path prefix:
//   <prefix>.data   records as JSON lines, in ascending key order
//   <prefix>.index  one JSON object mapping sampled key -> byte offset
const (
	segmentDataSuffix  = ".data"
	segmentIndexSuffix = ".index"
)

var _ queryable = &segment{}

// segment is an immutable on-disk tier. Its bytes never change once
// newSegment has returned; every offset in the index addresses the start
// of a record in the paired data file.
//
// The sampled keys are held in memory in ascending order. Data file
// handles are scoped per lookup, so concurrent readers never contend.
type segment struct {
	pathPrefix string

	keys    []string
	offsets []int64
}

// newSegment builds the two files of a segment under the given path
// prefix. The data file holds the records one line each in input order;
// the index file records, for every interval-th record counting from the
// first, the key and the data file's size as it stood immediately before
// that record was written. A full per-key index would cost as much space
// as the data itself; sampling bounds the index to ceil(n/interval)
// entries while keeping any lookup within interval records of its target.
//
// The input must be in ascending key order, the sparse index is unsound
// otherwise. Both files are forced durable before newSegment returns;
// from that point the segment is immutable and queryable.
func newSegment(pathPrefix string, recs []Record, interval int) (*segment, error) {
	if pathPrefix == "" {
		return nil, fmt.Errorf("path prefix is required")
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("records are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if !sort.SliceIsSorted(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key }) {
		return nil, fmt.Errorf("%w: records are not in ascending key order", ErrEncoding)
	}

	seg, err := writeSegmentFiles(pathPrefix, recs, interval)
	if err != nil {
		// A partially written segment must never be picked up at the
		// next open.
		os.Remove(pathPrefix + segmentDataSuffix)
		os.Remove(pathPrefix + segmentIndexSuffix)
		return nil, err
	}
	return seg, nil
}

func writeSegmentFiles(pathPrefix string, recs []Record, interval int) (*segment, error) {
	dataPath := pathPrefix + segmentDataSuffix
	f, err := os.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create segment data file %s: %w", ErrIO, dataPath, err)
	}
	defer f.Close()

	numSampled := (len(recs) + interval - 1) / interval
	index := make(map[string]int64, numSampled)
	keys := make([]string, 0, numSampled)
	offsets := make([]int64, 0, numSampled)

	var offset int64
	w := bufio.NewWriter(f)
	for i := range recs {
		line, err := encodeRecord(recs[i])
		if err != nil {
			return nil, err
		}
		if i%interval == 0 {
			index[recs[i].Key] = offset
			keys = append(keys, recs[i].Key)
			offsets = append(offsets, offset)
		}
		if _, err := w.Write(line); err != nil {
			return nil, fmt.Errorf("%w: failed to write segment data: %w", ErrIO, err)
		}
		offset += int64(len(line))
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("%w: failed to write segment data: %w", ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("%w: failed to sync segment data: %w", ErrIO, err)
	}

	b, err := json.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode segment index: %w", ErrEncoding, err)
	}
	indexPath := pathPrefix + segmentIndexSuffix
	idx, err := os.OpenFile(indexPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create segment index file %s: %w", ErrIO, indexPath, err)
	}
	defer idx.Close()
	if _, err := idx.Write(b); err != nil {
		return nil, fmt.Errorf("%w: failed to write segment index: %w", ErrIO, err)
	}
	if err := idx.Sync(); err != nil {
		return nil, fmt.Errorf("%w: failed to sync segment index: %w", ErrIO, err)
	}

	return &segment{
		pathPrefix: pathPrefix,
		keys:       keys,
		offsets:    offsets,
	}, nil
}

// openSegment loads a segment from its index file alone; the data file is
// not touched until a lookup needs it.
func openSegment(pathPrefix string) (*segment, error) {
	if pathPrefix == "" {
		return nil, fmt.Errorf("path prefix is required")
	}
	indexPath := pathPrefix + segmentIndexSuffix
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open segment index %s: %w", ErrIO, indexPath, err)
	}
	defer f.Close()

	index := map[string]int64{}
	if err := json.NewDecoder(f).Decode(&index); err != nil {
		return nil, fmt.Errorf("%w: failed to decode segment index %s: %w", ErrEncoding, indexPath, err)
	}

	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	offsets := make([]int64, len(keys))
	for i, key := range keys {
		offsets[i] = index[key]
	}

	return &segment{
		pathPrefix: pathPrefix,
		keys:       keys,
		offsets:    offsets,
	}, nil
}

// get seeks the data file to the greatest sampled key not after the
// target, then scans forward. Records are in ascending key order, so the
// scan never has to go past the next sampled offset: beyond it the target
// would have been sampled itself or already passed.
func (s *segment) get(key string) (string, bool, error) {
	if len(s.keys) == 0 {
		return "", false, nil
	}

	// Greatest sampled key <= target, clamped to the first entry when
	// the target precedes every sample.
	i := sort.SearchStrings(s.keys, key)
	if i == len(s.keys) || s.keys[i] != key {
		if i > 0 {
			i--
		}
	}

	f, err := os.Open(s.pathPrefix + segmentDataSuffix)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to open segment data: %w", ErrIO, err)
	}
	defer f.Close()
	if _, err := f.Seek(s.offsets[i], io.SeekStart); err != nil {
		return "", false, fmt.Errorf("%w: failed to seek segment data: %w", ErrIO, err)
	}

	var r io.Reader = f
	if i+1 < len(s.offsets) {
		r = io.LimitReader(f, s.offsets[i+1]-s.offsets[i])
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		rec, err := decodeRecord(scanner.Bytes())
		if err != nil {
			return "", false, err
		}
		if rec.Key == key {
			return rec.Value, true, nil
		}
		if rec.Key > key {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("%w: failed to read segment data: %w", ErrIO, err)
	}
	return "", false, nil
}

// size returns the number of sampled index entries, not records.
func (s *segment) size() int {
	return len(s.keys)
}
