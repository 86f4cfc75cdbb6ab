package lstorage

import (
	"github.com/zhangyunhao116/skipmap"
)

var _ queryable = &memtable{}

// memtable is the mutable in-memory tier: a concurrent ordered map from
// key to the latest committed value, last write wins. Its invariant is
// that it always equals the result of replaying the WAL from empty up to
// the last durable append.
//
// Iterating in ascending key order is what lets flush hand the segment
// builder pre-sorted input, which keeps the sparse-index lookup bounded.
type memtable struct {
	entries *skipmap.FuncMap[string, string]
}

func newMemtable() *memtable {
	return &memtable{
		entries: skipmap.NewFunc[string, string](func(a, b string) bool {
			return a < b
		}),
	}
}

// put overwrites any existing entry for the key.
func (m *memtable) put(key, value string) {
	m.entries.Store(key, value)
}

// get never fails; the error return satisfies queryable.
func (m *memtable) get(key string) (string, bool, error) {
	value, ok := m.entries.Load(key)
	return value, ok, nil
}

// size returns the number of entries the memtable holds.
func (m *memtable) size() int {
	return m.entries.Len()
}

// all gives back a snapshot of every entry in ascending key order.
func (m *memtable) all() []Record {
	recs := make([]Record, 0, m.size())
	m.entries.Range(func(key string, value string) bool {
		recs = append(recs, Record{Key: key, Value: value})
		return true
	})
	return recs
}
