package lstorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_memtable_put_get(t *testing.T) {
	mt := newMemtable()
	mt.put("foo", "bar")
	mt.put("baz", "qux")
	mt.put("foo", "goo")

	value, found, err := mt.get("foo")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "goo", value)

	value, found, err = mt.get("baz")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "qux", value)

	_, found, err = mt.get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, 2, mt.size())
}

func Test_memtable_all_sorted(t *testing.T) {
	mt := newMemtable()
	mt.put("cherry", "3")
	mt.put("apple", "1")
	mt.put("banana", "2")

	// The snapshot comes back in ascending key order, which is the
	// precondition of the segment builder.
	want := []Record{
		{Key: "apple", Value: "1"},
		{Key: "banana", Value: "2"},
		{Key: "cherry", Value: "3"},
	}
	assert.Equal(t, want, mt.all())
}
