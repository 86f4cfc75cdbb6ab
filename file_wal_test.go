package lstorage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_fileWAL_append_replay(t *testing.T) {
	tests := []struct {
		name    string
		appends []Record
		want    map[string]string
	}{
		{
			name: "distinct keys",
			appends: []Record{
				{Key: "foo", Value: "bar"},
				{Key: "baz", Value: "qux"},
			},
			want: map[string]string{
				"foo": "bar",
				"baz": "qux",
			},
		},
		{
			name: "later record overwrites earlier one",
			appends: []Record{
				{Key: "foo", Value: "bar"},
				{Key: "baz", Value: "qux"},
				{Key: "foo", Value: "goo"},
			},
			want: map[string]string{
				"foo": "goo",
				"baz": "qux",
			},
		},
		{
			name:    "empty log",
			appends: []Record{},
			want:    map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir, err := os.MkdirTemp("", "lstorage-test")
			require.NoError(t, err)
			defer os.RemoveAll(tmpDir)

			wal, err := newFileWAL(filepath.Join(tmpDir, "wal"))
			require.NoError(t, err)
			defer wal.close()

			for _, rec := range tt.appends {
				require.NoError(t, wal.append(rec))
			}

			mt, err := wal.replay()
			require.NoError(t, err)

			got := map[string]string{}
			for _, rec := range mt.all() {
				got[rec.Key] = rec.Value
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_fileWAL_replay_malformed_line(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "lstorage-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "wal")
	err = os.WriteFile(path, []byte("{\"key\":\"foo\",\"value\":\"bar\"}\nnot-a-record\n"), 0666)
	require.NoError(t, err)

	wal, err := newFileWAL(path)
	require.NoError(t, err)
	defer wal.close()

	_, err = wal.replay()
	assert.True(t, errors.Is(err, ErrEncoding))
}

func Test_fileWAL_get(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "lstorage-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	wal, err := newFileWAL(filepath.Join(tmpDir, "wal"))
	require.NoError(t, err)
	defer wal.close()

	require.NoError(t, wal.append(Record{Key: "foo", Value: "bar"}))
	require.NoError(t, wal.append(Record{Key: "foo", Value: "goo"}))

	// The full scan returns the last value written for the key.
	value, found, err := wal.get("foo")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "goo", value)

	_, found, err = wal.get("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_fileWAL_truncate(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "lstorage-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "wal")
	wal, err := newFileWAL(path)
	require.NoError(t, err)
	defer wal.close()

	require.NoError(t, wal.append(Record{Key: "foo", Value: "bar"}))
	require.NoError(t, wal.truncate())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	// Appends keep working after the reset.
	require.NoError(t, wal.append(Record{Key: "baz", Value: "qux"}))
	mt, err := wal.replay()
	require.NoError(t, err)
	assert.Equal(t, []Record{{Key: "baz", Value: "qux"}}, mt.all())
}

func Test_fileWAL_append_after_close(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "lstorage-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	wal, err := newFileWAL(filepath.Join(tmpDir, "wal"))
	require.NoError(t, err)
	require.NoError(t, wal.close())

	err = wal.append(Record{Key: "foo", Value: "bar"})
	assert.True(t, errors.Is(err, ErrIO))
}
