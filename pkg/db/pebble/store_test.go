package pebble

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvrange/pkg/db"
)

func TestKVStore(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{
			name: "basic_put_get",
			fn:   testBasicPutGet,
		},
		{
			name: "delete_operations",
			fn:   testDelete,
		},
		{
			name: "store_closure",
			fn:   testStoreClosure,
		},
		{
			name: "compact_and_flush",
			fn:   testCompactAndFlush,
		},
		{
			name: "close_releases_views",
			fn:   testCloseReleasesViews,
		},
		{
			name: "empty_key",
			fn:   testEmptyKey,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewKVStore()
			require.NoError(t, err)
			defer store.Close()

			tc.fn(t, store)
		})
	}
}

func testBasicPutGet(t *testing.T, store db.KVStore) {
	key := []byte("test-key")
	value := []byte("test-value")

	err := store.Put(key, value)
	require.NoError(t, err)

	retrieved, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	// Test non-existent key
	_, err = store.Get([]byte("non-existent"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func testDelete(t *testing.T, store db.KVStore) {
	key := []byte("delete-test")
	value := []byte("to-be-deleted")

	err := store.Put(key, value)
	require.NoError(t, err)

	err = store.Delete(key)
	require.NoError(t, err)

	_, err = store.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Delete non-existent key should not error
	err = store.Delete([]byte("non-existent"))
	assert.NoError(t, err)
}

func testStoreClosure(t *testing.T, store db.KVStore) {
	err := store.Close()
	require.NoError(t, err)

	// Test operations after close
	_, err = store.Get([]byte("key"))
	assert.ErrorIs(t, err, ErrClosed)

	err = store.Put([]byte("key"), []byte("value"))
	assert.ErrorIs(t, err, ErrClosed)

	err = store.Delete([]byte("key"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.NewCursor()
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)

	// Double close should not error
	err = store.Close()
	assert.NoError(t, err)
}

func testCompactAndFlush(t *testing.T, store db.KVStore) {
	// empty store compacts to nothing
	require.NoError(t, store.Compact(nil, nil))

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put([]byte(k), []byte("v-"+k)))
	}
	require.NoError(t, store.Flush())
	require.NoError(t, store.Compact(nil, nil))
	require.NoError(t, store.Compact([]byte("a"), []byte("b")))

	// ranges outside the stored keys
	require.NoError(t, store.Compact(nil, []byte("0")))
	require.NoError(t, store.Compact([]byte("z"), nil))
	require.NoError(t, store.Compact([]byte("c"), []byte("a")))

	// the caller's end buffer is left alone
	buf := []byte("bX")
	require.NoError(t, store.Compact(nil, buf[:1]))
	assert.Equal(t, []byte("bX"), buf)

	v, err := store.Get([]byte("c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v-c"), v)
}

func testEmptyKey(t *testing.T, store db.KVStore) {
	assert.ErrorIs(t, store.Put(nil, []byte("v")), ErrInvalidKey)
	assert.ErrorIs(t, store.Put([]byte{}, []byte("v")), ErrInvalidKey)

	batch := store.NewBatch()
	defer batch.Close()
	assert.ErrorIs(t, batch.Put(nil, []byte("v")), ErrInvalidKey)
	require.NoError(t, batch.Commit())

	cur, err := store.NewCursor()
	require.NoError(t, err)
	defer cur.Close()
	assert.False(t, cur.First())
}

func testCloseReleasesViews(t *testing.T, store db.KVStore) {
	require.NoError(t, store.Put([]byte("a"), []byte("1")))

	cur, err := store.NewCursor()
	require.NoError(t, err)
	require.True(t, cur.First())

	snap, err := store.Snapshot()
	require.NoError(t, err)
	snapCur, err := snap.NewCursor()
	require.NoError(t, err)

	require.NoError(t, store.Close())

	assert.False(t, cur.Valid())
	assert.False(t, cur.Next())
	assert.ErrorIs(t, cur.Error(), ErrClosed)
	assert.False(t, snapCur.First())
	assert.ErrorIs(t, snapCur.Error(), ErrClosed)

	_, err = snap.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrClosed)

	// closing released handles again is harmless
	assert.NoError(t, cur.Close())
	assert.NoError(t, snap.Close())
}

func TestOpenModes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "missing_with_error_if_not_exists", opts: []Option{WithErrorIfNotExists()}, wantErr: true},
		{name: "create_if_missing", opts: nil},
		{name: "existing_with_error_if_exists", opts: []Option{WithErrorIfExists()}, wantErr: true},
		{name: "existing_with_error_if_not_exists", opts: []Option{WithErrorIfNotExists()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewKVStore(append([]Option{WithPath(dir)}, tc.opts...)...)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, store.Put([]byte("k"), []byte("v")))
			require.NoError(t, store.Close())
		})
	}
}
