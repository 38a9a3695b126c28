package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvrange/pkg/db"
)

func keys(t *testing.T, v db.View) []string {
	t.Helper()
	cur, err := v.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	var out []string
	for ok := cur.First(); ok; ok = cur.Next() {
		out = append(out, string(cur.Key()))
	}
	require.NoError(t, cur.Error())
	return out
}

func TestStore(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store *Store)
	}{
		{name: "put_get_delete", fn: testPutGetDelete},
		{name: "cursor_navigation", fn: testCursorNavigation},
		{name: "batch_single_sequence", fn: testBatchSingleSequence},
		{name: "snapshot_isolation", fn: testSnapshotIsolation},
		{name: "compact_keeps_snapshot_versions", fn: testCompactKeepsSnapshotVersions},
		{name: "close_releases_views", fn: testCloseReleasesViews},
		{name: "empty_key", fn: testEmptyKey},
		{name: "compact_outside_stored_keys", fn: testCompactOutsideStoredKeys},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := New()
			defer store.Close()
			tc.fn(t, store)
		})
	}
}

func testPutGetDelete(t *testing.T, store *Store) {
	require.NoError(t, store.Put([]byte("k"), []byte("v1")))
	require.NoError(t, store.Put([]byte("k"), []byte("v2")))

	v, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, store.Delete([]byte("k")))
	_, err = store.Get([]byte("k"))
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = store.Get([]byte("missing"))
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Empty(t, keys(t, store))
}

func testCursorNavigation(t *testing.T, store *Store) {
	for _, k := range []string{"d", "b", "f"} {
		require.NoError(t, store.Put([]byte(k), []byte("v-"+k)))
	}
	assert.Equal(t, []string{"b", "d", "f"}, keys(t, store))

	cur, err := store.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	assert.False(t, cur.Valid())
	_, err = cur.Value()
	assert.ErrorIs(t, err, ErrCursorInvalid)

	require.True(t, cur.Seek([]byte("c")))
	assert.Equal(t, []byte("d"), cur.Key())
	require.True(t, cur.Prev())
	assert.Equal(t, []byte("b"), cur.Key())
	assert.False(t, cur.Prev())
	assert.False(t, cur.Prev())
	require.True(t, cur.Next())
	assert.Equal(t, []byte("b"), cur.Key())

	assert.False(t, cur.Seek([]byte("z")))
	require.True(t, cur.Prev())
	assert.Equal(t, []byte("f"), cur.Key())

	require.True(t, cur.Last())
	v, err := cur.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("v-f"), v)
}

func testBatchSingleSequence(t *testing.T, store *Store) {
	require.NoError(t, store.Put([]byte("a"), []byte("old")))

	b := store.NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("new")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.Delete([]byte("c")))

	// invisible until committed
	assert.Equal(t, []string{"a"}, keys(t, store))
	before := store.visible.Load()

	require.NoError(t, b.Commit())
	assert.Equal(t, before+1, store.visible.Load())
	assert.Equal(t, []string{"a", "b"}, keys(t, store))

	assert.ErrorIs(t, b.Put([]byte("x"), nil), ErrBatchDone)
	assert.ErrorIs(t, b.Commit(), ErrBatchDone)
	assert.NoError(t, b.Close())
}

func testSnapshotIsolation(t *testing.T, store *Store) {
	require.NoError(t, store.Put([]byte("a"), []byte("1")))
	require.NoError(t, store.Put([]byte("b"), []byte("2")))

	snap, err := store.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	require.NoError(t, store.Put([]byte("a"), []byte("changed")))
	require.NoError(t, store.Delete([]byte("b")))
	require.NoError(t, store.Put([]byte("c"), []byte("3")))

	v, err := snap.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, []string{"a", "b"}, keys(t, snap))
	assert.Equal(t, []string{"a", "c"}, keys(t, store))
}

func testCompactKeepsSnapshotVersions(t *testing.T, store *Store) {
	require.NoError(t, store.Put([]byte("a"), []byte("1")))
	require.NoError(t, store.Put([]byte("gone"), []byte("x")))

	snap, err := store.Snapshot()
	require.NoError(t, err)

	require.NoError(t, store.Put([]byte("a"), []byte("2")))
	require.NoError(t, store.Delete([]byte("gone")))
	require.NoError(t, store.Compact(nil, nil))

	// the snapshot still reads its versions
	v, err := snap.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, []string{"a", "gone"}, keys(t, snap))

	require.NoError(t, snap.Close())
	require.NoError(t, store.Compact(nil, nil))

	_, ok := store.data.Load([]byte("gone"))
	assert.False(t, ok)
	rec, ok := store.data.Load([]byte("a"))
	require.True(t, ok)
	assert.Len(t, rec.versions, 1)
}

func testCloseReleasesViews(t *testing.T, store *Store) {
	require.NoError(t, store.Put([]byte("a"), []byte("1")))
	snap, err := store.Snapshot()
	require.NoError(t, err)
	cur, err := snap.NewCursor()
	require.NoError(t, err)
	require.True(t, cur.First())

	require.NoError(t, store.Close())
	assert.False(t, cur.Valid())
	assert.ErrorIs(t, cur.Error(), db.ErrClosed)
	_, err = snap.Get([]byte("a"))
	assert.ErrorIs(t, err, db.ErrClosed)
	assert.ErrorIs(t, store.Put([]byte("b"), nil), db.ErrClosed)
	_, err = store.NewCursor()
	assert.ErrorIs(t, err, db.ErrClosed)
	assert.NoError(t, store.Close())
}

func testEmptyKey(t *testing.T, store *Store) {
	assert.ErrorIs(t, store.Put(nil, []byte("v")), db.ErrInvalidKey)
	assert.ErrorIs(t, store.Put([]byte{}, []byte("v")), db.ErrInvalidKey)

	batch := store.NewBatch()
	defer batch.Close()
	assert.ErrorIs(t, batch.Put(nil, []byte("v")), db.ErrInvalidKey)
	require.NoError(t, batch.Commit())
	assert.Empty(t, keys(t, store))
}

func testCompactOutsideStoredKeys(t *testing.T, store *Store) {
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put([]byte(k), []byte("v-"+k)))
	}
	require.NoError(t, store.Compact(nil, []byte("0")))
	require.NoError(t, store.Compact([]byte("z"), nil))
	assert.Equal(t, []string{"a", "b", "c"}, keys(t, store))
}
