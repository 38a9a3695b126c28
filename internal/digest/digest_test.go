package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/db/memory"
	"github.com/eigerco/kvrange/pkg/scan"
)

func sum(t *testing.T, view db.View, opts ...scan.Option) (Hash, int) {
	t.Helper()
	seq, err := scan.New(view, opts...)
	require.NoError(t, err)
	h, n, err := Sum(seq)
	require.NoError(t, err)
	return h, n
}

func TestSum(t *testing.T) {
	a := memory.New()
	defer a.Close()
	b := memory.New()
	defer b.Close()

	for _, k := range []string{"x", "y", "z"} {
		require.NoError(t, a.Put([]byte(k), []byte("1")))
	}
	// same content, different write order
	for _, k := range []string{"z", "x", "y"} {
		require.NoError(t, b.Put([]byte(k), []byte("1")))
	}

	ha, n := sum(t, a)
	hb, _ := sum(t, b)
	assert.Equal(t, 3, n)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha.String(), 2*Size)

	require.NoError(t, b.Put([]byte("y"), []byte("2")))
	hb, _ = sum(t, b)
	assert.NotEqual(t, ha, hb)

	// direction matters
	hr, _ := sum(t, a, scan.Reverse())
	assert.NotEqual(t, ha, hr)

	// the range restricts what is hashed
	hx, n := sum(t, a, scan.To([]byte("x")))
	assert.Equal(t, 1, n)
	hbx, _ := sum(t, b, scan.To([]byte("x")))
	assert.Equal(t, hx, hbx)
}

func TestSumFieldBoundaries(t *testing.T) {
	a := memory.New()
	defer a.Close()
	b := memory.New()
	defer b.Close()

	// identical concatenations, different splits
	require.NoError(t, a.Put([]byte("ab"), []byte("c")))
	require.NoError(t, b.Put([]byte("a"), []byte("bc")))

	ha, _ := sum(t, a)
	hb, _ := sum(t, b)
	assert.NotEqual(t, ha, hb)
}

func TestSumEmpty(t *testing.T) {
	store := memory.New()
	defer store.Close()

	h, n := sum(t, store)
	assert.Zero(t, n)
	assert.Equal(t, Hash(blake2b.Sum256(make([]byte, 8))), h)
}

func TestSumPropagatesErrors(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Put([]byte("a"), nil))
	seq, err := scan.New(store)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, _, err = Sum(seq)
	assert.ErrorIs(t, err, db.ErrClosed)
}
