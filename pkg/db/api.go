package db

import "errors"

var (
	// ErrClosed is returned by stores, views and cursors used after Close.
	ErrClosed = errors.New("kv-store: closed")
	// ErrNotFound is returned by point reads of a missing key.
	ErrNotFound = errors.New("kv-store: key not found")
	// ErrInvalidKey is returned by writes of an empty key.
	ErrInvalidKey = errors.New("kv-store: empty key")
)

// KVStore represents a key-value storage interface providing basic operations
// for data manipulation and iteration.
type KVStore interface {
	Writer
	Reader
	Snapshotter
	Delete(key []byte) error
	NewBatch() Batch
	// Compact compacts the key range [start, end]. Nil bounds mean unbounded.
	Compact(start, end []byte) error
	Flush() error
	Close() error
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Reader is the read side shared by the live store and its snapshots.
type Reader interface {
	View
	Get(key []byte) ([]byte, error)
}

// Batch represents an atomic batch of operations.
// All operations in a batch are performed atomically.
type Batch interface {
	Writer
	Delete(key []byte) error
	Commit() error
	Close() error
}

// View is a read scope over the store. The live store is a View that sees the
// latest committed state at the moment each cursor is created; a snapshot is a
// View pinned to the state at its creation.
//
// A View owns the cursors it creates: closing the View closes every cursor
// still open, and any further use of them reports ErrClosed.
type View interface {
	NewCursor() (Cursor, error)
	Close() error
}

// Snapshotter produces read-only point-in-time views.
type Snapshotter interface {
	Snapshot() (Snapshot, error)
}

// Snapshot is a View pinned to the state of the store at creation time.
type Snapshot interface {
	Reader
}

// Cursor is a positional handle into the sorted key space of a View.
// A cursor must not be driven by more than one goroutine at a time.
type Cursor interface {
	// First moves to the smallest key.
	First() bool
	// Last moves to the largest key.
	Last() bool
	// Seek moves to the first key >= target.
	Seek(target []byte) bool
	// Next advances to the next key.
	Next() bool
	// Prev moves to the previous key.
	Prev() bool
	// Valid reports whether the cursor points to an entry.
	Valid() bool
	// Key returns the current key. The slice is only valid until the cursor moves.
	Key() []byte
	// Value returns the current value. The slice is only valid until the cursor moves.
	Value() ([]byte, error)
	// Error returns the error that made the cursor invalid, if any.
	Error() error
	// Close releases resources.
	Close() error
}
