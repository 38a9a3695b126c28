package pebble

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
)

const (
	defaultCacheSize    = 64 << 20
	defaultMemTableSize = 32 << 20
)

var _ db.KVStore = (*KVStore)(nil)

// KVStore is a db.KVStore backed by Pebble. The store itself is the live View:
// cursors created from it observe the latest committed state at the time they
// are created.
type KVStore struct {
	db *pebble.DB
	mu sync.RWMutex

	// open cursors and snapshots, released on Close
	views db.Registry
}

type options struct {
	path             string
	cacheSize        int64
	memTableSize     uint64
	errorIfExists    bool
	errorIfNotExists bool
}

// Option configures NewKVStore.
type Option func(*options)

// WithPath stores data on disk under path. Without it the store is in memory.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithCacheSize sets the block cache size in bytes.
func WithCacheSize(bytes int64) Option {
	return func(o *options) { o.cacheSize = bytes }
}

// WithMemTableSize sets the memtable size in bytes.
func WithMemTableSize(bytes uint64) Option {
	return func(o *options) { o.memTableSize = bytes }
}

// WithErrorIfExists fails NewKVStore when the database already exists.
func WithErrorIfExists() Option {
	return func(o *options) { o.errorIfExists = true }
}

// WithErrorIfNotExists fails NewKVStore instead of creating a missing
// database.
func WithErrorIfNotExists() Option {
	return func(o *options) { o.errorIfNotExists = true }
}

// NewKVStore opens a Pebble database. By default the database lives in an
// in-memory filesystem and disappears on Close.
func NewKVStore(opts ...Option) (*KVStore, error) {
	o := options{
		cacheSize:    defaultCacheSize,
		memTableSize: defaultMemTableSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cache := pebble.NewCache(o.cacheSize)
	defer cache.Unref()

	pOpts := &pebble.Options{
		Cache:            cache,
		MemTableSize:     o.memTableSize,
		ErrorIfExists:    o.errorIfExists,
		ErrorIfNotExists: o.errorIfNotExists,
	}
	dir := o.path
	if dir == "" {
		pOpts.FS = vfs.NewMem()
		dir = "kvrange"
	}

	pdb, err := pebble.Open(dir, pOpts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", dir, err)
	}
	log.Store.Debug().Str("path", o.path).Msg("pebble store opened")
	return &KVStore{db: pdb}, nil
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.views.Closed() {
		return nil, ErrClosed
	}
	return get(p.db, key)
}

type getter interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func get(g getter, key []byte) ([]byte, error) {
	value, closer, err := g.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *KVStore) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.views.Closed() {
		return ErrClosed
	}
	return p.db.Set(key, value, pebble.Sync)
}

func (p *KVStore) Delete(key []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.views.Closed() {
		return ErrClosed
	}
	return p.db.Delete(key, pebble.Sync)
}

// Compact compacts the key range [start, end]. Nil bounds extend to the first
// and last stored key; a range that holds no stored key is a no-op.
func (p *KVStore) Compact(start, end []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.views.Closed() {
		return ErrClosed
	}

	iter, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf(ErrInCursorCreation, err)
	}
	if start == nil && iter.First() {
		start = append([]byte(nil), iter.Key()...)
	}
	if end == nil && iter.Last() {
		end = append([]byte(nil), iter.Key()...)
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if start == nil || end == nil {
		// empty store
		return nil
	}
	if bytes.Compare(start, end) > 0 {
		return nil
	}

	// pebble's end bound is exclusive
	end = append(bytes.Clone(end), 0)
	return p.db.Compact(start, end, true)
}

func (p *KVStore) Flush() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.views.Closed() {
		return ErrClosed
	}
	return p.db.Flush()
}

// NewCursor opens a cursor over the latest committed state.
func (p *KVStore) NewCursor() (db.Cursor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.views.Closed() {
		return nil, ErrClosed
	}
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf(ErrInCursorCreation, err)
	}
	return newCursor(iter, &p.views)
}

// Snapshot pins the current state of the store.
func (p *KVStore) Snapshot() (db.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.views.Closed() {
		return nil, ErrClosed
	}
	s := &Snapshot{snap: p.db.NewSnapshot(), owner: &p.views}
	if err := p.views.Add(s); err != nil {
		return nil, errors.Join(err, s.snap.Close())
	}
	log.Store.Debug().Msg("snapshot opened")
	return s, nil
}

// Close releases every snapshot and cursor still open, then closes the
// database. Closing twice is a no-op.
func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	first, err := p.views.CloseAll()
	if !first {
		return nil
	}
	err = errors.Join(err, p.db.Close())
	log.Store.Debug().Err(err).Msg("pebble store closed")
	return err
}

// Closed reports whether Close has been called.
func (p *KVStore) Closed() bool {
	return p.views.Closed()
}
