// Package memory is an in-process db.KVStore. Every key keeps a list of
// versions stamped with the sequence number of the write that produced them;
// views read the newest version at or below their pinned sequence number.
package memory

import (
	"bytes"
	"math"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
)

var _ db.KVStore = (*Store)(nil)

type version struct {
	seq     uint64
	value   []byte
	deleted bool
}

type record struct {
	mu       sync.RWMutex
	versions []version // ascending by seq
}

// at returns the value visible at seq.
func (r *record) at(seq uint64) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.versions) - 1; i >= 0; i-- {
		v := r.versions[i]
		if v.seq <= seq {
			return v.value, !v.deleted
		}
	}
	return nil, false
}

func (r *record) append(v version) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, v)
}

// prune drops versions that no reader at or above horizon can observe and
// reports whether the record became empty.
func (r *record) prune(horizon uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := 0
	for i, v := range r.versions {
		if v.seq <= horizon {
			keep = i
		}
	}
	r.versions = r.versions[keep:]
	return len(r.versions) == 1 && r.versions[0].deleted && r.versions[0].seq <= horizon
}

type op struct {
	key     []byte
	value   []byte
	deleted bool
}

// Store is the live view of the in-memory database.
type Store struct {
	data    *skipmap.FuncMap[[]byte, *record]
	writeMu sync.Mutex
	visible atomic.Uint64

	mu    sync.RWMutex
	views db.Registry

	pinnedMu sync.Mutex
	pinned   map[*Snapshot]uint64
}

func New() *Store {
	return &Store{
		data: skipmap.NewFunc[[]byte, *record](func(a, b []byte) bool {
			return bytes.Compare(a, b) < 0
		}),
		pinned: make(map[*Snapshot]uint64),
	}
}

// apply stamps all ops with one sequence number and publishes them together.
func (s *Store) apply(ops []op) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.views.Closed() {
		return db.ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	seq := s.visible.Load() + 1
	for _, o := range ops {
		key := bytes.Clone(o.key)
		rec, _ := s.data.LoadOrStore(key, &record{})
		rec.append(version{seq: seq, value: bytes.Clone(o.value), deleted: o.deleted})
	}
	s.visible.Store(seq)
	return nil
}

func (s *Store) get(key []byte, seq uint64) ([]byte, error) {
	rec, ok := s.data.Load(key)
	if !ok {
		return nil, db.ErrNotFound
	}
	v, ok := rec.at(seq)
	if !ok {
		return nil, db.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.views.Closed() {
		return nil, db.ErrClosed
	}
	return s.get(key, s.visible.Load())
}

func (s *Store) Put(key, value []byte) error {
	if len(key) == 0 {
		return db.ErrInvalidKey
	}
	return s.apply([]op{{key: key, value: value}})
}

func (s *Store) Delete(key []byte) error {
	return s.apply([]op{{key: key, deleted: true}})
}

func (s *Store) NewBatch() db.Batch {
	return &Batch{store: s}
}

// Compact drops versions in [start, end] that no open snapshot can read. It
// excludes writers and cursor creation while it runs.
func (s *Store) Compact(start, end []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.views.Closed() {
		return db.ErrClosed
	}

	horizon := s.horizon()
	var empty [][]byte
	s.data.Range(func(key []byte, rec *record) bool {
		if start != nil && bytes.Compare(key, start) < 0 {
			return true
		}
		if end != nil && bytes.Compare(key, end) > 0 {
			return false
		}
		if rec.prune(horizon) {
			empty = append(empty, key)
		}
		return true
	})
	for _, key := range empty {
		s.data.Delete(key)
	}
	log.Store.Debug().Int("dropped", len(empty)).Uint64("horizon", horizon).Msg("memory store compacted")
	return nil
}

// horizon is the oldest sequence number any open snapshot still reads.
func (s *Store) horizon() uint64 {
	s.pinnedMu.Lock()
	defer s.pinnedMu.Unlock()
	h := uint64(math.MaxUint64)
	for _, seq := range s.pinned {
		h = min(h, seq)
	}
	return min(h, s.visible.Load())
}

// Flush is a no-op; there is nothing to persist.
func (s *Store) Flush() error {
	if s.views.Closed() {
		return db.ErrClosed
	}
	return nil
}

func (s *Store) NewCursor() (db.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.views.Closed() {
		return nil, db.ErrClosed
	}
	return newCursor(s, s.visible.Load(), &s.views)
}

func (s *Store) Snapshot() (db.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.views.Closed() {
		return nil, db.ErrClosed
	}

	snap := &Snapshot{store: s}
	s.pinnedMu.Lock()
	snap.seq = s.visible.Load()
	s.pinned[snap] = snap.seq
	s.pinnedMu.Unlock()

	if err := s.views.Add(snap); err != nil {
		s.unpin(snap)
		return nil, err
	}
	log.Store.Debug().Uint64("seq", snap.seq).Msg("snapshot opened")
	return snap, nil
}

func (s *Store) unpin(snap *Snapshot) {
	s.pinnedMu.Lock()
	defer s.pinnedMu.Unlock()
	delete(s.pinned, snap)
}

// Close releases every open snapshot and cursor. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	first, err := s.views.CloseAll()
	if first {
		log.Store.Debug().Err(err).Msg("memory store closed")
	}
	return err
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	return s.views.Closed()
}
