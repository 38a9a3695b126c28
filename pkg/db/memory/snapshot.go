package memory

import (
	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
)

var _ db.Snapshot = (*Snapshot)(nil)

// Snapshot reads the store as of the sequence number current at its creation.
type Snapshot struct {
	store   *Store
	seq     uint64
	cursors db.Registry
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	if s.cursors.Closed() {
		return nil, db.ErrClosed
	}
	return s.store.get(key, s.seq)
}

func (s *Snapshot) NewCursor() (db.Cursor, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	if s.cursors.Closed() {
		return nil, db.ErrClosed
	}
	return newCursor(s.store, s.seq, &s.cursors)
}

// Close releases the snapshot and every cursor created from it.
func (s *Snapshot) Close() error {
	first, err := s.cursors.CloseAll()
	if !first {
		return nil
	}
	s.store.unpin(s)
	s.store.views.Remove(s)
	log.Store.Debug().Uint64("seq", s.seq).Msg("snapshot released")
	return err
}

// Closed reports whether Close has been called.
func (s *Snapshot) Closed() bool {
	return s.cursors.Closed()
}
