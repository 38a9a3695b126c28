package pebble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
)

var _ db.Snapshot = (*Snapshot)(nil)

// Snapshot is a read-only view of the store pinned at the moment it was taken.
// Writes committed afterwards are never visible through it.
type Snapshot struct {
	snap  *pebble.Snapshot
	owner *db.Registry

	mu      sync.RWMutex
	cursors db.Registry
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cursors.Closed() {
		return nil, ErrClosed
	}
	return get(s.snap, key)
}

func (s *Snapshot) NewCursor() (db.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cursors.Closed() {
		return nil, ErrClosed
	}
	iter, err := s.snap.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf(ErrInCursorCreation, err)
	}
	return newCursor(iter, &s.cursors)
}

// Close releases the snapshot and every cursor created from it.
func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.cursors.CloseAll()
	if !first {
		return nil
	}
	s.owner.Remove(s)
	log.Store.Debug().Msg("snapshot released")
	return errors.Join(err, s.snap.Close())
}

// Closed reports whether Close has been called.
func (s *Snapshot) Closed() bool {
	return s.cursors.Closed()
}
