package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
	"github.com/eigerco/kvrange/pkg/metrics"
)

var ErrUnknownSnapshot = errors.New("server: unknown snapshot")

// snapshots holds the snapshots opened by API clients until they delete them
// or the server stops.
type snapshots struct {
	mu     sync.Mutex
	open   map[uuid.UUID]db.Snapshot
	closed bool
}

func newSnapshots() *snapshots {
	return &snapshots{open: make(map[uuid.UUID]db.Snapshot)}
}

func (s *snapshots) create(store db.Snapshotter) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return uuid.Nil, db.ErrClosed
	}

	snap, err := store.Snapshot()
	if err != nil {
		return uuid.Nil, fmt.Errorf("server: open snapshot: %w", err)
	}
	id := uuid.New()
	s.open[id] = snap
	metrics.OpenSnapshots.Inc()
	log.Server.Debug().Stringer("id", id).Msg("snapshot opened")
	return id, nil
}

func (s *snapshots) get(raw string) (db.Snapshot, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSnapshot, raw)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.open[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSnapshot, id)
	}
	return snap, nil
}

func (s *snapshots) release(raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownSnapshot, raw)
	}
	s.mu.Lock()
	snap, ok := s.open[id]
	delete(s.open, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSnapshot, id)
	}

	metrics.OpenSnapshots.Dec()
	log.Server.Debug().Stringer("id", id).Msg("snapshot released")
	return snap.Close()
}

// closeAll releases every snapshot. Later creates fail with db.ErrClosed.
func (s *snapshots) closeAll() error {
	s.mu.Lock()
	open := s.open
	s.open = make(map[uuid.UUID]db.Snapshot)
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, snap := range open {
		metrics.OpenSnapshots.Dec()
		if err := snap.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *snapshots) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
