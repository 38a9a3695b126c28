package db

import (
	"errors"
	"io"
	"sync"
)

// Registry tracks the resources handed out by a view (cursors, snapshots) so
// that closing the view releases all of them. The zero value is ready to use.
type Registry struct {
	mu     sync.Mutex
	closed bool
	open   map[io.Closer]struct{}
}

// Add registers c. It fails with ErrClosed once the registry was closed, in
// which case c is left untouched and the caller must release it.
func (r *Registry) Add(c io.Closer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.open == nil {
		r.open = make(map[io.Closer]struct{})
	}
	r.open[c] = struct{}{}
	return nil
}

// Remove forgets c without closing it.
func (r *Registry) Remove(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, c)
}

// Closed reports whether CloseAll has been called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Len returns the number of resources still registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// CloseAll marks the registry closed and closes every registered resource.
// first is true only for the call that performed the transition; later calls
// are no-ops.
func (r *Registry) CloseAll() (first bool, err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, nil
	}
	r.closed = true
	pending := make([]io.Closer, 0, len(r.open))
	for c := range r.open {
		pending = append(pending, c)
	}
	r.open = nil
	r.mu.Unlock()

	var errs []error
	for _, c := range pending {
		if cerr := c.Close(); cerr != nil {
			errs = append(errs, cerr)
		}
	}
	return true, errors.Join(errs...)
}
