package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/eigerco/kvrange/pkg/db"
)

var _ db.Cursor = (*Cursor)(nil)

type entry struct {
	key   []byte
	value []byte
}

// Cursor walks a copy of the entries visible at one sequence number, taken
// when the cursor was created.
type Cursor struct {
	mu      sync.Mutex
	entries []entry
	// pos is -1 before the first entry and len(entries) past the last
	pos    int
	owner  *db.Registry
	closed bool
}

func newCursor(s *Store, seq uint64, owner *db.Registry) (*Cursor, error) {
	var entries []entry
	s.data.Range(func(key []byte, rec *record) bool {
		if v, ok := rec.at(seq); ok {
			entries = append(entries, entry{key: key, value: v})
		}
		return true
	})

	c := &Cursor{entries: entries, pos: -1, owner: owner}
	if err := owner.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// move repositions the cursor at the index returned by fn, clamped to the
// before-first and past-last positions.
func (c *Cursor) move(fn func() int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.pos = max(-1, min(fn(), len(c.entries)))
	return c.valid()
}

func (c *Cursor) valid() bool {
	return !c.closed && c.pos >= 0 && c.pos < len(c.entries)
}

func (c *Cursor) First() bool {
	return c.move(func() int { return 0 })
}

func (c *Cursor) Last() bool {
	return c.move(func() int { return len(c.entries) - 1 })
}

func (c *Cursor) Seek(target []byte) bool {
	return c.move(func() int {
		return sort.Search(len(c.entries), func(i int) bool {
			return bytes.Compare(c.entries[i].key, target) >= 0
		})
	})
}

func (c *Cursor) Next() bool {
	return c.move(func() int { return c.pos + 1 })
}

func (c *Cursor) Prev() bool {
	return c.move(func() int { return c.pos - 1 })
}

func (c *Cursor) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid()
}

func (c *Cursor) Key() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid() {
		return nil
	}
	return c.entries[c.pos].key
}

func (c *Cursor) Value() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, db.ErrClosed
	}
	if !c.valid() {
		return nil, ErrCursorInvalid
	}
	return c.entries[c.pos].value, nil
}

func (c *Cursor) Error() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return db.ErrClosed
	}
	return nil
}

func (c *Cursor) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.entries = nil
	c.mu.Unlock()

	c.owner.Remove(c)
	return nil
}
