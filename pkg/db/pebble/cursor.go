package pebble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/kvrange/pkg/db"
)

var _ db.Cursor = (*Cursor)(nil)

// Cursor adapts a pebble.Iterator to db.Cursor. Its owning view may close it
// at any time; after that every positioning call returns false and Error
// reports ErrClosed.
type Cursor struct {
	mu     sync.Mutex
	iter   *pebble.Iterator
	owner  *db.Registry
	closed bool
}

func newCursor(iter *pebble.Iterator, owner *db.Registry) (*Cursor, error) {
	c := &Cursor{iter: iter, owner: owner}
	if err := owner.Add(c); err != nil {
		return nil, errors.Join(err, iter.Close())
	}
	return c, nil
}

func (c *Cursor) move(fn func(*pebble.Iterator) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return fn(c.iter)
}

func (c *Cursor) First() bool {
	return c.move((*pebble.Iterator).First)
}

func (c *Cursor) Last() bool {
	return c.move((*pebble.Iterator).Last)
}

func (c *Cursor) Seek(target []byte) bool {
	return c.move(func(it *pebble.Iterator) bool { return it.SeekGE(target) })
}

func (c *Cursor) Next() bool {
	return c.move((*pebble.Iterator).Next)
}

func (c *Cursor) Prev() bool {
	return c.move((*pebble.Iterator).Prev)
}

func (c *Cursor) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.iter.Valid()
}

func (c *Cursor) Key() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.iter.Valid() {
		return nil
	}
	return c.iter.Key()
}

func (c *Cursor) Value() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if !c.iter.Valid() {
		return nil, ErrCursorInvalid
	}

	val, err := c.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf(ErrCursorValue, err)
	}
	return val, nil
}

func (c *Cursor) Error() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.iter.Error()
}

func (c *Cursor) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	err := c.iter.Close()
	c.mu.Unlock()

	c.owner.Remove(c)
	return err
}
