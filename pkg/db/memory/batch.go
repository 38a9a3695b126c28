package memory

import (
	"bytes"

	"github.com/eigerco/kvrange/pkg/db"
)

// Batch buffers writes and applies them under a single sequence number.
type Batch struct {
	store *Store
	ops   []op
	done  bool
}

func (b *Batch) Put(key, value []byte) error {
	if b.done {
		return ErrBatchDone
	}
	if len(key) == 0 {
		return db.ErrInvalidKey
	}
	b.ops = append(b.ops, op{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done {
		return ErrBatchDone
	}
	b.ops = append(b.ops, op{key: bytes.Clone(key), deleted: true})
	return nil
}

func (b *Batch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	if err := b.store.apply(b.ops); err != nil {
		return err
	}
	b.done = true
	b.ops = nil
	return nil
}

func (b *Batch) Close() error {
	b.done = true
	b.ops = nil
	return nil
}

var _ db.Batch = (*Batch)(nil)
