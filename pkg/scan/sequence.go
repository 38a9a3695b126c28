package scan

import (
	"bytes"
	"errors"
	"fmt"
	"iter"

	"github.com/eigerco/kvrange/pkg/db"
)

// node is one layer of a composed sequence. produce runs a full pass from the
// start of the range; open returns fresh pull state without touching storage.
type node[T any] interface {
	produce(fn func(T) bool) error
	open() puller[T]
}

// puller is the pull state of one pass. Once next reports exhaustion or an
// error it keeps doing so.
type puller[T any] interface {
	next() (T, bool, error)
	close() error
}

// Seq is a lazy sequence of values read from a view. Building it with New,
// Map or Select reads nothing; storage is touched only when the sequence is
// driven by Produce, Next or HasNext.
//
// The pull position (Next, HasNext) belongs to this Seq value. Composing a new
// sequence from it does not share or disturb that position. A Seq must not be
// driven from several goroutines at once; separate sequences over the same
// view are independent.
type Seq[T any] struct {
	node node[T]

	pull     puller[T]
	ahead    T
	buffered bool
}

// New returns the entries of view selected by opts, in key order (descending
// for a reverse scan). It fails immediately when view is nil or already closed.
func New(view db.View, opts ...Option) (*Seq[Entry], error) {
	return NewWithOptions(view, NewOptions(opts...))
}

func NewWithOptions(view db.View, o Options) (*Seq[Entry], error) {
	if view == nil {
		return nil, ErrNilView
	}
	if c, ok := view.(interface{ Closed() bool }); ok && c.Closed() {
		return nil, fmt.Errorf("scan: %w", db.ErrClosed)
	}

	o.From = bytes.Clone(o.From)
	o.To = bytes.Clone(o.To)
	o.Prefix = bytes.Clone(o.Prefix)
	return &Seq[Entry]{node: &source{view: view, opts: o}}, nil
}

// Map returns a sequence yielding f(v) for every value v of s.
func Map[T, U any](s *Seq[T], f func(T) U) *Seq[U] {
	return &Seq[U]{node: &mapNode[T, U]{up: s.node, f: f}}
}

// Select returns a sequence of the values of s for which p holds. p is called
// at most once per upstream value.
func (s *Seq[T]) Select(p func(T) bool) *Seq[T] {
	return &Seq[T]{node: &selectNode[T]{up: s.node, p: p}}
}

// Produce calls fn for every value from the start of the sequence until fn
// returns false or the values run out. It does not use or move the pull
// position. Storage is released before Produce returns.
func (s *Seq[T]) Produce(fn func(T) bool) error {
	return s.node.produce(fn)
}

// Next returns the next value. ok is false once the sequence is exhausted;
// this is not an error and further calls keep returning ok == false. A failed
// read is returned on every call until Rewind.
func (s *Seq[T]) Next() (v T, ok bool, err error) {
	if s.buffered {
		v = s.ahead
		var zero T
		s.ahead, s.buffered = zero, false
		return v, true, nil
	}
	if s.pull == nil {
		s.pull = s.node.open()
	}
	return s.pull.next()
}

// HasNext reports whether the following Next call returns a value. The value
// found is held for that call, so repeated HasNext calls read nothing more.
func (s *Seq[T]) HasNext() (bool, error) {
	if s.buffered {
		return true, nil
	}
	v, ok, err := s.Next()
	if err != nil || !ok {
		return false, err
	}
	s.ahead, s.buffered = v, true
	return true, nil
}

// Rewind releases the pull state. The next Next call starts over and yields
// the values in their original order, through every composed layer. Rewinding
// a sequence that was never pulled is a no-op.
func (s *Seq[T]) Rewind() error {
	var zero T
	s.ahead, s.buffered = zero, false
	if s.pull == nil {
		return nil
	}
	p := s.pull
	s.pull = nil
	return p.close()
}

// Close releases any cursor held by the pull state. The sequence can still be
// driven afterwards and starts from the beginning.
func (s *Seq[T]) Close() error {
	return s.Rewind()
}

// All adapts the sequence to a range-over-func iterator. A read failure is
// yielded once, with the zero value, as the last element.
func (s *Seq[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		stopped := false
		err := s.Produce(func(v T) bool {
			if !yield(v, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect returns every value of the sequence.
func (s *Seq[T]) Collect() ([]T, error) {
	var out []T
	err := s.Produce(func(v T) bool {
		out = append(out, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Seq[T]) Count() (int, error) {
	n := 0
	err := s.Produce(func(T) bool {
		n++
		return true
	})
	return n, err
}

// Keys returns the keys of a sequence of entries.
func Keys(s *Seq[Entry]) ([][]byte, error) {
	return Map(s, func(e Entry) []byte { return e.Key }).Collect()
}

// Each calls fn for every value. It stops at the first error fn returns and
// returns it.
func (s *Seq[T]) Each(fn func(T) error) error {
	var cbErr error
	err := s.Produce(func(v T) bool {
		cbErr = fn(v)
		return cbErr == nil
	})
	return errors.Join(err, cbErr)
}
