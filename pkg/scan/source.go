package scan

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
	"github.com/eigerco/kvrange/pkg/metrics"
)

// Entry is a key/value pair read from a view. Both slices are owned by the
// caller.
type Entry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// source is the leaf node: a range over a view.
type source struct {
	view db.View
	opts Options
}

func (s *source) produce(fn func(Entry) bool) (err error) {
	p := s.open()
	defer func() {
		err = errors.Join(err, p.close())
	}()

	for {
		e, ok, err := p.next()
		if err != nil || !ok {
			return err
		}
		if !fn(e) {
			return nil
		}
	}
}

func (s *source) open() puller[Entry] {
	return &cursorPuller{view: s.view, opts: s.opts}
}

// cursorPuller drives one cursor through the range. The cursor is created on
// the first pull and released as soon as the range ends or fails.
type cursorPuller struct {
	view db.View
	opts Options

	cur  db.Cursor
	read int
	done bool
	err  error
}

func (p *cursorPuller) next() (Entry, bool, error) {
	if p.err != nil {
		return Entry{}, false, p.err
	}
	if p.done {
		return Entry{}, false, nil
	}

	if p.cur == nil {
		if p.opts.Limit == 0 {
			return p.finish()
		}
		cur, err := p.view.NewCursor()
		if err != nil {
			return p.fail(fmt.Errorf("scan: open cursor: %w", err))
		}
		p.cur = cur
		metrics.ScansStarted.WithLabelValues(metrics.Direction(p.opts.Reverse)).Inc()
		log.Scan.Debug().
			Hex("from", p.opts.From).
			Hex("to", p.opts.To).
			Hex("prefix", p.opts.Prefix).
			Int("limit", p.opts.Limit).
			Bool("reverse", p.opts.Reverse).
			Msg("cursor opened")
		p.opts.position(cur)
	} else if p.opts.Reverse {
		p.cur.Prev()
	} else {
		p.cur.Next()
	}

	if !p.cur.Valid() {
		if err := p.cur.Error(); err != nil {
			return p.fail(fmt.Errorf("scan: move cursor: %w", err))
		}
		return p.finish()
	}
	key := p.cur.Key()
	if p.opts.stops(key) {
		return p.finish()
	}
	value, err := p.cur.Value()
	if err != nil {
		return p.fail(fmt.Errorf("scan: read value: %w", err))
	}

	e := Entry{Key: bytes.Clone(key), Value: bytes.Clone(value)}
	metrics.EntriesRead.Inc()
	p.read++
	if p.opts.Limit > 0 && p.read >= p.opts.Limit {
		p.done = true
		if err := p.release(); err != nil {
			p.err = err
		}
	}
	return e, true, nil
}

func (p *cursorPuller) finish() (Entry, bool, error) {
	p.done = true
	if err := p.release(); err != nil {
		return p.fail(err)
	}
	return Entry{}, false, nil
}

func (p *cursorPuller) fail(err error) (Entry, bool, error) {
	p.err = errors.Join(err, p.release())
	metrics.ScanErrors.Inc()
	log.Scan.Warn().Err(p.err).Int("read", p.read).Msg("scan aborted")
	return Entry{}, false, p.err
}

func (p *cursorPuller) release() error {
	if p.cur == nil {
		return nil
	}
	cur := p.cur
	p.cur = nil
	if err := cur.Close(); err != nil {
		return fmt.Errorf("scan: close cursor: %w", err)
	}
	return nil
}

func (p *cursorPuller) close() error {
	return p.release()
}
