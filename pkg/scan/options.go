package scan

import (
	"bytes"

	"github.com/eigerco/kvrange/pkg/db"
)

// Unlimited disables the entry cap. Any negative limit behaves the same.
const Unlimited = -1

// Options describes a range request. From names where iteration begins and To
// where it stops, whichever the direction: for a reverse scan From is the upper
// bound and To the lower one. Both bounds are inclusive and need not be stored
// keys. A nil bound is absent.
type Options struct {
	From    []byte `json:"from,omitempty"`
	To      []byte `json:"to,omitempty"`
	Prefix  []byte `json:"prefix,omitempty"`
	Limit   int    `json:"limit"`
	Reverse bool   `json:"reverse,omitempty"`
}

// Option adjusts Options.
type Option func(*Options)

func From(key []byte) Option {
	return func(o *Options) { o.From = key }
}

func To(key []byte) Option {
	return func(o *Options) { o.To = key }
}

// Limit caps the number of entries. Negative values are ignored.
func Limit(n int) Option {
	return func(o *Options) { o.Limit = n }
}

func Reverse() Option {
	return func(o *Options) { o.Reverse = true }
}

// Prefix restricts the scan to keys starting with p, in addition to From/To.
func Prefix(p []byte) Option {
	return func(o *Options) { o.Prefix = p }
}

// NewOptions builds Options starting from an unbounded forward scan.
func NewOptions(opts ...Option) Options {
	o := Options{Limit: Unlimited}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// stops reports whether key lies past the end of the range.
func (o Options) stops(key []byte) bool {
	if o.Prefix != nil && !bytes.HasPrefix(key, o.Prefix) {
		return true
	}
	if o.To == nil {
		return false
	}
	if o.Reverse {
		return bytes.Compare(key, o.To) < 0
	}
	return bytes.Compare(key, o.To) > 0
}

// position moves c to the first entry of the range. Validity is checked by the
// caller through c.Valid and c.Error.
func (o Options) position(c db.Cursor) {
	if !o.Reverse {
		from := o.From
		if o.Prefix != nil && (from == nil || bytes.Compare(from, o.Prefix) < 0) {
			from = o.Prefix
		}
		if from == nil {
			c.First()
			return
		}
		c.Seek(from)
		return
	}

	if o.Prefix != nil {
		end := successor(o.Prefix)
		if o.From == nil || (end != nil && bytes.Compare(o.From, end) >= 0) {
			// last key below the prefix range's exclusive end
			if end == nil || !c.Seek(end) {
				if c.Error() == nil {
					c.Last()
				}
				return
			}
			c.Prev()
			return
		}
	}
	if o.From == nil {
		c.Last()
		return
	}

	// last key <= From
	if !c.Seek(o.From) {
		if c.Error() == nil {
			c.Last()
		}
		return
	}
	if bytes.Compare(c.Key(), o.From) > 0 {
		c.Prev()
	}
}

// successor returns the smallest key greater than every key with prefix p, or
// nil when no such key exists (p is all 0xff bytes).
func successor(p []byte) []byte {
	end := bytes.Clone(p)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Clamp caps the limit at maxLimit; an unbounded request gets maxLimit. A
// negative maxLimit leaves o untouched.
func (o Options) Clamp(maxLimit int) Options {
	if maxLimit < 0 {
		return o
	}
	if o.Limit < 0 || o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	return o
}
