package index

import (
	"iter"

	"github.com/hupe1980/gridtree/row"
)

// Cursor is a finite, non-restartable lazy row sequence. A second pass over
// the same range requires a new cursor. Cursors built over a snapshot are
// unaffected by concurrent structural changes to the live index.
type Cursor struct {
	next    func() (*row.Row, bool)
	stop    func()
	filter  Filter
	release func()
	done    bool
}

// NewCursor wraps a raw ordered sequence with an optional visibility filter.
// release, if non-nil, runs once when the cursor is exhausted or closed
// (variants use it to unpin snapshot guards).
func NewCursor(seq iter.Seq[*row.Row], filter Filter, release func()) *Cursor {
	next, stop := iter.Pull(seq)
	return &Cursor{next: next, stop: stop, filter: filter, release: release}
}

// EmptyCursor returns an exhausted cursor.
func EmptyCursor() *Cursor {
	return &Cursor{done: true}
}

// Next returns the next visible row, applying the filter lazily.
func (c *Cursor) Next() (*row.Row, bool) {
	if c.done {
		return nil, false
	}
	for {
		r, ok := c.next()
		if !ok {
			c.Close()
			return nil, false
		}
		if c.filter == nil || c.filter(r) {
			return r, true
		}
	}
}

// Close releases the cursor. Idempotent; exhausting the cursor closes it.
func (c *Cursor) Close() {
	if c.done {
		return
	}
	c.done = true
	if c.stop != nil {
		c.stop()
	}
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

// Drain consumes the remainder of the cursor into a slice.
func (c *Cursor) Drain() []*row.Row {
	var rows []*row.Row
	for {
		r, ok := c.Next()
		if !ok {
			return rows
		}
		rows = append(rows, r)
	}
}
