// Package snaptree implements the heap-resident index variant: a btree
// holding row pointers directly, with copy-on-write clones serving as
// snapshots. Prior clones keep their structure when the live tree mutates,
// so a snapshot is just a captured root and reclamation follows normal GC
// ownership.
package snaptree

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/hupe1980/gridtree/index"
	"github.com/hupe1980/gridtree/row"
)

// DefaultDegree is the btree branching factor.
const DefaultDegree = 32

// item is a tree entry: either a stored row or a transient query-time bound
// pivot. Bounds never enter the tree; they only steer traversal so that
// range queries run with exclusive bias bounds over prefix ties.
type item struct {
	row   *row.Row
	bound *row.Bound
}

func (it item) resolve() (*row.Row, int) {
	if it.bound != nil {
		return it.bound.Row(), int(it.bound.Bias())
	}
	return it.row, 0
}

// Tree is the heap-resident variant of the snapshotable ordered index.
type Tree struct {
	schema *row.Schema
	cmp    *row.Comparator
	degree int

	mu sync.RWMutex
	bt *btree.BTreeG[item]
}

var _ index.Index = (*Tree)(nil)

// New creates an empty tree over the schema's column order. degree <= 0
// selects DefaultDegree.
func New(schema *row.Schema, degree int) *Tree {
	if degree <= 0 {
		degree = DefaultDegree
	}
	cmp := schema.Comparator()
	less := func(a, b item) bool {
		ra, ba := a.resolve()
		rb, bb := b.resolve()
		return cmp.CompareWithBias(ra, ba, rb, bb) < 0
	}
	return &Tree{
		schema: schema,
		cmp:    cmp,
		degree: degree,
		bt:     btree.NewG(degree, less),
	}
}

// Schema returns the declared column order.
func (t *Tree) Schema() *row.Schema { return t.schema }

// InsertOrReplace stores the row, returning the superseded row if present.
func (t *Tree) InsertOrReplace(r *row.Row) (*row.Row, bool) {
	t.mu.Lock()
	prev, had := t.bt.ReplaceOrInsert(item{row: r})
	t.mu.Unlock()
	return prev.row, had
}

// Remove deletes the row matching the full key.
func (t *Tree) Remove(key *row.Row) (*row.Row, bool) {
	t.mu.Lock()
	prev, had := t.bt.Delete(item{bound: row.NewBound(key, row.BiasExact)})
	t.mu.Unlock()
	return prev.row, had
}

// Lookup returns the row matching the full key.
func (t *Tree) Lookup(key *row.Row) (*row.Row, bool) {
	t.mu.RLock()
	it, ok := t.bt.Get(item{bound: row.NewBound(key, row.BiasExact)})
	t.mu.RUnlock()
	return it.row, ok
}

// Len returns the structural row count.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bt.Len()
}

// clone captures a copy-on-write clone of the tree. Clone mutates shared
// copy-on-write state, so it runs under the write lock; it is cheap and
// never copies nodes eagerly.
func (t *Tree) clone() *btree.BTreeG[item] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bt.Clone()
}

// TakeSnapshot captures an isolated point-in-time view.
func (t *Tree) TakeSnapshot() index.Snapshot {
	return &snapshot{view: view{bt: t.clone(), cmp: t.cmp}}
}

// Find returns a cursor over [lower, upper]; see index.View.
func (t *Tree) Find(lower *row.Row, lowerInclusive bool, upper *row.Row, filter index.Filter) *index.Cursor {
	v := view{bt: t.clone(), cmp: t.cmp}
	return v.Find(lower, lowerInclusive, upper, filter)
}

// FirstOrLast returns the first or last visible row.
func (t *Tree) FirstOrLast(first bool, filter index.Filter) (*row.Row, bool) {
	v := view{bt: t.clone(), cmp: t.cmp}
	return v.FirstOrLast(first, filter)
}

// RowCount returns the visible row count; exact by full scan when a filter
// is active.
func (t *Tree) RowCount(filter index.Filter) int {
	v := view{bt: t.clone(), cmp: t.cmp}
	return v.RowCount(filter)
}

// Rebuild copies all rows into a fresh independent tree. It reads a
// point-in-time clone, so concurrent readers and writers are unaffected.
func (t *Tree) Rebuild(ctx context.Context) (index.Index, error) {
	fresh := New(t.schema, t.degree)
	src := t.clone()

	var copied int
	var abort error
	src.Ascend(func(it item) bool {
		copied++
		if copied%index.RebuildCheckInterval == 0 && ctx.Err() != nil {
			abort = index.ErrInterrupted
			return false
		}
		fresh.bt.ReplaceOrInsert(it)
		return true
	})
	if abort != nil {
		return nil, abort
	}
	return fresh, nil
}

// Close is a no-op for the heap variant.
func (t *Tree) Close() error { return nil }

// view is an immutable clone plus the comparator; it backs both snapshots
// and per-cursor live reads.
type view struct {
	bt  *btree.BTreeG[item]
	cmp *row.Comparator
}

func (v view) Len() int { return v.bt.Len() }

func (v view) Find(lower *row.Row, lowerInclusive bool, upper *row.Row, filter index.Filter) *index.Cursor {
	// Exclusive bias bounds: one search prefix may tie with multiple stored
	// rows, so native inclusive/exclusive primitives are insufficient.
	lowerBias := row.BiasAfter
	if lowerInclusive {
		lowerBias = row.BiasBefore
	}
	lo := row.NewBound(lower, lowerBias)
	up := row.NewBound(upper, row.BiasAfter)

	if lo != nil && up != nil &&
		v.cmp.CompareWithBias(lo.Row(), int(lo.Bias()), up.Row(), int(up.Bias())) > 0 {
		return index.EmptyCursor()
	}

	seq := func(yield func(*row.Row) bool) {
		fn := func(it item) bool {
			if up != nil && v.cmp.CompareWithBias(it.row, 0, up.Row(), int(up.Bias())) > 0 {
				return false
			}
			return yield(it.row)
		}
		if lo == nil {
			v.bt.Ascend(fn)
		} else {
			v.bt.AscendGreaterOrEqual(item{bound: lo}, fn)
		}
	}
	return index.NewCursor(seq, filter, nil)
}

func (v view) FirstOrLast(first bool, filter index.Filter) (*row.Row, bool) {
	var res *row.Row
	fn := func(it item) bool {
		if filter != nil && !filter(it.row) {
			return true
		}
		res = it.row
		return false
	}
	if first {
		v.bt.Ascend(fn)
	} else {
		v.bt.Descend(fn)
	}
	return res, res != nil
}

func (v view) RowCount(filter index.Filter) int {
	if filter == nil {
		return v.bt.Len()
	}
	n := 0
	v.bt.Ascend(func(it item) bool {
		if filter(it.row) {
			n++
		}
		return true
	})
	return n
}

type snapshot struct {
	view
}

var _ index.Snapshot = (*snapshot)(nil)

func (s *snapshot) Close() error { return nil }
