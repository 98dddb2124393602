// Package offheap implements the off-heap index variant: rows are serialized
// into an arena of reference-counted entries outside the GC heap, and the
// btree stores stable arena refs. Superseding a row never frees its memory
// synchronously; the decrement is scheduled on the arena guard and runs only
// once every snapshot taken before the mutation has been closed.
//
// Payload references are not serialized: a row read back from the arena
// carries column values only.
package offheap

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/hupe1980/gridtree/codec"
	"github.com/hupe1980/gridtree/index"
	"github.com/hupe1980/gridtree/internal/arena"
	"github.com/hupe1980/gridtree/row"
)

// DefaultDegree is the btree branching factor.
const DefaultDegree = 32

// item is a tree entry: a stored arena ref or a transient bound pivot.
type item struct {
	ref   arena.Ref
	bound *row.Bound
}

// Tree is the off-heap variant of the snapshotable ordered index.
type Tree struct {
	schema *row.Schema
	cmp    *row.Comparator
	degree int
	ar     *arena.Arena
	guard  *arena.Guard

	mu sync.RWMutex
	bt *btree.BTreeG[item]
}

var _ index.Index = (*Tree)(nil)

// Options configures the off-heap variant.
type Options struct {
	// Degree is the btree branching factor; <= 0 selects DefaultDegree.
	Degree int
	// ChunkSize is the arena chunk size; <= 0 selects the arena default.
	ChunkSize int
}

// New creates an empty off-heap tree over the schema's column order.
func New(schema *row.Schema, opts Options) *Tree {
	degree := opts.Degree
	if degree <= 0 {
		degree = DefaultDegree
	}
	t := &Tree{
		schema: schema,
		cmp:    schema.Comparator(),
		degree: degree,
		ar:     arena.New(opts.ChunkSize),
		guard:  arena.NewGuard(),
	}
	t.bt = btree.NewG(degree, t.less)
	return t
}

func (t *Tree) less(a, b item) bool {
	ra, ba := t.resolve(a)
	rb, bb := t.resolve(b)
	return t.cmp.CompareWithBias(ra, ba, rb, bb) < 0
}

func (t *Tree) resolve(it item) (*row.Row, int) {
	if it.bound != nil {
		return it.bound.Row(), int(it.bound.Bias())
	}
	return t.decode(it.ref), 0
}

func (t *Tree) decode(ref arena.Ref) *row.Row {
	r, _, err := codec.DecodeRow(t.ar.Bytes(ref))
	if err != nil {
		panic(fmt.Sprintf("offheap: corrupt arena row: %v", err))
	}
	return r
}

// Schema returns the declared column order.
func (t *Tree) Schema() *row.Schema { return t.schema }

// InsertOrReplace serializes the row into the arena with reference count 1
// and stores its ref. A superseded entry's decrement is deferred through the
// guard, never freed synchronously.
func (t *Tree) InsertOrReplace(r *row.Row) (*row.Row, bool) {
	ref, err := t.ar.Alloc(codec.AppendRow(nil, r))
	if err != nil {
		panic(fmt.Sprintf("offheap: arena alloc: %v", err))
	}

	t.mu.Lock()
	prev, had := t.bt.ReplaceOrInsert(item{ref: ref})
	var prevRow *row.Row
	if had {
		prevRow = t.decode(prev.ref)
	}
	t.mu.Unlock()

	if had {
		t.finalizeLater(prev.ref)
	}
	return prevRow, had
}

// Remove deletes the row matching the full key; its memory is reclaimed only
// once no earlier snapshot can reach it.
func (t *Tree) Remove(key *row.Row) (*row.Row, bool) {
	t.mu.Lock()
	prev, had := t.bt.Delete(item{bound: row.NewBound(key, row.BiasExact)})
	var prevRow *row.Row
	if had {
		prevRow = t.decode(prev.ref)
	}
	t.mu.Unlock()

	if had {
		t.finalizeLater(prev.ref)
	}
	return prevRow, had
}

func (t *Tree) finalizeLater(ref arena.Ref) {
	t.guard.FinalizeLater(func() { t.ar.DecRef(ref) })
}

// Lookup returns the row matching the full key.
func (t *Tree) Lookup(key *row.Row) (*row.Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	it, ok := t.bt.Get(item{bound: row.NewBound(key, row.BiasExact)})
	if !ok {
		return nil, false
	}
	return t.decode(it.ref), true
}

// Len returns the structural row count.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bt.Len()
}

// clone captures a copy-on-write clone plus a guard pin keeping superseded
// arena entries alive for the clone's lifetime.
func (t *Tree) clone() (*btree.BTreeG[item], *arena.Pin) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bt.Clone(), t.guard.Pin()
}

// TakeSnapshot captures an isolated point-in-time view. Close releases the
// guard pin; until then no row visible to the snapshot is freed.
func (t *Tree) TakeSnapshot() index.Snapshot {
	bt, pin := t.clone()
	return &snapshot{view: view{t: t, bt: bt}, pin: pin}
}

// Find returns a cursor over [lower, upper]; the cursor holds a guard pin
// until exhausted or closed.
func (t *Tree) Find(lower *row.Row, lowerInclusive bool, upper *row.Row, filter index.Filter) *index.Cursor {
	bt, pin := t.clone()
	v := view{t: t, bt: bt}
	return v.find(lower, lowerInclusive, upper, filter, pin.Close)
}

// FirstOrLast returns the first or last visible row.
func (t *Tree) FirstOrLast(first bool, filter index.Filter) (*row.Row, bool) {
	bt, pin := t.clone()
	defer pin.Close()
	return view{t: t, bt: bt}.FirstOrLast(first, filter)
}

// RowCount returns the visible row count; exact by full scan when a filter
// is active.
func (t *Tree) RowCount(filter index.Filter) int {
	bt, pin := t.clone()
	defer pin.Close()
	return view{t: t, bt: bt}.RowCount(filter)
}

// Rebuild copies all rows into a fresh independent tree with its own arena.
// Row bytes are copied verbatim, no re-encoding. Aborting discards the
// partial copy and releases its arena.
func (t *Tree) Rebuild(ctx context.Context) (index.Index, error) {
	fresh := New(t.schema, Options{Degree: t.degree, ChunkSize: 0})
	bt, pin := t.clone()
	defer pin.Close()

	var copied int
	var abort error
	bt.Ascend(func(it item) bool {
		copied++
		if copied%index.RebuildCheckInterval == 0 && ctx.Err() != nil {
			abort = index.ErrInterrupted
			return false
		}
		ref, err := fresh.ar.Alloc(t.ar.Bytes(it.ref))
		if err != nil {
			abort = err
			return false
		}
		fresh.bt.ReplaceOrInsert(item{ref: ref})
		return true
	})
	if abort != nil {
		_ = fresh.Close()
		return nil, abort
	}
	return fresh, nil
}

// Close releases the arena. All snapshots and cursors must be closed first.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bt.Clear(false)
	return t.ar.Close()
}

// ArenaStats exposes the backing arena's usage counters.
func (t *Tree) ArenaStats() arena.Stats { return t.ar.Stats() }

// PendingFinalizers reports deferred reclamations held back by open
// snapshots. Intended for tests and stats.
func (t *Tree) PendingFinalizers() int { return t.guard.Pending() }

// view is an immutable clone; rows decode through the owning tree's arena.
type view struct {
	t  *Tree
	bt *btree.BTreeG[item]
}

func (v view) Len() int { return v.bt.Len() }

func (v view) find(lower *row.Row, lowerInclusive bool, upper *row.Row, filter index.Filter, release func()) *index.Cursor {
	lowerBias := row.BiasAfter
	if lowerInclusive {
		lowerBias = row.BiasBefore
	}
	lo := row.NewBound(lower, lowerBias)
	up := row.NewBound(upper, row.BiasAfter)

	cmp := v.t.cmp
	if lo != nil && up != nil &&
		cmp.CompareWithBias(lo.Row(), int(lo.Bias()), up.Row(), int(up.Bias())) > 0 {
		if release != nil {
			release()
		}
		return index.EmptyCursor()
	}

	seq := func(yield func(*row.Row) bool) {
		fn := func(it item) bool {
			r := v.t.decode(it.ref)
			if up != nil && cmp.CompareWithBias(r, 0, up.Row(), int(up.Bias())) > 0 {
				return false
			}
			return yield(r)
		}
		if lo == nil {
			v.bt.Ascend(fn)
		} else {
			v.bt.AscendGreaterOrEqual(item{bound: lo}, fn)
		}
	}
	return index.NewCursor(seq, filter, release)
}

// Find returns a cursor over [lower, upper]; see index.View.
func (v view) Find(lower *row.Row, lowerInclusive bool, upper *row.Row, filter index.Filter) *index.Cursor {
	return v.find(lower, lowerInclusive, upper, filter, nil)
}

// FirstOrLast returns the first or last visible row.
func (v view) FirstOrLast(first bool, filter index.Filter) (*row.Row, bool) {
	var res *row.Row
	fn := func(it item) bool {
		r := v.t.decode(it.ref)
		if filter != nil && !filter(r) {
			return true
		}
		res = r
		return false
	}
	if first {
		v.bt.Ascend(fn)
	} else {
		v.bt.Descend(fn)
	}
	return res, res != nil
}

// RowCount returns the visible row count.
func (v view) RowCount(filter index.Filter) int {
	if filter == nil {
		return v.bt.Len()
	}
	n := 0
	v.bt.Ascend(func(it item) bool {
		if filter(v.t.decode(it.ref)) {
			n++
		}
		return true
	})
	return n
}

type snapshot struct {
	view
	pin    *arena.Pin
	closed bool
	mu     sync.Mutex
}

var _ index.Snapshot = (*snapshot)(nil)

// Close releases the snapshot's guard pin, allowing reclamation of rows
// superseded after the snapshot was taken. Idempotent.
func (s *snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pin.Close()
	return nil
}
