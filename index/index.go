// Package index defines the capability contract shared by gridtree's storage
// variants: a concurrent ordered row map with copy-on-write snapshots, lazy
// filtered range cursors and an interruptible rebuild.
//
// Two variants implement the contract, chosen once at construction: the
// heap-resident tree (index/snaptree) holding row objects directly, and the
// off-heap tree (index/offheap) keeping serialized rows in arena memory with
// explicit reference counting.
package index

import (
	"context"
	"errors"

	"github.com/hupe1980/gridtree/row"
)

// ErrInterrupted is returned when a rebuild is aborted by its context. The
// source index is left untouched.
var ErrInterrupted = errors.New("index: rebuild interrupted")

// RebuildCheckInterval is the number of copied rows between interruption
// checks during a rebuild.
const RebuildCheckInterval = 1000

// Filter is an optional row-visibility predicate (security or partition
// filtering) applied lazily while a cursor is consumed.
type Filter func(r *row.Row) bool

// View is a readable ordered row set: either the live index or a snapshot.
type View interface {
	// Find returns a cursor over rows in the given range. The lower bound is
	// inclusive when lowerInclusive is set; the upper bound is always
	// inclusive. Either bound may be nil (open). Rows tied with a partial
	// bound on a shared column prefix are always included on the inclusive
	// side.
	Find(lower *row.Row, lowerInclusive bool, upper *row.Row, filter Filter) *Cursor

	// FirstOrLast returns the first (ascending) or last row passing the
	// filter.
	FirstOrLast(first bool, filter Filter) (*row.Row, bool)

	// RowCount returns the number of visible rows. With a nil filter it is
	// the structural size; otherwise it is exact by full scan.
	RowCount(filter Filter) int

	// Len returns the structural row count.
	Len() int
}

// Snapshot is an isolated point-in-time view. Contents never change after
// creation; Close releases resources pinned for the snapshot's lifetime (a
// no-op for the heap variant) and must be called exactly once.
type Snapshot interface {
	View
	Close() error
}

// Index is the mutable ordered index.
type Index interface {
	View

	// Schema returns the declared column order.
	Schema() *row.Schema

	// InsertOrReplace stores the row, returning the superseded row if the
	// full key was already present.
	InsertOrReplace(r *row.Row) (*row.Row, bool)

	// Remove deletes the row matching the full key, returning it.
	Remove(key *row.Row) (*row.Row, bool)

	// Lookup returns the row matching the full key.
	Lookup(key *row.Row) (*row.Row, bool)

	// TakeSnapshot captures a structural-sharing clone. Cheap; never blocks
	// writers.
	TakeSnapshot() Snapshot

	// Rebuild copies all rows into a fresh independent index of the same
	// kind. It only reads the source and checks ctx every
	// RebuildCheckInterval rows, aborting with ErrInterrupted and discarding
	// the partial copy.
	Rebuild(ctx context.Context) (Index, error)

	// Close releases variant resources. No snapshots may be open.
	Close() error
}
