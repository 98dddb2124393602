package gridtree

import (
	"context"
	"time"

	"github.com/hupe1980/gridtree/index"
	"github.com/hupe1980/gridtree/index/offheap"
	"github.com/hupe1980/gridtree/index/snaptree"
	"github.com/hupe1980/gridtree/row"
)

// Index is the public facade over one storage variant: a concurrent ordered
// index with copy-on-write snapshots. All methods are safe for concurrent
// use.
type Index struct {
	name    string
	idx     index.Index
	log     *Logger
	metrics MetricsCollector
}

// New creates an index over the schema's declared column order. The storage
// variant is chosen once here (heap-resident by default, off-heap with
// WithOffHeap).
func New(schema *row.Schema, opts ...Option) (*Index, error) {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	var idx index.Index
	if o.offHeap {
		idx = offheap.New(schema, offheap.Options{Degree: o.degree, ChunkSize: o.arenaChunkSize})
	} else {
		idx = snaptree.New(schema, o.degree)
	}

	return &Index{
		name:    o.name,
		idx:     idx,
		log:     o.logger.WithIndex(o.name),
		metrics: o.metricsCollector,
	}, nil
}

// Schema returns the declared column order.
func (ix *Index) Schema() *row.Schema { return ix.idx.Schema() }

// Unwrap exposes the underlying variant for wiring into distrange handlers.
func (ix *Index) Unwrap() index.Index { return ix.idx }

// InsertOrReplace stores the row, returning the superseded row if the full
// key was already present.
func (ix *Index) InsertOrReplace(r *row.Row) (*row.Row, bool) {
	start := time.Now()
	prev, replaced := ix.idx.InsertOrReplace(r)
	ix.metrics.RecordInsert(time.Since(start), replaced)
	return prev, replaced
}

// Remove deletes the row matching the full key.
func (ix *Index) Remove(key *row.Row) (*row.Row, bool) {
	start := time.Now()
	prev, found := ix.idx.Remove(key)
	ix.metrics.RecordRemove(time.Since(start), found)
	return prev, found
}

// Lookup returns the row matching the full key, or ErrNotFound.
func (ix *Index) Lookup(key *row.Row) (*row.Row, error) {
	start := time.Now()
	r, found := ix.idx.Lookup(key)
	ix.metrics.RecordLookup(time.Since(start), found)
	if !found {
		return nil, ErrNotFound
	}
	return r, nil
}

// Find returns a cursor over [lower, upper] against the live index. The
// lower bound is inclusive when lowerInclusive is set; the upper bound is
// always inclusive; rows tied with a partial bound on a shared column
// prefix are included.
func (ix *Index) Find(lower *row.Row, lowerInclusive bool, upper *row.Row, filter index.Filter) *index.Cursor {
	start := time.Now()
	cur := ix.idx.Find(lower, lowerInclusive, upper, filter)
	ix.metrics.RecordScan(time.Since(start), -1)
	return cur
}

// FindFirstOrLast returns the first or last visible row.
func (ix *Index) FindFirstOrLast(first bool, filter index.Filter) (*row.Row, bool) {
	return ix.idx.FirstOrLast(first, filter)
}

// RowCount returns the number of visible rows: exact by full scan when a
// visibility filter is active, else the structural size.
func (ix *Index) RowCount(filter index.Filter) int {
	return ix.idx.RowCount(filter)
}

// Len returns the structural row count.
func (ix *Index) Len() int { return ix.idx.Len() }

// TakeSnapshot captures an isolated point-in-time view. Cheap; never blocks
// writers. The snapshot must be closed.
func (ix *Index) TakeSnapshot() index.Snapshot {
	start := time.Now()
	snap := ix.idx.TakeSnapshot()
	ix.metrics.RecordSnapshot(time.Since(start))
	ix.log.LogSnapshot(context.Background(), snap.Len())
	return snap
}

// Rebuild copies all rows into a fresh independent index of the same kind,
// checking ctx periodically; an abort returns ErrInterrupted and leaves the
// source untouched.
func (ix *Index) Rebuild(ctx context.Context) (*Index, error) {
	start := time.Now()
	fresh, err := ix.idx.Rebuild(ctx)
	ix.metrics.RecordRebuild(time.Since(start), err)
	if err != nil {
		ix.log.LogRebuild(ctx, 0, err)
		return nil, translateError(err)
	}
	ix.log.LogRebuild(ctx, fresh.Len(), nil)
	return &Index{
		name:    ix.name,
		idx:     fresh,
		log:     ix.log,
		metrics: ix.metrics,
	}, nil
}

// Close releases variant resources. All snapshots must be closed first.
func (ix *Index) Close() error {
	return ix.idx.Close()
}
