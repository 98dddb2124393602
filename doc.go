// Package gridtree provides the ordered-index core of a distributed
// SQL-over-partitioned-cache engine: a concurrent, snapshot-isolated index
// mapping composite row keys to rows, and the distributed range-scan
// protocol that fetches sorted sub-ranges from the nodes owning them and
// merges them into one stream.
//
// # Quick Start
//
//	schema := row.MustSchema([]row.Column{
//	    {Name: "org_id", Kind: row.KindInt64},
//	    {Name: "user_id", Kind: row.KindInt64},
//	}, 0)
//
//	idx, _ := gridtree.New(schema)
//	idx.InsertOrReplace(row.New(row.Int64(1), row.Int64(100)))
//
//	snap := idx.TakeSnapshot()
//	defer snap.Close()
//	cur := snap.Find(row.New(row.Int64(1)), true, row.New(row.Int64(1)), nil)
//	for r, ok := cur.Next(); ok; r, ok = cur.Next() {
//	    // rows sharing the org_id=1 prefix, in index order
//	}
//
// # Storage Variants
//
// Two variants share one capability contract, chosen once at construction:
// the heap-resident tree (default) holds row objects directly; the off-heap
// tree (gridtree.WithOffHeap) keeps serialized rows in refcounted arena
// memory outside the GC heap, deferring reclamation past the lifetime of
// every snapshot that can still reach a superseded row.
//
// # Distributed Scans
//
// The distrange package routes batches of range bounds to owning nodes by
// affinity key, demultiplexes the sorted response batches per query and
// folds them into a single ordered stream. The protocol package exposes the
// thin query-id/cursor boundary consumed by client drivers.
package gridtree
