package distrange

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gridtree/row"
)

// Topology resolves partition ownership for a given topology version. It is
// an external collaborator (cluster membership/discovery); gridtree only
// consumes it.
type Topology interface {
	// Alive reports whether the node is part of the current topology.
	Alive(id NodeID) bool

	// Partition maps an affinity key value to its partition.
	Partition(aff row.Value) uint32

	// AffinityNode resolves the primary node owning the affinity key at the
	// given topology version. ok is false when the topology no longer has an
	// owner (membership changed).
	AffinityNode(aff row.Value, topVer uint64) (NodeID, bool)

	// PartitionNodes returns every node holding any of the given partitions
	// at the given topology version.
	PartitionNodes(parts *roaring.Bitmap, topVer uint64) []NodeID
}

// QueryContext carries the per-query routing inputs supplied by the query
// execution layer: identity, topology version, the optional explicit
// partition pinning map and the page-size bound.
type QueryContext struct {
	QueryID         uint64
	Origin          NodeID
	TopologyVersion uint64

	// PartitionMap optionally pins partitions to nodes explicitly. When
	// present it overrides the affinity function.
	PartitionMap map[uint32]NodeID

	// Partitions is the set of partitions relevant to the query; broadcasts
	// target every node holding one of them.
	Partitions *roaring.Bitmap

	// PageSize bounds response batches and the pending-response queue.
	PageSize int
}

// DefaultPageSize bounds batches when the query context does not set one.
const DefaultPageSize = 1024

// EffectivePageSize returns the configured page size or DefaultPageSize.
func (q *QueryContext) EffectivePageSize() int {
	if q.PageSize > 0 {
		return q.PageSize
	}
	return DefaultPageSize
}

// NodeForPartition resolves a partition through the explicit pinning map.
func (q *QueryContext) NodeForPartition(part uint32) (NodeID, bool) {
	n, ok := q.PartitionMap[part]
	return n, ok
}
