package distrange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/gridtree/row"
)

// Messenger sends range requests to remote nodes. Sends are fire-and-forget:
// the transport owns framing and delivery, the coordinator only awaits
// responses through its PendingQuery.
type Messenger interface {
	Send(ctx context.Context, to NodeID, req *RangeRequest) error
}

// BoundPair is one (lower, upper) search-row pair for a distributed scan.
type BoundPair struct {
	Lower *row.Row
	Upper *row.Row
}

// ScanState tracks a distributed scan through its lifecycle.
type ScanState int32

const (
	StateBuilding ScanState = iota
	StateSent
	StateMerging
	StateComplete
	StateFailed
)

// String returns the state name.
func (s ScanState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSent:
		return "sent"
	case StateMerging:
		return "merging"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Coordinator builds, routes and sends distributed range requests for one
// index, and demultiplexes the responses per query.
type Coordinator struct {
	schema  *row.Schema
	cmp     *row.Comparator
	topo    Topology
	msgr    Messenger
	pending *PendingQueries
	log     *slog.Logger
}

// NewCoordinator wires a coordinator. The registry is owned by the caller
// (the query execution layer) so scans and inbound dispatch share it.
func NewCoordinator(schema *row.Schema, topo Topology, msgr Messenger, pending *PendingQueries, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		schema:  schema,
		cmp:     schema.Comparator(),
		topo:    topo,
		msgr:    msgr,
		pending: pending,
		log:     log,
	}
}

// OnResponse routes an inbound response to its awaiting scan. Unknown query
// ids are dropped (the query completed, cancelled or timed out).
func (c *Coordinator) OnResponse(ctx context.Context, from NodeID, resp *RangeResponse) {
	if !c.pending.Dispatch(ctx, from, resp) {
		c.log.Debug("dropped response for unknown query",
			"query_id", resp.QueryID, "range_id", resp.RangeID, "from", string(from))
	}
}

// ScanRanges routes a batch of bound pairs for one query, batches pairs
// destined to the same node into single requests, registers the query's
// response queue and sends everything. Routing per pair:
//
//   - equal non-null affinity value on both bounds: exactly one owning node;
//   - explicit null affinity on the lower bound: provably empty, skipped;
//   - otherwise: broadcast to every node holding partitions relevant to the
//     query.
//
// Any node-resolution failure aborts the whole query with
// ErrRetryableTopology: partial distributed sort-merge state cannot be
// salvaged.
func (c *Coordinator) ScanRanges(ctx context.Context, qctx *QueryContext, pairs []BoundPair) (*Scan, error) {
	if len(pairs) == 0 {
		return nil, ErrMalformedRequest
	}

	scan := &Scan{
		qctx:   qctx,
		cmp:    c.cmp,
		ranges: make(map[int32]*rangeState, len(pairs)),
	}
	scan.state.Store(int32(StateBuilding))

	reqs := make(map[NodeID]*RangeRequest)
	var broadcast []NodeID

	for i, pair := range pairs {
		rangeID := int32(i)
		affLower := c.schema.AffinityValue(pair.Lower)
		affUpper := c.schema.AffinityValue(pair.Upper)

		var nodes []NodeID
		switch {
		case affLower.IsNull():
			// Explicit null affinity key matches nothing: no request, the
			// range contributes an empty result.
		case !affLower.IsAbsent() && !affUpper.IsAbsent() && row.Compare(affLower, affUpper) == 0:
			node, err := c.rangeNode(qctx, affLower)
			if err != nil {
				return nil, err
			}
			nodes = []NodeID{node}
		default:
			// Affinity key absent or differing between the bounds: every
			// relevant node may own matching rows.
			if broadcast == nil {
				var err error
				broadcast, err = c.broadcastNodes(qctx)
				if err != nil {
					return nil, err
				}
			}
			nodes = broadcast
		}

		rs := &rangeState{awaiting: make(map[NodeID]struct{}, len(nodes))}
		for _, n := range nodes {
			rs.awaiting[n] = struct{}{}
		}
		rs.done = len(nodes) == 0
		scan.ranges[rangeID] = rs
		scan.order = append(scan.order, rangeID)

		for _, node := range nodes {
			req := reqs[node]
			if req == nil {
				req = &RangeRequest{QueryID: qctx.QueryID, Origin: qctx.Origin}
				reqs[node] = req
			}
			req.Ranges = append(req.Ranges, RangeBounds{RangeID: rangeID, Lower: pair.Lower, Upper: pair.Upper})
		}
	}

	pq, err := c.pending.Register(qctx.QueryID, qctx.EffectivePageSize())
	if err != nil {
		return nil, err
	}
	scan.pq = pq

	g, gctx := errgroup.WithContext(ctx)
	for node, req := range reqs {
		g.Go(func() error {
			return c.msgr.Send(gctx, node, req)
		})
	}
	if err := g.Wait(); err != nil {
		pq.Cancel()
		scan.state.Store(int32(StateFailed))
		return nil, fmt.Errorf("distrange: send range request: %w", err)
	}

	scan.state.Store(int32(StateSent))
	c.log.Debug("distributed scan sent",
		"query_id", qctx.QueryID, "ranges", len(pairs), "nodes", len(reqs))
	return scan, nil
}

// rangeNode resolves the single owner of an affinity key: through the
// query's explicit partition map when present, else through the affinity
// function at the query's topology version.
func (c *Coordinator) rangeNode(qctx *QueryContext, aff row.Value) (NodeID, error) {
	if qctx.PartitionMap != nil {
		node, ok := qctx.NodeForPartition(c.topo.Partition(aff))
		if !ok || !c.topo.Alive(node) {
			return "", ErrRetryableTopology
		}
		return node, nil
	}
	node, ok := c.topo.AffinityNode(aff, qctx.TopologyVersion)
	if !ok {
		return "", ErrRetryableTopology
	}
	return node, nil
}

// broadcastNodes resolves every node holding partitions relevant to the
// query.
func (c *Coordinator) broadcastNodes(qctx *QueryContext) ([]NodeID, error) {
	if qctx.PartitionMap != nil {
		seen := make(map[NodeID]struct{}, len(qctx.PartitionMap))
		var nodes []NodeID
		for _, node := range qctx.PartitionMap {
			if _, dup := seen[node]; dup {
				continue
			}
			if !c.topo.Alive(node) {
				return nil, ErrRetryableTopology
			}
			seen[node] = struct{}{}
			nodes = append(nodes, node)
		}
		if len(nodes) == 0 {
			return nil, ErrRetryableTopology
		}
		return nodes, nil
	}
	nodes := c.topo.PartitionNodes(qctx.Partitions, qctx.TopologyVersion)
	if len(nodes) == 0 {
		return nil, ErrRetryableTopology
	}
	return nodes, nil
}

// rangeState folds one range's per-node batches into a single sorted slice.
type rangeState struct {
	rows     []*row.Row
	awaiting map[NodeID]struct{}
	done     bool
}

// Scan is one outstanding distributed range scan.
type Scan struct {
	qctx  *QueryContext
	pq    *PendingQuery
	cmp   *row.Comparator
	state atomic.Int32

	mu     sync.Mutex
	ranges map[int32]*rangeState
	order  []int32
}

// State returns the scan's lifecycle state.
func (s *Scan) State() ScanState { return ScanState(s.state.Load()) }

// RangeIDs returns the scan's range ids in request order. Skipped pairs are
// present with empty, already-complete results.
func (s *Scan) RangeIDs() []int32 { return s.order }

// WaitRange blocks until the given range's merged rows are complete: every
// targeted node has delivered its final batch. The caller's ctx carries the
// timeout/cancellation policy.
func (s *Scan) WaitRange(ctx context.Context, rangeID int32) ([]*row.Row, error) {
	s.mu.Lock()
	rs := s.ranges[rangeID]
	s.mu.Unlock()
	if rs == nil {
		return nil, fmt.Errorf("%w: unknown range id %d", ErrMalformedRequest, rangeID)
	}

	for {
		s.mu.Lock()
		if rs.done {
			rows := rs.rows
			allDone := true
			for _, other := range s.ranges {
				if !other.done {
					allDone = false
					break
				}
			}
			s.mu.Unlock()
			if allDone {
				s.complete()
			}
			return rows, nil
		}
		s.mu.Unlock()

		nr, err := s.pq.Await(ctx)
		if err != nil {
			s.fail()
			return nil, err
		}
		s.apply(nr)
	}
}

// apply merges one inbound batch into its range fold.
func (s *Scan) apply(nr NodeResponse) {
	s.state.CompareAndSwap(int32(StateSent), int32(StateMerging))

	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.ranges[nr.Resp.RangeID]
	if rs == nil || rs.done {
		return
	}
	if _, expected := rs.awaiting[nr.Node]; !expected {
		return
	}
	rs.rows = MergeRows(rs.rows, nr.Resp.Rows, s.cmp)
	if !nr.Resp.More {
		delete(rs.awaiting, nr.Node)
		rs.done = len(rs.awaiting) == 0
	}
}

// Cancel aborts the scan and deregisters its pending entry immediately.
func (s *Scan) Cancel() {
	s.state.Store(int32(StateFailed))
	s.pq.Cancel()
}

func (s *Scan) complete() {
	if s.state.Swap(int32(StateComplete)) != int32(StateComplete) {
		s.pq.Cancel()
	}
}

func (s *Scan) fail() {
	s.state.Store(int32(StateFailed))
	s.pq.Cancel()
}
