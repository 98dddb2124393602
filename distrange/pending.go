package distrange

import (
	"context"
	"sync"
)

// NodeResponse pairs an inbound response with the sending node's identity.
type NodeResponse struct {
	Node NodeID
	Resp *RangeResponse
}

// PendingQueries demultiplexes inbound range responses per query id. It is
// owned by the distributed-query execution layer and passed to the
// coordinator explicitly; it is never a process-wide singleton.
type PendingQueries struct {
	mu sync.Mutex
	m  map[uint64]*PendingQuery
}

// NewPendingQueries creates an empty registry.
func NewPendingQueries() *PendingQueries {
	return &PendingQueries{m: make(map[uint64]*PendingQuery)}
}

// Register creates the bounded response queue for a query. capacity is
// typically the query's page size.
func (p *PendingQueries) Register(queryID uint64, capacity int) (*PendingQuery, error) {
	if capacity <= 0 {
		capacity = DefaultPageSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.m[queryID]; ok {
		return nil, ErrDuplicateQuery
	}
	pq := &PendingQuery{
		id:   queryID,
		reg:  p,
		ch:   make(chan NodeResponse, capacity),
		done: make(chan struct{}),
	}
	p.m[queryID] = pq
	return pq, nil
}

// Dispatch routes an inbound response to its query's queue, blocking while
// the bounded queue is full. It reports false when the query is unknown or
// already completed (late responses are dropped).
func (p *PendingQueries) Dispatch(ctx context.Context, node NodeID, resp *RangeResponse) bool {
	p.mu.Lock()
	pq := p.m[resp.QueryID]
	p.mu.Unlock()
	if pq == nil {
		return false
	}
	select {
	case pq.ch <- NodeResponse{Node: node, Resp: resp}:
		return true
	case <-pq.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Len returns the number of registered queries. Intended for tests and
// leak checks.
func (p *PendingQueries) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

func (p *PendingQueries) deregister(queryID uint64) {
	p.mu.Lock()
	delete(p.m, queryID)
	p.mu.Unlock()
}

// PendingQuery is one query's bounded response queue. It is removed from the
// registry exactly once, by whichever of merge completion, cancellation or
// caller timeout happens first.
type PendingQuery struct {
	id   uint64
	reg  *PendingQueries
	ch   chan NodeResponse
	done chan struct{}
	once sync.Once
}

// Await blocks for the next response. The caller's ctx supplies the timeout
// policy; no timeout is intrinsic.
func (pq *PendingQuery) Await(ctx context.Context) (NodeResponse, error) {
	select {
	case nr := <-pq.ch:
		return nr, nil
	case <-pq.done:
		return NodeResponse{}, ErrQueryCancelled
	case <-ctx.Done():
		return NodeResponse{}, ctx.Err()
	}
}

// Cancel deregisters the query immediately and wakes all waiters.
// Idempotent.
func (pq *PendingQuery) Cancel() {
	pq.once.Do(func() {
		pq.reg.deregister(pq.id)
		close(pq.done)
	})
}
