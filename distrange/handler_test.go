package distrange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridtree/index"
	"github.com/hupe1980/gridtree/index/snaptree"
	"github.com/hupe1980/gridtree/row"
)

type captureResponses struct {
	ch chan *RangeResponse
}

func newCaptureResponses() *captureResponses {
	return &captureResponses{ch: make(chan *RangeResponse, 64)}
}

func (c *captureResponses) SendResponse(_ context.Context, _ NodeID, resp *RangeResponse) error {
	c.ch <- resp
	return nil
}

// collect drains responses for one range until the final batch arrives.
func (c *captureResponses) collect(t *testing.T) []*RangeResponse {
	t.Helper()
	var out []*RangeResponse
	for {
		select {
		case resp := <-c.ch:
			out = append(out, resp)
			if !resp.More {
				return out
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for responses")
		}
	}
}

func newLocalIndex(t *testing.T, n int64) index.Index {
	t.Helper()
	tr := snaptree.New(testSchema(t), 0)
	for i := int64(0); i < n; i++ {
		tr.InsertOrReplace(mkRow(i, "x"))
	}
	return tr
}

func TestHandlerPaging(t *testing.T) {
	idx := newLocalIndex(t, 25)
	resp := newCaptureResponses()
	h := NewHandler("remote", idx, resp, HandlerOptions{PageSize: 10})
	defer h.Close()

	err := h.OnRangeRequest(context.Background(), "origin", &RangeRequest{
		QueryID: 1,
		Origin:  "origin",
		Ranges:  []RangeBounds{{RangeID: 0}},
	})
	require.NoError(t, err)

	got := resp.collect(t)
	require.Len(t, got, 3)
	assert.Len(t, got[0].Rows, 10)
	assert.True(t, got[0].More)
	assert.Len(t, got[1].Rows, 10)
	assert.True(t, got[1].More)
	assert.Len(t, got[2].Rows, 5)
	assert.False(t, got[2].More)

	// Batches stream the range in order.
	var all []*row.Row
	for _, r := range got {
		all = append(all, r.Rows...)
	}
	for i, r := range all {
		assert.Equal(t, int64(i), r.Value(0).Int64Val())
	}
}

func TestHandlerExactPageBoundary(t *testing.T) {
	idx := newLocalIndex(t, 20)
	resp := newCaptureResponses()
	h := NewHandler("remote", idx, resp, HandlerOptions{PageSize: 10})
	defer h.Close()

	err := h.OnRangeRequest(context.Background(), "origin", &RangeRequest{
		QueryID: 1,
		Ranges:  []RangeBounds{{RangeID: 0}},
	})
	require.NoError(t, err)

	got := resp.collect(t)
	require.Len(t, got, 2)
	assert.Len(t, got[1].Rows, 10)
	assert.False(t, got[1].More)
}

func TestHandlerEmptyRange(t *testing.T) {
	idx := newLocalIndex(t, 0)
	resp := newCaptureResponses()
	h := NewHandler("remote", idx, resp, HandlerOptions{PageSize: 10})
	defer h.Close()

	err := h.OnRangeRequest(context.Background(), "origin", &RangeRequest{
		QueryID: 1,
		Ranges:  []RangeBounds{{RangeID: 0}},
	})
	require.NoError(t, err)

	got := resp.collect(t)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Rows)
	assert.False(t, got[0].More)
}

func TestHandlerFilter(t *testing.T) {
	idx := newLocalIndex(t, 10)
	resp := newCaptureResponses()
	even := func(r *row.Row) bool { return r.Value(0).Int64Val()%2 == 0 }
	h := NewHandler("remote", idx, resp, HandlerOptions{PageSize: 10, Filter: even})
	defer h.Close()

	err := h.OnRangeRequest(context.Background(), "origin", &RangeRequest{
		QueryID: 1,
		Ranges:  []RangeBounds{{RangeID: 0}},
	})
	require.NoError(t, err)

	got := resp.collect(t)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Rows, 5)
}

func TestHandlerRejectsEmptyRequest(t *testing.T) {
	idx := newLocalIndex(t, 0)
	h := NewHandler("remote", idx, newCaptureResponses(), HandlerOptions{})
	defer h.Close()

	err := h.OnRangeRequest(context.Background(), "origin", &RangeRequest{QueryID: 1})
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

// loopback delivers requests to per-node handlers in-process. Delivery runs
// under the receiving node's own context, as a real transport would.
type loopback struct {
	handlers map[NodeID]*Handler
}

func (l *loopback) Send(_ context.Context, to NodeID, req *RangeRequest) error {
	return l.handlers[to].OnRangeRequest(context.Background(), req.Origin, req)
}

// respLoop feeds a node's responses back into the coordinator.
type respLoop struct {
	coord *Coordinator
	from  NodeID
}

func (r *respLoop) SendResponse(ctx context.Context, _ NodeID, resp *RangeResponse) error {
	r.coord.OnResponse(ctx, r.from, resp)
	return nil
}

func TestDistributedScanEndToEnd(t *testing.T) {
	schema := testSchema(t)

	idxA := snaptree.New(schema, 0)
	idxB := snaptree.New(schema, 0)
	for _, r := range []*row.Row{mkRow(1, "a"), mkRow(2, "a"), mkRow(3, "a")} {
		idxA.InsertOrReplace(r)
	}
	for _, r := range []*row.Row{mkRow(1, "b"), mkRow(2, "b"), mkRow(4, "b")} {
		idxB.InsertOrReplace(r)
	}

	topo := &fakeTopology{
		alive: map[NodeID]bool{"a": true, "b": true},
		all:   []NodeID{"a", "b"},
	}
	lb := &loopback{handlers: make(map[NodeID]*Handler)}
	reg := NewPendingQueries()
	coord := NewCoordinator(schema, topo, lb, reg, nil)

	lb.handlers["a"] = NewHandler("a", idxA, &respLoop{coord: coord, from: "a"}, HandlerOptions{PageSize: 1})
	lb.handlers["b"] = NewHandler("b", idxB, &respLoop{coord: coord, from: "b"}, HandlerOptions{PageSize: 1})
	defer lb.handlers["a"].Close()
	defer lb.handlers["b"].Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	qctx := &QueryContext{QueryID: 9, Origin: "origin", PageSize: 4}
	scan, err := coord.ScanRanges(ctx, qctx, []BoundPair{
		{Lower: row.New(row.Int64(1)), Upper: row.New(row.Int64(2))},
	})
	require.NoError(t, err)

	rows, err := scan.WaitRange(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i := 1; i < len(rows); i++ {
		assert.LessOrEqual(t, rows[i-1].Value(0).Int64Val(), rows[i].Value(0).Int64Val())
	}

	assert.Equal(t, StateComplete, scan.State())
	assert.Zero(t, reg.Len())
}
