package distrange

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/hupe1980/gridtree/index"
	"github.com/hupe1980/gridtree/row"
)

// ResponseMessenger sends range responses back to a query's origin node.
type ResponseMessenger interface {
	SendResponse(ctx context.Context, to NodeID, resp *RangeResponse) error
}

// HandlerOptions configures the remote-side request handler.
type HandlerOptions struct {
	// PageSize bounds rows per response batch; <= 0 selects DefaultPageSize.
	PageSize int
	// Workers sizes the scan worker pool; <= 0 selects GOMAXPROCS.
	Workers int
	// RequestsPerSecond throttles inbound requests; <= 0 disables limiting.
	RequestsPerSecond float64
	// Filter is the local row-visibility predicate applied to every scan.
	Filter index.Filter
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Handler answers inbound RangeRequests by scanning the local index per the
// request's bounds and streaming sorted batches back, each at most one page,
// with More set on all but the final batch of a range.
type Handler struct {
	node     NodeID
	idx      index.Index
	msgr     ResponseMessenger
	pool     *WorkerPool
	limiter  *rate.Limiter
	pageSize int
	filter   index.Filter
	log      *slog.Logger
}

// NewHandler wires the remote side of the range protocol for one index.
func NewHandler(node NodeID, idx index.Index, msgr ResponseMessenger, opts HandlerOptions) *Handler {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		node:     node,
		idx:      idx,
		msgr:     msgr,
		pool:     NewWorkerPool(opts.Workers),
		limiter:  limiter,
		pageSize: pageSize,
		filter:   opts.Filter,
		log:      log,
	}
}

// OnRangeRequest validates and enqueues an inbound request. The scan itself
// runs on the worker pool; errors inside it are logged, not returned, since
// the origin node recovers through its own timeout policy.
func (h *Handler) OnRangeRequest(ctx context.Context, from NodeID, req *RangeRequest) error {
	if len(req.Ranges) == 0 {
		return ErrMalformedRequest
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return h.pool.Submit(ctx, func() {
		if err := h.answer(ctx, from, req); err != nil {
			h.log.Warn("range request failed",
				"query_id", req.QueryID, "from", string(from), "error", err)
		}
	})
}

// answer scans each requested range against a single snapshot of the local
// index, so all batches of one request observe the same point in time.
func (h *Handler) answer(ctx context.Context, from NodeID, req *RangeRequest) error {
	snap := h.idx.TakeSnapshot()
	defer snap.Close()

	for _, rng := range req.Ranges {
		cur := snap.Find(rng.Lower, true, rng.Upper, h.filter)
		if err := h.sendBatches(ctx, from, req.QueryID, rng.RangeID, cur); err != nil {
			cur.Close()
			return err
		}
	}
	return nil
}

func (h *Handler) sendBatches(ctx context.Context, to NodeID, queryID uint64, rangeID int32, cur *index.Cursor) error {
	batch := make([]*row.Row, 0, h.pageSize)
	for {
		r, ok := cur.Next()
		if ok {
			batch = append(batch, r)
			if len(batch) < h.pageSize {
				continue
			}
			// Page full: peek whether anything follows to set More honestly.
			next, more := cur.Next()
			if err := h.send(ctx, to, queryID, rangeID, batch, more); err != nil {
				return err
			}
			if !more {
				return nil
			}
			batch = append(batch[:0], next)
			continue
		}
		return h.send(ctx, to, queryID, rangeID, batch, false)
	}
}

func (h *Handler) send(ctx context.Context, to NodeID, queryID uint64, rangeID int32, rows []*row.Row, more bool) error {
	out := make([]*row.Row, len(rows))
	copy(out, rows)
	return h.msgr.SendResponse(ctx, to, &RangeResponse{
		QueryID: queryID,
		RangeID: rangeID,
		Rows:    out,
		More:    more,
	})
}

// Close shuts down the worker pool.
func (h *Handler) Close() { h.pool.Close() }
