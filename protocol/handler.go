package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gridtree/index"
	"github.com/hupe1980/gridtree/row"
)

// QueryRunner executes a SQL query and returns its live result cursor plus
// result column metadata. It is an external collaborator (the SQL engine);
// the handler only manages cursor lifetimes.
type QueryRunner interface {
	RunQuery(ctx context.Context, cache, sql string, args []any) (*index.Cursor, []ColumnMeta, error)
}

// Catalog exposes table/column metadata for the metadata requests.
type Catalog interface {
	CacheNames() []string
	Tables(cache string) []TableMeta
	Columns(cache, table string) []ColumnMeta
}

// Handler serves the client protocol. Each fetch returns at most PageSize
// rows and an end-of-results flag; unknown or closed query ids yield a
// structured failure response, never a crash.
type Handler struct {
	runner  QueryRunner
	catalog Catalog
	log     *slog.Logger

	seq     atomic.Uint64
	mu      sync.Mutex
	queries map[uint64]*query
}

// query buffers one look-ahead row so fetch can set the end flag on the page
// that actually exhausts the stream. mu serializes cursor access between
// concurrent fetches and close.
type query struct {
	mu         sync.Mutex
	cur        *index.Cursor
	pending    *row.Row
	hasPending bool
}

// NewHandler creates a protocol handler over a query runner and catalog.
func NewHandler(runner QueryRunner, catalog Catalog, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		runner:  runner,
		catalog: catalog,
		log:     log,
		queries: make(map[uint64]*query),
	}
}

// Handle dispatches one protocol request and always returns a structured
// response.
func (h *Handler) Handle(ctx context.Context, req any) Response {
	switch r := req.(type) {
	case *ExecuteRequest:
		return h.execute(ctx, r)
	case *FetchRequest:
		return h.fetch(r)
	case *CloseRequest:
		return h.closeQuery(r)
	case *ColumnsMetaRequest:
		return h.columnsMeta(r)
	case *TablesMetaRequest:
		return h.tablesMeta(r)
	default:
		return failure(fmt.Sprintf("no registered handler for request type %T", req))
	}
}

func (h *Handler) execute(ctx context.Context, req *ExecuteRequest) Response {
	id := h.seq.Add(1)

	cur, meta, err := h.runner.RunQuery(ctx, req.Cache, req.SQL, req.Args)
	if err != nil {
		return failure(err.Error())
	}

	h.mu.Lock()
	h.queries[id] = &query{cur: cur}
	h.mu.Unlock()

	h.log.Debug("query executed", "query_id", id, "cache", req.Cache)
	return success(&ExecuteResult{QueryID: id, Columns: meta})
}

func (h *Handler) fetch(req *FetchRequest) Response {
	if req.PageSize <= 0 {
		return failure(fmt.Sprintf("invalid page size: %d", req.PageSize))
	}

	h.mu.Lock()
	q := h.queries[req.QueryID]
	h.mu.Unlock()
	if q == nil {
		return failure(fmt.Sprintf("failed to find query with ID: %d", req.QueryID))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	res := &FetchResult{QueryID: req.QueryID}
	for len(res.Rows) < req.PageSize {
		if q.hasPending {
			res.Rows = append(res.Rows, q.pending)
			q.pending, q.hasPending = nil, false
			continue
		}
		r, ok := q.cur.Next()
		if !ok {
			break
		}
		res.Rows = append(res.Rows, r)
	}

	// Peek one row ahead so the page that drains the stream reports Last.
	if !q.hasPending {
		if r, ok := q.cur.Next(); ok {
			q.pending, q.hasPending = r, true
		}
	}
	res.Last = !q.hasPending
	return success(res)
}

func (h *Handler) closeQuery(req *CloseRequest) Response {
	h.mu.Lock()
	q := h.queries[req.QueryID]
	delete(h.queries, req.QueryID)
	h.mu.Unlock()

	if q == nil {
		return failure(fmt.Sprintf("failed to find query with ID: %d", req.QueryID))
	}
	q.mu.Lock()
	q.cur.Close()
	q.mu.Unlock()
	return success(&CloseResult{QueryID: req.QueryID})
}

func (h *Handler) columnsMeta(req *ColumnsMetaRequest) Response {
	cache := unquote(req.Cache)
	table := req.Table
	if before, after, ok := strings.Cut(req.Table, "."); ok {
		// Two-part table name overrides the cache.
		cache = unquote(before)
		table = after
	}

	var meta []ColumnMeta
	for _, tbl := range h.catalog.Tables(cache) {
		if !matches(tbl.Table, table) {
			continue
		}
		for _, col := range h.catalog.Columns(cache, tbl.Table) {
			if matches(col.Column, req.Column) {
				meta = append(meta, col)
			}
		}
	}
	return success(&ColumnsMetaResult{Columns: meta})
}

func (h *Handler) tablesMeta(req *TablesMetaRequest) Response {
	schema := unquote(req.Schema)

	var meta []TableMeta
	for _, cache := range h.catalog.CacheNames() {
		if !matches(cache, schema) {
			continue
		}
		for _, tbl := range h.catalog.Tables(cache) {
			if !matches(tbl.Table, req.Table) || !matches(tbl.Type, req.TableType) {
				continue
			}
			meta = append(meta, tbl)
		}
	}
	return success(&TablesMetaResult{Tables: meta})
}

// OpenQueries returns the number of live cursors. Intended for tests and
// leak checks.
func (h *Handler) OpenQueries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queries)
}

// matches checks a string against a SQL LIKE pattern (% and _). An empty
// pattern matches everything.
func matches(s, pattern string) bool {
	if pattern == "" {
		return true
	}
	quoted := regexp.QuoteMeta(strings.ToUpper(pattern))
	quoted = strings.ReplaceAll(quoted, "%", ".*")
	quoted = strings.ReplaceAll(quoted, "_", ".")
	ok, err := regexp.MatchString("^"+quoted+"$", strings.ToUpper(s))
	return err == nil && ok
}

// unquote strips one pair of surrounding double quotes if present.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
