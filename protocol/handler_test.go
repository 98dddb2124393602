package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridtree/index"
	"github.com/hupe1980/gridtree/index/snaptree"
	"github.com/hupe1980/gridtree/row"
)

type fakeRunner struct {
	idx *snaptree.Tree
	err error
}

func (f *fakeRunner) RunQuery(_ context.Context, _, _ string, _ []any) (*index.Cursor, []ColumnMeta, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	meta := []ColumnMeta{
		{Table: "PERSON", Column: "ORG_ID", Kind: row.KindInt64},
		{Table: "PERSON", Column: "NAME", Kind: row.KindString},
	}
	return f.idx.Find(nil, false, nil, nil), meta, nil
}

type fakeCatalog struct{}

func (fakeCatalog) CacheNames() []string { return []string{"persons", "orders"} }

func (fakeCatalog) Tables(cache string) []TableMeta {
	switch cache {
	case "persons":
		return []TableMeta{{Schema: "persons", Table: "PERSON", Type: "TABLE"}}
	case "orders":
		return []TableMeta{{Schema: "orders", Table: "ORDER", Type: "TABLE"}}
	default:
		return nil
	}
}

func (fakeCatalog) Columns(cache, table string) []ColumnMeta {
	if cache != "persons" || table != "PERSON" {
		return nil
	}
	return []ColumnMeta{
		{Table: "PERSON", Column: "ORG_ID", Kind: row.KindInt64},
		{Table: "PERSON", Column: "NAME", Kind: row.KindString},
	}
}

func newTestHandler(t *testing.T, n int64) *Handler {
	t.Helper()
	schema, err := row.NewSchema([]row.Column{
		{Name: "org_id", Kind: row.KindInt64},
		{Name: "name", Kind: row.KindString},
	}, 0)
	require.NoError(t, err)

	tr := snaptree.New(schema, 0)
	for i := int64(0); i < n; i++ {
		tr.InsertOrReplace(row.New(row.Int64(i), row.String("x")))
	}
	return NewHandler(&fakeRunner{idx: tr}, fakeCatalog{}, nil)
}

func execute(t *testing.T, h *Handler) uint64 {
	t.Helper()
	resp := h.Handle(context.Background(), &ExecuteRequest{Cache: "persons", SQL: "SELECT * FROM PERSON"})
	require.Equal(t, StatusSuccess, resp.Status)
	res := resp.Result.(*ExecuteResult)
	require.Len(t, res.Columns, 2)
	return res.QueryID
}

func fetchPage(t *testing.T, h *Handler, id uint64, pageSize int) *FetchResult {
	t.Helper()
	resp := h.Handle(context.Background(), &FetchRequest{QueryID: id, PageSize: pageSize})
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	return resp.Result.(*FetchResult)
}

func TestExecuteFetchClose(t *testing.T) {
	h := newTestHandler(t, 25)
	id := execute(t, h)
	assert.Equal(t, 1, h.OpenQueries())

	page := fetchPage(t, h, id, 10)
	assert.Len(t, page.Rows, 10)
	assert.False(t, page.Last)
	assert.Equal(t, int64(0), page.Rows[0].Value(0).Int64Val())

	page = fetchPage(t, h, id, 10)
	assert.Len(t, page.Rows, 10)
	assert.False(t, page.Last)

	page = fetchPage(t, h, id, 10)
	assert.Len(t, page.Rows, 5)
	assert.True(t, page.Last)
	assert.Equal(t, int64(24), page.Rows[4].Value(0).Int64Val())

	resp := h.Handle(context.Background(), &CloseRequest{QueryID: id})
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Zero(t, h.OpenQueries())
}

func TestFetchLastOnExactPageBoundary(t *testing.T) {
	h := newTestHandler(t, 20)
	id := execute(t, h)

	page := fetchPage(t, h, id, 10)
	assert.Len(t, page.Rows, 10)
	assert.False(t, page.Last)

	// The look-ahead row lets the draining page itself report Last.
	page = fetchPage(t, h, id, 10)
	assert.Len(t, page.Rows, 10)
	assert.True(t, page.Last)
}

func TestFetchEmptyResult(t *testing.T) {
	h := newTestHandler(t, 0)
	id := execute(t, h)

	page := fetchPage(t, h, id, 10)
	assert.Empty(t, page.Rows)
	assert.True(t, page.Last)
}

func TestConcurrentFetches(t *testing.T) {
	h := newTestHandler(t, 100)
	id := execute(t, h)

	var mu sync.Mutex
	seen := make(map[int64]int)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				resp := h.Handle(context.Background(), &FetchRequest{QueryID: id, PageSize: 3})
				if !assert.Equal(t, StatusSuccess, resp.Status, resp.Error) {
					return
				}
				res := resp.Result.(*FetchResult)
				mu.Lock()
				for _, r := range res.Rows {
					seen[r.Value(0).Int64Val()]++
				}
				mu.Unlock()
				if res.Last {
					return
				}
			}
		}()
	}
	wg.Wait()

	// Every row delivered exactly once across all fetchers.
	assert.Len(t, seen, 100)
	for k, n := range seen {
		assert.Equal(t, 1, n, "row %d", k)
	}
}

func TestFetchRacingClose(t *testing.T) {
	h := newTestHandler(t, 1000)
	id := execute(t, h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			resp := h.Handle(context.Background(), &FetchRequest{QueryID: id, PageSize: 10})
			if resp.Status == StatusFailed {
				return
			}
			if resp.Result.(*FetchResult).Last {
				return
			}
		}
	}()

	h.Handle(context.Background(), &CloseRequest{QueryID: id})
	<-done
	assert.Zero(t, h.OpenQueries())
}

func TestFetchUnknownQuery(t *testing.T) {
	h := newTestHandler(t, 5)

	resp := h.Handle(context.Background(), &FetchRequest{QueryID: 99, PageSize: 10})
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "failed to find query with ID: 99")
}

func TestFetchInvalidPageSize(t *testing.T) {
	h := newTestHandler(t, 5)
	id := execute(t, h)

	resp := h.Handle(context.Background(), &FetchRequest{QueryID: id, PageSize: 0})
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "invalid page size")
}

func TestCloseUnknownQuery(t *testing.T) {
	h := newTestHandler(t, 5)

	resp := h.Handle(context.Background(), &CloseRequest{QueryID: 99})
	assert.Equal(t, StatusFailed, resp.Status)
}

func TestExecuteFailure(t *testing.T) {
	h := NewHandler(&fakeRunner{err: errors.New("table not found")}, fakeCatalog{}, nil)

	resp := h.Handle(context.Background(), &ExecuteRequest{Cache: "persons", SQL: "SELECT 1"})
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "table not found")
	assert.Zero(t, h.OpenQueries())
}

func TestUnknownRequestType(t *testing.T) {
	h := newTestHandler(t, 0)

	resp := h.Handle(context.Background(), struct{ X int }{})
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "no registered handler for request type")
}

func TestColumnsMeta(t *testing.T) {
	h := newTestHandler(t, 0)

	t.Run("PatternMatch", func(t *testing.T) {
		resp := h.Handle(context.Background(), &ColumnsMetaRequest{Cache: "persons", Table: "PERSON", Column: "%ID"})
		require.Equal(t, StatusSuccess, resp.Status)
		res := resp.Result.(*ColumnsMetaResult)
		require.Len(t, res.Columns, 1)
		assert.Equal(t, "ORG_ID", res.Columns[0].Column)
	})

	t.Run("TwoPartTableNameOverridesCache", func(t *testing.T) {
		resp := h.Handle(context.Background(), &ColumnsMetaRequest{Cache: "orders", Table: `"persons".PERSON`})
		require.Equal(t, StatusSuccess, resp.Status)
		res := resp.Result.(*ColumnsMetaResult)
		assert.Len(t, res.Columns, 2)
	})

	t.Run("NoMatch", func(t *testing.T) {
		resp := h.Handle(context.Background(), &ColumnsMetaRequest{Cache: "persons", Table: "MISSING"})
		require.Equal(t, StatusSuccess, resp.Status)
		assert.Empty(t, resp.Result.(*ColumnsMetaResult).Columns)
	})
}

func TestTablesMeta(t *testing.T) {
	h := newTestHandler(t, 0)

	resp := h.Handle(context.Background(), &TablesMetaRequest{Schema: "p%", Table: "%", TableType: "TABLE"})
	require.Equal(t, StatusSuccess, resp.Status)
	res := resp.Result.(*TablesMetaResult)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, "PERSON", res.Tables[0].Table)

	resp = h.Handle(context.Background(), &TablesMetaRequest{})
	require.Equal(t, StatusSuccess, resp.Status)
	assert.Len(t, resp.Result.(*TablesMetaResult).Tables, 2)
}
