// Package protocol implements the thin client-protocol boundary: it maps
// external numeric query ids to live cursors and serves execute, fetch,
// close and metadata requests. Every internal error is converted into a
// structured failure response here; no internal error type crosses this
// boundary.
package protocol

import (
	"github.com/hupe1980/gridtree/row"
)

// Status is the outcome of one protocol request.
type Status uint8

const (
	StatusSuccess Status = 0
	StatusFailed  Status = 1
)

// Response wraps every protocol reply. On failure Error carries the message
// and Result is nil.
type Response struct {
	Status Status
	Error  string
	Result any
}

func success(result any) Response {
	return Response{Status: StatusSuccess, Result: result}
}

func failure(msg string) Response {
	return Response{Status: StatusFailed, Error: msg}
}

// ExecuteRequest starts a query against a cache.
type ExecuteRequest struct {
	Cache string
	SQL   string
	Args  []any
}

// ExecuteResult returns the assigned query id and the result column
// metadata.
type ExecuteResult struct {
	QueryID uint64
	Columns []ColumnMeta
}

// FetchRequest pulls the next page of a query's results.
type FetchRequest struct {
	QueryID  uint64
	PageSize int
}

// FetchResult carries at most PageSize rows; Last is set when the result
// stream is exhausted.
type FetchResult struct {
	QueryID uint64
	Rows    []*row.Row
	Last    bool
}

// CloseRequest releases a query's cursor.
type CloseRequest struct {
	QueryID uint64
}

// CloseResult confirms the release.
type CloseResult struct {
	QueryID uint64
}

// ColumnsMetaRequest lists column metadata matching SQL patterns (% and _).
type ColumnsMetaRequest struct {
	Cache  string
	Table  string
	Column string
}

// ColumnsMetaResult carries the matched columns.
type ColumnsMetaResult struct {
	Columns []ColumnMeta
}

// TablesMetaRequest lists table metadata matching SQL patterns.
type TablesMetaRequest struct {
	Catalog   string
	Schema    string
	Table     string
	TableType string
}

// TablesMetaResult carries the matched tables.
type TablesMetaResult struct {
	Tables []TableMeta
}

// ColumnMeta describes one result or catalog column.
type ColumnMeta struct {
	Schema string
	Table  string
	Column string
	Kind   row.Kind
}

// TableMeta describes one catalog table.
type TableMeta struct {
	Catalog string
	Schema  string
	Table   string
	Type    string
}
