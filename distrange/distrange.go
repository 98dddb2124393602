// Package distrange implements the distributed range-scan protocol over
// gridtree indexes: routing bound pairs to the nodes owning them, batching
// per-node requests, demultiplexing responses per query, answering the
// remote side by scanning the local index, and folding sorted partial
// batches into one ordered stream.
package distrange

import "errors"

// NodeID identifies a cluster node.
type NodeID string

var (
	// ErrRetryableTopology is returned when affinity or node resolution
	// fails mid-query because cluster membership changed. Distributed
	// sort-merge state cannot be salvaged partially: the caller must restart
	// the entire query.
	ErrRetryableTopology = errors.New("distrange: topology changed, retry query")

	// ErrMalformedRequest is returned for an empty or inconsistent
	// range-bound batch.
	ErrMalformedRequest = errors.New("distrange: empty or inconsistent range batch")

	// ErrQueryCancelled is returned by waits on a cancelled query.
	ErrQueryCancelled = errors.New("distrange: query cancelled")

	// ErrDuplicateQuery is returned when a query id is registered twice.
	ErrDuplicateQuery = errors.New("distrange: query id already registered")

	// ErrHandlerClosed is returned when work is submitted to a closed
	// handler.
	ErrHandlerClosed = errors.New("distrange: handler closed")
)
