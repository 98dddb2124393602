// Package row defines the row value model for gridtree indexes: typed column
// values, rows, index schemas and the bias-carrying comparator used to build
// range bounds over multi-column indexes.
package row

import (
	"fmt"
	"strings"
)

// Row is an immutable ordered sequence of column values plus an opaque
// payload reference. The payload is owned by the underlying cache/store; the
// index only references it and never serializes it.
type Row struct {
	values  []Value
	payload any
}

// New creates a row over the given column values.
func New(values ...Value) *Row {
	return &Row{values: values}
}

// NewWithPayload creates a row carrying a payload reference.
func NewWithPayload(payload any, values ...Value) *Row {
	return &Row{values: values, payload: payload}
}

// ColumnCount returns the number of columns carried by the row. Partial
// search rows may carry fewer columns than the index schema declares.
func (r *Row) ColumnCount() int { return len(r.values) }

// Value returns the value of column i, or an absent value when the row does
// not carry that column.
func (r *Row) Value(i int) Value {
	if i < 0 || i >= len(r.values) {
		return Absent()
	}
	return r.values[i]
}

// Values returns the backing value slice. Callers must not mutate it.
func (r *Row) Values() []Value { return r.values }

// Payload returns the payload reference, if any.
func (r *Row) Payload() any { return r.payload }

// String renders the row for logs and test failures.
func (r *Row) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range r.values {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch v.kind {
		case KindAbsent:
			sb.WriteString("_")
		case KindNull:
			sb.WriteString("NULL")
		default:
			fmt.Fprintf(&sb, "%v", v.Interface())
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
