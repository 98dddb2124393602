package row

import (
	"fmt"
	"math"
	"time"
)

// Kind identifies the SQL type carried by a Value.
type Kind uint8

const (
	// KindAbsent marks a column that was not supplied at all. It is only
	// meaningful inside partial search rows, where comparison stops at the
	// first absent column.
	KindAbsent Kind = iota
	// KindNull is an explicit SQL NULL. It orders before every non-null value.
	KindNull
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindTime
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single typed column value. The zero Value is absent.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Absent returns the absent Value.
func Absent() Value { return Value{} }

// Null returns an explicit SQL NULL.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean column value.
func Bool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

// Int64 wraps an integer column value.
func Int64(v int64) Value { return Value{kind: KindInt64, i: v} }

// Float64 wraps a floating point column value.
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }

// String wraps a string column value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bytes wraps a binary column value. The slice is not copied.
func Bytes(v []byte) Value { return Value{kind: KindBytes, b: v} }

// Time wraps a timestamp column value (UTC, nanosecond precision).
func Time(v time.Time) Value { return Value{kind: KindTime, i: v.UnixNano()} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the column was not supplied.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsNull reports whether the value is an explicit SQL NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolVal returns the boolean payload. Valid only for KindBool.
func (v Value) BoolVal() bool { return v.i != 0 }

// Int64Val returns the integer payload. Valid only for KindInt64.
func (v Value) Int64Val() int64 { return v.i }

// Float64Val returns the float payload. Valid only for KindFloat64.
func (v Value) Float64Val() float64 { return v.f }

// StringVal returns the string payload. Valid only for KindString.
func (v Value) StringVal() string { return v.s }

// BytesVal returns the bytes payload. Valid only for KindBytes.
func (v Value) BytesVal() []byte { return v.b }

// TimeVal returns the timestamp payload. Valid only for KindTime.
func (v Value) TimeVal() time.Time { return time.Unix(0, v.i).UTC() }

// Interface returns the payload as an untyped Go value, or nil for
// null/absent.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.BoolVal()
	case KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.b
	case KindTime:
		return v.TimeVal()
	default:
		return nil
	}
}

// Compare orders two values. NULL sorts before every non-null value; values
// of different numeric kinds compare numerically; otherwise mismatched kinds
// order by kind tag so that the total order stays consistent.
func Compare(a, b Value) int {
	an, bn := a.kind == KindNull, b.kind == KindNull
	if an || bn {
		switch {
		case an && bn:
			return 0
		case an:
			return -1
		default:
			return 1
		}
	}

	if a.kind != b.kind {
		if isNumeric(a.kind) && isNumeric(b.kind) {
			return cmpFloat(a.asFloat(), b.asFloat())
		}
		return cmpInt(int64(a.kind), int64(b.kind))
	}

	switch a.kind {
	case KindBool, KindInt64, KindTime:
		return cmpInt(a.i, b.i)
	case KindFloat64:
		return cmpFloat(a.f, b.f)
	case KindString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	case KindBytes:
		return cmpBytes(a.b, b.b)
	default:
		return 0
	}
}

func isNumeric(k Kind) bool { return k == KindInt64 || k == KindFloat64 }

func (v Value) asFloat() float64 {
	if v.kind == KindInt64 {
		return float64(v.i)
	}
	return v.f
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// cmpFloat orders NaN after every other value so a NaN key cannot collapse
// the tree's total order.
func cmpFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return cmpInt(int64(len(a)), int64(len(b)))
}
