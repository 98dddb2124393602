// Package codec implements the binary row format shared by the off-heap
// arena and the distributed range protocol, plus block compression for row
// batches. Batches are self-describing: the compression tag travels in the
// header so the reader can validate it.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/gridtree/row"
)

// Binary row format, used both on the wire and inside the off-heap arena:
//
//	uvarint          column count
//	per column:      1-byte kind tag, then the kind-specific payload
//
// Payloads: bool = 1 byte; int64/time = zigzag varint; float64 = 8-byte LE
// bits; string/bytes = uvarint length + raw bytes; null/absent = empty.
// The row's payload reference is never serialized: it is owned by the
// underlying store and only meaningful on the node holding the row.

// ErrShortBuffer indicates truncated row bytes.
var ErrShortBuffer = errors.New("codec: short buffer")

// AppendRow appends the binary encoding of r to dst.
func AppendRow(dst []byte, r *row.Row) []byte {
	vals := r.Values()
	dst = binary.AppendUvarint(dst, uint64(len(vals)))
	for _, v := range vals {
		dst = append(dst, byte(v.Kind()))
		switch v.Kind() {
		case row.KindAbsent, row.KindNull:
		case row.KindBool:
			if v.BoolVal() {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		case row.KindInt64:
			dst = binary.AppendVarint(dst, v.Int64Val())
		case row.KindTime:
			dst = binary.AppendVarint(dst, v.TimeVal().UnixNano())
		case row.KindFloat64:
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.Float64Val()))
		case row.KindString:
			s := v.StringVal()
			dst = binary.AppendUvarint(dst, uint64(len(s)))
			dst = append(dst, s...)
		case row.KindBytes:
			b := v.BytesVal()
			dst = binary.AppendUvarint(dst, uint64(len(b)))
			dst = append(dst, b...)
		}
	}
	return dst
}

// DecodeRow decodes one row from data and returns it together with the
// number of bytes consumed.
func DecodeRow(data []byte) (*row.Row, int, error) {
	n, sz := binary.Uvarint(data)
	if sz <= 0 {
		return nil, 0, ErrShortBuffer
	}
	// Every value occupies at least its kind tag; a count beyond the
	// remaining bytes is corruption, not a large row.
	if n > uint64(len(data)-sz) {
		return nil, 0, ErrShortBuffer
	}
	pos := sz
	vals := make([]row.Value, 0, n)
	for i := uint64(0); i < n; i++ {
		if pos >= len(data) {
			return nil, 0, ErrShortBuffer
		}
		kind := row.Kind(data[pos])
		pos++
		v, adv, err := decodeValue(kind, data[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += adv
		vals = append(vals, v)
	}
	return row.New(vals...), pos, nil
}

func decodeValue(kind row.Kind, data []byte) (row.Value, int, error) {
	switch kind {
	case row.KindAbsent:
		return row.Absent(), 0, nil
	case row.KindNull:
		return row.Null(), 0, nil
	case row.KindBool:
		if len(data) < 1 {
			return row.Value{}, 0, ErrShortBuffer
		}
		return row.Bool(data[0] != 0), 1, nil
	case row.KindInt64:
		i, sz := binary.Varint(data)
		if sz <= 0 {
			return row.Value{}, 0, ErrShortBuffer
		}
		return row.Int64(i), sz, nil
	case row.KindTime:
		i, sz := binary.Varint(data)
		if sz <= 0 {
			return row.Value{}, 0, ErrShortBuffer
		}
		return row.Time(time.Unix(0, i).UTC()), sz, nil
	case row.KindFloat64:
		if len(data) < 8 {
			return row.Value{}, 0, ErrShortBuffer
		}
		return row.Float64(math.Float64frombits(binary.LittleEndian.Uint64(data))), 8, nil
	case row.KindString:
		b, adv, err := decodeBlob(data)
		if err != nil {
			return row.Value{}, 0, err
		}
		return row.String(string(b)), adv, nil
	case row.KindBytes:
		b, adv, err := decodeBlob(data)
		if err != nil {
			return row.Value{}, 0, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return row.Bytes(out), adv, nil
	default:
		return row.Value{}, 0, fmt.Errorf("codec: unknown value kind %d", kind)
	}
}

func decodeBlob(data []byte) ([]byte, int, error) {
	n, sz := binary.Uvarint(data)
	if sz <= 0 || uint64(len(data)-sz) < n {
		return nil, 0, ErrShortBuffer
	}
	return data[sz : sz+int(n)], sz + int(n), nil
}

// EncodeRows encodes a row batch and compresses it with the given
// compression (nil means Default). The batch is self-describing: the
// compression tag travels in the header.
func EncodeRows(rows []*row.Row, comp Compression) ([]byte, error) {
	if comp == nil {
		comp = DefaultCompression
	}
	payload := binary.AppendUvarint(nil, uint64(len(rows)))
	for _, r := range rows {
		payload = AppendRow(payload, r)
	}
	block, err := comp.Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("codec: compress batch: %w", err)
	}
	out := []byte{comp.Tag()}
	out = binary.AppendUvarint(out, uint64(len(payload)))
	return append(out, block...), nil
}

// DecodeRows decodes a batch produced by EncodeRows.
func DecodeRows(data []byte) ([]*row.Row, error) {
	if len(data) < 1 {
		return nil, ErrShortBuffer
	}
	comp, ok := compressionByTag(data[0])
	if !ok {
		return nil, fmt.Errorf("codec: unknown compression tag %d", data[0])
	}
	rawLen, sz := binary.Uvarint(data[1:])
	if sz <= 0 {
		return nil, ErrShortBuffer
	}
	payload, err := comp.Decompress(data[1+sz:], int(rawLen))
	if err != nil {
		return nil, fmt.Errorf("codec: decompress batch: %w", err)
	}
	n, sz := binary.Uvarint(payload)
	if sz <= 0 {
		return nil, ErrShortBuffer
	}
	payload = payload[sz:]
	// Every row occupies at least one byte of payload.
	if n > uint64(len(payload)) {
		return nil, ErrShortBuffer
	}
	rows := make([]*row.Row, 0, n)
	for i := uint64(0); i < n; i++ {
		r, adv, err := DecodeRow(payload)
		if err != nil {
			return nil, err
		}
		payload = payload[adv:]
		rows = append(rows, r)
	}
	return rows, nil
}
