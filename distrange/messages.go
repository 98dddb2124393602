package distrange

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/gridtree/codec"
	"github.com/hupe1980/gridtree/row"
)

// RangeBounds is one (lower, upper) search-row pair inside a request,
// identified by its per-query range id.
type RangeBounds struct {
	RangeID int32
	Lower   *row.Row
	Upper   *row.Row
}

// RangeRequest asks a node to scan its local index for a batch of ranges.
// Multiple ranges destined to the same node travel in one request to
// amortize round-trips.
type RangeRequest struct {
	QueryID uint64
	Origin  NodeID
	Ranges  []RangeBounds
}

// RangeResponse carries one sorted row batch for one range. More is set on
// every batch except the final one for that (query, range, sender) triple.
type RangeResponse struct {
	QueryID uint64
	RangeID int32
	Rows    []*row.Row
	More    bool
}

// EncodeRequest serializes a request. Bound rows use the binary row format;
// a flag byte marks open (nil) bounds.
func EncodeRequest(req *RangeRequest) []byte {
	out := binary.AppendUvarint(nil, req.QueryID)
	out = binary.AppendUvarint(out, uint64(len(req.Origin)))
	out = append(out, req.Origin...)
	out = binary.AppendUvarint(out, uint64(len(req.Ranges)))
	for _, rng := range req.Ranges {
		out = binary.AppendVarint(out, int64(rng.RangeID))
		out = appendBoundRow(out, rng.Lower)
		out = appendBoundRow(out, rng.Upper)
	}
	return out
}

func appendBoundRow(dst []byte, r *row.Row) []byte {
	if r == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return codec.AppendRow(dst, r)
}

// DecodeRequest reverses EncodeRequest.
func DecodeRequest(data []byte) (*RangeRequest, error) {
	qid, sz := binary.Uvarint(data)
	if sz <= 0 {
		return nil, fmt.Errorf("%w: truncated query id", ErrMalformedRequest)
	}
	data = data[sz:]

	n, sz := binary.Uvarint(data)
	if sz <= 0 || uint64(len(data)-sz) < n {
		return nil, fmt.Errorf("%w: truncated origin", ErrMalformedRequest)
	}
	origin := NodeID(data[sz : sz+int(n)])
	data = data[sz+int(n):]

	cnt, sz := binary.Uvarint(data)
	if sz <= 0 {
		return nil, fmt.Errorf("%w: truncated range count", ErrMalformedRequest)
	}
	data = data[sz:]

	req := &RangeRequest{QueryID: qid, Origin: origin, Ranges: make([]RangeBounds, 0, cnt)}
	for i := uint64(0); i < cnt; i++ {
		id, sz := binary.Varint(data)
		if sz <= 0 {
			return nil, fmt.Errorf("%w: truncated range id", ErrMalformedRequest)
		}
		data = data[sz:]
		lower, rest, err := decodeBoundRow(data)
		if err != nil {
			return nil, err
		}
		data = rest
		upper, rest, err := decodeBoundRow(data)
		if err != nil {
			return nil, err
		}
		data = rest
		req.Ranges = append(req.Ranges, RangeBounds{RangeID: int32(id), Lower: lower, Upper: upper})
	}
	return req, nil
}

func decodeBoundRow(data []byte) (*row.Row, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("%w: truncated bound", ErrMalformedRequest)
	}
	if data[0] == 0 {
		return nil, data[1:], nil
	}
	r, adv, err := codec.DecodeRow(data[1:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return r, data[1+adv:], nil
}

// EncodeResponse serializes a response; the row batch is block-compressed
// (nil comp selects the codec default).
func EncodeResponse(resp *RangeResponse, comp codec.Compression) ([]byte, error) {
	out := binary.AppendUvarint(nil, resp.QueryID)
	out = binary.AppendVarint(out, int64(resp.RangeID))
	if resp.More {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	batch, err := codec.EncodeRows(resp.Rows, comp)
	if err != nil {
		return nil, err
	}
	return append(out, batch...), nil
}

// DecodeResponse reverses EncodeResponse.
func DecodeResponse(data []byte) (*RangeResponse, error) {
	qid, sz := binary.Uvarint(data)
	if sz <= 0 {
		return nil, fmt.Errorf("%w: truncated query id", ErrMalformedRequest)
	}
	data = data[sz:]
	id, sz := binary.Varint(data)
	if sz <= 0 || len(data) < sz+1 {
		return nil, fmt.Errorf("%w: truncated range id", ErrMalformedRequest)
	}
	more := data[sz] != 0
	rows, err := codec.DecodeRows(data[sz+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return &RangeResponse{QueryID: qid, RangeID: int32(id), Rows: rows, More: more}, nil
}
