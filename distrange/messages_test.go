package distrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridtree/codec"
	"github.com/hupe1980/gridtree/row"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &RangeRequest{
		QueryID: 42,
		Origin:  "node-a",
		Ranges: []RangeBounds{
			{RangeID: 0, Lower: mkRow(1, "a"), Upper: mkRow(1, "z")},
			{RangeID: 1, Lower: nil, Upper: mkRow(5, "m")},
			{RangeID: 2, Lower: mkRow(7, "q"), Upper: nil},
		},
	}

	got, err := DecodeRequest(EncodeRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.QueryID, got.QueryID)
	assert.Equal(t, req.Origin, got.Origin)
	require.Len(t, got.Ranges, 3)

	assert.Equal(t, int32(0), got.Ranges[0].RangeID)
	assert.Equal(t, "a", got.Ranges[0].Lower.Value(1).StringVal())
	assert.Nil(t, got.Ranges[1].Lower)
	assert.Nil(t, got.Ranges[2].Upper)
	assert.Equal(t, int64(7), got.Ranges[2].Lower.Value(0).Int64Val())
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &RangeResponse{
		QueryID: 42,
		RangeID: 3,
		Rows:    []*row.Row{mkRow(1, "a"), mkRow(2, "b")},
		More:    true,
	}

	data, err := EncodeResponse(resp, codec.Zstd{})
	require.NoError(t, err)

	got, err := DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.QueryID)
	assert.Equal(t, int32(3), got.RangeID)
	assert.True(t, got.More)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "b", got.Rows[1].Value(1).StringVal())
}

func TestDecodeRequestTruncated(t *testing.T) {
	data := EncodeRequest(&RangeRequest{
		QueryID: 1,
		Origin:  "n",
		Ranges:  []RangeBounds{{RangeID: 0, Lower: mkRow(1, "a"), Upper: nil}},
	})

	_, err := DecodeRequest(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestDecodeResponseCorruptBatch(t *testing.T) {
	resp := &RangeResponse{QueryID: 1, RangeID: 0, Rows: []*row.Row{mkRow(1, "a")}}
	data, err := EncodeResponse(resp, codec.None{})
	require.NoError(t, err)

	// Truncating the batch payload must surface as a malformed message, not
	// a panic from the row decoder.
	_, err = DecodeResponse(data[:len(data)-2])
	assert.ErrorIs(t, err, ErrMalformedRequest)
}
