package row

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema([]Column{
		{Name: "org_id", Kind: KindInt64},
		{Name: "name", Kind: KindString},
	}, 0)
	require.NoError(t, err)
	return s
}

func TestComparator(t *testing.T) {
	cmp := testSchema(t).Comparator()

	t.Run("ColumnOrder", func(t *testing.T) {
		a := New(Int64(1), String("a"))
		b := New(Int64(1), String("b"))
		c := New(Int64(2), String("a"))

		assert.Negative(t, cmp.Compare(a, b))
		assert.Positive(t, cmp.Compare(b, a))
		assert.Negative(t, cmp.Compare(b, c))
		assert.Zero(t, cmp.Compare(a, New(Int64(1), String("a"))))
	})

	t.Run("PrefixStopsComparison", func(t *testing.T) {
		prefix := New(Int64(1))
		assert.Zero(t, cmp.Compare(prefix, New(Int64(1), String("x"))))
		assert.Negative(t, cmp.Compare(prefix, New(Int64(2), String("x"))))
	})

	t.Run("BiasBreaksTies", func(t *testing.T) {
		prefix := New(Int64(1))
		stored := New(Int64(1), String("x"))

		assert.Negative(t, cmp.CompareWithBias(prefix, int(BiasBefore), stored, 0))
		assert.Positive(t, cmp.CompareWithBias(prefix, int(BiasAfter), stored, 0))
		assert.Zero(t, cmp.CompareWithBias(prefix, int(BiasExact), stored, 0))
	})

	t.Run("NullOrdersFirst", func(t *testing.T) {
		null := New(Null(), String("a"))
		val := New(Int64(-100), String("a"))
		assert.Negative(t, cmp.Compare(null, val))
		assert.Zero(t, cmp.Compare(null, New(Null(), String("a"))))
	})
}

func TestValueCompare(t *testing.T) {
	assert.Negative(t, Compare(Int64(1), Int64(2)))
	assert.Negative(t, Compare(Int64(1), Float64(1.5)))
	assert.Zero(t, Compare(Int64(2), Float64(2.0)))
	assert.Negative(t, Compare(String("a"), String("b")))
	assert.Negative(t, Compare(Bytes([]byte{1}), Bytes([]byte{1, 0})))
	assert.Negative(t, Compare(Bool(false), Bool(true)))

	early := Time(time.Unix(100, 0))
	late := Time(time.Unix(200, 0))
	assert.Negative(t, Compare(early, late))
}

func TestValueCompareNaN(t *testing.T) {
	nan := Float64(math.NaN())

	assert.Positive(t, Compare(nan, Float64(math.MaxFloat64)))
	assert.Negative(t, Compare(Float64(-1), nan))
	assert.Zero(t, Compare(nan, Float64(math.NaN())))
	assert.Positive(t, Compare(nan, Int64(1)))
}

func TestBoundForbidsEquality(t *testing.T) {
	b := NewBound(New(Int64(1)), BiasBefore)
	require.NotNil(t, b)
	assert.Panics(t, func() {
		b.Equal(New(Int64(1)))
	})
}

func TestNewBoundNilRow(t *testing.T) {
	assert.Nil(t, NewBound(nil, BiasBefore))
}
