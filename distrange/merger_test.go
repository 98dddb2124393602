package distrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridtree/row"
)

func TestMergeRows(t *testing.T) {
	cmp := testSchema(t).Comparator()

	t.Run("EmptyIdentity", func(t *testing.T) {
		b := []*row.Row{mkRow(1, "a"), mkRow(2, "b")}
		assert.Equal(t, b, MergeRows(nil, b, cmp))
		assert.Equal(t, b, MergeRows(b, nil, cmp))
	})

	t.Run("Interleaved", func(t *testing.T) {
		a := []*row.Row{mkRow(1, "a"), mkRow(3, "a"), mkRow(5, "a")}
		b := []*row.Row{mkRow(2, "a"), mkRow(4, "a"), mkRow(6, "a")}

		got := MergeRows(a, b, cmp)
		require.Len(t, got, 6)
		for i := 1; i < len(got); i++ {
			assert.Negative(t, cmp.Compare(got[i-1], got[i]))
		}
	})

	t.Run("TiesKeepLeftFirst", func(t *testing.T) {
		a := []*row.Row{
			row.NewWithPayload("left-1", row.Int64(1), row.String("x")),
			row.NewWithPayload("left-2", row.Int64(2), row.String("x")),
		}
		b := []*row.Row{
			row.NewWithPayload("right-1", row.Int64(1), row.String("x")),
			row.NewWithPayload("right-2", row.Int64(2), row.String("x")),
		}

		got := MergeRows(a, b, cmp)
		require.Len(t, got, 4)
		assert.Equal(t, "left-1", got[0].Payload())
		assert.Equal(t, "right-1", got[1].Payload())
		assert.Equal(t, "left-2", got[2].Payload())
		assert.Equal(t, "right-2", got[3].Payload())
	})
}
