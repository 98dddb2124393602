package row

// Bias selects which side of a tie block a range bound lands on when a
// partial search row matches multiple stored rows sharing a column prefix.
type Bias int

const (
	// BiasBefore places the bound before the first tied row (used for lower
	// bounds, so tied rows are included).
	BiasBefore Bias = -1
	// BiasExact makes the bound compare equal on an exact full-key match
	// (used for point lookups).
	BiasExact Bias = 0
	// BiasAfter places the bound after the last tied row (used for upper
	// bounds, so tied rows are included).
	BiasAfter Bias = 1
)

// Bound wraps a caller-supplied search row with a tie-break bias. It is a
// transient ordering pivot: it exists only for the duration of one range
// query and is never stored in a tree.
//
// A Bound participates in ordering only, never in identity comparison.
// Calling Equal is a programmer contract violation and panics.
type Bound struct {
	row  *Row
	bias Bias
}

// NewBound wraps a search row with a bias. Returns nil for a nil row, which
// callers treat as an open (absent) bound.
func NewBound(r *Row, bias Bias) *Bound {
	if r == nil {
		return nil
	}
	return &Bound{row: r, bias: bias}
}

// Row returns the wrapped search row.
func (b *Bound) Row() *Row { return b.row }

// Bias returns the tie-break bias.
func (b *Bound) Bias() Bias { return b.bias }

// Equal must never be called: a Bound is an ordering pivot, not a value.
func (b *Bound) Equal(any) bool {
	panic("row: Bound is an ordering pivot and must never be compared for equality")
}
