package row

// Comparator orders rows column-by-column following the schema's declared
// column order. Comparison of a partial search row stops at its first absent
// column, so a prefix ties with every stored row sharing that prefix; Bound
// bias then decides which side of the tie block a range bound lands on.
type Comparator struct {
	schema *Schema
}

// Compare returns <0, 0 or >0 ordering a before/equal/after b.
func (c *Comparator) Compare(a, b *Row) int {
	for i := 0; i < c.schema.ColumnCount(); i++ {
		va, vb := a.Value(i), b.Value(i)
		if va.IsAbsent() || vb.IsAbsent() {
			return 0
		}
		if r := Compare(va, vb); r != 0 {
			return r
		}
	}
	return 0
}

// CompareWithBias orders a against b and breaks exact ties with the given
// biases. A bound with bias -1 sorts before every row tied on its prefix,
// +1 after; stored rows always carry bias 0.
func (c *Comparator) CompareWithBias(a *Row, biasA int, b *Row, biasB int) int {
	if r := c.Compare(a, b); r != 0 {
		return r
	}
	return biasA - biasB
}

// Less is a convenience adapter for sort-style callers.
func (c *Comparator) Less(a, b *Row) bool { return c.Compare(a, b) < 0 }
