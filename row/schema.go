package row

import "fmt"

// Column describes one indexed column.
type Column struct {
	Name string
	Kind Kind
}

// Schema declares the column order an index maintains, plus which column
// carries the affinity key that decides partition ownership.
type Schema struct {
	columns     []Column
	affinityCol int
}

// NewSchema builds a schema over the given columns. affinityCol is the
// position of the affinity key column; pass -1 when the index has none.
func NewSchema(columns []Column, affinityCol int) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("row: schema needs at least one column")
	}
	if affinityCol < -1 || affinityCol >= len(columns) {
		return nil, fmt.Errorf("row: affinity column %d out of range [0,%d)", affinityCol, len(columns))
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Schema{columns: cols, affinityCol: affinityCol}, nil
}

// MustSchema is NewSchema that panics on a bad declaration. Intended for
// static schema literals and tests.
func MustSchema(columns []Column, affinityCol int) *Schema {
	s, err := NewSchema(columns, affinityCol)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns the declared columns in index order.
func (s *Schema) Columns() []Column { return s.columns }

// ColumnCount returns the number of declared columns.
func (s *Schema) ColumnCount() int { return len(s.columns) }

// AffinityColumn returns the affinity column position, or -1.
func (s *Schema) AffinityColumn() int { return s.affinityCol }

// AffinityValue extracts the affinity key value from a (possibly partial)
// row. The result is absent when the schema has no affinity column or the
// row does not carry it.
func (s *Schema) AffinityValue(r *Row) Value {
	if s.affinityCol < 0 || r == nil {
		return Absent()
	}
	return r.Value(s.affinityCol)
}

// Comparator returns the row comparator for this schema's column order.
func (s *Schema) Comparator() *Comparator { return &Comparator{schema: s} }
