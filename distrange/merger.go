package distrange

import "github.com/hupe1980/gridtree/row"

// MergeRows merges two sorted row slices into one sorted slice. Merging
// with an empty slice returns the other unchanged; duplicates from both
// inputs pass through without deduplication; the merge is stable, taking
// from a first on ties.
func MergeRows(a, b []*row.Row, cmp *row.Comparator) []*row.Row {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]*row.Row, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if cmp.Compare(a[i], b[j]) <= 0 {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
