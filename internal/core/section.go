package core

// Section is one category's finished output: the frozen schema and the
// drained rows in accumulation order.
type Section struct {
	Category Category
	Schema   ReportSchema
	Rows     []ClassifiedRow
}

// IsEmpty reports whether the section has no rows.
func (s Section) IsEmpty() bool {
	return len(s.Rows) == 0
}

// Cells returns the projected cells of every row.
func (s Section) Cells() [][]string {
	out := make([][]string, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Cells
	}
	return out
}
