package core

import "strings"

// ColumnLayout maps column names to their zero-based position in a row.
// It is built once from a header row and never modified afterwards.
type ColumnLayout struct {
	names []string       // non-blank header cells in positional order
	index map[string]int // name -> position in the source row
}

// NewColumnLayout builds a layout from a header row. Header cells are
// trimmed; blank header cells are not addressable but keep their position,
// so later columns still line up with the data rows. When a name repeats,
// the right-most column wins.
func NewColumnLayout(header []string) ColumnLayout {
	l := ColumnLayout{
		names: make([]string, 0, len(header)),
		index: make(map[string]int, len(header)),
	}
	for i, h := range header {
		name := CleanCell(h)
		if name == "" {
			continue
		}
		if _, dup := l.index[name]; !dup {
			l.names = append(l.names, name)
		}
		l.index[name] = i
	}
	return l
}

// Names returns the column names in header order.
func (l ColumnLayout) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Index returns the position of a column.
func (l ColumnLayout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Has reports whether the layout contains the column.
func (l ColumnLayout) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Len returns the number of addressable columns.
func (l ColumnLayout) Len() int {
	return len(l.names)
}

// Equal reports whether two layouts name the same columns at the same positions.
func (l ColumnLayout) Equal(o ColumnLayout) bool {
	if len(l.names) != len(o.names) {
		return false
	}
	for i, n := range l.names {
		if o.names[i] != n || o.index[n] != l.index[n] {
			return false
		}
	}
	return true
}

// InputRow is one data row of a tabular input together with its layout.
type InputRow struct {
	Source string // file the row was read from
	Line   int    // 1-based row number, header is line 1
	Cells  []string
	Layout ColumnLayout
}

// Value returns the trimmed cell under the named column, or "" when the
// column is absent from the layout or the row is short.
func (r InputRow) Value(name string) string {
	i, ok := r.Layout.index[name]
	if !ok || i >= len(r.Cells) {
		return ""
	}
	return CleanCell(r.Cells[i])
}

// IsEmpty reports whether every cell of the row is blank.
func (r InputRow) IsEmpty() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// CleanCell trims whitespace and strips the Excel text-formula wrapper
// (="...") that spreadsheet exports put around numeric-looking identifiers.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}
