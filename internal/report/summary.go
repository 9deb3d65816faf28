package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JonMunkholm/TFIssues/internal/core"
)

// SummaryRow is one line of the console summary.
type SummaryRow struct {
	Category core.Category
	Rows     int
	Output   string // written file, or "" when the category was omitted
}

// SummaryRows builds summary lines for sections written to output.
func SummaryRows(sections []core.Section, output string) []SummaryRow {
	rows := make([]SummaryRow, 0, len(sections))
	for _, s := range sections {
		r := SummaryRow{Category: s.Category, Rows: len(s.Rows)}
		if !s.IsEmpty() {
			r.Output = output
		}
		rows = append(rows, r)
	}
	return rows
}

// RenderSummary writes a table of categories, row counts and output files.
func RenderSummary(w io.Writer, title string, rows []SummaryRow) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"Category", "Rows", "Output"})

	total := 0
	for _, r := range rows {
		out := "-"
		if r.Output != "" {
			out = filepath.Base(r.Output)
		}
		tbl.AppendRow(table.Row{string(r.Category), r.Rows, out})
		total += r.Rows
	}
	tbl.AppendFooter(table.Row{"Total", total, ""})

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
