package tabular

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// maxSheetName is Excel's sheet-name length limit in characters.
const maxSheetName = 31

// ErrNoSheets is returned when a workbook would contain no sheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Sheet is one output section: a header row followed by data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// SheetName makes name acceptable to Excel: forbidden characters become
// '_' and the result is cut to 31 characters.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.Trim(name, "'"))
	if name == "" {
		name = "Sheet"
	}
	if utf8.RuneCountInString(name) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	return name
}

// WriteWorkbook writes sheets, in order, to a new workbook at path. Cells are
// written as text.
func WriteWorkbook(path string, sheets []Sheet) (err error) {
	if len(sheets) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close workbook")
		}
	}()

	defaultSheet := f.GetSheetName(0)
	used := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := uniqueSheetName(SheetName(s.Name), used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return errors.Wrapf(err, "rename sheet %s", name)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "create sheet %s", name)
		}
		if err := writeSheet(f, name, s); err != nil {
			return errors.Wrapf(err, "write sheet %s", name)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, s Sheet) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", toRow(s.Header)); err != nil {
		return err
	}
	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toRow(row)); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func toRow(cells []string) []any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// uniqueSheetName appends a counter when two sections sanitize to the same
// name.
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := "~" + strconv.Itoa(n)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
