// Package tabular reads and writes the spreadsheet files the pipeline works
// on. Inputs are .xlsx workbooks (first sheet) or .csv files; outputs are
// always .xlsx.
package tabular

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// Supported input extensions.
const (
	ExtXLSX = ".xlsx"
	ExtCSV  = ".csv"
)

// ErrNoHeader is returned for inputs without a single row.
var ErrNoHeader = errors.New("input has no header row")

// ErrUnsupported is returned for extensions other than ExtXLSX and ExtCSV.
var ErrUnsupported = errors.New("unsupported input format")

// Record is one data row with its 1-based line number in the source.
type Record struct {
	Line  int
	Cells []string
}

// Table is a fully read input: the header row and every row after it.
type Table struct {
	Header  []string
	Records []Record
}

// Supported reports whether ext names a readable input format.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ExtXLSX, ExtCSV:
		return true
	}
	return false
}

// Read loads the input at path. Workbooks are checked against limits before
// they are opened.
func Read(path string, limits ArchiveLimits) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXLSX:
		if err := limits.Check(path); err != nil {
			return nil, err
		}
		return readWorkbook(path, limits)
	case ExtCSV:
		return readCSV(path)
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%s", filepath.Ext(path))
	}
}

func readWorkbook(path string, limits ArchiveLimits) (*Table, error) {
	opts := excelize.Options{}
	if limits.MaxEntrySize > 0 && limits.MaxEntrySize <= math.MaxInt64 {
		opts.UnzipSizeLimit = int64(limits.MaxEntrySize)
		opts.UnzipXMLSizeLimit = int64(limits.MaxEntrySize)
	}

	f, err := excelize.OpenFile(path, opts)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheet)
	}
	defer rows.Close()

	var (
		table Table
		line  int
	)
	for rows.Next() {
		line++
		raw, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", line)
		}
		cells := make([]string, len(raw))
		for i, v := range raw {
			cells[i] = normalizeCell(f, sheet, i, line, v)
		}

		if table.Header == nil {
			table.Header = cells
			continue
		}
		table.Records = append(table.Records, Record{Line: line, Cells: cells})
	}
	if err := rows.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	if table.Header == nil {
		return nil, ErrNoHeader
	}
	return &table, nil
}

// normalizeCell turns integral numeric cells into integer text ("42.0" and
// "4.2E1" both become "42"). Text cells that merely look numeric, such as
// zero-padded identifiers, are left alone.
func normalizeCell(f *excelize.File, sheet string, col, row int, v string) string {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return v
	}
	if n != math.Trunc(n) || math.Abs(n) >= 1e15 {
		return v
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return v
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return v
	}
	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		return strconv.FormatInt(int64(n), 10)
	default:
		return v
	}
}

func readCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer file.Close()

	r := csv.NewReader(newTextReader(file))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var table Table
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "invalid csv")
		}
		if table.Header == nil {
			table.Header = rec
			continue
		}
		line, _ := r.FieldPos(0)
		table.Records = append(table.Records, Record{Line: line, Cells: rec})
	}
	if table.Header == nil {
		return nil, ErrNoHeader
	}
	return &table, nil
}
