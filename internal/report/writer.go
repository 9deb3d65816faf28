// Package report turns finished sections into output workbooks, a console
// summary and optional run metrics.
package report

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/TFIssues/internal/core"
	"github.com/JonMunkholm/TFIssues/internal/tabular"
)

// TimestampLayout is the ddMMyy_HHmmss stamp used in output file names.
const TimestampLayout = "020106_150405"

// ErrNothingToWrite is returned when every section is empty.
var ErrNothingToWrite = errors.New("no rows to write")

// Writer writes run outputs into one directory. All files of a run share the
// same timestamp.
type Writer struct {
	dir   string
	stamp string
}

// NewWriter creates a writer stamping file names with at.
func NewWriter(dir string, at time.Time) *Writer {
	return &Writer{dir: dir, stamp: at.Format(TimestampLayout)}
}

// AnalysisPath returns where WriteAnalysis writes.
func (w *Writer) AnalysisPath() string {
	return filepath.Join(w.dir, "Issues_"+w.stamp+tabular.ExtXLSX)
}

// ExtractionPath returns where WriteExtraction writes the output named name.
func (w *Writer) ExtractionPath(name string) string {
	return filepath.Join(w.dir, fileSafe(name)+" "+w.stamp+tabular.ExtXLSX)
}

// WriteAnalysis writes one sheet per non-empty section, in the order given.
// It returns ErrNothingToWrite, and creates no file, when all are empty.
func (w *Writer) WriteAnalysis(sections []core.Section) (string, error) {
	sheets := toSheets(sections)
	if len(sheets) == 0 {
		return "", ErrNothingToWrite
	}
	path := w.AnalysisPath()
	if err := tabular.WriteWorkbook(path, sheets); err != nil {
		return "", err
	}
	return path, nil
}

// WriteExtraction writes a single-sheet workbook for one filter pair.
func (w *Writer) WriteExtraction(name string, section core.Section) (string, error) {
	section.Category = core.Category(name)
	sheets := toSheets([]core.Section{section})
	if len(sheets) == 0 {
		return "", ErrNothingToWrite
	}
	path := w.ExtractionPath(name)
	if err := tabular.WriteWorkbook(path, sheets); err != nil {
		return "", err
	}
	return path, nil
}

func toSheets(sections []core.Section) []tabular.Sheet {
	var sheets []tabular.Sheet
	for _, s := range sections {
		if s.IsEmpty() || s.Schema.IsZero() {
			continue
		}
		sheets = append(sheets, tabular.Sheet{
			Name:   string(s.Category),
			Header: s.Schema.Headers(),
			Rows:   s.Cells(),
		})
	}
	return sheets
}

// fileSafe replaces path separators and characters Windows rejects in file
// names.
func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
