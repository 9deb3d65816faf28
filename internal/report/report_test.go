package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/TFIssues/internal/core"
)

var runTime = time.Date(2026, 3, 7, 14, 5, 9, 0, time.UTC)

func sections(t *testing.T) []core.Section {
	t.Helper()
	layout := core.NewColumnLayout([]string{"Rule Name", "OS Test Status", "OT Test Status"})
	schemas := core.EngineSchemas(layout)
	in := core.InputRow{Cells: []string{"R1", "FAIL", "FAIL"}, Layout: layout}

	osRow := core.ClassifiedRow{Category: core.CategoryOS, InputToStore: core.VerdictNo, Comment: core.CommentTFIssue}
	osRow.Cells = schemas.OS.Project(in, osRow)

	return []core.Section{
		{Category: core.CategoryOS, Schema: schemas.OS, Rows: []core.ClassifiedRow{osRow, osRow}},
		{Category: core.CategoryOT, Schema: schemas.OT},
	}
}

func TestFileNames(t *testing.T) {
	w := NewWriter("/out", runTime)
	assert.Equal(t, filepath.Join("/out", "Issues_070326_140509.xlsx"), w.AnalysisPath())
	assert.Equal(t, filepath.Join("/out", "OS PASS OT FAIL 070326_140509.xlsx"), w.ExtractionPath("OS PASS OT FAIL"))
	assert.Equal(t, filepath.Join("/out", "OS a_b OT c 070326_140509.xlsx"), w.ExtractionPath("OS a/b OT c"))
}

func TestWriteAnalysis_OmitsEmptySections(t *testing.T) {
	w := NewWriter(t.TempDir(), runTime)

	path, err := w.WriteAnalysis(sections(t))
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{string(core.CategoryOS)}, f.GetSheetList())
	rows, err := f.GetRows(string(core.CategoryOS))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Rule Name", "OS Test Status", core.HeaderInputToStore, core.HeaderComment}, rows[0])
	assert.Equal(t, []string{"R1", "FAIL", "NO", core.CommentTFIssue}, rows[1])
}

func TestWriteAnalysis_NothingToWrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, runTime)

	s := sections(t)
	s[0].Rows = nil
	_, err := w.WriteAnalysis(s)
	assert.ErrorIs(t, err, ErrNothingToWrite)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteExtraction(t *testing.T) {
	w := NewWriter(t.TempDir(), runTime)
	layout := core.NewColumnLayout([]string{"A", "B"})
	section := core.Section{
		Schema: core.VerbatimSchema(layout),
		Rows:   []core.ClassifiedRow{{Cells: []string{"1", "2"}}},
	}

	path, err := w.WriteExtraction("OS PASS OT FAIL", section)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "OS PASS OT FAIL 070326_140509.xlsx"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"OS PASS OT FAIL"}, f.GetSheetList())

	_, err = w.WriteExtraction("OS X OT Y", core.Section{Schema: core.VerbatimSchema(layout)})
	assert.ErrorIs(t, err, ErrNothingToWrite)
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	rows := SummaryRows(sections(t), "/out/Issues_070326_140509.xlsx")
	require.NoError(t, RenderSummary(&buf, "Classification", rows))

	out := buf.String()
	assert.Contains(t, out, "Classification")
	assert.Contains(t, out, string(core.CategoryOS))
	assert.Contains(t, out, "Issues_070326_140509.xlsx")
	assert.Contains(t, out, "Total")
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveSections(sections(t))
	m.ObserveRun("analysis", 3, 1, 2, 1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues(string(core.CategoryOS))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.verdicts.WithLabelValues("rule_match", "NO")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.files.WithLabelValues("analysis", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("analysis", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowsFailed))

	path := filepath.Join(t.TempDir(), "tfissues.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tfissues_rows_total")
	assert.Contains(t, string(data), "tfissues_run_duration_seconds")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSections(sections(t))
	m.ObserveRun("analysis", 1, 0, 0, 1)
	assert.NoError(t, m.WriteTextfile("/nonexistent/x.prom"))
	assert.Nil(t, m.Registry())
}
