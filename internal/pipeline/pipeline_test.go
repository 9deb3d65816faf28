package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/TFIssues/internal/core"
	"github.com/JonMunkholm/TFIssues/internal/tabular"
)

// stubGateway answers every lookup with fixed verdicts.
type stubGateway struct {
	ruleMatch core.Verdict
	candidate core.Verdict

	mu             sync.Mutex
	ruleCalls      int
	candidateCalls int
}

func (g *stubGateway) LookupRuleMatch(context.Context, core.RequestKey, string, string) core.Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ruleCalls++
	return g.ruleMatch
}

func (g *stubGateway) LookupCandidatePresence(context.Context, core.RequestKey, string, string, string) core.Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.candidateCalls++
	return g.candidate
}

var scenarioHeader = []string{
	"Rule Name", "Source Input", "Watchlist", "Target Column", "N_UID", "Message SWIFT",
	"OS Transaction Token", "OS Test Status", "OS # Identifier matches",
	"OT Transaction Token", "OT Test Status", "OT # Identifier matches",
}

var (
	rowA = []string{"R-A", "ACME", "OFAC", "full_name", "1", "x", "TA", "FAIL", "", "TA", "PASS", ""}
	rowB = []string{"R-B", "BETA", "OFAC", "full_name", "2", "x", "TB", "PASS", "", "TB", "FAIL", "1"}
	rowC = []string{"R-C", "GAMMA", "OFAC", "full_name", "3", "x", "TC", "PASS", "", "TC", "PASS", ""}
)

func writeInput(t *testing.T, dir, name string, header []string, rows ...[]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, tabular.WriteWorkbook(path, []tabular.Sheet{{Name: "Results", Header: header, Rows: rows}}))
	return path
}

func cellOf(t *testing.T, section core.Section, row int, header string) string {
	t.Helper()
	for i, h := range section.Schema.Headers() {
		if h == header {
			return section.Rows[row].Cells[i]
		}
	}
	t.Fatalf("header %q not in %s schema", header, section.Category)
	return ""
}

func TestRunAnalysis_ThreeRowScenario(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "results.xlsx", scenarioHeader, rowA, rowB, rowC)

	gw := &stubGateway{ruleMatch: core.VerdictNo, candidate: core.VerdictYes}
	c := NewCoordinator(Options{InputDir: dir, Extension: ".xlsx", Workers: 4, Limits: tabular.DefaultArchiveLimits})

	res, err := c.RunAnalysis(context.Background(), gw)
	require.NoError(t, err)
	require.Len(t, res.Sections, 2)

	osSection, otSection := res.Sections[0], res.Sections[1]
	assert.Equal(t, core.CategoryOS, osSection.Category)
	assert.Equal(t, core.CategoryOT, otSection.Category)

	require.Len(t, osSection.Rows, 1)
	assert.Equal(t, "R-A", cellOf(t, osSection, 0, "Rule Name"))
	assert.Equal(t, "NA", cellOf(t, osSection, 0, core.HeaderInputToStore))
	assert.Equal(t, core.CommentMatchingIssue, cellOf(t, osSection, 0, core.HeaderComment))

	require.Len(t, otSection.Rows, 1)
	assert.Equal(t, "R-B", cellOf(t, otSection, 0, "Rule Name"))
	assert.Equal(t, "NO", cellOf(t, otSection, 0, core.HeaderInputToStore))
	assert.Equal(t, "NA", cellOf(t, otSection, 0, core.HeaderCandidatesPresent))
	assert.Equal(t, core.CommentTFIssue, cellOf(t, otSection, 0, core.HeaderComment))

	assert.Equal(t, 1, gw.ruleCalls, "only row B reaches the store")
	assert.Zero(t, gw.candidateCalls, "checker two never runs after NO")

	assert.Equal(t, Stats{Files: 1, RowsRead: 3}, statsWithoutElapsed(res.Stats))
	assert.Equal(t, filepath.Join(dir, "results.xlsx"), res.SchemaSource)
}

func TestRunExtraction_Scenario(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "results.xlsx", scenarioHeader, rowA, rowB, rowC)

	c := NewCoordinator(Options{InputDir: dir, Extension: ".xlsx", Workers: 2, Limits: tabular.DefaultArchiveLimits})
	pairs := ParseFilterPairs("OS:PASS,OT:FAIL", FilterPair{OS: "PASS", OT: "FAIL"}, nil)

	res, err := c.RunExtraction(context.Background(), pairs)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)

	g := res.Groups[0]
	assert.Equal(t, FilterPair{OS: "PASS", OT: "FAIL"}, g.Pair)
	assert.Equal(t, scenarioHeader, g.Section.Schema.Headers())
	require.Len(t, g.Section.Rows, 1)
	assert.Equal(t, rowB, g.Section.Rows[0].Cells)
}

func TestRunExtraction_MultiplePairsOnePass(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "results.xlsx", scenarioHeader, rowA, rowB, rowC)

	c := NewCoordinator(Options{InputDir: dir, Extension: ".xlsx", Workers: 2})
	pairs := ParseFilterPairs("OS:PASS,OT:PASS;OS:FAIL,OT:PASS;OS:fail,OT:pass", FilterPair{}, nil)
	require.Len(t, pairs, 3)

	res, err := c.RunExtraction(context.Background(), pairs)
	require.NoError(t, err)
	require.Len(t, res.Groups, 3)

	assert.Len(t, res.Groups[0].Section.Rows, 1, "row C")
	assert.Len(t, res.Groups[1].Section.Rows, 1, "row A")
	assert.Empty(t, res.Groups[2].Section.Rows, "filters match case-sensitively")
}

func TestRunAnalysis_CorruptFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "a.xlsx", scenarioHeader, rowA)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xlsx"), []byte("definitely not a workbook"), 0o600))
	writeInput(t, dir, "c.xlsx", scenarioHeader, rowB)

	c := NewCoordinator(Options{InputDir: dir, Extension: ".xlsx", Workers: 3})
	res, err := c.RunAnalysis(context.Background(), &stubGateway{ruleMatch: core.VerdictNo})
	require.NoError(t, err)

	assert.Len(t, res.Sections[0].Rows, 1)
	assert.Len(t, res.Sections[1].Rows, 1)
	assert.Equal(t, 3, res.Stats.Files)
	assert.Equal(t, 1, res.Stats.FilesFailed)
}

func TestRunAnalysis_EmptyDirectory(t *testing.T) {
	c := NewCoordinator(Options{InputDir: t.TempDir(), Workers: 2})
	res, err := c.RunAnalysis(context.Background(), &stubGateway{})
	require.NoError(t, err)
	for _, s := range res.Sections {
		assert.True(t, s.IsEmpty())
	}
	assert.Zero(t, res.Stats.Files)
}

func TestRunAnalysis_MissingDirectory(t *testing.T) {
	c := NewCoordinator(Options{InputDir: filepath.Join(t.TempDir(), "missing")})
	_, err := c.RunAnalysis(context.Background(), &stubGateway{})
	assert.Error(t, err)
}

// rowKey identifies an output row independent of completion order.
func rowKey(r core.ClassifiedRow) string {
	return fmt.Sprintf("%s|%s|%d|%v", r.Category, filepath.Base(r.Source), r.Line, r.Cells)
}

func TestRunAnalysis_MatchesSequentialReference(t *testing.T) {
	dir := t.TempDir()
	statuses := []string{"PASS", "FAIL", "fail"}

	var inputs []string
	for f := 0; f < 6; f++ {
		var rows [][]string
		for r := 0; r < 25; r++ {
			row := append([]string(nil), rowA...)
			row[0] = fmt.Sprintf("R-%d-%d", f, r)
			row[7] = statuses[(f+r)%3]
			row[10] = statuses[(f*r)%3]
			if r%4 == 0 {
				row[11] = "1"
			}
			rows = append(rows, row)
		}
		inputs = append(inputs, writeInput(t, dir, fmt.Sprintf("in%02d.xlsx", f), scenarioHeader, rows...))
	}

	gw := &stubGateway{ruleMatch: core.VerdictYes, candidate: core.VerdictNo}
	c := NewCoordinator(Options{InputDir: dir, Extension: ".xlsx", Workers: 4})
	res, err := c.RunAnalysis(context.Background(), gw)
	require.NoError(t, err)

	// Sequential reference over the same inputs.
	var want []string
	classifier := core.NewClassifier(gw, nil)
	var schemas core.SchemaSet
	for i, path := range inputs {
		table, err := tabular.Read(path, tabular.DefaultArchiveLimits)
		require.NoError(t, err)
		layout := core.NewColumnLayout(table.Header)
		if i == 0 {
			schemas = core.EngineSchemas(layout)
		}
		for _, rec := range table.Records {
			row := core.InputRow{Source: path, Line: rec.Line, Cells: rec.Cells, Layout: layout}
			for _, engine := range core.Engines {
				out, ok, err := classifier.Classify(context.Background(), row, engine, schemas.For(engine))
				require.NoError(t, err)
				if ok {
					want = append(want, rowKey(out))
				}
			}
		}
	}

	var got []string
	for _, s := range res.Sections {
		for _, r := range s.Rows {
			got = append(got, rowKey(r))
		}
	}
	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
	assert.NotEmpty(t, got)
}

func TestIngest_RowPanicDropsOnlyThatRow(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "in.xlsx", scenarioHeader, rowA, rowB)

	gw := &panickyGateway{}
	ing := NewIngestor(core.NewClassifier(gw, nil), core.NewSchemaFreezer(core.EngineSchemas), 2, tabular.DefaultArchiveLimits)

	res, err := ing.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsRead)
	assert.Equal(t, 1, res.RowsFailed)
	assert.Equal(t, 1, res.Count(core.CategoryOS), "row A never touches the store")
	assert.Zero(t, res.Count(core.CategoryOT))
}

type panickyGateway struct{}

func (panickyGateway) LookupRuleMatch(context.Context, core.RequestKey, string, string) core.Verdict {
	panic("driver exploded")
}

func (panickyGateway) LookupCandidatePresence(context.Context, core.RequestKey, string, string, string) core.Verdict {
	return core.VerdictNotApplicable
}

func TestIngest_SkipsEmptyRows(t *testing.T) {
	dir := t.TempDir()
	blank := make([]string, len(scenarioHeader))
	path := writeInput(t, dir, "in.xlsx", scenarioHeader, rowA, blank, rowC)

	ing := NewIngestor(core.NewClassifier(&stubGateway{}, nil), core.NewSchemaFreezer(core.EngineSchemas), 1, tabular.DefaultArchiveLimits)
	res, err := ing.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsRead)
	assert.Equal(t, 1, res.Count(core.CategoryOS))
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.XLSX", "~$a.xlsx", "notes.txt", "c.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.xlsx"), 0o700))

	files, err := DiscoverFiles(dir, ".xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.XLSX"), filepath.Join(dir, "b.xlsx")}, files)

	files, err = DiscoverFiles(dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "c.csv")}, files)

	files, err = DiscoverFiles(t.TempDir(), ".xlsx")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestParseFilterPairs(t *testing.T) {
	fallback := FilterPair{OS: "PASS", OT: "FAIL"}

	tests := []struct {
		name string
		spec string
		want []FilterPair
	}{
		{"empty uses fallback", "", []FilterPair{fallback}},
		{"single", "OS:FAIL,OT:PASS", []FilterPair{{"FAIL", "PASS"}}},
		{"several", "OS:PASS,OT:FAIL; OS:FAIL , OT:FAIL", []FilterPair{{"PASS", "FAIL"}, {"FAIL", "FAIL"}}},
		{"value after first colon", "OS:a:b,OT:c", []FilterPair{{"a:b", "c"}}},
		{"no colon keeps text", "PASS,FAIL", []FilterPair{{"PASS", "FAIL"}}},
		{"malformed skipped", "OS:PASS;OS:FAIL,OT:FAIL,OT:X;OS:FAIL,OT:PASS", []FilterPair{{"FAIL", "PASS"}}},
		{"duplicates collapse", "OS:A,OT:B;OS:A,OT:B", []FilterPair{{"A", "B"}}},
		{"nothing usable", "garbage", []FilterPair{fallback}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFilterPairs(tt.spec, fallback, nil))
		})
	}
}

func TestFilterPair_Name(t *testing.T) {
	p := FilterPair{OS: "PASS", OT: "FAIL"}
	assert.Equal(t, "OS PASS OT FAIL", p.Name())
	assert.Equal(t, core.Category("OS PASS OT FAIL"), p.Category())
}

func statsWithoutElapsed(s Stats) Stats {
	s.Elapsed = 0
	return s
}
