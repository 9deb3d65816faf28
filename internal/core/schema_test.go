package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewColumnLayout(t *testing.T) {
	layout := NewColumnLayout([]string{" A ", "", "B", "A"})

	assert.Equal(t, []string{"A", "B"}, layout.Names())
	assert.Equal(t, 2, layout.Len())

	i, ok := layout.Index("B")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	i, _ = layout.Index("A")
	assert.Equal(t, 3, i, "right-most duplicate wins")
	assert.False(t, layout.Has(""))
}

func TestInputRow_Value(t *testing.T) {
	row := InputRow{
		Cells:  []string{" x ", `="00123"`},
		Layout: NewColumnLayout([]string{"A", "B", "C"}),
	}
	assert.Equal(t, "x", row.Value("A"))
	assert.Equal(t, "00123", row.Value("B"))
	assert.Equal(t, "", row.Value("C"))
	assert.Equal(t, "", row.Value("missing"))
	assert.False(t, row.IsEmpty())
	assert.True(t, InputRow{Cells: []string{" ", ""}}.IsEmpty())
}

func TestEngineSchema(t *testing.T) {
	layout := NewColumnLayout([]string{"Rule Name", "OS Test Status", "OT Test Status", "Watchlist"})

	assert.Equal(t,
		[]string{"Rule Name", "OS Test Status", "Watchlist", HeaderInputToStore, HeaderComment},
		EngineSchema(layout, EngineOS).Headers())
	assert.Equal(t,
		[]string{"Rule Name", "OT Test Status", "Watchlist", HeaderInputToStore, HeaderCandidatesPresent, HeaderComment},
		EngineSchema(layout, EngineOT).Headers())
	assert.Equal(t, layout.Names(), VerbatimSchema(layout).Headers())
}

func TestVerbatimSchema_DoesNotSubstitute(t *testing.T) {
	layout := NewColumnLayout([]string{"Comment", "OS Test Status"})
	row := InputRow{Cells: []string{"free text", "PASS"}, Layout: layout}

	cells := VerbatimSchema(layout).Project(row, ClassifiedRow{Comment: "ignored"})
	assert.Equal(t, []string{"free text", "PASS"}, cells)
}

func TestSchemaFreezer_BuildsOnce(t *testing.T) {
	calls := 0
	f := NewSchemaFreezer(func(l ColumnLayout) ReportSchema {
		calls++
		return VerbatimSchema(l)
	})

	_, ok := f.Frozen()
	assert.False(t, ok)

	first := f.Freeze("a.xlsx", NewColumnLayout([]string{"A"}))
	second := f.Freeze("b.xlsx", NewColumnLayout([]string{"B", "C"}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"A"}, first.Headers())
	assert.Equal(t, first.Headers(), second.Headers())
	assert.Equal(t, "a.xlsx", f.Source())
}

func TestSchemaFreezer_ConcurrentFreezeIsConsistent(t *testing.T) {
	const files = 8

	candidates := make([]ColumnLayout, files)
	for i := range candidates {
		candidates[i] = NewColumnLayout([]string{"Shared", fmt.Sprintf("Only%d", i)})
	}

	for run := 0; run < 50; run++ {
		f := NewSchemaFreezer(EngineSchemas)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			seen  = make([]SchemaSet, files)
		)
		for i := 0; i < files; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				seen[i] = f.Freeze(fmt.Sprintf("file%d", i), candidates[i])
			}(i)
		}
		close(start)
		wg.Wait()

		frozen, ok := f.Frozen()
		require.True(t, ok)

		matches := 0
		for _, c := range candidates {
			if assert.ObjectsAreEqual(EngineSchemas(c).OS.Headers(), frozen.OS.Headers()) {
				matches++
			}
		}
		require.Equal(t, 1, matches, "frozen schema must come from exactly one candidate")

		for i := range seen {
			require.Equal(t, frozen.OS.Headers(), seen[i].OS.Headers(), "run %d file %d", run, i)
			require.Equal(t, frozen.OT.Headers(), seen[i].OT.Headers(), "run %d file %d", run, i)
		}
	}
}

func TestSchemaFreezer_SameFirstFileSameSchema(t *testing.T) {
	first := NewColumnLayout([]string{"A", "OS Test Status"})
	other := NewColumnLayout([]string{"Z"})

	var want []string
	for run := 0; run < 10; run++ {
		f := NewSchemaFreezer(EngineSchemas)
		got := f.Freeze("first.xlsx", first)
		f.Freeze("other.xlsx", other)
		if want == nil {
			want = got.OS.Headers()
		}
		assert.Equal(t, want, got.OS.Headers())
	}
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator(CategoryOS)

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			batch := make([]ClassifiedRow, 5)
			for i := range batch {
				batch[i] = ClassifiedRow{Line: p*100 + i}
			}
			assert.NoError(t, acc.Append(batch...))
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 50, acc.Len())

	rows, err := acc.Drain()
	require.NoError(t, err)
	assert.Len(t, rows, 50)

	// Bulk appends stay contiguous.
	for i := 0; i < len(rows); i += 5 {
		base := rows[i].Line
		for j := 1; j < 5; j++ {
			assert.Equal(t, base+j, rows[i+j].Line)
		}
	}

	_, err = acc.Drain()
	assert.ErrorIs(t, err, ErrDrained)
	assert.ErrorIs(t, acc.Append(ClassifiedRow{}), ErrDrained)
}
