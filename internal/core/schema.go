package core

import (
	"strings"
	"sync"
)

// derivedField marks a schema column whose value is computed rather than
// copied from the input row.
type derivedField int

const (
	fieldRaw derivedField = iota
	fieldInputToStore
	fieldCandidatesPresent
	fieldComment
)

var derivedHeaders = map[string]derivedField{
	HeaderInputToStore:      fieldInputToStore,
	HeaderCandidatesPresent: fieldCandidatesPresent,
	HeaderComment:           fieldComment,
}

// ReportSchema is the ordered header list of one output category.
type ReportSchema struct {
	headers []string
	derived bool // whether derived headers are substituted on projection
}

// EngineSchema builds the schema of an engine's failure report: every column
// not owned by the other engine, followed by the derived columns.
func EngineSchema(layout ColumnLayout, engine EngineTag) ReportSchema {
	exclude := engine.Other().Prefix()
	headers := make([]string, 0, layout.Len()+3)
	for _, name := range layout.names {
		if !strings.HasPrefix(name, exclude) {
			headers = append(headers, name)
		}
	}
	headers = append(headers, HeaderInputToStore)
	if engine == EngineOT {
		headers = append(headers, HeaderCandidatesPresent)
	}
	headers = append(headers, HeaderComment)
	return ReportSchema{headers: headers, derived: true}
}

// VerbatimSchema copies the layout's columns without derived columns.
func VerbatimSchema(layout ColumnLayout) ReportSchema {
	return ReportSchema{headers: layout.Names()}
}

// Headers returns a copy of the header names.
func (s ReportSchema) Headers() []string {
	out := make([]string, len(s.headers))
	copy(out, s.headers)
	return out
}

// Len returns the number of columns.
func (s ReportSchema) Len() int {
	return len(s.headers)
}

// IsZero reports whether the schema was never built.
func (s ReportSchema) IsZero() bool {
	return s.headers == nil
}

// Project lays a row out across the schema. Derived headers take their value
// from row; all other headers copy the input cell of the same name, or ""
// when the input has no such column.
func (s ReportSchema) Project(in InputRow, row ClassifiedRow) []string {
	cells := make([]string, len(s.headers))
	for i, h := range s.headers {
		field := fieldRaw
		if s.derived {
			field = derivedHeaders[h]
		}
		switch field {
		case fieldInputToStore:
			cells[i] = row.InputToStore.String()
		case fieldCandidatesPresent:
			cells[i] = row.CandidatesPresent.String()
		case fieldComment:
			cells[i] = row.Comment
		default:
			cells[i] = in.Value(h)
		}
	}
	return cells
}

// SchemaSet holds the frozen schemas of both engine reports.
type SchemaSet struct {
	OS ReportSchema
	OT ReportSchema
}

// For returns the schema of one engine.
func (s SchemaSet) For(engine EngineTag) ReportSchema {
	if engine == EngineOS {
		return s.OS
	}
	return s.OT
}

// EngineSchemas builds both engine schemas from one layout.
func EngineSchemas(layout ColumnLayout) SchemaSet {
	return SchemaSet{
		OS: EngineSchema(layout, EngineOS),
		OT: EngineSchema(layout, EngineOT),
	}
}

// SchemaFreezer computes a value from the first layout it is offered and
// returns that same value for every later call, whatever the layout.
// It is safe for concurrent use; the build function runs at most once.
type SchemaFreezer[T any] struct {
	build func(ColumnLayout) T

	mu     sync.Mutex
	frozen bool
	value  T
	source string
}

// NewSchemaFreezer returns a freezer that builds its value with build.
func NewSchemaFreezer[T any](build func(ColumnLayout) T) *SchemaFreezer[T] {
	return &SchemaFreezer[T]{build: build}
}

// Freeze returns the frozen value, building it from layout if this is the
// first call. source names the file the layout came from and is kept for
// diagnostics.
func (f *SchemaFreezer[T]) Freeze(source string, layout ColumnLayout) T {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.frozen {
		f.value = f.build(layout)
		f.source = source
		f.frozen = true
	}
	return f.value
}

// Frozen returns the frozen value and whether a layout has been seen.
func (f *SchemaFreezer[T]) Frozen() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.frozen
}

// Source returns the file the frozen value was built from.
func (f *SchemaFreezer[T]) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}
