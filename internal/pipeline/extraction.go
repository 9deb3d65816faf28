package pipeline

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/TFIssues/internal/core"
	"github.com/JonMunkholm/TFIssues/internal/logging"
	"github.com/JonMunkholm/TFIssues/internal/tabular"
)

// Extractor copies rows whose status columns match a filter pair, without
// classification or store lookups. All pairs are evaluated in one pass over
// each file.
type Extractor struct {
	pairs  []FilterPair
	schema *core.SchemaFreezer[core.ReportSchema]
	limits tabular.ArchiveLimits
}

// NewExtractor creates an extractor for pairs sharing the job's verbatim
// schema freezer.
func NewExtractor(pairs []FilterPair, schema *core.SchemaFreezer[core.ReportSchema], limits tabular.ArchiveLimits) *Extractor {
	return &Extractor{pairs: pairs, schema: schema, limits: limits}
}

// Extract reads the file at path and collects matching rows per pair.
func (x *Extractor) Extract(ctx context.Context, path string) (*FileResult, error) {
	logger := logging.WithFields(ctx, "file", filepath.Base(path))

	table, err := tabular.Read(path, x.limits)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", filepath.Base(path))
	}

	layout := core.NewColumnLayout(table.Header)
	schema := x.schema.Freeze(path, layout)

	result := &FileResult{
		Path: path,
		Rows: make(map[core.Category][]core.ClassifiedRow, len(x.pairs)),
	}
	for _, rec := range table.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := core.InputRow{Source: path, Line: rec.Line, Cells: rec.Cells, Layout: layout}
		if row.IsEmpty() {
			continue
		}
		result.RowsRead++

		for _, pair := range x.pairs {
			if !pair.Matches(row) {
				continue
			}
			category := pair.Category()
			result.Rows[category] = append(result.Rows[category], core.ClassifiedRow{
				Category: category,
				Source:   path,
				Line:     rec.Line,
				Cells:    schema.Project(row, core.ClassifiedRow{}),
			})
		}
	}

	logger.Info("file filtered", "rows", result.RowsRead, "pairs", len(x.pairs))
	return result, nil
}
