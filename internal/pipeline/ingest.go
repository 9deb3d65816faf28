// Package pipeline runs a reconciliation job: it discovers input files,
// classifies their failed rows concurrently and collects the results per
// category for the report writer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/TFIssues/internal/core"
	"github.com/JonMunkholm/TFIssues/internal/logging"
	"github.com/JonMunkholm/TFIssues/internal/tabular"
)

// FileResult is what one input contributed, held locally until it is merged
// into the job-wide accumulators.
type FileResult struct {
	Path       string
	RowsRead   int
	RowsFailed int
	Rows       map[core.Category][]core.ClassifiedRow
}

// Count returns the number of rows collected for a category.
func (r FileResult) Count(category core.Category) int {
	return len(r.Rows[category])
}

// Ingestor classifies the rows of one input file at a time.
type Ingestor struct {
	classifier *core.Classifier
	schemas    *core.SchemaFreezer[core.SchemaSet]
	workers    int
	limits     tabular.ArchiveLimits
}

// NewIngestor creates an ingestor sharing the job's schema freezer. workers
// bounds how many rows of a file are classified at once.
func NewIngestor(classifier *core.Classifier, schemas *core.SchemaFreezer[core.SchemaSet], workers int, limits tabular.ArchiveLimits) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	return &Ingestor{
		classifier: classifier,
		schemas:    schemas,
		workers:    workers,
		limits:     limits,
	}
}

// rowOutcome is the per-row slot filled by a worker; slots avoid any shared
// state between workers of the same file.
type rowOutcome struct {
	rows   []core.ClassifiedRow
	failed bool
	empty  bool
}

// Ingest reads the file at path and classifies each data row for both
// engines. An error means the file as a whole could not be read; failures of
// single rows are logged and counted instead.
func (ing *Ingestor) Ingest(ctx context.Context, path string) (*FileResult, error) {
	logger := logging.WithFields(ctx, "file", filepath.Base(path))

	table, err := tabular.Read(path, ing.limits)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", filepath.Base(path))
	}

	layout := core.NewColumnLayout(table.Header)
	schemas := ing.schemas.Freeze(path, layout)

	outcomes := make([]rowOutcome, len(table.Records))
	g := new(errgroup.Group)
	g.SetLimit(ing.workers)

	for i, rec := range table.Records {
		row := core.InputRow{Source: path, Line: rec.Line, Cells: rec.Cells, Layout: layout}
		if row.IsEmpty() {
			outcomes[i].empty = true
			continue
		}
		g.Go(func() error {
			outcomes[i] = ing.classifyRow(ctx, logger, row, schemas)
			return nil
		})
	}
	_ = g.Wait()

	result := &FileResult{
		Path: path,
		Rows: make(map[core.Category][]core.ClassifiedRow, len(core.Engines)),
	}
	for _, o := range outcomes {
		if o.empty {
			continue
		}
		result.RowsRead++
		if o.failed {
			result.RowsFailed++
			continue
		}
		for _, r := range o.rows {
			result.Rows[r.Category] = append(result.Rows[r.Category], r)
		}
	}

	logger.Info("file classified",
		"rows", result.RowsRead,
		"os_rows", result.Count(core.CategoryOS),
		"ot_rows", result.Count(core.CategoryOT),
		"failed_rows", result.RowsFailed)
	return result, nil
}

// classifyRow runs every engine over one row. Any error or panic drops the
// row from all outputs.
func (ing *Ingestor) classifyRow(ctx context.Context, logger *slog.Logger, row core.InputRow, schemas core.SchemaSet) (out rowOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("row classification panicked", "row", row.Line, "panic", fmt.Sprint(r))
			out = rowOutcome{failed: true}
		}
	}()

	if err := ctx.Err(); err != nil {
		logger.Warn("row skipped", "row", row.Line, "error", err)
		return rowOutcome{failed: true}
	}

	for _, engine := range core.Engines {
		classified, ok, err := ing.classifier.Classify(ctx, row, engine, schemas.For(engine))
		if err != nil {
			logger.Error("row classification failed", "row", row.Line, "engine", engine, "error", fmt.Sprintf("%+v", err))
			return rowOutcome{failed: true}
		}
		if ok {
			out.rows = append(out.rows, classified)
		}
	}
	return out
}
