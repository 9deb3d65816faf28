package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/TFIssues/internal/core"
	"github.com/JonMunkholm/TFIssues/internal/logging"
	"github.com/JonMunkholm/TFIssues/internal/tabular"
)

// Options configures a job.
type Options struct {
	InputDir  string
	Extension string // e.g. ".xlsx"; matched case-insensitively
	Workers   int    // bounds both files in flight and rows in flight per file
	Limits    tabular.ArchiveLimits
}

// Stats summarises a run.
type Stats struct {
	Files       int
	FilesFailed int
	RowsRead    int
	RowsFailed  int
	Elapsed     time.Duration
}

// AnalysisResult holds the classification output, OS section first.
type AnalysisResult struct {
	Sections     []core.Section
	SchemaSource string // file the schemas were frozen from
	Stats        Stats
}

// ExtractionGroup is the output of one filter pair.
type ExtractionGroup struct {
	Pair    FilterPair
	Section core.Section
}

// ExtractionResult holds the filtered-extraction output in pair order.
type ExtractionResult struct {
	Groups       []ExtractionGroup
	SchemaSource string
	Stats        Stats
}

// Coordinator runs jobs over the files of one input directory.
type Coordinator struct {
	opts Options
}

// NewCoordinator creates a coordinator. Workers below 1 run sequentially.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Extension == "" {
		opts.Extension = tabular.ExtXLSX
	}
	return &Coordinator{opts: opts}
}

// DiscoverFiles lists regular files in dir with extension ext, sorted by
// name. Office lock files ("~$name.xlsx") are ignored. An empty directory
// yields an empty list.
func DiscoverFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading input directory %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// RunAnalysis classifies every failed row of every input through gateway.
// Only an unreadable input directory is an error; unreadable files and
// failing rows are logged and skipped.
func (c *Coordinator) RunAnalysis(ctx context.Context, gateway core.Gateway) (*AnalysisResult, error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "component", "analysis")

	files, err := DiscoverFiles(c.opts.InputDir, c.opts.Extension)
	if err != nil {
		return nil, err
	}
	logger.Info("starting classification", "files", len(files), "workers", c.opts.Workers)

	schemas := core.NewSchemaFreezer(core.EngineSchemas)
	classifier := core.NewClassifier(gateway, logging.WithFields(ctx, "component", "classifier"))
	ingestor := NewIngestor(classifier, schemas, c.opts.Workers, c.opts.Limits)

	accs := map[core.Category]*core.Accumulator{
		core.CategoryOS: core.NewAccumulator(core.CategoryOS),
		core.CategoryOT: core.NewAccumulator(core.CategoryOT),
	}
	stats := c.runFiles(ctx, files, ingestor.Ingest, accs)

	frozen, _ := schemas.Frozen()
	result := &AnalysisResult{SchemaSource: schemas.Source()}
	for _, engine := range core.Engines {
		rows, err := accs[engine.Category()].Drain()
		if err != nil {
			return nil, err
		}
		result.Sections = append(result.Sections, core.Section{
			Category: engine.Category(),
			Schema:   frozen.For(engine),
			Rows:     rows,
		})
	}

	stats.Elapsed = time.Since(start)
	result.Stats = stats
	logger.Info("classification finished",
		"files", stats.Files, "files_failed", stats.FilesFailed,
		"os_rows", len(result.Sections[0].Rows), "ot_rows", len(result.Sections[1].Rows),
		"elapsed", stats.Elapsed)
	return result, nil
}

// RunExtraction collects, per pair, the rows whose status columns equal the
// pair's values.
func (c *Coordinator) RunExtraction(ctx context.Context, pairs []FilterPair) (*ExtractionResult, error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "component", "extraction")

	files, err := DiscoverFiles(c.opts.InputDir, c.opts.Extension)
	if err != nil {
		return nil, err
	}
	logger.Info("starting filtered extraction", "files", len(files), "pairs", len(pairs))

	schema := core.NewSchemaFreezer(core.VerbatimSchema)
	extractor := NewExtractor(pairs, schema, c.opts.Limits)

	accs := make(map[core.Category]*core.Accumulator, len(pairs))
	for _, p := range pairs {
		accs[p.Category()] = core.NewAccumulator(p.Category())
	}
	stats := c.runFiles(ctx, files, extractor.Extract, accs)

	frozen, _ := schema.Frozen()
	result := &ExtractionResult{SchemaSource: schema.Source()}
	for _, p := range pairs {
		acc := accs[p.Category()]
		if acc == nil {
			continue
		}
		rows, err := acc.Drain()
		if err != nil {
			// Duplicate pair; its rows went to the first occurrence.
			continue
		}
		result.Groups = append(result.Groups, ExtractionGroup{
			Pair:    p,
			Section: core.Section{Category: p.Category(), Schema: frozen, Rows: rows},
		})
	}

	stats.Elapsed = time.Since(start)
	result.Stats = stats
	logger.Info("filtered extraction finished",
		"files", stats.Files, "files_failed", stats.FilesFailed, "elapsed", stats.Elapsed)
	return result, nil
}

type fileFunc func(ctx context.Context, path string) (*FileResult, error)

// runFiles processes files on a bounded pool and merges each file's rows into
// accs with one append per category. File failures never stop siblings.
func (c *Coordinator) runFiles(ctx context.Context, files []string, process fileFunc, accs map[core.Category]*core.Accumulator) Stats {
	var filesFailed, rowsRead, rowsFailed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(c.opts.Workers)

	for _, path := range files {
		g.Go(func() error {
			logger := logging.WithFields(ctx, "file", filepath.Base(path))
			defer func() {
				if r := recover(); r != nil {
					logger.Error("file processing panicked, skipping file", "panic", fmt.Sprint(r))
					filesFailed.Add(1)
				}
			}()

			res, err := process(ctx, path)
			if err != nil {
				logger.Error("skipping file", "error", err)
				filesFailed.Add(1)
				return nil
			}

			rowsRead.Add(int64(res.RowsRead))
			rowsFailed.Add(int64(res.RowsFailed))
			for category, rows := range res.Rows {
				acc, ok := accs[category]
				if !ok {
					logger.Warn("rows for unknown category dropped", "category", category, "rows", len(rows))
					continue
				}
				if err := acc.Append(rows...); err != nil {
					logger.Error("merging file rows failed", "category", category, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return Stats{
		Files:       len(files),
		FilesFailed: int(filesFailed.Load()),
		RowsRead:    int(rowsRead.Load()),
		RowsFailed:  int(rowsFailed.Load()),
	}
}
