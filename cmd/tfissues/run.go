package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/TFIssues/internal/config"
	"github.com/JonMunkholm/TFIssues/internal/core"
	"github.com/JonMunkholm/TFIssues/internal/logging"
	"github.com/JonMunkholm/TFIssues/internal/pipeline"
	"github.com/JonMunkholm/TFIssues/internal/report"
	"github.com/JonMunkholm/TFIssues/internal/store"
	"github.com/JonMunkholm/TFIssues/internal/tabular"
)

const banner = "=================================================="

func newRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run classification and/or filtered extraction",
		Long: `Run reads every input file in inputDirectory and, depending on the
configuration, writes the classification report and one workbook per
extraction filter pair to outputDirectory.

Configuration is read from --config, or from ../bin/config.properties
relative to the working directory. Environment variables (and a .env file
in the working directory) override properties.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env file if it exists (Overload overwrites existing env vars)
			envErr := godotenv.Overload()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			if envErr == nil {
				slog.Info("loaded .env file (overwriting existing env vars)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := &app{cfg: cfg, out: cmd.OutOrStdout(), openGateway: openStore, now: time.Now}
			return a.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.properties (default ../bin/config.properties)")
	return cmd
}

// gatewayOpener returns the store used for classification and a function
// releasing it.
type gatewayOpener func(ctx context.Context, cfg *config.Config) (core.Gateway, func(), error)

func openStore(ctx context.Context, cfg *config.Config) (core.Gateway, func(), error) {
	walletDir, err := cfg.WalletDir()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(ctx, store.Config{
		URL:               cfg.Database.URL,
		WalletDir:         walletDir,
		MaxConns:          int32(cfg.Database.MaxPoolSize),
		MinConns:          int32(cfg.Database.MinIdle),
		ConnectTimeout:    cfg.Database.ConnectionTimeout,
		MaxConnIdleTime:   cfg.Database.IdleTimeout,
		MaxConnLifetime:   cfg.Database.MaxLifetime,
		QueryTimeout:      cfg.Database.QueryTimeout,
		AcquireRetries:    cfg.Database.AcquireRetries,
		AcquireRetryDelay: cfg.Database.AcquireRetryDelay,
	}, logging.FromContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// app is one run of the tool.
type app struct {
	cfg         *config.Config
	out         io.Writer
	openGateway gatewayOpener
	now         func() time.Time
}

func (a *app) run(ctx context.Context) error {
	start := a.now()
	ctx = logging.WithJobID(ctx, uuid.NewString())
	logger := logging.FromContext(ctx)

	logger.Info(banner)
	logger.Info("TF issues run started", "config", a.cfg.Source)
	logger.Debug("configuration", "config", a.cfg.String())

	if err := a.prepareDirs(); err != nil {
		return err
	}

	writer := report.NewWriter(a.cfg.OutputDir(), start)
	var metrics *report.Metrics
	if a.cfg.Metrics.Textfile != "" {
		metrics = report.NewMetrics()
	}

	coord := pipeline.NewCoordinator(pipeline.Options{
		InputDir:  a.cfg.Job.InputDirectory,
		Extension: a.cfg.Job.InputExtension,
		Workers:   a.cfg.Job.ThreadPoolSize,
		Limits: tabular.ArchiveLimits{
			MaxEntrySize:    a.cfg.Archive.MaxEntrySize,
			MinInflateRatio: a.cfg.Archive.MinInflateRatio,
		},
	})

	if a.cfg.Job.AnalysisEnabled {
		if err := a.runAnalysis(ctx, coord, writer, metrics); err != nil {
			return err
		}
	}
	if a.cfg.Job.ExtractionEnabled {
		if err := a.runExtraction(ctx, coord, writer, metrics); err != nil {
			return err
		}
	}

	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		logger.Error("metrics export failed", "error", err)
	}

	logger.Info("TF issues run finished", "elapsed_seconds", fmt.Sprintf("%.1f", a.now().Sub(start).Seconds()))
	logger.Info(banner)
	return nil
}

// prepareDirs checks the input directory is readable and creates the output
// directory. Both failures stop the run before any output is produced.
func (a *app) prepareDirs() error {
	if _, err := os.ReadDir(a.cfg.Job.InputDirectory); err != nil {
		return errors.Wrapf(err, "input directory %s is not readable", a.cfg.Job.InputDirectory)
	}
	if err := os.MkdirAll(a.cfg.OutputDir(), 0o755); err != nil {
		return errors.Wrapf(err, "cannot create output directory %s", a.cfg.OutputDir())
	}
	return nil
}

func (a *app) runAnalysis(ctx context.Context, coord *pipeline.Coordinator, writer *report.Writer, metrics *report.Metrics) error {
	logger := logging.WithFields(ctx, "mode", "analysis")

	gateway, closeGateway, err := a.openGateway(ctx, a.cfg)
	if err != nil {
		return errors.Wrap(err, "open screening store")
	}
	defer closeGateway()

	res, err := coord.RunAnalysis(ctx, gateway)
	if err != nil {
		return err
	}

	path, err := writer.WriteAnalysis(res.Sections)
	switch {
	case errors.Is(err, report.ErrNothingToWrite):
		logger.Info("no failed rows found, report not written")
	case err != nil:
		logger.Error("writing report failed", "error", err)
		path = ""
	default:
		fmt.Fprintf(a.out, "Output written to: %s\n", path)
	}

	if err := report.RenderSummary(a.out, "Classification", report.SummaryRows(res.Sections, path)); err != nil {
		logger.Warn("summary not printed", "error", err)
	}
	metrics.ObserveSections(res.Sections)
	metrics.ObserveRun("analysis", res.Stats.Files, res.Stats.FilesFailed, res.Stats.RowsFailed, res.Stats.Elapsed.Seconds())
	return nil
}

func (a *app) runExtraction(ctx context.Context, coord *pipeline.Coordinator, writer *report.Writer, metrics *report.Metrics) error {
	logger := logging.WithFields(ctx, "mode", "extraction")

	pairs := pipeline.ParseFilterPairs(a.cfg.Job.Filters,
		pipeline.FilterPair{OS: a.cfg.Job.OSStatusFilter, OT: a.cfg.Job.OTStatusFilter}, logger)

	res, err := coord.RunExtraction(ctx, pairs)
	if err != nil {
		return err
	}

	var (
		summary  []report.SummaryRow
		sections []core.Section
	)
	for _, g := range res.Groups {
		path, err := writer.WriteExtraction(g.Pair.Name(), g.Section)
		switch {
		case errors.Is(err, report.ErrNothingToWrite):
			logger.Info("no rows matched filter, file not written", "filter", g.Pair.Name())
		case err != nil:
			logger.Error("writing filtered output failed", "filter", g.Pair.Name(), "error", err)
			path = ""
		default:
			fmt.Fprintf(a.out, "Filtered output written to: %s\n", path)
		}
		summary = append(summary, report.SummaryRows([]core.Section{g.Section}, path)...)
		sections = append(sections, g.Section)
	}

	if err := report.RenderSummary(a.out, "Filtered extraction", summary); err != nil {
		logger.Warn("summary not printed", "error", err)
	}
	metrics.ObserveSections(sections)
	metrics.ObserveRun("extraction", res.Stats.Files, res.Stats.FilesFailed, res.Stats.RowsFailed, res.Stats.Elapsed.Seconds())
	return nil
}
