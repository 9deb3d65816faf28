// Package config provides centralized configuration management for the tool.
// Settings come from a case-sensitive .properties file, can be overridden by
// environment variables, and fall back to defaults. Everything is validated
// up front so a misconfigured run fails before touching any input.
package config

import "time"

// Config holds all run configuration.
type Config struct {
	Job      JobConfig
	Database DatabaseConfig
	Archive  ArchiveConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig

	// Source is the properties file the configuration was read from.
	Source string
}

// JobConfig selects inputs, outputs and which paths of the job run.
type JobConfig struct {
	// InputDirectory holds the test-result workbooks (required)
	InputDirectory string `prop:"inputDirectory" env:"TF_INPUT_DIRECTORY" required:"true"`

	// OutputDirectory receives the reports (default: InputDirectory)
	OutputDirectory string `prop:"outputDirectory" env:"TF_OUTPUT_DIRECTORY"`

	// ThreadPoolSize bounds both files and rows processed at once (default: 4)
	ThreadPoolSize int `prop:"threadPoolSize" env:"TF_THREAD_POOL_SIZE" default:"4"`

	// AnalysisEnabled runs the classification path (default: Y)
	AnalysisEnabled bool `prop:"analysisEnabled" env:"TF_ANALYSIS_ENABLED" default:"Y"`

	// ExtractionEnabled runs the filtered-extraction path (default: N)
	ExtractionEnabled bool `prop:"extractionEnabled" env:"TF_EXTRACTION_ENABLED" default:"N"`

	// OSStatusFilter and OTStatusFilter form the extraction pair used when
	// Filters is empty.
	OSStatusFilter string `prop:"osStatusFilter" env:"TF_OS_STATUS_FILTER" default:"PASS"`
	OTStatusFilter string `prop:"otStatusFilter" env:"TF_OT_STATUS_FILTER" default:"FAIL"`

	// Filters lists extraction pairs: "OS:PASS,OT:FAIL;OS:FAIL,OT:PASS"
	Filters string `prop:"filters" env:"TF_FILTERS"`

	// InputExtension selects the input format: .xlsx or .csv (default: .xlsx)
	InputExtension string `prop:"inputExtension" env:"TF_INPUT_EXTENSION" default:".xlsx"`
}

// DatabaseConfig holds backing-store connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required when analysis runs.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `prop:"db.url" env:"DATABASE_URL" envAlt:"DB_URL"`

	// Driver names the database driver; only pgx is supported (default: pgx)
	Driver string `prop:"db.driver" env:"DB_DRIVER" default:"pgx"`

	// WalletName is a directory under <parent of working dir>/bin holding
	// root.crt, client.crt and client.key
	WalletName string `prop:"db.walletName" env:"DB_WALLET_NAME"`

	// MaxPoolSize is the maximum number of pooled connections (default: 20)
	MaxPoolSize int `prop:"db.maxPoolSize" env:"DB_MAX_CONNS" default:"20"`

	// MinIdle is the number of connections kept open (default: 10)
	MinIdle int `prop:"db.minIdle" env:"DB_MIN_CONNS" default:"10"`

	// ConnectionTimeout bounds one connection acquisition attempt (default: 10s)
	ConnectionTimeout time.Duration `prop:"db.connectionTimeout" env:"DB_CONNECTION_TIMEOUT" default:"10s"`

	// IdleTimeout closes connections idle this long (default: 15m)
	IdleTimeout time.Duration `prop:"db.idleTimeout" env:"DB_IDLE_TIMEOUT" default:"15m"`

	// MaxLifetime recycles connections after this long (default: 30m)
	MaxLifetime time.Duration `prop:"db.maxLifetime" env:"DB_MAX_LIFETIME" default:"30m"`

	// QueryTimeout bounds one lookup query (default: 60s)
	QueryTimeout time.Duration `prop:"db.queryTimeout" env:"DB_QUERY_TIMEOUT" default:"60s"`

	// AcquireRetries is the number of acquisition attempts per lookup (default: 3)
	AcquireRetries int `prop:"db.acquireRetries" env:"DB_ACQUIRE_RETRIES" default:"3"`

	// AcquireRetryDelay is the pause between attempts (default: 5s)
	AcquireRetryDelay time.Duration `prop:"db.acquireRetryDelay" env:"DB_ACQUIRE_RETRY_DELAY" default:"5s"`
}

// ArchiveConfig limits what a zipped input may inflate to.
type ArchiveConfig struct {
	// MaxEntrySize accepts humanized sizes such as "100MB" (default: 100MB)
	MaxEntrySize uint64 `prop:"zip.maxEntrySize" env:"TF_ZIP_MAX_ENTRY_SIZE" default:"100MB"`

	// MinInflateRatio is the lowest compressed/uncompressed ratio allowed (default: 0.01)
	MinInflateRatio float64 `prop:"zip.minInflateRatio" env:"TF_ZIP_MIN_INFLATE_RATIO" default:"0.01"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `prop:"log.level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `prop:"log.format" env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is where run metrics are written; empty disables the export
	Textfile string `prop:"metrics.textfile" env:"TF_METRICS_TEXTFILE"`
}

// OutputDir returns the output directory, defaulting to the input directory.
func (c *Config) OutputDir() string {
	if c.Job.OutputDirectory != "" {
		return c.Job.OutputDirectory
	}
	return c.Job.InputDirectory
}
