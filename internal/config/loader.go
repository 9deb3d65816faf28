package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/magiconair/properties"
)

// ConfigFileName is the properties file looked up in BinDir.
const ConfigFileName = "config.properties"

// BinDir returns the bin directory next to the working directory, where the
// properties file and database wallets live.
func BinDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "resolve working directory")
	}
	return filepath.Join(filepath.Dir(wd), "bin"), nil
}

// DefaultPath returns BinDir/config.properties.
func DefaultPath() (string, error) {
	bin, err := BinDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(bin, ConfigFileName), nil
}

// Load reads the properties file at path (DefaultPath when empty), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, errors.Wrapf(err, "read configuration %s", path)
	}

	cfg, err := FromProperties(props)
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}

// FromProperties builds a validated configuration from already parsed
// properties. Keys are case-sensitive.
func FromProperties(props *properties.Properties) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), props); err != nil {
		return nil, errors.Wrap(err, "config load")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation")
	}

	return cfg, nil
}

// loadStruct recursively populates tagged fields. A non-empty environment
// variable beats the properties key, which beats the default.
func loadStruct(v reflect.Value, props *properties.Properties) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, props); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("prop")
		if key == "" {
			continue
		}
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")

		value, _ := props.Get(key)
		value = strings.TrimSpace(value)
		if env := lookupEnv(envName, envAlt); env != "" {
			value = env
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return errors.Newf("required setting %s is not set", key)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return errors.Wrapf(err, "invalid value for %s=%q", key, value)
		}
	}

	return nil
}

func lookupEnv(names ...string) string {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return errors.Wrap(err, "invalid duration")
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid integer")
			}
			field.SetInt(i)
		}

	case reflect.Uint64:
		n, err := humanize.ParseBytes(value)
		if err != nil {
			return errors.Wrap(err, "invalid size")
		}
		field.SetUint(n)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(err, "invalid number")
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := parseToggle(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	default:
		return errors.Newf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// parseToggle accepts Y/N in any case, plus anything strconv.ParseBool does.
func parseToggle(value string) (bool, error) {
	switch strings.ToUpper(value) {
	case "Y", "YES":
		return true, nil
	case "N", "NO":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Newf("invalid toggle %q, want Y or N", value)
	}
	return b, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Job.InputDirectory == "" {
		errs = append(errs, "inputDirectory is required")
	}
	if c.Job.ThreadPoolSize <= 0 {
		errs = append(errs, fmt.Sprintf("threadPoolSize (%d) must be positive", c.Job.ThreadPoolSize))
	}
	if !c.Job.AnalysisEnabled && !c.Job.ExtractionEnabled {
		errs = append(errs, "at least one of analysisEnabled and extractionEnabled must be Y")
	}
	switch strings.ToLower(c.Job.InputExtension) {
	case ".xlsx", ".csv":
	default:
		errs = append(errs, fmt.Sprintf("inputExtension (%q) must be one of: .xlsx, .csv", c.Job.InputExtension))
	}

	if c.Job.AnalysisEnabled {
		if c.Database.URL == "" {
			errs = append(errs, "db.url is required when analysisEnabled is Y")
		}
		if c.Database.Driver != "pgx" && c.Database.Driver != "postgres" {
			errs = append(errs, fmt.Sprintf("db.driver (%q) is not supported; use pgx", c.Database.Driver))
		}
	}
	if c.Database.MaxPoolSize <= 0 {
		errs = append(errs, "db.maxPoolSize must be positive")
	}
	if c.Database.MinIdle < 0 {
		errs = append(errs, "db.minIdle must be non-negative")
	}
	if c.Database.MaxPoolSize < c.Database.MinIdle {
		errs = append(errs, fmt.Sprintf("db.maxPoolSize (%d) must be >= db.minIdle (%d)",
			c.Database.MaxPoolSize, c.Database.MinIdle))
	}
	if c.Database.ConnectionTimeout <= 0 {
		errs = append(errs, "db.connectionTimeout must be positive")
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, "db.queryTimeout must be positive")
	}
	if c.Database.AcquireRetries <= 0 {
		errs = append(errs, "db.acquireRetries must be positive")
	}
	if c.Database.AcquireRetryDelay < 0 {
		errs = append(errs, "db.acquireRetryDelay must be non-negative")
	}

	if c.Archive.MinInflateRatio < 0 || c.Archive.MinInflateRatio >= 1 {
		errs = append(errs, fmt.Sprintf("zip.minInflateRatio (%g) must be in [0, 1)", c.Archive.MinInflateRatio))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("log.level (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("log.format (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Newf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// WalletDir returns the wallet directory, or "" when no wallet is configured.
func (c *Config) WalletDir() (string, error) {
	if c.Database.WalletName == "" {
		return "", nil
	}
	bin, err := BinDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(bin, c.Database.WalletName), nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Job: {Input: %q, Output: %q, Threads: %d, Analysis: %v, Extraction: %v, Filters: %q, Extension: %q}, ",
		c.Job.InputDirectory, c.OutputDir(), c.Job.ThreadPoolSize,
		c.Job.AnalysisEnabled, c.Job.ExtractionEnabled, c.Job.Filters, c.Job.InputExtension))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], Wallet: %q, MaxPoolSize: %d, MinIdle: %d, QueryTimeout: %s}, ",
		c.Database.WalletName, c.Database.MaxPoolSize, c.Database.MinIdle, c.Database.QueryTimeout))
	b.WriteString(fmt.Sprintf("Archive: {MaxEntrySize: %s, MinInflateRatio: %g}, ",
		humanize.IBytes(c.Archive.MaxEntrySize), c.Archive.MinInflateRatio))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
