package pipeline

import (
	"log/slog"
	"strings"

	"github.com/JonMunkholm/TFIssues/internal/core"
)

// FilterPair selects rows for extraction by the literal values of both
// engines' test-status columns.
type FilterPair struct {
	OS string
	OT string
}

// Name labels the pair in file and sheet names, e.g. "OS PASS OT FAIL".
func (p FilterPair) Name() string {
	return "OS " + p.OS + " OT " + p.OT
}

// Category is the output category the pair's rows are collected under.
func (p FilterPair) Category() core.Category {
	return core.Category(p.Name())
}

// Matches compares the row's status cells with the pair. The comparison is
// exact: no case folding, unlike the FAIL check used for classification.
func (p FilterPair) Matches(row core.InputRow) bool {
	return row.Value(core.EngineOS.Prefix()+core.ColTestStatus) == p.OS &&
		row.Value(core.EngineOT.Prefix()+core.ColTestStatus) == p.OT
}

// ParseFilterPairs reads groups of the form "OS:<value>,OT:<value>" separated
// by ';'. The first part of a group is the OS value and the second the OT
// value; each value is whatever follows the first ':' of its part. Groups
// that do not split into exactly two parts are skipped. An empty value yields
// the single fallback pair, as does a value with no usable group.
func ParseFilterPairs(filters string, fallback FilterPair, logger *slog.Logger) []FilterPair {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(filters) == "" {
		return []FilterPair{fallback}
	}

	var pairs []FilterPair
	seen := make(map[FilterPair]bool)
	for _, group := range strings.Split(filters, ";") {
		if strings.TrimSpace(group) == "" {
			continue
		}
		parts := strings.Split(group, ",")
		if len(parts) != 2 {
			logger.Warn("skipping malformed filter group", "group", group)
			continue
		}
		pair := FilterPair{OS: filterValue(parts[0]), OT: filterValue(parts[1])}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		pairs = append(pairs, pair)
	}

	if len(pairs) == 0 {
		logger.Warn("no usable filter groups, using default filter", "filters", filters, "default", fallback.Name())
		return []FilterPair{fallback}
	}
	return pairs
}

func filterValue(part string) string {
	if i := strings.Index(part, ":"); i >= 0 {
		part = part[i+1:]
	}
	return strings.TrimSpace(part)
}
