package store

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ruleMatchQuery returns the newest stored screening payload for a request
// whose text mentions the rule.
const ruleMatchQuery = `SELECT response_payload
FROM screening_responses
WHERE request_key = $1 AND response_payload LIKE $2
ORDER BY created_at DESC
LIMIT 1`

// candidateQueryTemplate counts candidates of the latest run for a request.
// The %s placeholder is only ever filled with a sanitized identifier from
// targetColumns.
const candidateQueryTemplate = `SELECT COUNT(*)
FROM candidate_matches c
WHERE c.run_id = (SELECT MAX(r.run_id) FROM screening_runs r WHERE r.request_key = $1)
  AND c.watchlist_table = $2
  AND c.n_uid = $3
  AND %s IS NOT NULL`

// watchlistTables maps the watchlist identifiers used in test inputs to the
// physical table holding that list.
var watchlistTables = map[string]string{
	"OFAC":    "fsi_wl_ofac",
	"HMT":     "fsi_wl_hmt",
	"EU":      "fsi_wl_eu",
	"UN":      "fsi_wl_un",
	"WC":      "fsi_wl_worldcheck",
	"DJ":      "fsi_wl_dowjones",
	"PRIVATE": "fsi_wl_private",
}

// targetColumns is the closed set of candidate_matches columns a row may
// name in its target-column cell.
var targetColumns = []string{
	"full_name",
	"first_name",
	"middle_name",
	"last_name",
	"alias_name",
	"address",
	"identifier_value",
	"city",
	"country",
	"port",
	"goods",
}

// candidateQueries holds one prepared query text per allowed target column.
var candidateQueries = buildCandidateQueries()

func buildCandidateQueries() map[string]string {
	queries := make(map[string]string, len(targetColumns))
	for _, col := range targetColumns {
		queries[col] = fmt.Sprintf(candidateQueryTemplate, pgx.Identifier{"c", col}.Sanitize())
	}
	return queries
}

// WatchlistTable resolves a watchlist identifier. Matching ignores case and
// surrounding space.
func WatchlistTable(watchlist string) (string, bool) {
	table, ok := watchlistTables[strings.ToUpper(strings.TrimSpace(watchlist))]
	return table, ok
}

// candidateQuery returns the query for an allowed target column.
func candidateQuery(targetColumn string) (string, bool) {
	q, ok := candidateQueries[strings.ToLower(strings.TrimSpace(targetColumn))]
	return q, ok
}

// likePattern builds a LIKE pattern matching text anywhere in the payload.
// LIKE metacharacters in text are escaped.
func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(text) + "%"
}
