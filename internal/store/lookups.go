package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/TFIssues/internal/core"
)

var _ core.Gateway = (*Store)(nil)

// LookupRuleMatch answers YES when the latest stored payload for key mentions
// ruleSearchText and literally contains sourceInput.
func (s *Store) LookupRuleMatch(ctx context.Context, key core.RequestKey, ruleSearchText, sourceInput string) core.Verdict {
	logger := s.logger.With("lookup", "rule_match", "request_key", string(key))
	logger.Info("executing query", "rule", ruleSearchText, "source_input", sourceInput)

	var payload string
	err := s.queryRow(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRow(ctx, ruleMatchQuery, string(key), likePattern(ruleSearchText)).Scan(&payload)
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return core.VerdictNo
	case err != nil:
		s.logFailure(logger, err)
		return core.VerdictNotApplicable
	}

	if strings.Contains(payload, sourceInput) {
		return core.VerdictYes
	}
	return core.VerdictNo
}

// LookupCandidatePresence answers YES when the latest run for key holds a
// candidate for uid in the watchlist's table with targetColumn populated.
// Unknown watchlists and target columns outside the allow-list are not
// applicable and never reach the database.
func (s *Store) LookupCandidatePresence(ctx context.Context, key core.RequestKey, watchlist, targetColumn, uid string) core.Verdict {
	logger := s.logger.With("lookup", "candidate_presence", "request_key", string(key))

	table, ok := WatchlistTable(watchlist)
	if !ok {
		logger.Warn("unmapped watchlist", "watchlist", watchlist)
		return core.VerdictNotApplicable
	}
	query, ok := candidateQuery(targetColumn)
	if !ok {
		logger.Warn("target column not allowed", "target_column", targetColumn)
		return core.VerdictNotApplicable
	}

	logger.Info("executing query", "watchlist_table", table, "target_column", targetColumn, "uid", uid)

	var count int64
	err := s.queryRow(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRow(ctx, query, string(key), table, uid).Scan(&count)
	})
	if err != nil {
		s.logFailure(logger, err)
		return core.VerdictNotApplicable
	}
	if count > 0 {
		return core.VerdictYes
	}
	return core.VerdictNo
}

// queryRow acquires a connection and runs fn under the query timeout.
func (s *Store) queryRow(ctx context.Context, fn func(context.Context, Querier) error) error {
	q, release, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}
	return fn(ctx, q)
}

func (s *Store) logFailure(logger *slog.Logger, err error) {
	f := Classify(err)
	if f.Recoverable {
		logger.Warn("lookup degraded to NA", "code", f.Code, "reason", f.Message, "error", err)
		return
	}
	logger.Error("lookup failed", "code", f.Code, "reason", f.Message, "error", fmt.Sprintf("%+v", err))
}
