package core

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// ErrSchemaNotFrozen is returned when a row is classified before its report
// schema exists.
var ErrSchemaNotFrozen = errors.New("report schema not frozen")

// Gateway answers the two backing-store checks. Implementations never fail:
// a check that cannot be performed answers VerdictNotApplicable.
type Gateway interface {
	// LookupRuleMatch reports whether the stored screening payload for key
	// mentions ruleSearchText and contains sourceInput.
	LookupRuleMatch(ctx context.Context, key RequestKey, ruleSearchText, sourceInput string) Verdict

	// LookupCandidatePresence reports whether the latest run for key produced
	// a candidate for the watchlist record uid with targetColumn populated.
	LookupCandidatePresence(ctx context.Context, key RequestKey, watchlist, targetColumn, uid string) Verdict
}

// Classifier derives root causes for failed rows.
type Classifier struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewClassifier creates a classifier backed by gateway. A nil logger uses
// slog.Default.
func NewClassifier(gateway Gateway, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gateway: gateway, logger: logger}
}

// Classify evaluates a row for one engine. It returns ok=false when the
// engine's test status is not FAIL, in which case the row produces no output
// for that engine.
func (c *Classifier) Classify(ctx context.Context, in InputRow, engine EngineTag, schema ReportSchema) (ClassifiedRow, bool, error) {
	if !IsFail(in.Value(engine.Prefix() + ColTestStatus)) {
		return ClassifiedRow{}, false, nil
	}
	if schema.IsZero() {
		return ClassifiedRow{}, false, ErrSchemaNotFrozen
	}

	key := RequestKeyFor(in, engine)
	out := ClassifiedRow{
		Category:   engine.Category(),
		Source:     in.Source,
		Line:       in.Line,
		RequestKey: key,
	}

	out.InputToStore = c.checkRuleMatch(ctx, in, engine, key)

	switch engine {
	case EngineOS:
		out.Comment = OSComment(out.InputToStore)
	case EngineOT:
		if out.InputToStore == VerdictYes {
			out.CandidatesPresent = c.gateway.LookupCandidatePresence(ctx, key,
				in.Value(ColWatchlist), in.Value(ColTargetColumn), in.Value(ColUID))
		}
		out.Comment = OTComment(out.CandidatesPresent)
	default:
		return ClassifiedRow{}, false, errors.Newf("unknown engine %q", engine)
	}

	out.Cells = schema.Project(in, out)
	return out, true, nil
}

// checkRuleMatch runs Checker-1. Rows without a populated webservice match
// column, or naming a webservice with no known rule, are not applicable and
// never reach the store.
func (c *Classifier) checkRuleMatch(ctx context.Context, in InputRow, engine EngineTag, key RequestKey) Verdict {
	webservice, ok := MatchedWebservice(in, engine)
	if !ok {
		return VerdictNotApplicable
	}
	searchText, ok := RuleSearchText(webservice)
	if !ok {
		c.logger.Warn("unknown webservice, skipping rule lookup",
			"engine", engine, "webservice", webservice, "row", in.Line, "file", in.Source)
		return VerdictNotApplicable
	}
	return c.gateway.LookupRuleMatch(ctx, key, searchText, in.Value(ColSourceInput))
}

// OSComment maps a Checker-1 verdict to the OS root cause. Only a definite NO
// points at the transaction filter; YES and NA both mean the matching
// service was reached or could not be ruled out.
func OSComment(inputToStore Verdict) string {
	if inputToStore == VerdictNo {
		return CommentTFIssue
	}
	return CommentMatchingIssue
}

// OTComment maps a Checker-2 verdict to the OT root cause.
func OTComment(candidatesPresent Verdict) string {
	switch candidatesPresent {
	case VerdictYes:
		return CommentScoringEngineIssue
	case VerdictNo:
		return CommentOracleTextIssue
	default:
		return CommentTFIssue
	}
}
