package core

import "strings"

// EngineTag identifies which matching engine a row is evaluated against.
type EngineTag string

const (
	EngineOS EngineTag = "OS" // Open Search
	EngineOT EngineTag = "OT" // Oracle Text
)

// Engines lists the engines in report order.
var Engines = []EngineTag{EngineOS, EngineOT}

// Prefix returns the column-name prefix used by the engine ("OS ").
func (e EngineTag) Prefix() string {
	return string(e) + " "
}

// Other returns the opposite engine.
func (e EngineTag) Other() EngineTag {
	if e == EngineOS {
		return EngineOT
	}
	return EngineOS
}

// Category returns the report category the engine's failures land in.
func (e EngineTag) Category() Category {
	if e == EngineOS {
		return CategoryOS
	}
	return CategoryOT
}

// Verdict is the outcome of a single backing-store check.
//
// The zero value is VerdictNotApplicable: a check that could not be
// performed, never a negative answer.
type Verdict int

const (
	VerdictNotApplicable Verdict = iota
	VerdictYes
	VerdictNo
)

// String returns the text written into report cells.
func (v Verdict) String() string {
	switch v {
	case VerdictYes:
		return "YES"
	case VerdictNo:
		return "NO"
	default:
		return "NA"
	}
}

// Category names a partition of output rows. Category names double as sheet
// names in the generated workbooks.
type Category string

const (
	CategoryOS Category = "Open Search Issues"
	CategoryOT Category = "Oracle Text Issues"
)

// FailStatus is the test-status sentinel that marks a row as failed.
const FailStatus = "FAIL"

// IsFail reports whether a test-status cell marks a failure.
func IsFail(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), FailStatus)
}

// Column names read from the input header. Engine-specific columns are
// written here without their engine prefix.
const (
	ColTestStatus       = "Test Status"
	ColTransactionToken = "Transaction Token"
	ColSourceInput      = "Source Input"
	ColTargetColumn     = "Target Column"
	ColWatchlist        = "Watchlist"
	ColUID              = "N_UID"

	// MessagePrefix starts the per-message-type columns ("Message SWIFT").
	MessagePrefix = "Message "

	// Webservice match columns look like "OS # NameAndAddress matches".
	WebserviceInfix = "# "
	MatchesSuffix   = " matches"
)

// Derived headers appended to the report schemas.
const (
	HeaderInputToStore      = "Input to MS"
	HeaderCandidatesPresent = "Candidates present"
	HeaderComment           = "Comment"
)

// Root-cause comments.
const (
	CommentTFIssue            = "TF Issue"
	CommentMatchingIssue      = "Matching Issue"
	CommentScoringEngineIssue = "Scoring Engine Issue"
	CommentOracleTextIssue    = "Oracle Text Issue"
)

// ClassifiedRow is one output record. Cells is already projected onto the
// schema of its category; the remaining fields keep the derived values for
// summaries and metrics.
type ClassifiedRow struct {
	Category Category
	Source   string // input file the row came from
	Line     int    // 1-based row number within Source

	RequestKey        RequestKey
	InputToStore      Verdict
	CandidatesPresent Verdict
	Comment           string

	Cells []string
}
