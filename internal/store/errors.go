package store

import (
	"context"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// Failure describes why a lookup could not produce a verdict.
//
// Codes are stable so operators can grep for them:
//
//	DB004 - connection refused
//	DB005 - connection reset or broken
//	DB006 - timeout (query, acquisition or network)
//	DB007 - deadlock or serialization conflict
//	DB008 - server shutting down or query cancelled
//	DB009 - connection exception (SQLSTATE class 08)
//	ERR000 - anything else
type Failure struct {
	Code        string
	Message     string
	Recoverable bool
}

type failurePattern struct {
	pattern string
	failure Failure
}

// failurePatterns is the text fallback for errors that arrive without a typed
// cause. Matched case-insensitively with strings.Contains, first match wins.
var failurePatterns = []failurePattern{
	{"connection refused", Failure{"DB004", "Unable to connect to database", true}},
	{"connection reset", Failure{"DB005", "Database connection was interrupted", true}},
	{"broken pipe", Failure{"DB005", "Database connection was interrupted", true}},
	{"unexpected eof", Failure{"DB005", "Database connection was interrupted", true}},
	{"context deadline exceeded", Failure{"DB006", "Operation timed out", true}},
	{"timeout", Failure{"DB006", "Operation timed out", true}},
	{"deadlock", Failure{"DB007", "Database was busy with conflicting operations", true}},
}

var defaultFailure = Failure{"ERR000", "Unexpected database error", false}

// recoverableStates are SQLSTATE codes outside class 08 that are worth
// treating as transient.
var recoverableStates = map[string]Failure{
	"57014": {"DB008", "Query cancelled", true},
	"57P01": {"DB008", "Server shutting down", true},
	"57P02": {"DB008", "Server shutting down", true},
	"57P03": {"DB008", "Server not accepting connections", true},
	"40001": {"DB007", "Serialization conflict", true},
	"40P01": {"DB007", "Database was busy with conflicting operations", true},
}

// Classify maps a lookup error to a Failure. Typed causes (context deadline,
// pgconn errors, net timeouts) are checked before the text patterns.
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return Failure{"DB006", "Operation timed out", true}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") {
			return Failure{"DB009", "Connection exception", true}
		}
		if f, ok := recoverableStates[pgErr.Code]; ok {
			return f
		}
		return defaultFailure
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return Failure{"DB004", "Unable to connect to database", true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Failure{"DB006", "Operation timed out", true}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range failurePatterns {
		if strings.Contains(msg, p.pattern) {
			return p.failure
		}
	}
	return defaultFailure
}

// IsRecoverable reports whether err is a timeout or transient connectivity
// failure.
func IsRecoverable(err error) bool {
	return Classify(err).Recoverable
}
