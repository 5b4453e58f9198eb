// Package audit provides structured audit logging for SQL validation
// decisions.
package audit

import (
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// literalPattern matches single-quoted SQL string literals, treating a
// doubled quote as part of the literal.
var literalPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

// ValidationCompletion captures one finalized validation outcome. Error is
// set when the request failed before reaching a verdict; Allowed is false on
// that path and Reason is empty.
type ValidationCompletion struct {
	RequestID     string
	SessionID     string
	InvocationID  string
	SQL           string
	Statements    int
	Verbs         []string
	Allowed       bool
	Reason        string
	Error         string
	FetchDuration time.Duration
	Duration      time.Duration
}

// Logger emits structured audit entries.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Complete writes a single completion entry for one validation. SQL text is
// redacted before it is logged; everything else in the event is safe as is,
// since reasons only ever name tables and rules.
func (l *Logger) Complete(event ValidationCompletion) {
	if l == nil {
		return
	}

	duration := event.Duration
	if duration < 0 {
		duration = 0
	}
	fetch := event.FetchDuration
	if fetch < 0 {
		fetch = 0
	}

	entry := l.logger.Info().
		Str("event", "sqlgate.validation.completed").
		Str("request_id", strings.TrimSpace(event.RequestID)).
		Str("session_id", strings.TrimSpace(event.SessionID)).
		Str("invocation_id", strings.TrimSpace(event.InvocationID)).
		Str("sql", RedactLiterals(event.SQL)).
		Int("statements", event.Statements).
		Strs("verbs", event.Verbs).
		Bool("allowed", event.Allowed).
		Int64("fetch_ms", fetch.Milliseconds()).
		Int64("total_ms", duration.Milliseconds())

	if reason := strings.TrimSpace(event.Reason); reason != "" {
		entry = entry.Str("reason", reason)
	}
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}

	entry.Msg("validation completed")
}

// RedactLiterals masks single-quoted string literals so logged SQL can never
// leak embedded tokens or credentials. Identifiers, table names, and
// statement structure are left readable.
func RedactLiterals(sql string) string {
	return literalPattern.ReplaceAllString(sql, "'[REDACTED]'")
}
