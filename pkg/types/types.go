// Package types defines public request/response payloads for the sqlgate API.
package types

// ValidationRequest is the envelope accepted by the CLI and by POST / on the
// service socket. ServiceEndpoint is the filesystem path of the skillset
// session-store socket the permission document is fetched from.
type ValidationRequest struct {
	SessionID       string    `json:"sessionID"`
	InvocationID    string    `json:"invocationID"`
	ServiceEndpoint string    `json:"serviceEndpoint,omitempty"`
	InputArgs       InputArgs `json:"inputArgs"`
}

// InputArgs carries the skill input arguments for one validation.
type InputArgs struct {
	SQL string `json:"sql"`
}

// StatementDecision reports the outcome for a single SQL statement.
//
// Type is null when the batch failed to parse. Reason is null when the
// statement is allowed. Tables and CTEs are sorted and never null.
type StatementDecision struct {
	Type    *string  `json:"type"`
	Tables  []string `json:"tables"`
	CTEs    []string `json:"ctes"`
	Allowed bool     `json:"allowed"`
	Denied  bool     `json:"denied"`
	Reason  *string  `json:"reason"`
}

// EvaluationResult is the aggregate verdict for a SQL batch. Allowed is the
// AND over all statement decisions. Reason carries the last violation seen
// across the batch, or a fixed success message. Details preserves input
// order and is omitted only when no statements were evaluated at all.
type EvaluationResult struct {
	Allowed bool                `json:"allowed"`
	Details []StatementDecision `json:"details,omitzero"`
	Reason  string              `json:"reason"`
}

// ErrorResponse is the body returned for request-level failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
