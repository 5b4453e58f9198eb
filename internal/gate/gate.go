// Package gate wires statement extraction and policy evaluation into the
// validate operation exposed by the CLI and the socket service.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-sqlgate/internal/audit"
	"git.cscs.ch/openchami/chamicore-sqlgate/internal/httputil"
	"git.cscs.ch/openchami/chamicore-sqlgate/internal/policy"
	"git.cscs.ch/openchami/chamicore-sqlgate/internal/sqlinfo"
	"git.cscs.ch/openchami/chamicore-sqlgate/pkg/types"
)

// ReasonNoSQL is reported when a request carries no SQL at all. That is a
// normal decision, not an error: the caller gets a result, not a failure.
const ReasonNoSQL = "No SQL provided"

// PolicySource resolves the permission policy governing one validation.
// Implementations must not cache across calls; every validation sees the
// policy as it stands at that moment.
type PolicySource interface {
	Fetch(ctx context.Context, req types.ValidationRequest) (*policy.Policy, error)
}

// Gate executes validations end to end: resolve the policy, extract the
// statement descriptors, evaluate, and account for the outcome.
type Gate struct {
	source PolicySource
	logger zerolog.Logger
	audit  *audit.Logger
}

// Option adjusts gate construction.
type Option func(*Gate)

// WithLogger attaches a component logger to the gate.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger.With().Str("component", "gate").Logger()
	}
}

// WithAuditLogger makes the gate emit one audit event per validation.
func WithAuditLogger(a *audit.Logger) Option {
	return func(g *Gate) {
		g.audit = a
	}
}

// New returns a gate drawing policies from source.
func New(source PolicySource, opts ...Option) *Gate {
	g := &Gate{source: source, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate authorizes the request's SQL batch against the policy resolved
// for the request. Statement-level violations are data in the returned
// result; the error return is reserved for request-level failures, a policy
// that cannot be fetched or parsed.
func (g *Gate) Validate(ctx context.Context, req types.ValidationRequest) (types.EvaluationResult, error) {
	start := time.Now()

	sql := req.InputArgs.SQL
	if sql == "" {
		result := types.EvaluationResult{Allowed: false, Reason: ReasonNoSQL}
		g.complete(ctx, req, nil, result, nil, 0, time.Since(start))
		return result, nil
	}

	fetchStart := time.Now()
	pol, err := g.source.Fetch(ctx, req)
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		err = fmt.Errorf("resolve sql permissions: %w", err)
		g.complete(ctx, req, nil, types.EvaluationResult{}, err, fetchDuration, time.Since(start))
		return types.EvaluationResult{}, err
	}

	stmts := sqlinfo.Extract(sql)
	result := pol.Evaluate(stmts)
	g.complete(ctx, req, stmts, result, nil, fetchDuration, time.Since(start))
	return result, nil
}

// complete accounts for one finished validation, failed ones included, so
// every request leaves a timing record and an audit event.
func (g *Gate) complete(ctx context.Context, req types.ValidationRequest, stmts []sqlinfo.Descriptor, result types.EvaluationResult, err error, fetch, total time.Duration) {
	verbs := make([]string, 0, len(stmts))
	for _, d := range stmts {
		if d.Statement != nil {
			verbs = append(verbs, d.Statement.Verb)
		}
	}

	g.logger.Debug().
		Err(err).
		Int("statements", len(stmts)).
		Bool("allowed", result.Allowed).
		Int64("fetch_ms", fetch.Milliseconds()).
		Int64("total_ms", total.Milliseconds()).
		Msg("validation completed")

	completion := audit.ValidationCompletion{
		RequestID:     httputil.RequestIDFromContext(ctx),
		SessionID:     req.SessionID,
		InvocationID:  req.InvocationID,
		SQL:           req.InputArgs.SQL,
		Statements:    len(stmts),
		Verbs:         verbs,
		Allowed:       result.Allowed,
		Reason:        result.Reason,
		FetchDuration: fetch,
		Duration:      total,
	}
	if err != nil {
		completion.Error = err.Error()
	}
	g.audit.Complete(completion)
}
