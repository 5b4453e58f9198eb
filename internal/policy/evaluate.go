package policy

import (
	"fmt"
	"strings"

	"git.cscs.ch/openchami/chamicore-sqlgate/internal/sqlinfo"
	"git.cscs.ch/openchami/chamicore-sqlgate/pkg/types"
)

// ReasonAllAllowed is the aggregate reason reported when no statement in the
// batch violated the policy.
const ReasonAllAllowed = "All statements allowed"

// Evaluate applies the policy to a batch of statement descriptors and
// returns the per-statement decisions plus the aggregate verdict. Pure: no
// I/O, inputs are never mutated, identical inputs produce identical results.
//
// Each statement is checked deny-first, and only against its real tables,
// the referenced tables that are not CTE aliases of the same statement.
// Neither pass stops at the first hit: every matching rule and table is
// visited, and each hit overwrites the statement's reason and the running
// batch reason. The reported reason is therefore the last violation in
// document order, which keeps repeated evaluations byte-identical.
func (p *Policy) Evaluate(stmts []sqlinfo.Descriptor) types.EvaluationResult {
	details := make([]types.StatementDecision, 0, len(stmts))
	denied := false
	reason := ""

	for _, d := range stmts {
		if d.Statement == nil {
			msg := d.ParseErr
			if msg == "" {
				msg = "SQL parse error"
			}
			details = append(details, types.StatementDecision{
				Tables:  []string{},
				CTEs:    []string{},
				Allowed: false,
				Denied:  true,
				Reason:  &msg,
			})
			denied = true
			reason = msg
			continue
		}

		st := d.Statement
		decision := types.StatementDecision{
			Type:    strPtr(st.Verb),
			Tables:  orEmpty(st.Tables),
			CTEs:    orEmpty(st.CTEs),
			Allowed: true,
		}
		verb := strings.ToLower(st.Verb)
		real := realTables(st.Tables, st.CTEs)

		for _, rule := range p.deny {
			if !rule.matches(verb) {
				continue
			}
			for _, t := range real {
				if _, hit := rule.tables[normalizeName(t)]; !hit {
					continue
				}
				decision.Allowed = false
				decision.Denied = true
				decision.Reason = strPtr(fmt.Sprintf("Denied by deny.%s for table %s", rule.action, t))
				denied = true
				reason = *decision.Reason
			}
		}

		if !decision.Denied {
			for _, t := range real {
				if p.allowListed(verb, normalizeName(t)) {
					continue
				}
				decision.Allowed = false
				decision.Reason = strPtr(fmt.Sprintf("Table %s not allowed for %s", t, st.Verb))
				denied = true
				reason = *decision.Reason
			}
		}

		details = append(details, decision)
	}

	if !denied {
		reason = ReasonAllAllowed
	}
	return types.EvaluationResult{
		Allowed: !denied,
		Details: details,
		Reason:  reason,
	}
}

// allowListed reports whether the normalized table name appears in an allow
// rule for the verb or for the wildcard action.
func (p *Policy) allowListed(verb, normalized string) bool {
	for _, rule := range p.allow {
		if !rule.matches(verb) {
			continue
		}
		if _, ok := rule.tables[normalized]; ok {
			return true
		}
	}
	return false
}

// realTables filters out table references that name a CTE alias of the same
// statement, comparing the recorded strings exactly. A schema-qualified
// reference never collides with an alias because aliases are recorded bare.
func realTables(tables, ctes []string) []string {
	if len(ctes) == 0 {
		return tables
	}
	aliases := make(map[string]struct{}, len(ctes))
	for _, c := range ctes {
		aliases[c] = struct{}{}
	}
	real := make([]string, 0, len(tables))
	for _, t := range tables {
		if _, ok := aliases[t]; !ok {
			real = append(real, t)
		}
	}
	return real
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func strPtr(s string) *string {
	return &s
}
