// Package policy implements the allow/deny permission model applied to SQL
// statements: the permission document shape, its order-preserving decode, and
// the deny-then-allow evaluator.
package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// actionAll is the wildcard action tag matching every statement verb.
const actionAll = "all"

// ErrMalformed marks a permission document whose shape is not
// {allow: {action: [table, ...]}, deny: {action: [table, ...]}}.
var ErrMalformed = errors.New("malformed permission document")

// Rule is one action's table list as declared in a permission document.
type Rule struct {
	Action string
	Tables []string
}

// RuleSet holds the rules of one side of a permission document in document
// order. Order matters: when several deny rules match the same table, the
// rule that appears last in the document supplies the reported reason.
type RuleSet []Rule

// Document is the decoded sql-permissions context value. Action keys are
// lower-cased; a key that repeats updates the earlier rule in place and
// keeps its original position.
type Document struct {
	Allow RuleSet `json:"allow"`
	Deny  RuleSet `json:"deny"`
}

// Parse decodes a raw JSON permission document and compiles it for
// evaluation. Any shape other than an object of allow/deny rule maps is
// reported as ErrMalformed.
func Parse(data []byte) (*Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return nil, fmt.Errorf("%w: document is empty", ErrMalformed)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc.Compile(), nil
}

// UnmarshalJSON decodes an action-to-tables object while preserving the
// order the actions appear in. encoding/json's map decoding would lose that
// order and with it the determinism of last-match-wins reasons.
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	*rs = nil
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: rules must be an object of action keys", ErrMalformed)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		action, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: action key is not a string", ErrMalformed)
		}
		var tables *[]string
		if err := dec.Decode(&tables); err != nil {
			return fmt.Errorf("%w: tables for action %q must be an array of strings", ErrMalformed, action)
		}
		if tables == nil {
			return fmt.Errorf("%w: tables for action %q must be an array of strings", ErrMalformed, action)
		}
		rs.put(action, *tables)
	}
	return nil
}

// put records a rule, updating an existing rule for the same action in place
// so a duplicate key keeps its first position, like a JSON object decode into
// an ordered map would.
func (rs *RuleSet) put(action string, tables []string) {
	action = strings.ToLower(action)
	for i := range *rs {
		if (*rs)[i].Action == action {
			(*rs)[i].Tables = tables
			return
		}
	}
	*rs = append(*rs, Rule{Action: action, Tables: tables})
}

// Policy is a permission document compiled for evaluation: rules in document
// order with their table sets normalized once.
type Policy struct {
	allow []compiledRule
	deny  []compiledRule
}

type compiledRule struct {
	action string
	tables map[string]struct{}
}

// Compile normalizes the document's table names into lookup sets. Evaluation
// never re-normalizes policy-side names after this.
func (d Document) Compile() *Policy {
	return &Policy{
		allow: compileRules(d.Allow),
		deny:  compileRules(d.Deny),
	}
}

func compileRules(rs RuleSet) []compiledRule {
	rules := make([]compiledRule, 0, len(rs))
	for _, r := range rs {
		set := make(map[string]struct{}, len(r.Tables))
		for _, t := range r.Tables {
			set[normalizeName(t)] = struct{}{}
		}
		rules = append(rules, compiledRule{action: strings.ToLower(r.Action), tables: set})
	}
	return rules
}

// matches reports whether a rule applies to statements of the given verb.
// The verb must already be lower-cased.
func (r compiledRule) matches(verb string) bool {
	return r.action == actionAll || r.action == verb
}
