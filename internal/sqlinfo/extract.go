// Package sqlinfo derives flat statement descriptors from raw SQL text using
// PostgreSQL's own parser. A descriptor carries what policy evaluation needs
// and nothing else: the statement verb, every referenced table, and the CTE
// aliases the statement defines.
package sqlinfo

import (
	"slices"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Statement summarizes one successfully parsed SQL statement.
type Statement struct {
	// Verb is the upper-cased verb of the outermost statement, derived from
	// the parse node type: SELECT, INSERT, UPDATE, DELETE, ALTERTABLE, ...
	Verb string
	// Tables lists every table referenced anywhere in the statement,
	// including inside CTE bodies, subqueries, USING and RETURNING clauses.
	// Names keep the form they were written in, schema-qualified when the
	// reference was qualified. Sorted and deduplicated.
	Tables []string
	// CTEs lists the alias of every common-table-expression defined anywhere
	// in the statement. Sorted and deduplicated. A name may appear in both
	// Tables and CTEs: references to an alias parse as table references.
	CTEs []string
}

// Descriptor is the extraction outcome for one statement. Exactly one of
// Statement and ParseErr is set.
type Descriptor struct {
	Statement *Statement
	ParseErr  string
}

// Extract parses a SQL batch and returns one descriptor per statement in
// source order. Parsing is all-or-nothing: a syntax error anywhere yields a
// single failed descriptor carrying the parser's message.
func Extract(sql string) []Descriptor {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return []Descriptor{{ParseErr: err.Error()}}
	}

	descs := make([]Descriptor, 0, len(result.Stmts))
	for _, raw := range result.Stmts {
		if raw.Stmt == nil {
			continue
		}
		tables := map[string]struct{}{}
		ctes := map[string]struct{}{}
		walk(raw.Stmt.ProtoReflect(), func(m protoreflect.Message) {
			switch node := m.Interface().(type) {
			case *pg_query.RangeVar:
				tables[tableName(node)] = struct{}{}
			case *pg_query.CommonTableExpr:
				ctes[node.Ctename] = struct{}{}
			}
		})
		descs = append(descs, Descriptor{Statement: &Statement{
			Verb:   verbOf(raw.Stmt.ProtoReflect()),
			Tables: sortedKeys(tables),
			CTEs:   sortedKeys(ctes),
		}})
	}
	return descs
}

// tableName records a referenced table the way it was written: qualified
// with its catalog and schema when the reference was qualified, bare
// otherwise. The parser has already case-folded unquoted identifiers, so
// quoted mixed-case names survive as written and everything else arrives
// lower-case, without quotes.
func tableName(rv *pg_query.RangeVar) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{rv.Catalogname, rv.Schemaname, rv.Relname} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// walk visits every message in the parse tree, depth first. The generated
// AST node types are protobufs, so one reflective traversal reaches every
// node kind, however deeply nested, without enumerating them.
func walk(m protoreflect.Message, visit func(protoreflect.Message)) {
	visit(m)
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsMap():
			return true
		case fd.IsList():
			if fd.Message() == nil {
				return true
			}
			list := v.List()
			for i := 0; i < list.Len(); i++ {
				walk(list.Get(i).Message(), visit)
			}
		case fd.Message() != nil:
			walk(v.Message(), visit)
		}
		return true
	})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
