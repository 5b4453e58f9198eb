package policy

import "strings"

// normalizeName canonicalizes a table identifier for comparison: lower-case,
// qualifier prefix dropped so only the final dot segment remains, surrounding
// double quotes stripped. Policy entries and extracted names pass through the
// same reduction, so case, identifier quoting, and schema qualification never
// affect matching. Same-named tables in different schemas are therefore
// indistinguishable to the policy.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.Trim(name, `"`)
}
