// Package pathexpr normalizes and resolves field path expressions.
//
// The caller-facing grammar is a comma separated list of dotted paths with a
// grouping shorthand and sort markers:
//
//	nome,profissao{id,descricao}       select list
//	-nome,idade:desc,profissao{id:asc} sort list
//
// Normalize rewrites the grouping shorthand away; Resolver turns each flat
// path into a CanonicalPath against entity metadata.
package pathexpr

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// groupPattern matches one innermost group: a name immediately followed by a
// brace list that contains no further braces. Nested groups are handled by
// re-scanning the rewritten string.
var groupPattern = regexp.MustCompile(`([^,{}]+)\{([^{}]*)\}`)

// Normalize expands the grouping shorthand and splits the expression into
// flat paths. Rewriting repeats until a fixpoint; every rewrite removes one
// brace pair, so it terminates for any input. Unbalanced braces are left in
// place for the resolver to reject.
func Normalize(raw string) []string {
	s := norm.NFC.String(raw)
	for {
		next := groupPattern.ReplaceAllStringFunc(s, expandGroup)
		if next == s {
			break
		}
		s = next
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandGroup(match string) string {
	sub := groupPattern.FindStringSubmatch(match)
	name := strings.TrimSpace(sub[1])
	var expanded []string
	for _, item := range strings.Split(sub[2], ",") {
		if item = strings.TrimSpace(item); item != "" {
			expanded = append(expanded, name+"."+item)
		}
	}
	if len(expanded) == 0 {
		return name
	}
	return strings.Join(expanded, ",")
}
