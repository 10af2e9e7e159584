package filter

import (
	"strings"

	"github.com/roach88/pathql/internal/queryerr"
)

// Term is one parsed operator with its raw arguments. Other-field operators
// carry the other path as their only argument.
type Term struct {
	Op   Operator
	Args []string
}

// prefixOps are tried in order; longer prefixes come before their own
// prefixes.
var prefixOps = []struct {
	prefix string
	op     Operator
}{
	{"!=@", NotEqualOtherField},
	{"<=@", LessThanOrEqualOtherField},
	{">=@", GreaterThanOrEqualOtherField},
	{"=@", EqualOtherField},
	{"<@", LessThanOtherField},
	{">@", GreaterThanOtherField},
	{"!=", NotEqual},
	{"<=", LessThanOrEqual},
	{">=", GreaterThanOrEqual},
	{"=%", Like},
	{"!%", NotLike},
	{"=*", ILike},
	{"!*", NotILike},
	{"=", Equal},
	{"<", LessThan},
	{">", GreaterThan},
}

// ParseExpression parses a where value string.
//
//	=10 !=10 <10 <=10 >10 >=10     comparisons
//	(10,15,20) !(10,15,20)         in / not in
//	(10 & 20)                      between
//	null, not null                 existence
//	<=100;>10;!=50                 several conditions on one path
//	=%x !%x %x% %x x%              like, not like, both, before, after
//	=*x !*x *x* *x x*              case-insensitive equivalents
//	=@f !=@f <@f <=@f >@f >=@f     comparison with another field
//	x                              equal
//
// The result has one term, or several for a ';' chain.
func ParseExpression(expr string) ([]Term, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, queryerr.InvalidExpression("", "empty expression")
	}

	parts := strings.Split(expr, ";")
	terms := make([]Term, 0, len(parts))
	for _, part := range parts {
		term, err := parseTerm(part)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func parseTerm(raw string) (Term, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Term{}, queryerr.InvalidExpression("", "empty condition in %q", raw)
	}

	switch strings.ToLower(s) {
	case "null":
		return Term{Op: IsNull}, nil
	case "not null", "!null":
		return Term{Op: IsNotNull}, nil
	}

	if strings.HasPrefix(s, "!(") || strings.HasPrefix(s, "(") {
		return parseGroup(s)
	}

	for _, p := range prefixOps {
		if !strings.HasPrefix(s, p.prefix) {
			continue
		}
		arg := strings.TrimSpace(s[len(p.prefix):])
		if arg == "" {
			return Term{}, queryerr.InvalidExpression("", "operator %q has no value", p.prefix)
		}
		return Term{Op: p.op, Args: []string{arg}}, nil
	}

	if term, ok := parseWildcards(s, "%", LikeBoth, LikeBefore, LikeAfter); ok {
		return term, nil
	}
	if term, ok := parseWildcards(s, "*", ILikeBoth, ILikeBefore, ILikeAfter); ok {
		return term, nil
	}

	return Term{Op: Equal, Args: []string{s}}, nil
}

// parseGroup handles (a,b,c), !(a,b,c) and (a & b).
func parseGroup(s string) (Term, error) {
	negated := strings.HasPrefix(s, "!")
	if negated {
		s = s[1:]
	}
	if !strings.HasSuffix(s, ")") {
		return Term{}, queryerr.InvalidExpression("", "unterminated list %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return Term{}, queryerr.InvalidExpression("", "empty list %q", s)
	}

	if strings.Contains(body, "&") {
		if negated {
			return Term{}, queryerr.InvalidExpression("", "negated range %q is not supported", s)
		}
		bounds := strings.Split(body, "&")
		if len(bounds) != 2 {
			return Term{}, queryerr.InvalidExpression("", "range %q needs exactly two bounds", s)
		}
		lo, hi := strings.TrimSpace(bounds[0]), strings.TrimSpace(bounds[1])
		if lo == "" || hi == "" {
			return Term{}, queryerr.InvalidExpression("", "range %q has an empty bound", s)
		}
		return Term{Op: Between, Args: []string{lo, hi}}, nil
	}

	var args []string
	for _, item := range strings.Split(body, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return Term{}, queryerr.InvalidExpression("", "empty element in list %q", s)
		}
		args = append(args, item)
	}
	op := In
	if negated {
		op = NotIn
	}
	return Term{Op: op, Args: args}, nil
}

// parseWildcards recognizes a literal wrapped by marker on one or both sides.
func parseWildcards(s, marker string, both, before, after Operator) (Term, bool) {
	lead := strings.HasPrefix(s, marker)
	trail := strings.HasSuffix(s, marker) && len(s) > len(marker)
	if !lead && !trail {
		return Term{}, false
	}

	lit := strings.TrimSuffix(strings.TrimPrefix(s, marker), marker)
	if lit == "" {
		return Term{}, false
	}

	switch {
	case lead && trail:
		return Term{Op: both, Args: []string{lit}}, true
	case lead:
		return Term{Op: before, Args: []string{lit}}, true
	default:
		return Term{Op: after, Args: []string{lit}}, true
	}
}
