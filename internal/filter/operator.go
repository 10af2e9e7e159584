package filter

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Operator is a where-clause operator. The set is closed: predicate
// construction switches over every value.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	In
	NotIn
	Like
	NotLike
	LikeBefore
	LikeAfter
	LikeBoth
	ILike
	NotILike
	ILikeBefore
	ILikeAfter
	ILikeBoth
	IsNull
	IsNotNull
	Between
	Multi
	EqualOtherField
	NotEqualOtherField
	LessThanOtherField
	LessThanOrEqualOtherField
	GreaterThanOtherField
	GreaterThanOrEqualOtherField
	Ignore

	operatorCount
)

var operatorNames = [...]string{
	Equal:                        "EQUAL",
	NotEqual:                     "NOT_EQUAL",
	LessThan:                     "LESS_THAN",
	LessThanOrEqual:              "LESS_THAN_OR_EQUAL",
	GreaterThan:                  "GREATER_THAN",
	GreaterThanOrEqual:           "GREATER_THAN_OR_EQUAL",
	In:                           "IN",
	NotIn:                        "NOT_IN",
	Like:                         "LIKE",
	NotLike:                      "NOT_LIKE",
	LikeBefore:                   "LIKE_BEFORE",
	LikeAfter:                    "LIKE_AFTER",
	LikeBoth:                     "LIKE_BOTH",
	ILike:                        "ILIKE",
	NotILike:                     "NOT_ILIKE",
	ILikeBefore:                  "ILIKE_BEFORE",
	ILikeAfter:                   "ILIKE_AFTER",
	ILikeBoth:                    "ILIKE_BOTH",
	IsNull:                       "IS_NULL",
	IsNotNull:                    "IS_NOT_NULL",
	Between:                      "BETWEEN",
	Multi:                        "MULTI",
	EqualOtherField:              "EQUAL_OTHER_FIELD",
	NotEqualOtherField:           "NOT_EQUAL_OTHER_FIELD",
	LessThanOtherField:           "LESS_THAN_OTHER_FIELD",
	LessThanOrEqualOtherField:    "LESS_THAN_OR_EQUAL_OTHER_FIELD",
	GreaterThanOtherField:        "GREATER_THAN_OTHER_FIELD",
	GreaterThanOrEqualOtherField: "GREATER_THAN_OR_EQUAL_OTHER_FIELD",
	Ignore:                       "IGNORE",
}

// Operators returns every operator in declaration order.
func Operators() []Operator {
	out := make([]Operator, 0, operatorCount)
	for op := Operator(0); op < operatorCount; op++ {
		out = append(out, op)
	}
	return out
}

func (o Operator) String() string {
	if o >= 0 && o < operatorCount {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator parses an operator name such as "LIKE_BOTH".
func ParseOperator(s string) (Operator, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for op := Operator(0); op < operatorCount; op++ {
		if operatorNames[op] == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// IsOtherField reports whether the right-hand side is another field path.
func (o Operator) IsOtherField() bool {
	switch o {
	case EqualOtherField, NotEqualOtherField, LessThanOtherField,
		LessThanOrEqualOtherField, GreaterThanOtherField, GreaterThanOrEqualOtherField:
		return true
	}
	return false
}

// IsPattern reports whether the operator is one of the LIKE family.
func (o Operator) IsPattern() bool {
	switch o {
	case Like, NotLike, LikeBefore, LikeAfter, LikeBoth,
		ILike, NotILike, ILikeBefore, ILikeAfter, ILikeBoth:
		return true
	}
	return false
}

// IsCaseInsensitive reports whether the operator upper-cases both sides.
func (o Operator) IsCaseInsensitive() bool {
	switch o {
	case ILike, NotILike, ILikeBefore, ILikeAfter, ILikeBoth:
		return true
	}
	return false
}

// IsNullCheck reports whether the operator takes no value.
func (o Operator) IsNullCheck() bool {
	return o == IsNull || o == IsNotNull
}

// arity is the number of values an operator takes; -1 means one or more.
func (o Operator) arity() int {
	switch o {
	case IsNull, IsNotNull, Ignore, Multi:
		return 0
	case In, NotIn:
		return -1
	case Between:
		return 2
	default:
		return 1
	}
}

// Pattern builds the LIKE pattern for a pattern operator. Wildcard markers
// inside the literal are removed first so they are never doubled; the
// wildcards are then placed according to the operator. Case-insensitive
// operators upper-case the result.
func Pattern(op Operator, literal string) string {
	s := strings.ReplaceAll(literal, "%", "")
	if op.IsCaseInsensitive() {
		s = strings.ReplaceAll(s, "*", "")
	}

	switch op {
	case LikeBefore, ILikeBefore:
		s = "%" + s
	case LikeAfter, ILikeAfter:
		s = s + "%"
	default:
		s = "%" + s + "%"
	}

	if op.IsCaseInsensitive() {
		s = upper.String(s)
	}
	return s
}

var upper = cases.Upper(language.Und)

// Aggregate is the projection wrapper of a selected path.
type Aggregate int

const (
	Field Aggregate = iota
	Count
	Max
	Min
	Sum
	Avg
	Upper
	Lower
)

var aggregateNames = map[Aggregate]string{
	Field: "FIELD",
	Count: "COUNT",
	Max:   "MAX",
	Min:   "MIN",
	Sum:   "SUM",
	Avg:   "AVG",
	Upper: "UPPER",
	Lower: "LOWER",
}

func (a Aggregate) String() string {
	if name, ok := aggregateNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Aggregate(%d)", int(a))
}

// IsGrouping reports whether the aggregate collapses rows.
func (a Aggregate) IsGrouping() bool {
	switch a {
	case Count, Max, Min, Sum, Avg:
		return true
	}
	return false
}

// ParseAggregate parses an aggregate name such as "count".
func ParseAggregate(s string) (Aggregate, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for a, n := range aggregateNames {
		if n == name {
			return a, nil
		}
	}
	return Field, fmt.Errorf("unknown aggregate %q", s)
}

// JoinKind is the kind of a join directive.
type JoinKind int

const (
	Inner JoinKind = iota
	Left
	Right
)

func (k JoinKind) String() string {
	switch k {
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return "INNER"
	}
}

// ParseJoinKind parses "inner", "left" or "right".
func ParseJoinKind(s string) (JoinKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inner":
		return Inner, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return Inner, fmt.Errorf("unknown join kind %q", s)
	}
}
