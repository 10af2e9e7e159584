// Package filter holds the Filter Spec: the per-query accumulator of where
// criteria, selections, order and group entries, and join directives, keyed
// by canonical path.
//
// A Spec is built fluently and consumed once by the plan builder:
//
//	spec := filter.New(resolver, pessoa).
//		Select("nome,profissao{descricao}").
//		WhereGreaterThan("idade", 18).
//		WhereLikeAnyBeforeAfter("nome", "jo").
//		OrderBy("-idade")
//	if err := spec.Err(); err != nil { ... }
//
// Builder methods never return errors themselves; the first failure is kept
// and reported by Err, and later calls become no-ops.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/pathexpr"
	"github.com/roach88/pathql/internal/queryerr"
)

// ReservedAliasPrefix starts every alias the pipeline adds on its own.
// User aliases may not use it.
const ReservedAliasPrefix = "__"

// Condition is one operator applied to a path.
type Condition struct {
	Op Operator
	// Values holds the coerced operands: none for null checks, two for
	// Between, one or more for In/NotIn, one otherwise. Pattern operators
	// keep the raw literal; see Pattern.
	Values []any
	// Other is the right-hand path of an other-field comparison.
	Other pathexpr.Path
	// FromExample marks an operator registered without a value; the value
	// comes from the example object at plan time.
	FromExample bool
}

// Value returns the first operand, or nil.
func (c Condition) Value() any {
	if len(c.Values) == 0 {
		return nil
	}
	return c.Values[0]
}

// Criterion is everything registered for one path.
type Criterion struct {
	Path       pathexpr.Path
	Conditions []Condition
}

// Op is the effective operator: Multi when several conditions are chained.
func (c *Criterion) Op() Operator {
	if len(c.Conditions) > 1 {
		return Multi
	}
	return c.Conditions[0].Op
}

// Selection is one projected path.
type Selection struct {
	Path      pathexpr.Path
	Aggregate Aggregate
	Alias     string
}

// JoinDirective requests a join kind, and optionally fetching, for a
// relation path.
type JoinDirective struct {
	Path  pathexpr.Path
	Kind  JoinKind
	Fetch bool
}

// Spec is request-scoped and not safe for concurrent use.
type Spec struct {
	resolver *pathexpr.Resolver
	root     *meta.Entity

	criteria []*Criterion
	byPath   map[string]*Criterion

	selections []Selection
	aliases    map[string]string

	orders   []pathexpr.Path
	orderSet map[string]bool

	groups   []pathexpr.Path
	groupSet map[string]bool

	joins  []*JoinDirective
	joinAt map[string]*JoinDirective

	err error
}

// New creates an empty spec for a root entity.
func New(resolver *pathexpr.Resolver, root *meta.Entity) *Spec {
	return &Spec{
		resolver: resolver,
		root:     root,
		byPath:   make(map[string]*Criterion),
		aliases:  make(map[string]string),
		orderSet: make(map[string]bool),
		groupSet: make(map[string]bool),
		joinAt:   make(map[string]*JoinDirective),
	}
}

// Root returns the root entity.
func (s *Spec) Root() *meta.Entity { return s.root }

// Resolver returns the resolver paths are resolved with.
func (s *Spec) Resolver() *pathexpr.Resolver { return s.resolver }

// Err returns the first error recorded by a builder method.
func (s *Spec) Err() error { return s.err }

// Criteria returns the where criteria in registration order.
func (s *Spec) Criteria() []*Criterion { return s.criteria }

// Criterion returns the criterion registered for a canonical path.
func (s *Spec) Criterion(path string) (*Criterion, bool) {
	c, ok := s.byPath[path]
	return c, ok
}

// Selections returns the projected paths in registration order.
func (s *Spec) Selections() []Selection { return s.selections }

// Orders returns the order entries in registration order.
func (s *Spec) Orders() []pathexpr.Path { return s.orders }

// Groups returns the group-by entries in registration order.
func (s *Spec) Groups() []pathexpr.Path { return s.groups }

// Joins returns the join directives in registration order.
func (s *Spec) Joins() []*JoinDirective { return s.joins }

// JoinAt returns the directive registered for a relation path.
func (s *Spec) JoinAt(path string) (*JoinDirective, bool) {
	d, ok := s.joinAt[path]
	return d, ok
}

func (s *Spec) fail(err error) *Spec {
	if s.err == nil {
		s.err = err
	}
	return s
}

// Where registers op with its operands for path, replacing anything
// registered for the same path before. String operands are parsed into the
// field's type; other operands are converted.
func (s *Spec) Where(path string, op Operator, values ...any) *Spec {
	if s.err != nil {
		return s
	}
	p, err := s.resolver.ResolveOne(s.root, path)
	if err != nil {
		return s.fail(err)
	}
	cond, err := s.condition(p, op, values)
	if err != nil {
		return s.fail(err)
	}
	return s.AddCriterion(Criterion{Path: p, Conditions: []Condition{cond}})
}

func (s *Spec) WhereEqual(path string, v any) *Spec { return s.Where(path, Equal, v) }

func (s *Spec) WhereNotEqual(path string, v any) *Spec { return s.Where(path, NotEqual, v) }

func (s *Spec) WhereLessThan(path string, v any) *Spec { return s.Where(path, LessThan, v) }

func (s *Spec) WhereLessThanOrEqual(path string, v any) *Spec {
	return s.Where(path, LessThanOrEqual, v)
}

func (s *Spec) WhereGreaterThan(path string, v any) *Spec { return s.Where(path, GreaterThan, v) }

func (s *Spec) WhereGreaterThanOrEqual(path string, v any) *Spec {
	return s.Where(path, GreaterThanOrEqual, v)
}

func (s *Spec) WhereIn(path string, values ...any) *Spec { return s.Where(path, In, values...) }

func (s *Spec) WhereNotIn(path string, values ...any) *Spec { return s.Where(path, NotIn, values...) }

func (s *Spec) WhereBetween(path string, lo, hi any) *Spec { return s.Where(path, Between, lo, hi) }

func (s *Spec) WhereIsNull(path string) *Spec { return s.Where(path, IsNull) }

func (s *Spec) WhereIsNotNull(path string) *Spec { return s.Where(path, IsNotNull) }

// WhereLike matches values containing v.
func (s *Spec) WhereLike(path, v string) *Spec { return s.Where(path, Like, v) }

func (s *Spec) WhereNotLike(path, v string) *Spec { return s.Where(path, NotLike, v) }

// WhereLikeBefore matches values ending with v.
func (s *Spec) WhereLikeBefore(path, v string) *Spec { return s.Where(path, LikeBefore, v) }

// WhereLikeAfter matches values starting with v.
func (s *Spec) WhereLikeAfter(path, v string) *Spec { return s.Where(path, LikeAfter, v) }

// WhereLikeAnyBeforeAfter matches values containing v anywhere.
func (s *Spec) WhereLikeAnyBeforeAfter(path, v string) *Spec { return s.Where(path, LikeBoth, v) }

func (s *Spec) WhereILike(path, v string) *Spec { return s.Where(path, ILike, v) }

func (s *Spec) WhereNotILike(path, v string) *Spec { return s.Where(path, NotILike, v) }

func (s *Spec) WhereILikeBefore(path, v string) *Spec { return s.Where(path, ILikeBefore, v) }

func (s *Spec) WhereILikeAfter(path, v string) *Spec { return s.Where(path, ILikeAfter, v) }

func (s *Spec) WhereILikeAnyBeforeAfter(path, v string) *Spec {
	return s.Where(path, ILikeBoth, v)
}

// WhereOtherField compares path with another field of the same row.
func (s *Spec) WhereOtherField(path string, op Operator, other string) *Spec {
	if !op.IsOtherField() {
		return s.fail(queryerr.InvalidExpression(path, "%s is not an other-field operator", op))
	}
	return s.Where(path, op, other)
}

// WhereOperator registers an operator whose operand is taken from the
// example object when the plan is built.
func (s *Spec) WhereOperator(path string, op Operator) *Spec {
	if s.err != nil {
		return s
	}
	if op.arity() != 1 || op.IsOtherField() {
		if op.IsNullCheck() || op == Ignore {
			return s.Where(path, op)
		}
		return s.fail(queryerr.InvalidExpression(path, "%s cannot take its operand from an example", op))
	}
	p, err := s.resolver.ResolveOne(s.root, path)
	if err != nil {
		return s.fail(err)
	}
	if err := checkLeaf(p, op); err != nil {
		return s.fail(err)
	}
	return s.AddCriterion(Criterion{Path: p, Conditions: []Condition{{Op: op, FromExample: true}}})
}

// Ignore excludes path from the predicate tree even when the example object
// carries a value for it.
func (s *Spec) Ignore(path string) *Spec { return s.Where(path, Ignore) }

// WhereMulti registers several conditions on one path; all must hold.
func (s *Spec) WhereMulti(path string, terms ...Term) *Spec {
	if s.err != nil {
		return s
	}
	if len(terms) == 0 {
		return s.fail(queryerr.InvalidExpression(path, "no conditions given"))
	}
	p, err := s.resolver.ResolveOne(s.root, path)
	if err != nil {
		return s.fail(err)
	}

	conds := make([]Condition, 0, len(terms))
	for _, t := range terms {
		if t.Op == Multi || t.Op == Ignore {
			return s.fail(queryerr.InvalidExpression(path, "%s cannot be chained", t.Op))
		}
		cond, err := s.condition(p, t.Op, stringArgs(t.Args))
		if err != nil {
			return s.fail(err)
		}
		conds = append(conds, cond)
	}
	return s.AddCriterion(Criterion{Path: p, Conditions: conds})
}

// WhereExpression parses a value string (see ParseExpression) and registers
// the result for path.
func (s *Spec) WhereExpression(path, expr string) *Spec {
	if s.err != nil {
		return s
	}
	terms, err := ParseExpression(expr)
	if err != nil {
		return s.fail(withPath(err, path))
	}
	if len(terms) == 1 {
		return s.Where(path, terms[0].Op, stringArgs(terms[0].Args)...)
	}
	return s.WhereMulti(path, terms...)
}

// AddCriterion registers an already resolved criterion. A criterion for the
// same path is replaced in place.
func (s *Spec) AddCriterion(c Criterion) *Spec {
	key := c.Path.String()
	if existing, ok := s.byPath[key]; ok {
		*existing = c
		return s
	}
	stored := c
	s.criteria = append(s.criteria, &stored)
	s.byPath[key] = &stored
	return s
}

// Select resolves a select list and projects every resulting path under
// its canonical name.
func (s *Spec) Select(raw string) *Spec {
	if s.err != nil {
		return s
	}
	paths, err := s.resolver.ResolveList(s.root, raw, pathexpr.Select)
	if err != nil {
		return s.fail(err)
	}
	for _, p := range paths {
		s.AddSelection(Selection{Path: p, Aggregate: Field, Alias: p.String()})
	}
	return s
}

// SelectAs projects one scalar path under a custom alias.
func (s *Spec) SelectAs(path, alias string) *Spec {
	if s.err != nil {
		return s
	}
	paths, err := s.resolver.Resolve(s.root, path, pathexpr.Select)
	if err != nil {
		return s.fail(err)
	}
	if len(paths) != 1 {
		return s.fail(queryerr.InvalidExpression(path, "an alias needs a single field, %q expands to %d", path, len(paths)))
	}
	return s.AddSelection(Selection{Path: paths[0], Aggregate: Field, Alias: alias})
}

// SelectAggregate projects path wrapped in an aggregate. Count also accepts
// a relation and counts its identifier. An empty alias defaults to the
// lower-cased aggregate name and the path joined by underscores.
func (s *Spec) SelectAggregate(path string, agg Aggregate, alias string) *Spec {
	if s.err != nil {
		return s
	}
	p, err := s.resolver.ResolveOne(s.root, path)
	if err != nil {
		return s.fail(err)
	}
	leaf := p.Leaf()
	if leaf.Kind != meta.Scalar && !(agg == Count && leaf.IsRelation()) {
		return s.fail(queryerr.InvalidExpression(path, "%s needs a scalar field", agg))
	}
	if alias == "" {
		if agg == Field {
			alias = p.String()
		} else {
			alias = strings.ToLower(agg.String()) + "_" + strings.ReplaceAll(p.String(), ".", "_")
		}
	}
	return s.AddSelection(Selection{Path: p, Aggregate: agg, Alias: alias})
}

// AddSelection registers a resolved selection. Repeating an identical
// selection is a no-op; reusing an alias for something else is an error.
func (s *Spec) AddSelection(sel Selection) *Spec {
	if s.err != nil {
		return s
	}
	if sel.Alias == "" {
		return s.fail(queryerr.InvalidExpression(sel.Path.String(), "empty alias"))
	}
	if strings.HasPrefix(sel.Alias, ReservedAliasPrefix) {
		return s.fail(queryerr.InvalidExpression(sel.Path.String(), "alias %q uses the reserved prefix %q", sel.Alias, ReservedAliasPrefix))
	}
	key := sel.Aggregate.String() + "(" + sel.Path.String() + ")"
	if prev, ok := s.aliases[sel.Alias]; ok {
		if prev == key {
			return s
		}
		return s.fail(queryerr.InvalidExpression(sel.Path.String(), "alias %q is already used by %s", sel.Alias, prev))
	}
	s.aliases[sel.Alias] = key
	s.selections = append(s.selections, sel)
	return s
}

// OrderBy resolves a sort list and appends its entries. A path already
// ordered keeps its first position and direction.
func (s *Spec) OrderBy(raw string) *Spec {
	if s.err != nil {
		return s
	}
	paths, err := s.resolver.ResolveList(s.root, raw, pathexpr.Sort)
	if err != nil {
		return s.fail(err)
	}
	for _, p := range paths {
		s.AddOrder(p)
	}
	return s
}

// AddOrder appends a resolved order entry.
func (s *Spec) AddOrder(p pathexpr.Path) *Spec {
	key := p.String()
	if !s.orderSet[key] {
		s.orderSet[key] = true
		s.orders = append(s.orders, p)
	}
	return s
}

// GroupBy resolves a comma separated list of group-by paths. A whole
// to-one relation groups by its identifier.
func (s *Spec) GroupBy(raw string) *Spec {
	if s.err != nil {
		return s
	}
	for _, flat := range pathexpr.Normalize(raw) {
		paths, err := s.resolver.Resolve(s.root, flat, pathexpr.Sort)
		if err != nil {
			return s.fail(err)
		}
		for _, p := range paths {
			s.AddGroup(p)
		}
	}
	return s
}

// AddGroup appends a resolved group-by entry.
func (s *Spec) AddGroup(p pathexpr.Path) *Spec {
	key := p.String()
	if !s.groupSet[key] {
		s.groupSet[key] = true
		s.groups = append(s.groups, p)
	}
	return s
}

// Join requests a join kind for a relation path without fetching it.
func (s *Spec) Join(path string, kind JoinKind) *Spec {
	return s.join(path, kind, false)
}

// JoinFetch requests a join and loads the related object (or collection)
// into the result.
func (s *Spec) JoinFetch(path string, kind JoinKind) *Spec {
	return s.join(path, kind, true)
}

func (s *Spec) join(path string, kind JoinKind, fetch bool) *Spec {
	if s.err != nil {
		return s
	}
	p, err := s.resolver.ResolveOne(s.root, path)
	if err != nil {
		return s.fail(err)
	}
	if !p.Leaf().IsRelation() {
		return s.fail(queryerr.InvalidExpression(path, "only relations can be joined"))
	}
	return s.AddJoin(JoinDirective{Path: p, Kind: kind, Fetch: fetch})
}

// AddJoin registers a resolved join directive; a later directive for the
// same path replaces the earlier one.
func (s *Spec) AddJoin(d JoinDirective) *Spec {
	key := d.Path.String()
	if existing, ok := s.joinAt[key]; ok {
		*existing = d
		return s
	}
	stored := d
	s.joins = append(s.joins, &stored)
	s.joinAt[key] = &stored
	return s
}

// condition validates operands against the path's leaf field and coerces
// them. The switch is total over Operator.
func (s *Spec) condition(p pathexpr.Path, op Operator, values []any) (Condition, error) {
	if err := checkLeaf(p, op); err != nil {
		return Condition{}, err
	}
	name := p.String()
	leaf := p.Leaf()

	switch op {
	case Ignore, IsNull, IsNotNull:
		if len(values) > 0 {
			return Condition{}, queryerr.InvalidExpression(name, "%s takes no value", op)
		}
		return Condition{Op: op}, nil

	case Multi:
		return Condition{}, queryerr.InvalidExpression(name, "MULTI is built from several conditions, use WhereMulti")

	case EqualOtherField, NotEqualOtherField, LessThanOtherField,
		LessThanOrEqualOtherField, GreaterThanOtherField, GreaterThanOrEqualOtherField:
		if len(values) != 1 {
			return Condition{}, queryerr.InvalidExpression(name, "%s takes one field path", op)
		}
		other, err := s.resolver.ResolveOne(s.root, fmt.Sprint(values[0]))
		if err != nil {
			return Condition{}, err
		}
		if other.Leaf().Kind != meta.Scalar {
			return Condition{}, queryerr.InvalidExpression(name, "%s must compare with a scalar field, %q is not", op, other.String())
		}
		return Condition{Op: op, Other: other}, nil

	case Like, NotLike, LikeBefore, LikeAfter, LikeBoth,
		ILike, NotILike, ILikeBefore, ILikeAfter, ILikeBoth:
		if len(values) != 1 {
			return Condition{}, queryerr.InvalidExpression(name, "%s takes one value", op)
		}
		return Condition{Op: op, Values: []any{fmt.Sprint(values[0])}}, nil

	case In, NotIn:
		if len(values) == 0 {
			return Condition{}, queryerr.InvalidExpression(name, "%s needs at least one value", op)
		}
		return coerced(name, leaf, op, values)

	case Between:
		if len(values) != 2 {
			return Condition{}, queryerr.InvalidExpression(name, "BETWEEN takes two values")
		}
		return coerced(name, leaf, op, values)

	case Equal, NotEqual, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		if len(values) != 1 {
			return Condition{}, queryerr.InvalidExpression(name, "%s takes one value", op)
		}
		return coerced(name, leaf, op, values)
	}

	return Condition{}, queryerr.InvalidExpression(name, "unknown operator %s", op)
}

// checkLeaf rejects operators that make no sense on the path's leaf:
// relations only take null checks, embedded values take nothing.
func checkLeaf(p pathexpr.Path, op Operator) error {
	leaf := p.Leaf()
	switch {
	case leaf.Kind == meta.Scalar:
		return nil
	case leaf.IsRelation() && (op.IsNullCheck() || op == Ignore):
		return nil
	case leaf.IsRelation():
		return queryerr.InvalidExpression(p.String(), "relation %q only supports null checks", leaf.Name)
	default:
		return queryerr.InvalidExpression(p.String(), "embedded value %q cannot be compared as a whole", leaf.Name)
	}
}

func coerced(name string, f *meta.Field, op Operator, values []any) (Condition, error) {
	out := make([]any, len(values))
	for i, v := range values {
		c, err := Coerce(f, v)
		if err != nil {
			return Condition{}, queryerr.InvalidExpression(name, "%v", err)
		}
		out[i] = c
	}
	return Condition{Op: op, Values: out}, nil
}

// Coerce converts an operand to the field's scalar type. Strings are parsed;
// other values are converted.
func Coerce(f *meta.Field, v any) (any, error) {
	if str, ok := v.(string); ok {
		return f.ParseValue(str)
	}
	return f.Normalize(v)
}

func stringArgs(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

// withPath returns a copy of a query error carrying path. The original is
// left untouched since callers may share it.
func withPath(err error, path string) error {
	var qe *queryerr.Error
	if !errors.As(err, &qe) || qe.Path != "" {
		return err
	}
	cp := *qe
	cp.Path = path
	return &cp
}
