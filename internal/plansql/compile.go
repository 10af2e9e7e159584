// Package plansql renders query plans as parameterized SQL.
//
// Every operand is bound as a placeholder argument; identifiers come from
// entity metadata only. Statements are assembled with squirrel so that the
// placeholder style follows the dialect.
package plansql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/plan"
	"github.com/roach88/pathql/internal/queryerr"
)

// Dialect selects the placeholder style.
type Dialect int

const (
	// SQLite uses "?" placeholders.
	SQLite Dialect = iota
	// Postgres uses "$1", "$2", ... placeholders.
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ParseDialect parses a driver or dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unknown SQL dialect %q", s)
	}
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// Statement is a rendered query with its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Compile renders p. Failures are CriteriaBuildFailure errors carrying the
// root entity name.
func Compile(p *plan.Plan, d Dialect) (Statement, error) {
	if p == nil {
		return Statement{}, fmt.Errorf("cannot compile nil plan")
	}
	st, err := compile(p, d)
	if err != nil {
		return Statement{}, queryerr.Wrap(queryerr.CodeCriteriaBuildFailure, p.Root.Name, err)
	}
	return st, nil
}

func compile(p *plan.Plan, d Dialect) (Statement, error) {
	cols, err := projection(p.Projection)
	if err != nil {
		return Statement{}, err
	}

	b := sq.Select(cols...).
		From(table(p.From)).
		PlaceholderFormat(d.placeholder())
	if p.Distinct {
		b = b.Distinct()
	}

	for _, j := range p.Joins {
		on := fmt.Sprintf("%s ON %s = %s", table(j.Table), j.On.Left, j.On.Right)
		switch j.Kind {
		case filter.Inner:
			b = b.Join(on)
		case filter.Left:
			b = b.LeftJoin(on)
		case filter.Right:
			b = b.RightJoin(on)
		default:
			return Statement{}, fmt.Errorf("unsupported join kind %s on %s", j.Kind, j.Path)
		}
	}

	// Top-level conjuncts become separate WHERE parts so they are not
	// wrapped in parentheses.
	var where []plan.Predicate
	switch w := p.Where.(type) {
	case nil:
	case plan.And:
		where = w.Predicates
	default:
		where = []plan.Predicate{w}
	}
	for _, pred := range where {
		s, err := predicate(pred)
		if err != nil {
			return Statement{}, err
		}
		b = b.Where(s)
	}

	if len(p.Groups) > 0 {
		groups := make([]string, len(p.Groups))
		for i, g := range p.Groups {
			groups[i] = g.String()
		}
		b = b.GroupBy(groups...)
	}

	if len(p.Orders) > 0 {
		orders := make([]string, len(p.Orders))
		for i, o := range p.Orders {
			orders[i] = o.Column.String() + " " + strings.ToUpper(o.Direction.String())
		}
		b = b.OrderBy(orders...)
	}

	if p.Limit > 0 {
		b = b.Limit(p.Limit)
	}
	if p.Offset > 0 {
		b = b.Offset(p.Offset)
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Args: args}, nil
}

func table(t plan.Table) string {
	return t.Name + " " + t.Alias
}

func projection(proj plan.Projection) ([]string, error) {
	if len(proj.Items) == 0 {
		return nil, fmt.Errorf("empty projection")
	}
	cols := make([]string, len(proj.Items))
	for i, it := range proj.Items {
		expr, err := item(it)
		if err != nil {
			return nil, err
		}
		cols[i] = fmt.Sprintf("%s AS %s", expr, quote(it.Alias))
	}
	return cols, nil
}

func item(it plan.Item) (string, error) {
	col := it.Column.String()
	if it.Star {
		col = "*"
	} else if it.Distinct {
		col = "DISTINCT " + col
	}

	switch it.Aggregate {
	case filter.Field:
		return col, nil
	case filter.Count, filter.Max, filter.Min, filter.Sum, filter.Avg, filter.Upper, filter.Lower:
		return it.Aggregate.String() + "(" + col + ")", nil
	default:
		return "", fmt.Errorf("unsupported aggregate %s", it.Aggregate)
	}
}

// quote renders an alias as a quoted identifier.
func quote(alias string) string {
	return `"` + strings.ReplaceAll(alias, `"`, `""`) + `"`
}

// predicate renders one predicate node. The switch is exhaustive over the
// sealed predicate types.
func predicate(p plan.Predicate) (sq.Sqlizer, error) {
	switch n := p.(type) {
	case plan.Cond:
		return condition(n)
	case plan.And:
		parts, err := predicates(n.Predicates)
		if err != nil {
			return nil, err
		}
		return sq.And(parts), nil
	case plan.Or:
		parts, err := predicates(n.Predicates)
		if err != nil {
			return nil, err
		}
		return sq.Or(parts), nil
	case plan.ColumnsEqual:
		return sq.Expr(fmt.Sprintf("%s = %s", n.Left, n.Right)), nil
	case plan.Exists:
		keyword := "EXISTS"
		if n.Negated {
			keyword = "NOT EXISTS"
		}
		return sq.Expr(fmt.Sprintf("%s (SELECT 1 FROM %s WHERE %s = %s)",
			keyword, table(n.Table), n.Correlation.Left, n.Correlation.Right)), nil
	case plan.InValues:
		return sq.Eq{n.Column.String(): n.Values}, nil
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func predicates(ps []plan.Predicate) ([]sq.Sqlizer, error) {
	out := make([]sq.Sqlizer, len(ps))
	for i, p := range ps {
		s, err := predicate(p)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// condition renders one operator. The switch is total over filter.Operator;
// Multi and Ignore never reach a plan.
func condition(c plan.Cond) (sq.Sqlizer, error) {
	col := c.Column.String()
	cond := c.Condition
	op := cond.Op

	switch op {
	case filter.Equal:
		return sq.Eq{col: cond.Value()}, nil
	case filter.NotEqual:
		return sq.NotEq{col: cond.Value()}, nil
	case filter.LessThan:
		return sq.Lt{col: cond.Value()}, nil
	case filter.LessThanOrEqual:
		return sq.LtOrEq{col: cond.Value()}, nil
	case filter.GreaterThan:
		return sq.Gt{col: cond.Value()}, nil
	case filter.GreaterThanOrEqual:
		return sq.GtOrEq{col: cond.Value()}, nil

	case filter.In:
		return sq.Eq{col: cond.Values}, nil
	case filter.NotIn:
		return sq.NotEq{col: cond.Values}, nil

	case filter.Like, filter.LikeBefore, filter.LikeAfter, filter.LikeBoth:
		return sq.Like{col: pattern(cond)}, nil
	case filter.NotLike:
		return sq.NotLike{col: pattern(cond)}, nil
	case filter.ILike, filter.ILikeBefore, filter.ILikeAfter, filter.ILikeBoth:
		return sq.Expr("UPPER("+col+") LIKE ?", pattern(cond)), nil
	case filter.NotILike:
		return sq.Expr("UPPER("+col+") NOT LIKE ?", pattern(cond)), nil

	case filter.IsNull:
		return sq.Eq{col: nil}, nil
	case filter.IsNotNull:
		return sq.NotEq{col: nil}, nil

	case filter.Between:
		if len(cond.Values) != 2 {
			return nil, fmt.Errorf("BETWEEN on %s needs two values, got %d", col, len(cond.Values))
		}
		return sq.Expr(col+" BETWEEN ? AND ?", cond.Values[0], cond.Values[1]), nil

	case filter.EqualOtherField:
		return otherField(col, "=", c.Other), nil
	case filter.NotEqualOtherField:
		return otherField(col, "<>", c.Other), nil
	case filter.LessThanOtherField:
		return otherField(col, "<", c.Other), nil
	case filter.LessThanOrEqualOtherField:
		return otherField(col, "<=", c.Other), nil
	case filter.GreaterThanOtherField:
		return otherField(col, ">", c.Other), nil
	case filter.GreaterThanOrEqualOtherField:
		return otherField(col, ">=", c.Other), nil

	case filter.Multi, filter.Ignore:
		return nil, fmt.Errorf("%s is not a renderable condition on %s", op, col)
	}

	return nil, fmt.Errorf("unsupported operator %s on %s", op, col)
}

func pattern(c filter.Condition) string {
	return filter.Pattern(c.Op, fmt.Sprint(c.Value()))
}

func otherField(col, op string, other plan.Column) sq.Sqlizer {
	return sq.Expr(col + " " + op + " " + other.String())
}
