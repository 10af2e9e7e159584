package plan

import (
	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/pathexpr"
)

const (
	// ReservedIDAlias projects the root identifier when the pipeline needs
	// it for correlation. Suffixed with "." and a relation path it carries
	// the identifier of a collection element.
	ReservedIDAlias = filter.ReservedAliasPrefix + "id"

	// ReservedParentAlias projects the back-reference column of a secondary
	// collection query: the identifier of the owning parent.
	ReservedParentAlias = filter.ReservedAliasPrefix + "parent_id"

	// RootAlias is the table alias of the root entity.
	RootAlias = "t0"
)

// Table is a table reference with its alias.
type Table struct {
	Name  string
	Alias string
}

// Column is a column of an aliased table.
type Column struct {
	Alias string
	Name  string
}

func (c Column) String() string {
	return c.Alias + "." + c.Name
}

// Predicate is a node of the predicate tree.
//
// This is a sealed interface - only types in this package implement it.
// Backends switch over the concrete types exhaustively.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Cond applies one filter condition to a column. Other-field conditions
// compare with Other instead of a literal.
type Cond struct {
	Column    Column
	Condition filter.Condition
	Other     Column
}

func (Cond) predicateNode() {}

// And holds when every predicate holds. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or holds when any predicate holds. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// ColumnsEqual compares two columns; it is the ON condition of joins.
type ColumnsEqual struct {
	Left  Column
	Right Column
}

func (ColumnsEqual) predicateNode() {}

// Exists checks that a correlated row exists in Table (or, negated, that
// none does). Used for null checks on collections.
type Exists struct {
	Negated     bool
	Table       Table
	Correlation ColumnsEqual
}

func (Exists) predicateNode() {}

// InValues restricts a column to a list of keys. Used to correlate a
// secondary collection query with a batch of parent identifiers.
type InValues struct {
	Column Column
	Values []any
}

func (InValues) predicateNode() {}

// Join is one node of the join graph, memoized by canonical relation path.
type Join struct {
	Path     string
	Kind     filter.JoinKind
	Fetch    bool
	Table    Table
	On       ColumnsEqual
	Relation *meta.Field
	Target   *meta.Entity
}

// Shape is the projection shape of a plan.
type Shape int

const (
	// EntityShape projects whole objects: every auto-included column of the
	// root and of fetched relations, under canonical paths.
	EntityShape Shape = iota
	// TupleShape projects exactly the selected paths under their aliases.
	TupleShape
)

func (s Shape) String() string {
	if s == TupleShape {
		return "tuple"
	}
	return "entity"
}

// Item is one projected expression.
type Item struct {
	Column    Column
	Aggregate filter.Aggregate
	// Distinct renders COUNT(DISTINCT column).
	Distinct bool
	// Star renders COUNT(*); Column is ignored.
	Star  bool
	Alias string
	// Hidden items are produced for correlation only and never appear in
	// materialized objects.
	Hidden bool
	// Field is the scalar field the value is normalized with, when the
	// aggregate preserves its type.
	Field *meta.Field
}

// Projection is the select list. Items of one projection are all of one
// shape; the shape decides how they were derived.
type Projection struct {
	Shape Shape
	Items []Item
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Column    Column
	Direction pathexpr.Direction
}

// Plan is a query plan for one execution. It is derived from a filter.Spec
// and discarded after the run that produced it.
type Plan struct {
	Root       *meta.Entity
	From       Table
	Joins      []*Join
	Where      Predicate
	Projection Projection
	Orders     []OrderItem
	Groups     []Column
	Distinct   bool
	Limit      uint64
	Offset     uint64
}

// CountVariant returns the plan that counts the rows of p: the same joins
// and predicate tree, one COUNT projection, no order, group or window.
// Roots with an identifier count distinct identifiers.
func (p *Plan) CountVariant() *Plan {
	item := Item{Aggregate: filter.Count, Star: true, Alias: "total"}
	if p.Root.HasIdentifier() {
		item = Item{
			Column:    Column{Alias: p.From.Alias, Name: p.Root.Identifier.Column},
			Aggregate: filter.Count,
			Distinct:  true,
			Alias:     "total",
		}
	}
	return &Plan{
		Root:       p.Root,
		From:       p.From,
		Joins:      p.Joins,
		Where:      p.Where,
		Projection: Projection{Shape: TupleShape, Items: []Item{item}},
	}
}

// Window sets the offset and limit of the data query.
func (p *Plan) Window(offset, limit uint64) {
	p.Offset = offset
	p.Limit = limit
}

// Correlate restricts a secondary plan to the children of a batch of
// parents and projects the back-reference under ReservedParentAlias.
// Aggregating plans are grouped by parent.
func (p *Plan) Correlate(backRef string, parents []any) {
	col := Column{Alias: p.From.Alias, Name: backRef}
	p.Projection.Items = append(p.Projection.Items, Item{Column: col, Alias: ReservedParentAlias, Hidden: true})
	p.Where = and(p.Where, InValues{Column: col, Values: parents})
	if len(p.Groups) > 0 || p.aggregates() {
		p.Groups = append(p.Groups, col)
	}
}

// aggregates reports whether any projected item collapses rows.
func (p *Plan) aggregates() bool {
	for _, it := range p.Projection.Items {
		if it.Aggregate.IsGrouping() {
			return true
		}
	}
	return false
}

// and conjoins two predicates; nil means no predicate.
func and(a, b Predicate) Predicate {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	if x, ok := a.(And); ok {
		return And{Predicates: append(append([]Predicate(nil), x.Predicates...), b)}
	}
	return And{Predicates: []Predicate{a, b}}
}
