package plan

import (
	"fmt"

	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/pathexpr"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/record"
)

// Option configures Build.
type Option func(*builder)

// WithExample supplies a query-by-example object. Every non-nil value in it
// becomes a predicate, using the operator registered for its path or Equal.
func WithExample(example record.Object) Option {
	return func(b *builder) { b.example = example }
}

// WithForcedID projects the root identifier under ReservedIDAlias even when
// no selection asks for it. Required whenever collections were split off.
func WithForcedID() Option {
	return func(b *builder) { b.forceID = true }
}

// withKeysOnly builds a tuple projection even without selections, so that
// only hidden correlation columns are projected.
func withKeysOnly() Option {
	return func(b *builder) { b.keysOnly = true }
}

type builder struct {
	spec     *filter.Spec
	root     *meta.Entity
	registry *meta.Registry

	plan     *Plan
	joins    map[string]*Join
	next     int
	consumed map[string]bool

	example  record.Object
	forceID  bool
	keysOnly bool
}

// Build turns a filter spec into a plan:
//
//  1. join graph, one node per distinct relation prefix
//  2. predicate tree: example values first, then every criterion the
//     example did not consume, in registration order
//  3. projection: tuple-shaped when the spec selects anything, otherwise
//     entity-shaped
//  4. order and group entries over the same join graph
//
// Paths were resolved when the spec was built; errors here are invalid
// combinations (such as a relation without identifier) or example values
// that do not fit the metadata.
func Build(spec *filter.Spec, opts ...Option) (*Plan, error) {
	if err := spec.Err(); err != nil {
		return nil, err
	}

	b := &builder{
		spec:     spec,
		root:     spec.Root(),
		registry: spec.Resolver().Registry(),
		joins:    make(map[string]*Join),
		consumed: make(map[string]bool),
		next:     1,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.plan = &Plan{
		Root: b.root,
		From: Table{Name: b.root.Table, Alias: RootAlias},
	}

	steps := []func() error{
		b.buildJoins,
		b.buildWhere,
		b.buildProjection,
		b.buildOrderAndGroup,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.plan, nil
}

// buildJoins creates the explicitly requested joins first, then the LEFT
// joins that relation null checks walk through, so that both win over the
// INNER default of joins created on demand.
func (b *builder) buildJoins() error {
	for _, d := range b.spec.Joins() {
		if _, err := b.join(d.Path, d.Kind, d.Fetch, true); err != nil {
			return err
		}
	}
	for _, c := range b.spec.Criteria() {
		op := c.Op()
		if !op.IsNullCheck() {
			continue
		}
		// The owner chain of the checked field; the field itself needs no join.
		for i := 0; i < c.Path.Len()-1; i++ {
			if c.Path.Segments[i].Field.IsRelation() {
				if _, err := b.join(c.Path.Prefix(i+1), filter.Left, false, false); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// join returns the join node of a relation prefix, creating it and its
// owner chain when missing. Explicit directives update an existing node.
func (b *builder) join(prefix pathexpr.Path, kind filter.JoinKind, fetch, explicit bool) (*Join, error) {
	key := prefix.String()
	if j, ok := b.joins[key]; ok {
		if explicit {
			j.Kind = kind
			j.Fetch = fetch
		}
		return j, nil
	}

	ownerKind := filter.Inner
	if kind == filter.Left {
		ownerKind = filter.Left
	}
	ownerAlias, colPrefix, err := b.locate(prefix, prefix.Len()-1, ownerKind)
	if err != nil {
		return nil, err
	}

	seg := prefix.Segments[prefix.Len()-1]
	f := seg.Field
	target, err := b.target(f)
	if err != nil {
		return nil, err
	}

	alias := fmt.Sprintf("t%d", b.next)
	j := &Join{
		Path:     key,
		Kind:     kind,
		Fetch:    fetch,
		Table:    Table{Name: target.Table, Alias: alias},
		Relation: f,
		Target:   target,
	}

	switch f.Kind {
	case meta.ToOne:
		if !target.HasIdentifier() {
			return nil, queryerr.InvalidExpression(key, "%s has no identifier to join on", target.Name)
		}
		j.On = ColumnsEqual{
			Left:  Column{Alias: alias, Name: target.Identifier.Column},
			Right: Column{Alias: ownerAlias, Name: colPrefix + f.Column},
		}
	case meta.ToMany:
		if colPrefix != "" || !seg.Owner.HasIdentifier() {
			return nil, queryerr.InvalidExpression(key, "collection %q needs an owner with an identifier", f.Name)
		}
		j.On = ColumnsEqual{
			Left:  Column{Alias: alias, Name: f.Column},
			Right: Column{Alias: ownerAlias, Name: seg.Owner.Identifier.Column},
		}
	default:
		return nil, queryerr.InvalidExpression(key, "%q is not a relation", f.Name)
	}

	b.next++
	b.joins[key] = j
	b.plan.Joins = append(b.plan.Joins, j)
	return j, nil
}

// locate walks the first n segments of p and returns the table alias they
// end in and the column prefix accumulated through embedded values.
func (b *builder) locate(p pathexpr.Path, n int, kind filter.JoinKind) (alias, colPrefix string, err error) {
	alias = RootAlias
	for i := 0; i < n; i++ {
		f := p.Segments[i].Field
		switch f.Kind {
		case meta.Embedded:
			colPrefix += f.Column + "_"
		case meta.ToOne, meta.ToMany:
			j, err := b.join(p.Prefix(i+1), kind, false, false)
			if err != nil {
				return "", "", err
			}
			alias, colPrefix = j.Table.Alias, ""
		}
	}
	return alias, colPrefix, nil
}

// column returns the column a path ends in. Relations end in their foreign
// key column on the owner side.
func (b *builder) column(p pathexpr.Path) (Column, error) {
	alias, colPrefix, err := b.locate(p, p.Len()-1, filter.Inner)
	if err != nil {
		return Column{}, err
	}
	return Column{Alias: alias, Name: colPrefix + p.Leaf().Column}, nil
}

func (b *builder) target(f *meta.Field) (*meta.Entity, error) {
	ent, ok := b.registry.Describe(f.Target())
	if !ok {
		if f.Kind == meta.ToMany {
			return nil, queryerr.CollectionTargetUndefined(b.root.Name, f.Name, f.Name)
		}
		return nil, queryerr.FieldNotFound(b.root.Name, f.Name, f.Target())
	}
	return ent, nil
}

func (b *builder) buildWhere() error {
	var preds []Predicate

	if b.example != nil {
		fromExample, err := b.walkExample(b.example, b.root, pathexpr.Path{Root: b.root})
		if err != nil {
			return err
		}
		preds = append(preds, fromExample...)
	}

	for _, c := range b.spec.Criteria() {
		if b.consumed[c.Path.String()] {
			continue
		}
		pred, err := b.criterion(c, nil, false)
		if err != nil {
			return err
		}
		if pred != nil {
			preds = append(preds, pred)
		}
	}

	switch len(preds) {
	case 0:
	case 1:
		b.plan.Where = preds[0]
	default:
		b.plan.Where = And{Predicates: preds}
	}
	return nil
}

// walkExample emits predicates for the non-nil values of an example object.
// Nested objects recurse through their relation; collection elements only
// when the spec requests a join for the collection, each element becoming
// one alternative.
func (b *builder) walkExample(obj record.Object, ent *meta.Entity, prefix pathexpr.Path) ([]Predicate, error) {
	for key := range obj {
		if _, ok := ent.Field(key); !ok {
			return nil, queryerr.FieldNotFound(b.root.Name, joinPath(prefix, key), key)
		}
	}

	var preds []Predicate
	for _, f := range ent.Persistent() {
		v, ok := obj[f.CanonicalName()]
		if !ok {
			v, ok = obj[f.Name]
		}
		if !ok || v == nil {
			continue
		}

		p := prefix.Append(ent, f)
		key := p.String()
		crit, registered := b.spec.Criterion(key)
		if registered && crit.Op() == filter.Ignore {
			b.consumed[key] = true
			continue
		}

		switch f.Kind {
		case meta.Scalar:
			if registered {
				b.consumed[key] = true
				pred, err := b.criterion(crit, v, true)
				if err != nil {
					return nil, err
				}
				if pred != nil {
					preds = append(preds, pred)
				}
				continue
			}
			val, err := filter.Coerce(f, v)
			if err != nil {
				return nil, queryerr.InvalidExpression(key, "example value: %v", err)
			}
			col, err := b.column(p)
			if err != nil {
				return nil, err
			}
			preds = append(preds, Cond{Column: col, Condition: filter.Condition{Op: filter.Equal, Values: []any{val}}})

		case meta.Embedded, meta.ToOne:
			child, ok := record.AsObject(v)
			if !ok {
				return nil, queryerr.InvalidExpression(key, "example value must be an object, got %T", v)
			}
			target, err := b.target(f)
			if err != nil {
				return nil, err
			}
			nested, err := b.walkExample(child, target, p)
			if err != nil {
				return nil, err
			}
			preds = append(preds, nested...)

		case meta.ToMany:
			elems, ok := record.AsCollection(v)
			if !ok {
				return nil, queryerr.InvalidExpression(key, "example value must be a collection, got %T", v)
			}
			if _, joined := b.spec.JoinAt(key); !joined {
				continue
			}
			target, err := b.target(f)
			if err != nil {
				return nil, err
			}
			var alternatives []Predicate
			for _, elem := range elems {
				nested, err := b.walkExample(elem, target, p)
				if err != nil {
					return nil, err
				}
				switch len(nested) {
				case 0:
				case 1:
					alternatives = append(alternatives, nested[0])
				default:
					alternatives = append(alternatives, And{Predicates: nested})
				}
			}
			switch len(alternatives) {
			case 0:
			case 1:
				preds = append(preds, alternatives[0])
			default:
				preds = append(preds, Or{Predicates: alternatives})
			}
		}
	}
	return preds, nil
}

func joinPath(prefix pathexpr.Path, name string) string {
	if prefix.Len() == 0 {
		return name
	}
	return prefix.String() + "." + name
}

// criterion builds the predicate of one registered criterion. example is
// the operand of conditions registered without one; when there is no
// example value such conditions are dropped.
func (b *builder) criterion(c *filter.Criterion, example any, hasExample bool) (Predicate, error) {
	var preds []Predicate
	for _, cond := range c.Conditions {
		if cond.Op == filter.Ignore {
			continue
		}
		if cond.FromExample {
			if !hasExample {
				continue
			}
			filled, err := fillFromExample(c.Path, cond, example)
			if err != nil {
				return nil, err
			}
			cond = filled
		}
		pred, err := b.condition(c.Path, cond)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}

	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return And{Predicates: preds}, nil
	}
}

func fillFromExample(p pathexpr.Path, cond filter.Condition, v any) (filter.Condition, error) {
	cond.FromExample = false
	if cond.Op.IsPattern() {
		cond.Values = []any{fmt.Sprint(v)}
		return cond, nil
	}
	val, err := filter.Coerce(p.Leaf(), v)
	if err != nil {
		return cond, queryerr.InvalidExpression(p.String(), "example value: %v", err)
	}
	cond.Values = []any{val}
	return cond, nil
}

// condition translates one condition. Null checks on relations test the
// foreign key (to-one) or the existence of a child row (to-many).
func (b *builder) condition(p pathexpr.Path, cond filter.Condition) (Predicate, error) {
	leaf := p.Leaf()

	if leaf.Kind == meta.ToMany {
		ownerAlias, colPrefix, err := b.locate(p, p.Len()-1, filter.Left)
		if err != nil {
			return nil, err
		}
		owner := p.Segments[p.Len()-1].Owner
		if colPrefix != "" || !owner.HasIdentifier() {
			return nil, queryerr.InvalidExpression(p.String(), "collection %q needs an owner with an identifier", leaf.Name)
		}
		target, err := b.target(leaf)
		if err != nil {
			return nil, err
		}
		alias := fmt.Sprintf("t%d", b.next)
		b.next++
		return Exists{
			Negated: cond.Op == filter.IsNull,
			Table:   Table{Name: target.Table, Alias: alias},
			Correlation: ColumnsEqual{
				Left:  Column{Alias: alias, Name: leaf.Column},
				Right: Column{Alias: ownerAlias, Name: owner.Identifier.Column},
			},
		}, nil
	}

	col, err := b.column(p)
	if err != nil {
		return nil, err
	}
	pred := Cond{Column: col, Condition: cond}
	if cond.Op.IsOtherField() {
		other, err := b.column(cond.Other)
		if err != nil {
			return nil, err
		}
		pred.Other = other
	}
	return pred, nil
}

func (b *builder) buildProjection() error {
	if len(b.spec.Selections()) == 0 && !b.keysOnly {
		return b.entityProjection()
	}
	return b.tupleProjection()
}

// entityProjection selects the auto-included scalar and embedded columns
// of the root and of every fetched relation.
func (b *builder) entityProjection() error {
	proj := Projection{Shape: EntityShape}
	proj.Items = entityItems(b.root, RootAlias, "", "", b.registry)

	toMany := false
	for _, j := range b.plan.Joins {
		if j.Relation.Kind == meta.ToMany {
			toMany = true
		}
		if !j.Fetch {
			continue
		}
		proj.Items = append(proj.Items, entityItems(j.Target, j.Table.Alias, "", j.Path+".", b.registry)...)
		// The related identifier tells a missing relation from a related
		// row whose columns are null.
		if j.Target.HasIdentifier() {
			proj.Items = append(proj.Items, Item{
				Column: Column{Alias: j.Table.Alias, Name: j.Target.Identifier.Column},
				Alias:  ReservedIDAlias + "." + j.Path,
				Hidden: true,
			})
		}
	}

	if b.root.HasIdentifier() && (b.forceID || toMany) {
		proj.Items = append(proj.Items, Item{
			Column: Column{Alias: RootAlias, Name: b.root.Identifier.Column},
			Alias:  ReservedIDAlias,
			Hidden: true,
		})
	}

	// Joined collections repeat the root row once per element; unless their
	// columns are fetched, the repeats are identical.
	b.plan.Distinct = toMany && !fetchesToMany(b.plan.Joins)
	b.plan.Projection = proj
	return nil
}

func fetchesToMany(joins []*Join) bool {
	for _, j := range joins {
		if j.Fetch && j.Relation.Kind == meta.ToMany {
			return true
		}
	}
	return false
}

// entityItems lists the auto-included scalar columns of ent, descending
// into embedded values. Relations are not followed.
func entityItems(ent *meta.Entity, alias, colPrefix, aliasPrefix string, registry *meta.Registry) []Item {
	var items []Item
	for _, f := range ent.Persistent() {
		if !f.AutoInclude {
			continue
		}
		switch f.Kind {
		case meta.Scalar:
			items = append(items, Item{
				Column: Column{Alias: alias, Name: colPrefix + f.Column},
				Alias:  aliasPrefix + f.CanonicalName(),
				Field:  f,
			})
		case meta.Embedded:
			target, ok := registry.Describe(f.Target())
			if !ok {
				continue
			}
			items = append(items, entityItems(target, alias, colPrefix+f.Column+"_", aliasPrefix+f.CanonicalName()+".", registry)...)
		}
	}
	return items
}

// tupleProjection projects the selections. When a selected column is
// reached through a collection join, the root identifier and the element
// identifiers are projected as well so rows can be merged per root and
// correlated per element.
func (b *builder) tupleProjection() error {
	proj := Projection{Shape: TupleShape}
	grouping := len(b.spec.Groups()) > 0
	throughToMany := make(map[string]*Join)

	for _, sel := range b.spec.Selections() {
		if sel.Aggregate.IsGrouping() {
			grouping = true
		}
		item, err := b.selectionItem(sel)
		if err != nil {
			return err
		}
		proj.Items = append(proj.Items, item)

		if sel.Aggregate.IsGrouping() {
			continue
		}
		for i := 0; i < sel.Path.Len()-1; i++ {
			if sel.Path.Segments[i].Field.Kind == meta.ToMany {
				key := sel.Path.Prefix(i + 1).String()
				throughToMany[key] = b.joins[key]
			}
		}
	}

	if grouping && b.forceID {
		// Split collections are correlated by root identifier, which grouped
		// rows no longer carry.
		return &queryerr.Error{
			Code:    queryerr.CodeInvalidExpression,
			Message: "grouped or aggregated selections cannot be combined with collection selections",
			Entity:  b.root.Name,
		}
	}

	// Collections joined only for filtering repeat the root row once per
	// matching element.
	filtering := false
	for _, j := range b.plan.Joins {
		if _, ok := throughToMany[j.Path]; !ok && j.Relation.Kind == meta.ToMany {
			filtering = true
		}
	}

	force := b.forceID || ((len(throughToMany) > 0 || filtering) && !grouping)
	if force && b.root.HasIdentifier() {
		idCol := Column{Alias: RootAlias, Name: b.root.Identifier.Column}
		proj.Items = append(proj.Items, Item{Column: idCol, Alias: ReservedIDAlias, Hidden: true})
		b.plan.Distinct = filtering
	}
	if !grouping {
		for _, j := range b.plan.Joins {
			if _, ok := throughToMany[j.Path]; !ok || !j.Target.HasIdentifier() {
				continue
			}
			proj.Items = append(proj.Items, Item{
				Column: Column{Alias: j.Table.Alias, Name: j.Target.Identifier.Column},
				Alias:  ReservedIDAlias + "." + j.Path,
				Hidden: true,
			})
		}
	}

	b.plan.Projection = proj
	return nil
}

func (b *builder) selectionItem(sel filter.Selection) (Item, error) {
	leaf := sel.Path.Leaf()
	item := Item{Aggregate: sel.Aggregate, Alias: sel.Alias}

	if leaf.IsRelation() {
		// Count over a relation counts the related identifiers; the join is
		// LEFT so owners without related rows count zero.
		j, err := b.join(sel.Path, filter.Left, false, false)
		if err != nil {
			return Item{}, err
		}
		if !j.Target.HasIdentifier() {
			return Item{}, queryerr.InvalidExpression(sel.Path.String(), "%s has no identifier to count", j.Target.Name)
		}
		item.Column = Column{Alias: j.Table.Alias, Name: j.Target.Identifier.Column}
		item.Distinct = true
		return item, nil
	}

	col, err := b.column(sel.Path)
	if err != nil {
		return Item{}, err
	}
	item.Column = col
	switch sel.Aggregate {
	case filter.Field, filter.Max, filter.Min:
		item.Field = leaf
	}
	return item, nil
}

// buildOrderAndGroup resolves order and group entries over the existing
// join graph. Ungrouped plans end with the root identifier so that paging
// is deterministic.
func (b *builder) buildOrderAndGroup() error {
	idOrdered := false
	for _, p := range b.spec.Orders() {
		col, err := b.column(p)
		if err != nil {
			return err
		}
		b.plan.Orders = append(b.plan.Orders, OrderItem{Column: col, Direction: p.Direction})
		if b.root.HasIdentifier() && col == (Column{Alias: RootAlias, Name: b.root.Identifier.Column}) {
			idOrdered = true
		}
	}

	for _, p := range b.spec.Groups() {
		col, err := b.column(p)
		if err != nil {
			return err
		}
		b.plan.Groups = append(b.plan.Groups, col)
	}

	grouped := len(b.plan.Groups) > 0 || b.plan.aggregates()
	if b.root.HasIdentifier() && !idOrdered && !grouped {
		b.plan.Orders = append(b.plan.Orders, OrderItem{
			Column:    Column{Alias: RootAlias, Name: b.root.Identifier.Column},
			Direction: pathexpr.Asc,
		})
	}
	return nil
}
