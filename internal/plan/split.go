package plan

import (
	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/pathexpr"
	"github.com/roach88/pathql/internal/queryerr"
)

// Relation is a collection loaded by a secondary query.
type Relation struct {
	// Field is the to-many field of the parent entity.
	Field *meta.Field
	// Name is the key the collection is stored under in parent objects.
	Name string
	// Spec is rooted at the element entity. Its paths are the original
	// paths without the relation segment.
	Spec *filter.Spec
	// BackRef is the element column holding the parent identifier.
	BackRef string
}

// Split is the result of SplitCollections.
type Split struct {
	Primary   *filter.Spec
	Relations []*Relation

	// keysOnly is set when every selection moved to a relation.
	keysOnly bool
}

// ForceID reports whether the primary plan has to project the root
// identifier for correlation.
func (s *Split) ForceID() bool {
	return len(s.Relations) > 0
}

// Options returns the Build options the primary spec needs.
func (s *Split) Options() []Option {
	var opts []Option
	if s.ForceID() {
		opts = append(opts, WithForcedID())
	}
	if s.keysOnly {
		opts = append(opts, withKeysOnly())
	}
	return opts
}

// SplitCollections moves every selection, criterion, order, group and
// join whose path runs through a to-many relation at its first segment
// into a secondary spec for that relation. Relation null checks stay in
// the primary. A fetch join of a bare collection creates a relation that
// loads whole elements.
//
// Only the first segment is inspected; secondary specs are split again
// when they are executed.
func SplitCollections(spec *filter.Spec) (*Split, error) {
	if err := spec.Err(); err != nil {
		return nil, err
	}

	sp := &splitter{
		src:       spec,
		primary:   filter.New(spec.Resolver(), spec.Root()),
		relations: make(map[string]*Relation),
	}
	if err := sp.run(); err != nil {
		return nil, err
	}

	split := &Split{Primary: sp.primary, Relations: sp.order}
	split.keysOnly = len(spec.Selections()) > 0 && len(sp.primary.Selections()) == 0
	for _, s := range append([]*filter.Spec{sp.primary}, specsOf(sp.order)...) {
		if err := s.Err(); err != nil {
			return nil, err
		}
	}
	return split, nil
}

func specsOf(rels []*Relation) []*filter.Spec {
	out := make([]*filter.Spec, len(rels))
	for i, r := range rels {
		out[i] = r.Spec
	}
	return out
}

type splitter struct {
	src       *filter.Spec
	primary   *filter.Spec
	relations map[string]*Relation
	order     []*Relation
}

// collection returns the index-0 to-many field of p when p continues past
// it, or nil.
func collection(p pathexpr.Path) *meta.Field {
	if p.Len() < 2 || p.Segments[0].Field.Kind != meta.ToMany {
		return nil
	}
	return p.Segments[0].Field
}

func (sp *splitter) relation(f *meta.Field) (*Relation, error) {
	name := f.CanonicalName()
	if r, ok := sp.relations[name]; ok {
		return r, nil
	}
	target, ok := sp.src.Resolver().Registry().Describe(f.Target())
	if !ok {
		return nil, queryerr.CollectionTargetUndefined(sp.src.Root().Name, name, f.Name)
	}
	if !sp.src.Root().HasIdentifier() {
		return nil, queryerr.InvalidExpression(name, "collection %q needs an owner with an identifier", name)
	}
	r := &Relation{
		Field:   f,
		Name:    name,
		Spec:    filter.New(sp.src.Resolver(), target),
		BackRef: f.Column,
	}
	sp.relations[name] = r
	sp.order = append(sp.order, r)
	return r, nil
}

func (sp *splitter) run() error {
	for _, sel := range sp.src.Selections() {
		f := collection(sel.Path)
		if f == nil {
			sp.primary.AddSelection(sel)
			continue
		}
		r, err := sp.relation(f)
		if err != nil {
			return err
		}
		tail := sel.Path.Tail(1)
		if sel.Alias == sel.Path.String() {
			sel.Alias = tail.String()
		}
		sel.Path = tail
		r.Spec.AddSelection(sel)
	}

	for _, c := range sp.src.Criteria() {
		f := collection(c.Path)
		if err := checkOtherFields(c, f); err != nil {
			return err
		}
		if f == nil {
			sp.primary.AddCriterion(*c)
			continue
		}
		r, err := sp.relation(f)
		if err != nil {
			return err
		}
		moved := filter.Criterion{Path: c.Path.Tail(1)}
		for _, cond := range c.Conditions {
			if cond.Op.IsOtherField() {
				cond.Other = cond.Other.Tail(1)
			}
			moved.Conditions = append(moved.Conditions, cond)
		}
		r.Spec.AddCriterion(moved)
	}

	for _, p := range sp.src.Orders() {
		if f := collection(p); f != nil {
			r, err := sp.relation(f)
			if err != nil {
				return err
			}
			r.Spec.AddOrder(p.Tail(1))
			continue
		}
		sp.primary.AddOrder(p)
	}

	for _, p := range sp.src.Groups() {
		if f := collection(p); f != nil {
			r, err := sp.relation(f)
			if err != nil {
				return err
			}
			r.Spec.AddGroup(p.Tail(1))
			continue
		}
		sp.primary.AddGroup(p)
	}

	for _, d := range sp.src.Joins() {
		first := d.Path.Segments[0].Field
		if first.Kind != meta.ToMany {
			sp.primary.AddJoin(*d)
			continue
		}
		_, exists := sp.relations[first.CanonicalName()]
		switch {
		case d.Path.Len() == 1 && d.Fetch:
			if _, err := sp.relation(first); err != nil {
				return err
			}
		case d.Path.Len() == 1:
			// A plain join of a bare collection only filters the roots.
			sp.primary.AddJoin(*d)
		case exists || d.Fetch:
			r, err := sp.relation(first)
			if err != nil {
				return err
			}
			moved := *d
			moved.Path = d.Path.Tail(1)
			r.Spec.AddJoin(moved)
		default:
			sp.primary.AddJoin(*d)
		}
	}
	return nil
}

// checkOtherFields rejects other-field comparisons whose two sides would
// end up in different queries.
func checkOtherFields(c *filter.Criterion, f *meta.Field) error {
	for _, cond := range c.Conditions {
		if !cond.Op.IsOtherField() {
			continue
		}
		if collection(cond.Other) != f {
			return queryerr.InvalidExpression(c.Path.String(),
				"%s cannot compare with %q across a collection", cond.Op, cond.Other.String())
		}
	}
	return nil
}
