// Package reassemble turns flat result rows into nested objects.
//
// Column aliases are dotted canonical paths. Each dot descends one level:
// embedded and to-one segments become nested objects, to-many segments
// become collections. Rows carrying the same root identifier are merged
// into one object, and secondary collection rows are attached to their
// parents by Merge.
package reassemble

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/plan"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/record"
	"github.com/roach88/pathql/internal/store"
)

// Row is one materialized object with its correlation keys.
type Row struct {
	// Key is the root identifier, nil when the plan did not project it.
	Key any
	// ParentKey is the owning parent's identifier in secondary results.
	ParentKey any
	Object    record.Object
}

// Reassembler materializes rows against entity metadata.
// It holds no per-call state.
type Reassembler struct {
	registry *meta.Registry
}

// New creates a Reassembler.
func New(registry *meta.Registry) *Reassembler {
	return &Reassembler{registry: registry}
}

// Rows materializes the rows of one query rooted at root. Rows sharing a
// key are merged in arrival order.
func (r *Reassembler) Rows(root *meta.Entity, rows []store.Row) ([]Row, error) {
	m := &materializer{
		registry: r.registry,
		root:     root,
		byKey:    make(map[string]*Row),
		elements: make(map[string]record.Object),
	}
	for i, row := range rows {
		if err := m.row(i, row); err != nil {
			return nil, err
		}
	}

	out := make([]Row, len(m.order))
	for i, row := range m.order {
		out[i] = *row
	}
	return out, nil
}

type materializer struct {
	registry *meta.Registry
	root     *meta.Entity
	order    []*Row
	byKey    map[string]*Row
	// elements indexes collection elements by owner chain and element id.
	elements map[string]record.Object
}

func (m *materializer) row(n int, row store.Row) error {
	if len(row.Columns) != len(row.Values) {
		return m.fail("", fmt.Errorf("row %d has %d columns and %d values", n, len(row.Columns), len(row.Values)))
	}

	key, err := m.key(row)
	if err != nil {
		return err
	}

	var out *Row
	chain := fmt.Sprintf("#%d", n)
	if key != nil {
		chain = fmt.Sprint(key)
		out = m.byKey[chain]
	}
	if out == nil {
		out = &Row{Key: key, Object: record.Object{}}
		m.order = append(m.order, out)
		if key != nil {
			m.byKey[chain] = out
		}
	}

	elementIDs := make(map[string]any)
	for i, col := range row.Columns {
		if rel, ok := strings.CutPrefix(col, plan.ReservedIDAlias+"."); ok {
			elementIDs[rel] = row.Values[i]
		}
	}

	for i, col := range row.Columns {
		v := row.Values[i]
		switch {
		case col == plan.ReservedParentAlias:
			out.ParentKey = v
		case strings.HasPrefix(col, filter.ReservedAliasPrefix):
			// Correlation columns are not part of the object.
		default:
			if err := m.set(out.Object, chain, col, v, elementIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

// key returns the row's root identifier: the reserved id column when
// present, else the identifier's own column.
func (m *materializer) key(row store.Row) (any, error) {
	v, ok := row.Get(plan.ReservedIDAlias)
	if !ok && m.root.HasIdentifier() {
		v, ok = row.Get(m.root.Identifier.CanonicalName())
	}
	if !ok || v == nil {
		return nil, nil
	}
	if m.root.HasIdentifier() {
		n, err := m.root.Identifier.Normalize(v)
		if err != nil {
			return nil, m.fail(plan.ReservedIDAlias, err)
		}
		return n, nil
	}
	return v, nil
}

// set stores one value at a dotted alias below obj.
func (m *materializer) set(obj record.Object, chain, alias string, v any, elementIDs map[string]any) error {
	segs := strings.Split(alias, ".")
	ent := m.root
	cur := obj

	for i, seg := range segs[:len(segs)-1] {
		var f *meta.Field
		if ent != nil {
			f, _ = ent.Field(seg)
		}
		if f == nil {
			// Not a metadata path, such as a custom alias with dots.
			child, ok := cur.Child(seg)
			if !ok {
				return m.conflict(alias, seg)
			}
			cur, ent = child, nil
			continue
		}

		switch f.Kind {
		case meta.Scalar:
			return m.fail(alias, fmt.Errorf("scalar field %q has no member %q", seg, segs[i+1]))

		case meta.Embedded, meta.ToOne:
			if id, correlated := elementIDs[strings.Join(segs[:i+1], ".")]; correlated && id == nil {
				// Outer join without a related row.
				if existing, ok := cur[f.CanonicalName()]; ok && existing != nil {
					return m.conflict(alias, seg)
				}
				cur[f.CanonicalName()] = nil
				return nil
			}
			child, ok := cur.Child(f.CanonicalName())
			if !ok {
				return m.conflict(alias, seg)
			}
			cur, ent = child, m.target(f)

		case meta.ToMany:
			prefix := strings.Join(segs[:i+1], ".")
			elems, ok := cur.Collection(f.CanonicalName())
			if !ok {
				return m.conflict(alias, seg)
			}

			var elem record.Object
			if id, correlated := elementIDs[prefix]; correlated {
				if id == nil {
					// Outer join without a matching element.
					if elems == nil {
						cur[f.CanonicalName()] = []record.Object{}
					}
					return nil
				}
				chain += "/" + prefix + "=" + fmt.Sprint(id)
				elem = m.elements[chain]
				if elem == nil {
					elem = record.Object{}
					m.elements[chain] = elem
					elems = append(elems, elem)
				}
			} else {
				// No element identifier: the last element is the current one.
				if len(elems) == 0 {
					elems = append(elems, record.Object{})
				}
				elem = elems[len(elems)-1]
			}
			cur[f.CanonicalName()] = elems
			cur, ent = elem, m.target(f)
		}
	}

	leaf := segs[len(segs)-1]
	if existing, ok := cur[leaf]; ok && existing != nil {
		if _, isObj := record.AsObject(existing); isObj {
			return m.conflict(alias, leaf)
		}
		if _, isColl := existing.([]record.Object); isColl {
			return m.conflict(alias, leaf)
		}
	}

	var f *meta.Field
	if ent != nil {
		f, _ = ent.Field(leaf)
	}
	switch {
	case f == nil:
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		cur[leaf] = v
	case f.Kind == meta.Scalar:
		n, err := f.Normalize(v)
		if err != nil {
			return m.fail(alias, err)
		}
		cur[f.CanonicalName()] = n
	default:
		return m.fail(alias, fmt.Errorf("field %q is a %s and cannot hold a single value", leaf, f.Kind))
	}
	return nil
}

func (m *materializer) target(f *meta.Field) *meta.Entity {
	ent, ok := m.registry.Describe(f.Target())
	if !ok {
		return nil
	}
	return ent
}

func (m *materializer) conflict(alias, seg string) error {
	return m.fail(alias, fmt.Errorf("%q already holds a value of another shape", seg))
}

func (m *materializer) fail(alias string, err error) error {
	return &queryerr.Error{
		Code:    queryerr.CodeResultMappingFailure,
		Message: "cannot map result row",
		Path:    alias,
		Entity:  m.root.Name,
		Err:     err,
	}
}

// Merge attaches secondary rows to their parents under name. Every parent
// gets the collection, empty when no child references it. Set collections
// drop children equal to one already present: same key, or deeply equal
// when keys are missing.
func (r *Reassembler) Merge(parents []Row, field *meta.Field, name string, children []Row) error {
	groups := make(map[string][]Row)
	for _, c := range children {
		if c.ParentKey == nil {
			return &queryerr.Error{
				Code:    queryerr.CodeResultMappingFailure,
				Message: "collection row without parent key",
				Path:    name,
			}
		}
		k := parentKey(c.ParentKey)
		groups[k] = append(groups[k], c)
	}

	for _, p := range parents {
		elems, ok := p.Object.Collection(name)
		if !ok {
			return &queryerr.Error{
				Code:    queryerr.CodeResultMappingFailure,
				Message: fmt.Sprintf("%q already holds a value that is not a collection", name),
				Path:    name,
			}
		}
		if elems == nil {
			elems = []record.Object{}
		}
		if p.Key != nil {
			seen := make(map[string]bool)
			for _, c := range groups[parentKey(p.Key)] {
				if field.Collection == meta.Set {
					if c.Key != nil {
						k := parentKey(c.Key)
						if seen[k] {
							continue
						}
						seen[k] = true
					} else if containsObject(elems, c.Object) {
						continue
					}
				}
				elems = append(elems, c.Object)
			}
		}
		p.Object[name] = elems
	}
	return nil
}

// parentKey normalizes identifier values so that drivers returning int32
// for one query and int64 for another still correlate.
func parentKey(v any) string {
	return fmt.Sprint(v)
}

func containsObject(elems []record.Object, obj record.Object) bool {
	for _, e := range elems {
		if reflect.DeepEqual(e, obj) {
			return true
		}
	}
	return false
}
