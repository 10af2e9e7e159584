package pathexpr

import (
	"fmt"
	"strings"

	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/queryerr"
)

// Resolver walks flat paths against entity metadata.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	registry *meta.Registry
}

// NewResolver creates a resolver over a metadata registry.
func NewResolver(registry *meta.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Registry returns the metadata registry the resolver reads.
func (r *Resolver) Registry() *meta.Registry {
	return r.registry
}

// Entity looks up a root entity type.
func (r *Resolver) Entity(name string) (*meta.Entity, error) {
	ent, ok := r.registry.Describe(name)
	if !ok {
		return nil, &queryerr.Error{
			Code:    queryerr.CodeFieldNotFound,
			Message: fmt.Sprintf("entity type %q is not registered", name),
			Entity:  name,
		}
	}
	return ent, nil
}

// ResolveList normalizes a comma separated expression and resolves every
// path in it. The result is deduplicated by canonical form, keeping the
// first occurrence.
func (r *Resolver) ResolveList(root *meta.Entity, raw string, mode Mode) ([]Path, error) {
	var out []Path
	seen := make(map[string]bool)
	for _, flat := range Normalize(raw) {
		paths, err := r.Resolve(root, flat, mode)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			key := p.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// ResolveOne resolves a single flat path in Reference mode: a trailing
// relation is returned as is instead of being expanded.
func (r *Resolver) ResolveOne(root *meta.Entity, flat string) (Path, error) {
	paths, err := r.Resolve(root, flat, Reference)
	if err != nil {
		return Path{}, err
	}
	return paths[0], nil
}

// Resolve resolves one flat path. Select mode may return several paths when
// the path ends at a whole related object.
func (r *Resolver) Resolve(root *meta.Entity, flat string, mode Mode) ([]Path, error) {
	flat = strings.TrimSpace(flat)
	if flat == "" {
		return nil, queryerr.InvalidExpression(flat, "empty field path")
	}
	if strings.ContainsAny(flat, "{}") {
		return nil, queryerr.InvalidExpression(flat, "unbalanced group braces")
	}

	rawSegs := strings.Split(flat, ".")
	for _, raw := range rawSegs {
		if name, _, _ := parseSegment(raw); name == "" {
			return nil, queryerr.InvalidExpression(flat, "empty path segment")
		}
	}

	path := Path{Root: root}
	cur := root

	for i, raw := range rawSegs {
		name, dir, marked := parseSegment(raw)
		if marked {
			path.Direction = dir
		}

		f, ok := cur.Field(name)
		if !ok || f.Transient {
			return nil, queryerr.FieldNotFound(root.Name, flat, name)
		}
		path = path.Append(cur, f)
		last := i == len(rawSegs)-1

		if f.Kind == meta.Scalar {
			if last {
				return []Path{path}, nil
			}
			if f.Scalar == meta.Enum {
				// Enums are selected as a whole; deeper segments are ignored.
				path.EnumStop = true
				if mode == Sort {
					// Markers on the ignored segments still apply.
					for _, rest := range rawSegs[i+1:] {
						if _, d, m := parseSegment(rest); m {
							path.Direction = d
						}
					}
				}
				return []Path{path}, nil
			}
			next, _, _ := parseSegment(rawSegs[i+1])
			return nil, queryerr.FieldNotFound(root.Name, flat, next)
		}

		target, err := r.target(root, flat, f)
		if err != nil {
			return nil, err
		}

		if !last {
			cur = target
			continue
		}

		switch mode {
		case Select:
			return r.expand(root, flat, path, f, target, map[string]bool{root.Name: true})
		case Sort:
			return r.sortTarget(flat, path, f, target)
		default:
			return []Path{path}, nil
		}
	}

	// Unreachable: the loop always returns on its last segment.
	return []Path{path}, nil
}

// target resolves the entity a relation or embedded field points to.
func (r *Resolver) target(root *meta.Entity, flat string, f *meta.Field) (*meta.Entity, error) {
	name := f.Target()
	ent, ok := r.registry.Describe(name)
	if name == "" || !ok {
		if f.Kind == meta.ToMany {
			return nil, queryerr.CollectionTargetUndefined(root.Name, flat, f.Name)
		}
		return nil, &queryerr.Error{
			Code:    queryerr.CodeFieldNotFound,
			Message: fmt.Sprintf("type %q of field %q is not registered", name, f.Name),
			Path:    flat,
			Entity:  root.Name,
		}
	}
	return ent, nil
}

// sortTarget turns a sort on a whole related object into a sort on its
// identifier. Embedded values and collections have no single sort key.
func (r *Resolver) sortTarget(flat string, path Path, f *meta.Field, target *meta.Entity) ([]Path, error) {
	if f.Kind == meta.ToMany {
		return nil, queryerr.InvalidExpression(flat, "cannot sort by collection %q", f.Name)
	}
	if f.Kind == meta.Embedded || !target.HasIdentifier() {
		return nil, queryerr.InvalidExpression(flat, "cannot sort by whole object %q", f.Name)
	}
	dir := path.Direction
	p := path.Append(target, target.Identifier)
	p.Direction = dir
	return []Path{p}, nil
}

// expand returns every auto-included persistent child of a whole related
// object, recursively. visiting guards against cycles between entity types:
// a type already being expanded contributes only its identifier.
func (r *Resolver) expand(root *meta.Entity, flat string, path Path, f *meta.Field, target *meta.Entity, visiting map[string]bool) ([]Path, error) {
	if f.Fixed || visiting[target.Name] {
		if f.Kind != meta.Embedded && target.HasIdentifier() {
			return []Path{path.Append(target, target.Identifier)}, nil
		}
		return nil, nil
	}

	visiting[target.Name] = true
	defer delete(visiting, target.Name)

	var out []Path
	for _, child := range target.Persistent() {
		if !child.AutoInclude {
			continue
		}
		p := path.Append(target, child)
		if child.Kind == meta.Scalar {
			out = append(out, p)
			continue
		}
		childTarget, err := r.target(root, flat, child)
		if err != nil {
			return nil, err
		}
		nested, err := r.expand(root, flat, p, child, childTarget, visiting)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// parseSegment strips sort markers from one raw segment.
// A leading "-" means descending, "+" ascending; a trailing ":asc"/":desc"
// wins over the leading marker.
func parseSegment(raw string) (name string, dir Direction, marked bool) {
	name = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(name, "-"):
		dir, marked = Desc, true
		name = name[1:]
	case strings.HasPrefix(name, "+"):
		dir, marked = Asc, true
		name = name[1:]
	}
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		switch strings.ToLower(name[idx+1:]) {
		case "asc":
			dir, marked = Asc, true
			name = name[:idx]
		case "desc":
			dir, marked = Desc, true
			name = name[:idx]
		}
	}
	return strings.TrimSpace(name), dir, marked
}
