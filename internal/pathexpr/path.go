package pathexpr

import (
	"strings"

	"github.com/roach88/pathql/internal/meta"
)

// Mode selects how a trailing relation segment is treated.
type Mode int

const (
	// Select expands a whole related object into its auto-included children.
	Select Mode = iota
	// Sort orders by a related object's identifier.
	Sort
	// Reference keeps a trailing relation as is (where, join, group entries).
	Reference
)

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Segment is one resolved element of a path.
type Segment struct {
	// Owner is the entity the field belongs to.
	Owner *meta.Entity
	// Field is the resolved field.
	Field *meta.Field
}

// Path is a canonical path: resolved segments, a sort direction and the
// enum-stop flag. Two paths are equal iff their String forms are equal.
type Path struct {
	Root      *meta.Entity
	Segments  []Segment
	Direction Direction
	// EnumStop is set when segments after an enum field were ignored.
	EnumStop bool
}

// String returns the canonical dotted form, using alias overrides.
func (p Path) String() string {
	names := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		names[i] = s.Field.CanonicalName()
	}
	return strings.Join(names, ".")
}

// SortString returns the canonical form with its direction suffix.
func (p Path) SortString() string {
	return p.String() + ":" + p.Direction.String()
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.Segments)
}

// Leaf returns the last field of the path.
func (p Path) Leaf() *meta.Field {
	if len(p.Segments) == 0 {
		return nil
	}
	return p.Segments[len(p.Segments)-1].Field
}

// Prefix returns the path made of the first n segments.
func (p Path) Prefix(n int) Path {
	return Path{Root: p.Root, Segments: p.Segments[:n:n]}
}

// Tail re-roots the path at segment n: the result starts at the entity that
// owns segment n.
func (p Path) Tail(n int) Path {
	return Path{
		Root:      p.Segments[n].Owner,
		Segments:  append([]Segment(nil), p.Segments[n:]...),
		Direction: p.Direction,
		EnumStop:  p.EnumStop,
	}
}

// Append returns a new path with one more segment.
func (p Path) Append(owner *meta.Entity, f *meta.Field) Path {
	segs := make([]Segment, len(p.Segments), len(p.Segments)+1)
	copy(segs, p.Segments)
	return Path{
		Root:      p.Root,
		Segments:  append(segs, Segment{Owner: owner, Field: f}),
		Direction: p.Direction,
	}
}

// FirstToMany returns the index of the first to-many segment, or -1.
func (p Path) FirstToMany() int {
	for i, s := range p.Segments {
		if s.Field.Kind == meta.ToMany {
			return i
		}
	}
	return -1
}

