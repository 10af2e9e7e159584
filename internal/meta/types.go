package meta

import (
	"fmt"
	"strings"
)

// Kind is the association kind of a persistent field.
type Kind int

const (
	// Scalar fields map to a single column.
	Scalar Kind = iota
	// Embedded fields are value objects stored in the owner's table under a
	// column prefix.
	Embedded
	// ToOne fields reference another entity through a foreign key column in
	// the owner's table.
	ToOne
	// ToMany fields are collections of another entity whose table carries a
	// back-reference column to the owner.
	ToMany
)

var kindNames = map[Kind]string{
	Scalar:   "scalar",
	Embedded: "embedded",
	ToOne:    "to_one",
	ToMany:   "to_many",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses the textual form used by schema files.
// An empty string is Scalar.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scalar":
		return Scalar, nil
	case "embedded":
		return Embedded, nil
	case "to_one", "toone", "one":
		return ToOne, nil
	case "to_many", "tomany", "many":
		return ToMany, nil
	default:
		return Scalar, fmt.Errorf("unknown association kind %q", s)
	}
}

// ScalarType is the value type of a scalar field.
type ScalarType string

const (
	String ScalarType = "string"
	Int    ScalarType = "int"
	Float  ScalarType = "float"
	Bool   ScalarType = "bool"
	Time   ScalarType = "time"
	Enum   ScalarType = "enum"
)

// Valid reports whether t is a known scalar type.
func (t ScalarType) Valid() bool {
	switch t {
	case String, Int, Float, Bool, Time, Enum:
		return true
	default:
		return false
	}
}

// CollectionKind is the container used when materializing a to-many field.
type CollectionKind string

const (
	// List keeps every element in arrival order.
	List CollectionKind = "list"
	// Set drops elements equal to one already present.
	Set CollectionKind = "set"
)

// FieldDescriptor is the registration form of a field. Zero values select
// the defaults described on each member.
type FieldDescriptor struct {
	// Name is the declared field name.
	Name string `json:"name" yaml:"name"`

	// Type is the scalar type for scalar fields, or the target entity name
	// for embedded, to-one and to-many fields.
	Type string `json:"type" yaml:"type"`

	// Kind is the association kind. Empty means scalar.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Column is the storage column. Defaults: the field name for scalars,
	// the field name as prefix for embedded values, <name>_id for to-one
	// foreign keys and <owner table>_id for to-many back references.
	Column string `json:"column,omitempty" yaml:"column,omitempty"`

	// Alias replaces the field name in canonical paths and results.
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`

	// ElementType overrides Type as the element entity of a to-many field.
	ElementType string `json:"element,omitempty" yaml:"element,omitempty"`

	// Collection is "list" (default) or "set".
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`

	// EnumValues lists the allowed values of an enum field.
	EnumValues []string `json:"values,omitempty" yaml:"values,omitempty"`

	// Transient fields are never persisted or selected.
	Transient bool `json:"transient,omitempty" yaml:"transient,omitempty"`

	// NoAutoInclude keeps the field out of whole-object expansion.
	NoAutoInclude bool `json:"noAutoInclude,omitempty" yaml:"no_auto_include,omitempty"`

	// Fixed relations expand to their identifier only.
	Fixed bool `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// Descriptor is the registration form of an entity type.
type Descriptor struct {
	// Name is the entity type name used in paths and schema references.
	Name string `json:"name" yaml:"name"`

	// Table defaults to the lower-cased name.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	// Identifier names the identifier field. Defaults to "id" when such a
	// field exists.
	Identifier string `json:"id,omitempty" yaml:"id,omitempty"`

	// Fields are kept in declaration order.
	Fields []FieldDescriptor `json:"fields" yaml:"fields"`
}

// Field is the derived, immutable metadata of one field.
type Field struct {
	Name        string
	Alias       string
	Type        string
	Kind        Kind
	Scalar      ScalarType
	EnumValues  []string
	Column      string
	ElementType string
	Collection  CollectionKind
	Transient   bool
	AutoInclude bool
	Fixed       bool
}

// CanonicalName is the name used in canonical paths: the alias override
// when present, the declared name otherwise.
func (f *Field) CanonicalName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Target returns the entity type a relation or embedded field points to.
// For to-many fields the element type override wins over the declared type.
func (f *Field) Target() string {
	if f.Kind == ToMany && f.ElementType != "" {
		return f.ElementType
	}
	if f.Kind == Scalar {
		return ""
	}
	return f.Type
}

// IsRelation reports whether the field is a to-one or to-many association.
func (f *Field) IsRelation() bool {
	return f.Kind == ToOne || f.Kind == ToMany
}

// IsLeaf reports whether the field maps to exactly one column.
func (f *Field) IsLeaf() bool {
	return f.Kind == Scalar
}

// Entity is the derived, immutable metadata of one entity type.
// Published values must not be mutated.
type Entity struct {
	Name       string
	Table      string
	Identifier *Field
	Fields     []*Field

	index map[string]*Field
}

// Field looks a field up by declared name or alias.
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.index[name]
	return f, ok
}

// HasIdentifier reports whether the entity declares an identifier field.
func (e *Entity) HasIdentifier() bool {
	return e.Identifier != nil
}

// Persistent returns the non-transient fields in declaration order.
func (e *Entity) Persistent() []*Field {
	out := make([]*Field, 0, len(e.Fields))
	for _, f := range e.Fields {
		if !f.Transient {
			out = append(out, f)
		}
	}
	return out
}
