// Package meta is the entity metadata provider.
//
// Types are registered once, as plain descriptor structs, either from code or
// from a schema file (see internal/schema). The derived Entity of a type is
// built on its first Describe call and cached for the lifetime of the
// registry. Building is memoize-once: concurrent first callers block until a
// single build finishes and then share the same read-only value.
package meta

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the process-wide type descriptor registry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	desc   Descriptor
	once   sync.Once
	entity *Entity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a type descriptor. Registering the same name twice, an empty
// name, duplicate field names or an unknown kind/scalar type is an error.
// Target entity names are not checked here: an unknown target only fails
// when a path actually walks into it.
func (r *Registry) Register(desc Descriptor) error {
	if strings.TrimSpace(desc.Name) == "" {
		return fmt.Errorf("entity name is required")
	}
	if err := validateDescriptor(desc); err != nil {
		return fmt.Errorf("entity %s: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("entity %s already registered", desc.Name)
	}
	// Copy the field slice so later mutation by the caller cannot leak in.
	desc.Fields = append([]FieldDescriptor(nil), desc.Fields...)
	r.entries[desc.Name] = &entry{desc: desc}
	return nil
}

// MustRegister is Register for static registration at startup.
func (r *Registry) MustRegister(descs ...Descriptor) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Describe returns the metadata of a registered type.
// ok is false when the name was never registered.
func (r *Registry) Describe(name string) (*Entity, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.once.Do(func() {
		e.entity = build(e.desc)
	})
	return e.entity, true
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateDescriptor(desc Descriptor) error {
	seen := make(map[string]bool, len(desc.Fields))
	for _, fd := range desc.Fields {
		if fd.Name == "" {
			return fmt.Errorf("field name is required")
		}
		for _, name := range []string{fd.Name, fd.Alias} {
			if name == "" {
				continue
			}
			if seen[name] {
				return fmt.Errorf("duplicate field name or alias %q", name)
			}
			seen[name] = true
		}
		if strings.ContainsAny(fd.Name+fd.Alias, ".{},:") {
			return fmt.Errorf("field %q: names may not contain path syntax", fd.Name)
		}
		kind, err := ParseKind(fd.Kind)
		if err != nil {
			return fmt.Errorf("field %s: %w", fd.Name, err)
		}
		if kind == Scalar && !ScalarType(fd.Type).Valid() {
			return fmt.Errorf("field %s: unknown scalar type %q", fd.Name, fd.Type)
		}
		switch CollectionKind(fd.Collection) {
		case "", List, Set:
		default:
			return fmt.Errorf("field %s: unknown collection kind %q", fd.Name, fd.Collection)
		}
	}
	if desc.Identifier != "" && !seen[desc.Identifier] {
		return fmt.Errorf("identifier field %q not declared", desc.Identifier)
	}
	return nil
}

// build derives the immutable Entity. The descriptor was validated on
// registration, so parse errors cannot happen here.
func build(desc Descriptor) *Entity {
	table := desc.Table
	if table == "" {
		table = strings.ToLower(desc.Name)
	}

	ent := &Entity{
		Name:   desc.Name,
		Table:  table,
		Fields: make([]*Field, 0, len(desc.Fields)),
		index:  make(map[string]*Field, len(desc.Fields)*2),
	}

	for _, fd := range desc.Fields {
		kind, _ := ParseKind(fd.Kind)
		f := &Field{
			Name:        fd.Name,
			Alias:       fd.Alias,
			Type:        fd.Type,
			Kind:        kind,
			EnumValues:  append([]string(nil), fd.EnumValues...),
			Column:      fd.Column,
			ElementType: fd.ElementType,
			Collection:  CollectionKind(fd.Collection),
			Transient:   fd.Transient,
			AutoInclude: !fd.NoAutoInclude,
			Fixed:       fd.Fixed,
		}
		if kind == Scalar {
			f.Scalar = ScalarType(fd.Type)
		}
		if f.Collection == "" {
			f.Collection = List
		}
		if f.Column == "" {
			f.Column = defaultColumn(f, table)
		}

		ent.Fields = append(ent.Fields, f)
		ent.index[f.Name] = f
		if f.Alias != "" {
			ent.index[f.Alias] = f
		}
	}

	idName := desc.Identifier
	if idName == "" {
		idName = "id"
	}
	if id, ok := ent.index[idName]; ok && id.Kind == Scalar {
		ent.Identifier = id
	}
	return ent
}

func defaultColumn(f *Field, ownerTable string) string {
	switch f.Kind {
	case ToOne:
		return f.Name + "_id"
	case ToMany:
		return ownerTable + "_id"
	default:
		return f.Name
	}
}
