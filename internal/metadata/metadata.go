// Package metadata describes the entities the filter compiler can query:
// scalar fields, associations with their cardinality and mapping columns,
// and the identifier field. It is the only knowledge the compiler needs about
// the database schema.
package metadata

import (
	"fmt"
	"sort"

	"restfilter/internal/sqltype"
)

// Cardinality classifies an association.
type Cardinality int

const (
	// ManyToOne is an owning to-one association: the FK lives on the owner.
	ManyToOne Cardinality = iota
	// OneToOne is a to-one association; it is owning when the FK lives on the owner.
	OneToOne
	// OneToMany is the inverse side of a ManyToOne: the FK lives on the target.
	OneToMany
	// ManyToMany goes through a junction table.
	ManyToMany
)

// ToMany reports whether the association can yield more than one target row.
func (c Cardinality) ToMany() bool {
	return c == OneToMany || c == ManyToMany
}

func (c Cardinality) String() string {
	switch c {
	case ManyToOne:
		return "many_to_one"
	case OneToOne:
		return "one_to_one"
	case OneToMany:
		return "one_to_many"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// Field is a scalar field backed by a column.
type Field struct {
	Name     string
	Column   string
	DataType string
	Kind     sqltype.Kind
	Nullable bool
	// Values lists the members of an ENUM or SET column.
	Values []string
}

// Association links an entity to a target entity.
//
// For to-one associations LocalColumn is a column on the owner and
// RemoteColumn the matching column on the target. For OneToMany, LocalColumn
// is the owner's referenced column and RemoteColumn the FK on the target.
// For ManyToMany, JoinLocalColumn references LocalColumn and JoinRemoteColumn
// references the target's RemoteColumn.
type Association struct {
	Name         string
	Target       string
	Cardinality  Cardinality
	LocalColumn  string
	RemoteColumn string
	// MappedBy names the association on the target that maps the other side, if any.
	MappedBy         string
	JoinTable        string
	JoinLocalColumn  string
	JoinRemoteColumn string
}

// Entity is a queryable table.
type Entity struct {
	Name  string
	Table string
	// Resource is the URL segment the entity is served under. Empty means Name.
	Resource     string
	Identifier   string
	Fields       []Field
	Associations []Association

	fieldIndex       map[string]int
	associationIndex map[string]int
}

// Field looks up a scalar field by name.
func (e *Entity) Field(name string) (*Field, bool) {
	if e.fieldIndex != nil {
		idx, ok := e.fieldIndex[name]
		if !ok {
			return nil, false
		}
		return &e.Fields[idx], true
	}
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// Association looks up an association by name.
func (e *Entity) Association(name string) (*Association, bool) {
	if e.associationIndex != nil {
		idx, ok := e.associationIndex[name]
		if !ok {
			return nil, false
		}
		return &e.Associations[idx], true
	}
	for i := range e.Associations {
		if e.Associations[i].Name == name {
			return &e.Associations[i], true
		}
	}
	return nil, false
}

// ResourceName returns Resource, defaulting to Name.
func (e *Entity) ResourceName() string {
	if e.Resource != "" {
		return e.Resource
	}
	return e.Name
}

// IdentifierField returns the identifier field, or nil when the entity has none.
func (e *Entity) IdentifierField() *Field {
	f, ok := e.Field(e.Identifier)
	if !ok {
		return nil
	}
	return f
}

func (e *Entity) buildIndex() error {
	e.fieldIndex = make(map[string]int, len(e.Fields))
	e.associationIndex = make(map[string]int, len(e.Associations))
	for i, f := range e.Fields {
		if f.Name == "" || f.Column == "" {
			return fmt.Errorf("entity %s: field %d has no name or column", e.Name, i)
		}
		if _, dup := e.fieldIndex[f.Name]; dup {
			return fmt.Errorf("entity %s: duplicate field %s", e.Name, f.Name)
		}
		e.fieldIndex[f.Name] = i
	}
	for i, a := range e.Associations {
		if _, dup := e.fieldIndex[a.Name]; dup {
			return fmt.Errorf("entity %s: association %s collides with a field", e.Name, a.Name)
		}
		if _, dup := e.associationIndex[a.Name]; dup {
			return fmt.Errorf("entity %s: duplicate association %s", e.Name, a.Name)
		}
		e.associationIndex[a.Name] = i
	}
	return nil
}

// Registry holds the entity metadata the compiler resolves paths against.
// A Registry is immutable once built and safe for concurrent reads.
type Registry struct {
	entities  map[string]*Entity
	resources map[string]*Entity
	names     []string
}

// NewRegistry validates the entities and indexes them by name.
func NewRegistry(entities ...*Entity) (*Registry, error) {
	r := &Registry{
		entities:  make(map[string]*Entity, len(entities)),
		resources: make(map[string]*Entity, len(entities)),
	}
	for _, e := range entities {
		if e == nil || e.Name == "" {
			return nil, fmt.Errorf("entity name is required")
		}
		if _, dup := r.entities[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %s", e.Name)
		}
		if err := e.buildIndex(); err != nil {
			return nil, err
		}
		if e.IdentifierField() == nil {
			return nil, fmt.Errorf("entity %s: identifier %q is not a field", e.Name, e.Identifier)
		}
		resource := e.ResourceName()
		if other, dup := r.resources[resource]; dup {
			return nil, fmt.Errorf("entities %s and %s share resource %s", other.Name, e.Name, resource)
		}
		r.entities[e.Name] = e
		r.resources[resource] = e
		r.names = append(r.names, e.Name)
	}
	for _, e := range entities {
		for _, a := range e.Associations {
			if _, ok := r.entities[a.Target]; !ok {
				return nil, fmt.Errorf("entity %s: association %s targets unknown entity %s", e.Name, a.Name, a.Target)
			}
			if a.Cardinality == ManyToMany && (a.JoinTable == "" || a.JoinLocalColumn == "" || a.JoinRemoteColumn == "") {
				return nil, fmt.Errorf("entity %s: many-to-many association %s needs a join table", e.Name, a.Name)
			}
		}
	}
	sort.Strings(r.names)
	return r, nil
}

// Entity returns the entity registered under name.
func (r *Registry) Entity(name string) (*Entity, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entities[name]
	return e, ok
}

// ByResource returns the entity served under resource.
func (r *Registry) ByResource(resource string) (*Entity, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.resources[resource]
	return e, ok
}

// Entities returns all entities sorted by name.
func (r *Registry) Entities() []*Entity {
	if r == nil {
		return nil
	}
	out := make([]*Entity, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.entities[name])
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entities)
}
