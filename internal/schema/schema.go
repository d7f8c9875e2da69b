// Package schema describes the closed world of entities a connector syncs.
package schema

import (
	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// FieldKind discriminates the field definition variants.
type FieldKind string

const (
	FieldScalar     FieldKind = "scalar"
	FieldRef        FieldKind = "ref"
	FieldCollection FieldKind = "collection"
)

// ScalarKind enumerates the scalar value types.
type ScalarKind string

const (
	ScalarString  ScalarKind = "string"
	ScalarNumber  ScalarKind = "number"
	ScalarBoolean ScalarKind = "boolean"
	ScalarDate    ScalarKind = "date"
)

// FieldDef is one field on an entity definition. Ref and collection fields
// name their target entity so cyclic graphs stay acyclic in memory.
type FieldDef struct {
	Name   id.FieldName  `json:"name" yaml:"name" validate:"required"`
	Kind   FieldKind     `json:"kind" yaml:"kind" validate:"required,oneof=scalar ref collection"`
	Scalar ScalarKind    `json:"scalar,omitempty" yaml:"scalar,omitempty"`
	Target id.EntityType `json:"target,omitempty" yaml:"target,omitempty"`
}

// EntityDef declares one entity type and its fields.
type EntityDef struct {
	Name   id.EntityType `json:"name" yaml:"name" validate:"required"`
	Fields []FieldDef    `json:"fields" yaml:"fields"`
}

// Field looks up a field definition by name.
func (e EntityDef) Field(name id.FieldName) (FieldDef, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

var (
	errUnknownEntity = maxerrors.Define(
		"core.unknown_entity_type",
		"unknown entity type {entityType}",
		maxerrors.NotFound, maxerrors.HasEntityType,
	)
	errInvalidSchema = maxerrors.Define(
		"core.invalid_schema",
		"invalid schema {namespace}: {detail}",
		maxerrors.BadInput,
	)
)

// ErrUnknownEntityType instantiates the shared unknown-entity-type error.
func ErrUnknownEntityType(t id.EntityType) error {
	return errUnknownEntity.New(maxerrors.Props{"entityType": string(t)})
}

// Schema is the closed entity world of one connector. Roots are the entry
// points a seeder may reference.
type Schema struct {
	Namespace string          `json:"namespace" yaml:"namespace" validate:"required"`
	Entities  []EntityDef     `json:"entities" yaml:"entities" validate:"required,dive"`
	Roots     []id.EntityType `json:"roots" yaml:"roots" validate:"required,min=1"`
}

// Entity looks up an entity definition, failing with core.unknown_entity_type.
func (s *Schema) Entity(t id.EntityType) (EntityDef, error) {
	for _, e := range s.Entities {
		if e.Name == t {
			return e, nil
		}
	}
	return EntityDef{}, ErrUnknownEntityType(t)
}

// Validate checks schema closure: every root and every ref/collection target
// must be a declared entity.
func (s *Schema) Validate() error {
	known := make(map[id.EntityType]struct{}, len(s.Entities))
	for _, e := range s.Entities {
		known[e.Name] = struct{}{}
	}
	fail := func(detail string) error {
		return errInvalidSchema.New(maxerrors.Props{
			"namespace": s.Namespace,
			"detail":    detail,
		})
	}
	for _, root := range s.Roots {
		if _, ok := known[root]; !ok {
			return fail("root " + string(root) + " is not a declared entity")
		}
	}
	for _, e := range s.Entities {
		for _, f := range e.Fields {
			switch f.Kind {
			case FieldRef, FieldCollection:
				if _, ok := known[f.Target]; !ok {
					return fail(string(e.Name) + "." + string(f.Name) +
						" targets undeclared entity " + string(f.Target))
				}
			case FieldScalar:
				if f.Scalar == "" {
					return fail(string(e.Name) + "." + string(f.Name) + " is missing a scalar kind")
				}
			}
		}
	}
	return nil
}
