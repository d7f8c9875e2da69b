// Package engine is the installation's data plane: the queryable local store
// entities are synced into, plus the per-field sync metadata that records
// freshness.
package engine

import (
	"context"
	"time"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// ProjectionKind discriminates the projection variants.
type ProjectionKind string

const (
	ProjectAll    ProjectionKind = "all"
	ProjectRefs   ProjectionKind = "refs"
	ProjectSelect ProjectionKind = "select"
)

// Projection selects which fields a read returns.
type Projection struct {
	Kind   ProjectionKind `json:"kind"`
	Fields []id.FieldName `json:"fields,omitempty"`
}

// All projects every non-collection field of the entity.
func All() Projection { return Projection{Kind: ProjectAll} }

// Refs projects no fields; only identity comes back.
func Refs() Projection { return Projection{Kind: ProjectRefs} }

// Select projects the named fields.
func Select(fields ...id.FieldName) Projection {
	return Projection{Kind: ProjectSelect, Fields: fields}
}

// ErrFieldNotLoaded covers reads of fields outside the loaded projection.
var ErrFieldNotLoaded = maxerrors.Define(
	"core.field_not_loaded",
	"field {field} of {ref} was not loaded",
	maxerrors.NotFound, maxerrors.HasEntityRef, maxerrors.HasEntityField,
)

// EntityResult is one entity read with its selected fields.
type EntityResult struct {
	Ref    ref.Ref                `json:"ref"`
	Fields map[id.FieldName]any   `json:"fields,omitempty"`
}

// Get returns a projected field value, failing with core.field_not_loaded
// for fields outside the projection.
func (r EntityResult) Get(field id.FieldName) (any, error) {
	if v, ok := r.Fields[field]; ok {
		return v, nil
	}
	return nil, ErrFieldNotLoaded.New(maxerrors.Props{
		"ref":   r.Ref.Key(),
		"field": string(field),
	})
}

// EntityInput is one upsert: a ref plus field values. Collection field
// values are []ref.Ref and merge into the existing membership.
type EntityInput struct {
	Ref    ref.Ref              `json:"ref"`
	Fields map[id.FieldName]any `json:"fields,omitempty"`
}

// Page is a pagination request. An empty cursor starts from the beginning.
type Page struct {
	Cursor string `json:"cursor,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// RefPage is one page of refs.
type RefPage struct {
	Refs    []ref.Ref `json:"refs"`
	Cursor  string    `json:"cursor,omitempty"`
	HasMore bool      `json:"hasMore"`
}

// EntityPage is one page of entity results.
type EntityPage struct {
	Entities []EntityResult `json:"entities"`
	Cursor   string         `json:"cursor,omitempty"`
	HasMore  bool           `json:"hasMore"`
}

// Engine is the read/write/page/query surface of an installation's store.
type Engine interface {
	Load(ctx context.Context, r ref.Ref, projection Projection) (EntityResult, error)
	LoadField(ctx context.Context, r ref.Ref, field id.FieldName) (any, error)
	LoadCollection(ctx context.Context, r ref.Ref, field id.FieldName, page *Page) (RefPage, error)
	Store(ctx context.Context, input EntityInput) (ref.Ref, error)
	LoadPage(ctx context.Context, t id.EntityType, projection Projection, page *Page) (EntityPage, error)
	Query(ctx context.Context, q Query) (EntityPage, error)
}

// SyncMeta records per-field sync timestamps, keyed by (ref key, field),
// kept separate from entity data so freshness queries can join against it.
type SyncMeta interface {
	RecordFieldSync(ctx context.Context, r ref.Ref, fields []id.FieldName, at time.Time) error
	StaleFields(ctx context.Context, r ref.Ref, fields []id.FieldName, maxAge time.Duration) ([]id.FieldName, error)
	InvalidateFields(ctx context.Context, r ref.Ref, fields []id.FieldName) error
}
