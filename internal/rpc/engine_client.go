package rpc

import (
	"context"

	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/transport"
)

// EngineClient implements the engine contract by forwarding to the engine
// target of a transport.
type EngineClient struct {
	c caller
}

var _ engine.Engine = (*EngineClient)(nil)

// NewEngineClient builds an engine proxy over t.
func NewEngineClient(t transport.Transport) *EngineClient {
	return &EngineClient{c: caller{t: t}}
}

// Load forwards an entity read.
func (p *EngineClient) Load(ctx context.Context, r ref.Ref, projection engine.Projection) (engine.EntityResult, error) {
	var result engine.EntityResult
	err := p.c.call(ctx, TargetEngine, "load", &result, r, projection)
	return result, err
}

// LoadField forwards a single field read.
func (p *EngineClient) LoadField(ctx context.Context, r ref.Ref, field id.FieldName) (any, error) {
	var value any
	err := p.c.call(ctx, TargetEngine, "loadField", &value, r, field)
	return value, err
}

// LoadCollection forwards a collection page read.
func (p *EngineClient) LoadCollection(ctx context.Context, r ref.Ref, field id.FieldName, page *engine.Page) (engine.RefPage, error) {
	var result engine.RefPage
	err := p.c.call(ctx, TargetEngine, "loadCollection", &result, r, field, page)
	return result, err
}

// Store forwards an upsert.
func (p *EngineClient) Store(ctx context.Context, input engine.EntityInput) (ref.Ref, error) {
	var stored ref.Ref
	err := p.c.call(ctx, TargetEngine, "store", &stored, input)
	return stored, err
}

// LoadPage forwards a paged type listing.
func (p *EngineClient) LoadPage(ctx context.Context, t id.EntityType, projection engine.Projection, page *engine.Page) (engine.EntityPage, error) {
	var result engine.EntityPage
	err := p.c.call(ctx, TargetEngine, "loadPage", &result, t, projection, page)
	return result, err
}

// Query forwards a query.
func (p *EngineClient) Query(ctx context.Context, q engine.Query) (engine.EntityPage, error) {
	var result engine.EntityPage
	err := p.c.call(ctx, TargetEngine, "query", &result, q)
	return result, err
}
