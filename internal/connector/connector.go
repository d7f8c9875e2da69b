// Package connector defines the opaque plugin contract a third-party SaaS
// integration satisfies: schema, seeder, resolver, loaders, onboarding.
package connector

import (
	"context"

	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/syncplan"
)

// Descriptor identifies a connector build.
type Descriptor struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Version     string `json:"version" yaml:"version" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// OnboardingStepKind enumerates the onboarding step interpreter's step types.
// The interpreter itself lives outside the core; only the types cross its
// boundary.
type OnboardingStepKind string

const (
	OnboardingPrompt  OnboardingStepKind = "prompt"
	OnboardingSecret  OnboardingStepKind = "secret"
	OnboardingConfirm OnboardingStepKind = "confirm"
)

// OnboardingStep is one declared step of a connector's onboarding flow.
type OnboardingStep struct {
	Kind  OnboardingStepKind `json:"kind" yaml:"kind"`
	Key   string             `json:"key" yaml:"key"`
	Label string             `json:"label" yaml:"label"`
}

// Installation is the live, configured per-tenant object of a connector. It
// supplies the opaque context loaders need (clients, credentials) and
// participates in the node's lifecycle.
type Installation interface {
	Context() any
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Seeder produces the initial sync plan for an installation.
type Seeder interface {
	Seed(ctx context.Context, eng engine.Engine) (*syncplan.Plan, error)
}

// Loader fetches a batch of entities' fields. The ictx argument is the
// installation's opaque context.
type Loader interface {
	LoadFields(ctx context.Context, ictx any, refs []ref.Ref, fields []id.FieldName) ([]engine.EntityInput, error)
}

// CollectionPage is one page of a collection load: the member entities (with
// any fields the source returned for free) plus the continuation cursor.
type CollectionPage struct {
	Items   []engine.EntityInput
	Cursor  string
	HasMore bool
}

// CollectionLoader fetches one page of a parent's collection field.
type CollectionLoader interface {
	LoadCollection(ctx context.Context, ictx any, parent ref.Ref, field id.FieldName, cursor string) (CollectionPage, error)
}

// Resolver maps entity fields to the loader that fetches them, and loader
// names to concrete loaders.
type Resolver interface {
	LoaderFor(t id.EntityType, field id.FieldName) (id.LoaderName, error)
	FieldLoader(name id.LoaderName) (Loader, error)
	CollectionLoader(name id.LoaderName) (CollectionLoader, error)
}

// Connector is the full plugin contract.
type Connector interface {
	Descriptor() Descriptor
	Schema() *schema.Schema
	Seeder() Seeder
	Resolver() Resolver
	Onboarding() []OnboardingStep
	NewInstallation(ctx context.Context, connectorConfig, credentials []byte) (Installation, error)
}
