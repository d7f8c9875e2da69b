// Package connectortest provides an in-memory HR-style connector used by
// executor and federation tests: a root with workspaces, each workspace
// with users.
package connectortest

import (
	"context"

	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/syncplan"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Entity type names of the acmehr schema.
const (
	TypeRoot      id.EntityType = "Root"
	TypeWorkspace id.EntityType = "Workspace"
	TypeUser      id.EntityType = "User"
)

// RootRef is the fixed entry point every sync starts from.
var RootRef = ref.New(TypeRoot, "root")

// User is one stub user record.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Role        string
	Active      bool
}

// Workspace is one stub workspace with its users.
type Workspace struct {
	ID    string
	Name  string
	Users []User
}

// Data is the stub API state behind an installation.
type Data struct {
	Workspaces []Workspace
}

// Schema returns the acmehr entity world.
func Schema() *schema.Schema {
	return &schema.Schema{
		Namespace: "acmehr",
		Entities: []schema.EntityDef{
			{
				Name: TypeRoot,
				Fields: []schema.FieldDef{
					{Name: "workspaces", Kind: schema.FieldCollection, Target: TypeWorkspace},
				},
			},
			{
				Name: TypeWorkspace,
				Fields: []schema.FieldDef{
					{Name: "name", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "users", Kind: schema.FieldCollection, Target: TypeUser},
				},
			},
			{
				Name: TypeUser,
				Fields: []schema.FieldDef{
					{Name: "displayName", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "email", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "role", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "active", Kind: schema.FieldScalar, Scalar: schema.ScalarBoolean},
				},
			},
		},
		Roots: []id.EntityType{TypeRoot},
	}
}

var errNoRecord = maxerrors.Define(
	"connector.record_missing",
	"stub API has no {entityType} {id}",
	maxerrors.NotFound, maxerrors.HasEntityType,
)

// Connector is the acmehr test connector.
type Connector struct {
	data *Data
}

var _ connector.Connector = (*Connector)(nil)

// New builds the connector around stub API data.
func New(data *Data) *Connector {
	return &Connector{data: data}
}

// Descriptor identifies the test connector.
func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{Name: "acmehr", Version: "1.0.0", Description: "Acme HR stub"}
}

// Schema returns the acmehr schema.
func (c *Connector) Schema() *schema.Schema { return Schema() }

// Seeder returns the canonical four-step plan.
func (c *Connector) Seeder() connector.Seeder { return seeder{} }

// Resolver maps every field to the per-type fields loader.
func (c *Connector) Resolver() connector.Resolver { return resolver{} }

// Onboarding declares a single token prompt.
func (c *Connector) Onboarding() []connector.OnboardingStep {
	return []connector.OnboardingStep{
		{Kind: connector.OnboardingSecret, Key: "token", Label: "API token"},
	}
}

// NewInstallation hands the stub data out as the loaders' context.
func (c *Connector) NewInstallation(ctx context.Context, connectorConfig, credentials []byte) (connector.Installation, error) {
	return &installation{data: c.data}, nil
}

type installation struct {
	data *Data
}

func (i *installation) Context() any                    { return i.data }
func (i *installation) Start(ctx context.Context) error { return nil }
func (i *installation) Stop(ctx context.Context) error  { return nil }

type seeder struct{}

func (seeder) Seed(ctx context.Context, eng engine.Engine) (*syncplan.Plan, error) {
	return syncplan.NewPlan(
		syncplan.ForRoot(RootRef).LoadCollection("workspaces"),
		syncplan.ForAll(TypeWorkspace).LoadFields("name"),
		syncplan.ForAll(TypeWorkspace).LoadCollection("users"),
		syncplan.ForAll(TypeUser).LoadFields("displayName", "email", "role", "active"),
	), nil
}

const (
	loaderWorkspaceFields id.LoaderName = "workspace-fields"
	loaderUserFields      id.LoaderName = "user-fields"
	loaderCollections     id.LoaderName = "collections"
)

type resolver struct{}

func (resolver) LoaderFor(t id.EntityType, field id.FieldName) (id.LoaderName, error) {
	switch t {
	case TypeRoot:
		return loaderCollections, nil
	case TypeWorkspace:
		if field == "users" {
			return loaderCollections, nil
		}
		return loaderWorkspaceFields, nil
	case TypeUser:
		return loaderUserFields, nil
	}
	return "", schema.ErrUnknownEntityType(t)
}

func (resolver) FieldLoader(name id.LoaderName) (connector.Loader, error) {
	switch name {
	case loaderWorkspaceFields:
		return fieldsLoader{forType: TypeWorkspace}, nil
	case loaderUserFields:
		return fieldsLoader{forType: TypeUser}, nil
	}
	return nil, maxerrors.Define(
		"connector.unknown_loader",
		"no loader {loader}",
		maxerrors.NotFound, maxerrors.HasLoaderName,
	).New(maxerrors.Props{"loader": string(name)})
}

func (resolver) CollectionLoader(name id.LoaderName) (connector.CollectionLoader, error) {
	return collectionLoader{}, nil
}

type fieldsLoader struct {
	forType id.EntityType
}

func (l fieldsLoader) LoadFields(ctx context.Context, ictx any, refs []ref.Ref, fields []id.FieldName) ([]engine.EntityInput, error) {
	data := ictx.(*Data)
	out := make([]engine.EntityInput, 0, len(refs))
	for _, r := range refs {
		values, err := lookupFields(data, r, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.EntityInput{Ref: r, Fields: values})
	}
	return out, nil
}

func lookupFields(data *Data, r ref.Ref, fields []id.FieldName) (map[id.FieldName]any, error) {
	switch r.Type {
	case TypeWorkspace:
		for _, ws := range data.Workspaces {
			if ws.ID != string(r.ID) {
				continue
			}
			values := make(map[id.FieldName]any, len(fields))
			for _, f := range fields {
				if f == "name" {
					values[f] = ws.Name
				}
			}
			return values, nil
		}
	case TypeUser:
		for _, ws := range data.Workspaces {
			for _, u := range ws.Users {
				if u.ID != string(r.ID) {
					continue
				}
				values := make(map[id.FieldName]any, len(fields))
				for _, f := range fields {
					switch f {
					case "displayName":
						values[f] = u.DisplayName
					case "email":
						values[f] = u.Email
					case "role":
						values[f] = u.Role
					case "active":
						values[f] = u.Active
					}
				}
				return values, nil
			}
		}
	}
	return nil, errNoRecord.New(maxerrors.Props{
		"entityType": string(r.Type),
		"id":         string(r.ID),
	})
}

type collectionLoader struct{}

func (collectionLoader) LoadCollection(ctx context.Context, ictx any, parent ref.Ref, field id.FieldName, cursor string) (connector.CollectionPage, error) {
	data := ictx.(*Data)
	var page connector.CollectionPage
	switch {
	case parent.Type == TypeRoot && field == "workspaces":
		for _, ws := range data.Workspaces {
			page.Items = append(page.Items, engine.EntityInput{Ref: ref.New(TypeWorkspace, id.EntityID(ws.ID))})
		}
	case parent.Type == TypeWorkspace && field == "users":
		for _, ws := range data.Workspaces {
			if ws.ID != string(parent.ID) {
				continue
			}
			for _, u := range ws.Users {
				page.Items = append(page.Items, engine.EntityInput{Ref: ref.New(TypeUser, id.EntityID(u.ID))})
			}
		}
	}
	return page, nil
}
