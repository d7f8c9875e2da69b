package connector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/schema"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// countingConnector counts Descriptor calls to observe the write-once cache.
type countingConnector struct {
	name  string
	calls int
}

func (c *countingConnector) Descriptor() connector.Descriptor {
	c.calls++
	return connector.Descriptor{Name: c.name, Version: "1.0.0"}
}

func (c *countingConnector) Schema() *schema.Schema             { return nil }
func (c *countingConnector) Seeder() connector.Seeder           { return nil }
func (c *countingConnector) Resolver() connector.Resolver       { return nil }
func (c *countingConnector) Onboarding() []connector.OnboardingStep { return nil }

func (c *countingConnector) NewInstallation(ctx context.Context, connectorConfig, credentials []byte) (connector.Installation, error) {
	return nil, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	reg := connector.NewRegistry()
	require.NoError(t, reg.Register(&countingConnector{name: "acmehr"}))

	c, err := reg.Lookup("acmehr")
	require.NoError(t, err)
	require.NotNil(t, c)

	_, err = reg.Lookup("ghost")
	require.Error(t, err)
	require.True(t, connector.ErrUnknownConnector.Is(err))
	require.True(t, maxerrors.Has(err, maxerrors.HasConnector))
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := connector.NewRegistry()
	require.NoError(t, reg.Register(&countingConnector{name: "acmehr"}))
	require.Error(t, reg.Register(&countingConnector{name: "acmehr"}))
}

func TestRegistry_DescriptorCacheIsWriteOnce(t *testing.T) {
	t.Parallel()

	reg := connector.NewRegistry()
	c := &countingConnector{name: "acmehr"}
	require.NoError(t, reg.Register(c))
	calls := c.calls // Register reads the descriptor for the name.

	for range 3 {
		d, err := reg.Describe("acmehr")
		require.NoError(t, err)
		require.Equal(t, "acmehr", d.Name)
	}
	require.Equal(t, calls+1, c.calls, "descriptor resolved once, then cached")
}

func TestRegistry_ListKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	reg := connector.NewRegistry()
	require.NoError(t, reg.Register(&countingConnector{name: "beta"}))
	require.NoError(t, reg.Register(&countingConnector{name: "alpha"}))

	list := reg.List()
	require.Len(t, list, 2)
	require.Equal(t, "beta", list[0].Name)
	require.Equal(t, "alpha", list[1].Name)
}

const declYAML = `
connector:
  name: acmehr
  version: 1.0.0
  description: Acme HR
schema:
  namespace: acmehr
  roots: [Root]
  entities:
    - name: Root
      fields:
        - name: workspaces
          kind: collection
          target: Workspace
    - name: Workspace
      fields:
        - name: name
          kind: scalar
          scalar: string
onboarding:
  - kind: secret
    key: token
    label: API token
`

func TestParseDeclaration(t *testing.T) {
	t.Parallel()

	decl, err := connector.ParseDeclaration([]byte(declYAML))
	require.NoError(t, err)
	require.Equal(t, "acmehr", decl.Connector.Name)
	require.Len(t, decl.Schema.Entities, 2)
	require.Len(t, decl.Onboarding, 1)
	require.Equal(t, connector.OnboardingSecret, decl.Onboarding[0].Kind)
}

func TestParseDeclaration_RejectsOpenSchema(t *testing.T) {
	t.Parallel()

	bad := `
connector:
  name: acmehr
  version: 1.0.0
schema:
  namespace: acmehr
  roots: [Ghost]
  entities:
    - name: Root
`
	_, err := connector.ParseDeclaration([]byte(bad))
	require.Error(t, err)
}

func TestParseDeclaration_RejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := connector.ParseDeclaration([]byte("{not yaml"))
	require.Error(t, err)
	require.True(t, maxerrors.Has(err, maxerrors.BadInput))
}
