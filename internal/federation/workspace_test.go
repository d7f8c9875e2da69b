package federation_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/connector/connectortest"
	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/executor"
	"github.com/maxdata-sh/max/internal/federation"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/node"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/supervise"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// stubAPI is an inline-deployed installation client.
type stubAPI struct {
	instID  id.InstallationID
	started int
	stopped int
	health  supervise.HealthState
}

func (s *stubAPI) Health(ctx context.Context) supervise.HealthStatus {
	state := s.health
	if state == "" {
		state = supervise.Healthy
	}
	return supervise.HealthStatus{State: state}
}

func (s *stubAPI) Start(ctx context.Context) supervise.StartResult {
	s.started++
	return supervise.StartResult{State: supervise.Started}
}

func (s *stubAPI) Stop(ctx context.Context) supervise.StopResult {
	s.stopped++
	return supervise.StopResult{State: supervise.Stopped}
}

func (s *stubAPI) Engine() engine.Engine { return nil }

func (s *stubAPI) Describe(ctx context.Context) (rpc.InstallationInfo, error) {
	return rpc.InstallationInfo{ID: s.instID, Connector: "acmehr", Name: "acme"}, nil
}

func (s *stubAPI) Schema(ctx context.Context) (*schema.Schema, error) {
	return connectortest.Schema(), nil
}

func (s *stubAPI) Sync(ctx context.Context) (rpc.SyncInfo, error) {
	return rpc.SyncInfo{SyncID: "sync-1"}, nil
}

func (s *stubAPI) SyncStatus(ctx context.Context, syncID id.SyncID) (executor.Status, error) {
	return executor.StatusRunning, nil
}

func (s *stubAPI) SyncPause(ctx context.Context, syncID id.SyncID) error  { return nil }
func (s *stubAPI) SyncCancel(ctx context.Context, syncID id.SyncID) error { return nil }

func (s *stubAPI) SyncCompletion(ctx context.Context, syncID id.SyncID) (executor.Completion, error) {
	return executor.Completion{Status: executor.StatusCompleted}, nil
}

type workspaceRig struct {
	ws    *federation.WorkspaceMax
	built []*stubAPI
}

func newWorkspaceRig(t *testing.T) *workspaceRig {
	t.Helper()
	rig := &workspaceRig{}

	connectors := connector.NewRegistry()
	require.NoError(t, connectors.Register(connectortest.New(&connectortest.Data{})))

	inline := &node.InlineDeployer[rpc.InstallationAPI]{
		Build: func(ctx context.Context, cfg config.DeployConfig, spec []byte) (rpc.InstallationAPI, error) {
			api := &stubAPI{}
			rig.built = append(rig.built, api)
			return api, nil
		},
	}

	rig.ws = federation.NewWorkspaceMax(federation.WorkspaceParams{
		ID:         "ws-1",
		Name:       "dev",
		Registry:   federation.NewInstallationRegistry(filepath.Join(t.TempDir(), "max.json")),
		Deployers:  node.NewRegistry[rpc.InstallationAPI](inline),
		Connectors: connectors,
		IDs:        &id.SequenceGenerator{Prefix: "inst"},
		Log:        logger.Nop(),
	})
	return rig
}

func createConfig(name string) rpc.CreateInstallationConfig {
	return rpc.CreateInstallationConfig{
		Connector:  "acmehr",
		Name:       name,
		Deployment: config.DeployConfig{Strategy: node.KindInline},
	}
}

func TestWorkspace_CreateInstallation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newWorkspaceRig(t)

	instID, err := rig.ws.CreateInstallation(ctx, createConfig("acme"))
	require.NoError(t, err)
	require.Equal(t, id.InstallationID("inst-1"), instID, "supervisor stamps the id")
	require.Len(t, rig.built, 1)
	require.Equal(t, 1, rig.built[0].started, "fresh installations are started")

	api, err := rig.ws.Installation(instID)
	require.NoError(t, err)
	require.NotNil(t, api)

	list, err := rig.ws.ListInstallations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, instID, list[0].ID)
	require.Equal(t, "acme", list[0].Name)
	require.False(t, list[0].ConnectedAt.IsZero())
}

func TestWorkspace_CreateDeduplicatesOnConnectorAndName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newWorkspaceRig(t)

	_, err := rig.ws.CreateInstallation(ctx, createConfig("acme"))
	require.NoError(t, err)

	_, err = rig.ws.CreateInstallation(ctx, createConfig("acme"))
	require.Error(t, err)
	require.True(t, federation.ErrInstallationExists.Is(err))
	require.True(t, maxerrors.Has(err, maxerrors.BadInput))

	_, err = rig.ws.CreateInstallation(ctx, createConfig("other"))
	require.NoError(t, err, "a different name under the same connector is fine")
}

func TestWorkspace_CreateUnknownStrategy(t *testing.T) {
	t.Parallel()

	rig := newWorkspaceRig(t)
	cfg := createConfig("acme")
	cfg.Deployment.Strategy = "teleport"
	_, err := rig.ws.CreateInstallation(context.Background(), cfg)
	require.Error(t, err)
	require.True(t, node.ErrUnknownStrategy.Is(err))
}

func TestWorkspace_RemoveInstallation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newWorkspaceRig(t)
	instID, err := rig.ws.CreateInstallation(ctx, createConfig("acme"))
	require.NoError(t, err)

	require.NoError(t, rig.ws.RemoveInstallation(ctx, instID))
	require.Equal(t, 1, rig.built[0].stopped, "removal stops the live node")

	_, err = rig.ws.Installation(instID)
	require.Error(t, err)

	list, err := rig.ws.ListInstallations(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	require.Error(t, rig.ws.RemoveInstallation(ctx, instID), "double removal reports not found")

	_, err = rig.ws.CreateInstallation(ctx, createConfig("acme"))
	require.NoError(t, err, "removal frees the (connector, name) identity")
}

func TestWorkspace_StartStopWalkSupervisor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newWorkspaceRig(t)
	_, err := rig.ws.CreateInstallation(ctx, createConfig("a"))
	require.NoError(t, err)
	_, err = rig.ws.CreateInstallation(ctx, createConfig("b"))
	require.NoError(t, err)

	require.Equal(t, supervise.Started, rig.ws.Start(ctx).State)
	require.Equal(t, supervise.AlreadyRunning, rig.ws.Start(ctx).State)

	require.Equal(t, supervise.Stopped, rig.ws.Stop(ctx).State)
	require.Equal(t, supervise.AlreadyStopped, rig.ws.Stop(ctx).State)
	for _, api := range rig.built {
		require.Equal(t, 1, api.stopped)
	}
}

func TestWorkspace_HealthAggregates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newWorkspaceRig(t)
	require.Equal(t, supervise.Healthy, rig.ws.Health(ctx).State, "no children is healthy")

	_, err := rig.ws.CreateInstallation(ctx, createConfig("a"))
	require.NoError(t, err)
	_, err = rig.ws.CreateInstallation(ctx, createConfig("b"))
	require.NoError(t, err)
	require.Equal(t, supervise.Healthy, rig.ws.Health(ctx).State)

	rig.built[0].health = supervise.Unhealthy
	require.Equal(t, supervise.Degraded, rig.ws.Health(ctx).State)

	rig.built[1].health = supervise.Unhealthy
	require.Equal(t, supervise.Unhealthy, rig.ws.Health(ctx).State)
}

func TestWorkspace_ConnectorQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newWorkspaceRig(t)

	list, err := rig.ws.ListConnectors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "acmehr", list[0].Name)

	sch, err := rig.ws.ConnectorSchema(ctx, "acmehr")
	require.NoError(t, err)
	require.Equal(t, "acmehr", sch.Namespace)

	steps, err := rig.ws.ConnectorOnboarding(ctx, "acmehr")
	require.NoError(t, err)
	require.Len(t, steps, 1)

	_, err = rig.ws.ConnectorSchema(ctx, "ghost")
	require.True(t, connector.ErrUnknownConnector.Is(err))
}
