package federation_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/federation"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/node"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/supervise"
)

// stubWorkspaceAPI records lifecycle calls for reconcile assertions.
type stubWorkspaceAPI struct {
	started int
}

func (s *stubWorkspaceAPI) Health(ctx context.Context) supervise.HealthStatus {
	return supervise.HealthStatus{State: supervise.Healthy}
}

func (s *stubWorkspaceAPI) Start(ctx context.Context) supervise.StartResult {
	s.started++
	return supervise.StartResult{State: supervise.Started}
}

func (s *stubWorkspaceAPI) Stop(ctx context.Context) supervise.StopResult {
	return supervise.StopResult{State: supervise.Stopped}
}

func (s *stubWorkspaceAPI) ListInstallations(ctx context.Context) ([]rpc.InstallationSummary, error) {
	return nil, nil
}

func (s *stubWorkspaceAPI) CreateInstallation(ctx context.Context, cfg rpc.CreateInstallationConfig) (id.InstallationID, error) {
	return "", nil
}

func (s *stubWorkspaceAPI) ConnectInstallation(ctx context.Context, cfg rpc.ConnectInstallationConfig) (id.InstallationID, error) {
	return "", nil
}

func (s *stubWorkspaceAPI) RemoveInstallation(ctx context.Context, instID id.InstallationID) error {
	return nil
}

func (s *stubWorkspaceAPI) ListConnectors(ctx context.Context) ([]connector.Descriptor, error) {
	return nil, nil
}

func (s *stubWorkspaceAPI) ConnectorSchema(ctx context.Context, name string) (*schema.Schema, error) {
	return nil, nil
}

func (s *stubWorkspaceAPI) ConnectorOnboarding(ctx context.Context, name string) ([]connector.OnboardingStep, error) {
	return nil, nil
}

func (s *stubWorkspaceAPI) Installation(instID id.InstallationID) (rpc.InstallationAPI, error) {
	return nil, supervise.ErrNodeNotFound.New(nil)
}

type globalRig struct {
	global   *federation.GlobalMax
	registry *federation.WorkspaceRegistry
	built    []*stubWorkspaceAPI
}

func newGlobalRig(t *testing.T) *globalRig {
	t.Helper()
	rig := &globalRig{}
	rig.registry = federation.NewWorkspaceRegistry(filepath.Join(t.TempDir(), "workspaces.json"))

	inline := &node.InlineDeployer[rpc.WorkspaceAPI]{
		Build: func(ctx context.Context, cfg config.DeployConfig, spec []byte) (rpc.WorkspaceAPI, error) {
			api := &stubWorkspaceAPI{}
			rig.built = append(rig.built, api)
			return api, nil
		},
	}
	rig.global = federation.NewGlobalMax(federation.GlobalParams{
		Registry:  rig.registry,
		Deployers: node.NewRegistry[rpc.WorkspaceAPI](inline),
		IDs:       &id.SequenceGenerator{Prefix: "ws"},
		Log:       logger.Nop(),
	})
	return rig
}

func TestGlobal_StartReconcilesPersistedWorkspaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newGlobalRig(t)
	require.NoError(t, rig.registry.Put("ws-1", config.WorkspaceEntry{
		Name: "dev", ProjectRoot: "/tmp/dev", Hosting: node.KindInline,
	}))
	require.NoError(t, rig.registry.Put("ws-2", config.WorkspaceEntry{
		Name: "prod", ProjectRoot: "/tmp/prod", Hosting: node.KindInline,
	}))

	require.Equal(t, supervise.Started, rig.global.Start(ctx).State)
	require.Equal(t, supervise.AlreadyRunning, rig.global.Start(ctx).State)
	require.Len(t, rig.built, 2, "persisted workspaces are rebuilt via connect")
	for _, api := range rig.built {
		require.Equal(t, 1, api.started)
	}

	ws, err := rig.global.Workspace("ws-1")
	require.NoError(t, err)
	require.NotNil(t, ws)

	_, err = rig.global.Workspace("ghost")
	require.Error(t, err)
}

func TestGlobal_ConnectAndRemoveWorkspace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newGlobalRig(t)

	wsID, err := rig.global.ConnectWorkspace(ctx, rpc.ConnectWorkspaceConfig{
		Name:        "dev",
		ProjectRoot: "/tmp/dev",
		Deployment:  config.DeployConfig{Strategy: node.KindInline},
	})
	require.NoError(t, err)
	require.Equal(t, id.WorkspaceID("ws-1"), wsID)

	list, err := rig.global.ListWorkspaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "dev", list[0].Name)
	require.False(t, list[0].ConnectedAt.IsZero())

	require.NoError(t, rig.global.RemoveWorkspace(ctx, wsID))
	list, err = rig.global.ListWorkspaces(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = rig.global.Workspace(wsID)
	require.Error(t, err)
}

func TestGlobal_HealthAggregatesWorkspaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rig := newGlobalRig(t)
	require.Equal(t, supervise.Healthy, rig.global.Health(ctx).State)

	_, err := rig.global.ConnectWorkspace(ctx, rpc.ConnectWorkspaceConfig{
		Name: "dev", ProjectRoot: "/tmp/dev",
		Deployment: config.DeployConfig{Strategy: node.KindInline},
	})
	require.NoError(t, err)
	require.Equal(t, supervise.Healthy, rig.global.Health(ctx).State)
}
