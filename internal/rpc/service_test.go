package rpc_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/executor"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/syncplan"
	"github.com/maxdata-sh/max/internal/task"
)

// handleNode is an installation node whose syncs run an empty plan through
// a real executor, so handles settle immediately.
type handleNode struct {
	exec *executor.Executor
}

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, t task.Task) ([]task.Template, error) {
	return nil, nil
}

func newHandleNode(t *testing.T) *handleNode {
	t.Helper()
	store, err := task.OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"), &id.SequenceGenerator{Prefix: "task"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &handleNode{
		exec: executor.New(store, noopRunner{}, &id.SequenceGenerator{Prefix: "sync"}, logger.Nop(), executor.Options{}),
	}
}

func (n *handleNode) Health(ctx context.Context) supervise.HealthStatus {
	return supervise.HealthStatus{State: supervise.Healthy}
}

func (n *handleNode) Start(ctx context.Context) supervise.StartResult {
	return supervise.StartResult{State: supervise.Started}
}

func (n *handleNode) Stop(ctx context.Context) supervise.StopResult {
	return supervise.StopResult{State: supervise.Stopped}
}

func (n *handleNode) Engine() engine.Engine { return nil }

func (n *handleNode) Describe(ctx context.Context) (rpc.InstallationInfo, error) {
	return rpc.InstallationInfo{ID: "i1"}, nil
}

func (n *handleNode) Schema(ctx context.Context) (*schema.Schema, error) {
	return &schema.Schema{Namespace: "stub", Entities: []schema.EntityDef{{Name: "Root"}}, Roots: []id.EntityType{"Root"}}, nil
}

func (n *handleNode) StartSync(ctx context.Context) (*executor.SyncHandle, error) {
	return n.exec.Execute(ctx, syncplan.NewPlan())
}

func TestInstallationService_SyncHandleLifetime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service := rpc.NewInstallationService(newHandleNode(t))

	info, err := service.Sync(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, info.SyncID)

	// The handle is live until completion is read.
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	completion, err := service.SyncCompletion(waitCtx, info.SyncID)
	require.NoError(t, err)
	require.Equal(t, executor.StatusCompleted, completion.Status)

	// Completion removed the entry.
	_, err = service.SyncStatus(ctx, info.SyncID)
	require.Error(t, err)

	// Distinct syncs get distinct ids.
	a, err := service.Sync(ctx)
	require.NoError(t, err)
	b, err := service.Sync(ctx)
	require.NoError(t, err)
	require.NotEqual(t, a.SyncID, b.SyncID)

	require.NoError(t, service.SyncCancel(waitCtx, a.SyncID))
	_, err = service.SyncStatus(ctx, a.SyncID)
	require.Error(t, err, "cancel removes the settled entry")

	status, err := service.SyncStatus(ctx, b.SyncID)
	require.NoError(t, err)
	require.NotEmpty(t, status)
}

func TestInstallationService_UnknownSync(t *testing.T) {
	t.Parallel()

	service := rpc.NewInstallationService(newHandleNode(t))
	_, err := service.SyncStatus(context.Background(), "ghost")
	require.Error(t, err)
}
