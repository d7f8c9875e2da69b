package main

import (
	"context"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/supervise"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// daemonGlobal presents a single workspace daemon behind the global client
// shape, so command code resolves targets the same way regardless of how
// the CLI connected.
type daemonGlobal struct {
	ws   rpc.WorkspaceAPI
	wsID id.WorkspaceID
}

var _ rpc.GlobalAPI = (*daemonGlobal)(nil)

func (d *daemonGlobal) Health(ctx context.Context) supervise.HealthStatus {
	return d.ws.Health(ctx)
}

func (d *daemonGlobal) Start(ctx context.Context) supervise.StartResult {
	return d.ws.Start(ctx)
}

func (d *daemonGlobal) Stop(ctx context.Context) supervise.StopResult {
	return d.ws.Stop(ctx)
}

func (d *daemonGlobal) ListWorkspaces(ctx context.Context) ([]rpc.WorkspaceSummary, error) {
	return []rpc.WorkspaceSummary{{ID: d.wsID}}, nil
}

func (d *daemonGlobal) ConnectWorkspace(ctx context.Context, cfg rpc.ConnectWorkspaceConfig) (id.WorkspaceID, error) {
	return "", maxerrors.Define(
		"federation.daemon_scope",
		"a workspace daemon cannot manage other workspaces",
		maxerrors.NotSupported,
	).New(nil)
}

func (d *daemonGlobal) RemoveWorkspace(ctx context.Context, wsID id.WorkspaceID) error {
	_, err := d.ConnectWorkspace(ctx, rpc.ConnectWorkspaceConfig{})
	return err
}

func (d *daemonGlobal) Workspace(wsID id.WorkspaceID) (rpc.WorkspaceAPI, error) {
	if wsID != d.wsID {
		return nil, rpc.ErrNodeNotFound.New(maxerrors.Props{"scope": string(wsID)})
	}
	return d.ws, nil
}
