package rpc

import (
	"context"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/transport"
)

// GlobalClient is the caller-side global stub.
type GlobalClient struct {
	*SupervisedClient
	c caller
	t transport.Transport
}

var _ GlobalAPI = (*GlobalClient)(nil)

// NewGlobalClient builds a global proxy over t.
func NewGlobalClient(t transport.Transport) *GlobalClient {
	return &GlobalClient{
		SupervisedClient: NewSupervisedClient(t),
		c:                caller{t: t},
		t:                t,
	}
}

// Close releases the underlying transport.
func (p *GlobalClient) Close() error { return p.t.Close() }

// ListWorkspaces lists the persisted workspaces.
func (p *GlobalClient) ListWorkspaces(ctx context.Context) ([]WorkspaceSummary, error) {
	var list []WorkspaceSummary
	err := p.c.call(ctx, TargetRoot, "listWorkspaces", &list)
	return list, err
}

// ConnectWorkspace attaches a workspace to the global node.
func (p *GlobalClient) ConnectWorkspace(ctx context.Context, cfg ConnectWorkspaceConfig) (id.WorkspaceID, error) {
	var wsID id.WorkspaceID
	err := p.c.call(ctx, TargetRoot, "connectWorkspace", &wsID, cfg)
	return wsID, err
}

// RemoveWorkspace detaches a workspace.
func (p *GlobalClient) RemoveWorkspace(ctx context.Context, wsID id.WorkspaceID) error {
	return p.c.call(ctx, TargetRoot, "removeWorkspace", nil, wsID)
}

// Workspace returns a workspace proxy bound to a scoped transport.
func (p *GlobalClient) Workspace(wsID id.WorkspaceID) (WorkspaceAPI, error) {
	scoped := NewScopedTransport(p.t, transport.Scope{WorkspaceID: string(wsID)})
	return NewWorkspaceClient(scoped), nil
}
