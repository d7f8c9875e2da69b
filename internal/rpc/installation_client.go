package rpc

import (
	"context"

	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/executor"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/transport"
)

// InstallationClient is the caller-side installation stub: supervised plus
// engine plus the installation root methods, all forwarded over one
// transport.
type InstallationClient struct {
	*SupervisedClient
	eng *EngineClient
	c   caller
	t   transport.Transport
}

var _ InstallationAPI = (*InstallationClient)(nil)

// NewInstallationClient builds an installation proxy over t.
func NewInstallationClient(t transport.Transport) *InstallationClient {
	return &InstallationClient{
		SupervisedClient: NewSupervisedClient(t),
		eng:              NewEngineClient(t),
		c:                caller{t: t},
		t:                t,
	}
}

// Close releases the underlying transport.
func (p *InstallationClient) Close() error { return p.t.Close() }

// Engine returns the engine proxy bound to the same transport.
func (p *InstallationClient) Engine() engine.Engine { return p.eng }

// Describe fetches the node's identity.
func (p *InstallationClient) Describe(ctx context.Context) (InstallationInfo, error) {
	var info InstallationInfo
	err := p.c.call(ctx, TargetRoot, "describe", &info)
	return info, err
}

// Schema fetches the connector schema.
func (p *InstallationClient) Schema(ctx context.Context) (*schema.Schema, error) {
	var sch schema.Schema
	if err := p.c.call(ctx, TargetRoot, "schema", &sch); err != nil {
		return nil, err
	}
	return &sch, nil
}

// Sync starts a sync on the remote node.
func (p *InstallationClient) Sync(ctx context.Context) (SyncInfo, error) {
	var info SyncInfo
	err := p.c.call(ctx, TargetRoot, "sync", &info)
	return info, err
}

// SyncStatus reports a sync's status.
func (p *InstallationClient) SyncStatus(ctx context.Context, syncID id.SyncID) (executor.Status, error) {
	var status executor.Status
	err := p.c.call(ctx, TargetRoot, "syncStatus", &status, syncID)
	return status, err
}

// SyncPause pauses a sync.
func (p *InstallationClient) SyncPause(ctx context.Context, syncID id.SyncID) error {
	return p.c.call(ctx, TargetRoot, "syncPause", nil, syncID)
}

// SyncCancel cancels a sync.
func (p *InstallationClient) SyncCancel(ctx context.Context, syncID id.SyncID) error {
	return p.c.call(ctx, TargetRoot, "syncCancel", nil, syncID)
}

// SyncCompletion blocks until the sync settles.
func (p *InstallationClient) SyncCompletion(ctx context.Context, syncID id.SyncID) (executor.Completion, error) {
	var completion executor.Completion
	err := p.c.call(ctx, TargetRoot, "syncCompletion", &completion, syncID)
	return completion, err
}
