package rpc

import (
	"context"

	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/transport"
)

// WorkspaceClient is the caller-side workspace stub. Its Installation
// lookup hands out installation proxies over a scoped transport, so their
// requests automatically carry the installation id back to this workspace's
// dispatcher.
type WorkspaceClient struct {
	*SupervisedClient
	c caller
	t transport.Transport
}

var _ WorkspaceAPI = (*WorkspaceClient)(nil)

// NewWorkspaceClient builds a workspace proxy over t.
func NewWorkspaceClient(t transport.Transport) *WorkspaceClient {
	return &WorkspaceClient{
		SupervisedClient: NewSupervisedClient(t),
		c:                caller{t: t},
		t:                t,
	}
}

// Close releases the underlying transport.
func (p *WorkspaceClient) Close() error { return p.t.Close() }

// ListInstallations lists the workspace's installations.
func (p *WorkspaceClient) ListInstallations(ctx context.Context) ([]InstallationSummary, error) {
	var list []InstallationSummary
	err := p.c.call(ctx, TargetRoot, "listInstallations", &list)
	return list, err
}

// CreateInstallation creates and starts a new installation.
func (p *WorkspaceClient) CreateInstallation(ctx context.Context, cfg CreateInstallationConfig) (id.InstallationID, error) {
	var instID id.InstallationID
	err := p.c.call(ctx, TargetRoot, "createInstallation", &instID, cfg)
	return instID, err
}

// ConnectInstallation reattaches to an already-running installation.
func (p *WorkspaceClient) ConnectInstallation(ctx context.Context, cfg ConnectInstallationConfig) (id.InstallationID, error) {
	var instID id.InstallationID
	err := p.c.call(ctx, TargetRoot, "connectInstallation", &instID, cfg)
	return instID, err
}

// RemoveInstallation removes an installation.
func (p *WorkspaceClient) RemoveInstallation(ctx context.Context, instID id.InstallationID) error {
	return p.c.call(ctx, TargetRoot, "removeInstallation", nil, instID)
}

// ListConnectors lists the workspace's registered connectors.
func (p *WorkspaceClient) ListConnectors(ctx context.Context) ([]connector.Descriptor, error) {
	var list []connector.Descriptor
	err := p.c.call(ctx, TargetRoot, "listConnectors", &list)
	return list, err
}

// ConnectorSchema fetches a connector's schema.
func (p *WorkspaceClient) ConnectorSchema(ctx context.Context, name string) (*schema.Schema, error) {
	var sch schema.Schema
	if err := p.c.call(ctx, TargetRoot, "connectorSchema", &sch, name); err != nil {
		return nil, err
	}
	return &sch, nil
}

// ConnectorOnboarding fetches a connector's declared onboarding steps.
func (p *WorkspaceClient) ConnectorOnboarding(ctx context.Context, name string) ([]connector.OnboardingStep, error) {
	var steps []connector.OnboardingStep
	err := p.c.call(ctx, TargetRoot, "connectorOnboarding", &steps, name)
	return steps, err
}

// Installation returns an installation proxy bound to a scoped transport.
// Existence is verified by the workspace dispatcher on first use.
func (p *WorkspaceClient) Installation(instID id.InstallationID) (InstallationAPI, error) {
	scoped := NewScopedTransport(p.t, transport.Scope{InstallationID: string(instID)})
	return NewInstallationClient(scoped), nil
}
