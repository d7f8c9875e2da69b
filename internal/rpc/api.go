// Package rpc is the uniform request/response plane of the federation: the
// dispatchers that route (target, method) onto nodes, the proxies that
// implement node interfaces over a transport, and the scope routing that
// lets any caller reach any node through the same contract.
package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/executor"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/supervise"
)

// Target names on the RPC plane.
const (
	TargetRoot   = ""
	TargetEngine = "engine"
)

// InstallationInfo identifies a live installation.
type InstallationInfo struct {
	ID          id.InstallationID `json:"id"`
	Connector   string            `json:"connector"`
	Name        string            `json:"name"`
	ConnectedAt time.Time         `json:"connectedAt"`
}

// InstallationSummary is the registry projection of one installation.
type InstallationSummary struct {
	ID          id.InstallationID `json:"id"`
	Connector   string            `json:"connector"`
	Name        string            `json:"name"`
	ConnectedAt time.Time         `json:"connectedAt"`
	Locator     string            `json:"locator,omitempty"`
}

// WorkspaceSummary is the global manifest projection of one workspace.
type WorkspaceSummary struct {
	ID          id.WorkspaceID `json:"id"`
	Name        string         `json:"name"`
	ProjectRoot string         `json:"projectRoot"`
	ConnectedAt time.Time      `json:"connectedAt"`
}

// CreateInstallationConfig is the input to createInstallation.
type CreateInstallationConfig struct {
	Connector          string              `json:"connector"`
	Name               string              `json:"name"`
	ConnectorConfig    json.RawMessage     `json:"connectorConfig,omitempty"`
	InitialCredentials json.RawMessage     `json:"initialCredentials,omitempty"`
	Deployment         config.DeployConfig `json:"deployment"`
}

// ConnectInstallationConfig is the input to connectInstallation: enough to
// reattach to an already-running node.
type ConnectInstallationConfig struct {
	Spec       config.InstallationSpec `json:"spec"`
	Deployment config.DeployConfig     `json:"deployment"`
	Locator    string                  `json:"locator,omitempty"`
}

// ConnectWorkspaceConfig is the input to connectWorkspace on the global
// node.
type ConnectWorkspaceConfig struct {
	Name        string              `json:"name"`
	ProjectRoot string              `json:"projectRoot"`
	Deployment  config.DeployConfig `json:"deployment"`
}

// SyncInfo is the wire form of a freshly started sync.
type SyncInfo struct {
	SyncID    id.SyncID `json:"syncId"`
	StartedAt time.Time `json:"startedAt"`
}

// InstallationNode is the node-side contract an installation implementation
// exposes to the RPC plane. The sync handle it returns stays on this side of
// the wire; NewInstallationService adapts it to the client-shaped API.
type InstallationNode interface {
	supervise.Supervised
	Engine() engine.Engine
	Describe(ctx context.Context) (InstallationInfo, error)
	Schema(ctx context.Context) (*schema.Schema, error)
	StartSync(ctx context.Context) (*executor.SyncHandle, error)
}

// InstallationAPI is the client-shaped installation contract: what proxies
// implement and what dispatchers dispatch onto. Sync operations take the
// sync id as their first argument.
type InstallationAPI interface {
	supervise.Supervised
	Engine() engine.Engine
	Describe(ctx context.Context) (InstallationInfo, error)
	Schema(ctx context.Context) (*schema.Schema, error)
	Sync(ctx context.Context) (SyncInfo, error)
	SyncStatus(ctx context.Context, syncID id.SyncID) (executor.Status, error)
	SyncPause(ctx context.Context, syncID id.SyncID) error
	SyncCancel(ctx context.Context, syncID id.SyncID) error
	SyncCompletion(ctx context.Context, syncID id.SyncID) (executor.Completion, error)
}

// WorkspaceAPI is the client-shaped workspace contract.
type WorkspaceAPI interface {
	supervise.Supervised
	ListInstallations(ctx context.Context) ([]InstallationSummary, error)
	CreateInstallation(ctx context.Context, cfg CreateInstallationConfig) (id.InstallationID, error)
	ConnectInstallation(ctx context.Context, cfg ConnectInstallationConfig) (id.InstallationID, error)
	RemoveInstallation(ctx context.Context, instID id.InstallationID) error
	ListConnectors(ctx context.Context) ([]connector.Descriptor, error)
	ConnectorSchema(ctx context.Context, name string) (*schema.Schema, error)
	ConnectorOnboarding(ctx context.Context, name string) ([]connector.OnboardingStep, error)

	// Installation returns a client bound to the installation. Existence
	// is verified on first use for proxy-backed lookups.
	Installation(instID id.InstallationID) (InstallationAPI, error)
}

// GlobalAPI is the client-shaped global contract: the same shape one level
// up.
type GlobalAPI interface {
	supervise.Supervised
	ListWorkspaces(ctx context.Context) ([]WorkspaceSummary, error)
	ConnectWorkspace(ctx context.Context, cfg ConnectWorkspaceConfig) (id.WorkspaceID, error)
	RemoveWorkspace(ctx context.Context, wsID id.WorkspaceID) error

	Workspace(wsID id.WorkspaceID) (WorkspaceAPI, error)
}
