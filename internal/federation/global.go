package federation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/node"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/supervise"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// WorkspaceSpec is the opaque deploy payload for workspace deployers.
type WorkspaceSpec struct {
	ID          id.WorkspaceID `json:"id,omitempty"`
	Name        string         `json:"name"`
	ProjectRoot string         `json:"projectRoot"`
}

// GlobalParams wires the global node.
type GlobalParams struct {
	Registry  *WorkspaceRegistry
	Deployers *node.Registry[rpc.WorkspaceAPI]
	IDs       id.Generator
	Log       *logger.Logger
	Now       NowFunc
}

// GlobalMax is the top of the hierarchy: it knows every workspace. On start
// it eagerly reconciles the persisted manifest, rebuilding handles via
// connect on each workspace's recorded strategy.
type GlobalMax struct {
	supervisor *supervise.Supervisor[rpc.WorkspaceAPI]
	registry   *WorkspaceRegistry
	deployers  *node.Registry[rpc.WorkspaceAPI]
	log        *logger.Logger
	now        NowFunc

	mu      sync.Mutex
	started bool
}

var _ rpc.GlobalAPI = (*GlobalMax)(nil)

// NewGlobalMax builds the global node.
func NewGlobalMax(p GlobalParams) *GlobalMax {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &GlobalMax{
		supervisor: supervise.NewSupervisor[rpc.WorkspaceAPI](p.IDs),
		registry:   p.Registry,
		deployers:  p.Deployers,
		log:        p.Log.With("global"),
		now:        now,
	}
}

// Health aggregates workspace health.
func (g *GlobalMax) Health(ctx context.Context) supervise.HealthStatus {
	return g.supervisor.Health(ctx)
}

// Start reconciles persisted workspaces and starts their nodes. Failures
// reattaching a workspace are logged, not propagated.
func (g *GlobalMax) Start(ctx context.Context) supervise.StartResult {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return supervise.StartResult{State: supervise.AlreadyRunning}
	}
	g.started = true
	g.mu.Unlock()

	manifest, err := g.registry.List()
	if err != nil {
		g.log.Error(err, "reading workspace manifest failed")
		return supervise.StartResult{State: supervise.Started}
	}
	for wsID, entry := range manifest {
		if _, ok := g.supervisor.Get(wsID); ok {
			continue
		}
		if err := g.reattach(ctx, id.WorkspaceID(wsID), entry); err != nil {
			g.log.WithFields(map[string]any{"workspace": wsID}).
				Error(err, "workspace reattach failed")
		}
	}
	for _, h := range g.supervisor.List() {
		if result := h.Client.Start(ctx); result.State == supervise.StartErrored {
			g.log.WithFields(map[string]any{"workspace": h.ID}).
				Warn("workspace failed to start")
		}
	}
	return supervise.StartResult{State: supervise.Started}
}

func (g *GlobalMax) reattach(ctx context.Context, wsID id.WorkspaceID, entry config.WorkspaceEntry) error {
	strategy := entry.Hosting
	if strategy == "" {
		strategy = node.KindInProcess
	}
	deployer, err := g.deployers.Lookup(strategy)
	if err != nil {
		return err
	}
	specBytes, err := json.Marshal(WorkspaceSpec{
		ID:          wsID,
		Name:        entry.Name,
		ProjectRoot: entry.ProjectRoot,
	})
	if err != nil {
		return maxerrors.Internal.Wrap(err, nil)
	}
	h, err := deployer.Connect(ctx, config.DeployConfig{Strategy: strategy}, specBytes)
	if err != nil {
		return err
	}
	h.ID = string(wsID)
	g.supervisor.Register(h)
	return nil
}

// Stop stops workspaces in reverse registration order.
func (g *GlobalMax) Stop(ctx context.Context) supervise.StopResult {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return supervise.StopResult{State: supervise.AlreadyStopped}
	}
	g.started = false
	g.mu.Unlock()

	children := g.supervisor.List()
	for i := len(children) - 1; i >= 0; i-- {
		if result := children[i].Client.Stop(ctx); result.State == supervise.StopErrored {
			g.log.WithFields(map[string]any{"workspace": children[i].ID}).
				Warn("workspace failed to stop")
		}
	}
	return supervise.StopResult{State: supervise.Stopped}
}

// ListWorkspaces projects the global manifest.
func (g *GlobalMax) ListWorkspaces(ctx context.Context) ([]rpc.WorkspaceSummary, error) {
	manifest, err := g.registry.List()
	if err != nil {
		return nil, err
	}
	out := make([]rpc.WorkspaceSummary, 0, len(manifest))
	for wsID, entry := range manifest {
		out = append(out, rpc.WorkspaceSummary{
			ID:          id.WorkspaceID(wsID),
			Name:        entry.Name,
			ProjectRoot: entry.ProjectRoot,
			ConnectedAt: entry.ConnectedAt,
		})
	}
	return out, nil
}

// ConnectWorkspace attaches a workspace, persists it, and starts its node.
func (g *GlobalMax) ConnectWorkspace(ctx context.Context, cfg rpc.ConnectWorkspaceConfig) (id.WorkspaceID, error) {
	deployer, err := g.deployers.Lookup(cfg.Deployment.Strategy)
	if err != nil {
		return "", err
	}
	specBytes, err := json.Marshal(WorkspaceSpec{Name: cfg.Name, ProjectRoot: cfg.ProjectRoot})
	if err != nil {
		return "", maxerrors.Internal.Wrap(err, nil)
	}
	unlabelled, err := deployer.Connect(ctx, cfg.Deployment, specBytes)
	if err != nil {
		return "", err
	}
	h := g.supervisor.Register(unlabelled)

	if err := g.registry.Put(id.WorkspaceID(h.ID), config.WorkspaceEntry{
		Name:        cfg.Name,
		ProjectRoot: cfg.ProjectRoot,
		ConnectedAt: g.now(),
		Hosting:     cfg.Deployment.Strategy,
	}); err != nil {
		g.supervisor.Unregister(h.ID)
		return "", err
	}
	if result := h.Client.Start(ctx); result.State == supervise.StartErrored {
		g.log.WithFields(map[string]any{"workspace": h.ID}).
			Warn("workspace failed to start")
	}
	return id.WorkspaceID(h.ID), nil
}

// RemoveWorkspace detaches a workspace and drops its manifest entry.
func (g *GlobalMax) RemoveWorkspace(ctx context.Context, wsID id.WorkspaceID) error {
	if h, ok := g.supervisor.Get(string(wsID)); ok {
		if result := h.Client.Stop(ctx); result.State == supervise.StopErrored {
			g.log.WithFields(map[string]any{"workspace": h.ID}).
				Warn("workspace failed to stop during removal")
		}
		g.supervisor.Unregister(string(wsID))
	}
	return g.registry.Remove(wsID)
}

// Workspace looks a live workspace up by id.
func (g *GlobalMax) Workspace(wsID id.WorkspaceID) (rpc.WorkspaceAPI, error) {
	h, ok := g.supervisor.Get(string(wsID))
	if !ok {
		return nil, supervise.ErrNodeNotFound.New(maxerrors.Props{"id": string(wsID)})
	}
	return h.Client, nil
}
