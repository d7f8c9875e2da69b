package federation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/node"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/supervise"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// WorkspaceParams wires a workspace node.
type WorkspaceParams struct {
	ID         id.WorkspaceID
	Name       string
	Registry   *InstallationRegistry
	Deployers  *node.Registry[rpc.InstallationAPI]
	Connectors *connector.Registry
	IDs        id.Generator
	Log        *logger.Logger
	Now        NowFunc
}

// WorkspaceMax groups installations bound to one project root. It owns the
// installation supervisor, the persistent installation registry, the
// deployer registry, and the connector registry.
type WorkspaceMax struct {
	wsID       id.WorkspaceID
	name       string
	supervisor *supervise.Supervisor[rpc.InstallationAPI]
	registry   *InstallationRegistry
	deployers  *node.Registry[rpc.InstallationAPI]
	connectors *connector.Registry
	log        *logger.Logger
	now        NowFunc

	mu      sync.Mutex
	started bool
}

var _ rpc.WorkspaceAPI = (*WorkspaceMax)(nil)

// NewWorkspaceMax builds a workspace node.
func NewWorkspaceMax(p WorkspaceParams) *WorkspaceMax {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &WorkspaceMax{
		wsID:       p.ID,
		name:       p.Name,
		supervisor: supervise.NewSupervisor[rpc.InstallationAPI](p.IDs),
		registry:   p.Registry,
		deployers:  p.Deployers,
		connectors: p.Connectors,
		log:        p.Log.WithFields(map[string]any{"workspace": string(p.ID)}),
		now:        now,
	}
}

// ID returns the workspace id.
func (w *WorkspaceMax) ID() id.WorkspaceID { return w.wsID }

// Health aggregates the supervisor's children.
func (w *WorkspaceMax) Health(ctx context.Context) supervise.HealthStatus {
	return w.supervisor.Health(ctx)
}

// Start walks the supervisor. Child start failures are logged, never
// propagated; aggregate health reports them.
func (w *WorkspaceMax) Start(ctx context.Context) supervise.StartResult {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return supervise.StartResult{State: supervise.AlreadyRunning}
	}
	w.started = true
	w.mu.Unlock()
	for _, h := range w.supervisor.List() {
		result := h.Client.Start(ctx)
		if result.State == supervise.StartErrored || result.State == supervise.StartRefused {
			w.log.WithFields(map[string]any{"installation": h.ID}).
				Warn("installation failed to start: " + result.Reason)
		}
	}
	return supervise.StartResult{State: supervise.Started}
}

// Stop stops children in reverse registration order.
func (w *WorkspaceMax) Stop(ctx context.Context) supervise.StopResult {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return supervise.StopResult{State: supervise.AlreadyStopped}
	}
	w.started = false
	w.mu.Unlock()
	children := w.supervisor.List()
	for i := len(children) - 1; i >= 0; i-- {
		result := children[i].Client.Stop(ctx)
		if result.State == supervise.StopErrored {
			w.log.WithFields(map[string]any{"installation": children[i].ID}).
				Warn("installation failed to stop")
		}
	}
	return supervise.StopResult{State: supervise.Stopped}
}

// ListInstallations projects the persistent registry.
func (w *WorkspaceMax) ListInstallations(ctx context.Context) ([]rpc.InstallationSummary, error) {
	entries, err := w.registry.List()
	if err != nil {
		return nil, err
	}
	out := make([]rpc.InstallationSummary, 0, len(entries))
	for name, entry := range entries {
		out = append(out, rpc.InstallationSummary{
			ID:          id.InstallationID(entry.ID),
			Connector:   entry.Connector,
			Name:        name,
			ConnectedAt: entry.ConnectedAt,
			Locator:     entry.Locator,
		})
	}
	return out, nil
}

// CreateInstallation deduplicates on (connector, name), routes by strategy
// to a deployer, registers and persists the fresh node, and starts it.
func (w *WorkspaceMax) CreateInstallation(ctx context.Context, cfg rpc.CreateInstallationConfig) (id.InstallationID, error) {
	if _, exists, err := w.registry.FindBySpec(cfg.Connector, cfg.Name); err != nil {
		return "", err
	} else if exists {
		return "", ErrInstallationExists.New(maxerrors.Props{
			"connector": cfg.Connector,
			"name":      cfg.Name,
		})
	}

	deployer, err := w.deployers.Lookup(cfg.Deployment.Strategy)
	if err != nil {
		return "", err
	}
	spec := config.InstallationSpec{
		Connector:          cfg.Connector,
		Name:               cfg.Name,
		ConnectorConfig:    cfg.ConnectorConfig,
		InitialCredentials: cfg.InitialCredentials,
	}
	specBytes, err := json.Marshal(spec)
	if err != nil {
		return "", maxerrors.Internal.Wrap(err, nil)
	}

	unlabelled, err := deployer.Create(ctx, cfg.Deployment, specBytes)
	if err != nil {
		return "", err
	}
	h := w.supervisor.Register(unlabelled)

	entry := config.InstallationEntry{
		ID:          h.ID,
		Connector:   cfg.Connector,
		ConnectedAt: w.now(),
		Spec:        spec,
		Deployment:  cfg.Deployment,
		Locator:     h.Locator,
	}
	if err := w.registry.Put(entry); err != nil {
		w.supervisor.Unregister(h.ID)
		return "", err
	}

	if result := h.Client.Start(ctx); result.State == supervise.StartErrored {
		w.log.WithFields(map[string]any{"installation": h.ID}).
			Warn("fresh installation failed to start")
	}
	w.log.WithFields(map[string]any{"installation": h.ID, "connector": cfg.Connector}).
		Info("installation created")
	return id.InstallationID(h.ID), nil
}

// ConnectInstallation reattaches to an already-running node. Registry data
// is authoritative: describe() identifies the node and no new connectedAt is
// written for a known entry.
func (w *WorkspaceMax) ConnectInstallation(ctx context.Context, cfg rpc.ConnectInstallationConfig) (id.InstallationID, error) {
	deployer, err := w.deployers.Lookup(cfg.Deployment.Strategy)
	if err != nil {
		return "", err
	}
	specBytes, err := json.Marshal(cfg.Spec)
	if err != nil {
		return "", maxerrors.Internal.Wrap(err, nil)
	}

	unlabelled, err := deployer.Connect(ctx, cfg.Deployment, specBytes)
	if err != nil {
		return "", err
	}
	info, err := unlabelled.Client.Describe(ctx)
	if err != nil {
		return "", err
	}
	if info.ID != "" {
		unlabelled.ID = string(info.ID)
	}
	h := w.supervisor.Register(unlabelled)

	entry, ferr := w.registry.FindByID(id.InstallationID(h.ID))
	if ferr != nil {
		entry = config.InstallationEntry{
			ID:          h.ID,
			Connector:   cfg.Spec.Connector,
			ConnectedAt: w.now(),
			Spec:        cfg.Spec,
		}
	}
	entry.Deployment = cfg.Deployment
	entry.Locator = h.Locator
	if err := w.registry.Put(entry); err != nil {
		w.supervisor.Unregister(h.ID)
		return "", err
	}
	w.log.WithFields(map[string]any{"installation": h.ID}).Info("installation connected")
	return id.InstallationID(h.ID), nil
}

// RemoveInstallation unregisters the live handle and removes the persisted
// entry. Teardown of the deployment is the deployer's responsibility and is
// invoked when the strategy is known.
func (w *WorkspaceMax) RemoveInstallation(ctx context.Context, instID id.InstallationID) error {
	entry, err := w.registry.FindByID(instID)
	if err != nil {
		return err
	}
	if h, ok := w.supervisor.Get(string(instID)); ok {
		if result := h.Client.Stop(ctx); result.State == supervise.StopErrored {
			w.log.WithFields(map[string]any{"installation": h.ID}).
				Warn("installation failed to stop during removal")
		}
		w.supervisor.Unregister(string(instID))
	}
	if err := w.registry.Remove(instID); err != nil {
		return err
	}
	if deployer, derr := w.deployers.Lookup(entry.Deployment.Strategy); derr == nil {
		specBytes, _ := json.Marshal(entry.Spec)
		if terr := deployer.Teardown(ctx, entry.Deployment, specBytes); terr != nil &&
			!node.ErrUnsupported.Is(terr) {
			w.log.Error(terr, "deployment teardown failed")
		}
	}
	w.log.WithFields(map[string]any{"installation": string(instID)}).Info("installation removed")
	return nil
}

// Installation looks a live installation up by id.
func (w *WorkspaceMax) Installation(instID id.InstallationID) (rpc.InstallationAPI, error) {
	h, ok := w.supervisor.Get(string(instID))
	if !ok {
		return nil, supervise.ErrNodeNotFound.New(maxerrors.Props{"id": string(instID)})
	}
	return h.Client, nil
}

// ListConnectors proxies the connector registry.
func (w *WorkspaceMax) ListConnectors(ctx context.Context) ([]connector.Descriptor, error) {
	return w.connectors.List(), nil
}

// ConnectorSchema fetches a registered connector's schema.
func (w *WorkspaceMax) ConnectorSchema(ctx context.Context, name string) (*schema.Schema, error) {
	c, err := w.connectors.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.Schema(), nil
}

// ConnectorOnboarding fetches a registered connector's onboarding steps.
func (w *WorkspaceMax) ConnectorOnboarding(ctx context.Context, name string) ([]connector.OnboardingStep, error) {
	c, err := w.connectors.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.Onboarding(), nil
}
