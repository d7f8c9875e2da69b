package rpc

import (
	"context"
	"sync"

	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/executor"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/supervise"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// InstallationService adapts an installation node to the client-shaped API.
// It owns the live sync handles: Sync stashes the handle under its sync id,
// the sync* methods look it up, and completion or cancellation removes the
// entry once the run settles.
type InstallationService struct {
	node InstallationNode

	mu    sync.Mutex
	syncs map[id.SyncID]*executor.SyncHandle
}

var _ InstallationAPI = (*InstallationService)(nil)

// NewInstallationService wraps a node.
func NewInstallationService(node InstallationNode) *InstallationService {
	return &InstallationService{
		node:  node,
		syncs: make(map[id.SyncID]*executor.SyncHandle),
	}
}

// Health probes the node.
func (s *InstallationService) Health(ctx context.Context) supervise.HealthStatus {
	return s.node.Health(ctx)
}

// Start starts the node.
func (s *InstallationService) Start(ctx context.Context) supervise.StartResult {
	return s.node.Start(ctx)
}

// Stop stops the node.
func (s *InstallationService) Stop(ctx context.Context) supervise.StopResult {
	return s.node.Stop(ctx)
}

// Engine exposes the node's data plane.
func (s *InstallationService) Engine() engine.Engine { return s.node.Engine() }

// Describe returns the node's identity.
func (s *InstallationService) Describe(ctx context.Context) (InstallationInfo, error) {
	return s.node.Describe(ctx)
}

// Schema returns the connector schema.
func (s *InstallationService) Schema(ctx context.Context) (*schema.Schema, error) {
	return s.node.Schema(ctx)
}

// Sync starts a sync and stashes its handle.
func (s *InstallationService) Sync(ctx context.Context) (SyncInfo, error) {
	handle, err := s.node.StartSync(ctx)
	if err != nil {
		return SyncInfo{}, err
	}
	s.mu.Lock()
	s.syncs[handle.ID()] = handle
	s.mu.Unlock()
	return SyncInfo{SyncID: handle.ID(), StartedAt: handle.StartedAt()}, nil
}

func (s *InstallationService) handle(syncID id.SyncID) (*executor.SyncHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.syncs[syncID]
	if !ok {
		return nil, errSyncNotFound.New(maxerrors.Props{"sync": string(syncID)})
	}
	return h, nil
}

func (s *InstallationService) remove(syncID id.SyncID) {
	s.mu.Lock()
	delete(s.syncs, syncID)
	s.mu.Unlock()
}

// SyncStatus reports a running sync's status.
func (s *InstallationService) SyncStatus(ctx context.Context, syncID id.SyncID) (executor.Status, error) {
	h, err := s.handle(syncID)
	if err != nil {
		return "", err
	}
	return h.Status(ctx)
}

// SyncPause pauses further task claims.
func (s *InstallationService) SyncPause(ctx context.Context, syncID id.SyncID) error {
	h, err := s.handle(syncID)
	if err != nil {
		return err
	}
	return h.Pause(ctx)
}

// SyncCancel cancels the sync and removes the handle once it settles.
func (s *InstallationService) SyncCancel(ctx context.Context, syncID id.SyncID) error {
	h, err := s.handle(syncID)
	if err != nil {
		return err
	}
	if err := h.Cancel(ctx); err != nil {
		return err
	}
	if _, err := h.Completion(ctx); err != nil {
		return err
	}
	s.remove(syncID)
	return nil
}

// SyncCompletion blocks until the sync settles, removes the handle, and
// returns the summary.
func (s *InstallationService) SyncCompletion(ctx context.Context, syncID id.SyncID) (executor.Completion, error) {
	h, err := s.handle(syncID)
	if err != nil {
		return executor.Completion{}, err
	}
	completion, err := h.Completion(ctx)
	if err != nil {
		return executor.Completion{}, err
	}
	s.remove(syncID)
	return completion, nil
}
