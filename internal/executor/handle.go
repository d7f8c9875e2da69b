// Package executor drains a sync plan against a connector's loaders through
// the persistent task store.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/syncplan"
	"github.com/maxdata-sh/max/internal/task"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Status enumerates the observable states of a sync run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Completion summarises a settled sync.
type Completion struct {
	Status         Status        `json:"status"`
	TasksCompleted int           `json:"tasksCompleted"`
	TasksFailed    int           `json:"tasksFailed"`
	Duration       id.DurationMS `json:"duration"`
}

// ErrSyncNotSettled covers completion reads that were cut short.
var ErrSyncNotSettled = maxerrors.Define(
	"execution.sync_not_settled",
	"sync {sync} has not settled",
)

// SyncHandle is the caller-side handle to a running sync.
type SyncHandle struct {
	syncID    id.SyncID
	plan      *syncplan.Plan
	startedAt time.Time
	store     task.Store

	mu         sync.Mutex
	paused     bool
	cancelled  bool
	completion *Completion

	done chan struct{}
}

func newHandle(syncID id.SyncID, plan *syncplan.Plan, startedAt time.Time, store task.Store) *SyncHandle {
	return &SyncHandle{
		syncID:    syncID,
		plan:      plan,
		startedAt: startedAt,
		store:     store,
		done:      make(chan struct{}),
	}
}

// ID returns the sync id.
func (h *SyncHandle) ID() id.SyncID { return h.syncID }

// Plan returns the plan this sync executes.
func (h *SyncHandle) Plan() *syncplan.Plan { return h.plan }

// StartedAt returns when the sync was accepted.
func (h *SyncHandle) StartedAt() time.Time { return h.startedAt }

// Status reports the sync's current observable state.
func (h *SyncHandle) Status(ctx context.Context) (Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.completion != nil:
		return h.completion.Status, nil
	case h.cancelled:
		return StatusCancelled, nil
	case h.paused:
		return StatusPaused, nil
	default:
		return StatusRunning, nil
	}
}

// Pause inhibits further claims. In-flight tasks finish.
func (h *SyncHandle) Pause(ctx context.Context) error {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
	return h.store.Pause(ctx, h.syncID)
}

// Resume re-enables claims after a pause.
func (h *SyncHandle) Resume(ctx context.Context) error {
	if err := h.store.Resume(ctx, h.syncID); err != nil {
		return err
	}
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	return nil
}

// Cancel marks every non-terminal task cancelled and lets the drain loop
// exit once in-flight tasks settle.
func (h *SyncHandle) Cancel(ctx context.Context) error {
	h.mu.Lock()
	h.cancelled = true
	h.paused = false
	h.mu.Unlock()
	_, err := h.store.CancelPending(ctx, h.syncID)
	return err
}

// Completion blocks until the sync settles and returns its summary.
func (h *SyncHandle) Completion(ctx context.Context) (Completion, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return Completion{}, ErrSyncNotSettled.Wrap(ctx.Err(), maxerrors.Props{"sync": string(h.syncID)})
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.completion, nil
}

func (h *SyncHandle) isPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *SyncHandle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func (h *SyncHandle) settle(c Completion) {
	h.mu.Lock()
	h.completion = &c
	h.mu.Unlock()
	close(h.done)
}
