package task

import (
	"context"

	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Store owns persistent task state. Operations are serialised per store
// instance; Claim is atomic so concurrent drain workers can never
// double-claim a task.
type Store interface {
	// Insert stamps id and creation time and persists the template.
	Insert(ctx context.Context, syncID id.SyncID, tmpl Template) (Task, error)

	// Claim atomically selects the oldest claimable pending task of the
	// sync (notBefore elapsed, every blocker completed), flips it to
	// running, and returns it. Nil means nothing is claimable right now.
	Claim(ctx context.Context, syncID id.SyncID) (*Task, error)

	// Complete marks the task completed. When the task's parent is
	// awaiting children and every sibling has settled, the parent
	// completes too, cascading upward.
	Complete(ctx context.Context, taskID id.TaskID) error

	// Fail marks the task failed and fails its ancestors (fail-fast).
	Fail(ctx context.Context, taskID id.TaskID, failure *maxerrors.Wire) error

	// MarkAwaiting moves a running task to awaiting_children.
	MarkAwaiting(ctx context.Context, taskID id.TaskID) error

	Get(ctx context.Context, taskID id.TaskID) (Task, error)
	FindByParent(ctx context.Context, parentID id.TaskID) ([]Task, error)
	FindBySync(ctx context.Context, syncID id.SyncID, states ...State) ([]Task, error)
	Count(ctx context.Context, syncID id.SyncID, state State) (int, error)

	// Cancel cancels a single task, typically one that was in flight when
	// its sync was cancelled.
	Cancel(ctx context.Context, taskID id.TaskID) error

	// CancelPending cancels every non-terminal, non-running task of the
	// sync and returns how many were cancelled.
	CancelPending(ctx context.Context, syncID id.SyncID) (int, error)

	// Pause moves the sync's pending tasks to paused.
	Pause(ctx context.Context, syncID id.SyncID) error

	// Resume moves the sync's paused tasks back to pending.
	Resume(ctx context.Context, syncID id.SyncID) error

	Close() error
}
