package executor

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/syncplan"
	"github.com/maxdata-sh/max/internal/task"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Runner executes one claimed task. It is pure with respect to the store: it
// returns child templates for the executor to insert, it never writes them.
type Runner interface {
	Run(ctx context.Context, t task.Task) ([]task.Template, error)
}

// Options tune an executor.
type Options struct {
	// Concurrency bounds in-flight tasks. The default of 1 trades
	// throughput for strict ordering.
	Concurrency int
	// PollInterval is how often an idle drain worker re-checks the store.
	PollInterval time.Duration
}

// Executor expands plans into tasks and drains them.
type Executor struct {
	store  task.Store
	runner Runner
	gen    id.Generator
	log    *logger.Logger
	opts   Options

	now func() time.Time
}

// New builds an executor over a task store and a runner.
func New(store task.Store, runner Runner, gen id.Generator, log *logger.Logger, opts Options) *Executor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	return &Executor{
		store:  store,
		runner: runner,
		gen:    gen,
		log:    log.With("executor"),
		opts:   opts,
		now:    time.Now,
	}
}

// Start and Stop make the executor a lifecycle component of its node.
func (e *Executor) Start(ctx context.Context) error { return nil }

// Stop is a no-op; individual sync handles own their drain loops.
func (e *Executor) Stop(ctx context.Context) error { return nil }

// Execute allocates a sync id, expands the plan into root tasks, and spawns
// the drain loop. The returned handle tracks the run.
func (e *Executor) Execute(ctx context.Context, plan *syncplan.Plan) (*SyncHandle, error) {
	syncID := id.SyncID(e.gen.NewID())
	startedAt := e.now()
	handle := newHandle(syncID, plan, startedAt, e.store)

	if err := e.expand(ctx, syncID, plan); err != nil {
		return nil, err
	}

	log := e.log.WithFields(map[string]any{"sync": string(syncID)})
	log.Info("sync accepted")

	go e.drain(context.WithoutCancel(ctx), handle, log)
	return handle, nil
}

// expand turns the plan's ordered steps into a sync-group root with one
// sync-step child per step, chained by blockedBy so steps run in plan order.
func (e *Executor) expand(ctx context.Context, syncID id.SyncID, plan *syncplan.Plan) error {
	if plan == nil || len(plan.Steps) == 0 {
		return nil
	}
	group, err := e.store.Insert(ctx, syncID, task.Template{
		Payload: task.Payload{Kind: task.PayloadSyncGroup},
		State:   task.StateAwaitingChildren,
	})
	if err != nil {
		return err
	}
	var prev id.TaskID
	for _, step := range plan.Steps {
		tmpl := task.Template{
			Payload:  task.Payload{Kind: task.PayloadSyncStep, SyncStep: &task.SyncStepPayload{Step: step}},
			ParentID: group.ID,
		}
		if prev != "" {
			tmpl.BlockedBy = []id.TaskID{prev}
		}
		inserted, err := e.store.Insert(ctx, syncID, tmpl)
		if err != nil {
			return err
		}
		prev = inserted.ID
	}
	return nil
}

// drain claims and runs tasks until nothing claimable remains and every
// in-flight task has settled.
func (e *Executor) drain(ctx context.Context, handle *SyncHandle, log *logger.Logger) {
	var inflight atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for range e.opts.Concurrency {
		g.Go(func() error {
			return e.drainWorker(gctx, handle, &inflight)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error(err, "drain loop aborted")
	}

	completion := e.summarize(ctx, handle)
	handle.settle(completion)
	log.WithFields(map[string]any{
		"status":    string(completion.Status),
		"completed": completion.TasksCompleted,
		"failed":    completion.TasksFailed,
	}).Info("sync settled")
}

func (e *Executor) drainWorker(ctx context.Context, handle *SyncHandle, inflight *atomic.Int64) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if handle.isCancelled() {
			return nil
		}
		if handle.isPaused() {
			if err := sleep(ctx, e.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		claimed, err := e.store.Claim(ctx, handle.ID())
		if err != nil {
			return err
		}
		if claimed == nil {
			idle, err := e.idle(ctx, handle.ID(), inflight)
			if err != nil {
				return err
			}
			if idle {
				return nil
			}
			if err := sleep(ctx, e.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		inflight.Add(1)
		e.runOne(ctx, handle, *claimed)
		inflight.Add(-1)
	}
}

// idle reports whether the sync has no work left: nothing claimable, nothing
// in flight anywhere, nothing paused.
func (e *Executor) idle(ctx context.Context, syncID id.SyncID, inflight *atomic.Int64) (bool, error) {
	if inflight.Load() > 0 {
		return false, nil
	}
	for _, state := range []task.State{task.StatePending, task.StateRunning, task.StatePaused} {
		n, err := e.store.Count(ctx, syncID, state)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (e *Executor) runOne(ctx context.Context, handle *SyncHandle, claimed task.Task) {
	children, err := e.runner.Run(ctx, claimed)
	if err != nil {
		e.log.WithFields(map[string]any{
			"sync": string(handle.ID()),
			"task": string(claimed.ID),
		}).Error(err, "task failed")
		if ferr := e.store.Fail(ctx, claimed.ID, maxerrors.Serialize(err)); ferr != nil {
			e.log.Error(ferr, "recording task failure failed")
		}
		// Fail-fast within the sync: nothing further is claimed.
		if _, cerr := e.store.CancelPending(ctx, handle.ID()); cerr != nil {
			e.log.Error(cerr, "cancelling remaining tasks failed")
		}
		return
	}

	if handle.isCancelled() {
		// The sync was torn down while this task ran; discard its children.
		if cerr := e.store.Cancel(ctx, claimed.ID); cerr != nil {
			e.log.Error(cerr, "cancelling in-flight task failed")
		}
		return
	}

	if len(children) == 0 {
		if cerr := e.store.Complete(ctx, claimed.ID); cerr != nil {
			e.log.Error(cerr, "completing task failed")
		}
		return
	}

	for _, child := range children {
		child.ParentID = claimed.ID
		if _, ierr := e.store.Insert(ctx, handle.ID(), child); ierr != nil {
			e.log.Error(ierr, "inserting child task failed")
			if ferr := e.store.Fail(ctx, claimed.ID, maxerrors.Serialize(ierr)); ferr != nil {
				e.log.Error(ferr, "recording task failure failed")
			}
			return
		}
	}
	if aerr := e.store.MarkAwaiting(ctx, claimed.ID); aerr != nil {
		e.log.Error(aerr, "transitioning task to awaiting_children failed")
	}
}

func (e *Executor) summarize(ctx context.Context, handle *SyncHandle) Completion {
	completed, err := e.store.Count(ctx, handle.ID(), task.StateCompleted)
	if err != nil {
		e.log.Error(err, "counting completed tasks failed")
	}
	failed, err := e.store.Count(ctx, handle.ID(), task.StateFailed)
	if err != nil {
		e.log.Error(err, "counting failed tasks failed")
	}

	status := StatusCompleted
	switch {
	case handle.isCancelled():
		status = StatusCancelled
	case failed > 0:
		status = StatusFailed
	}
	return Completion{
		Status:         status,
		TasksCompleted: completed,
		TasksFailed:    failed,
		Duration:       id.DurationMS(e.now().Sub(handle.StartedAt()).Milliseconds()),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
