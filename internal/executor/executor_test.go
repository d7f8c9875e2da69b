package executor_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/connector/connectortest"
	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/executor"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/syncplan"
	"github.com/maxdata-sh/max/internal/task"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// rig wires a real engine, task store, and connector runner around the
// acmehr stub connector.
type rig struct {
	eng  *engine.SQLiteEngine
	exec *executor.Executor
	conn *connectortest.Connector
}

func newRig(t *testing.T, data *connectortest.Data) *rig {
	t.Helper()
	dir := t.TempDir()

	eng, err := engine.OpenSQLite(filepath.Join(dir, "engine.db"), connectortest.Schema())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	store, err := task.OpenSQLite(filepath.Join(dir, "tasks.db"), &id.SequenceGenerator{Prefix: "task"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	conn := connectortest.New(data)
	inst, err := conn.NewInstallation(context.Background(), nil, nil)
	require.NoError(t, err)

	runner := executor.NewConnectorRunner(conn.Resolver(), inst, eng, eng)
	exec := executor.New(store, runner, &id.SequenceGenerator{Prefix: "sync"}, logger.Nop(), executor.Options{})
	return &rig{eng: eng, exec: exec, conn: conn}
}

func seedAndRun(t *testing.T, r *rig) executor.Completion {
	t.Helper()
	ctx := context.Background()
	plan, err := r.conn.Seeder().Seed(ctx, r.eng)
	require.NoError(t, err)
	handle, err := r.exec.Execute(ctx, plan)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	completion, err := handle.Completion(waitCtx)
	require.NoError(t, err)
	return completion
}

// Scenario: a trivial installation whose collection comes back empty.
func TestSync_EmptyCollection(t *testing.T) {
	t.Parallel()

	r := newRig(t, &connectortest.Data{})
	completion := seedAndRun(t, r)

	require.Equal(t, executor.StatusCompleted, completion.Status)
	require.Zero(t, completion.TasksFailed)
	require.Positive(t, completion.TasksCompleted)

	// The engine contains only the root.
	ctx := context.Background()
	roots, err := r.eng.LoadPage(ctx, connectortest.TypeRoot, engine.Refs(), nil)
	require.NoError(t, err)
	require.Len(t, roots.Entities, 1)

	workspaces, err := r.eng.LoadPage(ctx, connectortest.TypeWorkspace, engine.Refs(), nil)
	require.NoError(t, err)
	require.Empty(t, workspaces.Entities)
}

func acmeData() *connectortest.Data {
	return &connectortest.Data{
		Workspaces: []connectortest.Workspace{{
			ID:   "w1",
			Name: "Acme HQ",
			Users: []connectortest.User{
				{ID: "u1", DisplayName: "Ada", Email: "ada@acme.io", Role: "admin", Active: true},
				{ID: "u2", DisplayName: "Bob", Email: "bob@acme.io", Role: "member", Active: true},
				{ID: "u3", DisplayName: "Carol", Email: "carol@acme.io", Role: "member", Active: false},
			},
		}},
	}
}

// Scenario: the full four-step acme sync.
func TestSync_FullAcme(t *testing.T) {
	t.Parallel()

	r := newRig(t, acmeData())
	completion := seedAndRun(t, r)
	require.Equal(t, executor.StatusCompleted, completion.Status)
	require.Zero(t, completion.TasksFailed)

	ctx := context.Background()

	workspaces, err := r.eng.LoadPage(ctx, connectortest.TypeWorkspace, engine.All(), nil)
	require.NoError(t, err)
	require.Len(t, workspaces.Entities, 1)
	require.Equal(t, "Acme HQ", workspaces.Entities[0].Fields["name"])

	users, err := r.eng.LoadPage(ctx, connectortest.TypeUser,
		engine.Select("displayName", "email", "role", "active"), nil)
	require.NoError(t, err)
	require.Len(t, users.Entities, 3)
	for _, u := range users.Entities {
		require.NotEmpty(t, u.Fields["displayName"])
		require.NotEmpty(t, u.Fields["email"])
		require.NotEmpty(t, u.Fields["role"])
	}

	members, err := r.eng.LoadCollection(ctx, connectortest.RootRef, "workspaces", nil)
	require.NoError(t, err)
	require.Len(t, members.Refs, 1)

	// (1 workspace × 1 field) + (3 users × 4 fields) sync metadata rows.
	rows, err := r.eng.CountSyncMeta(ctx)
	require.NoError(t, err)
	require.Equal(t, 13, rows)

	stale, err := r.eng.StaleFields(ctx, ref.New(connectortest.TypeUser, "u1"),
		[]id.FieldName{"displayName"}, 100*365*24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, stale)
}

// Scenario: two syncs on the same installation get distinct ids and both
// settle; the engine ends up with the union.
func TestSync_ConcurrentHandles(t *testing.T) {
	t.Parallel()

	r := newRig(t, acmeData())
	ctx := context.Background()
	plan, err := r.conn.Seeder().Seed(ctx, r.eng)
	require.NoError(t, err)

	first, err := r.exec.Execute(ctx, plan)
	require.NoError(t, err)
	second, err := r.exec.Execute(ctx, plan)
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c1, err := first.Completion(waitCtx)
	require.NoError(t, err)
	c2, err := second.Completion(waitCtx)
	require.NoError(t, err)
	require.Equal(t, executor.StatusCompleted, c1.Status)
	require.Equal(t, executor.StatusCompleted, c2.Status)

	users, err := r.eng.LoadPage(ctx, connectortest.TypeUser, engine.Refs(), nil)
	require.NoError(t, err)
	require.Len(t, users.Entities, 3, "interleaved idempotent upserts converge")
}

// failingRunner fails one specific payload kind and delegates the rest.
type failingRunner struct {
	inner executor.Runner
}

func (f *failingRunner) Run(ctx context.Context, t task.Task) ([]task.Template, error) {
	if t.Payload.Kind == task.PayloadLoadFields && t.Payload.LoadFields.Loader == "user-fields" {
		return nil, maxerrors.Define("execution.loader_failed", "loader {loader} failed",
			maxerrors.HasLoaderName).New(maxerrors.Props{"loader": "user-fields"})
	}
	return f.inner.Run(ctx, t)
}

func TestSync_FailFast(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	eng, err := engine.OpenSQLite(filepath.Join(dir, "engine.db"), connectortest.Schema())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	store, err := task.OpenSQLite(filepath.Join(dir, "tasks.db"), &id.SequenceGenerator{Prefix: "task"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	conn := connectortest.New(acmeData())
	inst, err := conn.NewInstallation(context.Background(), nil, nil)
	require.NoError(t, err)
	runner := &failingRunner{inner: executor.NewConnectorRunner(conn.Resolver(), inst, eng, eng)}
	exec := executor.New(store, runner, &id.SequenceGenerator{Prefix: "sync"}, logger.Nop(), executor.Options{})

	ctx := context.Background()
	plan, err := conn.Seeder().Seed(ctx, eng)
	require.NoError(t, err)
	handle, err := exec.Execute(ctx, plan)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	completion, err := handle.Completion(waitCtx)
	require.NoError(t, err)

	require.Equal(t, executor.StatusFailed, completion.Status)
	require.Positive(t, completion.TasksFailed)

	// Every ancestor of the failed leaf failed; completed siblings stay
	// completed.
	failed, err := store.FindBySync(ctx, handle.ID(), task.StateFailed)
	require.NoError(t, err)
	var kinds []task.PayloadKind
	for _, ft := range failed {
		kinds = append(kinds, ft.Payload.Kind)
	}
	require.Contains(t, kinds, task.PayloadLoadFields)
	require.Contains(t, kinds, task.PayloadSyncStep)
	require.Contains(t, kinds, task.PayloadSyncGroup)

	completed, err := store.FindBySync(ctx, handle.ID(), task.StateCompleted)
	require.NoError(t, err)
	require.NotEmpty(t, completed)
}

// blockingRunner parks on the first load-collection until released.
type blockingRunner struct {
	inner   executor.Runner
	started chan struct{}
	release chan struct{}
	blocked bool
}

func (b *blockingRunner) Run(ctx context.Context, t task.Task) ([]task.Template, error) {
	if t.Payload.Kind == task.PayloadLoadCollection && !b.blocked {
		b.blocked = true
		close(b.started)
		<-b.release
	}
	return b.inner.Run(ctx, t)
}

func TestSync_Cancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	eng, err := engine.OpenSQLite(filepath.Join(dir, "engine.db"), connectortest.Schema())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	store, err := task.OpenSQLite(filepath.Join(dir, "tasks.db"), &id.SequenceGenerator{Prefix: "task"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	conn := connectortest.New(acmeData())
	inst, err := conn.NewInstallation(context.Background(), nil, nil)
	require.NoError(t, err)
	runner := &blockingRunner{
		inner:   executor.NewConnectorRunner(conn.Resolver(), inst, eng, eng),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	exec := executor.New(store, runner, &id.SequenceGenerator{Prefix: "sync"}, logger.Nop(), executor.Options{})

	ctx := context.Background()
	plan, err := conn.Seeder().Seed(ctx, eng)
	require.NoError(t, err)
	handle, err := exec.Execute(ctx, plan)
	require.NoError(t, err)

	<-runner.started
	require.NoError(t, handle.Cancel(ctx))
	close(runner.release)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	completion, err := handle.Completion(waitCtx)
	require.NoError(t, err)
	require.Equal(t, executor.StatusCancelled, completion.Status)

	running, err := store.Count(ctx, handle.ID(), task.StateRunning)
	require.NoError(t, err)
	require.Zero(t, running, "no further tasks transition to running after cancel")

	pending, err := store.Count(ctx, handle.ID(), task.StatePending)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestSync_EmptyPlanSettlesImmediately(t *testing.T) {
	t.Parallel()

	r := newRig(t, &connectortest.Data{})
	handle, err := r.exec.Execute(context.Background(), syncplan.NewPlan())
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	completion, err := handle.Completion(waitCtx)
	require.NoError(t, err)
	require.Equal(t, executor.StatusCompleted, completion.Status)
	require.Zero(t, completion.TasksCompleted)
}
