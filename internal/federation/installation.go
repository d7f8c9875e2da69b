// Package federation implements the three node levels of the hierarchy:
// installation, workspace, and global.
package federation

import (
	"context"

	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/executor"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/lifecycle"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/schema"
	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/task"
)

// InstallationParams wires an installation node.
type InstallationParams struct {
	Info        rpc.InstallationInfo
	Connector   connector.Connector
	Install     connector.Installation
	Engine      *engine.SQLiteEngine
	Store       task.Store
	IDs         id.Generator
	Log         *logger.Logger
	Concurrency int
}

// InstallationMax owns a connector's live installation: the opaque
// per-tenant object, the schema, the seeder, the engine, and the sync
// executor. Its lifecycle auto-composes the installation and the executor.
// The engine is not a lifecycle step: it is opened when the node is built
// and released by Close.
type InstallationMax struct {
	info  rpc.InstallationInfo
	conn  connector.Connector
	inst  connector.Installation
	eng   *engine.SQLiteEngine
	store task.Store
	exec  *executor.Executor
	lc    *lifecycle.Lifecycle
	log   *logger.Logger
}

var _ rpc.InstallationNode = (*InstallationMax)(nil)

// NewInstallationMax builds the node and its executor from params.
func NewInstallationMax(p InstallationParams) *InstallationMax {
	log := p.Log.WithFields(map[string]any{"installation": string(p.Info.ID)})
	runner := executor.NewConnectorRunner(p.Connector.Resolver(), p.Install, p.Engine, p.Engine)
	exec := executor.New(p.Store, runner, p.IDs, log, executor.Options{Concurrency: p.Concurrency})

	m := &InstallationMax{
		info:  p.Info,
		conn:  p.Connector,
		inst:  p.Install,
		eng:   p.Engine,
		store: p.Store,
		exec:  exec,
		log:   log,
	}
	m.lc = lifecycle.Auto(
		lifecycle.Seq("installation", p.Install),
		lifecycle.Seq("executor", exec),
	)
	return m
}

// Health reports healthy while the lifecycle is running.
func (m *InstallationMax) Health(ctx context.Context) supervise.HealthStatus {
	if m.lc.Started() {
		return supervise.HealthStatus{State: supervise.Healthy}
	}
	return supervise.HealthStatus{State: supervise.Unhealthy, Reason: "stopped"}
}

// Start walks the lifecycle forward. A second call reports already_running.
func (m *InstallationMax) Start(ctx context.Context) supervise.StartResult {
	err := m.lc.Start(ctx)
	switch {
	case err == nil:
		m.log.Info("installation started")
		return supervise.StartResult{State: supervise.Started}
	case lifecycle.ErrAlreadyStarted.Is(err):
		return supervise.StartResult{State: supervise.AlreadyRunning}
	default:
		m.log.Error(err, "installation start failed")
		return supervise.StartError(err)
	}
}

// Stop walks the lifecycle in reverse. Stopping a stopped node reports
// already_stopped.
func (m *InstallationMax) Stop(ctx context.Context) supervise.StopResult {
	if !m.lc.Started() {
		return supervise.StopResult{State: supervise.AlreadyStopped}
	}
	if err := m.lc.Stop(ctx); err != nil {
		m.log.Error(err, "installation stop failed")
		return supervise.StopError(err)
	}
	m.log.Info("installation stopped")
	return supervise.StopResult{State: supervise.Stopped}
}

// Engine exposes the installation's data plane.
func (m *InstallationMax) Engine() engine.Engine { return m.eng }

// Describe returns the node's identity.
func (m *InstallationMax) Describe(ctx context.Context) (rpc.InstallationInfo, error) {
	return m.info, nil
}

// Schema returns the connector schema.
func (m *InstallationMax) Schema(ctx context.Context) (*schema.Schema, error) {
	return m.conn.Schema(), nil
}

// StartSync asks the seeder for a plan and hands it to the executor.
func (m *InstallationMax) StartSync(ctx context.Context) (*executor.SyncHandle, error) {
	plan, err := m.conn.Seeder().Seed(ctx, m.eng)
	if err != nil {
		return nil, err
	}
	return m.exec.Execute(ctx, plan)
}

// Close releases the node's storage. It is separate from Stop so a stopped
// node can be restarted without reopening databases.
func (m *InstallationMax) Close() error {
	err := m.eng.Close()
	if serr := m.store.Close(); err == nil {
		err = serr
	}
	return err
}
