package main

import (
	"context"
	"os"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/federation"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/node"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/transport"
)

// appContext wires the CLI's view of the federation: a target URL resolved
// to a client, either over a workspace daemon socket when one is up, or an
// in-process global node otherwise.
type appContext struct {
	flags  *rootFlags
	log    *logger.Logger
	target config.Target

	global  rpc.GlobalAPI
	closers []func() error
}

func newAppContext(flags *rootFlags) (*appContext, error) {
	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{
		Level:     level,
		Console:   config.ColorEnabled(),
		Component: "cli",
	})
	if err != nil {
		return nil, err
	}

	raw := flags.target
	if raw == "" {
		raw = config.DefaultTarget()
	}
	if raw == "" {
		raw = "max://" + config.GlobalHost
	}
	target, err := config.ParseTarget(raw)
	if err != nil {
		return nil, err
	}

	app := &appContext{flags: flags, log: log, target: target}
	if err := app.connect(); err != nil {
		return nil, err
	}
	return app, nil
}

// connect builds the global client. A running workspace daemon is preferred
// when the target names a workspace whose socket exists; otherwise the CLI
// hosts an in-process global node for the duration of the command.
func (a *appContext) connect() error {
	if a.target.Workspace != "" {
		paths := config.DaemonPathsFor(a.target.Workspace)
		if _, err := os.Stat(paths.Socket); err == nil {
			client, err := transport.DialSocket(paths.Socket, transport.WithPrompt(promptOnTerminal))
			if err == nil {
				// The daemon serves the workspace dispatcher directly; wrap
				// it one level up so scope routing still applies.
				a.closers = append(a.closers, client.Close)
				a.global = &daemonGlobal{ws: rpc.NewWorkspaceClient(client), wsID: a.target.Workspace}
				return nil
			}
			a.log.Error(err, "stale daemon socket, falling back to in-process")
		}
	}

	gen := id.UUIDGenerator{}
	connectors := connector.NewRegistry()
	deployers := node.NewRegistry[rpc.WorkspaceAPI](
		federation.NewInProcessWorkspaceDeployer(connectors, gen, a.log),
	)
	global := federation.NewGlobalMax(federation.GlobalParams{
		Registry:  federation.NewWorkspaceRegistry(config.GlobalManifestPath()),
		Deployers: deployers,
		IDs:       gen,
		Log:       a.log,
	})
	dispatcher := rpc.NewGlobalDispatcher(global)
	client := rpc.NewGlobalClient(transport.NewLoopback(dispatcher.Dispatch))

	// The global reconciles persisted workspaces on start; host it for the
	// duration of this command.
	if result := client.Start(context.Background()); result.State == supervise.StartErrored {
		a.log.Warn("global node failed to start")
	}
	a.global = client
	a.closers = append(a.closers, func() error {
		client.Stop(context.Background())
		return client.Close()
	})
	return nil
}

// Global returns the resolved global client.
func (a *appContext) Global() rpc.GlobalAPI { return a.global }

// Workspace resolves the target's workspace client.
func (a *appContext) Workspace() (rpc.WorkspaceAPI, error) {
	return a.global.Workspace(a.target.Workspace)
}

// Installation resolves the target's installation client.
func (a *appContext) Installation() (rpc.InstallationAPI, error) {
	ws, err := a.Workspace()
	if err != nil {
		return nil, err
	}
	return ws.Installation(a.target.Installation)
}

// Close releases transports opened for this command.
func (a *appContext) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
