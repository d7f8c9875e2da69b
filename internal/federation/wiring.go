package federation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/logger"
	"github.com/maxdata-sh/max/internal/node"
	"github.com/maxdata-sh/max/internal/rpc"
	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/task"
	"github.com/maxdata-sh/max/internal/transport"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// NewInProcessInstallationDeployer materialises installations inside the
// current process: engine and task store open under the workspace's
// installations directory, and the client is an installation proxy over a
// loopback transport, so in-process callers exercise the same RPC contract
// as remote ones.
func NewInProcessInstallationDeployer(
	connectors *connector.Registry,
	projectRoot string,
	gen id.Generator,
	log *logger.Logger,
) *node.InProcessDeployer[rpc.InstallationAPI] {
	return &node.InProcessDeployer[rpc.InstallationAPI]{
		Build: func(ctx context.Context, cfg config.DeployConfig, specBytes []byte) (supervise.NodeHandle[rpc.InstallationAPI], error) {
			var spec config.InstallationSpec
			if err := json.Unmarshal(specBytes, &spec); err != nil {
				return supervise.NodeHandle[rpc.InstallationAPI]{}, maxerrors.Internal.Wrap(err, nil)
			}
			conn, err := connectors.Lookup(spec.Connector)
			if err != nil {
				return supervise.NodeHandle[rpc.InstallationAPI]{}, err
			}
			inst, err := conn.NewInstallation(ctx, spec.ConnectorConfig, spec.InitialCredentials)
			if err != nil {
				return supervise.NodeHandle[rpc.InstallationAPI]{}, err
			}

			dir := config.InstallationDir(projectRoot, spec.Name)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return supervise.NodeHandle[rpc.InstallationAPI]{}, maxerrors.Internal.Wrap(err, nil)
			}
			eng, err := engine.OpenSQLite(filepath.Join(dir, "engine.db"), conn.Schema())
			if err != nil {
				return supervise.NodeHandle[rpc.InstallationAPI]{}, err
			}
			store, err := task.OpenSQLite(filepath.Join(dir, "tasks.db"), gen)
			if err != nil {
				_ = eng.Close()
				return supervise.NodeHandle[rpc.InstallationAPI]{}, err
			}

			instID := id.InstallationID(gen.NewID())
			max := NewInstallationMax(InstallationParams{
				Info: rpc.InstallationInfo{
					ID:          instID,
					Connector:   spec.Connector,
					Name:        spec.Name,
					ConnectedAt: time.Now(),
				},
				Connector: conn,
				Install:   inst,
				Engine:    eng,
				Store:     store,
				IDs:       gen,
				Log:       log,
			})

			service := rpc.NewInstallationService(max)
			dispatcher := rpc.NewInstallationDispatcher(service)
			client := rpc.NewInstallationClient(transport.NewLoopback(dispatcher.Dispatch))
			return supervise.NodeHandle[rpc.InstallationAPI]{
				ID:      string(instID),
				Client:  client,
				Locator: "inproc:" + spec.Name,
			}, nil
		},
	}
}

// NewInProcessWorkspaceDeployer materialises workspaces inside the current
// process, sharing one connector registry across them.
func NewInProcessWorkspaceDeployer(
	connectors *connector.Registry,
	gen id.Generator,
	log *logger.Logger,
) *node.InProcessDeployer[rpc.WorkspaceAPI] {
	return &node.InProcessDeployer[rpc.WorkspaceAPI]{
		Build: func(ctx context.Context, cfg config.DeployConfig, specBytes []byte) (supervise.NodeHandle[rpc.WorkspaceAPI], error) {
			var spec WorkspaceSpec
			if err := json.Unmarshal(specBytes, &spec); err != nil {
				return supervise.NodeHandle[rpc.WorkspaceAPI]{}, maxerrors.Internal.Wrap(err, nil)
			}
			wsID := spec.ID
			if wsID == "" {
				wsID = id.WorkspaceID(gen.NewID())
			}

			deployers := node.NewRegistry[rpc.InstallationAPI](
				NewInProcessInstallationDeployer(connectors, spec.ProjectRoot, gen, log),
				&node.DockerDeployer[rpc.InstallationAPI]{},
				&node.DaemonDeployer[rpc.InstallationAPI]{
					NewClient: func(t transport.Transport) rpc.InstallationAPI {
						return rpc.NewInstallationClient(t)
					},
				},
				&node.RemoteDeployer[rpc.InstallationAPI]{
					NewClient: func(t transport.Transport) rpc.InstallationAPI {
						return rpc.NewInstallationClient(t)
					},
				},
			)

			ws := NewWorkspaceMax(WorkspaceParams{
				ID:         wsID,
				Name:       spec.Name,
				Registry:   NewInstallationRegistry(config.ManifestPath(spec.ProjectRoot)),
				Deployers:  deployers,
				Connectors: connectors,
				IDs:        gen,
				Log:        log,
			})

			dispatcher := rpc.NewWorkspaceDispatcher(ws)
			client := rpc.NewWorkspaceClient(transport.NewLoopback(dispatcher.Dispatch))
			return supervise.NodeHandle[rpc.WorkspaceAPI]{
				ID:      string(wsID),
				Client:  client,
				Locator: "inproc:" + spec.ProjectRoot,
			}, nil
		},
	}
}
