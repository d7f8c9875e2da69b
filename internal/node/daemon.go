package node

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/transport"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

const daemonDialTimeout = 5 * time.Second

var errDaemonSpawn = maxerrors.Define(
	"federation.daemon_spawn",
	"daemon did not come up at {socket}: {cause}",
)

// DaemonDeployer runs a node as a child process reachable over a unix
// socket. The locator is "unix:<socket path>", enough to reattach after
// this process restarts.
type DaemonDeployer[C supervise.Supervised] struct {
	// NewClient builds the node's client over a connected transport.
	NewClient func(t transport.Transport) C
	// Launch starts the daemon process. The default execs the config's
	// command with the socket path appended.
	Launch func(ctx context.Context, cfg config.DeployConfig, spec []byte) error
}

var _ Deployer[supervise.Supervised] = (*DaemonDeployer[supervise.Supervised])(nil)

// Kind returns "daemon".
func (d *DaemonDeployer[C]) Kind() string { return KindDaemon }

// Create launches the daemon and connects once its socket appears.
func (d *DaemonDeployer[C]) Create(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	launch := d.Launch
	if launch == nil {
		launch = launchCommand
	}
	if err := launch(ctx, cfg, spec); err != nil {
		return supervise.NodeHandle[C]{}, errDaemonSpawn.Wrap(err, maxerrors.Props{"socket": cfg.SocketPath})
	}
	return d.dial(ctx, cfg.SocketPath)
}

// Connect reattaches to a daemon that is already running.
func (d *DaemonDeployer[C]) Connect(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	return d.dial(ctx, cfg.SocketPath)
}

// Teardown removes the socket file; the daemon itself exits when its last
// connection closes or on its own signal handling.
func (d *DaemonDeployer[C]) Teardown(ctx context.Context, cfg config.DeployConfig, spec []byte) error {
	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return errDaemonSpawn.Wrap(err, maxerrors.Props{"socket": cfg.SocketPath})
	}
	return nil
}

func (d *DaemonDeployer[C]) dial(ctx context.Context, socketPath string) (supervise.NodeHandle[C], error) {
	deadline := time.Now().Add(daemonDialTimeout)
	for {
		client, err := transport.DialSocket(socketPath)
		if err == nil {
			return supervise.NodeHandle[C]{
				Kind:    KindDaemon,
				Client:  d.NewClient(client),
				Locator: "unix:" + socketPath,
			}, nil
		}
		if time.Now().After(deadline) {
			return supervise.NodeHandle[C]{}, errDaemonSpawn.Wrap(err, maxerrors.Props{"socket": socketPath})
		}
		select {
		case <-ctx.Done():
			return supervise.NodeHandle[C]{}, errDaemonSpawn.Wrap(ctx.Err(), maxerrors.Props{"socket": socketPath})
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func launchCommand(ctx context.Context, cfg config.DeployConfig, spec []byte) error {
	parts := strings.Fields(cfg.Command)
	if len(parts) == 0 {
		return maxerrors.Internal.New(maxerrors.Props{"cause": "daemon config has no command"})
	}
	cmd := exec.Command(parts[0], append(parts[1:], cfg.SocketPath)...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	// Detach: the daemon owns its own lifetime from here.
	return cmd.Process.Release()
}
