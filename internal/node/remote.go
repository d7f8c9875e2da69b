package node

import (
	"context"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/transport"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// RemoteDeployer reaches nodes hosted elsewhere over HTTP. It can only
// attach to deployments that already exist.
type RemoteDeployer[C supervise.Supervised] struct {
	NewClient func(t transport.Transport) C
}

var _ Deployer[supervise.Supervised] = (*RemoteDeployer[supervise.Supervised])(nil)

// Kind returns "remote".
func (d *RemoteDeployer[C]) Kind() string { return KindRemote }

// Create is refused: remote deployments are provisioned out of band.
func (d *RemoteDeployer[C]) Create(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	return supervise.NodeHandle[C]{}, ErrUnsupported.New(maxerrors.Props{
		"strategy":  KindRemote,
		"operation": "create",
	})
}

// Connect builds a client over an HTTP transport to the configured address.
func (d *RemoteDeployer[C]) Connect(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	t := transport.NewHTTPClient(cfg.Addr)
	return supervise.NodeHandle[C]{
		Kind:    KindRemote,
		Client:  d.NewClient(t),
		Locator: cfg.Addr,
	}, nil
}

// Teardown is refused for the same reason Create is.
func (d *RemoteDeployer[C]) Teardown(ctx context.Context, cfg config.DeployConfig, spec []byte) error {
	return ErrUnsupported.New(maxerrors.Props{
		"strategy":  KindRemote,
		"operation": "teardown",
	})
}

// DockerDeployer is a placeholder: the kind is routable but every operation
// reports not supported.
type DockerDeployer[C supervise.Supervised] struct{}

var _ Deployer[supervise.Supervised] = (*DockerDeployer[supervise.Supervised])(nil)

// Kind returns "docker".
func (d *DockerDeployer[C]) Kind() string { return KindDocker }

// Create is not implemented for docker yet.
func (d *DockerDeployer[C]) Create(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	return supervise.NodeHandle[C]{}, ErrUnsupported.New(maxerrors.Props{
		"strategy":  KindDocker,
		"operation": "create",
	})
}

// Connect is not implemented for docker yet.
func (d *DockerDeployer[C]) Connect(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	return supervise.NodeHandle[C]{}, ErrUnsupported.New(maxerrors.Props{
		"strategy":  KindDocker,
		"operation": "connect",
	})
}

// Teardown is not implemented for docker yet.
func (d *DockerDeployer[C]) Teardown(ctx context.Context, cfg config.DeployConfig, spec []byte) error {
	return ErrUnsupported.New(maxerrors.Props{
		"strategy":  KindDocker,
		"operation": "teardown",
	})
}
