package node

import (
	"context"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/supervise"
)

// InlineDeployer hands out a pre-built client. It exists for tests and
// scaffolding: the "deployment" is whatever object it was given.
type InlineDeployer[C supervise.Supervised] struct {
	Build func(ctx context.Context, cfg config.DeployConfig, spec []byte) (C, error)
}

var _ Deployer[supervise.Supervised] = (*InlineDeployer[supervise.Supervised])(nil)

// Kind returns "inline".
func (d *InlineDeployer[C]) Kind() string { return KindInline }

// Create builds the client via the injected constructor.
func (d *InlineDeployer[C]) Create(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	client, err := d.Build(ctx, cfg, spec)
	if err != nil {
		return supervise.NodeHandle[C]{}, err
	}
	return supervise.NodeHandle[C]{Kind: KindInline, Client: client, Locator: "inline:"}, nil
}

// Connect behaves like Create: inline nodes have nothing to reattach to.
func (d *InlineDeployer[C]) Connect(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	return d.Create(ctx, cfg, spec)
}

// Teardown is a no-op.
func (d *InlineDeployer[C]) Teardown(ctx context.Context, cfg config.DeployConfig, spec []byte) error {
	return nil
}
