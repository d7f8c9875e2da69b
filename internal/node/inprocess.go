package node

import (
	"context"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/supervise"
)

// InProcessDeployer builds nodes in the current process. The injected
// builder wires the node's dispatcher behind a loopback transport so the
// resulting client is indistinguishable from a remote one. Builders that
// know the node's identity may pre-label the handle; the supervisor stamps
// an id only when the handle comes back unlabelled.
type InProcessDeployer[C supervise.Supervised] struct {
	Build func(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error)
}

var _ Deployer[supervise.Supervised] = (*InProcessDeployer[supervise.Supervised])(nil)

// Kind returns "in-process".
func (d *InProcessDeployer[C]) Kind() string { return KindInProcess }

// Create builds a fresh node.
func (d *InProcessDeployer[C]) Create(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	h, err := d.Build(ctx, cfg, spec)
	if err != nil {
		return supervise.NodeHandle[C]{}, err
	}
	h.Kind = KindInProcess
	return h, nil
}

// Connect re-materialises the node from its persisted spec. In-process
// nodes do not outlive the process, so reconnecting rebuilds them.
func (d *InProcessDeployer[C]) Connect(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error) {
	return d.Create(ctx, cfg, spec)
}

// Teardown is a no-op; the node dies with the process.
func (d *InProcessDeployer[C]) Teardown(ctx context.Context, cfg config.DeployConfig, spec []byte) error {
	return nil
}
