// Package node abstracts how federation nodes are materialised: deployers
// build or reattach to a node of a given technology and hand back an
// unlabelled handle for the parent's supervisor to stamp.
package node

import (
	"context"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/supervise"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Deployer kinds present in this system. The config's strategy field is the
// discriminant.
const (
	KindInline    = "inline"
	KindInProcess = "in-process"
	KindDaemon    = "daemon"
	KindDocker    = "docker"
	KindRemote    = "remote"
)

var (
	// ErrUnknownStrategy covers configs whose strategy has no registered
	// deployer.
	ErrUnknownStrategy = maxerrors.Define(
		"federation.unknown_strategy",
		"no deployer registered for strategy {strategy}",
		maxerrors.NotFound,
	)
	// ErrUnsupported covers operations a deployer kind refuses.
	ErrUnsupported = maxerrors.Define(
		"federation.deployer_unsupported",
		"deployer {strategy} does not support {operation}",
		maxerrors.NotSupported,
	)
)

// Deployer materialises nodes of one technology. The spec payload is opaque
// to the deployer contract; each kind decodes what it needs. Create builds a
// fresh node; Connect reattaches to an already-running one (kinds may
// reject it); Teardown releases the deployment.
type Deployer[C supervise.Supervised] interface {
	Kind() string
	Create(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error)
	Connect(ctx context.Context, cfg config.DeployConfig, spec []byte) (supervise.NodeHandle[C], error)
	Teardown(ctx context.Context, cfg config.DeployConfig, spec []byte) error
}

// Registry holds the deployers available at one federation level, keyed by
// kind.
type Registry[C supervise.Supervised] struct {
	deployers map[string]Deployer[C]
}

// NewRegistry builds a deployer registry.
func NewRegistry[C supervise.Supervised](deployers ...Deployer[C]) *Registry[C] {
	r := &Registry[C]{deployers: make(map[string]Deployer[C])}
	for _, d := range deployers {
		r.deployers[d.Kind()] = d
	}
	return r
}

// Register adds or replaces a deployer.
func (r *Registry[C]) Register(d Deployer[C]) {
	r.deployers[d.Kind()] = d
}

// Lookup routes a strategy to its deployer.
func (r *Registry[C]) Lookup(strategy string) (Deployer[C], error) {
	d, ok := r.deployers[strategy]
	if !ok {
		return nil, ErrUnknownStrategy.New(maxerrors.Props{"strategy": strategy})
	}
	return d, nil
}
