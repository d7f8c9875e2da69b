package rpc

import (
	"context"

	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/transport"
)

// SupervisedClient implements the supervised contract by forwarding to a
// transport. Health probes catch every failure and report unreachable
// rather than propagate; start and stop surface transport failures as the
// error outcome variant.
type SupervisedClient struct {
	c caller
}

var _ supervise.Supervised = (*SupervisedClient)(nil)

// NewSupervisedClient builds a supervised proxy over t.
func NewSupervisedClient(t transport.Transport) *SupervisedClient {
	return &SupervisedClient{c: caller{t: t}}
}

// Health probes the remote node.
func (p *SupervisedClient) Health(ctx context.Context) supervise.HealthStatus {
	var status supervise.HealthStatus
	if err := p.c.call(ctx, TargetRoot, "health", &status); err != nil {
		return supervise.HealthStatus{State: supervise.Unhealthy, Reason: "unreachable"}
	}
	return status
}

// Start starts the remote node.
func (p *SupervisedClient) Start(ctx context.Context) supervise.StartResult {
	var result supervise.StartResult
	if err := p.c.call(ctx, TargetRoot, "start", &result); err != nil {
		return supervise.StartError(err)
	}
	return result
}

// Stop stops the remote node.
func (p *SupervisedClient) Stop(ctx context.Context) supervise.StopResult {
	var result supervise.StopResult
	if err := p.c.call(ctx, TargetRoot, "stop", &result); err != nil {
		return supervise.StopError(err)
	}
	return result
}
