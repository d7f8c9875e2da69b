// Package supervise defines the health and lifecycle contract every
// federation node exposes upward, and the supervisor that owns live child
// handles.
package supervise

import (
	"context"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// HealthState enumerates the closed health variants.
type HealthState string

const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"
)

// HealthStatus is the result of a health probe.
type HealthStatus struct {
	State  HealthState `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// StartState enumerates the closed start outcome variants.
type StartState string

const (
	Started        StartState = "started"
	AlreadyRunning StartState = "already_running"
	StartRefused   StartState = "refused"
	StartErrored   StartState = "error"
)

// StartResult is the outcome of a Start call.
type StartResult struct {
	State  StartState      `json:"status"`
	Reason string          `json:"reason,omitempty"`
	Err    *maxerrors.Wire `json:"error,omitempty"`
}

// StopState enumerates the closed stop outcome variants.
type StopState string

const (
	Stopped        StopState = "stopped"
	AlreadyStopped StopState = "already_stopped"
	StopRefused    StopState = "refused"
	StopErrored    StopState = "error"
)

// StopResult is the outcome of a Stop call.
type StopResult struct {
	State  StopState       `json:"status"`
	Reason string          `json:"reason,omitempty"`
	Err    *maxerrors.Wire `json:"error,omitempty"`
}

// Supervised is the contract every node exposes upward. Start is idempotent;
// a second call reports already_running. Outcomes are closed variants, not
// errors, so they serialize unchanged across the RPC plane.
type Supervised interface {
	Health(ctx context.Context) HealthStatus
	Start(ctx context.Context) StartResult
	Stop(ctx context.Context) StopResult
}

// StartError wraps err as a failed StartResult.
func StartError(err error) StartResult {
	return StartResult{State: StartErrored, Err: maxerrors.Serialize(err)}
}

// StopError wraps err as a failed StopResult.
func StopError(err error) StopResult {
	return StopResult{State: StopErrored, Err: maxerrors.Serialize(err)}
}
