package rpc

import (
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// The rpc boundary owns the routing error namespace.
var (
	ErrUnknownTarget = maxerrors.Define(
		"rpc.unknown_target",
		"no handler for target {target}",
		maxerrors.NotFound,
	)
	ErrUnknownMethod = maxerrors.Define(
		"rpc.unknown_method",
		"target {target} has no method {method}",
		maxerrors.NotFound,
	)
	ErrNodeNotFound = maxerrors.Define(
		"rpc.node_not_found",
		"no node for scope {scope}",
		maxerrors.NotFound,
	)
	errBadArgs = maxerrors.Define(
		"rpc.bad_args",
		"method {method} argument {index} is unusable: {cause}",
		maxerrors.BadInput,
	)
	errInternal = maxerrors.Define(
		"rpc.internal",
		"handler panicked: {cause}",
		maxerrors.InvariantViolated,
	)
	errSyncNotFound = maxerrors.Define(
		"execution.sync_not_found",
		"no active sync {sync}",
		maxerrors.NotFound,
	)
)
