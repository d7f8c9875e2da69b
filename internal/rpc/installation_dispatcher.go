package rpc

import (
	"context"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/transport"
)

// InstallationDispatcher routes requests onto an installation API.
type InstallationDispatcher struct {
	api InstallationAPI
}

var _ Dispatcher = (*InstallationDispatcher)(nil)

// NewInstallationDispatcher builds a dispatcher over an installation API.
func NewInstallationDispatcher(api InstallationAPI) *InstallationDispatcher {
	return &InstallationDispatcher{api: api}
}

// Dispatch routes (target, method) to the API.
func (d *InstallationDispatcher) Dispatch(ctx context.Context, req transport.Request) transport.Response {
	return guard(req, func() transport.Response {
		switch req.Target {
		case TargetRoot:
			return d.dispatchRoot(ctx, req)
		case TargetEngine:
			return dispatchEngine(ctx, d.api.Engine(), req)
		}
		return unknownTarget(req)
	})
}

func (d *InstallationDispatcher) dispatchRoot(ctx context.Context, req transport.Request) transport.Response {
	if resp, handled := dispatchSupervised(ctx, d.api, req); handled {
		return resp
	}
	switch req.Method {
	case "describe":
		info, err := d.api.Describe(ctx)
		return respond(req, info, err)
	case "schema":
		sch, err := d.api.Schema(ctx)
		return respond(req, sch, err)
	case "sync":
		info, err := d.api.Sync(ctx)
		return respond(req, info, err)
	case "syncStatus":
		syncID, err := arg[id.SyncID](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		status, err := d.api.SyncStatus(ctx, syncID)
		return respond(req, status, err)
	case "syncPause":
		syncID, err := arg[id.SyncID](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		return respond(req, nil, d.api.SyncPause(ctx, syncID))
	case "syncCancel":
		syncID, err := arg[id.SyncID](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		return respond(req, nil, d.api.SyncCancel(ctx, syncID))
	case "syncCompletion":
		syncID, err := arg[id.SyncID](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		completion, err := d.api.SyncCompletion(ctx, syncID)
		return respond(req, completion, err)
	}
	return unknownMethod(req)
}
