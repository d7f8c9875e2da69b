package rpc

import (
	"context"
	"sync"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/transport"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// WorkspaceDispatcher routes requests onto a workspace API. Requests scoped
// to an installation delegate to that installation's dispatcher, which is
// cached per installation id so handler state is not rebuilt per request.
type WorkspaceDispatcher struct {
	api WorkspaceAPI

	mu    sync.Mutex
	cache map[id.InstallationID]*InstallationDispatcher
}

var _ Dispatcher = (*WorkspaceDispatcher)(nil)

// NewWorkspaceDispatcher builds a dispatcher over a workspace API.
func NewWorkspaceDispatcher(api WorkspaceAPI) *WorkspaceDispatcher {
	return &WorkspaceDispatcher{
		api:   api,
		cache: make(map[id.InstallationID]*InstallationDispatcher),
	}
}

// Dispatch applies scope routing, then routes (target, method).
func (d *WorkspaceDispatcher) Dispatch(ctx context.Context, req transport.Request) transport.Response {
	return guard(req, func() transport.Response {
		if req.Scope != nil && req.Scope.InstallationID != "" {
			return d.delegate(ctx, req)
		}
		switch req.Target {
		case TargetRoot:
			return d.dispatchRoot(ctx, req)
		}
		return unknownTarget(req)
	})
}

// delegate strips the installation id from the scope and hands the request
// to the installation's dispatcher.
func (d *WorkspaceDispatcher) delegate(ctx context.Context, req transport.Request) transport.Response {
	instID := id.InstallationID(req.Scope.InstallationID)
	sub, err := d.installationDispatcher(instID)
	if err != nil {
		return respond(req, nil, err)
	}

	inner := req
	scope := *req.Scope
	scope.InstallationID = ""
	if scope == (transport.Scope{}) {
		inner.Scope = nil
	} else {
		inner.Scope = &scope
	}
	return sub.Dispatch(ctx, inner)
}

func (d *WorkspaceDispatcher) installationDispatcher(instID id.InstallationID) (*InstallationDispatcher, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sub, ok := d.cache[instID]; ok {
		return sub, nil
	}
	api, err := d.api.Installation(instID)
	if err != nil {
		return nil, ErrNodeNotFound.Wrap(err, maxerrors.Props{"scope": string(instID)})
	}
	sub := NewInstallationDispatcher(api)
	d.cache[instID] = sub
	return sub, nil
}

// Evict drops a cached installation dispatcher, e.g. after removal.
func (d *WorkspaceDispatcher) Evict(instID id.InstallationID) {
	d.mu.Lock()
	delete(d.cache, instID)
	d.mu.Unlock()
}

func (d *WorkspaceDispatcher) dispatchRoot(ctx context.Context, req transport.Request) transport.Response {
	if resp, handled := dispatchSupervised(ctx, d.api, req); handled {
		return resp
	}
	switch req.Method {
	case "listInstallations":
		list, err := d.api.ListInstallations(ctx)
		return respond(req, list, err)
	case "createInstallation":
		cfg, err := arg[CreateInstallationConfig](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		instID, err := d.api.CreateInstallation(ctx, cfg)
		return respond(req, instID, err)
	case "connectInstallation":
		cfg, err := arg[ConnectInstallationConfig](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		instID, err := d.api.ConnectInstallation(ctx, cfg)
		return respond(req, instID, err)
	case "removeInstallation":
		instID, err := arg[id.InstallationID](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		if err := d.api.RemoveInstallation(ctx, instID); err != nil {
			return respond(req, nil, err)
		}
		d.Evict(instID)
		return respond(req, nil, nil)
	case "listConnectors":
		list, err := d.api.ListConnectors(ctx)
		return respond(req, list, err)
	case "connectorSchema":
		name, err := arg[string](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		sch, err := d.api.ConnectorSchema(ctx, name)
		return respond(req, sch, err)
	case "connectorOnboarding":
		name, err := arg[string](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		steps, err := d.api.ConnectorOnboarding(ctx, name)
		return respond(req, steps, err)
	}
	return unknownMethod(req)
}
