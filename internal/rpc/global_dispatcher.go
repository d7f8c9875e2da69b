package rpc

import (
	"context"
	"sync"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/transport"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// GlobalDispatcher routes requests onto the global API. Requests scoped to
// a workspace delegate to that workspace's dispatcher.
type GlobalDispatcher struct {
	api GlobalAPI

	mu    sync.Mutex
	cache map[id.WorkspaceID]*WorkspaceDispatcher
}

var _ Dispatcher = (*GlobalDispatcher)(nil)

// NewGlobalDispatcher builds a dispatcher over the global API.
func NewGlobalDispatcher(api GlobalAPI) *GlobalDispatcher {
	return &GlobalDispatcher{
		api:   api,
		cache: make(map[id.WorkspaceID]*WorkspaceDispatcher),
	}
}

// Dispatch applies scope routing, then routes (target, method).
func (d *GlobalDispatcher) Dispatch(ctx context.Context, req transport.Request) transport.Response {
	return guard(req, func() transport.Response {
		if req.Scope != nil && req.Scope.WorkspaceID != "" {
			return d.delegate(ctx, req)
		}
		switch req.Target {
		case TargetRoot:
			return d.dispatchRoot(ctx, req)
		}
		return unknownTarget(req)
	})
}

func (d *GlobalDispatcher) delegate(ctx context.Context, req transport.Request) transport.Response {
	wsID := id.WorkspaceID(req.Scope.WorkspaceID)
	sub, err := d.workspaceDispatcher(wsID)
	if err != nil {
		return respond(req, nil, err)
	}

	inner := req
	scope := *req.Scope
	scope.WorkspaceID = ""
	if scope == (transport.Scope{}) {
		inner.Scope = nil
	} else {
		inner.Scope = &scope
	}
	return sub.Dispatch(ctx, inner)
}

func (d *GlobalDispatcher) workspaceDispatcher(wsID id.WorkspaceID) (*WorkspaceDispatcher, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sub, ok := d.cache[wsID]; ok {
		return sub, nil
	}
	api, err := d.api.Workspace(wsID)
	if err != nil {
		return nil, ErrNodeNotFound.Wrap(err, maxerrors.Props{"scope": string(wsID)})
	}
	sub := NewWorkspaceDispatcher(api)
	d.cache[wsID] = sub
	return sub, nil
}

// Evict drops a cached workspace dispatcher.
func (d *GlobalDispatcher) Evict(wsID id.WorkspaceID) {
	d.mu.Lock()
	delete(d.cache, wsID)
	d.mu.Unlock()
}

func (d *GlobalDispatcher) dispatchRoot(ctx context.Context, req transport.Request) transport.Response {
	if resp, handled := dispatchSupervised(ctx, d.api, req); handled {
		return resp
	}
	switch req.Method {
	case "listWorkspaces":
		list, err := d.api.ListWorkspaces(ctx)
		return respond(req, list, err)
	case "connectWorkspace":
		cfg, err := arg[ConnectWorkspaceConfig](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		wsID, err := d.api.ConnectWorkspace(ctx, cfg)
		return respond(req, wsID, err)
	case "removeWorkspace":
		wsID, err := arg[id.WorkspaceID](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		if err := d.api.RemoveWorkspace(ctx, wsID); err != nil {
			return respond(req, nil, err)
		}
		d.Evict(wsID)
		return respond(req, nil, nil)
	}
	return unknownMethod(req)
}
