package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/supervise"
	"github.com/maxdata-sh/max/internal/transport"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Dispatcher routes a request to a handler. It never returns a Go error to
// its transport; failures are encoded in the response.
type Dispatcher interface {
	Dispatch(ctx context.Context, req transport.Request) transport.Response
}

// respond encodes a handler outcome as a response.
func respond(req transport.Request, result any, err error) transport.Response {
	if err != nil {
		return transport.Response{ID: req.ID, OK: false, Error: maxerrors.Serialize(err)}
	}
	encoded, merr := json.Marshal(result)
	if merr != nil {
		return transport.Response{ID: req.ID, OK: false, Error: maxerrors.Serialize(
			maxerrors.Internal.Wrap(merr, nil))}
	}
	return transport.Response{ID: req.ID, OK: true, Result: encoded}
}

// guard converts handler panics into rpc.internal responses so a dispatcher
// never throws to its transport.
func guard(req transport.Request, fn func() transport.Response) (resp transport.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = transport.Response{ID: req.ID, OK: false, Error: maxerrors.Serialize(
				errInternal.New(maxerrors.Props{"cause": fmt.Sprintf("%v", r)}))}
		}
	}()
	return fn()
}

// arg decodes the i-th positional argument.
func arg[T any](req transport.Request, i int) (T, error) {
	var out T
	if i >= len(req.Args) {
		return out, errBadArgs.New(maxerrors.Props{
			"method": req.Method,
			"index":  i,
			"cause":  "missing",
		})
	}
	if err := json.Unmarshal(req.Args[i], &out); err != nil {
		return out, errBadArgs.Wrap(err, maxerrors.Props{
			"method": req.Method,
			"index":  i,
		})
	}
	return out, nil
}

// dispatchSupervised handles the lifecycle methods every node exposes on the
// root target. The bool reports whether the method was recognised.
func dispatchSupervised(ctx context.Context, s supervise.Supervised, req transport.Request) (transport.Response, bool) {
	switch req.Method {
	case "health":
		return respond(req, s.Health(ctx), nil), true
	case "start":
		return respond(req, s.Start(ctx), nil), true
	case "stop":
		return respond(req, s.Stop(ctx), nil), true
	}
	return transport.Response{}, false
}

// dispatchEngine handles the engine target.
func dispatchEngine(ctx context.Context, eng engine.Engine, req transport.Request) transport.Response {
	switch req.Method {
	case "load":
		r, err := arg[ref.Ref](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		projection, err := arg[engine.Projection](req, 1)
		if err != nil {
			return respond(req, nil, err)
		}
		result, err := eng.Load(ctx, r, projection)
		return respond(req, result, err)
	case "loadField":
		r, err := arg[ref.Ref](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		field, err := arg[id.FieldName](req, 1)
		if err != nil {
			return respond(req, nil, err)
		}
		value, err := eng.LoadField(ctx, r, field)
		return respond(req, value, err)
	case "loadCollection":
		r, err := arg[ref.Ref](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		field, err := arg[id.FieldName](req, 1)
		if err != nil {
			return respond(req, nil, err)
		}
		page, err := arg[*engine.Page](req, 2)
		if err != nil {
			return respond(req, nil, err)
		}
		result, err := eng.LoadCollection(ctx, r, field, page)
		return respond(req, result, err)
	case "store":
		input, err := arg[engine.EntityInput](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		stored, err := eng.Store(ctx, input)
		return respond(req, stored, err)
	case "loadPage":
		t, err := arg[id.EntityType](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		projection, err := arg[engine.Projection](req, 1)
		if err != nil {
			return respond(req, nil, err)
		}
		page, err := arg[*engine.Page](req, 2)
		if err != nil {
			return respond(req, nil, err)
		}
		result, err := eng.LoadPage(ctx, t, projection, page)
		return respond(req, result, err)
	case "query":
		q, err := arg[engine.Query](req, 0)
		if err != nil {
			return respond(req, nil, err)
		}
		result, err := eng.Query(ctx, q)
		return respond(req, result, err)
	}
	return respond(req, nil, ErrUnknownMethod.New(maxerrors.Props{
		"target": TargetEngine,
		"method": req.Method,
	}))
}

func unknownTarget(req transport.Request) transport.Response {
	return respond(req, nil, ErrUnknownTarget.New(maxerrors.Props{"target": req.Target}))
}

func unknownMethod(req transport.Request) transport.Response {
	return respond(req, nil, ErrUnknownMethod.New(maxerrors.Props{
		"target": req.Target,
		"method": req.Method,
	}))
}
