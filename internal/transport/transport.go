// Package transport carries RPC requests between nodes.
//
// A Transport is the only mechanism nodes use to speak to remote peers;
// in-process callers go through the loopback implementation so every caller
// sees the same contract. Transports never fabricate dispatch errors: wire
// failures surface as platform.transport_* errors, while errors produced by
// the remote dispatcher arrive serialized and are reconstituted for the
// caller.
package transport

import (
	"context"
	"encoding/json"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Scope is the optional routing envelope on a request. Dispatchers read it
// to decide whether to handle the request themselves or delegate downward.
type Scope struct {
	WorkspaceID    string `json:"workspaceId,omitempty"`
	InstallationID string `json:"installationId,omitempty"`
}

// Request is one RPC invocation.
type Request struct {
	ID     string            `json:"id"`
	Target string            `json:"target"`
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args,omitempty"`
	Scope  *Scope            `json:"scope,omitempty"`
}

// Response is the reply to one request, matched by id.
type Response struct {
	ID     string           `json:"id"`
	OK     bool             `json:"ok"`
	Result json.RawMessage  `json:"result,omitempty"`
	Error  *maxerrors.Wire  `json:"error,omitempty"`
}

// DispatchFunc is the receiving side of a transport. It never returns a Go
// error; failures are encoded in the response.
type DispatchFunc func(ctx context.Context, req Request) Response

// Transport sends requests and returns the raw result value.
type Transport interface {
	Send(ctx context.Context, req Request) (json.RawMessage, error)
	Close() error
}

// PromptFunc answers an input prompt sent by the remote side of a stream
// transport.
type PromptFunc func(ctx context.Context, text string) (string, error)

var (
	// ErrClosed covers sends on a transport that has been closed.
	ErrClosed = maxerrors.Define("platform.transport_closed", "transport is closed")
	errIO     = maxerrors.Define("platform.transport_io", "transport i/o failure: {cause}")
	errDecode = maxerrors.Define("platform.transport_decode", "transport received an undecodable frame: {cause}")
)

// resultOf converts a response into the caller-side return values,
// reconstituting structured errors from the wire.
func resultOf(resp Response) (json.RawMessage, error) {
	if resp.OK {
		return resp.Result, nil
	}
	if resp.Error == nil {
		return nil, maxerrors.Internal.New(maxerrors.Props{"cause": "failure response without error"})
	}
	return nil, maxerrors.Reconstitute(resp.Error)
}
