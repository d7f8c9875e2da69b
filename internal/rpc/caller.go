package rpc

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/maxdata-sh/max/internal/transport"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// caller is the shared forwarding core of every proxy: it marshals
// positional args, sends one request, and unmarshals the result.
type caller struct {
	t transport.Transport
}

func (c caller) call(ctx context.Context, target, method string, out any, args ...any) error {
	encoded := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return maxerrors.Internal.Wrap(err, nil)
		}
		encoded = append(encoded, raw)
	}
	result, err := c.t.Send(ctx, transport.Request{
		ID:     uuid.NewString(),
		Target: target,
		Method: method,
		Args:   encoded,
	})
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return maxerrors.Internal.Wrap(err, nil)
	}
	return nil
}

// ScopedTransport wraps an inner transport and stamps additional scope
// fields on outgoing requests. A workspace client hands out installation
// clients whose requests automatically carry the installation id.
type ScopedTransport struct {
	inner transport.Transport
	scope transport.Scope
}

// NewScopedTransport stamps scope onto every request sent through inner.
// Fields already present on a request win over the stamp.
func NewScopedTransport(inner transport.Transport, scope transport.Scope) *ScopedTransport {
	return &ScopedTransport{inner: inner, scope: scope}
}

// Send stamps the scope and forwards.
func (s *ScopedTransport) Send(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	merged := s.scope
	if req.Scope != nil {
		if req.Scope.WorkspaceID != "" {
			merged.WorkspaceID = req.Scope.WorkspaceID
		}
		if req.Scope.InstallationID != "" {
			merged.InstallationID = req.Scope.InstallationID
		}
	}
	req.Scope = &merged
	return s.inner.Send(ctx, req)
}

// Close closes the inner transport.
func (s *ScopedTransport) Close() error { return s.inner.Close() }
