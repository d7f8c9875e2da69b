package transport

import (
	"context"
	"encoding/json"
	"sync"
)

// Loopback calls a dispatch function in-memory. It gives in-process callers
// the same request/response semantics as a remote transport, including error
// serialization and reconstitution.
type Loopback struct {
	dispatch DispatchFunc

	mu     sync.Mutex
	closed bool
}

// NewLoopback wraps a dispatch function as a Transport.
func NewLoopback(dispatch DispatchFunc) *Loopback {
	return &Loopback{dispatch: dispatch}
}

// Send dispatches the request directly.
func (l *Loopback) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed.New(nil)
	}

	// Round-trip through the wire form so loopback callers exercise the
	// same serialization contract as socket callers.
	resp := l.dispatch(ctx, req)
	encoded, err := json.Marshal(resp)
	if err != nil {
		return nil, errDecode.Wrap(err, nil)
	}
	var decoded Response
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, errDecode.Wrap(err, nil)
	}
	return resultOf(decoded)
}

// Close marks the loopback closed.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
