package supervise

import (
	"context"
	"sync"

	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// ErrNodeNotFound covers lookups of unregistered children.
var ErrNodeNotFound = maxerrors.Define(
	"federation.node_not_found",
	"no node registered under {id}",
	maxerrors.NotFound,
)

// NodeHandle is a parent's opaque view of a child node. Unlabelled handles
// omit ID; the supervisor stamps one on registration.
type NodeHandle[C Supervised] struct {
	ID      string
	Kind    string
	Client  C
	Locator string
}

// Supervisor is the in-memory registry of live child handles. It exclusively
// owns the handles registered with it; registries persist metadata mirrors,
// never live handles.
type Supervisor[C Supervised] struct {
	gen id.Generator

	mu      sync.RWMutex
	order   []string
	handles map[string]NodeHandle[C]
}

// NewSupervisor builds a supervisor that stamps missing handle ids with gen.
func NewSupervisor[C Supervised](gen id.Generator) *Supervisor[C] {
	return &Supervisor[C]{
		gen:     gen,
		handles: make(map[string]NodeHandle[C]),
	}
}

// Register adds a handle, assigning an id when the handle is unlabelled.
// The stamped handle is returned.
func (s *Supervisor[C]) Register(h NodeHandle[C]) NodeHandle[C] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = s.gen.NewID()
	}
	if _, exists := s.handles[h.ID]; !exists {
		s.order = append(s.order, h.ID)
	}
	s.handles[h.ID] = h
	return h
}

// Unregister removes a handle by id.
func (s *Supervisor[C]) Unregister(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handles[nodeID]; !exists {
		return false
	}
	delete(s.handles, nodeID)
	for i, existing := range s.order {
		if existing == nodeID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Get looks a handle up by id.
func (s *Supervisor[C]) Get(nodeID string) (NodeHandle[C], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[nodeID]
	return h, ok
}

// List enumerates handles in registration order.
func (s *Supervisor[C]) List() []NodeHandle[C] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NodeHandle[C], 0, len(s.order))
	for _, nodeID := range s.order {
		out = append(out, s.handles[nodeID])
	}
	return out
}

// Len returns the number of registered handles.
func (s *Supervisor[C]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Health aggregates child health. All healthy (or no children) is healthy;
// all unhealthy is unhealthy; anything else is degraded. A child whose probe
// panics contributes unhealthy("unreachable") and never propagates.
func (s *Supervisor[C]) Health(ctx context.Context) HealthStatus {
	children := s.List()
	if len(children) == 0 {
		return HealthStatus{State: Healthy}
	}

	healthy, unhealthy := 0, 0
	for _, child := range children {
		status := probe(ctx, child.Client)
		switch status.State {
		case Healthy:
			healthy++
		case Unhealthy:
			unhealthy++
		}
	}
	switch {
	case healthy == len(children):
		return HealthStatus{State: Healthy}
	case unhealthy == len(children):
		return HealthStatus{State: Unhealthy}
	default:
		return HealthStatus{State: Degraded}
	}
}

func probe[C Supervised](ctx context.Context, client C) (status HealthStatus) {
	defer func() {
		if recover() != nil {
			status = HealthStatus{State: Unhealthy, Reason: "unreachable"}
		}
	}()
	return client.Health(ctx)
}
