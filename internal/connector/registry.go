package connector

import (
	"sync"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// ErrUnknownConnector covers lookups of unregistered connectors.
var ErrUnknownConnector = maxerrors.Define(
	"connector.unknown_connector",
	"no connector registered under {connector}",
	maxerrors.NotFound, maxerrors.HasConnector,
)

var errDuplicateConnector = maxerrors.Define(
	"connector.duplicate_connector",
	"connector {connector} is already registered",
	maxerrors.BadInput, maxerrors.HasConnector,
)

// Registry holds the connectors available to one workspace. The descriptor
// cache is write-once per name: the first Describe resolves the connector
// and every later call reuses the cached descriptor.
type Registry struct {
	mu          sync.RWMutex
	connectors  map[string]Connector
	order       []string
	descriptors map[string]Descriptor
}

// NewRegistry builds an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors:  make(map[string]Connector),
		descriptors: make(map[string]Descriptor),
	}
}

// Register adds a connector under its descriptor name.
func (r *Registry) Register(c Connector) error {
	name := c.Descriptor().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[name]; exists {
		return errDuplicateConnector.New(maxerrors.Props{"connector": name})
	}
	r.connectors[name] = c
	r.order = append(r.order, name)
	return nil
}

// Lookup retrieves a connector by name.
func (r *Registry) Lookup(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[name]
	if !ok {
		return nil, ErrUnknownConnector.New(maxerrors.Props{"connector": name})
	}
	return c, nil
}

// Describe returns a connector's descriptor through the write-once cache.
func (r *Registry) Describe(name string) (Descriptor, error) {
	r.mu.RLock()
	if d, ok := r.descriptors[name]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	r.mu.RUnlock()

	c, err := r.Lookup(name)
	if err != nil {
		return Descriptor{}, err
	}
	d := c.Descriptor()

	r.mu.Lock()
	if cached, ok := r.descriptors[name]; ok {
		d = cached
	} else {
		r.descriptors[name] = d
	}
	r.mu.Unlock()
	return d, nil
}

// List enumerates descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		if d, err := r.Describe(name); err == nil {
			out = append(out, d)
		}
	}
	return out
}
