package id

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces fresh opaque identifiers. Supervisors and the sync
// executor take a Generator so tests can substitute deterministic ids.
type Generator interface {
	NewID() string
}

// UUIDGenerator produces random UUIDv4 identifiers.
type UUIDGenerator struct{}

// NewID returns a fresh UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceGenerator produces "<prefix>-1", "<prefix>-2", ... deterministically.
type SequenceGenerator struct {
	Prefix string

	mu sync.Mutex
	n  int
}

// NewID returns the next identifier in the sequence.
func (g *SequenceGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%d", prefix, g.n)
}
