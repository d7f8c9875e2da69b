// Package lifecycle provides ordered start/stop composition for node
// internals.
//
// A Lifecycle runs its steps forward on Start and in reverse on Stop. Start
// is run-once; Stop runs every time and only touches steps that actually
// started. Auto composes a lifecycle from a dependency list where sequential
// entries run in order and grouped entries run concurrently.
package lifecycle

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// ErrAlreadyStarted is returned by the second and subsequent Start calls.
var ErrAlreadyStarted = maxerrors.Define("core.already_running", "lifecycle already started")

// Step is one start/stop pair.
type Step struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// Component is anything with lifecycle semantics.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Lifecycle is an ordered list of steps with run-once start semantics.
type Lifecycle struct {
	steps []Step

	mu      sync.Mutex
	started int
	running bool
}

// New builds a manual lifecycle from explicit steps.
func New(steps ...Step) *Lifecycle {
	return &Lifecycle{steps: steps}
}

// Start walks the steps forward. A second call fails with
// core.already_running. If a step fails, previously started steps are
// stopped in reverse before the error is returned.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyStarted.New(nil)
	}
	l.running = true
	l.mu.Unlock()

	for i, step := range l.steps {
		if step.Start == nil {
			continue
		}
		if err := step.Start(ctx); err != nil {
			l.mu.Lock()
			l.started = i
			l.mu.Unlock()
			l.unwind(ctx)
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return err
		}
	}
	l.mu.Lock()
	l.started = len(l.steps)
	l.mu.Unlock()
	return nil
}

// Started reports whether the lifecycle is currently running.
func (l *Lifecycle) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stop walks started steps in reverse. It may run repeatedly; stopping a
// lifecycle that never started is a no-op.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	err := l.unwind(ctx)

	l.mu.Lock()
	l.running = false
	l.started = 0
	l.mu.Unlock()
	return err
}

func (l *Lifecycle) unwind(ctx context.Context) error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()

	var firstErr error
	for i := started - 1; i >= 0; i-- {
		step := l.steps[i]
		if step.Stop == nil {
			continue
		}
		if err := step.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Entry is one element of an auto-lifecycle dependency list.
type Entry struct {
	name      string
	component Component
	group     []Entry
}

// Seq wraps a component as a sequential dependency entry.
func Seq(name string, c Component) Entry {
	return Entry{name: name, component: c}
}

// Group wraps entries that start and stop concurrently with each other.
func Group(entries ...Entry) Entry {
	return Entry{group: entries}
}

// Auto composes a lifecycle from a dependency list. Start walks entries
// forward; grouped entries start concurrently. Stop walks the reverse order.
func Auto(entries ...Entry) *Lifecycle {
	steps := make([]Step, 0, len(entries))
	for _, entry := range entries {
		steps = append(steps, entry.step())
	}
	return New(steps...)
}

func (e Entry) step() Step {
	if e.component != nil {
		c := e.component
		return Step{Name: e.name, Start: c.Start, Stop: c.Stop}
	}
	group := e.group
	return Step{
		Name: "group",
		Start: func(ctx context.Context) error {
			g, ctx := errgroup.WithContext(ctx)
			for _, member := range group {
				step := member.step()
				if step.Start == nil {
					continue
				}
				g.Go(func() error { return step.Start(ctx) })
			}
			return g.Wait()
		},
		Stop: func(ctx context.Context) error {
			g, ctx := errgroup.WithContext(ctx)
			for _, member := range group {
				step := member.step()
				if step.Stop == nil {
					continue
				}
				g.Go(func() error { return step.Stop(ctx) })
			}
			return g.Wait()
		},
	}
}
