package supervise_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/supervise"
)

// stubNode is a Supervised with a fixed health answer.
type stubNode struct {
	health supervise.HealthState
	panics bool
}

func (s *stubNode) Health(ctx context.Context) supervise.HealthStatus {
	if s.panics {
		panic("probe exploded")
	}
	return supervise.HealthStatus{State: s.health}
}

func (s *stubNode) Start(ctx context.Context) supervise.StartResult {
	return supervise.StartResult{State: supervise.Started}
}

func (s *stubNode) Stop(ctx context.Context) supervise.StopResult {
	return supervise.StopResult{State: supervise.Stopped}
}

func newSupervisor(t *testing.T) *supervise.Supervisor[supervise.Supervised] {
	t.Helper()
	return supervise.NewSupervisor[supervise.Supervised](&id.SequenceGenerator{Prefix: "node"})
}

func register(s *supervise.Supervisor[supervise.Supervised], states ...supervise.HealthState) {
	for _, state := range states {
		s.Register(supervise.NodeHandle[supervise.Supervised]{Client: &stubNode{health: state}})
	}
}

func TestSupervisor_HealthAggregation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		children []supervise.HealthState
		want     supervise.HealthState
	}{
		{"empty is healthy", nil, supervise.Healthy},
		{"all healthy", []supervise.HealthState{supervise.Healthy, supervise.Healthy}, supervise.Healthy},
		{"all unhealthy", []supervise.HealthState{supervise.Unhealthy, supervise.Unhealthy}, supervise.Unhealthy},
		{"mixed is degraded", []supervise.HealthState{supervise.Healthy, supervise.Unhealthy}, supervise.Degraded},
		{"degraded child degrades", []supervise.HealthState{supervise.Healthy, supervise.Degraded}, supervise.Degraded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newSupervisor(t)
			register(s, tc.children...)
			require.Equal(t, tc.want, s.Health(context.Background()).State)
		})
	}
}

func TestSupervisor_PanickingProbeIsUnreachable(t *testing.T) {
	t.Parallel()

	s := newSupervisor(t)
	s.Register(supervise.NodeHandle[supervise.Supervised]{Client: &stubNode{panics: true}})
	s.Register(supervise.NodeHandle[supervise.Supervised]{Client: &stubNode{panics: true}})

	require.Equal(t, supervise.Unhealthy, s.Health(context.Background()).State,
		"a probe panic contributes unhealthy, never propagates")
}

func TestSupervisor_RegisterStampsMissingIDs(t *testing.T) {
	t.Parallel()

	s := newSupervisor(t)
	stamped := s.Register(supervise.NodeHandle[supervise.Supervised]{Client: &stubNode{}})
	require.Equal(t, "node-1", stamped.ID)

	kept := s.Register(supervise.NodeHandle[supervise.Supervised]{ID: "explicit", Client: &stubNode{}})
	require.Equal(t, "explicit", kept.ID, "pre-labelled handles keep their id")
}

func TestSupervisor_ListKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	s := newSupervisor(t)
	register(s, supervise.Healthy, supervise.Healthy, supervise.Healthy)

	handles := s.List()
	require.Len(t, handles, 3)
	require.Equal(t, []string{"node-1", "node-2", "node-3"},
		[]string{handles[0].ID, handles[1].ID, handles[2].ID})

	require.True(t, s.Unregister("node-2"))
	require.False(t, s.Unregister("node-2"))
	handles = s.List()
	require.Equal(t, []string{"node-1", "node-3"},
		[]string{handles[0].ID, handles[1].ID})

	_, ok := s.Get("node-2")
	require.False(t, ok)
}
