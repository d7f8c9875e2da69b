package syncplan_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/syncplan"
)

func TestStepBuilders(t *testing.T) {
	t.Parallel()

	root := ref.New("Root", "root")

	step := syncplan.ForRoot(root).LoadCollection("workspaces")
	require.Equal(t, syncplan.TargetRoot, step.Target.Kind)
	require.Equal(t, root, *step.Target.Ref)
	require.Equal(t, syncplan.OpLoadCollection, step.Op.Kind)
	require.EqualValues(t, "workspaces", step.Op.Field)

	step = syncplan.ForAll("User").LoadFields("displayName", "email")
	require.Equal(t, syncplan.TargetAll, step.Target.Kind)
	require.EqualValues(t, "User", step.Target.Type)
	require.Len(t, step.Op.Fields, 2)

	step = syncplan.ForOne(ref.New("User", "u1")).LoadFields("email")
	require.Equal(t, syncplan.TargetOne, step.Target.Kind)
}

func TestPlan_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	plan := syncplan.NewPlan(
		syncplan.ForRoot(ref.New("Root", "root")).LoadCollection("workspaces"),
		syncplan.ForAll("Workspace").LoadFields("name"),
	)

	encoded, err := json.Marshal(plan)
	require.NoError(t, err)

	var decoded syncplan.Plan
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, *plan, decoded, "steps survive the task payload round trip")
}
