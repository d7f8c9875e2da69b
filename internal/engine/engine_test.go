package engine_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/schema"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

func hrSchema() *schema.Schema {
	return &schema.Schema{
		Namespace: "acmehr",
		Entities: []schema.EntityDef{
			{
				Name: "Workspace",
				Fields: []schema.FieldDef{
					{Name: "name", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "seats", Kind: schema.FieldScalar, Scalar: schema.ScalarNumber},
					{Name: "users", Kind: schema.FieldCollection, Target: "User"},
				},
			},
			{
				Name: "User",
				Fields: []schema.FieldDef{
					{Name: "displayName", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "active", Kind: schema.FieldScalar, Scalar: schema.ScalarBoolean},
					{Name: "workspace", Kind: schema.FieldRef, Target: "Workspace"},
				},
			},
		},
		Roots: []id.EntityType{"Workspace"},
	}
}

func openEngine(t *testing.T) *engine.SQLiteEngine {
	t.Helper()
	eng, err := engine.OpenSQLite(filepath.Join(t.TempDir(), "engine.db"), hrSchema())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestEngine_StoreIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	input := engine.EntityInput{
		Ref: ref.New("Workspace", "w1"),
		Fields: map[id.FieldName]any{
			"name":  "acme",
			"seats": float64(5),
			"users": []ref.Ref{ref.New("User", "u1")},
		},
	}

	first, err := eng.Store(ctx, input)
	require.NoError(t, err)
	second, err := eng.Store(ctx, input)
	require.NoError(t, err)
	require.Equal(t, first, second)

	result, err := eng.Load(ctx, first, engine.All())
	require.NoError(t, err)
	require.Equal(t, "acme", result.Fields["name"])
	require.Equal(t, float64(5), result.Fields["seats"])

	page, err := eng.LoadCollection(ctx, first, "users", nil)
	require.NoError(t, err)
	require.Len(t, page.Refs, 1, "double store leaves a single collection member")
}

func TestEngine_StoreNormalisesScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	scoped := ref.Ref{Type: "Workspace", ID: "w1", Scope: ref.WorkspaceScope("inst-1")}
	stored, err := eng.Store(ctx, engine.EntityInput{Ref: scoped})
	require.NoError(t, err)
	require.Equal(t, "installation:Workspace:w1", stored.Key())
}

func TestEngine_StoreRejectsUnknownTypeAndField(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)

	_, err := eng.Store(ctx, engine.EntityInput{Ref: ref.New("Ghost", "g1")})
	require.Equal(t, "core.unknown_entity_type", maxerrors.CodeOf(err))

	_, err = eng.Store(ctx, engine.EntityInput{
		Ref:    ref.New("User", "u1"),
		Fields: map[id.FieldName]any{"shoeSize": 44},
	})
	require.Error(t, err)
	require.True(t, maxerrors.Has(err, maxerrors.HasEntityField))
}

func TestEngine_LoadProjections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	_, err := eng.Store(ctx, engine.EntityInput{
		Ref:    ref.New("User", "u1"),
		Fields: map[id.FieldName]any{"displayName": "Ada"},
	})
	require.NoError(t, err)

	refsOnly, err := eng.Load(ctx, ref.New("User", "u1"), engine.Refs())
	require.NoError(t, err)
	require.Empty(t, refsOnly.Fields)

	selected, err := eng.Load(ctx, ref.New("User", "u1"), engine.Select("displayName", "active"))
	require.NoError(t, err)
	require.Equal(t, "Ada", selected.Fields["displayName"])
	require.Equal(t, false, selected.Fields["active"],
		"a never-stored field in the projection reads as its zero value")

	all, err := eng.Load(ctx, ref.New("User", "u1"), engine.All())
	require.NoError(t, err)
	require.Contains(t, all.Fields, id.FieldName("workspace"))
	require.Nil(t, all.Fields["workspace"])
}

func TestEngine_LoadMissingEntity(t *testing.T) {
	t.Parallel()

	eng := openEngine(t)
	_, err := eng.Load(context.Background(), ref.New("User", "ghost"), engine.All())
	require.Error(t, err)
	require.True(t, maxerrors.Has(err, maxerrors.NotFound))
	require.True(t, maxerrors.Has(err, maxerrors.HasEntityRef))
}

func TestEngine_LoadFieldNotLoaded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	_, err := eng.Store(ctx, engine.EntityInput{Ref: ref.New("User", "u1")})
	require.NoError(t, err)

	_, err = eng.LoadField(ctx, ref.New("User", "u1"), "displayName")
	require.Equal(t, "core.field_not_loaded", maxerrors.CodeOf(err))
	require.True(t, maxerrors.Has(err, maxerrors.HasEntityField))
}

func TestEngine_RefFieldRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	_, err := eng.Store(ctx, engine.EntityInput{
		Ref:    ref.New("User", "u1"),
		Fields: map[id.FieldName]any{"workspace": ref.New("Workspace", "w1")},
	})
	require.NoError(t, err)

	value, err := eng.LoadField(ctx, ref.New("User", "u1"), "workspace")
	require.NoError(t, err)
	require.Equal(t, "installation:Workspace:w1", value, "ref fields store the ref key")
}

func TestEngine_CollectionPaging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	parent := ref.New("Workspace", "w1")
	members := make([]ref.Ref, 0, 5)
	for _, uid := range []string{"u1", "u2", "u3", "u4", "u5"} {
		members = append(members, ref.New("User", id.EntityID(uid)))
	}
	_, err := eng.Store(ctx, engine.EntityInput{
		Ref:    parent,
		Fields: map[id.FieldName]any{"users": members},
	})
	require.NoError(t, err)

	var seen []string
	page := &engine.Page{Size: 2}
	for {
		result, err := eng.LoadCollection(ctx, parent, "users", page)
		require.NoError(t, err)
		for _, r := range result.Refs {
			seen = append(seen, string(r.ID))
		}
		if !result.HasMore {
			break
		}
		page = &engine.Page{Size: 2, Cursor: result.Cursor}
	}
	require.Equal(t, []string{"u1", "u2", "u3", "u4", "u5"}, seen, "cursors round-trip")
}

func TestEngine_QueryFilterOrderPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	users := []struct {
		uid    string
		name   string
		active bool
	}{
		{"u1", "Carol", true},
		{"u2", "Ada", true},
		{"u3", "Bob", false},
		{"u4", "Dave", true},
	}
	for _, u := range users {
		_, err := eng.Store(ctx, engine.EntityInput{
			Ref: ref.New("User", id.EntityID(u.uid)),
			Fields: map[id.FieldName]any{
				"displayName": u.name,
				"active":      u.active,
			},
		})
		require.NoError(t, err)
	}

	result, err := eng.Query(ctx, engine.Query{
		Type:       "User",
		Projection: engine.Select("displayName"),
		Where: &engine.WhereClause{
			Kind: engine.BranchAnd,
			Clauses: []engine.WhereClause{
				{Field: "active", Op: engine.OpEq, Value: true},
				{Field: "displayName", Op: engine.OpNe, Value: "Dave"},
			},
		},
		OrderBy: []engine.Ordering{{Field: "displayName"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Entities, 2)
	require.Equal(t, "Ada", result.Entities[0].Fields["displayName"])
	require.Equal(t, "Carol", result.Entities[1].Fields["displayName"])
	require.False(t, result.HasMore)

	// Paged refs projection drives forAll resolution in the executor.
	paged, err := eng.Query(ctx, engine.Query{
		Type:       "User",
		Projection: engine.Refs(),
		Page:       &engine.Page{Size: 3},
	})
	require.NoError(t, err)
	require.Len(t, paged.Entities, 3)
	require.True(t, paged.HasMore)

	rest, err := eng.Query(ctx, engine.Query{
		Type:       "User",
		Projection: engine.Refs(),
		Page:       &engine.Page{Size: 3, Cursor: paged.Cursor},
	})
	require.NoError(t, err)
	require.Len(t, rest.Entities, 1)
	require.False(t, rest.HasMore)
}

func TestSyncMeta_Freshness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := openEngine(t)
	r := ref.New("User", "u1")
	fields := []id.FieldName{"displayName"}
	forever := 100 * 365 * 24 * time.Hour

	stale, err := eng.StaleFields(ctx, r, fields, forever)
	require.NoError(t, err)
	require.Equal(t, fields, stale, "never-synced fields are stale")

	require.NoError(t, eng.RecordFieldSync(ctx, r, fields, time.Now()))
	stale, err = eng.StaleFields(ctx, r, fields, forever)
	require.NoError(t, err)
	require.Empty(t, stale)

	stale, err = eng.StaleFields(ctx, r, fields, -time.Second)
	require.NoError(t, err)
	require.Equal(t, fields, stale, "a negative max age makes everything stale")

	require.NoError(t, eng.InvalidateFields(ctx, r, fields))
	stale, err = eng.StaleFields(ctx, r, fields, forever)
	require.NoError(t, err)
	require.Equal(t, fields, stale)
}
