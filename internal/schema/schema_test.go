package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/schema"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

func validSchema() *schema.Schema {
	return &schema.Schema{
		Namespace: "crm",
		Entities: []schema.EntityDef{
			{
				Name: "Account",
				Fields: []schema.FieldDef{
					{Name: "name", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "owner", Kind: schema.FieldRef, Target: "Account"},
					{Name: "contacts", Kind: schema.FieldCollection, Target: "Contact"},
				},
			},
			{
				Name: "Contact",
				Fields: []schema.FieldDef{
					{Name: "email", Kind: schema.FieldScalar, Scalar: schema.ScalarString},
					{Name: "account", Kind: schema.FieldRef, Target: "Account"},
				},
			},
		},
		Roots: []id.EntityType{"Account"},
	}
}

func TestSchema_Validate_AllowsCycles(t *testing.T) {
	t.Parallel()

	// Account.owner points back at Account; Contact.account points back up.
	require.NoError(t, validSchema().Validate())
}

func TestSchema_Validate_RejectsUnknownRoot(t *testing.T) {
	t.Parallel()

	s := validSchema()
	s.Roots = append(s.Roots, "Ghost")
	err := s.Validate()
	require.Error(t, err)
	require.True(t, maxerrors.Has(err, maxerrors.BadInput))
}

func TestSchema_Validate_RejectsUnknownTarget(t *testing.T) {
	t.Parallel()

	s := validSchema()
	s.Entities[0].Fields = append(s.Entities[0].Fields,
		schema.FieldDef{Name: "orphan", Kind: schema.FieldRef, Target: "Missing"})
	require.Error(t, s.Validate())
}

func TestSchema_Validate_RequiresScalarKind(t *testing.T) {
	t.Parallel()

	s := validSchema()
	s.Entities[0].Fields = append(s.Entities[0].Fields,
		schema.FieldDef{Name: "untyped", Kind: schema.FieldScalar})
	require.Error(t, s.Validate())
}

func TestSchema_Entity_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := validSchema().Entity("Ghost")
	require.Error(t, err)
	require.True(t, maxerrors.Has(err, maxerrors.NotFound))
	require.True(t, maxerrors.Has(err, maxerrors.HasEntityType))
	require.Equal(t, "core.unknown_entity_type", maxerrors.CodeOf(err))
}

func TestEntityDef_FieldLookup(t *testing.T) {
	t.Parallel()

	def, err := validSchema().Entity("Account")
	require.NoError(t, err)

	f, ok := def.Field("contacts")
	require.True(t, ok)
	require.Equal(t, schema.FieldCollection, f.Kind)

	_, ok = def.Field("missing")
	require.False(t, ok)
}
