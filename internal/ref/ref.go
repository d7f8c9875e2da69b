package ref

import (
	"fmt"
	"strings"

	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

var errBadRefKey = maxerrors.Define(
	"core.bad_ref_key",
	"malformed ref key {key}",
	maxerrors.BadInput,
)

// Ref is a scoped reference to a single entity. Refs are values; they carry
// the entity type name rather than the definition, so cyclic entity graphs
// become graph edges instead of memory cycles.
type Ref struct {
	Type  id.EntityType `json:"type"`
	ID    id.EntityID   `json:"id"`
	Scope Scope         `json:"scope"`
}

// New builds an installation-scoped ref.
func New(t id.EntityType, entityID id.EntityID) Ref {
	return Ref{Type: t, ID: entityID, Scope: InstallationScope()}
}

// Key renders the canonical ref key:
//
//	installation:<type>:<id>
//	workspace:<inst>:<type>:<id>
//	global:<ws>:<inst>:<type>:<id>
func (r Ref) Key() string {
	switch r.Scope.Level {
	case LevelWorkspace:
		return fmt.Sprintf("workspace:%s:%s:%s", r.Scope.Installation, r.Type, r.ID)
	case LevelGlobal:
		return fmt.Sprintf("global:%s:%s:%s:%s", r.Scope.Workspace, r.Scope.Installation, r.Type, r.ID)
	default:
		return fmt.Sprintf("installation:%s:%s", r.Type, r.ID)
	}
}

// String implements fmt.Stringer.
func (r Ref) String() string { return r.Key() }

// ParseKey parses a canonical ref key. A parsed key re-serializes to the
// original bytes.
func ParseKey(key string) (Ref, error) {
	bad := func() (Ref, error) {
		return Ref{}, errBadRefKey.New(maxerrors.Props{"key": key})
	}

	level, rest, ok := strings.Cut(key, ":")
	if !ok {
		return bad()
	}
	switch Level(level) {
	case LevelInstallation:
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return bad()
		}
		return Ref{
			Type:  id.EntityType(parts[0]),
			ID:    id.EntityID(parts[1]),
			Scope: InstallationScope(),
		}, nil
	case LevelWorkspace:
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return bad()
		}
		return Ref{
			Type:  id.EntityType(parts[1]),
			ID:    id.EntityID(parts[2]),
			Scope: WorkspaceScope(id.InstallationID(parts[0])),
		}, nil
	case LevelGlobal:
		parts := strings.SplitN(rest, ":", 4)
		if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
			return bad()
		}
		return Ref{
			Type:  id.EntityType(parts[2]),
			ID:    id.EntityID(parts[3]),
			Scope: GlobalScope(id.WorkspaceID(parts[0]), id.InstallationID(parts[1])),
		}, nil
	}
	return bad()
}

// Upgraded returns a copy of the ref with its scope upgraded.
func (r Ref) Upgraded(target Scope) (Ref, error) {
	scope, err := r.Scope.Upgrade(target)
	if err != nil {
		return Ref{}, err
	}
	r.Scope = scope
	return r, nil
}
