// Package ref models entity references and their hierarchical scope.
//
// A Ref is a value: (entity type, entity id, scope). It serializes to a
// canonical ref key string and parses back to the original bytes. Scope tags
// a ref with its origin in the federation hierarchy and may only ever be
// upgraded, never narrowed.
package ref

import (
	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Level is the position of a scope in the federation hierarchy.
type Level string

const (
	LevelInstallation Level = "installation"
	LevelWorkspace    Level = "workspace"
	LevelGlobal       Level = "global"
)

var errScopeNarrowed = maxerrors.Define(
	"core.scope_narrowed",
	"scope may only be upgraded, not narrowed from {from} to {to}",
	maxerrors.InvariantViolated,
)

// Scope tags data with its hierarchical origin. Installation-level scope
// carries no qualifiers; workspace-level scope records which installation the
// data came from; global-level scope additionally records the workspace.
type Scope struct {
	Level        Level              `json:"level"`
	Workspace    id.WorkspaceID     `json:"workspace,omitempty"`
	Installation id.InstallationID  `json:"installation,omitempty"`
}

// InstallationScope is the narrowest scope: data local to one installation.
func InstallationScope() Scope {
	return Scope{Level: LevelInstallation}
}

// WorkspaceScope tags data surfaced by a workspace on behalf of the given
// installation.
func WorkspaceScope(inst id.InstallationID) Scope {
	return Scope{Level: LevelWorkspace, Installation: inst}
}

// GlobalScope tags data surfaced globally on behalf of the given workspace
// and installation.
func GlobalScope(ws id.WorkspaceID, inst id.InstallationID) Scope {
	return Scope{Level: LevelGlobal, Workspace: ws, Installation: inst}
}

func rank(l Level) int {
	switch l {
	case LevelInstallation:
		return 0
	case LevelWorkspace:
		return 1
	case LevelGlobal:
		return 2
	}
	return -1
}

// Upgrade widens the scope to target. Narrowing is rejected with
// core.scope_narrowed.
func (s Scope) Upgrade(target Scope) (Scope, error) {
	if rank(target.Level) < rank(s.Level) {
		return Scope{}, errScopeNarrowed.New(maxerrors.Props{
			"from": string(s.Level),
			"to":   string(target.Level),
		})
	}
	if rank(target.Level) == rank(s.Level) {
		return s, nil
	}
	out := target
	// Qualifiers recorded at the narrower level survive the upgrade.
	if out.Installation == "" {
		out.Installation = s.Installation
	}
	if out.Workspace == "" {
		out.Workspace = s.Workspace
	}
	return out, nil
}
