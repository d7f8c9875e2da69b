package config

import (
	"net/url"
	"strings"

	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

var errBadTarget = maxerrors.Define(
	"platform.bad_target",
	"malformed target URL {url}",
	maxerrors.BadInput,
)

// GlobalHost is the URL host that addresses the global node.
const GlobalHost = "~"

// Target is a parsed max:// URL. Host "~" addresses the global node; path
// segments select a workspace and optionally an installation.
type Target struct {
	Host         string
	Workspace    id.WorkspaceID
	Installation id.InstallationID
}

// Global reports whether the target addresses the global node itself.
func (t Target) Global() bool {
	return t.Workspace == "" && t.Installation == ""
}

// ParseTarget parses a max://<host>[/<workspace>[/<installation>]] URL.
func ParseTarget(raw string) (Target, error) {
	bad := func() (Target, error) {
		return Target{}, errBadTarget.New(maxerrors.Props{"url": raw})
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "max" || u.Host == "" {
		return bad()
	}
	t := Target{Host: u.Host}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(segments) == 1 && segments[0] == "":
		// Host only.
	case len(segments) == 1:
		t.Workspace = id.WorkspaceID(segments[0])
	case len(segments) == 2:
		t.Workspace = id.WorkspaceID(segments[0])
		t.Installation = id.InstallationID(segments[1])
	default:
		return bad()
	}
	return t, nil
}

// String renders the canonical URL form.
func (t Target) String() string {
	out := "max://" + t.Host
	if t.Workspace != "" {
		out += "/" + string(t.Workspace)
	}
	if t.Installation != "" {
		out += "/" + string(t.Installation)
	}
	return out
}
