// Package config owns Max's on-disk layout, manifest schemas, environment
// variables, and target URL resolution.
package config

import (
	"os"
	"path/filepath"

	"github.com/maxdata-sh/max/internal/id"
)

// Environment variables recognised by Max.
const (
	EnvDev       = "MAX_DEV"
	EnvTarget    = "MAX_TARGET"
	EnvNoColor   = "NO_COLOR"
	EnvForce     = "FORCE_COLOR"
	EnvDaemonTmp = "MAX_DAEMON_TMP"
)

// WorkspaceDirName is the per-project state directory.
const WorkspaceDirName = ".max"

// ManifestFileName is the workspace manifest inside WorkspaceDirName.
const ManifestFileName = "max.json"

// WorkspaceDir returns <projectRoot>/.max.
func WorkspaceDir(projectRoot string) string {
	return filepath.Join(projectRoot, WorkspaceDirName)
}

// ManifestPath returns <projectRoot>/.max/max.json.
func ManifestPath(projectRoot string) string {
	return filepath.Join(WorkspaceDir(projectRoot), ManifestFileName)
}

// InstallationDir returns the per-installation data directory (engine
// database, credentials).
func InstallationDir(projectRoot, name string) string {
	return filepath.Join(WorkspaceDir(projectRoot), "installations", name)
}

// HomeDir is the user-level Max directory (~/.max). MAX_DAEMON_TMP does not
// affect it; only the daemon tree honours that override.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, WorkspaceDirName)
}

// GlobalManifestPath returns ~/.max/workspaces.json.
func GlobalManifestPath() string {
	return filepath.Join(HomeDir(), "workspaces.json")
}

func daemonRoot() string {
	if alt := os.Getenv(EnvDaemonTmp); alt != "" {
		return alt
	}
	return filepath.Join(HomeDir(), "workspaces")
}

// DaemonPaths locates one workspace daemon's socket, pid file, and log.
type DaemonPaths struct {
	Socket string
	PID    string
	Log    string
}

// DaemonPathsFor returns the daemon paths of a workspace.
func DaemonPathsFor(ws id.WorkspaceID) DaemonPaths {
	dir := filepath.Join(daemonRoot(), string(ws))
	return DaemonPaths{
		Socket: filepath.Join(dir, "daemon.sock"),
		PID:    filepath.Join(dir, "daemon.pid"),
		Log:    filepath.Join(dir, "daemon.log"),
	}
}

// DevMode reports whether MAX_DEV is set.
func DevMode() bool { return os.Getenv(EnvDev) != "" }

// DefaultTarget returns the MAX_TARGET default, if any.
func DefaultTarget() string { return os.Getenv(EnvTarget) }

// ColorEnabled applies the NO_COLOR / FORCE_COLOR convention.
func ColorEnabled() bool {
	if os.Getenv(EnvForce) != "" {
		return true
	}
	return os.Getenv(EnvNoColor) == ""
}
