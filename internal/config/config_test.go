package config_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

func TestManifestFile_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".max", "max.json")
	file := config.NewManifestFile[config.Manifest](path)

	empty, err := file.Load()
	require.NoError(t, err, "a missing manifest loads as the zero value")
	require.Nil(t, empty.Installations)

	manifest := config.Manifest{
		Connectors: map[string]string{"acmehr": "acmehr@1.0.0"},
		Installations: map[string]config.InstallationEntry{
			"acme": {
				ID:          "i1",
				Connector:   "acmehr",
				ConnectedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
				Spec: config.InstallationSpec{
					Connector:       "acmehr",
					Name:            "acme",
					ConnectorConfig: json.RawMessage(`{"region":"eu"}`),
				},
				Deployment: config.DeployConfig{Strategy: "in-process"},
				Locator:    "inproc:acme",
			},
		},
	}
	require.NoError(t, file.Save(manifest))

	loaded, err := file.Load()
	require.NoError(t, err)
	require.Equal(t, manifest.Connectors, loaded.Connectors)
	entry := loaded.Installations["acme"]
	require.Equal(t, "i1", entry.ID)
	require.Equal(t, "acmehr", entry.Connector)
	require.Equal(t, manifest.Installations["acme"].ConnectedAt, entry.ConnectedAt)
	require.Equal(t, "acme", entry.Spec.Name)
	require.JSONEq(t, `{"region":"eu"}`, string(entry.Spec.ConnectorConfig),
		"opaque connector config survives the round trip")
	require.Equal(t, "in-process", entry.Deployment.Strategy)
	require.Equal(t, "inproc:acme", entry.Locator)
}

func TestManifestFile_MutateSerialisesWriters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "workspaces.json")
	file := config.NewManifestFile[config.GlobalManifest](path)

	for _, wsID := range []string{"ws-1", "ws-2"} {
		require.NoError(t, file.Mutate(func(m *config.GlobalManifest) error {
			if *m == nil {
				*m = make(config.GlobalManifest)
			}
			(*m)[wsID] = config.WorkspaceEntry{Name: wsID, ProjectRoot: "/tmp/" + wsID}
			return nil
		}))
	}

	loaded, err := file.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want config.Target
	}{
		{"max://~", config.Target{Host: "~"}},
		{"max://~/ws-1", config.Target{Host: "~", Workspace: "ws-1"}},
		{"max://~/ws-1/i-1", config.Target{Host: "~", Workspace: "ws-1", Installation: "i-1"}},
		{"max://hub.example/ws-1", config.Target{Host: "hub.example", Workspace: "ws-1"}},
	}
	for _, tc := range cases {
		parsed, err := config.ParseTarget(tc.raw)
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, parsed)
		require.Equal(t, tc.raw, parsed.String())
	}
}

func TestParseTarget_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "http://~", "max://", "max://~/a/b/c"} {
		_, err := config.ParseTarget(raw)
		require.Error(t, err, raw)
		require.True(t, maxerrors.Has(err, maxerrors.BadInput))
	}
}

func TestDaemonPaths(t *testing.T) {
	t.Setenv(config.EnvDaemonTmp, t.TempDir())

	paths := config.DaemonPathsFor(id.WorkspaceID("ws-1"))
	require.Equal(t, "daemon.sock", filepath.Base(paths.Socket))
	require.Equal(t, "daemon.pid", filepath.Base(paths.PID))
	require.Equal(t, "daemon.log", filepath.Base(paths.Log))
	require.Contains(t, paths.Socket, "ws-1")
}

func TestColorEnabled(t *testing.T) {
	t.Setenv(config.EnvNoColor, "1")
	require.False(t, config.ColorEnabled())

	t.Setenv(config.EnvForce, "1")
	require.True(t, config.ColorEnabled(), "FORCE_COLOR wins over NO_COLOR")
}
