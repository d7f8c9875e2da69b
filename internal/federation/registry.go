package federation

import (
	"time"

	"github.com/maxdata-sh/max/internal/config"
	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// ErrInstallationExists covers create collisions on (connector, name).
var ErrInstallationExists = maxerrors.Define(
	"federation.installation_exists",
	"installation {name} for connector {connector} already exists",
	maxerrors.BadInput, maxerrors.HasConnector,
)

var errInstallationUnknown = maxerrors.Define(
	"federation.installation_unknown",
	"no persisted installation {id}",
	maxerrors.NotFound,
)

// InstallationRegistry is the persistent metadata mirror of a workspace's
// installations. It owns the max.json installations section and never holds
// live handles.
type InstallationRegistry struct {
	file *config.ManifestFile[config.Manifest]
}

// NewInstallationRegistry binds a registry to a workspace manifest file.
func NewInstallationRegistry(path string) *InstallationRegistry {
	return &InstallationRegistry{file: config.NewManifestFile[config.Manifest](path)}
}

// List returns the persisted entries keyed by installation name.
func (r *InstallationRegistry) List() (map[string]config.InstallationEntry, error) {
	manifest, err := r.file.Load()
	if err != nil {
		return nil, err
	}
	return manifest.Installations, nil
}

// FindBySpec locates an entry by its (connector, name) identity.
func (r *InstallationRegistry) FindBySpec(connectorName, name string) (config.InstallationEntry, bool, error) {
	entries, err := r.List()
	if err != nil {
		return config.InstallationEntry{}, false, err
	}
	for _, entry := range entries {
		if entry.Connector == connectorName && entry.Spec.Name == name {
			return entry, true, nil
		}
	}
	return config.InstallationEntry{}, false, nil
}

// FindByID locates an entry by installation id.
func (r *InstallationRegistry) FindByID(instID id.InstallationID) (config.InstallationEntry, error) {
	entries, err := r.List()
	if err != nil {
		return config.InstallationEntry{}, err
	}
	for _, entry := range entries {
		if entry.ID == string(instID) {
			return entry, nil
		}
	}
	return config.InstallationEntry{}, errInstallationUnknown.New(maxerrors.Props{"id": string(instID)})
}

// Put persists an entry under its name.
func (r *InstallationRegistry) Put(entry config.InstallationEntry) error {
	return r.file.Mutate(func(m *config.Manifest) error {
		if m.Installations == nil {
			m.Installations = make(map[string]config.InstallationEntry)
		}
		m.Installations[entry.Spec.Name] = entry
		return nil
	})
}

// Remove drops the entry with the given installation id.
func (r *InstallationRegistry) Remove(instID id.InstallationID) error {
	return r.file.Mutate(func(m *config.Manifest) error {
		for name, entry := range m.Installations {
			if entry.ID == string(instID) {
				delete(m.Installations, name)
				return nil
			}
		}
		return errInstallationUnknown.New(maxerrors.Props{"id": string(instID)})
	})
}

// WorkspaceRegistry is the persistent metadata mirror of the global node's
// workspaces (~/.max/workspaces.json).
type WorkspaceRegistry struct {
	file *config.ManifestFile[config.GlobalManifest]
}

// NewWorkspaceRegistry binds a registry to the global manifest file.
func NewWorkspaceRegistry(path string) *WorkspaceRegistry {
	return &WorkspaceRegistry{file: config.NewManifestFile[config.GlobalManifest](path)}
}

// List returns the persisted workspaces.
func (r *WorkspaceRegistry) List() (config.GlobalManifest, error) {
	return r.file.Load()
}

// Put persists a workspace entry.
func (r *WorkspaceRegistry) Put(wsID id.WorkspaceID, entry config.WorkspaceEntry) error {
	return r.file.Mutate(func(m *config.GlobalManifest) error {
		if *m == nil {
			*m = make(config.GlobalManifest)
		}
		(*m)[string(wsID)] = entry
		return nil
	})
}

// Remove drops a workspace entry.
func (r *WorkspaceRegistry) Remove(wsID id.WorkspaceID) error {
	return r.file.Mutate(func(m *config.GlobalManifest) error {
		delete(*m, string(wsID))
		return nil
	})
}

// NowFunc stamps connectedAt times; tests may substitute it.
type NowFunc func() time.Time
