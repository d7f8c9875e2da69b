package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errManifest = maxerrors.Define(
	"platform.manifest",
	"manifest {path} is unusable: {cause}",
	maxerrors.BadInput,
)

// InstallationSpec is the connector-facing part of an installation entry:
// everything a deployer needs to rebuild the live node.
type InstallationSpec struct {
	Connector          string          `json:"connector" validate:"required"`
	Name               string          `json:"name" validate:"required"`
	ConnectorConfig    json.RawMessage `json:"connectorConfig,omitempty"`
	InitialCredentials json.RawMessage `json:"initialCredentials,omitempty"`
}

// DeployConfig selects and configures a deployment strategy. Strategy is the
// discriminant; the remaining fields are per-kind.
type DeployConfig struct {
	Strategy   string `json:"strategy" validate:"required"`
	SocketPath string `json:"socketPath,omitempty"`
	Addr       string `json:"addr,omitempty"`
	Command    string `json:"command,omitempty"`
	Image      string `json:"image,omitempty"`
}

// InstallationEntry is one persisted installation. It is enough to recreate
// the live node.
type InstallationEntry struct {
	ID          string           `json:"id" validate:"required"`
	Connector   string           `json:"connector" validate:"required"`
	ConnectedAt time.Time        `json:"connectedAt"`
	Spec        InstallationSpec `json:"spec"`
	Deployment  DeployConfig     `json:"deployment"`
	Locator     string           `json:"locator,omitempty"`
}

// Manifest is the authoritative max.json schema.
type Manifest struct {
	Connectors    map[string]string            `json:"connectors,omitempty"`
	Installations map[string]InstallationEntry `json:"installations,omitempty"`
}

// WorkspaceEntry is one persisted workspace in the global manifest.
type WorkspaceEntry struct {
	Name        string    `json:"name" validate:"required"`
	ProjectRoot string    `json:"projectRoot" validate:"required"`
	ConnectedAt time.Time `json:"connectedAt"`
	Hosting     string    `json:"hosting,omitempty"`
}

// GlobalManifest is the ~/.max/workspaces.json schema: workspace id → entry.
type GlobalManifest map[string]WorkspaceEntry

// ManifestFile persists a JSON manifest with atomic writes. Conflicting
// writers serialise on the mutex.
type ManifestFile[T any] struct {
	path string
	mu   sync.Mutex
}

// NewManifestFile binds a manifest file to path.
func NewManifestFile[T any](path string) *ManifestFile[T] {
	return &ManifestFile[T]{path: path}
}

// Path returns the backing file path.
func (f *ManifestFile[T]) Path() string { return f.path }

// Load reads and validates the manifest. A missing file yields the zero
// manifest.
func (f *ManifestFile[T]) Load() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

func (f *ManifestFile[T]) loadLocked() (T, error) {
	var out T
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, errManifest.Wrap(err, maxerrors.Props{"path": f.path})
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errManifest.Wrap(err, maxerrors.Props{"path": f.path})
	}
	if err := validate.Struct(&struct{ V T }{out}); err != nil {
		return out, errManifest.Wrap(err, maxerrors.Props{"path": f.path})
	}
	return out, nil
}

// Save writes the manifest atomically: temporary file, then rename.
func (f *ManifestFile[T]) Save(value T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(value)
}

func (f *ManifestFile[T]) saveLocked(value T) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errManifest.Wrap(err, maxerrors.Props{"path": f.path})
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errManifest.Wrap(err, maxerrors.Props{"path": f.path})
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return errManifest.Wrap(err, maxerrors.Props{"path": f.path})
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return errManifest.Wrap(err, maxerrors.Props{"path": f.path})
	}
	return nil
}

// Mutate loads, applies fn, and saves the result under one lock.
func (f *ManifestFile[T]) Mutate(fn func(*T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, err := f.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(&value); err != nil {
		return err
	}
	return f.saveLocked(value)
}
