// Package id defines the typed identifier space shared across Max.
//
// Every identifier is a string with a distinct Go type so that an
// installation id can never be passed where a workspace id is expected.
// Equality is string equality. Identifiers built from untrusted input go
// through the Parse* helpers.
package id

import (
	"fmt"
	"strings"
)

// EntityID identifies a single entity within an entity type.
type EntityID string

// EntityType names an entity definition inside a connector schema.
type EntityType string

// FieldName names a field on an entity definition.
type FieldName string

// InstallationID identifies a live connector installation.
type InstallationID string

// WorkspaceID identifies a workspace in the global manifest.
type WorkspaceID string

// LoaderName identifies a loader exposed by a connector resolver.
type LoaderName string

// TaskID identifies a persistent task inside a sync.
type TaskID string

// SyncID identifies a single sync run on an installation.
type SyncID string

// DurationMS is a duration in whole milliseconds, used on wire types.
type DurationMS int64

func parse(kind, raw string, allowColon bool) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%s must not be empty", kind)
	}
	if !allowColon && strings.Contains(raw, ":") {
		return "", fmt.Errorf("%s %q must not contain ':'", kind, raw)
	}
	return raw, nil
}

// ParseEntityID validates raw input as an entity id. Entity ids occupy the
// final segment of a ref key, so colons are permitted.
func ParseEntityID(raw string) (EntityID, error) {
	s, err := parse("entity id", raw, true)
	return EntityID(s), err
}

// ParseEntityType validates raw input as an entity type name.
func ParseEntityType(raw string) (EntityType, error) {
	s, err := parse("entity type", raw, false)
	return EntityType(s), err
}

// ParseFieldName validates raw input as a field name.
func ParseFieldName(raw string) (FieldName, error) {
	s, err := parse("field name", raw, false)
	return FieldName(s), err
}

// ParseInstallationID validates raw input as an installation id.
func ParseInstallationID(raw string) (InstallationID, error) {
	s, err := parse("installation id", raw, false)
	return InstallationID(s), err
}

// ParseWorkspaceID validates raw input as a workspace id.
func ParseWorkspaceID(raw string) (WorkspaceID, error) {
	s, err := parse("workspace id", raw, false)
	return WorkspaceID(s), err
}

// ParseSyncID validates raw input as a sync id.
func ParseSyncID(raw string) (SyncID, error) {
	s, err := parse("sync id", raw, false)
	return SyncID(s), err
}

// ParseTaskID validates raw input as a task id.
func ParseTaskID(raw string) (TaskID, error) {
	s, err := parse("task id", raw, false)
	return TaskID(s), err
}
