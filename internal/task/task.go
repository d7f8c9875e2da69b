// Package task models the persistent unit of work inside a sync and the
// store that owns task state.
package task

import (
	"time"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/syncplan"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// State enumerates the task state machine. Transitions are monotonic except
// for the explicit paused→pending resume edge.
type State string

const (
	StateNew              State = "new"
	StatePending          State = "pending"
	StateRunning          State = "running"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StateAwaitingChildren State = "awaiting_children"
	StatePaused           State = "paused"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateNew:              {StatePending, StateCancelled},
	StatePending:          {StateRunning, StatePaused, StateCancelled},
	StateRunning:          {StateCompleted, StateFailed, StateAwaitingChildren, StatePaused, StateCancelled},
	StateAwaitingChildren: {StateCompleted, StateFailed, StatePaused, StateCancelled},
	StatePaused:           {StatePending, StateCancelled},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition marks illegal state machine edges.
var ErrInvalidTransition = maxerrors.Define(
	"execution.invalid_transition",
	"task {task} cannot transition from {from} to {to}",
	maxerrors.InvariantViolated,
)

// ErrTaskNotFound covers lookups of unknown tasks.
var ErrTaskNotFound = maxerrors.Define(
	"execution.task_not_found",
	"no task {task}",
	maxerrors.NotFound,
)

// PayloadKind discriminates the payload variants.
type PayloadKind string

const (
	PayloadLoadFields     PayloadKind = "load-fields"
	PayloadLoadCollection PayloadKind = "load-collection"
	PayloadSyncStep       PayloadKind = "sync-step"
	PayloadSyncGroup      PayloadKind = "sync-group"
)

// LoadFieldsPayload loads a field batch for a set of refs through one loader.
type LoadFieldsPayload struct {
	Refs   []ref.Ref      `json:"refs"`
	Loader id.LoaderName  `json:"loader"`
	Fields []id.FieldName `json:"fields"`
}

// LoadCollectionPayload loads one page of a parent's collection field.
type LoadCollectionPayload struct {
	Parent ref.Ref      `json:"parent"`
	Field  id.FieldName `json:"field"`
	Cursor string       `json:"cursor,omitempty"`
}

// SyncStepPayload carries a serialized plan step plus the resolution cursor
// for forAll targets.
type SyncStepPayload struct {
	Step   syncplan.Step `json:"step"`
	Cursor string        `json:"cursor,omitempty"`
}

// Payload is the closed union of task payloads.
type Payload struct {
	Kind           PayloadKind            `json:"kind"`
	LoadFields     *LoadFieldsPayload     `json:"loadFields,omitempty"`
	LoadCollection *LoadCollectionPayload `json:"loadCollection,omitempty"`
	SyncStep       *SyncStepPayload       `json:"syncStep,omitempty"`
}

// Task is the persistent record.
type Task struct {
	ID          id.TaskID       `json:"id"`
	SyncID      id.SyncID       `json:"syncId"`
	State       State           `json:"state"`
	Payload     Payload         `json:"payload"`
	ParentID    id.TaskID       `json:"parentId,omitempty"`
	BlockedBy   []id.TaskID     `json:"blockedBy,omitempty"`
	NotBefore   *time.Time      `json:"notBefore,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Error       *maxerrors.Wire `json:"error,omitempty"`
}

// Template describes a task to insert. The store stamps id, sync id, and
// creation time. An empty State inserts as pending.
type Template struct {
	Payload   Payload
	ParentID  id.TaskID
	BlockedBy []id.TaskID
	NotBefore *time.Time
	State     State
}
