package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

var errTaskStorage = maxerrors.Define(
	"execution.store_io",
	"task store operation failed: {cause}",
)

const taskSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	sync_id      TEXT NOT NULL,
	state        TEXT NOT NULL,
	payload      TEXT NOT NULL,
	parent_id    TEXT,
	blocked_by   TEXT,
	not_before   INTEGER,
	created_at   INTEGER NOT NULL,
	completed_at INTEGER,
	error        TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_sync_state ON tasks(sync_id, state);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
`

// SQLiteStore is the persistent task store. A mutex serialises operations;
// within an operation the state machine is checked before every write so
// transitions stay monotonic.
type SQLiteStore struct {
	mu  sync.Mutex
	db  *sql.DB
	gen id.Generator
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the task database at path.
func OpenSQLite(path string, gen id.Generator) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errTaskStorage.Wrap(err, nil)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(taskSchema); err != nil {
		_ = db.Close()
		return nil, errTaskStorage.Wrap(err, nil)
	}
	return &SQLiteStore{db: db, gen: gen, now: time.Now}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Insert stamps id and creation time and persists the template.
func (s *SQLiteStore) Insert(ctx context.Context, syncID id.SyncID, tmpl Template) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := tmpl.State
	if state == "" {
		state = StatePending
	}
	t := Task{
		ID:        id.TaskID(s.gen.NewID()),
		SyncID:    syncID,
		State:     state,
		Payload:   tmpl.Payload,
		ParentID:  tmpl.ParentID,
		BlockedBy: tmpl.BlockedBy,
		NotBefore: tmpl.NotBefore,
		CreatedAt: s.now(),
	}

	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return Task{}, errTaskStorage.Wrap(err, nil)
	}
	var blockedBy any
	if len(t.BlockedBy) > 0 {
		encoded, err := json.Marshal(t.BlockedBy)
		if err != nil {
			return Task{}, errTaskStorage.Wrap(err, nil)
		}
		blockedBy = string(encoded)
	}
	var notBefore any
	if t.NotBefore != nil {
		notBefore = t.NotBefore.UnixMilli()
	}
	var parent any
	if t.ParentID != "" {
		parent = string(t.ParentID)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, sync_id, state, payload, parent_id, blocked_by, not_before, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.ID), string(syncID), string(t.State), string(payload),
		parent, blockedBy, notBefore, t.CreatedAt.UnixMilli(),
	); err != nil {
		return Task{}, errTaskStorage.Wrap(err, nil)
	}
	return t, nil
}

// Claim selects the oldest claimable pending task and flips it to running.
func (s *SQLiteStore) Claim(ctx context.Context, syncID id.SyncID) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE sync_id = ? AND state = ? AND (not_before IS NULL OR not_before <= ?)
		 ORDER BY created_at, rowid`,
		string(syncID), string(StatePending), now)
	if err != nil {
		return nil, errTaskStorage.Wrap(err, nil)
	}
	candidates, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidate := &candidates[i]
		claimable, err := s.blockersCompleted(ctx, candidate.BlockedBy)
		if err != nil {
			return nil, err
		}
		if !claimable {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET state = ? WHERE id = ? AND state = ?`,
			string(StateRunning), string(candidate.ID), string(StatePending))
		if err != nil {
			return nil, errTaskStorage.Wrap(err, nil)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			candidate.State = StateRunning
			return candidate, nil
		}
	}
	return nil, nil
}

func (s *SQLiteStore) blockersCompleted(ctx context.Context, blockers []id.TaskID) (bool, error) {
	for _, blocker := range blockers {
		var state string
		err := s.db.QueryRowContext(ctx,
			`SELECT state FROM tasks WHERE id = ?`, string(blocker)).Scan(&state)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return false, errTaskStorage.Wrap(err, nil)
		}
		if State(state) != StateCompleted {
			return false, nil
		}
	}
	return true, nil
}

// Complete marks the task completed and cascades parent completion.
func (s *SQLiteStore) Complete(ctx context.Context, taskID id.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked(ctx, taskID)
}

func (s *SQLiteStore) completeLocked(ctx context.Context, taskID id.TaskID) error {
	t, err := s.getLocked(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, t, StateCompleted); err != nil {
		return err
	}
	return s.cascadeCompletion(ctx, t.ParentID)
}

// cascadeCompletion completes an awaiting parent once every child settled.
func (s *SQLiteStore) cascadeCompletion(ctx context.Context, parentID id.TaskID) error {
	if parentID == "" {
		return nil
	}
	parent, err := s.getLocked(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.State != StateAwaitingChildren {
		return nil
	}
	children, err := s.findByParentLocked(ctx, parentID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if !child.State.Terminal() {
			return nil
		}
	}
	if err := s.transition(ctx, parent, StateCompleted); err != nil {
		return err
	}
	return s.cascadeCompletion(ctx, parent.ParentID)
}

// Fail marks the task failed and fails every ancestor.
func (s *SQLiteStore) Fail(ctx context.Context, taskID id.TaskID, failure *maxerrors.Wire) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for taskID != "" {
		t, err := s.getLocked(ctx, taskID)
		if err != nil {
			return err
		}
		if t.State.Terminal() {
			return nil
		}
		if err := s.transitionWithError(ctx, t, StateFailed, failure); err != nil {
			return err
		}
		taskID = t.ParentID
		failure = nil
	}
	return nil
}

// MarkAwaiting moves a running task to awaiting_children.
func (s *SQLiteStore) MarkAwaiting(ctx context.Context, taskID id.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getLocked(ctx, taskID)
	if err != nil {
		return err
	}
	return s.transition(ctx, t, StateAwaitingChildren)
}

func (s *SQLiteStore) transition(ctx context.Context, t Task, to State) error {
	return s.transitionWithError(ctx, t, to, nil)
}

func (s *SQLiteStore) transitionWithError(ctx context.Context, t Task, to State, failure *maxerrors.Wire) error {
	if !CanTransition(t.State, to) {
		return ErrInvalidTransition.New(maxerrors.Props{
			"task": string(t.ID),
			"from": string(t.State),
			"to":   string(to),
		})
	}
	var completedAt any
	if to.Terminal() {
		completedAt = s.now().UnixMilli()
	}
	var encodedErr any
	if failure != nil {
		encoded, err := json.Marshal(failure)
		if err != nil {
			return errTaskStorage.Wrap(err, nil)
		}
		encodedErr = string(encoded)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, completed_at = COALESCE(?, completed_at), error = COALESCE(?, error)
		 WHERE id = ?`,
		string(to), completedAt, encodedErr, string(t.ID),
	); err != nil {
		return errTaskStorage.Wrap(err, nil)
	}
	return nil
}

// Get retrieves one task.
func (s *SQLiteStore) Get(ctx context.Context, taskID id.TaskID) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, taskID)
}

func (s *SQLiteStore) getLocked(ctx context.Context, taskID id.TaskID) (Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, string(taskID))
	if err != nil {
		return Task{}, errTaskStorage.Wrap(err, nil)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return Task{}, err
	}
	if len(tasks) == 0 {
		return Task{}, ErrTaskNotFound.New(maxerrors.Props{"task": string(taskID)})
	}
	return tasks[0], nil
}

// FindByParent lists a task's children in creation order.
func (s *SQLiteStore) FindByParent(ctx context.Context, parentID id.TaskID) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByParentLocked(ctx, parentID)
}

func (s *SQLiteStore) findByParentLocked(ctx context.Context, parentID id.TaskID) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? ORDER BY created_at, rowid`,
		string(parentID))
	if err != nil {
		return nil, errTaskStorage.Wrap(err, nil)
	}
	return scanTasks(rows)
}

// FindBySync lists the sync's tasks, optionally filtered by state.
func (s *SQLiteStore) FindBySync(ctx context.Context, syncID id.SyncID, states ...State) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE sync_id = ?`
	args := []any{string(syncID)}
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += ` AND state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errTaskStorage.Wrap(err, nil)
	}
	return scanTasks(rows)
}

// Count reports how many of the sync's tasks are in the state.
func (s *SQLiteStore) Count(ctx context.Context, syncID id.SyncID, state State) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE sync_id = ? AND state = ?`,
		string(syncID), string(state)).Scan(&count)
	if err != nil {
		return 0, errTaskStorage.Wrap(err, nil)
	}
	return count, nil
}

// Cancel cancels one task.
func (s *SQLiteStore) Cancel(ctx context.Context, taskID id.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getLocked(ctx, taskID)
	if err != nil {
		return err
	}
	if t.State.Terminal() {
		return nil
	}
	return s.transition(ctx, t, StateCancelled)
}

// CancelPending cancels every non-terminal, non-running task of the sync.
func (s *SQLiteStore) CancelPending(ctx context.Context, syncID id.SyncID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, completed_at = ?
		 WHERE sync_id = ? AND state IN (?, ?, ?, ?)`,
		string(StateCancelled), s.now().UnixMilli(), string(syncID),
		string(StateNew), string(StatePending), string(StatePaused), string(StateAwaitingChildren))
	if err != nil {
		return 0, errTaskStorage.Wrap(err, nil)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Pause moves the sync's pending tasks to paused.
func (s *SQLiteStore) Pause(ctx context.Context, syncID id.SyncID) error {
	return s.flip(ctx, syncID, StatePending, StatePaused)
}

// Resume moves the sync's paused tasks back to pending.
func (s *SQLiteStore) Resume(ctx context.Context, syncID id.SyncID) error {
	return s.flip(ctx, syncID, StatePaused, StatePending)
}

func (s *SQLiteStore) flip(ctx context.Context, syncID id.SyncID, from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ? WHERE sync_id = ? AND state = ?`,
		string(to), string(syncID), string(from)); err != nil {
		return errTaskStorage.Wrap(err, nil)
	}
	return nil
}

const taskColumns = `id, sync_id, state, payload, parent_id, blocked_by, not_before, created_at, completed_at, error`

func scanTasks(rows *sql.Rows) ([]Task, error) {
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var (
			t           Task
			taskID      string
			syncID      string
			state       string
			payload     string
			parentID    sql.NullString
			blockedBy   sql.NullString
			notBefore   sql.NullInt64
			createdAt   int64
			completedAt sql.NullInt64
			encodedErr  sql.NullString
		)
		if err := rows.Scan(&taskID, &syncID, &state, &payload, &parentID,
			&blockedBy, &notBefore, &createdAt, &completedAt, &encodedErr); err != nil {
			return nil, errTaskStorage.Wrap(err, nil)
		}
		t.ID = id.TaskID(taskID)
		t.SyncID = id.SyncID(syncID)
		t.State = State(state)
		if err := json.Unmarshal([]byte(payload), &t.Payload); err != nil {
			return nil, errTaskStorage.Wrap(err, nil)
		}
		if parentID.Valid {
			t.ParentID = id.TaskID(parentID.String)
		}
		if blockedBy.Valid {
			if err := json.Unmarshal([]byte(blockedBy.String), &t.BlockedBy); err != nil {
				return nil, errTaskStorage.Wrap(err, nil)
			}
		}
		if notBefore.Valid {
			at := time.UnixMilli(notBefore.Int64)
			t.NotBefore = &at
		}
		t.CreatedAt = time.UnixMilli(createdAt)
		if completedAt.Valid {
			at := time.UnixMilli(completedAt.Int64)
			t.CompletedAt = &at
		}
		if encodedErr.Valid {
			var w maxerrors.Wire
			if err := json.Unmarshal([]byte(encodedErr.String), &w); err != nil {
				return nil, errTaskStorage.Wrap(err, nil)
			}
			t.Error = &w
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errTaskStorage.Wrap(err, nil)
	}
	return out, nil
}
