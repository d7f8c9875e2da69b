package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
)

// RecordFieldSync stamps the given fields of r as synced at t.
func (e *SQLiteEngine) RecordFieldSync(ctx context.Context, r ref.Ref, fields []id.FieldName, at time.Time) error {
	if len(fields) == 0 {
		return nil
	}
	key := ref.New(r.Type, r.ID).Key()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errStorage.Wrap(err, nil)
	}
	defer tx.Rollback()

	for _, field := range fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sync_meta (ref_key, field, synced_at) VALUES (?, ?, ?)
			 ON CONFLICT(ref_key, field) DO UPDATE SET synced_at = excluded.synced_at`,
			key, string(field), at.UnixMilli(),
		); err != nil {
			return errStorage.Wrap(err, nil)
		}
	}
	if err := tx.Commit(); err != nil {
		return errStorage.Wrap(err, nil)
	}
	return nil
}

// StaleFields returns the subset of fields whose last sync is missing or
// older than maxAge.
func (e *SQLiteEngine) StaleFields(ctx context.Context, r ref.Ref, fields []id.FieldName, maxAge time.Duration) ([]id.FieldName, error) {
	key := ref.New(r.Type, r.ID).Key()
	cutoff := e.now().Add(-maxAge).UnixMilli()

	stale := make([]id.FieldName, 0)
	for _, field := range fields {
		var syncedAt int64
		err := e.db.QueryRowContext(ctx,
			`SELECT synced_at FROM sync_meta WHERE ref_key = ? AND field = ?`,
			key, string(field),
		).Scan(&syncedAt)
		switch {
		case err == sql.ErrNoRows:
			stale = append(stale, field)
		case err != nil:
			return nil, errStorage.Wrap(err, nil)
		case syncedAt < cutoff:
			stale = append(stale, field)
		}
	}
	return stale, nil
}

// InvalidateFields forgets the sync timestamps of the given fields.
func (e *SQLiteEngine) InvalidateFields(ctx context.Context, r ref.Ref, fields []id.FieldName) error {
	key := ref.New(r.Type, r.ID).Key()
	for _, field := range fields {
		if _, err := e.db.ExecContext(ctx,
			`DELETE FROM sync_meta WHERE ref_key = ? AND field = ?`,
			key, string(field),
		); err != nil {
			return errStorage.Wrap(err, nil)
		}
	}
	return nil
}

// CountSyncMeta reports the number of sync metadata rows, for freshness
// reporting and tests.
func (e *SQLiteEngine) CountSyncMeta(ctx context.Context) (int, error) {
	var count int
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_meta`).Scan(&count)
	if err != nil {
		return 0, errStorage.Wrap(err, nil)
	}
	return count, nil
}
