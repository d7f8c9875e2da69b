package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/schema"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

const defaultPageSize = 100

var (
	errEntityNotFound = maxerrors.Define(
		"storage.entity_not_found",
		"no entity stored under {ref}",
		maxerrors.NotFound, maxerrors.HasEntityRef,
	)
	errUnknownField = maxerrors.Define(
		"storage.unknown_field",
		"entity type {entityType} has no field {field}",
		maxerrors.BadInput, maxerrors.HasEntityType, maxerrors.HasEntityField,
	)
	errStorage = maxerrors.Define(
		"storage.io",
		"storage operation failed: {cause}",
	)
	errBadCursor = maxerrors.Define(
		"storage.bad_cursor",
		"malformed page cursor {cursor}",
		maxerrors.BadInput,
	)
)

const engineSchema = `
CREATE TABLE IF NOT EXISTS entities (
	ref_key     TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS entity_fields (
	ref_key TEXT NOT NULL,
	field   TEXT NOT NULL,
	value   TEXT NOT NULL,
	PRIMARY KEY (ref_key, field)
);

CREATE TABLE IF NOT EXISTS collection_items (
	parent_key TEXT NOT NULL,
	field      TEXT NOT NULL,
	item_key   TEXT NOT NULL,
	PRIMARY KEY (parent_key, field, item_key)
);

CREATE TABLE IF NOT EXISTS sync_meta (
	ref_key   TEXT NOT NULL,
	field     TEXT NOT NULL,
	synced_at INTEGER NOT NULL,
	PRIMARY KEY (ref_key, field)
);
`

// SQLiteEngine stores an installation's entities, collections, and sync
// metadata in a single sqlite database.
type SQLiteEngine struct {
	db  *sql.DB
	sch *schema.Schema
	now func() time.Time
}

var _ Engine = (*SQLiteEngine)(nil)
var _ SyncMeta = (*SQLiteEngine)(nil)

// OpenSQLite opens (creating if needed) the engine database at path.
func OpenSQLite(path string, sch *schema.Schema) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errStorage.Wrap(err, nil)
	}
	// The modernc driver serialises writes per connection; a single
	// connection keeps claim/upsert interleavings well defined.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(engineSchema); err != nil {
		_ = db.Close()
		return nil, errStorage.Wrap(err, nil)
	}
	return &SQLiteEngine{db: db, sch: sch, now: time.Now}, nil
}

// Close releases the database handle.
func (e *SQLiteEngine) Close() error { return e.db.Close() }

// Schema returns the schema this engine stores.
func (e *SQLiteEngine) Schema() *schema.Schema { return e.sch }

// Store upserts one entity input and returns the normalised ref. Storing the
// same input twice leaves the same final state.
func (e *SQLiteEngine) Store(ctx context.Context, input EntityInput) (ref.Ref, error) {
	def, err := e.sch.Entity(input.Ref.Type)
	if err != nil {
		return ref.Ref{}, err
	}
	normalised := ref.New(input.Ref.Type, input.Ref.ID)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return ref.Ref{}, errStorage.Wrap(err, nil)
	}
	defer tx.Rollback()

	key := normalised.Key()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities (ref_key, entity_type, entity_id, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT(ref_key) DO NOTHING`,
		key, string(normalised.Type), string(normalised.ID), e.now().UnixMilli(),
	); err != nil {
		return ref.Ref{}, errStorage.Wrap(err, nil)
	}

	for field, value := range input.Fields {
		fd, ok := def.Field(field)
		if !ok {
			return ref.Ref{}, errUnknownField.New(maxerrors.Props{
				"entityType": string(def.Name),
				"field":      string(field),
			})
		}
		if fd.Kind == schema.FieldCollection {
			items, err := collectionRefs(value)
			if err != nil {
				return ref.Ref{}, err
			}
			for _, item := range items {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO collection_items (parent_key, field, item_key)
					 VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
					key, string(field), item.Key(),
				); err != nil {
					return ref.Ref{}, errStorage.Wrap(err, nil)
				}
			}
			continue
		}
		encoded, err := encodeFieldValue(fd, value)
		if err != nil {
			return ref.Ref{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entity_fields (ref_key, field, value) VALUES (?, ?, ?)
			 ON CONFLICT(ref_key, field) DO UPDATE SET value = excluded.value`,
			key, string(field), encoded,
		); err != nil {
			return ref.Ref{}, errStorage.Wrap(err, nil)
		}
	}

	if err := tx.Commit(); err != nil {
		return ref.Ref{}, errStorage.Wrap(err, nil)
	}
	return normalised, nil
}

func collectionRefs(value any) ([]ref.Ref, error) {
	switch items := value.(type) {
	case []ref.Ref:
		return items, nil
	case []any:
		out := make([]ref.Ref, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case ref.Ref:
				out = append(out, v)
			case string:
				parsed, err := ref.ParseKey(v)
				if err != nil {
					return nil, err
				}
				out = append(out, parsed)
			default:
				return nil, maxerrors.Internal.New(maxerrors.Props{"cause": "collection items must be refs"})
			}
		}
		return out, nil
	}
	return nil, maxerrors.Internal.New(maxerrors.Props{"cause": "collection field value must be a ref slice"})
}

func encodeFieldValue(fd schema.FieldDef, value any) (string, error) {
	if fd.Kind == schema.FieldRef {
		switch v := value.(type) {
		case ref.Ref:
			value = v.Key()
		case string:
			// Already a ref key.
		case nil:
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", errStorage.Wrap(err, nil)
	}
	return string(encoded), nil
}

// Load reads one entity with the selected projection. Fields the projection
// includes but the store never saw come back as the field's zero value.
func (e *SQLiteEngine) Load(ctx context.Context, r ref.Ref, projection Projection) (EntityResult, error) {
	def, err := e.sch.Entity(r.Type)
	if err != nil {
		return EntityResult{}, err
	}
	normalised := ref.New(r.Type, r.ID)
	key := normalised.Key()

	var exists int
	err = e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE ref_key = ?`, key,
	).Scan(&exists)
	if err != nil {
		return EntityResult{}, errStorage.Wrap(err, nil)
	}
	if exists == 0 {
		return EntityResult{}, errEntityNotFound.New(maxerrors.Props{"ref": key})
	}

	result := EntityResult{Ref: normalised}
	wanted, err := projectedFields(def, projection)
	if err != nil {
		return EntityResult{}, err
	}
	if len(wanted) == 0 {
		return result, nil
	}

	stored, err := e.fieldValues(ctx, def, key)
	if err != nil {
		return EntityResult{}, err
	}
	result.Fields = make(map[id.FieldName]any, len(wanted))
	for _, fd := range wanted {
		if v, ok := stored[fd.Name]; ok {
			result.Fields[fd.Name] = v
		} else {
			result.Fields[fd.Name] = zeroValue(fd)
		}
	}
	return result, nil
}

func projectedFields(def schema.EntityDef, projection Projection) ([]schema.FieldDef, error) {
	switch projection.Kind {
	case ProjectRefs:
		return nil, nil
	case ProjectAll, "":
		out := make([]schema.FieldDef, 0, len(def.Fields))
		for _, fd := range def.Fields {
			if fd.Kind != schema.FieldCollection {
				out = append(out, fd)
			}
		}
		return out, nil
	case ProjectSelect:
		out := make([]schema.FieldDef, 0, len(projection.Fields))
		for _, name := range projection.Fields {
			fd, ok := def.Field(name)
			if !ok {
				return nil, errUnknownField.New(maxerrors.Props{
					"entityType": string(def.Name),
					"field":      string(name),
				})
			}
			out = append(out, fd)
		}
		return out, nil
	}
	return nil, errBadQuery.New(maxerrors.Props{"detail": "unknown projection kind"})
}

func zeroValue(fd schema.FieldDef) any {
	switch fd.Kind {
	case schema.FieldRef:
		return nil
	default:
		switch fd.Scalar {
		case schema.ScalarNumber:
			return float64(0)
		case schema.ScalarBoolean:
			return false
		default:
			return ""
		}
	}
}

func (e *SQLiteEngine) fieldValues(ctx context.Context, def schema.EntityDef, key string) (map[id.FieldName]any, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT field, value FROM entity_fields WHERE ref_key = ?`, key)
	if err != nil {
		return nil, errStorage.Wrap(err, nil)
	}
	defer rows.Close()

	out := make(map[id.FieldName]any)
	for rows.Next() {
		var field, encoded string
		if err := rows.Scan(&field, &encoded); err != nil {
			return nil, errStorage.Wrap(err, nil)
		}
		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			return nil, errStorage.Wrap(err, nil)
		}
		out[id.FieldName(field)] = value
	}
	return out, rows.Err()
}

// LoadField reads a single field. A field the store never saw fails with
// core.field_not_loaded.
func (e *SQLiteEngine) LoadField(ctx context.Context, r ref.Ref, field id.FieldName) (any, error) {
	def, err := e.sch.Entity(r.Type)
	if err != nil {
		return nil, err
	}
	if _, ok := def.Field(field); !ok {
		return nil, errUnknownField.New(maxerrors.Props{
			"entityType": string(def.Name),
			"field":      string(field),
		})
	}
	key := ref.New(r.Type, r.ID).Key()

	var encoded string
	err = e.db.QueryRowContext(ctx,
		`SELECT value FROM entity_fields WHERE ref_key = ? AND field = ?`,
		key, string(field),
	).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, ErrFieldNotLoaded.New(maxerrors.Props{"ref": key, "field": string(field)})
	}
	if err != nil {
		return nil, errStorage.Wrap(err, nil)
	}
	var value any
	if err := json.Unmarshal([]byte(encoded), &value); err != nil {
		return nil, errStorage.Wrap(err, nil)
	}
	return value, nil
}

// LoadCollection pages through a collection field's member refs.
func (e *SQLiteEngine) LoadCollection(ctx context.Context, r ref.Ref, field id.FieldName, page *Page) (RefPage, error) {
	def, err := e.sch.Entity(r.Type)
	if err != nil {
		return RefPage{}, err
	}
	fd, ok := def.Field(field)
	if !ok || fd.Kind != schema.FieldCollection {
		return RefPage{}, errUnknownField.New(maxerrors.Props{
			"entityType": string(def.Name),
			"field":      string(field),
		})
	}
	key := ref.New(r.Type, r.ID).Key()
	offset, size, err := pageWindow(page)
	if err != nil {
		return RefPage{}, err
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT item_key FROM collection_items
		 WHERE parent_key = ? AND field = ?
		 ORDER BY item_key LIMIT ? OFFSET ?`,
		key, string(field), size+1, offset)
	if err != nil {
		return RefPage{}, errStorage.Wrap(err, nil)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var itemKey string
		if err := rows.Scan(&itemKey); err != nil {
			return RefPage{}, errStorage.Wrap(err, nil)
		}
		keys = append(keys, itemKey)
	}
	if err := rows.Err(); err != nil {
		return RefPage{}, errStorage.Wrap(err, nil)
	}
	return refPageOf(keys, offset, size)
}

// LoadPage lists entities of one type with the given projection.
func (e *SQLiteEngine) LoadPage(ctx context.Context, t id.EntityType, projection Projection, page *Page) (EntityPage, error) {
	refsPage, err := e.typeRefs(ctx, t, page)
	if err != nil {
		return EntityPage{}, err
	}
	entities := make([]EntityResult, 0, len(refsPage.Refs))
	for _, r := range refsPage.Refs {
		result, err := e.Load(ctx, r, projection)
		if err != nil {
			return EntityPage{}, err
		}
		entities = append(entities, result)
	}
	return EntityPage{Entities: entities, Cursor: refsPage.Cursor, HasMore: refsPage.HasMore}, nil
}

func (e *SQLiteEngine) typeRefs(ctx context.Context, t id.EntityType, page *Page) (RefPage, error) {
	if _, err := e.sch.Entity(t); err != nil {
		return RefPage{}, err
	}
	offset, size, err := pageWindow(page)
	if err != nil {
		return RefPage{}, err
	}
	rows, err := e.db.QueryContext(ctx,
		`SELECT ref_key FROM entities WHERE entity_type = ?
		 ORDER BY entity_id LIMIT ? OFFSET ?`,
		string(t), size+1, offset)
	if err != nil {
		return RefPage{}, errStorage.Wrap(err, nil)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return RefPage{}, errStorage.Wrap(err, nil)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return RefPage{}, errStorage.Wrap(err, nil)
	}
	return refPageOf(keys, offset, size)
}

// Query evaluates a filtered, ordered, paged query. Filtering happens over
// the stored fields; cursors round-trip as opaque offsets.
func (e *SQLiteEngine) Query(ctx context.Context, q Query) (EntityPage, error) {
	def, err := e.sch.Entity(q.Type)
	if err != nil {
		return EntityPage{}, err
	}

	// Materialise all entities of the type, filter, then page. The closed
	// world per installation keeps this tractable.
	rows, err := e.db.QueryContext(ctx,
		`SELECT ref_key FROM entities WHERE entity_type = ? ORDER BY entity_id`,
		string(q.Type))
	if err != nil {
		return EntityPage{}, errStorage.Wrap(err, nil)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return EntityPage{}, errStorage.Wrap(err, nil)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return EntityPage{}, errStorage.Wrap(err, nil)
	}

	var matched []EntityResult
	for _, key := range keys {
		r, err := ref.ParseKey(key)
		if err != nil {
			return EntityPage{}, err
		}
		stored, err := e.fieldValues(ctx, def, key)
		if err != nil {
			return EntityPage{}, err
		}
		ok, err := q.Where.matches(stored)
		if err != nil {
			return EntityPage{}, err
		}
		if !ok {
			continue
		}
		result := EntityResult{Ref: r, Fields: stored}
		matched = append(matched, result)
	}

	sortResults(matched, q.OrderBy)

	offset, size, err := pageWindow(q.Page)
	if err != nil {
		return EntityPage{}, err
	}
	end := offset + size
	if offset > len(matched) {
		offset = len(matched)
	}
	hasMore := end < len(matched)
	if end > len(matched) {
		end = len(matched)
	}
	window := matched[offset:end]

	// Re-project after filtering so where clauses can reference fields the
	// projection drops.
	out := make([]EntityResult, 0, len(window))
	wanted, err := projectedFields(def, q.Projection)
	if err != nil {
		return EntityPage{}, err
	}
	for _, entity := range window {
		projected := EntityResult{Ref: entity.Ref}
		if len(wanted) > 0 {
			projected.Fields = make(map[id.FieldName]any, len(wanted))
			for _, fd := range wanted {
				if v, ok := entity.Fields[fd.Name]; ok {
					projected.Fields[fd.Name] = v
				} else {
					projected.Fields[fd.Name] = zeroValue(fd)
				}
			}
		}
		out = append(out, projected)
	}

	pageOut := EntityPage{Entities: out, HasMore: hasMore}
	if hasMore {
		pageOut.Cursor = strconv.Itoa(end)
	}
	return pageOut, nil
}

func pageWindow(page *Page) (offset, size int, err error) {
	size = defaultPageSize
	if page != nil {
		if page.Size > 0 {
			size = page.Size
		}
		if page.Cursor != "" {
			offset, err = strconv.Atoi(page.Cursor)
			if err != nil || offset < 0 {
				return 0, 0, errBadCursor.New(maxerrors.Props{"cursor": page.Cursor})
			}
		}
	}
	return offset, size, nil
}

func refPageOf(keys []string, offset, size int) (RefPage, error) {
	hasMore := len(keys) > size
	if hasMore {
		keys = keys[:size]
	}
	out := RefPage{HasMore: hasMore}
	for _, key := range keys {
		r, err := ref.ParseKey(key)
		if err != nil {
			return RefPage{}, err
		}
		out.Refs = append(out.Refs, r)
	}
	if hasMore {
		out.Cursor = strconv.Itoa(offset + size)
	}
	return out, nil
}
