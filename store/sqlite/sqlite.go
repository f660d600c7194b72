// Package sqlite implements a collection store in a single sqlite table using the JSON1 functions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/store/registry"
	"github.com/autom8ter/patchkit/util"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cast"
	_ "modernc.org/sqlite"
)

func init() {
	registry.Register("sqlite", func(ctx context.Context, params map[string]any) (store.Store, error) {
		return Open(ctx, cast.ToString(params["path"]))
	})
}

const schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

// serverTime is evaluated by sqlite so every write in a statement sees the same clock
const serverTime = `strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

type sqliteStore struct {
	db *sql.DB
}

// Open opens (and creates if needed) the documents table at path. An empty path keeps the database in memory.
func Open(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

// jsonPath converts a dotted field into a sqlite json path, quoting each segment
func jsonPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, segment := range strings.Split(field, ".") {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(segment, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}

// sqlValue converts a normalized json value into what json_extract returns for it
func sqlValue(value any) any {
	switch value := util.Normalize(value).(type) {
	case bool:
		if value {
			return 1
		}
		return 0
	case map[string]any, []any:
		return util.JSONString(value)
	default:
		return value
	}
}

func (s *sqliteStore) Find(ctx context.Context, collection string, where store.Where) ([]store.Entry, error) {
	const query = `SELECT id, data FROM documents WHERE collection = ? AND json_extract(data, ?) = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, collection, jsonPath(where.Field), sqlValue(where.Value))
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to query %s", collection)
	}
	defer rows.Close()
	var entries []store.Entry
	for rows.Next() {
		var (
			id   string
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, errors.Wrap(err, errors.Internal, "failed to scan %s", collection)
		}
		entries = append(entries, store.Entry{Collection: collection, ID: id, Data: []byte(data)})
	}
	return entries, errors.Wrap(rows.Err(), errors.Internal, "failed to query %s", collection)
}

func (s *sqliteStore) Get(ctx context.Context, collection, id string) (store.Entry, error) {
	var (
		entry = store.Entry{Collection: collection, ID: id}
		data  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		return entry, errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	}
	if err != nil {
		return entry, errors.Wrap(err, errors.Internal, "failed to get %s/%s", collection, id)
	}
	entry.Data = []byte(data)
	return entry, nil
}

func (s *sqliteStore) Put(ctx context.Context, entry store.Entry) (store.Entry, error) {
	if !json.Valid(entry.Data) {
		return entry, errors.New(errors.Validation, "%s/%s: invalid json", entry.Collection, entry.ID)
	}
	if entry.ID == "" {
		entry.ID = ksuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		entry.Collection, entry.ID, string(entry.Data))
	if err != nil {
		return entry, errors.Wrap(err, errors.WriteRejected, "failed to put %s/%s", entry.Collection, entry.ID)
	}
	return entry, nil
}

func (s *sqliteStore) Update(ctx context.Context, collection, id string, update store.Update) error {
	var (
		sets []string
		args []any
	)
	for _, field := range util.SortedKeys(update.Fields) {
		sets = append(sets, "?, json(?)")
		args = append(args, jsonPath(field), util.JSONString(update.Fields[field]))
	}
	if update.TimestampField != "" {
		sets = append(sets, "?, "+serverTime)
		args = append(args, jsonPath(update.TimestampField))
	}
	if len(sets) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}
	query := fmt.Sprintf(`UPDATE documents SET data = json_set(data, %s) WHERE collection = ? AND id = ?`, strings.Join(sets, ", "))
	args = append(args, collection, id)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.WriteRejected, "failed to update %s/%s", collection, id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.WriteRejected, "failed to update %s/%s", collection, id)
	}
	if affected == 0 {
		return errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
