// Package postgres implements a collection store backed by a PostgreSQL jsonb table.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/store/registry"
	"github.com/autom8ter/patchkit/util"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cast"
)

func init() {
	registry.Register("postgres", func(ctx context.Context, params map[string]any) (store.Store, error) {
		url := cast.ToString(params["url"])
		if url == "" {
			return nil, errors.New(errors.Validation, "'url' is a required parameter")
		}
		return New(ctx, url)
	})
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store over a single documents table.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the database at the given URL and runs any pending migrations.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: "patchkit_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func fieldPath(field string) any {
	return pq.Array(strings.Split(field, "."))
}

func (s *PostgresStore) Find(ctx context.Context, collection string, where store.Where) ([]store.Entry, error) {
	const query = `SELECT id, data FROM documents WHERE collection = $1 AND data #> $2::text[] = $3::jsonb ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, collection, fieldPath(where.Field), util.JSONString(util.Normalize(where.Value)))
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to query %s", collection)
	}
	defer rows.Close()
	var entries []store.Entry
	for rows.Next() {
		var entry = store.Entry{Collection: collection}
		if err := rows.Scan(&entry.ID, &entry.Data); err != nil {
			return nil, errors.Wrap(err, errors.Internal, "failed to scan %s", collection)
		}
		entries = append(entries, entry)
	}
	return entries, errors.Wrap(rows.Err(), errors.Internal, "failed to query %s", collection)
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (store.Entry, error) {
	var entry = store.Entry{Collection: collection, ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&entry.Data)
	if err == sql.ErrNoRows {
		return entry, errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	}
	if err != nil {
		return entry, errors.Wrap(err, errors.Internal, "failed to get %s/%s", collection, id)
	}
	return entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry store.Entry) (store.Entry, error) {
	if !json.Valid(entry.Data) {
		return entry, errors.New(errors.Validation, "%s/%s: invalid json", entry.Collection, entry.ID)
	}
	if entry.ID == "" {
		entry.ID = ksuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		entry.Collection, entry.ID, string(entry.Data))
	if err != nil {
		return entry, errors.Wrap(err, errors.WriteRejected, "failed to put %s/%s", entry.Collection, entry.ID)
	}
	return entry, nil
}

// parents returns every proper prefix of the dotted fields, shallowest first
func parents(fields []string) []string {
	var prefixes []string
	for _, field := range fields {
		parts := strings.Split(field, ".")
		for i := 1; i < len(parts); i++ {
			prefixes = append(prefixes, strings.Join(parts[:i], "."))
		}
	}
	prefixes = lo.Uniq(prefixes)
	sort.SliceStable(prefixes, func(i, j int) bool {
		return strings.Count(prefixes[i], ".") < strings.Count(prefixes[j], ".")
	})
	return prefixes
}

// updateQuery nests one jsonb_set per field so the whole patch is a single statement.
// jsonb_set only creates the last element of a path, so every parent object of a dotted
// field is set first: kept when it is already an object, replaced with {} otherwise.
func updateQuery(update store.Update) (string, []any) {
	var (
		expr   = "data"
		args   []any
		fields = util.SortedKeys(update.Fields)
	)
	paths := append([]string{}, fields...)
	if update.TimestampField != "" {
		paths = append(paths, update.TimestampField)
	}
	for _, parent := range parents(paths) {
		args = append(args, fieldPath(parent))
		n := len(args)
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], CASE WHEN jsonb_typeof(data #> $%d::text[]) = 'object' THEN data #> $%d::text[] ELSE '{}'::jsonb END, true)", expr, n, n, n)
	}
	for _, field := range fields {
		args = append(args, fieldPath(field), util.JSONString(update.Fields[field]))
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)", expr, len(args)-1, len(args))
	}
	if update.TimestampField != "" {
		args = append(args, fieldPath(update.TimestampField))
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], to_jsonb(now()), true)", expr, len(args))
	}
	query := fmt.Sprintf("UPDATE documents SET data = %s WHERE collection = $%d AND id = $%d", expr, len(args)+1, len(args)+2)
	return query, args
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, update store.Update) error {
	if len(update.Fields) == 0 && update.TimestampField == "" {
		_, err := s.Get(ctx, collection, id)
		return err
	}
	query, args := updateQuery(update)
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

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
