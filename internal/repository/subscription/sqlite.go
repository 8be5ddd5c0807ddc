package subscription

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Registers the "sqlite" database/sql driver.

	domain "github.com/oshokin/doorwatch/internal/domain/door"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqlitePingTimeout bounds the connectivity check performed by OpenSQLite.
const sqlitePingTimeout = 3 * time.Second

// SQLiteRepository persists subscriptions in a local sqlite database.
type SQLiteRepository struct {
	// db is a single-connection pool; sqlite serializes writers anyway.
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		filepath.ToSlash(path),
	)

	return openSQLiteDSN(ctx, dsn)
}

// openSQLiteDSN opens a database from a ready DSN. Tests use it with in-memory DSNs.
func openSQLiteDSN(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, sqlitePingTimeout)
	defer cancel()

	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, unavailable("ping sqlite", err)
	}

	if err = migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

// Register stores endpoint under a new id.
func (r *SQLiteRepository) Register(ctx context.Context, endpoint []byte) (string, error) {
	if len(endpoint) == 0 {
		return "", ErrEmptyEndpoint
	}

	record := domain.Subscription{
		CreatedAt: now(),
		ID:        newID(),
		Endpoint:  endpoint,
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO push_subscriptions(id, endpoint, created_at_ms)
VALUES (?, ?, ?);
`, record.ID, record.Endpoint, record.CreatedAt.UnixMilli())
	if err != nil {
		return "", unavailable("insert subscription", err)
	}

	return record.ID, nil
}

// Exists reports whether id is stored.
func (r *SQLiteRepository) Exists(ctx context.Context, id string) (bool, error) {
	var found int

	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM push_subscriptions WHERE id = ?;", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, unavailable("query subscription", err)
	}

	return true, nil
}

// ListAll returns every stored endpoint.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([][]byte, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT endpoint FROM push_subscriptions;")
	if err != nil {
		return nil, unavailable("list subscriptions", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var result [][]byte

	for rows.Next() {
		var endpoint []byte
		if err = rows.Scan(&endpoint); err != nil {
			return nil, unavailable("scan subscription", err)
		}

		result = append(result, endpoint)
	}

	if err = rows.Err(); err != nil {
		return nil, unavailable("iterate subscriptions", err)
	}

	return result, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// migration is one embedded schema step.
type migration struct {
	version int
	name    string
	sql     string
}

// migrate applies embedded migrations that are not yet recorded in schema_migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version       INTEGER PRIMARY KEY,
  applied_at_ms INTEGER NOT NULL
);`); err != nil {
		return unavailable("ensure schema_migrations", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if err = applyMigration(ctx, db, m); err != nil {
			return err
		}
	}

	return nil
}

// loadMigrations reads and orders the embedded migration files.
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	migrations := make([]migration, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// 0001_push_subscriptions.sql -> 1
		prefix, _, _ := strings.Cut(entry.Name(), "_")

		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("bad migration name %s: %w", entry.Name(), err)
		}

		contents, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, migration{
			version: version,
			name:    entry.Name(),
			sql:     string(contents),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations, nil
}

// applyMigration runs m in a transaction unless it was applied before.
func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	var applied int

	err := db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = ?;", m.version).
		Scan(&applied)
	if err == nil {
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return unavailable("check migration "+m.name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin migration "+m.name, err)
	}

	if _, err = tx.ExecContext(ctx, m.sql); err != nil {
		_ = tx.Rollback()
		return unavailable("apply migration "+m.name, err)
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations(version, applied_at_ms) VALUES (?, ?);",
		m.version, now().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return unavailable("record migration "+m.name, err)
	}

	if err = tx.Commit(); err != nil {
		return unavailable("commit migration "+m.name, err)
	}

	return nil
}
