package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq" // Registers the "postgres" database/sql driver.
)

// postgresPingTimeout bounds the connectivity check performed by OpenPostgres.
const postgresPingTimeout = 3 * time.Second

// postgresSchema creates the subscriptions table on first start.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS push_subscriptions (
  id         TEXT PRIMARY KEY,
  endpoint   BYTEA NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);`

// PostgresRepository persists subscriptions in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres connects using dsn and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, unavailable("open postgres", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()

	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, unavailable("ping postgres", err)
	}

	repo := NewPostgresRepository(db)
	if err = repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

// EnsureSchema creates the subscriptions table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return unavailable("ensure schema", err)
	}

	return nil
}

// Register stores endpoint under a new id.
func (r *PostgresRepository) Register(ctx context.Context, endpoint []byte) (string, error) {
	if len(endpoint) == 0 {
		return "", ErrEmptyEndpoint
	}

	id := newID()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO push_subscriptions (id, endpoint, created_at) VALUES ($1, $2, $3)",
		id, endpoint, now(),
	)
	if err != nil {
		return "", unavailable("insert subscription", err)
	}

	return id, nil
}

// Exists reports whether id is stored.
func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	var found int

	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM push_subscriptions WHERE id = $1", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, unavailable("query subscription", err)
	}

	return true, nil
}

// ListAll returns every stored endpoint.
func (r *PostgresRepository) ListAll(ctx context.Context) ([][]byte, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT endpoint FROM push_subscriptions")
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
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
