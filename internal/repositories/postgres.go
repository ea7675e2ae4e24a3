package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// PgxOps is the subset of [pgxpool.Pool] the store uses, so tests can inject a mock.
type PgxOps interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the token store backed by PostgreSQL.
type PostgresStore struct {
	db PgxOps
}

// NewPostgresStore wraps a pool or any [PgxOps].
func NewPostgresStore(db PgxOps) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to url and checks it is reachable.
func OpenPostgres(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the users and connections tables when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS connections (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL CHECK (type IN ('jellyfin', 'youtube-music')),
			service_url TEXT NOT NULL DEFAULT '',
			service_user_id TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			expiry TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_user_id ON connections(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user, generating its id when empty.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := prepareUser(user); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, `INSERT INTO users (id, username, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Username, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CreateConnection inserts a new connection, generating its id when empty.
func (s *PostgresStore) CreateConnection(ctx context.Context, rec *models.ConnectionRecord) error {
	if err := prepareConnection(rec); err != nil {
		return err
	}

	var expiry *time.Time
	if !rec.Expiry.IsZero() {
		expiry = &rec.Expiry
	}

	_, err := s.db.Exec(ctx, `INSERT INTO connections (`+connectionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.UserID, string(rec.Type), rec.ServiceURL, rec.ServiceUserID,
		rec.AccessToken, rec.RefreshToken, expiry, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

func scanPgConnection(row pgx.Row) (*models.ConnectionRecord, error) {
	var (
		rec    models.ConnectionRecord
		typ    string
		expiry *time.Time
	)

	err := row.Scan(&rec.ID, &rec.UserID, &typ, &rec.ServiceURL, &rec.ServiceUserID,
		&rec.AccessToken, &rec.RefreshToken, &expiry, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Type = models.ServiceType(typ)
	if expiry != nil {
		rec.Expiry = *expiry
	}
	return &rec, nil
}

// GetConnection retrieves a connection by id.
func (s *PostgresStore) GetConnection(ctx context.Context, id string) (*models.ConnectionRecord, error) {
	rec, err := scanPgConnection(s.db.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id))
	if isNoRows(err, pgx.ErrNoRows) {
		return nil, shared.NewNotFoundError("connection", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	return rec, nil
}

// GetConnectionsForUser lists a user's connections in creation order.
func (s *PostgresStore) GetConnectionsForUser(ctx context.Context, userID string) ([]*models.ConnectionRecord, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("user", userID)
	}

	rows, err := s.db.Query(ctx, `SELECT `+connectionColumns+` FROM connections WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	records := []*models.ConnectionRecord{}
	for rows.Next() {
		rec, err := scanPgConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// UpdateTokens stores a refreshed credential.
func (s *PostgresStore) UpdateTokens(ctx context.Context, id string, update models.TokenUpdate) error {
	var expiry *time.Time
	if !update.Expiry.IsZero() {
		expiry = &update.Expiry
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE connections
		SET access_token = $1,
			refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
			expiry = COALESCE($3, expiry),
			updated_at = now()
		WHERE id = $4`, update.AccessToken, update.RefreshToken, expiry, id)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("connection", id)
	}
	return nil
}

// DeleteConnection removes a connection.
func (s *PostgresStore) DeleteConnection(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("connection", id)
	}
	return nil
}

// GetUserByUsername retrieves a user by its unique username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, `SELECT id, username, created_at, updated_at FROM users WHERE username = $1`, username).
		Scan(&user.ID, &user.Username, &user.CreatedAt, &user.UpdatedAt)
	if isNoRows(err, pgx.ErrNoRows) {
		return nil, shared.NewNotFoundError("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}
