package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// ConnectionRepository persists [models.ConnectionRecord] rows in SQLite.
//
// It is the token store consumed by the connection registry.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new [ConnectionRepository] with the given database connection
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create inserts a new connection, generating its id when empty
func (r *ConnectionRepository) Create(ctx context.Context, rec *models.ConnectionRecord) error {
	if err := prepareConnection(rec); err != nil {
		return err
	}

	query := `INSERT INTO connections (` + connectionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.UserID, string(rec.Type), rec.ServiceURL, rec.ServiceUserID,
		rec.AccessToken, rec.RefreshToken, nullTime(rec.Expiry), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

// GetConnection retrieves a connection by id
func (r *ConnectionRepository) GetConnection(ctx context.Context, id string) (*models.ConnectionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	rec, err := scanConnection(row)
	if isNoRows(err) {
		return nil, shared.NewNotFoundError("connection", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	return rec, nil
}

// GetConnectionsForUser lists a user's connections in creation order.
//
// An unknown user is a [shared.NotFoundError]; a known user without connections yields an empty slice.
func (r *ConnectionRepository) GetConnectionsForUser(ctx context.Context, userID string) ([]*models.ConnectionRecord, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("user", userID)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	records := []*models.ConnectionRecord{}
	for rows.Next() {
		rec, err := scanConnection(rows)
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

// UpdateTokens stores a refreshed credential
func (r *ConnectionRepository) UpdateTokens(ctx context.Context, id string, update models.TokenUpdate) error {
	query := `
		UPDATE connections
		SET access_token = ?,
			refresh_token = CASE WHEN ? = '' THEN refresh_token ELSE ? END,
			expiry = COALESCE(?, expiry),
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, update.AccessToken, update.RefreshToken, update.RefreshToken,
		nullTime(update.Expiry), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return expectOne(result, "connection", id)
}

// DeleteConnection removes a connection
func (r *ConnectionRepository) DeleteConnection(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return expectOne(result, "connection", id)
}

func expectOne(result sql.Result, resource, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError(resource, id)
	}
	return nil
}
