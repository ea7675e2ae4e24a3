package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

const connectionColumns = `id, user_id, type, service_url, service_user_id, access_token, refresh_token, expiry, created_at, updated_at`

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanConnection reads one row selected with connectionColumns.
func scanConnection(row rowScanner) (*models.ConnectionRecord, error) {
	var (
		rec    models.ConnectionRecord
		typ    string
		expiry sql.NullTime
	)

	err := row.Scan(&rec.ID, &rec.UserID, &typ, &rec.ServiceURL, &rec.ServiceUserID,
		&rec.AccessToken, &rec.RefreshToken, &expiry, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Type = models.ServiceType(typ)
	if expiry.Valid {
		rec.Expiry = expiry.Time
	}
	return &rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// prepareConnection assigns an id and timestamps to a new record and validates it.
func prepareConnection(rec *models.ConnectionRecord) error {
	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func prepareUser(user *models.User) error {
	if user.ID == "" {
		user.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func isNoRows(err error, others ...error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	for _, o := range others {
		if errors.Is(err, o) {
			return true
		}
	}
	return false
}
