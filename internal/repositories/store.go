package repositories

import (
	"context"
	"database/sql"

	"github.com/eclypsed/lazuli/internal/models"
)

// SQLiteStore combines the SQLite repositories behind the same method set as [PostgresStore].
type SQLiteStore struct {
	*ConnectionRepository
	Users *UserRepository
}

// NewSQLiteStore creates a [SQLiteStore] over one database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{ConnectionRepository: NewConnectionRepository(db), Users: NewUserRepository(db)}
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.Users.Create(ctx, user)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.Users.GetByUsername(ctx, username)
}

func (s *SQLiteStore) CreateConnection(ctx context.Context, rec *models.ConnectionRecord) error {
	return s.ConnectionRepository.Create(ctx, rec)
}
