package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/inspect-ops/internal/models"
)

// UserRepo persists API users.
type UserRepo struct {
	DB *sql.DB
}

// NewUserRepo returns a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

// Create inserts a user. passwordHash may be empty for viewer accounts.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash, role string) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, role
	`
	u := &models.User{}
	err := r.DB.QueryRowContext(ctx, query, username, passwordHash, role).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByUsername returns one user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, role
		FROM users
		WHERE username = $1
	`
	u := &models.User{}
	err := r.DB.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if err != nil {
		return nil, err
	}
	return u, nil
}
