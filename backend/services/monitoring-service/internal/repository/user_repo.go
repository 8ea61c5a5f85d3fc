package repository

import (
	"context"
	"database/sql"
	"errors"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

// UserRepository stores accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository returns repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUsername loads an account by login name.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT user_id, username, password_hash, email, full_name, role, is_active, created_at
		FROM users
		WHERE username = $1
	`
	var u models.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Email,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every account, newest first.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT user_id, username, password_hash, email, full_name, role, is_active, created_at
		FROM users
		ORDER BY created_at DESC, user_id DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.PasswordHash,
			&u.Email,
			&u.FullName,
			&u.Role,
			&u.IsActive,
			&u.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a new account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (username, password_hash, email, full_name, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		RETURNING user_id, is_active, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.FullName,
		user.Role,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	return err
}
