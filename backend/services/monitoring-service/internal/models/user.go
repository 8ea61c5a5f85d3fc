package models

import "time"

// Account roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User owns devices and sessions.
type User struct {
	ID           int64     `db:"user_id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
