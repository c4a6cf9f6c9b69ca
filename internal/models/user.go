package models

import "time"

// UserRole represents the available roles for the RBAC system. Community
// members submit edits; admins moderate everything. Members may also
// moderate individual AHJs they are registered maintainers of.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleMember UserRole = "MEMBER"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AHJMaintainer links a user to an AHJ they moderate.
type AHJMaintainer struct {
	ID     int64  `db:"id" json:"id"`
	UserID string `db:"user_id" json:"userId"`
	AHJID  int64  `db:"ahj_id" json:"ahjId"`
	Active bool   `db:"active" json:"active"`
}
