package domain

import "time"

// User is an API principal. Passwords are stored as bcrypt hashes.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)
