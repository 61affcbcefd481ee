// Package models defines server-side data models persisted in the database
// and the request/response values the services exchange with transports.
package models

import "time"

// User is an account. Email is stored normalized (trimmed, lowercase).
// Users are never physically deleted; IsActive is the soft-delete flag.
type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	Salt           []byte
	DisplayName    string
	EmailConfirmed bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// UserProfile is the public view of a User.
type UserProfile struct {
	ID             int64     `json:"id"`
	DisplayName    string    `json:"displayName"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (u *User) Profile() *UserProfile {
	return &UserProfile{
		ID:             u.ID,
		DisplayName:    u.DisplayName,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmed,
		CreatedAt:      u.CreatedAt,
	}
}
