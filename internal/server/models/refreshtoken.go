package models

import "time"

// RefreshToken is one issued refresh credential. Only the hash of the raw
// value is stored. Rotation revokes the old row and inserts a new one.
type RefreshToken struct {
	ID          int64
	UserID      int64
	TokenHash   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
	CreatedByIP string
	UserAgent   string
	DeviceName  string
}

// Valid reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// GeneratedRefreshToken is a freshly minted refresh token. Raw goes to the
// client, Hash goes to the database.
type GeneratedRefreshToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}
