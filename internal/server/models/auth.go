package models

import "time"

// Provenance describes where a refresh token was requested from. It is
// recorded for audit and never compared.
type Provenance struct {
	IPAddress  string
	UserAgent  string
	DeviceName string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Provenance `json:"-"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Provenance `json:"-"`
}

type TokenResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}
