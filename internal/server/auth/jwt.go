// Package auth issues and validates access tokens and mints refresh tokens.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/cryptox"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

// RefreshTokenSize is the number of random bytes behind a raw refresh token.
const RefreshTokenSize = 64

// Claims carries the user identity inside an access token. The user id is
// the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
	Email          string `json:"email"`
	DisplayName    string `json:"name"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", common.ErrInvalidToken)
	}
	return id, nil
}

// Options configures token signing. SigningKey is the HS256 secret; tokens
// carry Issuer and Audience and are rejected when either does not match.
type Options struct {
	SigningKey      []byte
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TokenIssuer is stateless apart from its configuration and clock.
type TokenIssuer struct {
	opts  Options
	clock timex.Clock
}

// NewTokenIssuer returns an issuer reading time from clock.
func NewTokenIssuer(opts Options, clock timex.Clock) *TokenIssuer {
	return &TokenIssuer{opts: opts, clock: clock}
}

// IssueAccessToken signs an HS256 token for user valid until now+AccessTokenTTL.
func (i *TokenIssuer) IssueAccessToken(user *models.User) (string, time.Time, error) {
	now := i.clock.Now()
	expiresAt := now.Add(i.opts.AccessTokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    i.opts.Issuer,
			Audience:  jwt.ClaimStrings{i.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		EmailConfirmed: user.EmailConfirmed,
	})

	signed, err := token.SignedString(i.opts.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken returns 64 random bytes, base64 encoded, with their hash.
func (i *TokenIssuer) IssueRefreshToken() (*models.GeneratedRefreshToken, error) {
	b, err := cryptox.RandomBytes(RefreshTokenSize)
	if err != nil {
		return nil, err
	}
	raw := base64.StdEncoding.EncodeToString(b)
	return &models.GeneratedRefreshToken{
		Raw:       raw,
		Hash:      i.Hash(raw),
		ExpiresAt: i.clock.Now().Add(i.opts.RefreshTokenTTL),
	}, nil
}

// Hash is the base64 SHA-256 digest used to store and look up refresh tokens.
func (i *TokenIssuer) Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ParseAccessToken validates signature, expiry, issuer and audience.
// Expired tokens yield common.ErrTokenExpired, anything else invalid yields
// common.ErrInvalidToken.
func (i *TokenIssuer) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.opts.SigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.opts.Issuer),
		jwt.WithAudience(i.opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
