// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

// ErrAlreadyRevoked is returned by Revoke when the token was revoked by
// someone else between the caller's read and its write.
var ErrAlreadyRevoked = errors.New("refresh token already revoked")

// Repository stores refresh tokens by hash. Rows are never deleted: a used
// token is revoked and kept for audit.
type Repository interface {
	// Create inserts token and fills in its ID.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash looks a token up by the hash of its raw value.
	// Implementations return common.ErrorNotFound when the hash is unknown.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Revoke marks token id as revoked at the given time. Only an unrevoked
	// row is changed; otherwise ErrAlreadyRevoked is returned.
	Revoke(ctx context.Context, id int64, at time.Time) error
}
