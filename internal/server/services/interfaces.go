// Package services contains server-side business logic. Every operation runs
// as one unit of work inside dbx.WithTx.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

// PasswordHasher is implemented by cryptox.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, []byte, error)
	Verify(hash, candidate string, salt []byte) (bool, error)
}

// TokenIssuer is implemented by auth.TokenIssuer.
type TokenIssuer interface {
	IssueAccessToken(user *models.User) (string, time.Time, error)
	IssueRefreshToken() (*models.GeneratedRefreshToken, error)
	Hash(raw string) string
}

// logInternal logs errors outside the known taxonomy and passes err through.
func logInternal(ctx context.Context, logger logging.Logger, op string, err error) error {
	if common.KindOf(err) == common.KindInternal {
		logger.Error(ctx, op+" failed", "error", err)
	}
	return err
}
