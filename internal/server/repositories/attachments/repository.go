package attachments

import (
	"context"

	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.CardAttachment) error
	// Get returns the attachment only when it belongs to cardID, otherwise
	// common.ErrorNotFound.
	Get(ctx context.Context, cardID int64, id string) (*models.CardAttachment, error)
}
