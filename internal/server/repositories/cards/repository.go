package cards

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type Repository interface {
	// Create inserts card and fills in ID and RowVersion.
	Create(ctx context.Context, card *models.Card) (*models.Card, error)
	// Get returns an active card or common.ErrorNotFound.
	Get(ctx context.Context, id int64) (*models.Card, error)
	// ListByTeam returns the active cards of a team ordered by sort order.
	ListByTeam(ctx context.Context, teamID int64) ([]models.Card, error)
	// SoftDelete deactivates an active card or returns common.ErrorNotFound.
	SoftDelete(ctx context.Context, id, by int64, at time.Time) error
	// UpdateVersioned applies mutate to the card named by token and writes it
	// only if the stored row version still equals token.RowVersion.
	UpdateVersioned(ctx context.Context, token models.ConcurrencyToken, mutate func(*models.Card)) (*models.Card, error)
}
