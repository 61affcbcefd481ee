// Package labels stores team labels and their attachment to cards.
package labels

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type Repository interface {
	// Create inserts an active label. A live label with the same normalized
	// name in the team is common.ErrorAlreadyExists.
	Create(ctx context.Context, label *models.Label) (*models.Label, error)
	// Get returns an active label of teamID or common.ErrorNotFound.
	Get(ctx context.Context, teamID, id int64) (*models.Label, error)
	// ListByTeam returns the active labels of a team ordered by name.
	ListByTeam(ctx context.Context, teamID int64) ([]models.Label, error)
	// Update writes name, normalized name, color and the updated_* stamp.
	Update(ctx context.Context, label *models.Label) error
	// InUse reports whether any card carries the label.
	InUse(ctx context.Context, id int64) (bool, error)
	// SoftDelete retires a label that cards still reference.
	SoftDelete(ctx context.Context, id, by int64, at time.Time) error
	// Delete removes an unreferenced label.
	Delete(ctx context.Context, id int64) error

	// ListForCard returns the active labels on a card.
	ListForCard(ctx context.Context, cardID int64) ([]models.Label, error)
	// ListForTeamCards returns every (card, active label) pair of a team's
	// active cards.
	ListForTeamCards(ctx context.Context, teamID int64) ([]models.CardLabelLink, error)
	// Attach links a label to a card. Linking twice is a no-op.
	Attach(ctx context.Context, cardID, labelID int64) error
	// Detach unlinks a label from a card or returns common.ErrorNotFound.
	Detach(ctx context.Context, cardID, labelID int64) error
}
