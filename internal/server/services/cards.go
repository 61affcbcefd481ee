package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/etag"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

// CardService creates, reads, lists, updates and deletes cards within a team.
type CardService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	logger      logging.Logger
}

// NewCardService returns a CardService logging under module=cards.
func NewCardService(db *sql.DB, m repomanager.RepositoryManager, clock timex.Clock, logger logging.Logger) *CardService {
	return &CardService{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      logger.With("module", "cards"),
	}
}

// cardInTeam loads the card and hides cards of other teams as not found.
func cardInTeam(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, teamID, cardID int64) error {
	card, err := m.Cards(db).Get(ctx, cardID)
	if err != nil {
		return err
	}
	if card.TeamID != teamID {
		return fmt.Errorf("%w: card %d", common.ErrorNotFound, cardID)
	}
	return nil
}

// ownerExists maps an unknown owner to common.ErrorNotFound.
func ownerExists(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, ownerID int64) error {
	if _, err := m.Users(tx).FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: owner %d", common.ErrorNotFound, ownerID)
		}
		return err
	}
	return nil
}

func (s *CardService) Create(ctx context.Context, req models.CreateCardRequest) (*models.Card, error) {
	if blank(req.Title) {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}

	owner := req.UserID
	if req.OwnerID != nil {
		owner = *req.OwnerID
	}

	var card *models.Card
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if req.OwnerID != nil {
			if err := ownerExists(ctx, s.repomanager, tx, owner); err != nil {
				return err
			}
		}

		var err error
		card, err = s.repomanager.Cards(tx).Create(ctx, &models.Card{
			TeamID:      req.TeamID,
			Title:       req.Title,
			Description: req.Description,
			Order:       req.Order,
			OwnerID:     owner,
			CreatedBy:   req.UserID,
			CreatedAt:   s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "create card", err)
	}
	return card, nil
}

// Get returns common.ErrorNotFound for cards of other teams.
func (s *CardService) Get(ctx context.Context, teamID, cardID int64) (*models.Card, error) {
	card, err := s.repomanager.Cards(s.db).Get(ctx, cardID)
	if err != nil {
		return nil, logInternal(ctx, s.logger, "get card", err)
	}
	if card.TeamID != teamID {
		return nil, fmt.Errorf("%w: card %d", common.ErrorNotFound, cardID)
	}
	return card, nil
}

// List returns the team's active cards, each with its active labels.
func (s *CardService) List(ctx context.Context, teamID int64) ([]models.Card, error) {
	var cards []models.Card
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if cards, err = s.repomanager.Cards(tx).ListByTeam(ctx, teamID); err != nil {
			return err
		}
		links, err := s.repomanager.Labels(tx).ListForTeamCards(ctx, teamID)
		if err != nil {
			return err
		}

		byCard := make(map[int64][]models.Label, len(cards))
		for _, l := range links {
			byCard[l.CardID] = append(byCard[l.CardID], l.Label)
		}
		for i := range cards {
			cards[i].Labels = byCard[cards[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "list cards", err)
	}
	return cards, nil
}

// Update applies a partial update guarded by ifMatch, the entity tag the
// client last saw. A stale tag yields common.ErrVersionConflict and nothing
// is written. A blank title is ignored rather than stored.
func (s *CardService) Update(ctx context.Context, req models.UpdateCardRequest, ifMatch string) (*models.Card, error) {
	if req.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}
	rowVersion, _, ok := etag.ParseIfMatch(ifMatch)
	if !ok {
		return nil, fmt.Errorf("%w: missing or malformed %s header", common.ErrorValidation, common.IfMatchHeader)
	}

	var updated *models.Card
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Cards(tx)

		current, err := repo.Get(ctx, req.CardID)
		if err != nil {
			return err
		}
		if current.TeamID != req.TeamID {
			return fmt.Errorf("%w: card %d", common.ErrorNotFound, req.CardID)
		}
		if req.OwnerID != nil {
			if err := ownerExists(ctx, s.repomanager, tx, *req.OwnerID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		updated, err = repo.UpdateVersioned(ctx, models.ConcurrencyToken{ID: req.CardID, RowVersion: rowVersion},
			func(c *models.Card) {
				if req.HasTitle() {
					c.Title = *req.Title
				}
				if req.Description != nil {
					c.Description = *req.Description
				}
				if req.Order != nil {
					c.Order = *req.Order
				}
				if req.OwnerID != nil {
					c.OwnerID = *req.OwnerID
				}
				c.UpdatedBy = &req.UserID
				c.UpdatedAt = &now
			})
		return err
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "update card", err)
	}
	return updated, nil
}

// Delete soft-deletes a card of teamID.
func (s *CardService) Delete(ctx context.Context, teamID, cardID, userID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := cardInTeam(ctx, s.repomanager, tx, teamID, cardID); err != nil {
			return err
		}
		return s.repomanager.Cards(tx).SoftDelete(ctx, cardID, userID, s.clock.Now())
	})
	if err != nil {
		return logInternal(ctx, s.logger, "delete card", err)
	}
	s.logger.Info(ctx, "card deleted", "team_id", teamID, "card_id", cardID, "user_id", userID)
	return nil
}
