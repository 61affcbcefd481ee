package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

const (
	maxLabelName  = 100
	maxLabelColor = 32
)

var colorPattern = regexp.MustCompile(`^#([0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

// NormalizeLabelName is the per-team uniqueness key of a label name:
// trimmed, lower-cased, spaces replaced by underscores.
func NormalizeLabelName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// DefaultLabelColor derives a stable color from the first character of
// name, so labels starting with the same letter share a color.
func DefaultLabelColor(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	sum := sha256.Sum256([]byte(string(r)))
	return fmt.Sprintf("#%02X%02X%02X", sum[0], sum[1], sum[2])
}

func validateLabel(in models.LabelInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: label name is required", common.ErrorValidation)
	}
	if utf8.RuneCountInString(name) > maxLabelName {
		return fmt.Errorf("%w: label name exceeds %d characters", common.ErrorValidation, maxLabelName)
	}
	if c := strings.TrimSpace(in.Color); c != "" && (len(c) > maxLabelColor || !colorPattern.MatchString(c)) {
		return fmt.Errorf("%w: invalid color %q", common.ErrorValidation, in.Color)
	}
	return nil
}

// LabelService manages a team's labels and which cards carry them.
type LabelService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	logger      logging.Logger
}

func NewLabelService(db *sql.DB, m repomanager.RepositoryManager, clock timex.Clock, logger logging.Logger) *LabelService {
	return &LabelService{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      logger.With("module", "labels"),
	}
}

// Add creates the labels of a batch that do not exist yet. Names already
// taken in the team are reported under Existing and left untouched.
func (s *LabelService) Add(ctx context.Context, teamID, userID int64, inputs []models.LabelInput) (*models.AddLabelsResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one label is required", common.ErrorValidation)
	}
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if err := validateLabel(in); err != nil {
			return nil, err
		}
		key := NormalizeLabelName(in.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q in request", common.ErrorValidation, in.Name)
		}
		seen[key] = struct{}{}
	}

	result := &models.AddLabelsResult{Added: []models.Label{}, Existing: []models.Label{}}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Labels(tx)

		current, err := repo.ListByTeam(ctx, teamID)
		if err != nil {
			return err
		}
		byName := make(map[string]models.Label, len(current))
		for _, l := range current {
			byName[l.NormalizedName] = l
		}

		now := s.clock.Now()
		for _, in := range inputs {
			key := NormalizeLabelName(in.Name)
			if l, ok := byName[key]; ok {
				result.Existing = append(result.Existing, l)
				continue
			}
			color := strings.TrimSpace(in.Color)
			if color == "" {
				color = DefaultLabelColor(in.Name)
			}
			created, err := repo.Create(ctx, &models.Label{
				TeamID:         teamID,
				Name:           strings.TrimSpace(in.Name),
				NormalizedName: key,
				ColorHex:       color,
				CreatedBy:      userID,
				CreatedAt:      now,
			})
			if err != nil {
				if errors.Is(err, common.ErrorAlreadyExists) {
					return fmt.Errorf("%w: label %q", common.ErrorAlreadyExists, in.Name)
				}
				return err
			}
			result.Added = append(result.Added, *created)
		}
		return nil
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "add labels", err)
	}
	s.logger.Info(ctx, "labels added", "team_id", teamID, "added", len(result.Added), "existing", len(result.Existing))
	return result, nil
}

func (s *LabelService) List(ctx context.Context, teamID int64) ([]models.Label, error) {
	labels, err := s.repomanager.Labels(s.db).ListByTeam(ctx, teamID)
	if err != nil {
		return nil, logInternal(ctx, s.logger, "list labels", err)
	}
	return labels, nil
}

// Update renames a label and, when in.Color is set, recolors it.
func (s *LabelService) Update(ctx context.Context, teamID, labelID, userID int64, in models.LabelInput) (*models.Label, error) {
	if err := validateLabel(in); err != nil {
		return nil, err
	}

	var label *models.Label
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Labels(tx)

		var err error
		if label, err = repo.Get(ctx, teamID, labelID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: label %d", common.ErrorNotFound, labelID)
			}
			return err
		}

		now := s.clock.Now()
		label.Name = strings.TrimSpace(in.Name)
		label.NormalizedName = NormalizeLabelName(in.Name)
		if c := strings.TrimSpace(in.Color); c != "" {
			label.ColorHex = c
		}
		label.UpdatedBy, label.UpdatedAt = &userID, &now

		if err := repo.Update(ctx, label); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return fmt.Errorf("%w: label %q", common.ErrorAlreadyExists, in.Name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "update label", err)
	}
	return label, nil
}

// Delete removes a label. A label some card still carries is retired
// instead, so the card keeps its history.
func (s *LabelService) Delete(ctx context.Context, teamID, labelID, userID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Labels(tx)

		if _, err := repo.Get(ctx, teamID, labelID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: label %d", common.ErrorNotFound, labelID)
			}
			return err
		}
		used, err := repo.InUse(ctx, labelID)
		if err != nil {
			return err
		}
		if used {
			return repo.SoftDelete(ctx, labelID, userID, s.clock.Now())
		}
		return repo.Delete(ctx, labelID)
	})
	if err != nil {
		return logInternal(ctx, s.logger, "delete label", err)
	}
	return nil
}

// CardLabels lists the active labels on a card of teamID.
func (s *LabelService) CardLabels(ctx context.Context, teamID, cardID int64) ([]models.Label, error) {
	var labels []models.Label
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := cardInTeam(ctx, s.repomanager, tx, teamID, cardID); err != nil {
			return err
		}
		var err error
		labels, err = s.repomanager.Labels(tx).ListForCard(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "card labels", err)
	}
	return labels, nil
}

// AttachToCard puts labels on a card and returns the card's labels
// afterwards. Every label must belong to teamID; labels already on the card
// are skipped.
func (s *LabelService) AttachToCard(ctx context.Context, teamID, cardID int64, labelIDs []int64) ([]models.Label, error) {
	if len(labelIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one label id is required", common.ErrorValidation)
	}

	var labels []models.Label
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := cardInTeam(ctx, s.repomanager, tx, teamID, cardID); err != nil {
			return err
		}
		repo := s.repomanager.Labels(tx)

		seen := make(map[int64]struct{}, len(labelIDs))
		for _, id := range labelIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			if _, err := repo.Get(ctx, teamID, id); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return fmt.Errorf("%w: label %d", common.ErrorNotFound, id)
				}
				return err
			}
			if err := repo.Attach(ctx, cardID, id); err != nil {
				return err
			}
		}

		var err error
		labels, err = repo.ListForCard(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "attach labels", err)
	}
	return labels, nil
}

func (s *LabelService) DetachFromCard(ctx context.Context, teamID, cardID, labelID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := cardInTeam(ctx, s.repomanager, tx, teamID, cardID); err != nil {
			return err
		}
		if err := s.repomanager.Labels(tx).Detach(ctx, cardID, labelID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: label %d on card %d", common.ErrorNotFound, labelID, cardID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return logInternal(ctx, s.logger, "detach label", err)
	}
	return nil
}
