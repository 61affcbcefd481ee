// Package cards provides the PostgreSQL-backed card store, including the
// optimistic conditional update keyed on the row version.
package cards

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

// PostgresRepository implements card storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// The row version is a bigint counter in the table. Outside this package it
// is an opaque 8-byte big-endian value.
func encodeRowVersion(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func decodeRowVersion(b []byte) (int64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}

// Create inserts an active card at row version 1.
func (r *PostgresRepository) Create(ctx context.Context, card *models.Card) (*models.Card, error) {
	query := `
		INSERT INTO cards (team_id, title, description, sort_order, owner_id, created_by, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, row_version
	`
	var version int64
	err := r.db.QueryRowContext(ctx, query,
		card.TeamID, card.Title, card.Description, card.Order, card.OwnerID, card.CreatedBy, card.CreatedAt,
	).Scan(&card.ID, &version)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	card.IsActive = true
	card.RowVersion = encodeRowVersion(version)
	return card, nil
}

const cardColumns = `
	id, team_id, title, description, sort_order, owner_id, created_by, created_at,
	updated_by, updated_at, is_active, row_version
`

func scanCard(row interface{ Scan(...any) error }) (*models.Card, error) {
	card := &models.Card{}
	var version int64
	err := row.Scan(
		&card.ID, &card.TeamID, &card.Title, &card.Description, &card.Order, &card.OwnerID,
		&card.CreatedBy, &card.CreatedAt, &card.UpdatedBy, &card.UpdatedAt, &card.IsActive, &version,
	)
	if err != nil {
		return nil, err
	}
	card.RowVersion = encodeRowVersion(version)
	return card, nil
}

// Get loads an active card; deleted cards are common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM cards
		WHERE id = $1 AND is_active
	`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return card, nil
}

// ListByTeam returns a team's active cards in board order.
func (r *PostgresRepository) ListByTeam(ctx context.Context, teamID int64) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM cards
		WHERE team_id = $1 AND is_active
		ORDER BY sort_order, id
	`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// SoftDelete deactivates a card and bumps its row version so outstanding
// entity tags stop matching.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id, by int64, at time.Time) error {
	query := `
		UPDATE cards
		SET is_active = FALSE, deleted_by = $2, deleted_at = $3, row_version = row_version + 1
		WHERE id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, id, by, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// UpdateVersioned loads the card, applies mutate and writes the result back
// guarded by the caller's row version. A missing card is common.ErrorNotFound;
// a row version that no longer matches is common.ErrVersionConflict. The
// caller is expected to run this inside a transaction.
func (r *PostgresRepository) UpdateVersioned(ctx context.Context, token models.ConcurrencyToken, mutate func(*models.Card)) (*models.Card, error) {
	card, err := r.Get(ctx, token.ID)
	if err != nil {
		return nil, err
	}

	expected, ok := decodeRowVersion(token.RowVersion)
	if !ok {
		// cannot match any stored version
		return nil, common.ErrVersionConflict
	}

	mutate(card)

	query := `
		UPDATE cards SET
			title = $3,
			description = $4,
			sort_order = $5,
			owner_id = $6,
			updated_by = $7,
			updated_at = $8,
			row_version = row_version + 1
		WHERE id = $1 AND row_version = $2 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query,
		token.ID, expected, card.Title, card.Description, card.Order, card.OwnerID, card.UpdatedBy, card.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		card.RowVersion = encodeRowVersion(expected + 1)
		return card, nil
	case 0:
		return nil, common.ErrVersionConflict
	default:
		return nil, fmt.Errorf("unexpected rows affected: %d", n)
	}
}
