// Package attachments stores card attachment metadata. The bytes themselves
// live in object storage.
package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

// PostgresRepository implements attachment storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.CardAttachment) error {
	query := `
		INSERT INTO card_attachments (id, card_id, file_name, storage_key, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	res, err := r.db.ExecContext(ctx, query, a.ID, a.CardID, a.FileName, a.StorageKey, a.UploadedBy, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, cardID int64, id string) (*models.CardAttachment, error) {
	query := `
		SELECT id, card_id, file_name, storage_key, uploaded_by, created_at
		FROM card_attachments
		WHERE id = $1 AND card_id = $2
	`
	a := &models.CardAttachment{}
	err := r.db.QueryRowContext(ctx, query, id, cardID).Scan(
		&a.ID, &a.CardID, &a.FileName, &a.StorageKey, &a.UploadedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}
