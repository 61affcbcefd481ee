package labels

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository binds a repository to db (*sql.DB or *sql.Tx).
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const labelColumns = `
	l.id, l.team_id, l.name, l.normalized_name, l.color_hex, l.created_by, l.created_at,
	l.updated_by, l.updated_at, l.is_active
`

func scanLabel(row interface{ Scan(...any) error }, l *models.Label, extra ...any) error {
	dest := append([]any{
		&l.ID, &l.TeamID, &l.Name, &l.NormalizedName, &l.ColorHex, &l.CreatedBy, &l.CreatedAt,
		&l.UpdatedBy, &l.UpdatedAt, &l.IsActive,
	}, extra...)
	return row.Scan(dest...)
}

func (r *PostgresRepository) Create(ctx context.Context, label *models.Label) (*models.Label, error) {
	query := `
		INSERT INTO labels (team_id, name, normalized_name, color_hex, created_by, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		label.TeamID, label.Name, label.NormalizedName, label.ColorHex, label.CreatedBy, label.CreatedAt,
	).Scan(&label.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	label.IsActive = true
	return label, nil
}

func (r *PostgresRepository) Get(ctx context.Context, teamID, id int64) (*models.Label, error) {
	query := `SELECT ` + labelColumns + `
		FROM labels l
		WHERE l.id = $1 AND l.team_id = $2 AND l.is_active
	`
	label := &models.Label{}
	if err := scanLabel(r.db.QueryRowContext(ctx, query, id, teamID), label); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return label, nil
}

func (r *PostgresRepository) ListByTeam(ctx context.Context, teamID int64) ([]models.Label, error) {
	query := `SELECT ` + labelColumns + `
		FROM labels l
		WHERE l.team_id = $1 AND l.is_active
		ORDER BY l.name, l.id
	`
	return r.list(ctx, query, teamID)
}

func (r *PostgresRepository) ListForCard(ctx context.Context, cardID int64) ([]models.Label, error) {
	query := `SELECT ` + labelColumns + `
		FROM card_labels cl
		JOIN labels l ON l.id = cl.label_id
		WHERE cl.card_id = $1 AND l.is_active
		ORDER BY l.name, l.id
	`
	return r.list(ctx, query, cardID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg int64) ([]models.Label, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Label, 0)
	for rows.Next() {
		var l models.Label
		if err := scanLabel(rows, &l); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListForTeamCards(ctx context.Context, teamID int64) ([]models.CardLabelLink, error) {
	query := `SELECT ` + labelColumns + `, cl.card_id
		FROM card_labels cl
		JOIN labels l ON l.id = cl.label_id
		JOIN cards c ON c.id = cl.card_id
		WHERE c.team_id = $1 AND c.is_active AND l.is_active
		ORDER BY cl.card_id, l.name, l.id
	`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.CardLabelLink, 0)
	for rows.Next() {
		var link models.CardLabelLink
		if err := scanLabel(rows, &link.Label, &link.CardID); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, label *models.Label) error {
	query := `
		UPDATE labels
		SET name = $3, normalized_name = $4, color_hex = $5, updated_by = $6, updated_at = $7
		WHERE id = $1 AND team_id = $2 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, label.ID, label.TeamID,
		label.Name, label.NormalizedName, label.ColorHex, label.UpdatedBy, label.UpdatedAt)
	if err != nil && dbx.IsUniqueViolation(err) {
		return common.ErrorAlreadyExists
	}
	return expectOneRow(res, err)
}

func (r *PostgresRepository) InUse(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM card_labels WHERE label_id = $1)`
	var used bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&used); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return used, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id, by int64, at time.Time) error {
	query := `
		UPDATE labels
		SET is_active = FALSE, deleted_by = $2, deleted_at = $3
		WHERE id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, id, by, at)
	return expectOneRow(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM labels WHERE id = $1`, id)
	return expectOneRow(res, err)
}

func (r *PostgresRepository) Attach(ctx context.Context, cardID, labelID int64) error {
	query := `
		INSERT INTO card_labels (card_id, label_id)
		VALUES ($1, $2)
		ON CONFLICT (card_id, label_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, cardID, labelID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Detach(ctx context.Context, cardID, labelID int64) error {
	query := `
		DELETE FROM card_labels
		WHERE card_id = $1 AND label_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, cardID, labelID)
	return expectOneRow(res, err)
}

func expectOneRow(res sql.Result, err error) error {
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
