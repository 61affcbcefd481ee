// Package teams stores teams and their memberships.
package teams

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

// Create inserts an active team.
func (r *PostgresRepository) Create(ctx context.Context, team *models.Team) (*models.Team, error) {
	query := `
		INSERT INTO teams (name, description, created_by, created_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, team.Name, team.Description, team.CreatedBy, team.CreatedAt).Scan(&team.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	team.IsActive = true
	return team, nil
}

const teamColumns = `
	t.id, t.name, t.description, t.created_by, t.created_at, t.updated_by, t.updated_at, t.is_active,
	(SELECT COUNT(*) FROM team_memberships c WHERE c.team_id = t.id)
`

func scanTeam(row interface{ Scan(...any) error }, t *models.Team) error {
	return row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt,
		&t.UpdatedBy, &t.UpdatedAt, &t.IsActive, &t.MemberCount)
}

// Get loads an active team.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Team, error) {
	query := `SELECT ` + teamColumns + `
		FROM teams t
		WHERE t.id = $1 AND t.is_active
	`
	team := &models.Team{}
	if err := scanTeam(r.db.QueryRowContext(ctx, query, id), team); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return team, nil
}

// ListByUser returns the caller's active teams.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]models.Team, error) {
	query := `SELECT ` + teamColumns + `
		FROM teams t
		JOIN team_memberships m ON m.team_id = t.id
		WHERE m.user_id = $1 AND t.is_active
		ORDER BY t.name, t.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if err := scanTeam(rows, &t); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// Update writes the editable columns of an active team.
func (r *PostgresRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams
		SET name = $2, description = $3, updated_by = $4, updated_at = $5
		WHERE id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, team.ID, team.Name, team.Description, team.UpdatedBy, team.UpdatedAt)
	return expectOneRow(res, err)
}

// SoftDelete marks an active team deleted.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id, by int64, at time.Time) error {
	query := `
		UPDATE teams
		SET is_active = FALSE, deleted_by = $2, deleted_at = $3
		WHERE id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, id, by, at)
	return expectOneRow(res, err)
}

// AddMember inserts a membership row.
func (r *PostgresRepository) AddMember(ctx context.Context, m *models.TeamMembership) error {
	query := `
		INSERT INTO team_memberships (team_id, user_id, role, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, m.TeamID, m.UserID, string(m.Role), m.CreatedBy, m.CreatedAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetRole reads one membership of an active team.
func (r *PostgresRepository) GetRole(ctx context.Context, teamID, userID int64) (models.TeamRole, error) {
	query := `
		SELECT m.role
		FROM team_memberships m
		JOIN teams t ON t.id = m.team_id
		WHERE m.team_id = $1 AND m.user_id = $2 AND t.is_active
	`
	var role string
	if err := r.db.QueryRowContext(ctx, query, teamID, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return models.TeamRole(role), nil
}

// ListMembers joins memberships with users.
func (r *PostgresRepository) ListMembers(ctx context.Context, teamID int64) ([]models.TeamMember, error) {
	query := `
		SELECT m.team_id, m.user_id, u.display_name, u.email, m.role, m.created_at
		FROM team_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1
		ORDER BY m.created_at, m.user_id
	`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.TeamMember, 0)
	for rows.Next() {
		var m models.TeamMember
		var role string
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.DisplayName, &m.Email, &role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		m.Role = models.TeamRole(role)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// UpdateRole rewrites one membership's role.
func (r *PostgresRepository) UpdateRole(ctx context.Context, teamID, userID int64, role models.TeamRole) error {
	query := `
		UPDATE team_memberships
		SET role = $3
		WHERE team_id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, teamID, userID, string(role))
	return expectOneRow(res, err)
}

// RemoveMember deletes one membership.
func (r *PostgresRepository) RemoveMember(ctx context.Context, teamID, userID int64) error {
	query := `
		DELETE FROM team_memberships
		WHERE team_id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, teamID, userID)
	return expectOneRow(res, err)
}

// expectOneRow maps an exec result that touched nothing to
// common.ErrorNotFound.
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
