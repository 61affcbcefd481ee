package teams

import (
	"context"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type Repository interface {
	// Create inserts team and fills in its ID.
	Create(ctx context.Context, team *models.Team) (*models.Team, error)
	// Get returns an active team with its member count or common.ErrorNotFound.
	Get(ctx context.Context, id int64) (*models.Team, error)
	// ListByUser returns the active teams userID belongs to, ordered by name.
	ListByUser(ctx context.Context, userID int64) ([]models.Team, error)
	// Update writes name, description and the updated_* stamp of an active
	// team. A missing or deleted team is common.ErrorNotFound.
	Update(ctx context.Context, team *models.Team) error
	// SoftDelete deactivates a team. Memberships are kept.
	SoftDelete(ctx context.Context, id, by int64, at time.Time) error

	// AddMember inserts a membership. An existing (team, user) pair is
	// common.ErrorAlreadyExists.
	AddMember(ctx context.Context, m *models.TeamMembership) error
	// GetRole returns the user's role in an active team or common.ErrorNotFound.
	GetRole(ctx context.Context, teamID, userID int64) (models.TeamRole, error)
	// ListMembers returns members with their profiles, oldest first.
	ListMembers(ctx context.Context, teamID int64) ([]models.TeamMember, error)
	// UpdateRole changes a member's role or returns common.ErrorNotFound.
	UpdateRole(ctx context.Context, teamID, userID int64, role models.TeamRole) error
	// RemoveMember deletes a membership or returns common.ErrorNotFound.
	RemoveMember(ctx context.Context, teamID, userID int64) error
}
