package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

const roleCacheSize = 10_000

type roleKey struct {
	userID int64
	teamID int64
}

// TeamAuthorizer answers "what role does this user have in this team" through
// a process-local cache. Entries may be stale for up to the cache TTL.
type TeamAuthorizer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       *expirable.LRU[roleKey, models.TeamRole]
}

// NewTeamAuthorizer caches up to 10k roles, each for ttl.
func NewTeamAuthorizer(db *sql.DB, m repomanager.RepositoryManager, ttl time.Duration) *TeamAuthorizer {
	return &TeamAuthorizer{
		db:          db,
		repomanager: m,
		cache:       expirable.NewLRU[roleKey, models.TeamRole](roleCacheSize, nil, ttl),
	}
}

// Role returns common.ErrorNotFound when the user is not a member. Misses are
// not cached.
func (a *TeamAuthorizer) Role(ctx context.Context, userID, teamID int64) (models.TeamRole, error) {
	key := roleKey{userID: userID, teamID: teamID}
	if role, ok := a.cache.Get(key); ok {
		return role, nil
	}

	role, err := a.repomanager.Teams(a.db).GetRole(ctx, teamID, userID)
	if err != nil {
		return "", err
	}
	a.cache.Add(key, role)
	return role, nil
}

// Require fails with common.ErrorNotFound for non-members and
// common.ErrorForbidden when the member's role ranks below min.
func (a *TeamAuthorizer) Require(ctx context.Context, userID, teamID int64, min models.TeamRole) error {
	role, err := a.Role(ctx, userID, teamID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: team %d", common.ErrorNotFound, teamID)
		}
		return err
	}
	if !role.AtLeast(min) {
		return fmt.Errorf("%w: %s role required", common.ErrorForbidden, min)
	}
	return nil
}

// Invalidate drops the cached role for (userID, teamID).
func (a *TeamAuthorizer) Invalidate(userID, teamID int64) {
	a.cache.Remove(roleKey{userID: userID, teamID: teamID})
}

// InvalidateTeam drops every cached role in teamID.
func (a *TeamAuthorizer) InvalidateTeam(teamID int64) {
	for _, key := range a.cache.Keys() {
		if key.teamID == teamID {
			a.cache.Remove(key)
		}
	}
}

// TeamService manages teams and memberships. Every membership change drops
// the affected cached roles.
type TeamService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	authorizer  *TeamAuthorizer
	clock       timex.Clock
	logger      logging.Logger
}

func NewTeamService(db *sql.DB, m repomanager.RepositoryManager, authorizer *TeamAuthorizer,
	clock timex.Clock, logger logging.Logger) *TeamService {
	return &TeamService{
		db:          db,
		repomanager: m,
		authorizer:  authorizer,
		clock:       clock,
		logger:      logger.With("module", "teams"),
	}
}

const (
	maxTeamName        = 200
	maxTeamDescription = 500
)

func validateTeam(name, description string) error {
	if blank(name) {
		return fmt.Errorf("%w: team name is required", common.ErrorValidation)
	}
	if utf8.RuneCountInString(name) > maxTeamName {
		return fmt.Errorf("%w: team name exceeds %d characters", common.ErrorValidation, maxTeamName)
	}
	if utf8.RuneCountInString(description) > maxTeamDescription {
		return fmt.Errorf("%w: description exceeds %d characters", common.ErrorValidation, maxTeamDescription)
	}
	return nil
}

// Create makes a team with userID as its Owner.
func (s *TeamService) Create(ctx context.Context, userID int64, name, description string) (*models.Team, error) {
	if err := validateTeam(name, description); err != nil {
		return nil, err
	}

	var team *models.Team
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Teams(tx)
		now := s.clock.Now()

		var err error
		team, err = repo.Create(ctx, &models.Team{Name: name, Description: description, CreatedBy: userID, CreatedAt: now})
		if err != nil {
			return err
		}
		team.MemberCount = 1
		return repo.AddMember(ctx, &models.TeamMembership{
			TeamID: team.ID, UserID: userID, Role: models.RoleOwner, CreatedBy: &userID, CreatedAt: now,
		})
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "create team", err)
	}
	s.logger.Info(ctx, "team created", "team_id", team.ID, "user_id", userID)
	return team, nil
}

// ListMine returns the active teams userID belongs to.
func (s *TeamService) ListMine(ctx context.Context, userID int64) ([]models.Team, error) {
	teams, err := s.repomanager.Teams(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, logInternal(ctx, s.logger, "list teams", err)
	}
	return teams, nil
}

func (s *TeamService) Get(ctx context.Context, teamID int64) (*models.Team, error) {
	team, err := s.repomanager.Teams(s.db).Get(ctx, teamID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: team %d", common.ErrorNotFound, teamID)
		}
		return nil, logInternal(ctx, s.logger, "get team", err)
	}
	return team, nil
}

// Update renames a team and replaces its description.
func (s *TeamService) Update(ctx context.Context, userID, teamID int64, name, description string) (*models.Team, error) {
	if err := validateTeam(name, description); err != nil {
		return nil, err
	}

	var team *models.Team
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Teams(tx)

		var err error
		if team, err = repo.Get(ctx, teamID); err != nil {
			return err
		}
		now := s.clock.Now()
		team.Name, team.Description = name, description
		team.UpdatedBy, team.UpdatedAt = &userID, &now
		return repo.Update(ctx, team)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: team %d", common.ErrorNotFound, teamID)
		}
		return nil, logInternal(ctx, s.logger, "update team", err)
	}
	return team, nil
}

// Delete soft-deletes a team. Its members lose access immediately.
func (s *TeamService) Delete(ctx context.Context, userID, teamID int64) error {
	err := s.repomanager.Teams(s.db).SoftDelete(ctx, teamID, userID, s.clock.Now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: team %d", common.ErrorNotFound, teamID)
		}
		return logInternal(ctx, s.logger, "delete team", err)
	}
	s.authorizer.InvalidateTeam(teamID)
	s.logger.Info(ctx, "team deleted", "team_id", teamID, "user_id", userID)
	return nil
}

func (s *TeamService) ListMembers(ctx context.Context, teamID int64) ([]models.TeamMember, error) {
	members, err := s.repomanager.Teams(s.db).ListMembers(ctx, teamID)
	if err != nil {
		return nil, logInternal(ctx, s.logger, "list members", err)
	}
	return members, nil
}

// AddMember grants role to userID in teamID on behalf of actorID. The caller
// checks that the actor may do so.
func (s *TeamService) AddMember(ctx context.Context, actorID, teamID, userID int64, role models.TeamRole) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).FindByID(ctx, userID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: user %d", common.ErrorNotFound, userID)
			}
			return err
		}
		err := s.repomanager.Teams(tx).AddMember(ctx, &models.TeamMembership{
			TeamID: teamID, UserID: userID, Role: role, CreatedBy: &actorID, CreatedAt: s.clock.Now(),
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("%w: already a member", common.ErrorAlreadyExists)
		}
		return err
	})
	if err != nil {
		return logInternal(ctx, s.logger, "add member", err)
	}

	s.authorizer.Invalidate(userID, teamID)
	return nil
}

// ChangeRole sets userID's role in teamID. Members cannot change their own
// role.
func (s *TeamService) ChangeRole(ctx context.Context, actorID, teamID, userID int64, role models.TeamRole) error {
	if actorID == userID {
		return fmt.Errorf("%w: cannot change your own role", common.ErrorValidation)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
	}

	if err := s.repomanager.Teams(s.db).UpdateRole(ctx, teamID, userID, role); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: member %d", common.ErrorNotFound, userID)
		}
		return logInternal(ctx, s.logger, "change role", err)
	}

	s.authorizer.Invalidate(userID, teamID)
	s.logger.Info(ctx, "member role changed", "team_id", teamID, "user_id", userID, "role", role, "by", actorID)
	return nil
}

func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID int64) error {
	if err := s.repomanager.Teams(s.db).RemoveMember(ctx, teamID, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: member %d", common.ErrorNotFound, userID)
		}
		return logInternal(ctx, s.logger, "remove member", err)
	}

	s.authorizer.Invalidate(userID, teamID)
	return nil
}
