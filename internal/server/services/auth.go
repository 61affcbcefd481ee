package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

// AuthService handles login, registration and refresh token rotation.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	issuer      TokenIssuer
	clock       timex.Clock
	logger      logging.Logger
}

// NewAuthService returns an AuthService logging under module=auth.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, issuer TokenIssuer,
	clock timex.Clock, logger logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		issuer:      issuer,
		clock:       clock,
		logger:      logger.With("module", "auth"),
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func defaultDisplayName(email string) string {
	if local, _, found := strings.Cut(email, "@"); found {
		return local
	}
	return email
}

func withDefaults(p models.Provenance) models.Provenance {
	if blank(p.IPAddress) {
		p.IPAddress = common.UnknownProvenance
	}
	if blank(p.UserAgent) {
		p.UserAgent = common.UnknownProvenance
	}
	if blank(p.DeviceName) {
		p.DeviceName = common.UnknownProvenance
	}
	return p
}

// Login checks the credentials and issues a token pair. An unknown email and a
// wrong password produce the same common.ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	if blank(req.Email) || blank(req.Password) {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}
	email := NormalizeEmail(req.Email)

	var resp *models.TokenResponse
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.logger.Warn(ctx, "login rejected", "reason", "invalid credentials")
				return common.ErrorUnauthorized
			}
			return err
		}

		ok, err := s.hasher.Verify(user.PasswordHash, req.Password, user.Salt)
		if err != nil || !ok {
			s.logger.Warn(ctx, "login rejected", "reason", "invalid credentials", "user_id", user.ID)
			return common.ErrorUnauthorized
		}

		resp, err = s.issueTokens(ctx, tx, user, req.Provenance)
		return err
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "login", err)
	}
	return resp, nil
}

// Register creates an unconfirmed, active user whose display name is the
// local part of the email.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.UserProfile, error) {
	if blank(email) || blank(password) {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}
	email = NormalizeEmail(email)

	var profile *models.UserProfile
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.FindByEmail(ctx, email)
		switch {
		case err == nil:
			return fmt.Errorf("%w: user already exists", common.ErrorAlreadyExists)
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		hash, salt, err := s.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user, err := repo.Create(ctx, &models.User{
			Email:          email,
			PasswordHash:   hash,
			Salt:           salt,
			DisplayName:    defaultDisplayName(email),
			EmailConfirmed: false,
			IsActive:       true,
			CreatedAt:      s.clock.Now(),
		})
		if err != nil {
			return err
		}
		profile = user.Profile()
		return nil
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "register", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", profile.ID)
	return profile, nil
}

// RefreshToken exchanges a valid refresh token for a new pair. The presented
// token is revoked in the same transaction that stores its successor, so a
// raw refresh token mints at most one new session.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshRequest) (*models.TokenResponse, error) {
	if blank(req.RefreshToken) {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrorValidation)
	}

	var resp *models.TokenResponse
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.RefreshTokens(tx)

		stored, err := tokens.FindByHash(ctx, s.issuer.Hash(req.RefreshToken))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.logger.Warn(ctx, "refresh rejected", "reason", "unknown token")
				return fmt.Errorf("%w: invalid refresh token", common.ErrorUnauthorized)
			}
			return err
		}

		now := s.clock.Now()
		if !stored.Valid(now) {
			s.logger.Warn(ctx, "refresh rejected", "reason", "expired or revoked", "token_id", stored.ID)
			return fmt.Errorf("%w: refresh token expired or revoked", common.ErrorUnauthorized)
		}

		user, err := s.repomanager.Users(tx).FindByID(ctx, stored.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.logger.Error(ctx, "refresh token owner missing", "token_id", stored.ID, "user_id", stored.UserID)
				return fmt.Errorf("%w: user %d", common.ErrorNotFound, stored.UserID)
			}
			return err
		}

		access, accessExpiry, err := s.issuer.IssueAccessToken(user)
		if err != nil {
			return err
		}
		next, err := s.issuer.IssueRefreshToken()
		if err != nil {
			return err
		}

		if err := tokens.Revoke(ctx, stored.ID, now); err != nil {
			if errors.Is(err, refreshtokens.ErrAlreadyRevoked) {
				s.logger.Warn(ctx, "refresh rejected", "reason", "concurrent reuse", "token_id", stored.ID)
				return fmt.Errorf("%w: refresh token expired or revoked", common.ErrorUnauthorized)
			}
			return err
		}
		if err := tokens.Create(ctx, s.newRecord(user.ID, next, req.Provenance)); err != nil {
			return err
		}

		resp = &models.TokenResponse{
			AccessToken:           access,
			AccessTokenExpiresAt:  accessExpiry,
			RefreshToken:          next.Raw,
			RefreshTokenExpiresAt: next.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, logInternal(ctx, s.logger, "refresh token", err)
	}
	return resp, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID int64) (*models.UserProfile, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		return nil, logInternal(ctx, s.logger, "me", err)
	}
	return user.Profile(), nil
}

func (s *AuthService) issueTokens(ctx context.Context, tx dbx.DBTX, user *models.User, p models.Provenance) (*models.TokenResponse, error) {
	access, accessExpiry, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, s.newRecord(user.ID, refresh, p)); err != nil {
		return nil, err
	}
	return &models.TokenResponse{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshToken:          refresh.Raw,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *AuthService) newRecord(userID int64, t *models.GeneratedRefreshToken, p models.Provenance) *models.RefreshToken {
	p = withDefaults(p)
	return &models.RefreshToken{
		UserID:      userID,
		TokenHash:   t.Hash,
		ExpiresAt:   t.ExpiresAt,
		CreatedAt:   s.clock.Now(),
		CreatedByIP: p.IPAddress,
		UserAgent:   p.UserAgent,
		DeviceName:  p.DeviceName,
	}
}
