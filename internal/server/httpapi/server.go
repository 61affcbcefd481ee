// Package httpapi exposes the BoardForge services over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/server/auth"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

const shutdownTimeout = 10 * time.Second

type AuthService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error)
	Register(ctx context.Context, email, password string) (*models.UserProfile, error)
	RefreshToken(ctx context.Context, req models.RefreshRequest) (*models.TokenResponse, error)
	Me(ctx context.Context, userID int64) (*models.UserProfile, error)
}

type TeamService interface {
	Create(ctx context.Context, userID int64, name, description string) (*models.Team, error)
	ListMine(ctx context.Context, userID int64) ([]models.Team, error)
	Get(ctx context.Context, teamID int64) (*models.Team, error)
	Update(ctx context.Context, userID, teamID int64, name, description string) (*models.Team, error)
	Delete(ctx context.Context, userID, teamID int64) error
	ListMembers(ctx context.Context, teamID int64) ([]models.TeamMember, error)
	AddMember(ctx context.Context, actorID, teamID, userID int64, role models.TeamRole) error
	ChangeRole(ctx context.Context, actorID, teamID, userID int64, role models.TeamRole) error
	RemoveMember(ctx context.Context, teamID, userID int64) error
}

// Authorizer decides whether a user holds at least a given role in a team.
type Authorizer interface {
	Require(ctx context.Context, userID, teamID int64, min models.TeamRole) error
}

type CardService interface {
	Create(ctx context.Context, req models.CreateCardRequest) (*models.Card, error)
	Get(ctx context.Context, teamID, cardID int64) (*models.Card, error)
	List(ctx context.Context, teamID int64) ([]models.Card, error)
	Update(ctx context.Context, req models.UpdateCardRequest, ifMatch string) (*models.Card, error)
	Delete(ctx context.Context, teamID, cardID, userID int64) error
}

type LabelService interface {
	Add(ctx context.Context, teamID, userID int64, inputs []models.LabelInput) (*models.AddLabelsResult, error)
	List(ctx context.Context, teamID int64) ([]models.Label, error)
	Update(ctx context.Context, teamID, labelID, userID int64, in models.LabelInput) (*models.Label, error)
	Delete(ctx context.Context, teamID, labelID, userID int64) error
	CardLabels(ctx context.Context, teamID, cardID int64) ([]models.Label, error)
	AttachToCard(ctx context.Context, teamID, cardID int64, labelIDs []int64) ([]models.Label, error)
	DetachFromCard(ctx context.Context, teamID, cardID, labelID int64) error
}

type AttachmentService interface {
	RequestUpload(ctx context.Context, teamID, cardID, userID int64, fileName string) (*models.PresignedURL, error)
	DownloadURL(ctx context.Context, teamID, cardID int64, attachmentID string) (*models.PresignedURL, error)
}

// TokenParser validates bearer access tokens.
type TokenParser interface {
	ParseAccessToken(tokenString string) (*auth.Claims, error)
}

// Services groups everything the handlers call into.
type Services struct {
	Auth        AuthService
	Teams       TeamService
	Authorizer  Authorizer
	Cards       CardService
	Labels      LabelService
	Attachments AttachmentService
	Tokens      TokenParser
}

type Server struct {
	address  string
	services Services
	logger   logging.Logger
}

func NewServer(address string, s Services, l logging.Logger) *Server {
	return &Server{
		address:  address,
		services: s,
		logger:   l.With("module", "http_server"),
	}
}

// Routes builds the router. It is separate from Run so tests can drive it
// through httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type",
			common.IfMatchHeader, common.DeviceNameHeader},
		ExposedHeaders: []string{common.ETagHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/heartbeat"))

	r.Route("/api/authentication", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh-token", s.handleRefreshToken)
		r.With(s.authenticate).Get("/me", s.handleMe)
	})

	r.Route("/api/teams", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/", s.handleListTeams)
		r.Post("/", s.handleCreateTeam)

		r.Route("/{teamID:[0-9]+}", func(r chi.Router) {
			viewer := r.With(s.requireRole(models.RoleViewer))
			member := r.With(s.requireRole(models.RoleMember))
			owner := r.With(s.requireRole(models.RoleOwner))

			viewer.Get("/", s.handleGetTeam)
			owner.Put("/", s.handleUpdateTeam)
			owner.Delete("/", s.handleDeleteTeam)

			viewer.Get("/members", s.handleListMembers)
			owner.Post("/members", s.handleAddMember)
			owner.Put("/members/{userID:[0-9]+}", s.handleChangeRole)
			owner.Delete("/members/{userID:[0-9]+}", s.handleRemoveMember)

			viewer.Get("/labels", s.handleListLabels)
			owner.Post("/labels", s.handleAddLabels)
			owner.Put("/labels/{labelID:[0-9]+}", s.handleUpdateLabel)
			owner.Delete("/labels/{labelID:[0-9]+}", s.handleDeleteLabel)

			viewer.Get("/cards", s.handleListCards)
			member.Post("/cards", s.handleCreateCard)

			r.Route("/cards/{cardID:[0-9]+}", func(r chi.Router) {
				r.With(s.requireRole(models.RoleViewer)).Get("/", s.handleGetCard)
				r.With(s.requireRole(models.RoleMember)).Patch("/", s.handleUpdateCard)
				r.With(s.requireRole(models.RoleMember)).Delete("/", s.handleDeleteCard)
				r.With(s.requireRole(models.RoleMember)).Post("/attachments", s.handleRequestUpload)
				r.With(s.requireRole(models.RoleViewer)).Get("/attachments/{attachmentID}", s.handleDownloadURL)
				r.With(s.requireRole(models.RoleViewer)).Get("/labels", s.handleCardLabels)
				r.With(s.requireRole(models.RoleMember)).Post("/labels", s.handleAttachLabels)
				r.With(s.requireRole(models.RoleMember)).Delete("/labels/{labelID:[0-9]+}", s.handleDetachLabel)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
