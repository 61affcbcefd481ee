package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type ctxKey string

const userIDKey ctxKey = "userID"

func userIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the caller's user id in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			s.writeError(w, r, fmt.Errorf("%w: bearer token required", common.ErrorUnauthorized))
			return
		}

		claims, err := s.services.Tokens.ParseAccessToken(strings.TrimSpace(token))
		if err != nil {
			s.logger.Warn(r.Context(), "access token rejected", "error", err)
			s.writeError(w, r, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects callers below min in the team named by the {teamID}
// path parameter. Non-members get 404.
func (s *Server) requireRole(min models.TeamRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := userIDFrom(r.Context())
			if !ok {
				s.writeError(w, r, common.ErrorUnauthorized)
				return
			}
			teamID, err := pathID(r, "teamID")
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if err := s.services.Authorizer.Require(r.Context(), userID, teamID, min); err != nil {
				s.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
