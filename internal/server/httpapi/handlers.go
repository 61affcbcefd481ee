package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/etag"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type teamResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	MemberCount int        `json:"memberCount"`
	CreatedBy   int64      `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedBy   *int64     `json:"updatedBy,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func toTeamResponse(t *models.Team) teamResponse {
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		MemberCount: t.MemberCount,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedBy:   t.UpdatedBy,
		UpdatedAt:   t.UpdatedAt,
	}
}

type memberResponse struct {
	UserID      int64           `json:"userId"`
	DisplayName string          `json:"displayName"`
	Email       string          `json:"email"`
	Role        models.TeamRole `json:"role"`
	JoinedAt    time.Time       `json:"joinedAt"`
}

type cardResponse struct {
	ID          int64      `json:"id"`
	TeamID      int64      `json:"teamId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Order       int        `json:"order"`
	OwnerID     int64      `json:"ownerId"`
	CreatedBy   int64      `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedBy   *int64     `json:"updatedBy,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	// ETag is only filled in lists; single-card responses carry the header.
	ETag   string          `json:"etag,omitempty"`
	Labels []labelResponse `json:"labels,omitempty"`
}

func toCardResponse(c *models.Card) cardResponse {
	return cardResponse{
		ID:          c.ID,
		TeamID:      c.TeamID,
		Title:       c.Title,
		Description: c.Description,
		Order:       c.Order,
		OwnerID:     c.OwnerID,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedBy:   c.UpdatedBy,
		UpdatedAt:   c.UpdatedAt,
		Labels:      toLabelResponses(c.Labels),
	}
}

// writeCard sends the card with its current row version as a strong ETag.
func writeCard(w http.ResponseWriter, status int, c *models.Card) {
	w.Header().Set(common.ETagHeader, etag.FromRowVersion(c.RowVersion, false))
	writeJSON(w, status, toCardResponse(c))
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req teamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	team, err := s.services.Teams.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTeamResponse(team))
}

type teamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	teams, err := s.services.Teams.ListMine(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]teamResponse, 0, len(teams))
	for i := range teams {
		out = append(out, toTeamResponse(&teams[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	team, err := s.services.Teams.Get(r.Context(), teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamResponse(team))
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req teamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	team, err := s.services.Teams.Update(r.Context(), userID, teamID, req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamResponse(team))
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Teams.Delete(r.Context(), userID, teamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	members, err := s.services.Teams.ListMembers(r.Context(), teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID: m.UserID, DisplayName: m.DisplayName, Email: m.Email, Role: m.Role, JoinedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actorID, _ := userIDFrom(r.Context())
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		UserID int64           `json:"userId"`
		Role   models.TeamRole `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Teams.AddMember(r.Context(), actorID, teamID, req.UserID, req.Role); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := userIDFrom(r.Context())
	teamID, userID, err := memberPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Role models.TeamRole `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Teams.ChangeRole(r.Context(), actorID, teamID, userID, req.Role); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, userID, err := memberPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Teams.RemoveMember(r.Context(), teamID, userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func memberPath(r *http.Request) (teamID, userID int64, err error) {
	if teamID, err = pathID(r, "teamID"); err != nil {
		return 0, 0, err
	}
	if userID, err = pathID(r, "userID"); err != nil {
		return 0, 0, err
	}
	return teamID, userID, nil
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cards, err := s.services.Cards.List(r.Context(), teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]cardResponse, 0, len(cards))
	for i := range cards {
		c := toCardResponse(&cards[i])
		c.ETag = etag.FromRowVersion(cards[i].RowVersion, false)
		out = append(out, c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req models.CreateCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.TeamID, req.UserID = teamID, userID

	card, err := s.services.Cards.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeCard(w, http.StatusCreated, card)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	card, err := s.services.Cards.Get(r.Context(), teamID, cardID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeCard(w, http.StatusOK, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req models.UpdateCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.TeamID, req.CardID, req.UserID = teamID, cardID, userID

	card, err := s.services.Cards.Update(r.Context(), req, r.Header.Get(common.IfMatchHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeCard(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Cards.Delete(r.Context(), teamID, cardID, userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRequestUpload(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		FileName string `json:"fileName"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	url, err := s.services.Attachments.RequestUpload(r.Context(), teamID, cardID, userID, req.FileName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, url)
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	url, err := s.services.Attachments.DownloadURL(r.Context(), teamID, cardID, chi.URLParam(r, "attachmentID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, url)
}

func cardPath(r *http.Request) (teamID, cardID int64, err error) {
	if teamID, err = pathID(r, "teamID"); err != nil {
		return 0, 0, err
	}
	if cardID, err = pathID(r, "cardID"); err != nil {
		return 0, 0, err
	}
	return teamID, cardID, nil
}
