package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type labelResponse struct {
	ID        int64      `json:"id"`
	TeamID    int64      `json:"teamId"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	CreatedBy int64      `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedBy *int64     `json:"updatedBy,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type addLabelsResponse struct {
	Added    []labelResponse `json:"added"`
	Existing []labelResponse `json:"existing"`
}

func toLabelResponse(l models.Label) labelResponse {
	return labelResponse{
		ID:        l.ID,
		TeamID:    l.TeamID,
		Name:      l.Name,
		Color:     l.ColorHex,
		CreatedBy: l.CreatedBy,
		CreatedAt: l.CreatedAt,
		UpdatedBy: l.UpdatedBy,
		UpdatedAt: l.UpdatedAt,
	}
}

// toLabelResponses keeps nil as nil so cards without labels omit the field.
func toLabelResponses(labels []models.Label) []labelResponse {
	if labels == nil {
		return nil
	}
	out := make([]labelResponse, 0, len(labels))
	for _, l := range labels {
		out = append(out, toLabelResponse(l))
	}
	return out
}

func writeLabels(w http.ResponseWriter, labels []models.Label) {
	out := toLabelResponses(labels)
	if out == nil {
		out = []labelResponse{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	labels, err := s.services.Labels.List(r.Context(), teamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeLabels(w, labels)
}

func (s *Server) handleAddLabels(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, err := pathID(r, "teamID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Labels []models.LabelInput `json:"labels"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.services.Labels.Add(r.Context(), teamID, userID, req.Labels)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := addLabelsResponse{Added: []labelResponse{}, Existing: []labelResponse{}}
	for _, l := range res.Added {
		out.Added = append(out.Added, toLabelResponse(l))
	}
	for _, l := range res.Existing {
		out.Existing = append(out.Existing, toLabelResponse(l))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, labelID, err := labelPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req models.LabelInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	label, err := s.services.Labels.Update(r.Context(), teamID, labelID, userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabelResponse(*label))
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	teamID, labelID, err := labelPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Labels.Delete(r.Context(), teamID, labelID, userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCardLabels(w http.ResponseWriter, r *http.Request) {
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	labels, err := s.services.Labels.CardLabels(r.Context(), teamID, cardID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeLabels(w, labels)
}

func (s *Server) handleAttachLabels(w http.ResponseWriter, r *http.Request) {
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		LabelIDs []int64 `json:"labelIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	labels, err := s.services.Labels.AttachToCard(r.Context(), teamID, cardID, req.LabelIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeLabels(w, labels)
}

func (s *Server) handleDetachLabel(w http.ResponseWriter, r *http.Request) {
	teamID, cardID, err := cardPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	labelID, err := pathID(r, "labelID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Labels.DetachFromCard(r.Context(), teamID, cardID, labelID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func labelPath(r *http.Request) (teamID, labelID int64, err error) {
	if teamID, err = pathID(r, "teamID"); err != nil {
		return 0, 0, err
	}
	if labelID, err = pathID(r, "labelID"); err != nil {
		return 0, 0, err
	}
	return teamID, labelID, nil
}
