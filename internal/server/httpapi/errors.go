package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/boardforge/internal/common"
)

var statusByKind = map[common.Kind]int{
	common.KindValidation:      http.StatusBadRequest,
	common.KindUnauthorized:    http.StatusUnauthorized,
	common.KindForbidden:       http.StatusForbidden,
	common.KindNotFound:        http.StatusNotFound,
	common.KindConflict:        http.StatusConflict,
	common.KindVersionConflict: http.StatusPreconditionFailed,
	common.KindInternal:        http.StatusInternalServerError,
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func statusFor(err error) int {
	if status, ok := statusByKind[common.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError renders err as a JSON error body. Internal errors are logged and
// replaced with an opaque message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()

	switch status {
	case http.StatusInternalServerError:
		s.logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		msg = common.ErrorInternal.Error()
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	writeJSON(w, status, errorResponse{StatusCode: status, Message: msg})
}
