package httpapi

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", common.ErrorValidation, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", common.ErrorValidation, name)
	}
	return id, nil
}

// provenance collects the audit fields stored with refresh tokens.
// RemoteAddr has already been rewritten by middleware.RealIP when the
// request came through a proxy.
func provenance(r *http.Request) models.Provenance {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return models.Provenance{
		IPAddress:  orUnknown(ip),
		UserAgent:  orUnknown(r.UserAgent()),
		DeviceName: orUnknown(r.Header.Get(common.DeviceNameHeader)),
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return common.UnknownProvenance
	}
	return s
}
