package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/standgames/stand/internal/game"
)

// ValidateRequest is the request body for POST /api/validate. Codes may be
// sent as a list or as one comma-separated string.
type ValidateRequest struct {
	GameID string   `json:"gameId"`
	Codes  []string `json:"codes"`
	Code   string   `json:"code"`
}

func (req ValidateRequest) codes() []string {
	if len(req.Codes) > 0 {
		return req.Codes
	}
	var out []string
	for _, c := range strings.Split(req.Code, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func handleValidate(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.GameID == "" {
			writeError(w, http.StatusBadRequest, "gameId is required")
			return
		}
		codes := req.codes()
		if len(codes) == 0 {
			writeError(w, http.StatusBadRequest, "codes is required")
			return
		}

		result, err := opts.Games.Validate(r.Context(), req.GameID, codes)
		if errors.Is(err, game.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if errors.Is(err, game.ErrGameInactive) {
			writeError(w, http.StatusConflict, "game is not active")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
