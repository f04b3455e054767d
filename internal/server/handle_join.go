package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/standgames/stand/internal/game"
	"github.com/standgames/stand/internal/store"
)

// JoinRequest is the request body for POST /api/join. It mirrors what the
// webhook path derives from an inbound DM, for clients that integrate
// directly instead of through the messaging platform.
type JoinRequest struct {
	GameID   string `json:"gameId"`
	PSID     string `json:"psid"`
	Username string `json:"username"`
}

// JoinResponse is the response for POST /api/join.
type JoinResponse struct {
	GameID         string `json:"gameId"`
	PlayerID       int    `json:"playerId"`
	AlreadyJoined  bool   `json:"alreadyJoined"`
	QuizEnabled    bool   `json:"quizEnabled"`
	ValidationCode int    `json:"validationCode,omitempty"`
}

func handleJoin(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.PSID = strings.TrimSpace(req.PSID)
		if req.GameID == "" || req.PSID == "" {
			writeError(w, http.StatusBadRequest, "gameId and psid are required")
			return
		}

		res, err := opts.Games.Join(r.Context(), req.GameID, req.PSID, strings.TrimSpace(req.Username))
		switch {
		case errors.Is(err, game.ErrMissingUsername):
			writeError(w, http.StatusBadRequest, "username is required")
		case errors.Is(err, game.ErrGameNotFound):
			writeError(w, http.StatusNotFound, "game not found")
		case errors.Is(err, game.ErrGameInactive):
			writeError(w, http.StatusConflict, "game is not active")
		case errors.Is(err, store.ErrCapacityReached):
			writeError(w, http.StatusConflict, "player limit reached")
		case errors.Is(err, game.ErrRetryExhausted):
			writeError(w, http.StatusConflict, "could not allocate a player slot")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, JoinResponse{
				GameID:         req.GameID,
				PlayerID:       res.Player.PlayerID,
				AlreadyJoined:  res.AlreadyJoined,
				QuizEnabled:    res.QuizEnabled,
				ValidationCode: res.Player.ValidationCode,
			})
		}
	}
}
