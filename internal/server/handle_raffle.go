package server

import (
	"errors"
	"net/http"

	"github.com/standgames/stand/internal/game"
)

// DrawRaffleRequest is the request body for POST /api/admin/games/{gameID}/raffle.
type DrawRaffleRequest struct {
	NumberOfWinners         int  `json:"numberOfWinners"`
	ApplicableOnlyValidated bool `json:"applicableOnlyValidated"`
}

func handleDrawRaffle(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}

		var req DrawRaffleRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := opts.Games.Draw(r.Context(), g.GameID, req.NumberOfWinners, req.ApplicableOnlyValidated)
		if errors.Is(err, game.ErrInvalidWinnerCount) {
			writeError(w, http.StatusBadRequest, "numberOfWinners must be positive")
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
