package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/standgames/stand/internal/game"
)

// StoreScoreRequest is the request body for POST /api/score. Clients send
// playerId, timer, and score either as numbers or as numeric strings.
type StoreScoreRequest struct {
	GameID   string `json:"gameId"`
	PlayerID any    `json:"playerId"`
	Timer    any    `json:"timer"`
	Score    any    `json:"score"`
}

func numField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func intField(v any) (int, bool) {
	f, ok := numField(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func handleStoreScore(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StoreScoreRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.GameID = strings.TrimSpace(req.GameID)
		if req.GameID == "" {
			writeError(w, http.StatusBadRequest, "gameId is required")
			return
		}
		if req.PlayerID == nil || req.Timer == nil || req.Score == nil {
			writeError(w, http.StatusBadRequest, "playerId, timer and score are required")
			return
		}

		playerID, ok := intField(req.PlayerID)
		if !ok {
			writeError(w, http.StatusBadRequest, "playerId must be numeric")
			return
		}
		timer, ok := numField(req.Timer)
		if !ok {
			writeError(w, http.StatusBadRequest, "timer must be a number of seconds")
			return
		}
		score, ok := intField(req.Score)
		if !ok {
			writeError(w, http.StatusBadRequest, "score must be an integer")
			return
		}

		record, err := opts.Games.StoreScore(r.Context(), req.GameID, playerID, timer, score)
		switch {
		case errors.Is(err, game.ErrGameNotFound):
			writeError(w, http.StatusNotFound, "game not found")
		case errors.Is(err, game.ErrGameInactive):
			writeError(w, http.StatusForbidden, "game is not active")
		case errors.Is(err, game.ErrScoreUnsupported):
			writeError(w, http.StatusBadRequest, "game type does not support scores")
		case errors.Is(err, game.ErrPlayerNotFound):
			writeError(w, http.StatusBadRequest, "no player with that playerId")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, record)
		}
	}
}

// RankingResponse is the response for GET /api/games/{gameID}/ranking.
type RankingResponse struct {
	GameID  string              `json:"gameId"`
	Limit   int                 `json:"limit"`
	Results []game.RankingEntry `json:"results"`
}

func handleRanking(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")

		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		entries, err := opts.Games.Ranking(r.Context(), gameID, limit)
		switch {
		case errors.Is(err, game.ErrGameNotFound):
			writeError(w, http.StatusNotFound, "game not found")
		case errors.Is(err, game.ErrScoreUnsupported):
			writeError(w, http.StatusBadRequest, "game type does not support ranking")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, RankingResponse{GameID: gameID, Limit: limit, Results: entries})
		}
	}
}
