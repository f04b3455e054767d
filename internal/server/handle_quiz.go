package server

import (
	"errors"
	"net/http"

	"github.com/standgames/stand/internal/game"
)

// ConfigureQuizRequest is the request body for PUT /api/admin/games/{gameID}/quiz.
type ConfigureQuizRequest struct {
	Questions []game.QuizQuestionInput `json:"questions"`
}

func handleConfigureQuiz(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}

		var req ConfigureQuizRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		report, err := opts.Games.ConfigureQuiz(r.Context(), g.GameID, req.Questions)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleExportQuiz(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}

		export, err := opts.Games.ExportQuiz(r.Context(), g.GameID)
		if errors.Is(err, game.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, export)
	}
}

// StartQuizRequest is the request body for POST /api/admin/games/{gameID}/quiz/start.
type StartQuizRequest struct {
	PSIDs []string `json:"psids"`
}

func handleStartQuiz(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}

		var req StartQuizRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.PSIDs) == 0 {
			writeError(w, http.StatusBadRequest, "psids is required")
			return
		}

		results, err := opts.Games.StartQuiz(r.Context(), g.GameID, req.PSIDs)
		if errors.Is(err, game.ErrNoQuizConfigured) {
			writeError(w, http.StatusConflict, "game has no quiz configured")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}
