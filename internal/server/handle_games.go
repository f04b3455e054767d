package server

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

// GameResponse is the game shape returned to admins and polling clients.
type GameResponse struct {
	GameID          string               `json:"gameId"`
	GameName        string               `json:"gameName"`
	GameType        string               `json:"gameType"`
	IsActive        bool                 `json:"isActive"`
	MaxPlayers      int                  `json:"maxPlayers"`
	PlayersCount    int                  `json:"playersCount"`
	ValidatedCount  int                  `json:"validatedCount"`
	QuizEnabled     bool                 `json:"quizEnabled"`
	RaffleWinners   []stand.RaffleWinner `json:"raffleWinners,omitempty"`
	RaffleLastRunAt *time.Time           `json:"raffleLastRunAt,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

func gameResponse(g stand.Game) GameResponse {
	return GameResponse{
		GameID:          g.GameID,
		GameName:        g.GameName,
		GameType:        g.GameType,
		IsActive:        g.IsActive,
		MaxPlayers:      g.MaxPlayers,
		PlayersCount:    g.PlayersCount,
		ValidatedCount:  g.ValidatedCount,
		QuizEnabled:     g.QuizEnabled(),
		RaffleWinners:   g.RaffleWinners,
		RaffleLastRunAt: g.RaffleLastRunAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
}

// CreateGameRequest is the request body for POST /api/admin/games.
type CreateGameRequest struct {
	GameName   string `json:"gameName"`
	GameType   string `json:"gameType"`
	MaxPlayers int    `json:"maxPlayers"`
	IsActive   *bool  `json:"isActive"`
}

// The game id doubles as the join code players DM to the account, so it has
// to be short and typeable. Six digits, first one nonzero.
func newJoinCode() string {
	return fmt.Sprintf("%d", rand.IntN(900000)+100000)
}

const createAttempts = 10

func handleCreateGame(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := adminFrom(r)

		var req CreateGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.GameName = strings.TrimSpace(req.GameName)
		req.GameType = strings.ToUpper(strings.TrimSpace(req.GameType))
		if req.GameName == "" {
			writeError(w, http.StatusBadRequest, "gameName is required")
			return
		}
		if !stand.SupportedGameTypes[req.GameType] {
			writeError(w, http.StatusBadRequest, "unsupported gameType")
			return
		}
		if req.MaxPlayers < 0 {
			writeError(w, http.StatusBadRequest, "maxPlayers must not be negative")
			return
		}

		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}

		now := time.Now().UTC()
		g := stand.Game{
			GameName:    req.GameName,
			GameType:    req.GameType,
			OwnerUserID: sess.AdminID,
			IsActive:    active,
			MaxPlayers:  req.MaxPlayers,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		for attempt := 0; attempt < createAttempts; attempt++ {
			g.GameID = newJoinCode()
			err := opts.Store.CreateGame(r.Context(), g)
			if errors.Is(err, store.ErrConditionFailed) {
				continue
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			writeJSON(w, http.StatusCreated, gameResponse(g))
			return
		}

		writeError(w, http.StatusConflict, "could not allocate a game code")
	}
}

func handleListGames(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := adminFrom(r)

		games, err := opts.Store.ListGames(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		out := []GameResponse{}
		for _, g := range games {
			if g.OwnerUserID != sess.AdminID {
				continue
			}
			out = append(out, gameResponse(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ownedGame loads the game and enforces the owner guard. A game owned by
// someone else reads as not found so the handler leaks nothing.
func ownedGame(w http.ResponseWriter, r *http.Request, opts Options) (stand.Game, bool) {
	g, err := opts.Store.GetGame(r.Context(), chi.URLParam(r, "gameID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return stand.Game{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return stand.Game{}, false
	}
	if g.OwnerUserID != adminFrom(r).AdminID {
		writeError(w, http.StatusNotFound, "game not found")
		return stand.Game{}, false
	}
	return g, true
}

func handleGetGame(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, gameResponse(g))
	}
}

// UpdateGameRequest is the request body for PUT /api/admin/games/{gameID}.
type UpdateGameRequest struct {
	IsActive bool `json:"isActive"`
}

func handleUpdateGame(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}

		var req UpdateGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := opts.Store.SetGameActive(r.Context(), g.GameID, req.IsActive, time.Now().UTC()); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		g, err := opts.Store.GetGame(r.Context(), g.GameID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, gameResponse(g))
	}
}

func handleDeleteGame(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}

		if err := opts.Store.DeleteGame(r.Context(), g.GameID); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// PlayerSummary is one row of GET /api/admin/games/{gameID}/players.
type PlayerSummary struct {
	PlayerID          int        `json:"playerId"`
	InstagramUsername string     `json:"instagramUsername"`
	ValidationCode    int        `json:"validationCode"`
	Validated         bool       `json:"validated"`
	ValidatedAt       *time.Time `json:"validatedAt,omitempty"`
	RaffleEligible    bool       `json:"raffleEligible"`
	JoinedAt          time.Time  `json:"joinedAt"`
}

func handleListPlayers(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownedGame(w, r, opts)
		if !ok {
			return
		}

		players, err := opts.Store.ListPlayers(r.Context(), g.GameID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		out := []PlayerSummary{}
		for _, p := range players {
			out = append(out, PlayerSummary{
				PlayerID:          p.PlayerID,
				InstagramUsername: p.InstagramUsername,
				ValidationCode:    p.ValidationCode,
				Validated:         p.Validated,
				ValidatedAt:       p.ValidatedAt,
				RaffleEligible:    p.EligibleForGameID != "" && p.RaffleEligible(g.GameType),
				JoinedAt:          p.JoinedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handlePublicGame serves the unauthenticated polling view of a game: active
// flag, counters, and the raffle outcome once it ran.
func handlePublicGame(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := opts.Store.GetGame(r.Context(), chi.URLParam(r, "gameID"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, gameResponse(g))
	}
}
