package game

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

// ErrScoreUnsupported is returned when a score or ranking operation targets
// a game type that has no score semantics.
var ErrScoreUnsupported = errors.New("game type does not support scores")

func assignT1mer(_ context.Context, _ *Coordinator, in AssignInput) (Assignment, error) {
	state := map[string]any{
		"score":       0,
		"quizAnswers": map[string]any{},
	}
	return Assignment{
		State:   state,
		Welcome: fmt.Sprintf("⏱️ ¡Bienvenid@ a T1mer, %s!\n\n", in.Username),
	}, nil
}

func validateT1mer(ctx context.Context, c *Coordinator, in ValidateInput) ValidationResult {
	return validateSingleCode(ctx, c, in, "T1mer")
}

// ScoreRecord is one stored score submission.
type ScoreRecord struct {
	GameID         string  `json:"gameId"`
	PlayerID       int     `json:"playerId"`
	Username       string  `json:"username"`
	Timer          float64 `json:"timer"`
	Score          int     `json:"score"`
	ScoreUpdatedAt string  `json:"scoreUpdatedAt"`
}

// StoreScore records a timer run for a T1MER player. The write overwrites
// any previous run; the ranking always reflects the latest submission.
func (c *Coordinator) StoreScore(ctx context.Context, gameID string, playerID int, timer float64, score int) (ScoreRecord, error) {
	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ScoreRecord{}, ErrGameNotFound
		}
		return ScoreRecord{}, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	if !game.IsActive {
		return ScoreRecord{}, ErrGameInactive
	}
	if game.GameType != stand.GameTypeT1mer {
		return ScoreRecord{}, ErrScoreUnsupported
	}

	player, err := c.store.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ScoreRecord{}, ErrPlayerNotFound
		}
		return ScoreRecord{}, fmt.Errorf("loading player %d in %s: %w", playerID, gameID, err)
	}

	if err := c.store.EnsureTypePath(ctx, gameID, playerID, game.GameType); err != nil {
		return ScoreRecord{}, fmt.Errorf("ensuring state path: %w", err)
	}

	now := nowUTC()
	updatedAt := now.Format(quizTimeLayout)
	err = c.store.SetTypeFields(ctx, gameID, playerID, game.GameType, map[string]any{
		"timer":          timer,
		"score":          score,
		"scoreUpdatedAt": updatedAt,
	})
	if err != nil {
		return ScoreRecord{}, fmt.Errorf("storing score for player %d in %s: %w", playerID, gameID, err)
	}

	c.logger.Info("score stored",
		"game_id", gameID,
		"player_id", playerID,
		"timer", timer,
		"score", score,
	)

	return ScoreRecord{
		GameID:         gameID,
		PlayerID:       playerID,
		Username:       player.InstagramUsername,
		Timer:          timer,
		Score:          score,
		ScoreUpdatedAt: updatedAt,
	}, nil
}

// RankingEntry is one row of a game's score ranking.
type RankingEntry struct {
	Rank     int     `json:"rank"`
	PlayerID int     `json:"playerId"`
	Username string  `json:"username"`
	Timer    float64 `json:"timer"`
	Score    float64 `json:"score"`
}

const (
	defaultRankingLimit = 10
	maxRankingLimit     = 100
)

// Ranking returns the game's players ordered by score ascending (lower is
// better), capped to limit. Players without a stored run are excluded.
// Inactive games still rank, so the board stays readable after a session.
func (c *Coordinator) Ranking(ctx context.Context, gameID string, limit int) ([]RankingEntry, error) {
	if limit <= 0 {
		limit = defaultRankingLimit
	}
	if limit > maxRankingLimit {
		limit = maxRankingLimit
	}

	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	if game.GameType != stand.GameTypeT1mer {
		return nil, ErrScoreUnsupported
	}

	players, err := c.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing players in %s: %w", gameID, err)
	}

	entries := []RankingEntry{}
	for _, p := range players {
		blob := p.Type.Blob(game.GameType)
		score, okScore := blobFloat(blob, "score")
		timer, okTimer := blobFloat(blob, "timer")
		if !okScore || !okTimer {
			continue
		}
		entries = append(entries, RankingEntry{
			PlayerID: p.PlayerID,
			Username: p.InstagramUsername,
			Timer:    timer,
			Score:    score,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score < entries[j].Score })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func blobFloat(blob map[string]any, key string) (float64, bool) {
	switch v := blob[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
