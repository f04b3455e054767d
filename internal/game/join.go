package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

// ErrMissingUsername means the joiner's Instagram username could not be
// resolved; the player has already been told how to fix it.
var ErrMissingUsername = errors.New("missing username")

// JoinResult reports the outcome of an admission attempt.
type JoinResult struct {
	CreatedNew    bool         `json:"createdNew"`
	AlreadyJoined bool         `json:"alreadyJoined"`
	QuizEnabled   bool         `json:"quizEnabled"`
	Player        stand.Player `json:"-"`
}

// Join admits an identity into a game: idempotency check, capacity-guarded
// slot reservation, then a bounded retry loop allocating the next sequential
// player id with a conditional create. Any failure after the reservation
// rolls the counter back so playersCount never drifts above the real player
// count. Capacity and retry exhaustion surface as ErrCapacityReached and
// ErrRetryExhausted; the joiner has already been messaged in both cases.
func (c *Coordinator) Join(ctx context.Context, gameID, psid, username string) (JoinResult, error) {
	if username == "" {
		c.send(ctx, notify.Text(psid, msgMissingUsername))
		return JoinResult{}, ErrMissingUsername
	}

	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.send(ctx, notify.Text(psid, msgGameNotFound))
			return JoinResult{}, ErrGameNotFound
		}
		return JoinResult{}, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	if !game.IsActive {
		c.send(ctx, notify.Text(psid, msgGameInactive))
		return JoinResult{}, ErrGameInactive
	}

	gameType := strings.ToUpper(game.GameType)

	// Idempotency: an identity that already joined never consumes a second
	// slot. Re-send the quiz or the validation code instead.
	if existing, ok := c.playerByIdentity(ctx, gameID, psid); ok {
		c.send(ctx, notify.Text(psid, msgAlreadyJoined))
		if game.QuizEnabled() {
			c.StartQuiz(ctx, gameID, []string{psid})
		} else if existing.ValidationCode > 0 {
			c.send(ctx, notify.Text(psid, msgCodeTail(existing.ValidationCode)))
		}
		c.logger.Info("join already joined", "game_id", gameID, "psid", psid, "player_id", existing.PlayerID)
		return JoinResult{AlreadyJoined: true, QuizEnabled: game.QuizEnabled(), Player: existing}, nil
	}

	maxPlayers := game.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = 9999
	}

	now := nowUTC()
	if err := c.store.ReserveSlot(ctx, gameID, maxPlayers, now); err != nil {
		if errors.Is(err, store.ErrCapacityReached) {
			c.send(ctx, notify.Text(psid, msgLimitReached))
			c.logger.Info("join limit reached", "game_id", gameID, "max_players", maxPlayers)
			return JoinResult{}, store.ErrCapacityReached
		}
		return JoinResult{}, fmt.Errorf("reserving slot in %s: %w", gameID, err)
	}

	for attempt := 0; attempt < allocAttempts; attempt++ {
		lastID, err := c.store.LastPlayerID(ctx, gameID)
		if err != nil {
			c.rollbackSlot(ctx, gameID)
			return JoinResult{}, fmt.Errorf("reading last player id in %s: %w", gameID, err)
		}
		candidate := lastID + 1

		player := stand.Player{
			GameID:            gameID,
			PlayerID:          candidate,
			InstagramPSID:     psid,
			InstagramUsername: username,
			JoinedAt:          now,
			ValidationCode:    newValidationCode(),
			EligibleForGameID: gameID,
		}

		assign := c.registry.assigner(gameType)
		assignment, err := assign(ctx, c, AssignInput{
			Game:           game,
			PlayerID:       candidate,
			PSID:           psid,
			Username:       username,
			ValidationCode: player.ValidationCode,
		})
		if err != nil {
			c.rollbackSlot(ctx, gameID)
			return JoinResult{}, fmt.Errorf("assigning %s state: %w", gameType, err)
		}
		if assignment.State != nil {
			player.Type = stand.TypeState{gameType: assignment.State}
		}

		if err := c.store.CreatePlayer(ctx, player); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				// Lost the id race; the slot stays reserved for the retry.
				continue
			}
			c.rollbackSlot(ctx, gameID)
			return JoinResult{}, fmt.Errorf("creating player %d in %s: %w", candidate, gameID, err)
		}

		if len(assignment.Extra) > 0 {
			c.notify.Send(ctx, assignment.Extra)
		}
		if assignment.Welcome != "" {
			c.send(ctx, notify.Text(psid, assignment.Welcome))
		}
		if game.QuizEnabled() {
			c.StartQuiz(ctx, gameID, []string{psid})
		} else {
			c.send(ctx, notify.Text(psid, msgCodeTail(player.ValidationCode)))
		}

		c.logger.Info("join ok",
			"game_id", gameID,
			"game_type", gameType,
			"psid", psid,
			"player_id", candidate,
			"quiz_enabled", game.QuizEnabled(),
		)
		return JoinResult{CreatedNew: true, QuizEnabled: game.QuizEnabled(), Player: player}, nil
	}

	c.rollbackSlot(ctx, gameID)
	c.logger.Warn("join race exhausted", "game_id", gameID, "psid", psid)
	return JoinResult{}, ErrRetryExhausted
}

// playerByIdentity resolves a player by PSID, falling back to a partition
// scan when the indexed lookup errors. Partitions are small, so the scan is
// acceptable.
func (c *Coordinator) playerByIdentity(ctx context.Context, gameID, psid string) (stand.Player, bool) {
	p, err := c.store.PlayerByIdentity(ctx, gameID, psid)
	if err == nil {
		return p, true
	}
	if errors.Is(err, store.ErrNotFound) {
		return stand.Player{}, false
	}

	c.logger.Warn("identity lookup failed, scanning partition", "game_id", gameID, "error", err)
	players, err := c.store.ListPlayers(ctx, gameID)
	if err != nil {
		c.logger.Error("identity fallback scan failed", "game_id", gameID, "error", err)
		return stand.Player{}, false
	}
	for _, p := range players {
		if p.InstagramPSID == psid {
			return p, true
		}
	}
	return stand.Player{}, false
}

// rollbackSlot undoes a slot reservation. Best effort: a failed rollback is
// logged and accepted as counter drift rather than retried.
func (c *Coordinator) rollbackSlot(ctx context.Context, gameID string) {
	if err := c.store.ReleaseSlot(ctx, gameID, nowUTC()); err != nil {
		c.logger.Error("slot rollback failed", "game_id", gameID, "error", err)
	}
}

func (c *Coordinator) send(ctx context.Context, m notify.Message) {
	if m.Recipient == "" || m.Recipient == "#" {
		return
	}
	c.notify.Send(ctx, []notify.Message{m})
}
