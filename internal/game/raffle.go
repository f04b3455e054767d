package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

// ErrInvalidWinnerCount rejects draws asking for zero or negative winners.
var ErrInvalidWinnerCount = errors.New("invalid number of winners")

// DrawResult summarizes one raffle run.
type DrawResult struct {
	GameID           string               `json:"gameId"`
	GameType         string               `json:"gameType"`
	OnlyValidated    bool                 `json:"onlyValidated"`
	RequestedWinners int                  `json:"requestedWinners"`
	SelectedWinners  int                  `json:"selectedWinners"`
	Winners          []string             `json:"winners"`
	WinnerRecords    []stand.RaffleWinner `json:"-"`
	NotifiedPlayers  int                  `json:"notifiedPlayers"`
	CandidatePlayers int                  `json:"candidatePlayers"`
}

// Draw samples winners uniformly without replacement from the currently
// eligible players and removes each winner from future draws in the same
// guarded write that records the win. A sampled player whose eligibility was
// cleared by a concurrent draw is dropped, never double-awarded. The winner
// list is persisted on the game for polling clients, then the whole game
// hears the drumroll sequence and each winner gets the prize message.
func (c *Coordinator) Draw(ctx context.Context, gameID string, numberOfWinners int, onlyValidated bool) (DrawResult, error) {
	if numberOfWinners <= 0 {
		return DrawResult{}, ErrInvalidWinnerCount
	}

	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DrawResult{}, ErrGameNotFound
		}
		return DrawResult{}, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	if !game.IsActive {
		return DrawResult{}, ErrGameInactive
	}
	gameType := strings.ToUpper(game.GameType)

	all, err := c.store.ListPlayers(ctx, gameID)
	if err != nil {
		return DrawResult{}, fmt.Errorf("listing players in %s: %w", gameID, err)
	}
	var notifiable []stand.Player
	for _, p := range all {
		if p.PlayerID > 0 && p.Notifiable() {
			notifiable = append(notifiable, p)
		}
	}

	eligible := c.eligiblePlayers(ctx, gameID, gameType, all)

	var candidates []stand.Player
	for _, p := range eligible {
		if p.PlayerID <= 0 || !p.Notifiable() {
			continue
		}
		if onlyValidated && !p.Validated {
			continue
		}
		candidates = append(candidates, p)
	}

	result := DrawResult{
		GameID:           gameID,
		GameType:         gameType,
		OnlyValidated:    onlyValidated,
		RequestedWinners: numberOfWinners,
		Winners:          []string{},
		NotifiedPlayers:  len(notifiable),
		CandidatePlayers: len(candidates),
	}
	if len(candidates) == 0 {
		return result, nil
	}

	k := min(numberOfWinners, len(candidates))
	winTime := nowUTC()

	// Mark each sampled winner before announcing anything. The guarded write
	// is the arbiter under concurrent draws: losing it means another draw
	// already awarded this player, so we skip them here.
	var winners []stand.Player
	for _, idx := range rand.Perm(len(candidates))[:k] {
		p := candidates[idx]
		if err := c.store.MarkRaffleWinner(ctx, gameID, p.PlayerID, gameType, winTime); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				c.logger.Info("raffle candidate already drawn elsewhere", "game_id", gameID, "player_id", p.PlayerID)
				continue
			}
			c.logger.Error("raffle winner write failed", "game_id", gameID, "player_id", p.PlayerID, "error", err)
			continue
		}
		winners = append(winners, p)
	}

	records := make([]stand.RaffleWinner, 0, len(winners))
	names := make([]string, 0, len(winners))
	for _, w := range winners {
		name := w.InstagramUsername
		if name == "" {
			name = fmt.Sprintf("Jugador %d", w.PlayerID)
		}
		names = append(names, name)
		records = append(records, stand.RaffleWinner{
			PlayerID:          w.PlayerID,
			InstagramUsername: w.InstagramUsername,
			InstagramPSID:     w.InstagramPSID,
			ValidationCode:    w.ValidationCode,
			WonAt:             winTime,
		})
	}
	result.SelectedWinners = len(winners)
	result.Winners = names
	result.WinnerRecords = records

	if err := c.store.SetRaffleWinners(ctx, gameID, records, onlyValidated, winTime); err != nil {
		c.logger.Error("raffle winners persist failed", "game_id", gameID, "error", err)
	}

	if len(winners) == 0 {
		return result, nil
	}

	label := raffleLabel(gameType)
	var batch []notify.Message
	for _, p := range notifiable {
		batch = append(batch, notify.Text(p.InstagramPSID, msgRaffleDrums(label)))
		for _, step := range raffleCountdown {
			batch = append(batch, notify.Text(p.InstagramPSID, step))
		}
		batch = append(batch, notify.Text(p.InstagramPSID, msgRaffleAnnounce(label, names)))
	}
	for _, w := range winners {
		batch = append(batch, notify.Text(w.InstagramPSID, msgRafflePrize(gameType, w.ValidationCode)))
	}
	c.notify.Send(ctx, batch)

	c.logger.Info("raffle drawn",
		"game_id", gameID,
		"game_type", gameType,
		"requested", numberOfWinners,
		"selected", len(winners),
		"candidates", len(candidates),
	)
	return result, nil
}

// eligiblePlayers queries the sparse eligibility index and falls back to
// filtering the full player set by the type-level flag when the index read
// fails.
func (c *Coordinator) eligiblePlayers(ctx context.Context, gameID, gameType string, all []stand.Player) []stand.Player {
	eligible, err := c.store.EligiblePlayers(ctx, gameID)
	if err == nil {
		return eligible
	}

	c.logger.Warn("eligibility index read failed, filtering all players", "game_id", gameID, "error", err)
	var out []stand.Player
	for _, p := range all {
		if p.RaffleEligible(gameType) {
			out = append(out, p)
		}
	}
	return out
}

func raffleLabel(gameType string) string {
	if gameType == "" {
		return "juego"
	}
	return strings.ToUpper(gameType[:1]) + strings.ToLower(gameType[1:])
}
