package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

// Validate adjudicates a checkpoint redemption attempt through the game
// type's validator. Game-level failures (unknown id, inactive) surface as
// errors for the handler to map; everything the validator decides comes back
// as a structured ValidationResult.
func (c *Coordinator) Validate(ctx context.Context, gameID string, codes []string) (ValidationResult, error) {
	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ValidationResult{}, ErrGameNotFound
		}
		return ValidationResult{}, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	if !game.IsActive {
		return ValidationResult{}, ErrGameInactive
	}

	clean := make([]string, 0, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			clean = append(clean, code)
		}
	}

	validate := c.registry.validator(game.GameType)
	result := validate(ctx, c, ValidateInput{Game: game, Codes: clean})

	c.logger.Info("validate result",
		"game_id", gameID,
		"game_type", strings.ToUpper(game.GameType),
		"codes", clean,
		"valid", result.Valid,
		"reason", result.Reason,
	)
	return result, nil
}

func parseCode(code string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return 0, false
	}
	return n, true
}

// markValidated flips the write-once validated flag and bumps the game
// counter only when the flag actually transitioned. Returns false when the
// player was already validated.
func (c *Coordinator) markValidated(ctx context.Context, gameID string, playerID int) bool {
	if err := c.store.SetValidated(ctx, gameID, playerID, nowUTC()); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return false
		}
		c.logger.Error("validated flag write failed", "game_id", gameID, "player_id", playerID, "error", err)
		return false
	}
	if err := c.store.AddValidatedCount(ctx, gameID, 1, nowUTC()); err != nil {
		c.logger.Error("validated count update failed", "game_id", gameID, "error", err)
	}
	return true
}

// validateSingleCode is the one-code redemption shared by T1MER, RULET4 and
// the generic fallback: first unused code that clears the quiz gate wins.
func validateSingleCode(ctx context.Context, c *Coordinator, in ValidateInput, label string) ValidationResult {
	gameID := in.Game.GameID
	gameType := strings.ToUpper(in.Game.GameType)

	var numeric []int
	for _, raw := range in.Codes {
		if n, ok := parseCode(raw); ok {
			numeric = append(numeric, n)
		}
	}
	if len(numeric) == 0 {
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonInvalidCodes, Message: "Códigos inválidos."}
	}

	var foundAny, foundUsed, foundQuizMissing bool
	for _, code := range numeric {
		players, err := c.store.PlayersByCode(ctx, gameID, code)
		if err != nil {
			c.logger.Error("code lookup failed", "game_id", gameID, "error", err)
			continue
		}
		if len(players) > 0 {
			foundAny = true
		}

		for _, p := range players {
			if p.Validated {
				foundUsed = true
				continue
			}
			if p.QuizRequired(gameType) && !p.QuizCompleted(gameType) {
				foundQuizMissing = true
				continue
			}
			if !c.markValidated(ctx, gameID, p.PlayerID) {
				foundUsed = true
				continue
			}
			return ValidationResult{
				Valid:       true,
				GameID:      gameID,
				PlayerID:    p.PlayerID,
				Username:    p.InstagramUsername,
				ValidatedAt: nowUTC().Format(quizTimeLayout),
				Message:     fmt.Sprintf("✅ Validación correcta (%s).", label),
			}
		}
	}

	switch {
	case !foundAny:
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonNoCodeMatch, Message: "Nadie tiene ese código."}
	case foundQuizMissing && !foundUsed:
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonQuizNotCompleted, Message: "Ese jugador aún no ha completado el quiz."}
	case foundUsed:
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonAlreadyValidated, Message: "Ese código ya fue usado."}
	}
	return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonNoMatch, Message: "No hay jugador elegible con ese código."}
}

// pairByCodes resolves the two codes of a pairing validation to their
// players. The bool results report which codes matched.
func (c *Coordinator) pairByCodes(ctx context.Context, gameID string, c1, c2 int) (p1, p2 stand.Player, ok1, ok2 bool) {
	if players, err := c.store.PlayersByCode(ctx, gameID, c1); err == nil && len(players) > 0 {
		p1, ok1 = players[0], true
	}
	if players, err := c.store.PlayersByCode(ctx, gameID, c2); err == nil && len(players) > 0 {
		p2, ok2 = players[0], true
	}
	return p1, p2, ok1, ok2
}

// checkPairCodes runs the shared prelude of the two-code validators: count,
// format, self-validation, and existence checks. A nil result means all
// checks passed.
func checkPairCodes(ctx context.Context, c *Coordinator, in ValidateInput, typeName string) (p1, p2 stand.Player, failed *ValidationResult) {
	gameID := in.Game.GameID

	if len(in.Codes) != 2 {
		return p1, p2, &ValidationResult{
			Valid: false, GameID: gameID, Reason: ReasonInvalidCodeCount,
			Message: fmt.Sprintf("%s necesita exactamente 2 códigos (has enviado %d).", typeName, len(in.Codes)),
		}
	}

	c1, ok1 := parseCode(in.Codes[0])
	c2, ok2 := parseCode(in.Codes[1])
	if !ok1 || !ok2 {
		return p1, p2, &ValidationResult{Valid: false, GameID: gameID, Reason: ReasonInvalidCodeFormat, Message: "Códigos inválidos."}
	}
	if c1 == c2 {
		return p1, p2, &ValidationResult{Valid: false, GameID: gameID, Reason: ReasonSameCode, Message: "No puedes validar contigo mismo 😉"}
	}

	p1, p2, found1, found2 := c.pairByCodes(ctx, gameID, c1, c2)
	if !found1 || !found2 {
		return p1, p2, &ValidationResult{
			Valid: false, GameID: gameID, Reason: ReasonCodeNotFound,
			Message: "Uno (o los dos) códigos no existe en esta partida.",
			Found:   map[string]bool{"code_1": found1, "code_2": found2},
		}
	}
	return p1, p2, nil
}
