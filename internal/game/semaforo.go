package game

import (
	"context"
	"fmt"

	"github.com/standgames/stand/internal/stand"
)

// assignSemaforo seeds the onboarding walk; the validation code is revealed
// only after onboarding completes.
func assignSemaforo(_ context.Context, _ *Coordinator, in AssignInput) (Assignment, error) {
	state := map[string]any{
		"onboarding": map[string]any{
			"stepIndex": 0,
			"completed": false,
		},
		"color":       nil, // ROJO | AMARILLO | VERDE
		"quizAnswers": map[string]any{},
	}
	return Assignment{
		State:   state,
		Welcome: fmt.Sprintf("🚦 ¡Bienvenid@ a SEMÁFORO, %s!\n\n", in.Username),
	}, nil
}

// validateSemaforo redeems a pair of codes. Unlike EMPAREJA2 there is no
// pair assignment to check, but when the game has a quiz both players must
// have completed it.
func validateSemaforo(ctx context.Context, c *Coordinator, in ValidateInput) ValidationResult {
	gameID := in.Game.GameID
	gameType := stand.GameTypeSemaforo

	p1, p2, failed := checkPairCodes(ctx, c, in, "SEMAFORO")
	if failed != nil {
		return *failed
	}

	if p1.Validated || p2.Validated {
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonAlreadyValidated, Message: "Alguno de los dos códigos ya fue validado."}
	}

	if in.Game.QuizEnabled() {
		done1 := p1.QuizCompleted(gameType)
		done2 := p2.QuizCompleted(gameType)
		if !done1 || !done2 {
			return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonQuizNotCompleted, Message: "Alguno aún no ha completado el quiz."}
		}
	}

	c.markValidated(ctx, gameID, p1.PlayerID)
	c.markValidated(ctx, gameID, p2.PlayerID)

	return ValidationResult{
		Valid:   true,
		GameID:  gameID,
		Message: "✅ Validación correcta.",
		Players: []ValidatedPlayer{
			{PlayerID: p1.PlayerID, InstagramUsername: p1.InstagramUsername},
			{PlayerID: p2.PlayerID, InstagramUsername: p2.InstagramUsername},
		},
	}
}
