package game

import (
	"context"
	"fmt"
	"strings"
)

// welcomeTemplates holds the per-type welcome text, keyed uppercase. Types
// without a template fall back to the player-number message.
var welcomeTemplates = map[string]string{
	"T1MER":     "⏱️ ¡Bienvenid@ a T1mer, %s!\n\n",
	"RULET4":    "🎡 ¡Bienvenid@ a Rulet4, %s!\n\n",
	"SEMAFORO":  "🚦 ¡Bienvenid@ a SEMÁFORO, %s!\n\n",
	"INFOCARDS": "📇 ¡Bienvenid@ a Infocards, %s!\n\n",
}

// commonTypeFields is the baseline type.<GAMETYPE> state for any game type
// without a dedicated assigner.
func commonTypeFields() map[string]any {
	return map[string]any{
		"raffleEligible":      true,
		"quizRequired":        false,
		"quizCompleted":       false,
		"quizCurrentQuestion": nil,
		"quizAnswers":         map[string]any{},
	}
}

func assignGeneric(_ context.Context, _ *Coordinator, in AssignInput) (Assignment, error) {
	gameType := strings.ToUpper(in.Game.GameType)

	welcome := fmt.Sprintf("¡Te has unido al juego! ✅\nTu número de jugador es: %d", in.PlayerID)
	if tpl, ok := welcomeTemplates[gameType]; ok {
		welcome = fmt.Sprintf(tpl, in.Username)
	}

	return Assignment{State: commonTypeFields(), Welcome: welcome}, nil
}

// validateGeneric is the fallback for unregistered types: single-code
// redemption with the type name as the label.
func validateGeneric(ctx context.Context, c *Coordinator, in ValidateInput) ValidationResult {
	gameType := strings.ToUpper(in.Game.GameType)
	label := gameType
	if label == "" {
		label = "juego"
	}
	return validateSingleCode(ctx, c, in, label)
}
