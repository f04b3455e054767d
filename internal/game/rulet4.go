package game

import (
	"context"
	"fmt"
)

func assignRulet4(_ context.Context, _ *Coordinator, in AssignInput) (Assignment, error) {
	state := map[string]any{
		"lastSpin":    nil,
		"spinUsed":    false,
		"quizAnswers": map[string]any{},
	}
	return Assignment{
		State:   state,
		Welcome: fmt.Sprintf("🎡 ¡Bienvenid@ a Rulet4, %s!\n\n", in.Username),
	}, nil
}

func validateRulet4(ctx context.Context, c *Coordinator, in ValidateInput) ValidationResult {
	return validateSingleCode(ctx, c, in, "Rulet4")
}
