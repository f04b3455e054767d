package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/stand"
)

// assignEmpareja2 draws a random character from the pairing catalog and
// tells the player who to find. The character image, when the catalog has
// one, goes out before the welcome text.
func assignEmpareja2(ctx context.Context, c *Coordinator, in AssignInput) (Assignment, error) {
	items, err := c.catalog.Characters(ctx, "")
	if err != nil {
		return Assignment{}, fmt.Errorf("loading pairing catalog: %w", err)
	}
	if len(items) == 0 {
		return Assignment{}, errors.New("pairing catalog is empty")
	}

	chosen := items[rand.IntN(len(items))]
	partner := partnerName(items, chosen)

	state := map[string]any{
		"characterId":    chosen.CharacterID,
		"characterName":  chosen.CharacterName,
		"pairId":         chosen.PairID,
		"partnerName":    partner,
		"raffleEligible": true,
		"quizAnswers":    map[string]any{},
	}

	var extra []notify.Message
	if chosen.ImageURL != "" {
		extra = append(extra, notify.Image(in.PSID, chosen.ImageURL))
	}

	welcome := fmt.Sprintf("👋 ¡Hola %s!\n\nTe toca: %s.\nTu misión es encontrar a: %s.\n\n",
		in.Username, chosen.CharacterName, partner)

	return Assignment{State: state, Welcome: welcome, Extra: extra}, nil
}

// partnerName finds the other character of the chosen one's pair.
func partnerName(items []stand.Character, chosen stand.Character) string {
	for _, it := range items {
		if it.PairID == chosen.PairID && it.CharacterID != chosen.CharacterID {
			if it.CharacterName != "" {
				return it.CharacterName
			}
			break
		}
	}
	return "tu pareja"
}

// validateEmpareja2 redeems a pair: two distinct codes, both unvalidated,
// same pairId, different characterId. Both players are validated in one
// attempt and their quiz (if configured) starts immediately.
func validateEmpareja2(ctx context.Context, c *Coordinator, in ValidateInput) ValidationResult {
	gameID := in.Game.GameID

	p1, p2, failed := checkPairCodes(ctx, c, in, "Empareja2")
	if failed != nil {
		return *failed
	}

	if p1.Validated || p2.Validated {
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonAlreadyValidated, Message: "Alguno ya fue validado."}
	}

	t1 := p1.Type.Blob(stand.GameTypeEmpareja2)
	t2 := p2.Type.Blob(stand.GameTypeEmpareja2)
	pair1 := blobString(t1, "pairId")
	pair2 := blobString(t2, "pairId")
	if pair1 == "" || pair2 == "" {
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonMissingPairData, Message: "Faltan datos de emparejamiento."}
	}
	if blobInt(t1, "characterId") == blobInt(t2, "characterId") {
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonSameCharacter, Message: "No puedes validar contigo mismo 😉"}
	}
	if pair1 != pair2 {
		return ValidationResult{Valid: false, GameID: gameID, Reason: ReasonDifferentPair, Message: "No sois la pareja correcta 💘"}
	}

	c.markValidated(ctx, gameID, p1.PlayerID)
	c.markValidated(ctx, gameID, p2.PlayerID)

	var psids []string
	for _, p := range []stand.Player{p1, p2} {
		if p.Notifiable() {
			psids = append(psids, p.InstagramPSID)
		}
	}
	if len(psids) > 0 {
		batch := make([]notify.Message, 0, len(psids))
		for _, psid := range psids {
			batch = append(batch, notify.Text(psid, msgPairValidated))
		}
		c.notify.Send(ctx, batch)

		if in.Game.QuizEnabled() {
			if _, err := c.StartQuiz(ctx, gameID, psids); err != nil && !errors.Is(err, ErrNoQuizConfigured) {
				c.logger.Error("quiz start after pairing failed", "game_id", gameID, "error", err)
			}
		}
	}

	images := c.characterImages(ctx)
	return ValidationResult{
		Valid:   true,
		GameID:  gameID,
		PairID:  pair1,
		Message: msgPairValidated,
		Players: []ValidatedPlayer{
			validatedPlayer(p1, t1, images),
			validatedPlayer(p2, t2, images),
		},
	}
}

func validatedPlayer(p stand.Player, blob map[string]any, images map[string]string) ValidatedPlayer {
	name := blobString(blob, "characterName")
	return ValidatedPlayer{
		PlayerID:          p.PlayerID,
		InstagramUsername: p.InstagramUsername,
		CharacterID:       blobInt(blob, "characterId"),
		CharacterName:     name,
		CharacterImageURL: images[name],
	}
}

// characterImages maps character names to their catalog image URLs.
// Best effort: a catalog failure just means no images in the response.
func (c *Coordinator) characterImages(ctx context.Context) map[string]string {
	items, err := c.catalog.Characters(ctx, "")
	if err != nil {
		c.logger.Warn("catalog lookup for images failed", "error", err)
		return nil
	}
	out := make(map[string]string, len(items))
	for _, it := range items {
		if it.ImageURL != "" {
			out[it.CharacterName] = it.ImageURL
		}
	}
	return out
}

func blobString(blob map[string]any, key string) string {
	switch v := blob[key].(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}

func blobInt(blob map[string]any, key string) int {
	switch v := blob[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
