// Package stand defines the core domain types for the game platform.
// It has no external dependencies.
package stand

import "time"

// GameType names are always stored and compared uppercase.
const (
	GameTypeEmpareja2 = "EMPAREJA2"
	GameTypeT1mer     = "T1MER"
	GameTypeRulet4    = "RULET4"
	GameTypeSemaforo  = "SEMAFORO"
	GameTypeInfocards = "INFOCARDS"
)

// SupportedGameTypes lists the types a game can be created with.
var SupportedGameTypes = map[string]bool{
	GameTypeEmpareja2: true,
	GameTypeT1mer:     true,
	GameTypeRulet4:    true,
	GameTypeSemaforo:  true,
	GameTypeInfocards: true,
}

// Game is one configured play session, keyed by its short join code.
type Game struct {
	GameID         string
	GameName       string
	GameType       string
	OwnerUserID    string
	IsActive       bool
	MaxPlayers     int
	PlayersCount   int
	ValidatedCount int

	QuizOrder     []string
	QuizQuestions map[string]QuizQuestion

	RaffleWinners       []RaffleWinner
	RaffleLastRunAt     *time.Time
	RaffleOnlyValidated bool

	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastJoinAt      *time.Time
	LastValidatedAt *time.Time
}

// QuizEnabled reports whether the game has a configured question order.
func (g Game) QuizEnabled() bool {
	return len(g.QuizOrder) > 0
}

type QuizQuestion struct {
	Text    string       `json:"text"`
	Options []QuizOption `json:"options"`
}

type QuizOption struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// RaffleWinner is the summary persisted on the game record for polling clients.
type RaffleWinner struct {
	PlayerID          int       `json:"playerId"`
	InstagramUsername string    `json:"instagramUsername"`
	InstagramPSID     string    `json:"instagramPSID"`
	ValidationCode    int       `json:"validationCode,omitempty"`
	WonAt             time.Time `json:"wonAt"`
}

// Player is one participant's record within a game. PlayerID is a positive
// integer, unique within the game and assigned sequentially at join time.
type Player struct {
	GameID            string
	PlayerID          int
	InstagramPSID     string
	InstagramUsername string
	JoinedAt          time.Time
	Validated         bool
	ValidatedAt       *time.Time
	ValidationCode    int

	// EligibleForGameID is the sparse raffle-eligibility marker: it holds the
	// game id while the player can still be drawn and is cleared for good the
	// moment the player wins. Empty means "not in the eligible index".
	EligibleForGameID string

	// Type holds per-game-type state keyed by uppercase game type name.
	Type TypeState
}

// TypeState is the flexible per-game-type state map. Nested values are the
// JSON-decoded shapes written by assigners and engines.
type TypeState map[string]map[string]any

// Blob returns the state map for the given game type, or nil.
func (t TypeState) Blob(gameType string) map[string]any {
	if t == nil {
		return nil
	}
	return t[gameType]
}

// QuizRequired reports whether the player must finish the quiz before
// validation. Missing means not required.
func (p Player) QuizRequired(gameType string) bool {
	v, _ := p.Type.Blob(gameType)["quizRequired"].(bool)
	return v
}

// QuizCompleted reports whether the player finished the quiz. Missing means no.
func (p Player) QuizCompleted(gameType string) bool {
	v, _ := p.Type.Blob(gameType)["quizCompleted"].(bool)
	return v
}

// QuizCurrentQuestion returns the id of the question the player is on, or ""
// when the quiz has not started or is complete.
func (p Player) QuizCurrentQuestion(gameType string) string {
	v, _ := p.Type.Blob(gameType)["quizCurrentQuestion"].(string)
	return v
}

// QuizAnswers returns the recorded question id → answer id map, never nil.
func (p Player) QuizAnswers(gameType string) map[string]string {
	out := map[string]string{}
	raw, _ := p.Type.Blob(gameType)["quizAnswers"].(map[string]any)
	for qid, ans := range raw {
		if s, ok := ans.(string); ok {
			out[qid] = s
		}
	}
	return out
}

// RaffleEligible reports the type-level eligibility flag. Absent means true:
// every player starts eligible and only an explicit win or disqualification
// flips the flag.
func (p Player) RaffleEligible(gameType string) bool {
	blob := p.Type.Blob(gameType)
	if blob == nil {
		return true
	}
	v, ok := blob["raffleEligible"].(bool)
	if !ok {
		return true
	}
	return v
}

// Notifiable reports whether the player has a deliverable identity token.
func (p Player) Notifiable() bool {
	return p.InstagramPSID != "" && p.InstagramPSID != "#"
}

// Character is one entry of a pairing catalog (EMPAREJA2): two characters
// share a PairID and differ in CharacterID.
type Character struct {
	CatalogID     string `json:"catalogId"`
	PairID        string `json:"pairId"`
	CharacterID   int    `json:"characterId"`
	CharacterName string `json:"characterName"`
	ImageURL      string `json:"imageUrl,omitempty"`
}
