package game

import (
	"context"
	"strings"
	"sync"

	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/stand"
)

// AssignInput is what an assigner sees for a joining player. The player
// record does not exist yet; the assigner's state is merged into the create.
type AssignInput struct {
	Game           stand.Game
	PlayerID       int
	PSID           string
	Username       string
	ValidationCode int
}

// Assignment is an assigner's output: the state written under
// type.<GAMETYPE>, an optional welcome text, and extra messages (images,
// onboarding) sent before the welcome.
type Assignment struct {
	State   map[string]any
	Welcome string
	Extra   []notify.Message
}

// ValidateInput is what a validator sees for a redemption attempt.
type ValidateInput struct {
	Game  stand.Game
	Codes []string
}

// ValidationResult is the structured outcome returned to the checkpoint
// client. Reason is one of the Reason* constants when Valid is false.
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	GameID      string            `json:"gameId"`
	Reason      string            `json:"reason,omitempty"`
	Message     string            `json:"message"`
	PlayerID    int               `json:"playerId,omitempty"`
	Username    string            `json:"username,omitempty"`
	ValidatedAt string            `json:"validatedAt,omitempty"`
	PairID      string            `json:"pairId,omitempty"`
	Players     []ValidatedPlayer `json:"players,omitempty"`
	Found       map[string]bool   `json:"found,omitempty"`
}

type ValidatedPlayer struct {
	PlayerID          int    `json:"playerId"`
	InstagramUsername string `json:"instagramUsername"`
	CharacterID       int    `json:"characterId,omitempty"`
	CharacterName     string `json:"characterName,omitempty"`
	CharacterImageURL string `json:"characterImageUrl,omitempty"`
}

// Validator reason codes.
const (
	ReasonInvalidCodeCount  = "invalid_code_count"
	ReasonInvalidCodeFormat = "invalid_code_format"
	ReasonInvalidCodes      = "invalid_codes"
	ReasonSameCode          = "same_code"
	ReasonCodeNotFound      = "code_not_found"
	ReasonAlreadyValidated  = "already_validated"
	ReasonMissingPairData   = "missing_pair_data"
	ReasonSameCharacter     = "same_character"
	ReasonDifferentPair     = "different_pair"
	ReasonQuizNotCompleted  = "quiz_not_completed"
	ReasonNoCodeMatch       = "no_code_match"
	ReasonNoMatch           = "no_match"
	ReasonUnknownGame       = "unknown_game"
)

// Assigner computes a joining player's initial per-type state and onboarding
// messages. Validator adjudicates a redemption attempt; it performs its own
// store writes through the coordinator and never returns a raw error to the
// player channel.
type (
	Assigner  func(ctx context.Context, c *Coordinator, in AssignInput) (Assignment, error)
	Validator func(ctx context.Context, c *Coordinator, in ValidateInput) ValidationResult
)

// Registry maps uppercase game-type names to their assigner/validator pair.
// Unregistered types resolve to the generic pair, so new game types never
// require touching the join, quiz, or raffle flows.
type Registry struct {
	mu         sync.RWMutex
	assigners  map[string]Assigner
	validators map[string]Validator
}

func NewRegistry() *Registry {
	return &Registry{
		assigners:  make(map[string]Assigner),
		validators: make(map[string]Validator),
	}
}

// DefaultRegistry returns a registry with the built-in game types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(stand.GameTypeEmpareja2, assignEmpareja2, validateEmpareja2)
	r.Register(stand.GameTypeT1mer, assignT1mer, validateT1mer)
	r.Register(stand.GameTypeRulet4, assignRulet4, validateRulet4)
	r.Register(stand.GameTypeSemaforo, assignSemaforo, validateSemaforo)
	return r
}

func (r *Registry) Register(gameType string, a Assigner, v Validator) {
	key := strings.ToUpper(gameType)
	r.mu.Lock()
	defer r.mu.Unlock()
	if a != nil {
		r.assigners[key] = a
	}
	if v != nil {
		r.validators[key] = v
	}
}

func (r *Registry) assigner(gameType string) Assigner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.assigners[strings.ToUpper(gameType)]; ok {
		return a
	}
	return assignGeneric
}

func (r *Registry) validator(gameType string) Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.validators[strings.ToUpper(gameType)]; ok {
		return v
	}
	return validateGeneric
}
