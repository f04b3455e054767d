// Package store provides typed access to the Games and Players collections
// and the conditional-write primitives the game engines coordinate through.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/standgames/stand/internal/stand"
)

var (
	// ErrNotFound is returned when a game or player does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConditionFailed is returned when a conditional write's guard did not
	// hold: a create hit an existing key, a guarded update matched no row, or
	// a path write went through a missing parent. Callers interpret it as an
	// expected race or an idempotent "already done", never as a failure to
	// propagate raw.
	ErrConditionFailed = errors.New("conditional check failed")

	// ErrCapacityReached is returned by ReserveSlot when the capacity guard
	// playersCount < maxPlayers did not hold.
	ErrCapacityReached = errors.New("player limit reached")
)

// PlayerKey identifies one player record.
type PlayerKey struct {
	GameID   string
	PlayerID int
}

// Store is the contract the engines require from the backing store. All
// multi-writer coordination goes through the conditional methods; plain
// reads and writes carry no guarantees beyond single-statement atomicity.
type Store interface {
	// CreateGame writes a new game guarded by "gameId not already present".
	CreateGame(ctx context.Context, g stand.Game) error
	GetGame(ctx context.Context, gameID string) (stand.Game, error)
	ListGames(ctx context.Context) ([]stand.Game, error)
	DeleteGame(ctx context.Context, gameID string) error
	SetGameActive(ctx context.Context, gameID string, active bool, now time.Time) error

	// ReserveSlot atomically increments playersCount only while it is below
	// maxPlayers. ErrCapacityReached means the game is full and nothing
	// changed. ReleaseSlot rolls a reservation back.
	ReserveSlot(ctx context.Context, gameID string, maxPlayers int, now time.Time) error
	ReleaseSlot(ctx context.Context, gameID string, now time.Time) error
	AddValidatedCount(ctx context.Context, gameID string, n int, now time.Time) error

	SetQuizMeta(ctx context.Context, gameID string, order []string, questions map[string]stand.QuizQuestion, now time.Time) error
	SetRaffleWinners(ctx context.Context, gameID string, winners []stand.RaffleWinner, onlyValidated bool, at time.Time) error

	// CreatePlayer writes a new player guarded by "(gameId, playerId) not
	// already present"; ErrConditionFailed signals an allocation race.
	CreatePlayer(ctx context.Context, p stand.Player) error
	GetPlayer(ctx context.Context, gameID string, playerID int) (stand.Player, error)
	PlayerByIdentity(ctx context.Context, gameID, psid string) (stand.Player, error)
	LastPlayerID(ctx context.Context, gameID string) (int, error)
	ListPlayers(ctx context.Context, gameID string) ([]stand.Player, error)
	PlayersByCode(ctx context.Context, gameID string, code int) ([]stand.Player, error)

	// EligiblePlayers queries the sparse eligibility index and hydrates the
	// matching records via batched point-reads.
	EligiblePlayers(ctx context.Context, gameID string) ([]stand.Player, error)
	BatchGetPlayers(ctx context.Context, keys []PlayerKey) ([]stand.Player, error)

	// SetValidated flips the write-once validated flag; ErrConditionFailed
	// means it was already set.
	SetValidated(ctx context.Context, gameID string, playerID int, at time.Time) error

	// EnsureTypePath makes type and type.<GAMETYPE> exist as maps without
	// overwriting existing state. Nested field writes reject a missing
	// parent path, so callers ensure before they set.
	EnsureTypePath(ctx context.Context, gameID string, playerID int, gameType string) error
	SetTypeFields(ctx context.Context, gameID string, playerID int, gameType string, fields map[string]any) error
	SetQuizAnswer(ctx context.Context, gameID string, playerID int, gameType, questionID, answerID string, now time.Time) error

	// MarkRaffleWinner records the win and clears the sparse eligibility
	// marker in one guarded write; ErrConditionFailed means the player was
	// no longer eligible (a concurrent draw got there first).
	MarkRaffleWinner(ctx context.Context, gameID string, playerID int, gameType string, at time.Time) error

	ListCatalog(ctx context.Context, catalogID string) ([]stand.Character, error)
	PutCatalog(ctx context.Context, items []stand.Character) error
}
