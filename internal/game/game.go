// Package game implements the session coordinator: joining under a capacity
// limit, per-game-type assignment and validation, quiz progression, and the
// raffle draw. All cross-writer coordination goes through the store's
// conditional writes; the package keeps no mutable state of its own.
package game

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/standgames/stand/internal/catalog"
	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/store"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameInactive = errors.New("game inactive")

	// ErrRetryExhausted means the player-id allocation lost the race six
	// times in a row. The slot reservation has been rolled back; the caller
	// may simply retry the join.
	ErrRetryExhausted = errors.New("player id allocation retries exhausted")
)

// allocAttempts bounds the player-id allocation retry loop.
const allocAttempts = 6

// Coordinator wires the engines to the store, the outbound dispatcher and the
// per-game-type plugin registry.
type Coordinator struct {
	store    store.Store
	notify   notify.Dispatcher
	catalog  *catalog.Service
	registry *Registry
	logger   *slog.Logger
}

func NewCoordinator(st store.Store, dispatcher notify.Dispatcher, cat *catalog.Service, reg *Registry, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    st,
		notify:   dispatcher,
		catalog:  cat,
		registry: reg,
		logger:   logger,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// newValidationCode returns a random 4-digit redemption code.
func newValidationCode() int {
	return rand.IntN(9000) + 1000
}
