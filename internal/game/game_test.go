package game

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/standgames/stand/internal/catalog"
	"github.com/standgames/stand/internal/database"
	"github.com/standgames/stand/internal/migrations"
	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

// newTestCoordinator builds a coordinator on a fresh on-disk database (WAL
// mode, so concurrent writers in tests behave like production) with a
// recording dispatcher.
func newTestCoordinator(t *testing.T) (*Coordinator, store.Store, *notify.Recorder) {
	t.Helper()

	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	st := store.NewSQLite(db)
	rec := &notify.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.New(st, nil, time.Hour, logger)
	c := NewCoordinator(st, rec, cat, DefaultRegistry(), logger)
	return c, st, rec
}

func mustCreateGame(t *testing.T, st store.Store, g stand.Game) stand.Game {
	t.Helper()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
		g.UpdatedAt = g.CreatedAt
	}
	if err := st.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("creating game %s: %v", g.GameID, err)
	}
	return g
}

func seedPairCatalog(t *testing.T, st store.Store) {
	t.Helper()
	err := st.PutCatalog(context.Background(), []stand.Character{
		{CatalogID: catalog.DefaultCatalogID, PairID: "P1", CharacterID: 1, CharacterName: "Romeo"},
		{CatalogID: catalog.DefaultCatalogID, PairID: "P1", CharacterID: 2, CharacterName: "Julieta"},
		{CatalogID: catalog.DefaultCatalogID, PairID: "P2", CharacterID: 3, CharacterName: "Batman"},
		{CatalogID: catalog.DefaultCatalogID, PairID: "P2", CharacterID: 4, CharacterName: "Robin"},
	})
	if err != nil {
		t.Fatalf("seeding catalog: %v", err)
	}
}

// End-to-end: two slots, no quiz. Two admissions, a capacity rejection, one
// successful validation, then an idempotent re-validation.
func TestFullSessionWithoutQuiz(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "483920", GameType: stand.GameTypeT1mer, IsActive: true, MaxPlayers: 2})

	resA, err := c.Join(ctx, "483920", "psid-a", "@ana")
	if err != nil {
		t.Fatalf("join A: %v", err)
	}
	if !resA.CreatedNew || resA.Player.PlayerID != 1 {
		t.Fatalf("join A = %+v", resA)
	}
	if resA.Player.ValidationCode < 1000 || resA.Player.ValidationCode > 9999 {
		t.Fatalf("validation code out of range: %d", resA.Player.ValidationCode)
	}

	resB, err := c.Join(ctx, "483920", "psid-b", "@bruno")
	if err != nil {
		t.Fatalf("join B: %v", err)
	}
	if resB.Player.PlayerID != 2 {
		t.Fatalf("join B playerId = %d, want 2", resB.Player.PlayerID)
	}

	if _, err := c.Join(ctx, "483920", "psid-c", "@carla"); err != store.ErrCapacityReached {
		t.Fatalf("join C error = %v, want ErrCapacityReached", err)
	}

	game, err := st.GetGame(ctx, "483920")
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if game.PlayersCount != 2 {
		t.Fatalf("playersCount = %d, want 2", game.PlayersCount)
	}

	code := fmt.Sprint(resA.Player.ValidationCode)
	first, err := c.Validate(ctx, "483920", []string{code})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !first.Valid || first.PlayerID != 1 {
		t.Fatalf("first validation = %+v", first)
	}

	second, err := c.Validate(ctx, "483920", []string{code})
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if second.Valid || second.Reason != ReasonAlreadyValidated {
		t.Fatalf("second validation = %+v, want already_validated", second)
	}

	game, _ = st.GetGame(ctx, "483920")
	if game.ValidatedCount != 1 {
		t.Fatalf("validatedCount = %d, want 1", game.ValidatedCount)
	}
}
