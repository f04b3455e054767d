package game

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/standgames/stand/internal/stand"
)

func joinN(t *testing.T, c *Coordinator, gameID string, n int) []stand.Player {
	t.Helper()
	players := make([]stand.Player, 0, n)
	for i := 1; i <= n; i++ {
		res, err := c.Join(context.Background(), gameID, fmt.Sprintf("psid-%02d", i), fmt.Sprintf("@user%02d", i))
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		players = append(players, res.Player)
	}
	return players
}

func TestDrawSelectsDistinctWinners(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "880000", GameType: stand.GameTypeT1mer, IsActive: true, MaxPlayers: 20})
	joinN(t, c, "880000", 6)

	res, err := c.Draw(ctx, "880000", 3, false)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if res.SelectedWinners != 3 || res.CandidatePlayers != 6 {
		t.Fatalf("draw = %+v", res)
	}

	seen := map[string]bool{}
	for _, w := range res.Winners {
		if seen[w] {
			t.Fatalf("winner %q selected twice", w)
		}
		seen[w] = true
	}

	// Winners are persisted on the game for polling clients.
	game, _ := st.GetGame(ctx, "880000")
	if len(game.RaffleWinners) != 3 {
		t.Fatalf("persisted winners = %d", len(game.RaffleWinners))
	}
	if game.RaffleLastRunAt == nil {
		t.Fatal("raffleLastRunAt not set")
	}
}

func TestDrawRequestsMoreThanCandidates(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "881111", GameType: stand.GameTypeT1mer, IsActive: true, MaxPlayers: 10})
	joinN(t, c, "881111", 2)

	res, err := c.Draw(ctx, "881111", 5, false)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if res.SelectedWinners != 2 {
		t.Fatalf("selected %d winners from 2 candidates", res.SelectedWinners)
	}
}

func TestRedrawNeverRepeatsWinners(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "882222", GameType: stand.GameTypeT1mer, IsActive: true, MaxPlayers: 20})
	joinN(t, c, "882222", 5)

	won := map[string]bool{}
	for round := 0; round < 3; round++ {
		res, err := c.Draw(ctx, "882222", 2, false)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		for _, w := range res.Winners {
			if won[w] {
				t.Fatalf("round %d re-selected prior winner %q", round, w)
			}
			won[w] = true
		}
	}
	// 5 candidates, 3 rounds of 2: the last round has only 1 left.
	if len(won) != 5 {
		t.Fatalf("total distinct winners = %d, want 5", len(won))
	}

	// Everyone has left the eligibility index.
	eligible, err := st.EligiblePlayers(ctx, "882222")
	if err != nil {
		t.Fatalf("EligiblePlayers: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatalf("%d players still eligible after exhaustion", len(eligible))
	}

	// A further draw finds no candidates and does nothing.
	res, err := c.Draw(ctx, "882222", 1, false)
	if err != nil || res.SelectedWinners != 0 || res.CandidatePlayers != 0 {
		t.Fatalf("post-exhaustion draw = %+v, %v", res, err)
	}
}

func TestDrawOnlyValidatedFilter(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "883333", GameType: stand.GameTypeT1mer, IsActive: true, MaxPlayers: 10})
	players := joinN(t, c, "883333", 4)

	// Validate only the first player.
	if res, err := c.Validate(ctx, "883333", []string{codeOf(players[0])}); err != nil || !res.Valid {
		t.Fatalf("validate: %+v, %v", res, err)
	}

	res, err := c.Draw(ctx, "883333", 3, true)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if res.CandidatePlayers != 1 || res.SelectedWinners != 1 {
		t.Fatalf("onlyValidated draw = %+v", res)
	}
	if res.Winners[0] != players[0].InstagramUsername {
		t.Fatalf("winner = %q, want %q", res.Winners[0], players[0].InstagramUsername)
	}
}

func TestDrawBroadcastSequence(t *testing.T) {
	c, st, rec := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "884444", GameType: stand.GameTypeRulet4, IsActive: true, MaxPlayers: 10})
	joinN(t, c, "884444", 3)

	res, err := c.Draw(ctx, "884444", 1, false)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if res.NotifiedPlayers != 3 || res.SelectedWinners != 1 {
		t.Fatalf("draw = %+v", res)
	}

	// Every player hears drums, countdown and announcement in that order.
	for i := 1; i <= 3; i++ {
		psid := fmt.Sprintf("psid-%02d", i)
		texts := rec.TextsFor(psid)

		var idx int
		for ; idx < len(texts); idx++ {
			if strings.Contains(texts[idx], "🥁") {
				break
			}
		}
		if idx == len(texts) {
			t.Fatalf("%s never heard the drumroll: %v", psid, texts)
		}
		rest := texts[idx:]
		if len(rest) < 5 || rest[1] != "3️⃣..." || rest[2] != "2️⃣..." || rest[3] != "1️⃣..." {
			t.Fatalf("%s broadcast out of order: %v", psid, rest)
		}
		if !strings.Contains(rest[4], "ganadoras") {
			t.Fatalf("%s missing announcement: %v", psid, rest)
		}
	}

	// Exactly one prize message went out.
	var prizes int
	for _, m := range rec.Messages() {
		if strings.Contains(m.Text, "Te ha tocado premio") {
			prizes++
		}
	}
	if prizes != 1 {
		t.Fatalf("prize messages = %d, want 1", prizes)
	}
}

func TestDrawRejectsBadInput(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "885555", GameType: stand.GameTypeT1mer, IsActive: true, MaxPlayers: 5})

	if _, err := c.Draw(ctx, "885555", 0, false); err != ErrInvalidWinnerCount {
		t.Fatalf("zero winners: %v", err)
	}
	if _, err := c.Draw(ctx, "886666", 1, false); err != ErrGameNotFound {
		t.Fatalf("unknown game: %v", err)
	}
}
