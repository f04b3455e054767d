package game

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/standgames/stand/internal/stand"
)

func TestStoreScoreAndRanking(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "511001", GameType: stand.GameTypeT1mer, IsActive: true})

	for i := 1; i <= 4; i++ {
		psid := fmt.Sprintf("psid-%d", i)
		if _, err := c.Join(ctx, "511001", psid, "@"+psid); err != nil {
			t.Fatalf("join %s: %v", psid, err)
		}
	}

	// Players 1-3 submit runs; player 4 never does.
	runs := []struct {
		playerID int
		timer    float64
		score    int
	}{
		{1, 12.5, 300},
		{2, 9.8, 120},
		{3, 15.1, 450},
	}
	for _, run := range runs {
		rec, err := c.StoreScore(ctx, "511001", run.playerID, run.timer, run.score)
		if err != nil {
			t.Fatalf("storing score for player %d: %v", run.playerID, err)
		}
		if rec.Score != run.score || rec.Timer != run.timer {
			t.Fatalf("record = %+v, want timer %v score %d", rec, run.timer, run.score)
		}
		if rec.Username != fmt.Sprintf("@psid-%d", run.playerID) {
			t.Fatalf("record username = %q", rec.Username)
		}
		if _, err := time.Parse(quizTimeLayout, rec.ScoreUpdatedAt); err != nil {
			t.Fatalf("scoreUpdatedAt %q not parseable: %v", rec.ScoreUpdatedAt, err)
		}
	}

	entries, err := c.Ranking(ctx, "511001", 10)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ranking has %d entries, want 3 (player without a run excluded)", len(entries))
	}
	wantOrder := []int{2, 1, 3} // score ascending: 120, 300, 450
	for i, want := range wantOrder {
		e := entries[i]
		if e.PlayerID != want {
			t.Fatalf("rank %d playerId = %d, want %d (entries %+v)", i+1, e.PlayerID, want, entries)
		}
		if e.Rank != i+1 {
			t.Fatalf("entry %d rank = %d, want %d", i, e.Rank, i+1)
		}
	}

	// A resubmission overwrites the previous run and reorders the board.
	if _, err := c.StoreScore(ctx, "511001", 3, 7.2, 50); err != nil {
		t.Fatalf("resubmitting score: %v", err)
	}
	entries, err = c.Ranking(ctx, "511001", 10)
	if err != nil {
		t.Fatalf("ranking after resubmit: %v", err)
	}
	if entries[0].PlayerID != 3 || entries[0].Score != 50 || entries[0].Timer != 7.2 {
		t.Fatalf("top entry after resubmit = %+v", entries[0])
	}

	// Limit caps the board.
	entries, err = c.Ranking(ctx, "511001", 2)
	if err != nil {
		t.Fatalf("limited ranking: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("limited ranking has %d entries, want 2", len(entries))
	}
}

func TestStoreScoreRejections(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	ctx := context.Background()
	mustCreateGame(t, st, stand.Game{GameID: "511002", GameType: stand.GameTypeT1mer, IsActive: true})
	mustCreateGame(t, st, stand.Game{GameID: "511003", GameType: stand.GameTypeRulet4, IsActive: true})

	if _, err := c.Join(ctx, "511002", "psid-1", "@psid-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := c.StoreScore(ctx, "999999", 1, 10, 100); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("unknown game err = %v", err)
	}
	if _, err := c.StoreScore(ctx, "511002", 7, 10, 100); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("unknown player err = %v", err)
	}
	if _, err := c.StoreScore(ctx, "511003", 1, 10, 100); !errors.Is(err, ErrScoreUnsupported) {
		t.Fatalf("wrong type err = %v", err)
	}
	if _, err := c.Ranking(ctx, "511003", 10); !errors.Is(err, ErrScoreUnsupported) {
		t.Fatalf("wrong type ranking err = %v", err)
	}

	// An inactive game stops submissions but still serves its board.
	if _, err := c.StoreScore(ctx, "511002", 1, 10, 100); err != nil {
		t.Fatalf("store before deactivation: %v", err)
	}
	if err := st.SetGameActive(ctx, "511002", false, time.Now().UTC()); err != nil {
		t.Fatalf("deactivating: %v", err)
	}
	if _, err := c.StoreScore(ctx, "511002", 1, 8, 90); !errors.Is(err, ErrGameInactive) {
		t.Fatalf("inactive store err = %v", err)
	}
	entries, err := c.Ranking(ctx, "511002", 10)
	if err != nil {
		t.Fatalf("inactive ranking: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 100 {
		t.Fatalf("inactive ranking = %+v", entries)
	}
}
