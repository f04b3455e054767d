package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

type fakeStore struct {
	store.Store
	items map[string][]stand.Character
	reads int
}

func (f *fakeStore) ListCatalog(_ context.Context, catalogID string) ([]stand.Character, error) {
	f.reads++
	return f.items[catalogID], nil
}

func (f *fakeStore) PutCatalog(_ context.Context, items []stand.Character) error {
	if len(items) == 0 {
		return nil
	}
	f.items[items[0].CatalogID] = items
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// A redis client pointed at a closed port: every operation fails fast.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	})
}

func TestCharactersWithoutCache(t *testing.T) {
	fs := &fakeStore{items: map[string][]stand.Character{
		DefaultCatalogID: {
			{CatalogID: DefaultCatalogID, PairID: "P1", CharacterID: 1, CharacterName: "Romeo"},
			{CatalogID: DefaultCatalogID, PairID: "P1", CharacterID: 2, CharacterName: "Julieta"},
		},
	}}
	svc := New(fs, nil, time.Hour, testLogger())

	// Empty catalog ID resolves to the default.
	items, err := svc.Characters(context.Background(), "")
	if err != nil {
		t.Fatalf("Characters: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d characters, want 2", len(items))
	}
	if fs.reads != 1 {
		t.Fatalf("store reads = %d, want 1", fs.reads)
	}
}

func TestCharactersSurvivesBrokenCache(t *testing.T) {
	fs := &fakeStore{items: map[string][]stand.Character{
		"CUSTOM#v2": {{CatalogID: "CUSTOM#v2", PairID: "P7", CharacterID: 1, CharacterName: "Thelma"}},
	}}
	svc := New(fs, deadRedis(), time.Hour, testLogger())

	items, err := svc.Characters(context.Background(), "CUSTOM#v2")
	if err != nil {
		t.Fatalf("Characters: %v", err)
	}
	if len(items) != 1 || items[0].CharacterName != "Thelma" {
		t.Fatalf("got %+v", items)
	}
}

func TestReplaceStampsCatalogID(t *testing.T) {
	fs := &fakeStore{items: map[string][]stand.Character{}}
	svc := New(fs, nil, time.Hour, testLogger())

	err := svc.Replace(context.Background(), "CUSTOM#v2", []stand.Character{
		{PairID: "P1", CharacterID: 1, CharacterName: "Batman"},
		{PairID: "P1", CharacterID: 2, CharacterName: "Robin"},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	for _, c := range fs.items["CUSTOM#v2"] {
		if c.CatalogID != "CUSTOM#v2" {
			t.Fatalf("character %q kept catalog id %q", c.CharacterName, c.CatalogID)
		}
	}
}
