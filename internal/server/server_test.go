package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/standgames/stand/internal/catalog"
	"github.com/standgames/stand/internal/database"
	"github.com/standgames/stand/internal/game"
	"github.com/standgames/stand/internal/migrations"
	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

type testEnv struct {
	handler  http.Handler
	opts     Options
	recorder *notify.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewSQLite(db)
	rec := &notify.Recorder{}
	cat := catalog.New(st, nil, time.Hour, logger)
	coordinator := game.NewCoordinator(st, rec, cat, game.DefaultRegistry(), logger)

	if err := SeedAdmin(context.Background(), logger, db, "admin@example.com", "hunter22"); err != nil {
		t.Fatalf("seeding admin: %v", err)
	}
	if err := SeedCatalog(context.Background(), logger, cat); err != nil {
		t.Fatalf("seeding catalog: %v", err)
	}

	opts := Options{
		DB:          db,
		Store:       st,
		Games:       coordinator,
		Catalog:     cat,
		VerifyToken: "verify-secret",
		AppSenderID: "90001",
		Usernames: func(_ context.Context, psid string) (string, error) {
			return "user_" + psid, nil
		},
	}

	r := chi.NewRouter()
	addRoutes(r, logger, opts)

	return &testEnv{handler: r, opts: opts, recorder: rec}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

// login authenticates against the seeded admin and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/admin/login", AdminLoginRequest{
		Email:    "admin@example.com",
		Password: "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func (e *testEnv) createGame(t *testing.T, cookie *http.Cookie, req CreateGameRequest) GameResponse {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/admin/games", req, cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("create game status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[GameResponse](t, w)
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/admin/login", AdminLoginRequest{
		Email:    "admin@example.com",
		Password: "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/admin/me", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me without cookie status = %d", w.Code)
	}

	cookie := env.login(t)

	w = env.do(t, http.MethodGet, "/api/admin/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d", w.Code)
	}
	me := decode[AdminMeResponse](t, w)
	if me.Email != "admin@example.com" {
		t.Fatalf("me email = %q", me.Email)
	}

	w = env.do(t, http.MethodPost, "/api/admin/logout", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/admin/me", nil, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d", w.Code)
	}
}

func TestGameLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	g := env.createGame(t, cookie, CreateGameRequest{
		GameName:   "Feria T1mer",
		GameType:   "T1MER",
		MaxPlayers: 10,
	})
	if len(g.GameID) != 6 || strings.Trim(g.GameID, "0123456789") != "" {
		t.Fatalf("game id %q is not a six-digit code", g.GameID)
	}
	if !g.IsActive {
		t.Fatal("new game should default to active")
	}

	w := env.do(t, http.MethodGet, "/api/admin/games", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if games := decode[[]GameResponse](t, w); len(games) != 1 {
		t.Fatalf("listed %d games, want 1", len(games))
	}

	// Unsupported type and bad body are rejected.
	w = env.do(t, http.MethodPost, "/api/admin/games", CreateGameRequest{GameName: "x", GameType: "CHESS"}, cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported type status = %d", w.Code)
	}

	// Join through the public API.
	w = env.do(t, http.MethodPost, "/api/join", JoinRequest{GameID: g.GameID, PSID: "p-1", Username: "ana"})
	if w.Code != http.StatusOK {
		t.Fatalf("join status = %d, body = %s", w.Code, w.Body.String())
	}
	joined := decode[JoinResponse](t, w)
	if joined.PlayerID != 1 {
		t.Fatalf("playerId = %d, want 1", joined.PlayerID)
	}
	if joined.ValidationCode < 1000 || joined.ValidationCode > 9999 {
		t.Fatalf("validationCode = %d out of range", joined.ValidationCode)
	}

	w = env.do(t, http.MethodGet, "/api/admin/games/"+g.GameID+"/players", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("players status = %d", w.Code)
	}
	players := decode[[]PlayerSummary](t, w)
	if len(players) != 1 || players[0].InstagramUsername != "ana" {
		t.Fatalf("players = %+v", players)
	}

	// Deactivate, then joining conflicts.
	w = env.do(t, http.MethodPut, "/api/admin/games/"+g.GameID, UpdateGameRequest{IsActive: false}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}
	if updated := decode[GameResponse](t, w); updated.IsActive {
		t.Fatal("game still active after update")
	}

	w = env.do(t, http.MethodPost, "/api/join", JoinRequest{GameID: g.GameID, PSID: "p-2", Username: "leo"})
	if w.Code != http.StatusConflict {
		t.Fatalf("join inactive status = %d", w.Code)
	}

	// The public view needs no cookie.
	w = env.do(t, http.MethodGet, "/api/games/"+g.GameID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public game status = %d", w.Code)
	}
	if pub := decode[GameResponse](t, w); pub.PlayersCount != 1 {
		t.Fatalf("public playersCount = %d, want 1", pub.PlayersCount)
	}

	w = env.do(t, http.MethodDelete, "/api/admin/games/"+g.GameID, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/games/"+g.GameID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted game status = %d", w.Code)
	}
}

func TestGameOwnerGuard(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	g := env.createGame(t, cookie, CreateGameRequest{GameName: "g", GameType: "RULET4"})

	// A different admin's session must not see the game. The session row is
	// inserted directly, so the password hash is never checked.
	hash := "unused"
	if _, err := env.opts.DB.Exec(`
		INSERT INTO admins (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
	`, "other-admin", "other@example.com", hash, "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("inserting second admin: %v", err)
	}
	if _, err := env.opts.DB.Exec(`
		INSERT INTO admin_sessions (id, admin_id, created_at) VALUES (?, ?, ?)
	`, "other-session", "other-admin", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("inserting second session: %v", err)
	}
	other := &http.Cookie{Name: adminCookieName, Value: "other-session"}

	w := env.do(t, http.MethodGet, "/api/admin/games/"+g.GameID, nil, other)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign get status = %d, want 404", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/api/admin/games/"+g.GameID, nil, other)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want 404", w.Code)
	}
	if w = env.do(t, http.MethodGet, "/api/admin/games", nil, other); w.Code != http.StatusOK {
		t.Fatalf("foreign list status = %d", w.Code)
	}
	if games := decode[[]GameResponse](t, w); len(games) != 0 {
		t.Fatalf("foreign admin sees %d games, want 0", len(games))
	}
}

func TestWebhookVerify(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=12345", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Fatalf("challenge echo = %q", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("bad token status = %d", w.Code)
	}
}

func webhookText(psid, text string) map[string]any {
	return map[string]any{
		"object": "instagram",
		"entry": []map[string]any{{
			"messaging": []map[string]any{{
				"sender":  map[string]string{"id": psid},
				"message": map[string]any{"text": text},
			}},
		}},
	}
}

func webhookQuickReply(psid, payload string) map[string]any {
	return map[string]any{
		"object": "instagram",
		"entry": []map[string]any{{
			"messaging": []map[string]any{{
				"sender": map[string]string{"id": psid},
				"message": map[string]any{
					"text":        "Answer",
					"quick_reply": map[string]string{"payload": payload},
				},
			}},
		}},
	}
}

func TestWebhookFlow(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	g := env.createGame(t, cookie, CreateGameRequest{GameName: "Semana Rulet4", GameType: "RULET4"})

	quiz := ConfigureQuizRequest{Questions: []game.QuizQuestionInput{
		{ID: "q1", Text: "¿Color?", Options: []stand.QuizOption{
			{Title: "Rojo", Payload: g.GameID + "_q1_a"},
			{Title: "Azul", Payload: g.GameID + "_q1_b"},
		}},
	}}
	if w := env.do(t, http.MethodPut, "/api/admin/games/"+g.GameID+"/quiz", quiz, cookie); w.Code != http.StatusOK {
		t.Fatalf("configure quiz status = %d, body = %s", w.Code, w.Body.String())
	}

	// A six-digit text joins; anything else is ignored.
	if w := env.do(t, http.MethodPost, "/webhook", webhookText("psid-7", "hola")); w.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/webhook", webhookText("psid-7", g.GameID)); w.Code != http.StatusOK {
		t.Fatalf("webhook join status = %d", w.Code)
	}

	p, err := env.opts.Store.PlayerByIdentity(context.Background(), g.GameID, "psid-7")
	if err != nil {
		t.Fatalf("player not created by webhook: %v", err)
	}
	if p.InstagramUsername != "user_psid-7" {
		t.Fatalf("username = %q, want resolver output", p.InstagramUsername)
	}

	// The quiz started at join; a quick reply records the answer.
	if w := env.do(t, http.MethodPost, "/webhook", webhookQuickReply("psid-7", g.GameID+"_q1_a")); w.Code != http.StatusOK {
		t.Fatalf("webhook answer status = %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/admin/games/"+g.GameID+"/quiz", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	export := decode[game.QuizExport](t, w)
	if len(export.Players) != 1 || export.Players[0].QuizAnswers["q1"] != "a" {
		t.Fatalf("export players = %+v", export.Players)
	}
	if !export.Players[0].QuizCompleted {
		t.Fatal("single-question quiz should be completed after one answer")
	}

	// Echo events and events from the platform's own sender are dropped.
	echo := webhookText("psid-8", g.GameID)
	echo["entry"].([]map[string]any)[0]["messaging"].([]map[string]any)[0]["message"].(map[string]any)["is_echo"] = true
	if w := env.do(t, http.MethodPost, "/webhook", echo); w.Code != http.StatusOK {
		t.Fatalf("echo status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/webhook", webhookText("90001", g.GameID)); w.Code != http.StatusOK {
		t.Fatalf("self event status = %d", w.Code)
	}
	if _, err := env.opts.Store.PlayerByIdentity(context.Background(), g.GameID, "psid-8"); err == nil {
		t.Fatal("echo event must not join")
	}
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	g := env.createGame(t, cookie, CreateGameRequest{GameName: "v", GameType: "T1MER"})

	w := env.do(t, http.MethodPost, "/api/join", JoinRequest{GameID: g.GameID, PSID: "p-1", Username: "ana"})
	joined := decode[JoinResponse](t, w)

	w = env.do(t, http.MethodPost, "/api/validate", ValidateRequest{
		GameID: g.GameID,
		Code:   fmt.Sprintf(" %d ", joined.ValidationCode),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[game.ValidationResult](t, w)
	if !res.Valid {
		t.Fatalf("validate result = %+v", res)
	}

	w = env.do(t, http.MethodPost, "/api/validate", ValidateRequest{GameID: "000000", Codes: []string{"1234"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown game status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/validate", ValidateRequest{GameID: g.GameID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing codes status = %d", w.Code)
	}
}

func TestRaffleEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	g := env.createGame(t, cookie, CreateGameRequest{GameName: "r", GameType: "T1MER"})

	for i := 1; i <= 3; i++ {
		psid := fmt.Sprintf("p-%d", i)
		if w := env.do(t, http.MethodPost, "/api/join", JoinRequest{GameID: g.GameID, PSID: psid, Username: psid}); w.Code != http.StatusOK {
			t.Fatalf("join %s status = %d", psid, w.Code)
		}
	}

	w := env.do(t, http.MethodPost, "/api/admin/games/"+g.GameID+"/raffle", DrawRaffleRequest{NumberOfWinners: 0}, cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero winners status = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/admin/games/"+g.GameID+"/raffle", DrawRaffleRequest{NumberOfWinners: 2}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("draw status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[game.DrawResult](t, w)
	if res.SelectedWinners != 2 || len(res.Winners) != 2 {
		t.Fatalf("draw result = %+v", res)
	}

	// Winners show up on the public polling view.
	w = env.do(t, http.MethodGet, "/api/games/"+g.GameID, nil)
	if pub := decode[GameResponse](t, w); len(pub.RaffleWinners) != 2 {
		t.Fatalf("public winners = %d, want 2", len(pub.RaffleWinners))
	}
}

func TestScoreEndpoints(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	g := env.createGame(t, cookie, CreateGameRequest{GameName: "s", GameType: "T1MER"})

	w := env.do(t, http.MethodPost, "/api/join", JoinRequest{GameID: g.GameID, PSID: "p-1", Username: "ana"})
	if w.Code != http.StatusOK {
		t.Fatalf("join status = %d", w.Code)
	}

	// Numeric strings are accepted, as DM web views send them that way.
	w = env.do(t, http.MethodPost, "/api/score", map[string]any{
		"gameId": g.GameID, "playerId": "1", "timer": "10.123", "score": 300,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("score status = %d, body = %s", w.Code, w.Body.String())
	}
	rec := decode[game.ScoreRecord](t, w)
	if rec.PlayerID != 1 || rec.Timer != 10.123 || rec.Score != 300 || rec.Username != "ana" {
		t.Fatalf("score record = %+v", rec)
	}

	w = env.do(t, http.MethodPost, "/api/score", map[string]any{
		"gameId": g.GameID, "playerId": 1, "timer": "fast", "score": 300,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad timer status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/score", map[string]any{
		"gameId": g.GameID, "playerId": 9, "timer": 10, "score": 300,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown player status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/games/"+g.GameID+"/ranking?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ranking status = %d, body = %s", w.Code, w.Body.String())
	}
	ranking := decode[RankingResponse](t, w)
	if ranking.Limit != 5 || len(ranking.Results) != 1 {
		t.Fatalf("ranking = %+v", ranking)
	}
	if ranking.Results[0].Rank != 1 || ranking.Results[0].Score != 300 {
		t.Fatalf("ranking entry = %+v", ranking.Results[0])
	}

	// A deactivated game keeps serving its board but rejects submissions.
	if w = env.do(t, http.MethodPut, "/api/admin/games/"+g.GameID, UpdateGameRequest{IsActive: false}, cookie); w.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/score", map[string]any{
		"gameId": g.GameID, "playerId": 1, "timer": 9, "score": 200,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("inactive score status = %d", w.Code)
	}
	if w = env.do(t, http.MethodGet, "/api/games/"+g.GameID+"/ranking", nil); w.Code != http.StatusOK {
		t.Fatalf("inactive ranking status = %d", w.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	w := env.do(t, http.MethodGet, "/api/admin/catalogs/"+catalog.DefaultCatalogID, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("get catalog status = %d", w.Code)
	}
	seeded := decode[ReplaceCatalogRequest](t, w)
	if len(seeded.Characters) == 0 {
		t.Fatal("seeded catalog is empty")
	}

	replace := ReplaceCatalogRequest{Characters: []stand.Character{
		{PairID: "P1", CharacterID: 1, CharacterName: "Asterix"},
		{PairID: "P1", CharacterID: 2, CharacterName: "Obelix"},
	}}
	w = env.do(t, http.MethodPut, "/api/admin/catalogs/"+catalog.DefaultCatalogID, replace, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("replace status = %d, body = %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/admin/catalogs/"+catalog.DefaultCatalogID, nil, cookie)
	if after := decode[ReplaceCatalogRequest](t, w); len(after.Characters) != 2 {
		t.Fatalf("catalog after replace = %d characters, want 2", len(after.Characters))
	}

	w = env.do(t, http.MethodPut, "/api/admin/catalogs/x", ReplaceCatalogRequest{}, cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty replace status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	checks := decode[HealthResponse](t, w)
	if checks["sqlite"].Status != "ok" {
		t.Fatalf("sqlite check = %+v", checks["sqlite"])
	}
	if _, ok := checks["redis"]; ok {
		t.Fatal("redis check present without a configured client")
	}
}

func TestOpenAPISpec(t *testing.T) {
	spec := newOpenAPISpec()
	body, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshaling spec: %v", err)
	}
	for _, path := range []string{"/webhook", "/api/join", "/api/validate", "/api/admin/games/{gameID}/raffle"} {
		if !bytes.Contains(body, []byte(path)) {
			t.Fatalf("spec missing path %s", path)
		}
	}
}
