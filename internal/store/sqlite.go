package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/standgames/stand/internal/stand"
)

// gameData is the flexible remainder of a game record, stored as JSONB next
// to the typed columns SQL needs for guards and counters.
type gameData struct {
	GameName            string                        `json:"gameName,omitempty"`
	OwnerUserID         string                        `json:"ownerUserId,omitempty"`
	QuizOrder           []string                      `json:"quizOrder,omitempty"`
	QuizQuestions       map[string]stand.QuizQuestion `json:"quizQuestions,omitempty"`
	RaffleWinners       []stand.RaffleWinner          `json:"raffleWinners,omitempty"`
	RaffleLastRunAt     *time.Time                    `json:"raffleLastRunAt,omitempty"`
	RaffleOnlyValidated bool                          `json:"raffleOnlyValidated,omitempty"`
	LastJoinAt          *time.Time                    `json:"lastJoinAt,omitempty"`
	LastValidatedAt     *time.Time                    `json:"lastValidatedAt,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// listPageSize bounds partition range queries; pages are walked internally.
const listPageSize = 200

// batchGetLimit is the maximum number of keys per batched point-read.
const batchGetLimit = 100

// SQLite implements Store on a libsql database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

var _ Store = (*SQLite)(nil)

// --- games ---

func (s *SQLite) CreateGame(ctx context.Context, g stand.Game) error {
	data, err := json.Marshal(gameData{
		GameName:      g.GameName,
		OwnerUserID:   g.OwnerUserID,
		QuizOrder:     g.QuizOrder,
		QuizQuestions: g.QuizQuestions,
		RaffleWinners: g.RaffleWinners,
	})
	if err != nil {
		return err
	}

	active := 0
	if g.IsActive {
		active = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO games (game_id, game_type, is_active, max_players, players_count, validated_count, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, jsonb(?))
		ON CONFLICT(game_id) DO NOTHING
	`, g.GameID, g.GameType, active, g.MaxPlayers, g.PlayersCount, g.ValidatedCount,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt), string(data))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (s *SQLite) GetGame(ctx context.Context, gameID string) (stand.Game, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT game_id, game_type, is_active, max_players, players_count, validated_count, created_at, updated_at, json(data)
		FROM games WHERE game_id = ?
	`, gameID)
	return scanGame(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (stand.Game, error) {
	var (
		g         stand.Game
		active    int
		createdAt string
		updatedAt string
		raw       string
	)
	err := row.Scan(&g.GameID, &g.GameType, &active, &g.MaxPlayers, &g.PlayersCount, &g.ValidatedCount, &createdAt, &updatedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}

	var data gameData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return g, fmt.Errorf("decoding game data: %w", err)
	}

	g.IsActive = active != 0
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	g.GameName = data.GameName
	g.OwnerUserID = data.OwnerUserID
	g.QuizOrder = data.QuizOrder
	g.QuizQuestions = data.QuizQuestions
	g.RaffleWinners = data.RaffleWinners
	g.RaffleLastRunAt = data.RaffleLastRunAt
	g.RaffleOnlyValidated = data.RaffleOnlyValidated
	g.LastJoinAt = data.LastJoinAt
	g.LastValidatedAt = data.LastValidatedAt
	return g, nil
}

func (s *SQLite) ListGames(ctx context.Context) ([]stand.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, game_type, is_active, max_players, players_count, validated_count, created_at, updated_at, json(data)
		FROM games ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []stand.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *SQLite) DeleteGame(ctx context.Context, gameID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE game_id = ?`, gameID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM players WHERE game_id = ?`, gameID)
	return err
}

func (s *SQLite) SetGameActive(ctx context.Context, gameID string, active bool, now time.Time) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE games SET is_active = ?, updated_at = ? WHERE game_id = ?
	`, v, formatTime(now), gameID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ReserveSlot(ctx context.Context, gameID string, maxPlayers int, now time.Time) error {
	ts, _ := json.Marshal(now.UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE games
		SET players_count = players_count + 1,
			updated_at = ?,
			data = jsonb_set(data, '$.lastJoinAt', json(?))
		WHERE game_id = ? AND players_count < ?
	`, formatTime(now), string(ts), gameID, maxPlayers)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetGame(ctx, gameID); err != nil {
			return err
		}
		return ErrCapacityReached
	}
	return nil
}

func (s *SQLite) ReleaseSlot(ctx context.Context, gameID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE games SET players_count = players_count - 1, updated_at = ?
		WHERE game_id = ? AND players_count > 0
	`, formatTime(now), gameID)
	return err
}

func (s *SQLite) AddValidatedCount(ctx context.Context, gameID string, n int, now time.Time) error {
	ts, _ := json.Marshal(now.UTC())
	_, err := s.db.ExecContext(ctx, `
		UPDATE games
		SET validated_count = validated_count + ?,
			updated_at = ?,
			data = jsonb_set(data, '$.lastValidatedAt', json(?))
		WHERE game_id = ?
	`, n, formatTime(now), string(ts), gameID)
	return err
}

// modifyGameData loads a game's data document, applies fn, and saves it in a
// transaction. Used for the uncontended parts of the game record; the
// contended counters stay on guarded single-statement updates.
func (s *SQLite) modifyGameData(ctx context.Context, gameID string, now time.Time, fn func(*gameData)) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT json(data) FROM games WHERE game_id = ?`, gameID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var data gameData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return fmt.Errorf("decoding game data: %w", err)
	}

	fn(&data)

	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE games SET data = jsonb(?), updated_at = ? WHERE game_id = ?
	`, string(out), formatTime(now), gameID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) SetQuizMeta(ctx context.Context, gameID string, order []string, questions map[string]stand.QuizQuestion, now time.Time) error {
	return s.modifyGameData(ctx, gameID, now, func(d *gameData) {
		d.QuizOrder = order
		d.QuizQuestions = questions
	})
}

func (s *SQLite) SetRaffleWinners(ctx context.Context, gameID string, winners []stand.RaffleWinner, onlyValidated bool, at time.Time) error {
	ts := at.UTC()
	return s.modifyGameData(ctx, gameID, at, func(d *gameData) {
		d.RaffleWinners = winners
		d.RaffleLastRunAt = &ts
		d.RaffleOnlyValidated = onlyValidated
	})
}

// --- players ---

const playerColumns = `game_id, player_id, instagram_psid, instagram_username, joined_at, validated, validated_at, validation_code, eligible_for_game_id, json(COALESCE(type, '{}'))`

func scanPlayer(row rowScanner) (stand.Player, error) {
	var (
		p           stand.Player
		joinedAt    string
		validated   int
		validatedAt sql.NullString
		eligible    sql.NullString
		rawType     string
	)
	err := row.Scan(&p.GameID, &p.PlayerID, &p.InstagramPSID, &p.InstagramUsername,
		&joinedAt, &validated, &validatedAt, &p.ValidationCode, &eligible, &rawType)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}

	p.JoinedAt = parseTime(joinedAt)
	p.Validated = validated != 0
	if validatedAt.Valid {
		t := parseTime(validatedAt.String)
		p.ValidatedAt = &t
	}
	if eligible.Valid {
		p.EligibleForGameID = eligible.String
	}
	if err := json.Unmarshal([]byte(rawType), &p.Type); err != nil {
		return p, fmt.Errorf("decoding player type state: %w", err)
	}
	return p, nil
}

func (s *SQLite) CreatePlayer(ctx context.Context, p stand.Player) error {
	rawType, err := json.Marshal(p.Type)
	if err != nil {
		return err
	}

	validated := 0
	if p.Validated {
		validated = 1
	}
	var eligible any
	if p.EligibleForGameID != "" {
		eligible = p.EligibleForGameID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO players (game_id, player_id, instagram_psid, instagram_username, joined_at, validated, validation_code, eligible_for_game_id, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, jsonb(?))
		ON CONFLICT(game_id, player_id) DO NOTHING
	`, p.GameID, p.PlayerID, p.InstagramPSID, p.InstagramUsername,
		formatTime(p.JoinedAt), validated, p.ValidationCode, eligible, string(rawType))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (s *SQLite) GetPlayer(ctx context.Context, gameID string, playerID int) (stand.Player, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE game_id = ? AND player_id = ?`,
		gameID, playerID)
	return scanPlayer(row)
}

func (s *SQLite) PlayerByIdentity(ctx context.Context, gameID, psid string) (stand.Player, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE instagram_psid = ? AND game_id = ? LIMIT 1`,
		psid, gameID)
	return scanPlayer(row)
}

func (s *SQLite) LastPlayerID(ctx context.Context, gameID string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		SELECT player_id FROM players WHERE game_id = ? ORDER BY player_id DESC LIMIT 1
	`, gameID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func (s *SQLite) ListPlayers(ctx context.Context, gameID string) ([]stand.Player, error) {
	var out []stand.Player
	last := 0
	for {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+playerColumns+` FROM players
			 WHERE game_id = ? AND player_id > ?
			 ORDER BY player_id LIMIT ?`,
			gameID, last, listPageSize)
		if err != nil {
			return nil, err
		}

		n := 0
		for rows.Next() {
			p, err := scanPlayer(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, p)
			last = p.PlayerID
			n++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if n < listPageSize {
			return out, nil
		}
	}
}

func (s *SQLite) PlayersByCode(ctx context.Context, gameID string, code int) ([]stand.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE game_id = ? AND validation_code = ? ORDER BY player_id`,
		gameID, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stand.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) EligiblePlayers(ctx context.Context, gameID string) ([]stand.Player, error) {
	// The sparse index holds keys only; hydrate via batched point-reads.
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, player_id FROM players WHERE eligible_for_game_id = ?
	`, gameID)
	if err != nil {
		return nil, err
	}

	var keys []PlayerKey
	for rows.Next() {
		var k PlayerKey
		if err := rows.Scan(&k.GameID, &k.PlayerID); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	return s.BatchGetPlayers(ctx, keys)
}

func (s *SQLite) BatchGetPlayers(ctx context.Context, keys []PlayerKey) ([]stand.Player, error) {
	var out []stand.Player
	for start := 0; start < len(keys); start += batchGetLimit {
		end := min(start+batchGetLimit, len(keys))
		batch := keys[start:end]

		values := make([]string, len(batch))
		args := make([]any, 0, len(batch)*2)
		for i, k := range batch {
			values[i] = "(?, ?)"
			args = append(args, k.GameID, k.PlayerID)
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT `+playerColumns+` FROM players
			 WHERE (game_id, player_id) IN (VALUES `+strings.Join(values, ", ")+`)`,
			args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			p, err := scanPlayer(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func (s *SQLite) SetValidated(ctx context.Context, gameID string, playerID int, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE players SET validated = 1, validated_at = ?
		WHERE game_id = ? AND player_id = ? AND validated = 0
	`, formatTime(at), gameID, playerID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetPlayer(ctx, gameID, playerID); err != nil {
			return err
		}
		return ErrConditionFailed
	}
	return nil
}

func typePath(parts ...string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, p := range parts {
		b.WriteString(`."`)
		b.WriteString(p)
		b.WriteString(`"`)
	}
	return b.String()
}

func (s *SQLite) EnsureTypePath(ctx context.Context, gameID string, playerID int, gameType string) error {
	// Two single-path writes, mirroring the update-expression rule that a
	// nested set must not touch its parent in the same expression.
	res, err := s.db.ExecContext(ctx, `
		UPDATE players SET type = COALESCE(type, jsonb('{}'))
		WHERE game_id = ? AND player_id = ?
	`, gameID, playerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	path := typePath(gameType)
	_, err = s.db.ExecContext(ctx, `
		UPDATE players SET type = jsonb_set(type, ?, COALESCE(jsonb_extract(type, ?), jsonb('{}')))
		WHERE game_id = ? AND player_id = ?
	`, path, path, gameID, playerID)
	return err
}

func (s *SQLite) SetTypeFields(ctx context.Context, gameID string, playerID int, gameType string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)*2)
	for _, name := range names {
		val, err := json.Marshal(fields[name])
		if err != nil {
			return err
		}
		sets = append(sets, "?, json(?)")
		args = append(args, typePath(gameType, name), string(val))
	}

	parent := typePath(gameType)
	args = append(args, gameID, playerID, parent)
	res, err := s.db.ExecContext(ctx, `
		UPDATE players SET type = jsonb_set(type, `+strings.Join(sets, ", ")+`)
		WHERE game_id = ? AND player_id = ? AND json_type(type, ?) IS NOT NULL
	`, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetPlayer(ctx, gameID, playerID); err != nil {
			return err
		}
		return ErrConditionFailed
	}
	return nil
}

func (s *SQLite) SetQuizAnswer(ctx context.Context, gameID string, playerID int, gameType, questionID, answerID string, now time.Time) error {
	ans, _ := json.Marshal(answerID)
	ts, _ := json.Marshal(now.UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE players SET type = jsonb_set(type, ?, json(?), ?, json(?))
		WHERE game_id = ? AND player_id = ? AND json_type(type, ?) IS NOT NULL
	`, typePath(gameType, "quizAnswers", questionID), string(ans),
		typePath(gameType, "quizUpdatedAt"), string(ts),
		gameID, playerID, typePath(gameType, "quizAnswers"))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetPlayer(ctx, gameID, playerID); err != nil {
			return err
		}
		return ErrConditionFailed
	}
	return nil
}

func (s *SQLite) MarkRaffleWinner(ctx context.Context, gameID string, playerID int, gameType string, at time.Time) error {
	ts, _ := json.Marshal(at.UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE players
		SET type = jsonb_set(type, ?, json('false'), ?, json('true'), ?, json(?)),
			eligible_for_game_id = NULL
		WHERE game_id = ? AND player_id = ?
			AND eligible_for_game_id IS NOT NULL
			AND json_type(type, ?) IS NOT NULL
	`, typePath(gameType, "raffleEligible"),
		typePath(gameType, "raffleWin"),
		typePath(gameType, "raffleWinAt"), string(ts),
		gameID, playerID, typePath(gameType))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetPlayer(ctx, gameID, playerID); err != nil {
			return err
		}
		return ErrConditionFailed
	}
	return nil
}

// --- catalog ---

func (s *SQLite) ListCatalog(ctx context.Context, catalogID string) ([]stand.Character, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT catalog_id, pair_id, character_id, character_name, image_url
		FROM catalog WHERE catalog_id = ? ORDER BY character_id
	`, catalogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stand.Character
	for rows.Next() {
		var c stand.Character
		if err := rows.Scan(&c.CatalogID, &c.PairID, &c.CharacterID, &c.CharacterName, &c.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) PutCatalog(ctx context.Context, items []stand.Character) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO catalog (catalog_id, pair_id, character_id, character_name, image_url)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(catalog_id, character_id) DO UPDATE SET
				pair_id = excluded.pair_id,
				character_name = excluded.character_name,
				image_url = excluded.image_url
		`, c.CatalogID, c.PairID, c.CharacterID, c.CharacterName, c.ImageURL); err != nil {
			return err
		}
	}
	return tx.Commit()
}
