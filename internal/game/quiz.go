package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/standgames/stand/internal/notify"
	"github.com/standgames/stand/internal/stand"
	"github.com/standgames/stand/internal/store"
)

var (
	ErrNoQuizConfigured = errors.New("no quiz configured")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrInvalidPayload   = errors.New("invalid quiz payload")
)

// Timestamps inside the type blob use the same layout the store writes.
const quizTimeLayout = "2006-01-02T15:04:05.000Z"

// ParseAnswerPayload decodes "{gameId}_{questionId}_{answerId}". The game id
// may itself contain underscores, so the answer and question ids are taken
// from the end. closed reports a QR_* control payload (quiz no longer open).
func ParseAnswerPayload(payload string) (gameID, questionID, answerID string, closed, ok bool) {
	if payload == "" {
		return "", "", "", false, false
	}
	if strings.HasPrefix(payload, "QR_") {
		return "", "", "", true, false
	}
	parts := strings.Split(payload, "_")
	if len(parts) < 3 {
		return "", "", "", false, false
	}
	answerID = parts[len(parts)-1]
	questionID = parts[len(parts)-2]
	gameID = strings.Join(parts[:len(parts)-2], "_")
	if gameID == "" || questionID == "" || answerID == "" {
		return "", "", "", false, false
	}
	return gameID, questionID, answerID, false, true
}

// QuizStartResult reports one identity's quiz start outcome.
type QuizStartResult struct {
	PSID          string `json:"psid"`
	Started       bool   `json:"started"`
	Reason        string `json:"reason,omitempty"`
	PlayerID      int    `json:"playerId,omitempty"`
	FirstQuestion string `json:"firstQuestion,omitempty"`
}

// StartQuiz points each identity at the first question and sends the intro
// plus the question as one batch, so the intro always renders first. A game
// without a configured order returns ErrNoQuizConfigured and no state or
// message changes.
func (c *Coordinator) StartQuiz(ctx context.Context, gameID string, psids []string) ([]QuizStartResult, error) {
	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			for _, psid := range psids {
				c.send(ctx, notify.Text(psid, msgQuizGameMissing))
			}
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	if !game.QuizEnabled() {
		return nil, ErrNoQuizConfigured
	}

	gameType := strings.ToUpper(game.GameType)
	firstQID := game.QuizOrder[0]

	var results []QuizStartResult
	for _, psid := range psids {
		psid = strings.TrimSpace(psid)
		if psid == "" {
			continue
		}

		player, ok := c.playerByIdentity(ctx, gameID, psid)
		if !ok {
			c.send(ctx, notify.Text(psid, msgQuizPlayerNotFound))
			results = append(results, QuizStartResult{PSID: psid, Reason: "player_not_found"})
			continue
		}

		batch := []notify.Message{notify.Text(psid, msgQuizIntro)}
		if q, ok := questionMessage(psid, firstQID, game.QuizQuestions); ok {
			batch = append(batch, q)
		}
		c.notify.Send(ctx, batch)

		if err := c.setQuizState(ctx, gameID, player.PlayerID, gameType, firstQID, false); err != nil {
			c.logger.Error("quiz start state write failed", "game_id", gameID, "player_id", player.PlayerID, "error", err)
			results = append(results, QuizStartResult{PSID: psid, Reason: "state_write_failed"})
			continue
		}

		results = append(results, QuizStartResult{PSID: psid, Started: true, PlayerID: player.PlayerID, FirstQuestion: firstQID})
	}
	return results, nil
}

// AnswerResult reports a recorded quiz answer.
type AnswerResult struct {
	GameID       string `json:"gameId"`
	PlayerID     int    `json:"playerId"`
	Completed    bool   `json:"completed"`
	NextQuestion string `json:"nextQuestion,omitempty"`
	Closed       bool   `json:"closed,omitempty"`
}

// AnswerQuiz records a quick-reply answer and advances the player to the
// next question in the order, or to completion. Completion sends the
// player's validation code. Re-answering an earlier question just overwrites
// the stored answer; progression follows the answered question's position.
func (c *Coordinator) AnswerQuiz(ctx context.Context, psid, payload string) (AnswerResult, error) {
	gameID, questionID, answerID, closed, ok := ParseAnswerPayload(payload)
	if closed {
		c.send(ctx, notify.Text(psid, msgQuizClosed))
		return AnswerResult{Closed: true}, nil
	}
	if !ok {
		return AnswerResult{}, ErrInvalidPayload
	}

	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AnswerResult{}, ErrGameNotFound
		}
		return AnswerResult{}, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	if !game.QuizEnabled() {
		return AnswerResult{}, ErrNoQuizConfigured
	}
	gameType := strings.ToUpper(game.GameType)

	player, found := c.playerByIdentity(ctx, gameID, psid)
	if !found {
		return AnswerResult{}, ErrPlayerNotFound
	}

	if err := c.store.SetQuizAnswer(ctx, gameID, player.PlayerID, gameType, questionID, answerID, nowUTC()); err != nil {
		return AnswerResult{}, fmt.Errorf("recording answer for player %d: %w", player.PlayerID, err)
	}

	nextQID := nextQuestionID(questionID, game.QuizOrder)
	if nextQID == "" {
		if err := c.setQuizState(ctx, gameID, player.PlayerID, gameType, "", true); err != nil {
			return AnswerResult{}, fmt.Errorf("completing quiz for player %d: %w", player.PlayerID, err)
		}
		if player.ValidationCode > 0 {
			c.send(ctx, notify.Text(psid, msgCodeTail(player.ValidationCode)))
		} else {
			c.send(ctx, notify.Text(psid, msgQuizCodeMissing))
		}
		return AnswerResult{GameID: gameID, PlayerID: player.PlayerID, Completed: true}, nil
	}

	if err := c.setQuizState(ctx, gameID, player.PlayerID, gameType, nextQID, false); err != nil {
		return AnswerResult{}, fmt.Errorf("advancing quiz for player %d: %w", player.PlayerID, err)
	}
	if q, ok := questionMessage(psid, nextQID, game.QuizQuestions); ok {
		c.notify.Send(ctx, []notify.Message{q})
	}
	return AnswerResult{GameID: gameID, PlayerID: player.PlayerID, NextQuestion: nextQID}, nil
}

// QuizQuestionInput is an incoming question definition for ConfigureQuiz.
type QuizQuestionInput struct {
	ID      string             `json:"id"`
	Text    string             `json:"text"`
	Options []stand.QuizOption `json:"options"`
}

// ConfigureReport summarizes the retro-initialization of existing players.
type ConfigureReport struct {
	Questions      int `json:"questions"`
	PlayersSeen    int `json:"playersSeen"`
	PlayersUpdated int `json:"playersUpdated"`
}

// ConfigureQuiz saves the normalized question order onto the game and
// initializes quiz fields for every player that joined before the quiz
// existed. Already-recorded answers are preserved.
func (c *Coordinator) ConfigureQuiz(ctx context.Context, gameID string, questions []QuizQuestionInput) (ConfigureReport, error) {
	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ConfigureReport{}, ErrGameNotFound
		}
		return ConfigureReport{}, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	gameType := strings.ToUpper(game.GameType)

	order := make([]string, 0, len(questions))
	normalized := make(map[string]stand.QuizQuestion, len(questions))
	for _, q := range questions {
		qid := strings.TrimSpace(q.ID)
		text := strings.TrimSpace(q.Text)
		if qid == "" || text == "" {
			continue
		}
		var opts []stand.QuizOption
		for _, o := range q.Options {
			title := strings.TrimSpace(o.Title)
			payload := strings.TrimSpace(o.Payload)
			if title == "" || payload == "" {
				continue
			}
			opts = append(opts, stand.QuizOption{Title: title, Payload: payload})
		}
		order = append(order, qid)
		normalized[qid] = stand.QuizQuestion{Text: text, Options: opts}
	}
	if len(order) == 0 {
		return ConfigureReport{}, errors.New("no valid questions provided")
	}

	if err := c.store.SetQuizMeta(ctx, gameID, order, normalized, nowUTC()); err != nil {
		return ConfigureReport{}, fmt.Errorf("saving quiz meta for %s: %w", gameID, err)
	}
	c.logger.Info("quiz meta saved", "game_id", gameID, "questions", len(order))

	players, err := c.store.ListPlayers(ctx, gameID)
	if err != nil {
		return ConfigureReport{}, fmt.Errorf("listing players in %s: %w", gameID, err)
	}

	report := ConfigureReport{Questions: len(order), PlayersSeen: len(players)}
	now := nowUTC().Format(quizTimeLayout)
	for _, p := range players {
		if p.PlayerID <= 0 {
			continue
		}
		if err := c.store.EnsureTypePath(ctx, gameID, p.PlayerID, gameType); err != nil {
			return report, fmt.Errorf("ensuring type path for player %d: %w", p.PlayerID, err)
		}
		fields := map[string]any{
			"quizRequired":        true,
			"quizCompleted":       false,
			"quizCurrentQuestion": nil,
			"quizUpdatedAt":       now,
		}
		// Keep answers a player may already have recorded.
		if _, has := p.Type.Blob(gameType)["quizAnswers"]; !has {
			fields["quizAnswers"] = map[string]any{}
		}
		if err := c.store.SetTypeFields(ctx, gameID, p.PlayerID, gameType, fields); err != nil {
			return report, fmt.Errorf("initializing quiz fields for player %d: %w", p.PlayerID, err)
		}
		report.PlayersUpdated++
	}
	return report, nil
}

// QuizExport is the organizer-facing dump of questions and player progress.
type QuizExport struct {
	QuizEnabled   bool                 `json:"quizEnabled"`
	GameID        string               `json:"gameId"`
	GameType      string               `json:"gameType"`
	Questions     []ExportQuestion     `json:"questions"`
	Players       []ExportPlayer       `json:"players"`
	RaffleWinners []stand.RaffleWinner `json:"raffleWinners"`
}

type ExportQuestion struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Options []ExportOption `json:"options"`
}

type ExportOption struct {
	Title    string `json:"title"`
	Payload  string `json:"payload"`
	AnswerID string `json:"answerId,omitempty"`
}

type ExportPlayer struct {
	PlayerID            int               `json:"playerId"`
	InstagramPSID       string            `json:"instagramPSID"`
	InstagramUsername   string            `json:"instagramUsername"`
	QuizRequired        bool              `json:"quizRequired"`
	QuizCompleted       bool              `json:"quizCompleted"`
	QuizCurrentQuestion string            `json:"quizCurrentQuestion,omitempty"`
	QuizAnswers         map[string]string `json:"quizAnswers"`
}

// ExportQuiz returns the configured questions (with the answer id parsed out
// of each option payload) and every player's progress. A game without a quiz
// exports successfully with empty questions.
func (c *Coordinator) ExportQuiz(ctx context.Context, gameID string) (QuizExport, error) {
	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return QuizExport{}, ErrGameNotFound
		}
		return QuizExport{}, fmt.Errorf("loading game %s: %w", gameID, err)
	}
	gameType := strings.ToUpper(game.GameType)

	players, err := c.store.ListPlayers(ctx, gameID)
	if err != nil {
		return QuizExport{}, fmt.Errorf("listing players in %s: %w", gameID, err)
	}

	out := QuizExport{
		QuizEnabled:   game.QuizEnabled(),
		GameID:        gameID,
		GameType:      gameType,
		Questions:     []ExportQuestion{},
		Players:       []ExportPlayer{},
		RaffleWinners: game.RaffleWinners,
	}
	if out.RaffleWinners == nil {
		out.RaffleWinners = []stand.RaffleWinner{}
	}

	for _, qid := range game.QuizOrder {
		cfg := game.QuizQuestions[qid]
		q := ExportQuestion{ID: qid, Text: cfg.Text, Options: []ExportOption{}}
		for _, opt := range cfg.Options {
			_, _, answerID, _, _ := ParseAnswerPayload(opt.Payload)
			q.Options = append(q.Options, ExportOption{Title: opt.Title, Payload: opt.Payload, AnswerID: answerID})
		}
		out.Questions = append(out.Questions, q)
	}

	for _, p := range players {
		if p.PlayerID <= 0 {
			continue
		}
		out.Players = append(out.Players, ExportPlayer{
			PlayerID:            p.PlayerID,
			InstagramPSID:       p.InstagramPSID,
			InstagramUsername:   p.InstagramUsername,
			QuizRequired:        p.QuizRequired(gameType),
			QuizCompleted:       p.QuizCompleted(gameType),
			QuizCurrentQuestion: p.QuizCurrentQuestion(gameType),
			QuizAnswers:         p.QuizAnswers(gameType),
		})
	}
	return out, nil
}

// setQuizState writes the current-question pointer and the completion flag.
func (c *Coordinator) setQuizState(ctx context.Context, gameID string, playerID int, gameType, currentQID string, completed bool) error {
	if err := c.store.EnsureTypePath(ctx, gameID, playerID, gameType); err != nil {
		return err
	}
	var current any
	if currentQID != "" {
		current = currentQID
	}
	return c.store.SetTypeFields(ctx, gameID, playerID, gameType, map[string]any{
		"quizCurrentQuestion": current,
		"quizCompleted":       completed,
		"quizUpdatedAt":       nowUTC().Format(quizTimeLayout),
	})
}

// nextQuestionID returns the question after current in the order, the first
// question when current is not in the order, or "" when current was last.
func nextQuestionID(current string, order []string) string {
	if len(order) == 0 {
		return ""
	}
	for i, qid := range order {
		if qid == current {
			if i+1 < len(order) {
				return order[i+1]
			}
			return ""
		}
	}
	return order[0]
}

// questionMessage builds the outbound message for one question: text plus
// quick-reply buttons for each complete option.
func questionMessage(psid, questionID string, questions map[string]stand.QuizQuestion) (notify.Message, bool) {
	q, ok := questions[questionID]
	if !ok {
		return notify.Message{}, false
	}
	text := strings.TrimSpace(q.Text)

	var replies []notify.QuickReply
	for _, opt := range q.Options {
		title := strings.TrimSpace(opt.Title)
		payload := strings.TrimSpace(opt.Payload)
		if title == "" || payload == "" {
			continue
		}
		replies = append(replies, notify.QuickReply{ContentType: "text", Title: title, Payload: payload})
	}

	if len(replies) == 0 {
		if text == "" {
			return notify.Message{}, false
		}
		return notify.Text(psid, text), true
	}
	return notify.Message{Recipient: psid, Text: text, QuickReplies: replies}, true
}
