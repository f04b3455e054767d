package server

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
)

// UsernameResolver maps a messaging PSID to an Instagram username.
type UsernameResolver func(ctx context.Context, psid string) (string, error)

// joinCodeRe matches a bare join code: exactly six digits, nothing else.
var joinCodeRe = regexp.MustCompile(`^\d{6}$`)

func handleWebhookVerify(verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == verifyToken && verifyToken != "" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(q.Get("hub.challenge")))
			return
		}
		writeError(w, http.StatusForbidden, "verification failed")
	}
}

// webhookEnvelope is the subset of the Instagram messaging webhook we read.
type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []webhookEvent `json:"messaging"`
	} `json:"entry"`
}

type webhookEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *struct {
		Text       string `json:"text"`
		IsEcho     bool   `json:"is_echo"`
		QuickReply *struct {
			Payload string `json:"payload"`
		} `json:"quick_reply"`
	} `json:"message"`
	Postback *struct {
		Payload string `json:"payload"`
	} `json:"postback"`
}

// payload extracts the quiz-answer payload from a quick reply or postback.
func (e webhookEvent) payload() string {
	if e.Message != nil && e.Message.QuickReply != nil {
		return e.Message.QuickReply.Payload
	}
	if e.Postback != nil {
		return e.Postback.Payload
	}
	return ""
}

func handleWebhookEvents(logger *slog.Logger, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env webhookEnvelope
		if err := readJSON(r, &env); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		for _, entry := range env.Entry {
			for _, ev := range entry.Messaging {
				dispatchWebhookEvent(r.Context(), logger, opts, ev)
			}
		}

		// The platform retries on anything but a fast 200.
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

func dispatchWebhookEvent(ctx context.Context, logger *slog.Logger, opts Options, ev webhookEvent) {
	psid := ev.Sender.ID
	if psid == "" || psid == opts.AppSenderID {
		return
	}
	if ev.Message != nil && ev.Message.IsEcho {
		return
	}

	if payload := ev.payload(); payload != "" {
		if _, err := opts.Games.AnswerQuiz(ctx, psid, payload); err != nil {
			logger.Warn("webhook quiz answer failed", "psid", psid, "payload", payload, "error", err)
		}
		return
	}

	if ev.Message == nil || !joinCodeRe.MatchString(ev.Message.Text) {
		return
	}

	username := resolveUsername(ctx, logger, opts.Usernames, psid)
	if _, err := opts.Games.Join(ctx, ev.Message.Text, psid, username); err != nil {
		logger.Warn("webhook join failed", "psid", psid, "game_id", ev.Message.Text, "error", err)
	}
}

func resolveUsername(ctx context.Context, logger *slog.Logger, resolve UsernameResolver, psid string) string {
	if resolve == nil {
		return ""
	}
	username, err := resolve(ctx, psid)
	if err != nil {
		logger.Warn("username lookup failed", "psid", psid, "error", err)
		return ""
	}
	return username
}
