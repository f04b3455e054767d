package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecorderKeepsOrder(t *testing.T) {
	r := &Recorder{}
	r.Send(context.Background(), []Message{
		Text("psid-1", "hola"),
		Text("psid-2", "hey"),
		Text("psid-1", "segunda"),
	})

	got := r.TextsFor("psid-1")
	if len(got) != 2 || got[0] != "hola" || got[1] != "segunda" {
		t.Fatalf("TextsFor(psid-1) = %v", got)
	}
	if n := len(r.Messages()); n != 3 {
		t.Fatalf("Messages() len = %d, want 3", n)
	}
}

func TestInstagramDeliversBatchInOrder(t *testing.T) {
	type received struct {
		Recipient struct {
			ID string `json:"id"`
		} `json:"recipient"`
		Message struct {
			Text       string `json:"text"`
			Attachment *struct {
				Type    string `json:"type"`
				Payload struct {
					URL string `json:"url"`
				} `json:"payload"`
			} `json:"attachment"`
			QuickReplies []QuickReply `json:"quick_replies"`
		} `json:"message"`
	}

	got := make(chan received, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "token-123" {
			t.Errorf("access_token = %q", r.URL.Query().Get("access_token"))
		}
		body, _ := io.ReadAll(r.Body)
		var rec received
		if err := json.Unmarshal(body, &rec); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		got <- rec
		w.Write([]byte(`{"message_id":"m1"}`))
	}))
	defer srv.Close()

	d := NewInstagram(InstagramConfig{
		PageToken:    "token-123",
		SenderID:     "17841400000000000",
		GraphVersion: "v24.0",
		Timeout:      2 * time.Second,
		BaseURL:      srv.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	d.Send(context.Background(), []Message{
		{Recipient: "psid-1", Text: "¿Listo?", QuickReplies: []QuickReply{{ContentType: "text", Title: "Sí", Payload: "g1_q1_a"}}},
		Image("psid-1", "https://cdn.example.com/char.png"),
	})
	d.Close()

	first := <-got
	if first.Recipient.ID != "psid-1" || first.Message.Text != "¿Listo?" {
		t.Fatalf("first message = %+v", first)
	}
	if len(first.Message.QuickReplies) != 1 || first.Message.QuickReplies[0].Payload != "g1_q1_a" {
		t.Fatalf("quick replies = %+v", first.Message.QuickReplies)
	}

	second := <-got
	if second.Message.Attachment == nil || second.Message.Attachment.Payload.URL != "https://cdn.example.com/char.png" {
		t.Fatalf("second message = %+v", second)
	}
	if second.Message.Text != "" {
		t.Fatalf("image message carried text %q", second.Message.Text)
	}
}

func TestInstagramSwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad psid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewInstagram(InstagramConfig{
		PageToken:    "t",
		SenderID:     "s",
		GraphVersion: "v24.0",
		Timeout:      2 * time.Second,
		BaseURL:      srv.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Must not panic or block; errors are logged only.
	d.Send(context.Background(), []Message{Text("bad", "hola")})
	d.Close()
}
