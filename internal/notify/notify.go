// Package notify is the outbound-message boundary. Engines construct message
// batches and hand them off; delivery is asynchronous and never reported back
// into the operation that produced the batch.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Message is one outbound DM. Either Text or ImageURL is set; QuickReplies
// are optional answer buttons rendered under a text message.
type Message struct {
	Recipient    string       `json:"psid"`
	Text         string       `json:"text,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

type QuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// Text builds a plain text message.
func Text(recipient, text string) Message {
	return Message{Recipient: recipient, Text: text}
}

// Image builds an image message.
func Image(recipient, url string) Message {
	return Message{Recipient: recipient, ImageURL: url}
}

// Dispatcher accepts a batch for asynchronous delivery. Implementations must
// never block the caller on delivery and must swallow delivery errors;
// messages within one batch are delivered in order per recipient.
type Dispatcher interface {
	Send(ctx context.Context, messages []Message)
}

// Log is a Dispatcher that only logs. Used when no Graph API token is
// configured (local development, tests that don't inspect messages).
type Log struct {
	Logger *slog.Logger
}

func (l *Log) Send(_ context.Context, messages []Message) {
	for _, m := range messages {
		l.Logger.Info("outbound message (not delivered)",
			"recipient", m.Recipient,
			"text", m.Text,
			"image_url", m.ImageURL,
			"quick_replies", len(m.QuickReplies),
		)
	}
}

// Recorder is a Dispatcher that captures every message for inspection.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Send(_ context.Context, messages []Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, messages...)
	r.mu.Unlock()
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// TextsFor returns the texts sent to one recipient, in order.
func (r *Recorder) TextsFor(recipient string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if m.Recipient == recipient && m.Text != "" {
			out = append(out, m.Text)
		}
	}
	return out
}
