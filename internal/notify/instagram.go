package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Instagram delivers messages through the Meta Graph API send endpoint.
// Batches are queued on a buffered channel and drained by a single worker, so
// messages for one recipient keep their order. A full queue drops the batch
// rather than block the caller.
type Instagram struct {
	logger    *slog.Logger
	client    *http.Client
	endpoint  string
	graphBase string
	pageToken string
	queue     chan []Message
	done      chan struct{}
}

type InstagramConfig struct {
	PageToken    string
	SenderID     string
	GraphVersion string
	Timeout      time.Duration

	// BaseURL overrides the Graph API host. Empty means the real one.
	BaseURL string
}

func NewInstagram(cfg InstagramConfig, logger *slog.Logger) *Instagram {
	base := cfg.BaseURL
	if base == "" {
		base = "https://graph.facebook.com"
	}
	d := &Instagram{
		logger:    logger,
		client:    &http.Client{Timeout: cfg.Timeout},
		endpoint:  fmt.Sprintf("%s/%s/%s/messages", base, cfg.GraphVersion, cfg.SenderID),
		graphBase: fmt.Sprintf("%s/%s", base, cfg.GraphVersion),
		pageToken: cfg.PageToken,
		queue:     make(chan []Message, 256),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Instagram) Send(_ context.Context, messages []Message) {
	if len(messages) == 0 {
		return
	}
	select {
	case d.queue <- messages:
	default:
		// Drop if the worker is behind.
		d.logger.Warn("outbound queue full, dropping batch", "count", len(messages))
	}
}

// Close stops accepting batches and waits for the queued ones to drain.
func (d *Instagram) Close() {
	close(d.queue)
	<-d.done
}

func (d *Instagram) run() {
	defer close(d.done)
	for batch := range d.queue {
		for _, m := range batch {
			if err := d.deliver(m); err != nil {
				d.logger.Error("delivering message", "recipient", m.Recipient, "error", err)
			}
		}
	}
}

// Username resolves a PSID to the account's Instagram username.
func (d *Instagram) Username(ctx context.Context, psid string) (string, error) {
	u := fmt.Sprintf("%s/%s?fields=username&access_token=%s", d.graphBase, url.PathEscape(psid), url.QueryEscape(d.pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("graph api status %d: %s", resp.StatusCode, detail)
	}

	var out struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding profile: %w", err)
	}
	return out.Username, nil
}

type graphPayload struct {
	Recipient graphRecipient `json:"recipient"`
	Message   graphMessage   `json:"message"`
}

type graphRecipient struct {
	ID string `json:"id"`
}

type graphMessage struct {
	Text         string           `json:"text,omitempty"`
	Attachment   *graphAttachment `json:"attachment,omitempty"`
	QuickReplies []QuickReply     `json:"quick_replies,omitempty"`
}

type graphAttachment struct {
	Type    string           `json:"type"`
	Payload graphAttachmentP `json:"payload"`
}

type graphAttachmentP struct {
	URL string `json:"url"`
}

func (d *Instagram) deliver(m Message) error {
	payload := graphPayload{
		Recipient: graphRecipient{ID: m.Recipient},
		Message: graphMessage{
			Text:         m.Text,
			QuickReplies: m.QuickReplies,
		},
	}
	if m.ImageURL != "" {
		payload.Message = graphMessage{
			Attachment: &graphAttachment{Type: "image", Payload: graphAttachmentP{URL: m.ImageURL}},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, d.endpoint+"?access_token="+url.QueryEscape(d.pageToken), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph api status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
