package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers alerts to a chat via the Bot API sendMessage method.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegram creates a Telegram target. A nil client falls back to
// http.DefaultClient; baseURL overrides are used in tests.
func NewTelegram(client *http.Client, token, chatID string) *Telegram {
	if client == nil {
		client = http.DefaultClient
	}
	return &Telegram{
		client:  client,
		baseURL: telegramAPIBase,
		token:   token,
		chatID:  chatID,
	}
}

// WithBaseURL points the target at a different API host.
func (t *Telegram) WithBaseURL(u string) *Telegram {
	t.baseURL = u
	return t
}

func (t *Telegram) Name() string { return "telegram" }

// Send posts the message to the configured chat.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("chat_id", func(e *jx.Encoder) { e.Str(t.chatID) })
		e.Field("text", func(e *jx.Encoder) { e.Str(msg.Subject + "\n" + msg.Body) })
	})

	url := t.baseURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("telegram API status %d: %s", resp.StatusCode, body)
	}
	return nil
}
