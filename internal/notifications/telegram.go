package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"leadflow/internal/textutil"
)

// TelegramMessageLimit is the Bot API cap on one message's text.
const TelegramMessageLimit = 4096

const telegramAPIBase = "https://api.telegram.org"

// telegramBackend buffers lines and sends them in batches on Flush.
type telegramBackend struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client

	mu      sync.Mutex
	pending []string
}

func newTelegramBackend(token, chatID string, client *http.Client) *telegramBackend {
	return &telegramBackend{apiBase: telegramAPIBase, token: token, chatID: chatID, client: client}
}

func (t *telegramBackend) send(_ context.Context, data payload) error {
	line := data.message
	if data.title != "" {
		line = data.title + "\n" + data.message
	}
	t.mu.Lock()
	t.pending = append(t.pending, line)
	t.mu.Unlock()
	return nil
}

// Flush sends buffered lines, split into messages of at most
// TelegramMessageLimit characters. Lines that fail to send are dropped.
func (t *telegramBackend) Flush(ctx context.Context) error {
	t.mu.Lock()
	lines := t.pending
	t.pending = nil
	t.mu.Unlock()
	if len(lines) == 0 {
		return nil
	}

	var errs []error
	for _, chunk := range textutil.Chunks(strings.Join(lines, "\n\n"), TelegramMessageLimit) {
		if err := t.post(ctx, chunk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *telegramBackend) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"chat_id": t.chatID, "text": text})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.apiBase, "/"), t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request for %s: %w", t.host(), redactURL(err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message via %s: %w", t.host(), redactURL(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// host names the API server without the bot path, which carries the token.
func (t *telegramBackend) host() string {
	if parsed, err := url.Parse(t.apiBase); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return "telegram api"
}

// redactURL strips the request URL from err; the bot token is part of it.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
