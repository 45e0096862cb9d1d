package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBody = 64 << 10

// WebhookSender posts {"text": ...} to a Slack-compatible incoming webhook.
// The hook answers a plain "ok" on success.
type WebhookSender struct {
	HTTP   *http.Client
	Logger *zap.Logger
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (s WebhookSender) Send(ctx context.Context, req SendRequest) bool {
	log := s.logger()
	if strings.TrimSpace(req.Destination) == "" {
		log.Warn("webhook destination missing")
		return false
	}
	text := req.Message
	if req.Subject != "" {
		text = "*" + req.Subject + "*\n" + req.Message
	}
	b, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		log.Warn("webhook payload encode failed", zap.Error(err))
		return false
	}
	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Destination, bytes.NewReader(b))
	if err != nil {
		log.Warn("webhook request build failed", zap.Error(RedactURLError(err)))
		return false
	}
	hr.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(hr)
	if err != nil {
		log.Warn("webhook send failed", zap.Error(RedactURLError(err)))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		log.Warn("webhook response read failed", zap.Int("status", resp.StatusCode), zap.Error(RedactURLError(err)))
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("webhook rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 256)),
		)
		return false
	}
	if strings.ToLower(strings.TrimSpace(string(raw))) != "ok" {
		log.Warn("webhook returned unexpected body",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 256)),
		)
		return false
	}
	return true
}

func (s WebhookSender) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger.With(zap.String("channel", string(ChannelSlack)))
}
