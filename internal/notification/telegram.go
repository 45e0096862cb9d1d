package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramSender posts to the bot API sendMessage method. BotToken is a
// secret shared by all users; Destination carries the chat id.
type TelegramSender struct {
	HTTP      *http.Client
	BaseURL   string
	BotToken  string
	ParseMode string
	Logger    *zap.Logger
}

type telegramSendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s TelegramSender) Send(ctx context.Context, req SendRequest) bool {
	log := s.logger()
	if s.BotToken == "" {
		log.Warn("telegram bot token not configured")
		return false
	}
	chatID := strings.TrimSpace(req.Destination)
	if chatID == "" {
		log.Warn("telegram chat id missing")
		return false
	}

	b, err := json.Marshal(telegramSendMessageRequest{
		ChatID:    chatID,
		Text:      s.render(req),
		ParseMode: s.ParseMode,
	})
	if err != nil {
		log.Warn("telegram payload encode failed", zap.Error(err))
		return false
	}
	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(b))
	if err != nil {
		log.Warn("telegram request build failed", zap.Error(RedactURLError(err)))
		return false
	}
	hr.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(hr)
	if err != nil {
		log.Warn("telegram send failed", zap.Error(RedactURLError(err)))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		log.Warn("telegram response read failed", zap.Int("status", resp.StatusCode), zap.Error(RedactURLError(err)))
		return false
	}

	var out telegramResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Warn("telegram response not parseable",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 256)),
		)
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		log.Warn("telegram rejected message",
			zap.Int("status", resp.StatusCode),
			zap.Int("error_code", out.ErrorCode),
			zap.String("description", truncate(out.Description, 256)),
		)
		return false
	}
	return true
}

func (s TelegramSender) render(req SendRequest) string {
	if !strings.EqualFold(s.ParseMode, "MarkdownV2") {
		if req.Subject == "" {
			return req.Message
		}
		return req.Subject + "\n\n" + req.Message
	}
	text := EscapeMarkdownV2(req.Message)
	if req.Subject != "" {
		text = "*" + EscapeMarkdownV2(req.Subject) + "*\n\n" + text
	}
	return text
}

func (s TelegramSender) endpoint() string {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		base = defaultTelegramBaseURL
	}
	return fmt.Sprintf("%s/bot%s/sendMessage", base, url.PathEscape(s.BotToken))
}

func (s TelegramSender) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger.With(zap.String("channel", string(ChannelTelegram)))
}
