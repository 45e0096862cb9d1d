// Package notification delivers triggered alerts to the external channels a
// user has enabled.
package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketalert/internal/models"
)

var ErrNoSender = errors.New("no sender for channel")

type Channel string

const (
	// ChannelSlack posts to an incoming-webhook URL.
	ChannelSlack Channel = "slack"
	// ChannelTelegram posts through the bot API to a chat id.
	ChannelTelegram Channel = "telegram"
)

func ParseChannel(raw string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelSlack:
		return ChannelSlack, true
	case ChannelTelegram:
		return ChannelTelegram, true
	default:
		return "", false
	}
}

// SendRequest is one channel-agnostic delivery instruction. Destination is a
// secret and must never be logged.
type SendRequest struct {
	Channel     Channel
	Destination string
	Subject     string
	Message     string
	Metadata    map[string]string
}

// Sender delivers one request. Implementations report every failure as
// false and never panic.
type Sender interface {
	Send(ctx context.Context, req SendRequest) bool
}

// AlertTriggeredContext is produced once per trigger and handed to the
// Router after the alert has been persisted as triggered.
type AlertTriggeredContext struct {
	Alert        models.Alert
	UserID       string
	CurrentValue decimal.Decimal
	TriggeredAt  time.Time
	Operator     string
	Condition    string
	Explanation  string
}
