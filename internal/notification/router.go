package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketalert/internal/metrics"
	"marketalert/internal/models"
	"marketalert/internal/service"
)

// ChannelStore resolves a user's channel configuration.
type ChannelStore interface {
	ListNotificationChannels(ctx context.Context, userID string) ([]models.NotificationChannel, error)
}

// FeatureSwitch gates dispatch at runtime.
type FeatureSwitch interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

type DeliveryResult struct {
	Channel Channel `json:"channel"`
	OK      bool    `json:"ok"`
}

// Router fans a message out to every enabled channel of a user. Channels
// run concurrently; a channel that fails or panics never affects another,
// and nothing is reported back to the trigger flow.
type Router struct {
	Channels       ChannelStore
	Senders        map[Channel]Sender
	Switches       FeatureSwitch
	ChannelTimeout time.Duration
	Logger         *zap.Logger
}

// Dispatch delivers a triggered alert. The returned results are
// informational.
func (r *Router) Dispatch(ctx context.Context, tc AlertTriggeredContext) []DeliveryResult {
	if r == nil {
		return nil
	}
	log := r.logger().With(zap.String("alert_id", tc.Alert.ID.String()))
	if r.Switches != nil && !r.Switches.IsEnabled(ctx, service.FeatureNotificationDispatch, true) {
		log.Info("notification dispatch disabled, skipping delivery")
		return nil
	}
	subject, body := FormatMessage(tc)
	return r.Deliver(ctx, tc.UserID, subject, body, map[string]string{
		"alert_id":   tc.Alert.ID.String(),
		"alert_kind": string(tc.Alert.Kind),
	})
}

// Deliver sends subject and message to each enabled channel of userID and
// waits for all of them.
func (r *Router) Deliver(ctx context.Context, userID, subject, message string, metadata map[string]string) []DeliveryResult {
	if r == nil || r.Channels == nil {
		return nil
	}
	log := r.logger()
	configs, err := r.Channels.ListNotificationChannels(ctx, userID)
	if err != nil {
		log.Warn("load notification channels failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	var targets []SendRequest
	for _, cfg := range configs {
		if !cfg.Enabled || strings.TrimSpace(cfg.Destination) == "" {
			continue
		}
		ch, ok := ParseChannel(cfg.Channel)
		if !ok {
			log.Warn("unsupported notification channel", zap.String("channel", cfg.Channel))
			continue
		}
		targets = append(targets, SendRequest{
			Channel:     ch,
			Destination: cfg.Destination,
			Subject:     subject,
			Message:     message,
			Metadata:    metadata,
		})
	}
	if len(targets) == 0 {
		log.Debug("no enabled notification channels", zap.String("user_id", userID))
		return nil
	}

	// Each goroutine owns exactly one slot.
	results := make([]DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, req := range targets {
		wg.Add(1)
		go func(i int, req SendRequest) {
			defer wg.Done()
			results[i] = DeliveryResult{Channel: req.Channel, OK: r.sendOne(ctx, req)}
		}(i, req)
	}
	wg.Wait()
	return results
}

func (r *Router) sendOne(ctx context.Context, req SendRequest) (ok bool) {
	log := r.logger().With(zap.String("channel", string(req.Channel)))
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			log.Error("notification sender panicked", zap.Any("panic", rec))
			metrics.NotificationsTotal.WithLabelValues(string(req.Channel), "panic").Inc()
			return
		}
		metrics.NotificationDuration.WithLabelValues(string(req.Channel)).Observe(time.Since(start).Seconds())
		outcome := "sent"
		if !ok {
			outcome = "failed"
		}
		metrics.NotificationsTotal.WithLabelValues(string(req.Channel), outcome).Inc()
	}()

	sender, found := r.Senders[req.Channel]
	if !found || sender == nil {
		log.Warn("notification channel has no sender", zap.Error(ErrNoSender))
		return false
	}
	if r.ChannelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ChannelTimeout)
		defer cancel()
	}
	ok = sender.Send(ctx, req)
	if ok {
		log.Info("notification delivered")
	} else {
		log.Warn("notification delivery failed")
	}
	return ok
}

func (r *Router) logger() *zap.Logger {
	if r == nil || r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
