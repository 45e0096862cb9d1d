package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketalert/internal/auth"
	"marketalert/internal/models"
	"marketalert/internal/notification"
	"marketalert/internal/repository"
)

type Deliverer interface {
	Deliver(ctx context.Context, userID, subject, message string, metadata map[string]string) []notification.DeliveryResult
}

type NotificationHandler struct {
	Channels repository.NotificationChannelRepository
	Router   Deliverer
}

func (h *NotificationHandler) Register(g *gin.RouterGroup) {
	g.GET("/notification/channels", h.listChannels)
	g.PUT("/notification/channels/:channel", h.putChannel)
	g.POST("/notification/test", h.testSend)
}

type channelView struct {
	Channel     string    `json:"channel"`
	Enabled     bool      `json:"enabled"`
	Destination string    `json:"destination"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toChannelView(item models.NotificationChannel) channelView {
	return channelView{
		Channel:     item.Channel,
		Enabled:     item.Enabled,
		Destination: maskDestination(item.Destination),
		UpdatedAt:   item.UpdatedAt,
	}
}

// @Summary Notification channels of the caller
// @Tags notification
// @Produce json
// @Security BearerAuth
// @Success 200 {object} apiResponse
// @Router /api/v1/notification/channels [get]
func (h *NotificationHandler) listChannels(c *gin.Context) {
	if h.Channels == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Channels.ListNotificationChannels(c.Request.Context(), auth.UserIDFromContext(c))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]channelView, 0, len(items))
	for _, it := range items {
		out = append(out, toChannelView(it))
	}
	Ok(c, out, nil)
}

type putChannelRequest struct {
	Enabled     bool   `json:"enabled"`
	Destination string `json:"destination"`
}

// @Summary Configure one notification channel
// @Tags notification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param channel path string true "slack or telegram"
// @Param body body putChannelRequest true "channel settings"
// @Success 200 {object} apiResponse
// @Router /api/v1/notification/channels/{channel} [put]
func (h *NotificationHandler) putChannel(c *gin.Context) {
	if h.Channels == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ch, ok := notification.ParseChannel(c.Param("channel"))
	if !ok {
		Error(c, http.StatusBadRequest, "unsupported channel", nil)
		return
	}
	var req putChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	dest := strings.TrimSpace(req.Destination)
	if req.Enabled && dest == "" {
		Error(c, http.StatusBadRequest, "destination required when enabled", nil)
		return
	}
	if ch == notification.ChannelSlack && dest != "" {
		if u, err := url.Parse(dest); err != nil || u.Scheme != "https" || u.Host == "" {
			Error(c, http.StatusBadRequest, "slack destination must be an https webhook url", nil)
			return
		}
	}
	item := &models.NotificationChannel{
		UserID:      auth.UserIDFromContext(c),
		Channel:     string(ch),
		Enabled:     req.Enabled,
		Destination: dest,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.Channels.UpsertNotificationChannel(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, toChannelView(*item), nil)
}

type testSendRequest struct {
	Message string `json:"message"`
}

// @Summary Send a test message to the caller's enabled channels
// @Tags notification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body testSendRequest false "optional message"
// @Success 200 {object} apiResponse
// @Router /api/v1/notification/test [post]
func (h *NotificationHandler) testSend(c *gin.Context) {
	if h.Router == nil {
		Error(c, http.StatusServiceUnavailable, "notification router unavailable", nil)
		return
	}
	var req testSendRequest
	_ = c.ShouldBindJSON(&req)
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		msg = "This is a test notification. Your channel is configured correctly."
	}
	results := h.Router.Deliver(c.Request.Context(), auth.UserIDFromContext(c), "Test notification", msg, map[string]string{"kind": "test"})
	if results == nil {
		results = []notification.DeliveryResult{}
	}
	Ok(c, results, nil)
}

// maskDestination keeps just enough of a destination to recognise it.
func maskDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if u, err := url.Parse(dest); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host + "/***"
	}
	if len(dest) <= 4 {
		return "***"
	}
	return "***" + dest[len(dest)-4:]
}
