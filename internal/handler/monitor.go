package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketalert/internal/alerting"
	"marketalert/internal/auth"
	"marketalert/internal/repository"
)

type StatusSource interface {
	Status() alerting.Status
}

type MonitorHandler struct {
	Monitor StatusSource
	Alerts  repository.AlertRepository
}

func (h *MonitorHandler) Register(g *gin.RouterGroup) {
	g.GET("/monitor/status", h.status)
	g.GET("/alerts/triggered", h.listTriggered)
}

// @Summary Alert monitor status on this instance
// @Tags monitor
// @Produce json
// @Security BearerAuth
// @Success 200 {object} apiResponse
// @Router /api/v1/monitor/status [get]
func (h *MonitorHandler) status(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusServiceUnavailable, "monitor not running", nil)
		return
	}
	Ok(c, h.Monitor.Status(), nil)
}

type triggeredAlertView struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol,omitempty"`
	Kind        string          `json:"kind"`
	Condition   json.RawMessage `json:"condition"`
	TriggeredAt *time.Time      `json:"triggered_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// @Summary Triggered alerts of the caller, newest first
// @Tags monitor
// @Produce json
// @Security BearerAuth
// @Param limit query int false "page size" default(50)
// @Param offset query int false "offset"
// @Param since query string false "RFC3339 lower bound on triggered_at"
// @Success 200 {object} apiResponse
// @Router /api/v1/alerts/triggered [get]
func (h *MonitorHandler) listTriggered(c *gin.Context) {
	if h.Alerts == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListTriggeredAlertsParams{
		UserID: auth.UserIDFromContext(c),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if params.UserID == "" {
		Error(c, http.StatusUnauthorized, "missing user", nil)
		return
	}
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid since", nil)
			return
		}
		params.Since = &since
	}

	items, err := h.Alerts.ListTriggeredAlerts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Alerts.CountTriggeredAlerts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]triggeredAlertView, 0, len(items))
	for _, a := range items {
		var cond json.RawMessage
		if len(a.Condition) > 0 {
			cond = json.RawMessage(a.Condition)
		}
		out = append(out, triggeredAlertView{
			ID:          a.ID.String(),
			Symbol:      a.Symbol(),
			Kind:        string(a.Kind),
			Condition:   cond,
			TriggeredAt: a.TriggeredAt,
			CreatedAt:   a.CreatedAt,
		})
	}
	Ok(c, out, paginationMeta(params.Limit, params.Offset, total))
}
