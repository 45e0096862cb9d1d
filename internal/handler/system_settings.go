package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketalert/internal/repository"
	"marketalert/internal/service"
)

type SystemSettingsHandler struct {
	Repo     repository.SystemSettingRepository
	Settings *service.SystemSettingsService
}

func (h *SystemSettingsHandler) Register(g *gin.RouterGroup) {
	s := g.Group("/system-settings")
	s.GET("/switches", h.listSwitches)
	s.GET("/switches/:name", h.getSwitch)
	s.PUT("/switches/:name", h.putSwitch)
}

type switchView struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// @Summary List feature switches
// @Tags system-settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} apiResponse
// @Router /api/v1/system-settings/switches [get]
func (h *SystemSettingsHandler) listSwitches(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	prefix := "feature."
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), repository.ListSystemSettingsParams{
		Limit:  intQuery(c, "limit", 200),
		Offset: intQuery(c, "offset", 0),
		Prefix: &prefix,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]switchView, 0, len(items))
	for _, it := range items {
		enabled := false
		_ = json.Unmarshal(it.Value, &enabled)
		out = append(out, switchView{
			Name:    strings.TrimPrefix(it.Key, prefix),
			Key:     it.Key,
			Enabled: enabled,
		})
	}
	Ok(c, out, nil)
}

func (h *SystemSettingsHandler) getSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	key := service.FeatureKey(name)
	Ok(c, switchView{
		Name:    strings.TrimPrefix(key, "feature."),
		Key:     key,
		Enabled: h.Settings.IsEnabled(c.Request.Context(), key, false),
	}, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// @Summary Turn a feature switch on or off
// @Tags system-settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "switch name, e.g. alert_monitor"
// @Param body body putSwitchRequest true "new state"
// @Success 200 {object} apiResponse
// @Router /api/v1/system-settings/switches/{name} [put]
func (h *SystemSettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	key := service.FeatureKey(name)
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, switchView{
		Name:    strings.TrimPrefix(key, "feature."),
		Key:     key,
		Enabled: *req.Enabled,
	}, nil)
}
