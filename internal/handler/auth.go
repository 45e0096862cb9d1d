package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketalert/internal/auth"
)

type AuthHandler struct {
	Keys *auth.KeyStore
	JWT  auth.JWT
}

func (h *AuthHandler) Register(r gin.IRouter) {
	r.POST("/api/auth/token", h.token)
}

type tokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// @Summary Exchange an API key for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body tokenRequest true "API key"
// @Success 200 {object} tokenResponse
// @Failure 401 {object} apiResponse
// @Failure 429 {string} string "Too many requests"
// @Router /api/auth/token [post]
func (h *AuthHandler) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	userID, ok := h.Keys.Validate(req.APIKey)
	if !ok {
		Error(c, http.StatusUnauthorized, "invalid api key", nil)
		return
	}
	tok, exp, err := h.JWT.Sign(auth.Claims{UserID: userID})
	if err != nil {
		Error(c, http.StatusInternalServerError, "failed to sign token", nil)
		return
	}
	Ok(c, tokenResponse{Token: tok, ExpiresAt: exp.UTC().Format(time.RFC3339)}, nil)
}
