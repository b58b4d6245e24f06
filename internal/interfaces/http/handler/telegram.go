package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/delivery/backend/internal/application/dispatch"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TelegramSecretHeader carries the secret registered with setWebhook
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes Telegram bot updates
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u dispatch.Update) error
}

// TelegramHandler receives the bot webhook
type TelegramHandler struct {
	BaseHandler
	updates UpdateHandler
	secret  string
}

// NewTelegramHandler creates a new TelegramHandler. An empty secret skips
// the header check.
func NewTelegramHandler(updates UpdateHandler, secret string) *TelegramHandler {
	return &TelegramHandler{updates: updates, secret: secret}
}

// Webhook handles POST /telegram/webhook. Processing failures are logged
// and still acknowledged so Telegram does not redeliver the update.
func (h *TelegramHandler) Webhook(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(TelegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.Unauthorized(c, "Invalid webhook secret")
			return
		}
	}

	var update dispatch.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.BadRequest(c, "Invalid update")
		return
	}

	if err := h.updates.HandleUpdate(c.Request.Context(), update); err != nil {
		logger.GetGinLogger(c).Error("telegram update failed",
			zap.Int64("update_id", update.UpdateID), zap.Error(err))
	}
	c.Status(http.StatusOK)
}
