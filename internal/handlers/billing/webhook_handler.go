// internal/handlers/billing/webhook_handler.go
package billing

import (
	"context"
	"net/http"

	"babylon-billing-service/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookTokenHeader = "asaas-access-token"

type WebhookProcessor interface {
	ProcessNotification(ctx context.Context, n billing.WebhookNotification) error
}

type TokenVerifier interface {
	VerifyWebhookToken(ctx context.Context, token string) error
}

type WebhookHandler struct {
	processor WebhookProcessor
	tokens    TokenVerifier
	logger    *zap.Logger
}

func NewWebhookHandler(processor WebhookProcessor, tokens TokenVerifier, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, tokens: tokens, logger: logger}
}

// HandleNotification handles POST /api/asaas/asaas-webhook. A 200 tells
// the gateway the delivery is settled; a 5xx makes it retry later.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	token := c.GetHeader(webhookTokenHeader)
	if err := h.tokens.VerifyWebhookToken(c.Request.Context(), token); err != nil {
		h.logger.Warn("webhook rejected, invalid token", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid webhook token"})
		return
	}

	var n billing.WebhookNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		// Malformed deliveries will never parse on retry either.
		h.logger.Warn("webhook with invalid body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload"})
		return
	}

	if err := h.processor.ProcessNotification(c.Request.Context(), n); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("event", n.Event), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
