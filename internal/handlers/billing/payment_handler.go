// internal/handlers/billing/payment_handler.go
package billing

import (
	"context"
	"net/http"

	"babylon-billing-service/internal/domain/billing"
	"babylon-billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentID string) (*billing.VerifyPaymentResult, error)
}

type PaymentHandler struct {
	verifier PaymentVerifier
	logger   *zap.Logger
}

func NewPaymentHandler(verifier PaymentVerifier, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{verifier: verifier, logger: logger}
}

// VerifyPayment handles POST /api/asaas/verify-payment.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req billing.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "paymentId is required", err)
		return
	}

	result, err := h.verifier.VerifyPayment(c.Request.Context(), req.PaymentID)
	if err != nil {
		h.logger.Error("verify payment failed",
			zap.String("payment_id", req.PaymentID), zap.Error(err))
		writeBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"paid":    result.Paid,
		"status":  result.Status,
		"payment": result.Payment,
	})
}
