// internal/handlers/billing/subscription_handler.go
package billing

import (
	"context"
	"net/http"

	"babylon-billing-service/internal/domain/billing"
	"babylon-billing-service/internal/middleware"
	xerrors "babylon-billing-service/internal/pkg/errors"
	"babylon-billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req billing.CreateSubscriptionRequest) (*billing.CreateSubscriptionResult, error)
}

type SubscriptionHandler struct {
	svc    SubscriptionService
	logger *zap.Logger
}

func NewSubscriptionHandler(svc SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, logger: logger}
}

// CreateSubscription handles POST /api/asaas/create-subscription. The
// response shape is flat because the frontend consumes these fields
// directly.
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req billing.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "planId and userId are required", err)
		return
	}

	callerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	if req.UserID != callerID && !middleware.IsAdmin(c) {
		response.Forbidden(c, "cannot create subscriptions for another user")
		return
	}

	result, err := h.svc.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("create subscription failed",
			zap.String("user_id", req.UserID),
			zap.String("plan_id", req.PlanID),
			zap.Error(err),
		)
		writeBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"subscriptionId": result.SubscriptionID,
		"paymentId":      result.PaymentID,
		"invoiceUrl":     result.InvoiceURL,
		"pixData":        result.PixData,
	})
}

// writeBillingError maps service errors onto HTTP statuses. Gateway
// error descriptions are passed through so the frontend can show them.
func writeBillingError(c *gin.Context, err error) {
	if gwErr, ok := xerrors.AsGateway(err); ok {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": gwErr.Message})
		return
	}

	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": xerrors.MessageOrDefault(err, "not found")})
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": xerrors.MessageOrDefault(err, "invalid request")})
	case xerrors.Is(err, xerrors.ErrPreconditionFailed):
		c.JSON(http.StatusPreconditionFailed, gin.H{"success": false, "error": xerrors.MessageOrDefault(err, "precondition failed")})
	case xerrors.Is(err, xerrors.ErrRetryable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "payment not available yet, try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}
