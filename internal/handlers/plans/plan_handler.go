// internal/handlers/plans/plan_handler.go
package plans

import (
	"context"
	"net/http"

	"babylon-billing-service/internal/domain/billing"
	"babylon-billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PlanLister interface {
	ListPlans(ctx context.Context) ([]billing.LicensePlan, error)
}

type Handler struct {
	svc    PlanLister
	logger *zap.Logger
}

func NewHandler(svc PlanLister, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /api/plans. Public, only active plans are returned.
func (h *Handler) List(c *gin.Context) {
	plans, err := h.svc.ListPlans(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list plans", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to list plans", nil)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", plans)
}
