// internal/handlers/license/license_handler.go
package license

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

type LicenseReader interface {
	ActiveLicense(ctx context.Context, userID string) (*billing.License, error)
	LicenseHistory(ctx context.Context, userID string) ([]billing.License, error)
	Invoices(ctx context.Context, userID string) ([]billing.Invoice, error)
}

type Handler struct {
	svc    LicenseReader
	logger *zap.Logger
}

func NewHandler(svc LicenseReader, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Active handles GET /api/licenses/active.
func (h *Handler) Active(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	lic, err := h.svc.ActiveLicense(c.Request.Context(), userID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no active license")
			return
		}
		h.logger.Error("failed to load active license",
			zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to load license", nil)
		return
	}

	response.Success(c, http.StatusOK, "active license retrieved", lic)
}

// History handles GET /api/licenses.
func (h *Handler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	licenses, err := h.svc.LicenseHistory(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list licenses",
			zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to list licenses", nil)
		return
	}

	response.Success(c, http.StatusOK, "licenses retrieved", licenses)
}

// Invoices handles GET /api/invoices.
func (h *Handler) Invoices(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	invoices, err := h.svc.Invoices(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list invoices",
			zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to list invoices", nil)
		return
	}

	response.Success(c, http.StatusOK, "invoices retrieved", invoices)
}
