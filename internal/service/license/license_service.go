// internal/service/license/license_service.go
package license

import (
	"context"

	"babylon-billing-service/internal/domain/billing"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type LicenseRepo interface {
	FindActiveByUser(ctx context.Context, userID string) (*billing.License, error)
	ListByUser(ctx context.Context, userID string) ([]billing.License, error)
}

type InvoiceRepo interface {
	ListByUser(ctx context.Context, userID string) ([]billing.Invoice, error)
}

type PlanRepo interface {
	ListActive(ctx context.Context) ([]billing.LicensePlan, error)
}

// Service serves the read side of billing: plans on offer, the caller's
// active license, license history and invoices.
type Service struct {
	licenses LicenseRepo
	invoices InvoiceRepo
	plans    PlanRepo
	logger   *zap.Logger
}

func NewService(licenses LicenseRepo, invoices InvoiceRepo, plans PlanRepo, logger *zap.Logger) *Service {
	return &Service{licenses: licenses, invoices: invoices, plans: plans, logger: logger}
}

func (s *Service) ListPlans(ctx context.Context) ([]billing.LicensePlan, error) {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list plans")
	}
	return plans, nil
}

// ActiveLicense returns the user's current active license, or
// xerrors.ErrNotFound when the user has none.
func (s *Service) ActiveLicense(ctx context.Context, userID string) (*billing.License, error) {
	return s.licenses.FindActiveByUser(ctx, userID)
}

func (s *Service) LicenseHistory(ctx context.Context, userID string) ([]billing.License, error) {
	licenses, err := s.licenses.ListByUser(ctx, userID)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list licenses")
	}
	return licenses, nil
}

func (s *Service) Invoices(ctx context.Context, userID string) ([]billing.Invoice, error) {
	invoices, err := s.invoices.ListByUser(ctx, userID)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list invoices")
	}
	return invoices, nil
}
