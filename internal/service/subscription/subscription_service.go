// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"fmt"
	"time"

	"babylon-billing-service/internal/domain/billing"
	"babylon-billing-service/internal/domain/settings"
	"babylon-billing-service/internal/gateway/asaas"
	xerrors "babylon-billing-service/internal/pkg/errors"
	"babylon-billing-service/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Gateway is the slice of the Asaas client the orchestrator needs.
type Gateway interface {
	CreateCustomer(ctx context.Context, req asaas.CreateCustomerRequest) (*asaas.Customer, error)
	CreateSubscription(ctx context.Context, req asaas.CreateSubscriptionRequest) (*asaas.Subscription, error)
	ListSubscriptionPayments(ctx context.Context, subscriptionID string) ([]asaas.Payment, error)
	GetPixQRCode(ctx context.Context, paymentID string) (*asaas.PixQRCode, error)
}

// GatewayFactory builds a gateway client from the current settings, so a
// key or environment change takes effect without a restart.
type GatewayFactory func(cfg settings.GatewaySettings) Gateway

type ProfileRepo interface {
	FindByID(ctx context.Context, id string) (*billing.Profile, error)
	SetAsaasCustomerID(ctx context.Context, id, customerID string) error
}

type PlanRepo interface {
	FindByID(ctx context.Context, id string) (*billing.LicensePlan, error)
}

type LicenseRepo interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, lic *billing.License) error
}

type InvoiceRepo interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, inv *billing.Invoice) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type SettingsProvider interface {
	Gateway(ctx context.Context) (settings.GatewaySettings, error)
}

// Service creates subscriptions on the payment gateway and records the
// pending license and invoice locally in a single transaction.
type Service struct {
	profiles ProfileRepo
	plans    PlanRepo
	licenses LicenseRepo
	invoices InvoiceRepo
	tx       TxRunner
	settings SettingsProvider
	gateway  GatewayFactory
	logger   *zap.Logger

	now        func() time.Time
	pollDelays []time.Duration
}

func NewService(
	profiles ProfileRepo,
	plans PlanRepo,
	licenses LicenseRepo,
	invoices InvoiceRepo,
	tx TxRunner,
	settings SettingsProvider,
	gateway GatewayFactory,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles: profiles,
		plans:    plans,
		licenses: licenses,
		invoices: invoices,
		tx:       tx,
		settings: settings,
		gateway:  gateway,
		logger:   logger,
		now:      time.Now,
		// The gateway generates the first charge asynchronously after the
		// subscription is created. Retry with growing delays instead of a
		// single fixed sleep.
		pollDelays: []time.Duration{
			500 * time.Millisecond,
			time.Second,
			2 * time.Second,
			4 * time.Second,
		},
	}
}

// CreateSubscription runs the full checkout flow: validate the plan and
// profile, ensure a gateway customer exists, create the recurring charge,
// wait for its first payment and persist the pending license and invoice
// atomically.
func (s *Service) CreateSubscription(ctx context.Context, req billing.CreateSubscriptionRequest) (*billing.CreateSubscriptionResult, error) {
	billingType := req.BillingType
	if billingType == "" {
		billingType = billing.BillingUndefined
	}
	switch billingType {
	case billing.BillingBoleto, billing.BillingCreditCard, billing.BillingPix, billing.BillingUndefined:
	default:
		return nil, fmt.Errorf("billing type %q: %w", req.BillingType, xerrors.ErrInvalidInput)
	}

	plan, err := s.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, xerrors.Wrap(err, "plan lookup failed")
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("plan %s is not available: %w", plan.ID, xerrors.ErrInvalidInput)
	}

	profile, err := s.profiles.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, xerrors.Wrap(err, "profile lookup failed")
	}

	// CPF/CNPJ is mandatory on the gateway side. Reject before touching
	// the gateway so nothing is half-created. Formatted values with no
	// digits at all count as absent.
	if billing.DigitsOnly(profile.CpfCnpj) == "" {
		return nil, fmt.Errorf("profile has no CPF/CNPJ: %w", xerrors.ErrPreconditionFailed)
	}

	cfg, err := s.settings.Gateway(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "gateway settings unavailable")
	}
	gw := s.gateway(cfg)

	customerID, err := s.ensureCustomer(ctx, gw, profile)
	if err != nil {
		return nil, err
	}

	sub, err := gw.CreateSubscription(ctx, asaas.CreateSubscriptionRequest{
		Customer:          customerID,
		BillingType:       string(billingType),
		Value:             plan.Price,
		NextDueDate:       s.now().Add(24 * time.Hour).Format("2006-01-02"),
		Cycle:             billing.BillingCycleFor(plan.Type),
		Description:       plan.Name,
		ExternalReference: uuid.NewString(),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create subscription on gateway")
	}

	payment, err := s.awaitFirstPayment(ctx, gw, sub.ID)
	if err != nil {
		return nil, err
	}

	licenseID := ulid.Make().String()
	invoiceID := ulid.Make().String()
	createdAt := s.now()

	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		lic := &billing.License{
			ID:                  licenseID,
			UserID:              profile.ID,
			PlanID:              plan.ID,
			Name:                plan.Name,
			Type:                plan.Type,
			Value:               plan.Price,
			Status:              billing.LicensePendente,
			AsaasSubscriptionID: sub.ID,
			AsaasPaymentID:      payment.ID,
			CreatedAt:           createdAt,
			UpdatedAt:           createdAt,
		}
		if err := s.licenses.CreateWithTx(ctx, tx, lic); err != nil {
			return xerrors.Wrap(err, "failed to persist license")
		}

		inv := &billing.Invoice{
			ID:             invoiceID,
			UserID:         profile.ID,
			LicenseID:      licenseID,
			Amount:         payment.Value,
			Status:         billing.InvoicePendente,
			AsaasPaymentID: payment.ID,
			InvoiceURL:     payment.InvoiceURL,
			CreatedAt:      createdAt,
			UpdatedAt:      createdAt,
		}
		if err := s.invoices.CreateWithTx(ctx, tx, inv); err != nil {
			return xerrors.Wrap(err, "failed to persist invoice")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &billing.CreateSubscriptionResult{
		SubscriptionID: sub.ID,
		PaymentID:      payment.ID,
		InvoiceURL:     payment.InvoiceURL,
	}

	if billingType == billing.BillingPix {
		qr, err := gw.GetPixQRCode(ctx, payment.ID)
		if err != nil {
			// The invoice URL still lets the user pay, so a QR failure is
			// not fatal.
			s.logger.Warn("failed to fetch PIX QR code",
				zap.String("payment_id", payment.ID), zap.Error(err))
		} else {
			result.PixData = &billing.PixData{
				EncodedImage: qr.EncodedImage,
				Payload:      qr.Payload,
			}
		}
	}

	metrics.SubscriptionsCreated.Inc()
	s.logger.Info("subscription created",
		zap.String("user_id", profile.ID),
		zap.String("plan_id", plan.ID),
		zap.String("subscription_id", sub.ID),
		zap.String("payment_id", payment.ID),
	)

	return result, nil
}

// ensureCustomer returns the profile's gateway customer ID, creating the
// customer on the gateway when the profile has none yet.
func (s *Service) ensureCustomer(ctx context.Context, gw Gateway, profile *billing.Profile) (string, error) {
	if profile.AsaasCustomerID.Valid && profile.AsaasCustomerID.String != "" {
		return profile.AsaasCustomerID.String, nil
	}

	customer, err := gw.CreateCustomer(ctx, asaas.CreateCustomerRequest{
		Name:                 profile.Name,
		Email:                profile.Email,
		CpfCnpj:              billing.DigitsOnly(profile.CpfCnpj),
		NotificationDisabled: true,
	})
	if err != nil {
		return "", xerrors.Wrap(err, "failed to create gateway customer")
	}

	if err := s.profiles.SetAsaasCustomerID(ctx, profile.ID, customer.ID); err != nil {
		return "", xerrors.Wrap(err, "failed to store gateway customer id")
	}

	return customer.ID, nil
}

// awaitFirstPayment polls the subscription's payment list until the first
// charge shows up or the delays are exhausted.
func (s *Service) awaitFirstPayment(ctx context.Context, gw Gateway, subscriptionID string) (*asaas.Payment, error) {
	for attempt := 0; ; attempt++ {
		payments, err := gw.ListSubscriptionPayments(ctx, subscriptionID)
		if err != nil {
			return nil, xerrors.Wrap(err, "failed to list subscription payments")
		}
		if len(payments) > 0 {
			return &payments[0], nil
		}

		if attempt >= len(s.pollDelays) {
			return nil, fmt.Errorf("first payment for subscription %s not available yet: %w",
				subscriptionID, xerrors.ErrRetryable)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollDelays[attempt]):
		}
	}
}
