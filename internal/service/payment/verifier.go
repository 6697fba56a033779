// internal/service/payment/verifier.go
package payment

import (
	"context"

	"babylon-billing-service/internal/domain/billing"
	"babylon-billing-service/internal/domain/settings"
	"babylon-billing-service/internal/gateway/asaas"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Gateway statuses that count as settled money.
var paidStatuses = map[string]bool{
	"RECEIVED":         true,
	"CONFIRMED":        true,
	"RECEIVED_IN_CASH": true,
}

// IsPaid reports whether a gateway payment status represents a completed
// payment.
func IsPaid(status string) bool {
	return paidStatuses[status]
}

type Gateway interface {
	GetPayment(ctx context.Context, paymentID string) (*asaas.Payment, error)
}

type GatewayFactory func(cfg settings.GatewaySettings) Gateway

type SettingsProvider interface {
	Gateway(ctx context.Context) (settings.GatewaySettings, error)
}

// Verifier answers "is this payment paid" straight from the gateway. It
// never mutates local state; activation is the reconciler's job.
type Verifier struct {
	settings SettingsProvider
	gateway  GatewayFactory
	logger   *zap.Logger
}

func NewVerifier(settings SettingsProvider, gateway GatewayFactory, logger *zap.Logger) *Verifier {
	return &Verifier{settings: settings, gateway: gateway, logger: logger}
}

func (v *Verifier) VerifyPayment(ctx context.Context, paymentID string) (*billing.VerifyPaymentResult, error) {
	if paymentID == "" {
		return nil, xerrors.ErrInvalidInput
	}

	cfg, err := v.settings.Gateway(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "gateway settings unavailable")
	}

	payment, err := v.gateway(cfg).GetPayment(ctx, paymentID)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to fetch payment")
	}

	return &billing.VerifyPaymentResult{
		Paid:    IsPaid(payment.Status),
		Status:  payment.Status,
		Payment: payment,
	}, nil
}
