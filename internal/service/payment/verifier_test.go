// internal/service/payment/verifier_test.go
package payment

import (
	"context"
	"testing"

	"babylon-billing-service/internal/domain/settings"
	"babylon-billing-service/internal/gateway/asaas"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsPaid(t *testing.T) {
	cases := []struct {
		status string
		paid   bool
	}{
		{"RECEIVED", true},
		{"CONFIRMED", true},
		{"RECEIVED_IN_CASH", true},
		{"PENDING", false},
		{"OVERDUE", false},
		{"REFUNDED", false},
		{"AWAITING_RISK_ANALYSIS", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.paid, IsPaid(tc.status), "status %q", tc.status)
	}
}

type fakeSettings struct{}

func (fakeSettings) Gateway(ctx context.Context) (settings.GatewaySettings, error) {
	return settings.GatewaySettings{AsaasAPIKey: "key"}, nil
}

type fakeGateway struct {
	payment *asaas.Payment
	err     error
}

func (f *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*asaas.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payment, nil
}

func TestVerifyPayment(t *testing.T) {
	gw := &fakeGateway{payment: &asaas.Payment{ID: "pay_1", Status: "CONFIRMED"}}
	v := NewVerifier(fakeSettings{}, func(cfg settings.GatewaySettings) Gateway { return gw }, zap.NewNop())

	result, err := v.VerifyPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, "CONFIRMED", result.Status)

	gw.payment.Status = "PENDING"
	result, err = v.VerifyPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.False(t, result.Paid)
}

func TestVerifyPaymentEmptyID(t *testing.T) {
	v := NewVerifier(fakeSettings{}, func(cfg settings.GatewaySettings) Gateway {
		t.Fatal("gateway must not be built for empty payment id")
		return nil
	}, zap.NewNop())

	_, err := v.VerifyPayment(context.Background(), "")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestVerifyPaymentGatewayError(t *testing.T) {
	gw := &fakeGateway{err: &xerrors.GatewayError{Status: 404, Message: "payment not found"}}
	v := NewVerifier(fakeSettings{}, func(cfg settings.GatewaySettings) Gateway { return gw }, zap.NewNop())

	_, err := v.VerifyPayment(context.Background(), "pay_missing")
	require.Error(t, err)

	gwErr, ok := xerrors.AsGateway(err)
	require.True(t, ok)
	assert.Equal(t, 404, gwErr.Status)
}
