// internal/service/webhook/reconciler_test.go
package webhook

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"babylon-billing-service/internal/domain/billing"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoices struct {
	invoice *billing.Invoice
	findErr error

	markedID   string
	markedAt   time.Time
	markErr    error
	markCalled int
}

func (f *fakeInvoices) FindByPaymentID(ctx context.Context, paymentID string) (*billing.Invoice, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.invoice, nil
}

func (f *fakeInvoices) MarkPaidWithTx(ctx context.Context, tx pgx.Tx, id string, confirmedAt time.Time) error {
	f.markCalled++
	if f.markErr != nil {
		return f.markErr
	}
	f.markedID = id
	f.markedAt = confirmedAt
	return nil
}

type fakeLicenses struct {
	license *billing.License
	findErr error

	activatedID       string
	activatedExpiry   sql.NullTime
	activateErr       error
	expiredUser       string
	expiredKeep       string
}

func (f *fakeLicenses) FindByPaymentID(ctx context.Context, paymentID string) (*billing.License, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.license, nil
}

func (f *fakeLicenses) ActivateWithTx(ctx context.Context, tx pgx.Tx, id string, expiration sql.NullTime) error {
	if f.activateErr != nil {
		return f.activateErr
	}
	f.activatedID = id
	f.activatedExpiry = expiration
	return nil
}

func (f *fakeLicenses) ExpireOthersWithTx(ctx context.Context, tx pgx.Tx, userID, keepID string) error {
	f.expiredUser = userID
	f.expiredKeep = keepID
	return nil
}

type fakeProfiles struct {
	profile       *billing.Profile
	activeLicense string
}

func (f *fakeProfiles) FindByID(ctx context.Context, id string) (*billing.Profile, error) {
	if f.profile == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeProfiles) SetActiveLicenseWithTx(ctx context.Context, tx pgx.Tx, id, licenseID string) error {
	f.activeLicense = licenseID
	return nil
}

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeDeduper struct {
	first     bool
	firstErr  error
	released  bool
}

func (f *fakeDeduper) FirstDelivery(ctx context.Context, paymentID, eventType string) (bool, error) {
	if f.firstErr != nil {
		return false, f.firstErr
	}
	return f.first, nil
}

func (f *fakeDeduper) Release(ctx context.Context, paymentID, eventType string) error {
	f.released = true
	return nil
}

type fakeSink struct {
	events []*billing.PaymentEvent
}

func (f *fakeSink) PublishPaymentEvent(ev *billing.PaymentEvent) {
	f.events = append(f.events, ev)
}

type fakeReceipts struct {
	enabled bool
	sentTo  string
	plan    string
}

func (f *fakeReceipts) Enabled() bool { return f.enabled }

func (f *fakeReceipts) SendPaymentReceipt(to, planName string, amount float64, expiration *time.Time) error {
	f.sentTo = to
	f.plan = planName
	return nil
}

type reconcilerEnv struct {
	invoices *fakeInvoices
	licenses *fakeLicenses
	profiles *fakeProfiles
	dedupe   *fakeDeduper
	sink     *fakeSink
	receipts *fakeReceipts
	rec      *Reconciler
	now      time.Time
}

func newReconcilerEnv() *reconcilerEnv {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	env := &reconcilerEnv{
		invoices: &fakeInvoices{
			invoice: &billing.Invoice{
				ID:             "inv-1",
				UserID:         "user-1",
				LicenseID:      "lic-1",
				Amount:         29.9,
				Status:         billing.InvoicePendente,
				AsaasPaymentID: "pay_1",
			},
		},
		licenses: &fakeLicenses{
			license: &billing.License{
				ID:     "lic-1",
				UserID: "user-1",
				Name:   "Premium Mensal",
				Type:   billing.PlanMensal,
				Value:  29.9,
				Status: billing.LicensePendente,
			},
		},
		profiles: &fakeProfiles{
			profile: &billing.Profile{ID: "user-1", Email: "maria@example.com"},
		},
		dedupe:   &fakeDeduper{first: true},
		sink:     &fakeSink{},
		receipts: &fakeReceipts{enabled: true},
		now:      now,
	}

	env.rec = NewReconciler(
		env.invoices, env.licenses, env.profiles, fakeTx{},
		env.dedupe, env.sink, env.receipts, zap.NewNop(),
	)
	env.rec.now = func() time.Time { return now }
	return env
}

func confirmedNotification(paymentID string) billing.WebhookNotification {
	return billing.WebhookNotification{
		Event:   EventPaymentConfirmed,
		Payment: &billing.WebhookPayment{ID: paymentID, Value: 29.9, Status: "CONFIRMED"},
	}
}

func TestProcessNotificationActivatesLicense(t *testing.T) {
	env := newReconcilerEnv()

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.NoError(t, err)

	assert.Equal(t, "inv-1", env.invoices.markedID)
	assert.Equal(t, env.now, env.invoices.markedAt)

	assert.Equal(t, "lic-1", env.licenses.activatedID)
	require.True(t, env.licenses.activatedExpiry.Valid)
	assert.Equal(t, env.now.AddDate(0, 1, 0), env.licenses.activatedExpiry.Time)

	assert.Equal(t, "user-1", env.licenses.expiredUser)
	assert.Equal(t, "lic-1", env.licenses.expiredKeep)
	assert.Equal(t, "lic-1", env.profiles.activeLicense)

	require.Len(t, env.sink.events, 1)
	assert.Equal(t, "user-1", env.sink.events[0].UserID)
	assert.Equal(t, billing.LicenseAtiva, env.sink.events[0].LicenseStatus)

	assert.Equal(t, "maria@example.com", env.receipts.sentTo)
	assert.Equal(t, "Premium Mensal", env.receipts.plan)
}

func TestProcessNotificationLifetimePlanHasNoExpiration(t *testing.T) {
	env := newReconcilerEnv()
	env.licenses.license.Type = billing.PlanVitalicia

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.NoError(t, err)

	assert.False(t, env.licenses.activatedExpiry.Valid)
	require.Len(t, env.sink.events, 1)
	assert.Nil(t, env.sink.events[0].ExpirationDate)
}

func TestProcessNotificationIgnoresOtherEvents(t *testing.T) {
	env := newReconcilerEnv()

	err := env.rec.ProcessNotification(context.Background(), billing.WebhookNotification{
		Event:   "PAYMENT_OVERDUE",
		Payment: &billing.WebhookPayment{ID: "pay_1"},
	})
	require.NoError(t, err)

	assert.Empty(t, env.invoices.markedID)
	assert.Empty(t, env.sink.events)
}

func TestProcessNotificationWithoutPayment(t *testing.T) {
	env := newReconcilerEnv()

	err := env.rec.ProcessNotification(context.Background(), billing.WebhookNotification{
		Event: EventPaymentConfirmed,
	})
	require.NoError(t, err)
	assert.Empty(t, env.invoices.markedID)
}

func TestProcessNotificationUnknownPayment(t *testing.T) {
	env := newReconcilerEnv()
	env.invoices.findErr = xerrors.ErrNotFound

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_other"))
	require.NoError(t, err)

	assert.Empty(t, env.licenses.activatedID)
	assert.Empty(t, env.sink.events)
}

func TestProcessNotificationDuplicateInvoiceAlreadyPaid(t *testing.T) {
	env := newReconcilerEnv()
	env.invoices.invoice.Status = billing.InvoicePago

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.NoError(t, err)

	assert.Equal(t, 0, env.invoices.markCalled)
	assert.Empty(t, env.sink.events)
}

func TestProcessNotificationDuplicateDelivery(t *testing.T) {
	env := newReconcilerEnv()
	env.dedupe.first = false

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.NoError(t, err)

	assert.Equal(t, 0, env.invoices.markCalled)
	assert.Empty(t, env.sink.events)
}

func TestProcessNotificationTxFailureReleasesClaim(t *testing.T) {
	env := newReconcilerEnv()
	env.invoices.markErr = errors.New("connection reset")

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.Error(t, err)

	assert.True(t, env.dedupe.released)
	assert.Empty(t, env.sink.events)
}

func TestProcessNotificationConcurrentWinnerIsAcknowledged(t *testing.T) {
	env := newReconcilerEnv()
	env.invoices.markErr = xerrors.ErrInvalidTransition

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.NoError(t, err)

	// The other delivery already settled the state; the claim stays.
	assert.False(t, env.dedupe.released)
	assert.Empty(t, env.sink.events)
}

func TestProcessNotificationInvoicePaidWhenLicenseAlreadyDemoted(t *testing.T) {
	env := newReconcilerEnv()
	// A newer purchase confirmed first and ExpireOthersWithTx demoted this
	// license while its payment was still in flight.
	env.licenses.activateErr = xerrors.ErrInvalidTransition

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.NoError(t, err)

	// The money arrived, so the invoice must settle even though the
	// license cannot come back.
	assert.Equal(t, "inv-1", env.invoices.markedID)
	assert.Empty(t, env.licenses.expiredUser)
	assert.Empty(t, env.profiles.activeLicense)
	assert.Empty(t, env.sink.events)
	assert.Empty(t, env.receipts.sentTo)
	assert.False(t, env.dedupe.released)
}

func TestProcessNotificationInvoicePaidWhenLicenseMissing(t *testing.T) {
	env := newReconcilerEnv()
	env.licenses.findErr = xerrors.ErrNotFound

	err := env.rec.ProcessNotification(context.Background(), confirmedNotification("pay_1"))
	require.NoError(t, err)

	assert.Equal(t, "inv-1", env.invoices.markedID)
	assert.Empty(t, env.licenses.activatedID)
	assert.Empty(t, env.sink.events)
	assert.False(t, env.dedupe.released)
}
