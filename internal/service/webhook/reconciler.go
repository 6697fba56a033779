// internal/service/webhook/reconciler.go
package webhook

import (
	"context"
	"database/sql"
	"time"

	"babylon-billing-service/internal/domain/billing"
	xerrors "babylon-billing-service/internal/pkg/errors"
	"babylon-billing-service/internal/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Events that move an invoice to paid. Everything else Asaas sends
// (overdue, refunded, deleted, ...) is acknowledged and ignored.
const (
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
)

type InvoiceRepo interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*billing.Invoice, error)
	MarkPaidWithTx(ctx context.Context, tx pgx.Tx, id string, confirmedAt time.Time) error
}

type LicenseRepo interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*billing.License, error)
	ActivateWithTx(ctx context.Context, tx pgx.Tx, id string, expiration sql.NullTime) error
	ExpireOthersWithTx(ctx context.Context, tx pgx.Tx, userID, keepID string) error
}

type ProfileRepo interface {
	FindByID(ctx context.Context, id string) (*billing.Profile, error)
	SetActiveLicenseWithTx(ctx context.Context, tx pgx.Tx, id, licenseID string) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Deduper claims a webhook delivery so retries and duplicate events do
// not reconcile the same payment twice.
type Deduper interface {
	FirstDelivery(ctx context.Context, paymentID, eventType string) (bool, error)
	Release(ctx context.Context, paymentID, eventType string) error
}

// EventSink receives the reconciled payment for realtime delivery.
type EventSink interface {
	PublishPaymentEvent(ev *billing.PaymentEvent)
}

// ReceiptSender sends the payment receipt email after reconciliation.
type ReceiptSender interface {
	Enabled() bool
	SendPaymentReceipt(to, planName string, amount float64, expiration *time.Time) error
}

// Reconciler applies confirmed gateway payments to the local billing
// state: the invoice becomes paid, the license becomes active with its
// computed expiration, older licenses are demoted and the profile points
// at the new license. All of that happens in one transaction.
type Reconciler struct {
	invoices InvoiceRepo
	licenses LicenseRepo
	profiles ProfileRepo
	tx       TxRunner
	dedupe   Deduper
	events   EventSink
	receipts ReceiptSender
	logger   *zap.Logger

	now func() time.Time
}

func NewReconciler(
	invoices InvoiceRepo,
	licenses LicenseRepo,
	profiles ProfileRepo,
	tx TxRunner,
	dedupe Deduper,
	events EventSink,
	receipts ReceiptSender,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		invoices: invoices,
		licenses: licenses,
		profiles: profiles,
		tx:       tx,
		dedupe:   dedupe,
		events:   events,
		receipts: receipts,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessNotification handles one webhook delivery. A nil return means
// the delivery is settled and the gateway must not retry it; that covers
// payments we do not know about and duplicates as well as successful
// reconciliation.
func (r *Reconciler) ProcessNotification(ctx context.Context, n billing.WebhookNotification) error {
	if n.Payment == nil || n.Payment.ID == "" {
		metrics.WebhookEvents.WithLabelValues(n.Event, "no_payment").Inc()
		return nil
	}

	if n.Event != EventPaymentConfirmed && n.Event != EventPaymentReceived {
		metrics.WebhookEvents.WithLabelValues(n.Event, "ignored").Inc()
		return nil
	}

	paymentID := n.Payment.ID

	invoice, err := r.invoices.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			// Payments from other systems sharing the same Asaas account
			// end up here. Acknowledge and move on.
			r.logger.Info("webhook for unknown payment",
				zap.String("payment_id", paymentID), zap.String("event", n.Event))
			metrics.WebhookEvents.WithLabelValues(n.Event, "unmatched").Inc()
			return nil
		}
		return xerrors.Wrap(err, "invoice lookup failed")
	}

	if invoice.Status == billing.InvoicePago {
		metrics.WebhookEvents.WithLabelValues(n.Event, "duplicate").Inc()
		return nil
	}

	first, err := r.dedupe.FirstDelivery(ctx, paymentID, n.Event)
	if err != nil {
		return xerrors.Wrap(err, "dedupe check failed")
	}
	if !first {
		metrics.WebhookEvents.WithLabelValues(n.Event, "duplicate").Inc()
		return nil
	}

	license, err := r.licenses.FindByPaymentID(ctx, paymentID)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		r.releaseClaim(ctx, paymentID, n.Event)
		return xerrors.Wrap(err, "license lookup failed")
	}
	// A missing license cannot happen through the orchestrator, which
	// inserts both rows in one transaction, but money received must still
	// settle the invoice.

	confirmedAt := r.now()
	var expiration sql.NullTime
	if license != nil {
		expiration = billing.ExpirationFor(license.Type, confirmedAt)
	}

	// The invoice write stands on its own. A license that cannot activate
	// anymore, demoted after a newer purchase confirmed first, must not
	// roll back the record that the payment arrived.
	invoicePaid := true
	licenseActivated := false

	err = r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := r.invoices.MarkPaidWithTx(ctx, tx, invoice.ID, confirmedAt); err != nil {
			if xerrors.Is(err, xerrors.ErrInvalidTransition) {
				invoicePaid = false
				return nil
			}
			return err
		}
		if license == nil {
			return nil
		}
		if err := r.licenses.ActivateWithTx(ctx, tx, license.ID, expiration); err != nil {
			if xerrors.Is(err, xerrors.ErrInvalidTransition) {
				return nil
			}
			return err
		}
		licenseActivated = true
		if err := r.licenses.ExpireOthersWithTx(ctx, tx, license.UserID, license.ID); err != nil {
			return err
		}
		return r.profiles.SetActiveLicenseWithTx(ctx, tx, license.UserID, license.ID)
	})
	if err != nil {
		r.releaseClaim(ctx, paymentID, n.Event)
		return xerrors.Wrap(err, "reconciliation failed")
	}

	if !invoicePaid {
		// A concurrent delivery won the race and the state is already
		// settled. Keep the claim and acknowledge.
		r.logger.Info("payment already reconciled",
			zap.String("payment_id", paymentID), zap.String("event", n.Event))
		metrics.WebhookEvents.WithLabelValues(n.Event, "duplicate").Inc()
		return nil
	}

	metrics.PaymentsConfirmed.Inc()

	if !licenseActivated {
		licenseID := ""
		if license != nil {
			licenseID = license.ID
		}
		r.logger.Warn("invoice settled without license activation",
			zap.String("payment_id", paymentID),
			zap.String("license_id", licenseID),
			zap.String("event", n.Event),
		)
		metrics.WebhookEvents.WithLabelValues(n.Event, "invoice_only").Inc()
		return nil
	}

	metrics.WebhookEvents.WithLabelValues(n.Event, "processed").Inc()

	ev := &billing.PaymentEvent{
		UserID:        license.UserID,
		PaymentID:     paymentID,
		LicenseID:     license.ID,
		LicenseStatus: billing.LicenseAtiva,
		ConfirmedAt:   confirmedAt,
	}
	if expiration.Valid {
		t := expiration.Time
		ev.ExpirationDate = &t
	}
	r.events.PublishPaymentEvent(ev)

	r.sendReceipt(ctx, license, ev.ExpirationDate)

	r.logger.Info("payment reconciled",
		zap.String("payment_id", paymentID),
		zap.String("license_id", license.ID),
		zap.String("user_id", license.UserID),
	)
	return nil
}

// releaseClaim frees the dedupe claim so the gateway's retry can try
// again. Failing to release only delays the retry until the claim TTL
// lapses, so this is best effort.
func (r *Reconciler) releaseClaim(ctx context.Context, paymentID, eventType string) {
	if err := r.dedupe.Release(ctx, paymentID, eventType); err != nil {
		r.logger.Warn("failed to release dedupe claim",
			zap.String("payment_id", paymentID), zap.Error(err))
	}
}

func (r *Reconciler) sendReceipt(ctx context.Context, license *billing.License, expiration *time.Time) {
	if r.receipts == nil || !r.receipts.Enabled() {
		return
	}

	profile, err := r.profiles.FindByID(ctx, license.UserID)
	if err != nil {
		r.logger.Warn("failed to load profile for receipt",
			zap.String("user_id", license.UserID), zap.Error(err))
		return
	}

	if err := r.receipts.SendPaymentReceipt(profile.Email, license.Name, license.Value, expiration); err != nil {
		r.logger.Warn("failed to send payment receipt",
			zap.String("user_id", license.UserID), zap.Error(err))
	}
}
