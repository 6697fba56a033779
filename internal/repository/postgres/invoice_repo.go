// internal/repository/postgres/invoice_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"babylon-billing-service/internal/domain/billing"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const invoiceColumns = `id, user_id, license_id, amount, status, asaas_payment_id,
	       invoice_url, confirmed_at, created_at, updated_at`

type InvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func scanInvoice(row pgx.Row) (*billing.Invoice, error) {
	var inv billing.Invoice
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.LicenseID, &inv.Amount, &inv.Status,
		&inv.AsaasPaymentID, &inv.InvoiceURL, &inv.ConfirmedAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	return &inv, nil
}

// CreateWithTx inserts a new invoice within a transaction
func (r *InvoiceRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, inv *billing.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, user_id, license_id, amount, status, asaas_payment_id, invoice_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		inv.ID, inv.UserID, inv.LicenseID, inv.Amount, inv.Status,
		inv.AsaasPaymentID, inv.InvoiceURL,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// FindByPaymentID retrieves the invoice correlated to a gateway payment
func (r *InvoiceRepository) FindByPaymentID(ctx context.Context, paymentID string) (*billing.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE asaas_payment_id = $1`, invoiceColumns)
	return scanInvoice(r.db.QueryRow(ctx, query, paymentID))
}

// ListByUser retrieves the user's invoices, newest first
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string) ([]billing.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, invoiceColumns)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []billing.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}

	return invoices, nil
}

// MarkPaidWithTx transitions an invoice to Pago exactly once. The status
// guard keeps the transition from ever running twice or reversing.
func (r *InvoiceRepository) MarkPaidWithTx(ctx context.Context, tx pgx.Tx, id string, confirmedAt time.Time) error {
	query := `
		UPDATE invoices
		SET status = 'Pago', confirmed_at = $1, updated_at = $2
		WHERE id = $3 AND status = 'Pendente'
	`

	result, err := tx.Exec(ctx, query, confirmedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrInvalidTransition
	}

	return nil
}
