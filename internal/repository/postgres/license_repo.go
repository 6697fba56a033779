// internal/repository/postgres/license_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"babylon-billing-service/internal/domain/billing"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const licenseColumns = `id, user_id, plan_id, name, type, value, status, expiration_date,
	       asaas_subscription_id, asaas_payment_id, created_at, updated_at`

type LicenseRepository struct {
	db *pgxpool.Pool
}

func NewLicenseRepository(db *pgxpool.Pool) *LicenseRepository {
	return &LicenseRepository{db: db}
}

func scanLicense(row pgx.Row) (*billing.License, error) {
	var lic billing.License
	err := row.Scan(
		&lic.ID, &lic.UserID, &lic.PlanID, &lic.Name, &lic.Type, &lic.Value,
		&lic.Status, &lic.ExpirationDate,
		&lic.AsaasSubscriptionID, &lic.AsaasPaymentID,
		&lic.CreatedAt, &lic.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan license: %w", err)
	}
	return &lic, nil
}

// CreateWithTx inserts a new license within a transaction
func (r *LicenseRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, lic *billing.License) error {
	query := `
		INSERT INTO licenses (
			id, user_id, plan_id, name, type, value, status, expiration_date,
			asaas_subscription_id, asaas_payment_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		lic.ID, lic.UserID, lic.PlanID, lic.Name, lic.Type, lic.Value,
		lic.Status, lic.ExpirationDate,
		lic.AsaasSubscriptionID, lic.AsaasPaymentID,
	).Scan(&lic.CreatedAt, &lic.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create license: %w", err)
	}

	return nil
}

// FindByPaymentID retrieves the license correlated to a gateway payment
func (r *LicenseRepository) FindByPaymentID(ctx context.Context, paymentID string) (*billing.License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE asaas_payment_id = $1`, licenseColumns)
	return scanLicense(r.db.QueryRow(ctx, query, paymentID))
}

// FindActiveByUser retrieves the user's active license, if any
func (r *LicenseRepository) FindActiveByUser(ctx context.Context, userID string) (*billing.License, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM licenses
		WHERE user_id = $1 AND status = 'Ativa'
		ORDER BY created_at DESC
		LIMIT 1
	`, licenseColumns)
	return scanLicense(r.db.QueryRow(ctx, query, userID))
}

// ListByUser retrieves the user's license history, newest first
func (r *LicenseRepository) ListByUser(ctx context.Context, userID string) ([]billing.License, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM licenses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, licenseColumns)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	licenses := []billing.License{}
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, *lic)
	}

	return licenses, nil
}

// ActivateWithTx promotes a pending license to Ativa with the computed
// expiration. The status guard in the WHERE clause makes an already
// activated or expired license surface as an illegal transition.
func (r *LicenseRepository) ActivateWithTx(ctx context.Context, tx pgx.Tx, id string, expiration sql.NullTime) error {
	query := `
		UPDATE licenses
		SET status = 'Ativa', expiration_date = $1, updated_at = $2
		WHERE id = $3 AND status = 'Pendente'
	`

	result, err := tx.Exec(ctx, query, expiration, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to activate license: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrInvalidTransition
	}

	return nil
}

// ExpireOthersWithTx demotes every other license of the user so that at
// most one stays Ativa.
func (r *LicenseRepository) ExpireOthersWithTx(ctx context.Context, tx pgx.Tx, userID, keepID string) error {
	query := `
		UPDATE licenses
		SET status = 'Expirada', updated_at = $1
		WHERE user_id = $2 AND id <> $3 AND status <> 'Expirada'
	`

	if _, err := tx.Exec(ctx, query, time.Now(), userID, keepID); err != nil {
		return fmt.Errorf("failed to expire superseded licenses: %w", err)
	}

	return nil
}
