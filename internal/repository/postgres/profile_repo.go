// internal/repository/postgres/profile_repo.go
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

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID retrieves a profile by its id
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*billing.Profile, error) {
	query := `
		SELECT id, name, email, cpf_cnpj, asaas_customer_id, active_license_id, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var p billing.Profile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Email, &p.CpfCnpj,
		&p.AsaasCustomerID, &p.ActiveLicenseID,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return &p, nil
}

// SetAsaasCustomerID persists a lazily created gateway customer id
func (r *ProfileRepository) SetAsaasCustomerID(ctx context.Context, id, customerID string) error {
	query := `UPDATE profiles SET asaas_customer_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, customerID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set asaas customer id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// SetActiveLicenseWithTx points the profile at its newly activated license
func (r *ProfileRepository) SetActiveLicenseWithTx(ctx context.Context, tx pgx.Tx, id, licenseID string) error {
	query := `UPDATE profiles SET active_license_id = $1, updated_at = $2 WHERE id = $3`

	result, err := tx.Exec(ctx, query, licenseID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set active license: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
